package batchjob

import (
	"fmt"

	"github.com/nijaru/vidsum/errors"
	"github.com/nijaru/vidsum/models"
	"github.com/nijaru/vidsum/payload"
)

// FailedRecord is an output line the model could not process.
type FailedRecord struct {
	ID    string             `json:"recordId"`
	Error models.RecordError `json:"error"`
}

// Report is the outcome of matching outputs back to inputs by record id.
type Report struct {
	// Records are copies of the inputs, in input order, with any matched
	// output merged in.
	Records   []models.Record `json:"records"`
	Completed int             `json:"completed"`

	Missing          []string             `json:"missing,omitempty"`
	Orphans          []string             `json:"orphans,omitempty"`
	DuplicateInputs  []string             `json:"duplicate_inputs,omitempty"`
	DuplicateOutputs []string             `json:"duplicate_outputs,omitempty"`
	RecordErrors     []FailedRecord       `json:"record_errors,omitempty"`
	LineErrors       []*payload.LineError `json:"line_errors,omitempty"`
	Artifacts        []string             `json:"artifacts,omitempty"`
}

// Reconcile merges outputs into copies of inputs. The first occurrence of
// a duplicated id wins. Outputs with no matching input are reported as
// orphans and never dropped silently.
func Reconcile(inputs, outputs []models.Record) *Report {
	report := &Report{Records: make([]models.Record, 0, len(inputs))}

	index := make(map[string]int, len(inputs))
	for _, in := range inputs {
		if _, ok := index[in.ID]; ok {
			report.DuplicateInputs = append(report.DuplicateInputs, in.ID)
			continue
		}
		index[in.ID] = len(report.Records)
		report.Records = append(report.Records, models.Record{ID: in.ID, Input: in.Input})
	}

	matched := make(map[string]bool, len(outputs))
	for _, out := range outputs {
		i, ok := index[out.ID]
		if !ok {
			report.Orphans = append(report.Orphans, out.ID)
			continue
		}
		if matched[out.ID] {
			report.DuplicateOutputs = append(report.DuplicateOutputs, out.ID)
			continue
		}
		matched[out.ID] = true

		rec := &report.Records[i]
		rec.Output = out.Output
		rec.Error = out.Error
		if out.Failed() {
			report.RecordErrors = append(report.RecordErrors, FailedRecord{ID: out.ID, Error: *out.Error})
			continue
		}
		report.Completed++
	}

	for _, rec := range report.Records {
		if !matched[rec.ID] {
			report.Missing = append(report.Missing, rec.ID)
		}
	}

	return report
}

func (r *Report) HasDataErrors() bool {
	return len(r.Missing) > 0 ||
		len(r.Orphans) > 0 ||
		len(r.DuplicateInputs) > 0 ||
		len(r.DuplicateOutputs) > 0 ||
		len(r.RecordErrors) > 0 ||
		len(r.LineErrors) > 0
}

// DataErrors lists every non-fatal problem as a data error, one per record
// or line.
func (r *Report) DataErrors() []error {
	const op = "Report.DataErrors"

	var errs []error
	for _, id := range r.Orphans {
		errs = append(errs, errors.Data(op, nil, fmt.Sprintf("output %s matches no input record", id)))
	}
	for _, id := range r.Missing {
		errs = append(errs, errors.Data(op, nil, fmt.Sprintf("input %s has no output", id)))
	}
	for _, id := range r.DuplicateInputs {
		errs = append(errs, errors.Data(op, nil, fmt.Sprintf("input id %s is not unique", id)))
	}
	for _, id := range r.DuplicateOutputs {
		errs = append(errs, errors.Data(op, nil, fmt.Sprintf("output %s appears more than once", id)))
	}
	for _, f := range r.RecordErrors {
		errs = append(errs, errors.Data(op, nil, fmt.Sprintf("record %s failed (%d): %s", f.ID, f.Error.Code, f.Error.Message)))
	}
	for _, le := range r.LineErrors {
		errs = append(errs, le)
	}
	return errs
}
