package batchjob

import (
	"fmt"
	"testing"

	"github.com/nijaru/vidsum/models"
)

func output(id string) models.Record {
	return models.Record{ID: id, Output: []byte(`{"output":{"message":{"content":[{"text":"ok"}]}}}`)}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name      string
		inputs    []models.Record
		outputs   []models.Record
		completed int
		missing   string
		orphans   string
		dupIn     string
		dupOut    string
		failed    int
	}{
		{
			name:      "all matched",
			inputs:    inputs(3),
			outputs:   []models.Record{output("batch-2"), output("batch-0"), output("batch-1")},
			completed: 3,
			missing:   "[]",
			orphans:   "[]",
			dupIn:     "[]",
			dupOut:    "[]",
		},
		{
			name:      "orphan output",
			inputs:    inputs(2),
			outputs:   []models.Record{output("batch-0"), output("batch-1"), output("other-5")},
			completed: 2,
			missing:   "[]",
			orphans:   "[other-5]",
			dupIn:     "[]",
			dupOut:    "[]",
		},
		{
			name:      "partial completion",
			inputs:    inputs(3),
			outputs:   []models.Record{output("batch-1")},
			completed: 1,
			missing:   "[batch-0 batch-2]",
			orphans:   "[]",
			dupIn:     "[]",
			dupOut:    "[]",
		},
		{
			name:      "duplicates",
			inputs:    append(inputs(2), models.Record{ID: "batch-1"}),
			outputs:   []models.Record{output("batch-0"), output("batch-0"), output("batch-1")},
			completed: 2,
			missing:   "[]",
			orphans:   "[]",
			dupIn:     "[batch-1]",
			dupOut:    "[batch-0]",
		},
		{
			name:   "record error",
			inputs: inputs(2),
			outputs: []models.Record{
				output("batch-0"),
				{ID: "batch-1", Error: &models.RecordError{Code: 400, Message: "video too long"}},
			},
			completed: 1,
			missing:   "[]",
			orphans:   "[]",
			dupIn:     "[]",
			dupOut:    "[]",
			failed:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Reconcile(tt.inputs, tt.outputs)

			if report.Completed != tt.completed {
				t.Errorf("expected %d completed, got %d", tt.completed, report.Completed)
			}
			check := func(field string, got []string, want string) {
				if fmt.Sprint(got) != want {
					t.Errorf("%s: expected %s, got %v", field, want, got)
				}
			}
			check("missing", report.Missing, tt.missing)
			check("orphans", report.Orphans, tt.orphans)
			check("duplicate inputs", report.DuplicateInputs, tt.dupIn)
			check("duplicate outputs", report.DuplicateOutputs, tt.dupOut)

			if len(report.RecordErrors) != tt.failed {
				t.Errorf("expected %d record errors, got %d", tt.failed, len(report.RecordErrors))
			}

			clean := tt.missing == "[]" && tt.orphans == "[]" && tt.dupIn == "[]" && tt.dupOut == "[]" && tt.failed == 0
			if report.HasDataErrors() == clean {
				t.Errorf("HasDataErrors() = %v for %s", report.HasDataErrors(), tt.name)
			}
			if len(report.DataErrors()) == 0 && !clean {
				t.Error("expected data errors to be listed")
			}
		})
	}
}

func TestReconcileKeepsInputOrderAndInputs(t *testing.T) {
	in := inputs(4)
	report := Reconcile(in, []models.Record{output("batch-3"), output("batch-1")})

	for i, rec := range report.Records {
		if rec.ID != in[i].ID {
			t.Errorf("position %d: expected %s, got %s", i, in[i].ID, rec.ID)
		}
		if string(rec.Input) != string(in[i].Input) {
			t.Errorf("record %s lost its input", rec.ID)
		}
	}
	if !report.Records[1].HasOutput() || report.Records[0].HasOutput() {
		t.Error("outputs merged into the wrong records")
	}
	if in[1].HasOutput() {
		t.Error("inputs must not be mutated")
	}
}
