package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/vidsum/errors"
	"github.com/nijaru/vidsum/logger"
	"github.com/nijaru/vidsum/models"
	"github.com/nijaru/vidsum/notify"
	"github.com/nijaru/vidsum/payload"
	"github.com/nijaru/vidsum/services/batchjob"
	"github.com/nijaru/vidsum/storage"
)

const (
	payloadContentType = "application/jsonl"
	resultsFile        = "results.jsonl"
)

type service struct {
	store    ObjectStore
	jobs     batchjob.Service
	notifier notify.Notifier
	builder  *payload.Builder
	local    *storage.LocalStore
	config   Config
	now      func() time.Time
}

func NewService(
	store ObjectStore,
	jobs batchjob.Service,
	notifier notify.Notifier,
	config Config,
) Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &service{
		store:    store,
		jobs:     jobs,
		notifier: notifier,
		builder:  payload.NewBuilder(config.Payload),
		local:    storage.NewLocalStore(config.OutputDir),
		config:   config,
		now:      time.Now,
	}
}

func (s *service) Run(ctx context.Context) (*Result, error) {
	const op = "SummarizeService.Run"
	start := s.now()
	log := logger.FromContext(ctx).WithField("operation", op)

	refs, err := storage.Collect(s.store.Objects(ctx, s.config.InputBucket, s.config.InputPrefix, s.config.InputSuffix))
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"bucket":    s.config.InputBucket,
		"prefix":    s.config.InputPrefix,
		"resources": len(refs),
	}).Info("Enumerated input resources")

	records, err := s.builder.Build(refs)
	if err != nil {
		log.WithError(err).Error("Payload rejected")
		return nil, err
	}

	jobName := s.jobName()
	result := &Result{Records: len(records)}

	var doc bytes.Buffer
	if err := payload.Encode(&doc, records); err != nil {
		return result, err
	}
	result.PayloadPath, err = s.local.Save(jobName+".jsonl", bytes.NewReader(doc.Bytes()))
	if err != nil {
		return result, err
	}
	log.WithFields(logrus.Fields{
		"records": len(records),
		"path":    result.PayloadPath,
	}).Info("Wrote batch payload")

	if s.config.DryRun {
		result.DryRun = true
		result.Duration = s.now().Sub(start)
		log.Info("Dry run, payload not submitted")
		return result, nil
	}

	docKey := s.config.DocPrefix + jobName + ".jsonl"
	if err := s.store.Upload(ctx, s.config.BatchBucket, docKey, bytes.NewReader(doc.Bytes()), payloadContentType); err != nil {
		return result, err
	}

	job, err := s.jobs.Submit(ctx, batchjob.SubmitRequest{
		JobName:        jobName,
		InputLocation:  fmt.Sprintf("s3://%s/%s", s.config.BatchBucket, docKey),
		OutputLocation: fmt.Sprintf("s3://%s/%s", s.config.BatchBucket, s.config.OutputPrefix),
		ModelID:        s.config.ModelID,
		RoleARN:        s.config.RoleARN,
		TimeoutHours:   s.config.TimeoutHours,
	})
	if err != nil {
		return result, err
	}
	result.Job = job

	err = s.complete(ctx, job, records, result)
	result.Duration = s.now().Sub(start)
	return result, err
}

func (s *service) Resume(ctx context.Context, handle string) (*Result, error) {
	const op = "SummarizeService.Resume"
	start := s.now()
	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"operation": op,
		"job":       handle,
	})

	job, err := s.jobs.Status(ctx, handle)
	if err != nil {
		return nil, err
	}
	result := &Result{Job: job}

	inputs, lineErrs, err := batchjob.ReadInputs(ctx, s.store, job)
	if err != nil {
		return result, err
	}
	for _, le := range lineErrs {
		log.WithError(le).Warn("Skipping unreadable input line")
	}
	result.Records = len(inputs)

	log.WithFields(logrus.Fields{
		"status":  job.Status,
		"records": len(inputs),
	}).Info("Resuming batch job")

	err = s.complete(ctx, job, inputs, result)
	result.Duration = s.now().Sub(start)
	return result, err
}

// complete waits for a submitted job and turns its outputs into results.
func (s *service) complete(ctx context.Context, job *models.Job, inputs []models.Record, result *Result) error {
	const op = "SummarizeService.complete"
	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"operation": op,
		"job":       job.Handle,
	})

	opts := s.config.Poll
	opts.OnStatus = func(j *models.Job, attempt int) {
		log.WithFields(logrus.Fields{
			"status":  j.Status,
			"attempt": attempt,
		}).Info("Batch job status")
	}
	if err := s.jobs.Wait(ctx, job, opts); err != nil {
		return err
	}

	if job.IsFailed() {
		msg := fmt.Sprintf("batch job %s ended in status %s", job.ID(), job.Status)
		if job.Message != "" {
			msg += ": " + job.Message
		}
		s.notifyDone(ctx, job, result)
		return errors.JobFailed(op, nil, msg)
	}

	dir := filepath.Join(s.config.OutputDir, job.ID())
	report, err := s.jobs.Retrieve(ctx, job, inputs, dir)
	if err != nil {
		return err
	}
	result.Report = report

	for _, dataErr := range report.DataErrors() {
		log.WithError(dataErr).Warn("Record not summarized")
	}

	result.ResultsPath, err = s.writeResults(dir, report)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"completed": report.Completed,
		"missing":   len(report.Missing),
		"orphans":   len(report.Orphans),
		"failed":    len(report.RecordErrors),
		"results":   result.ResultsPath,
	}).Info("Batch job reconciled")

	s.notifyDone(ctx, job, result)
	return nil
}

func (s *service) writeResults(dir string, report *batchjob.Report) (string, error) {
	const op = "SummarizeService.writeResults"

	missing := make(map[string]bool, len(report.Missing))
	for _, id := range report.Missing {
		missing[id] = true
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range report.Records {
		rec := &report.Records[i]
		res := models.Result{
			ID:       rec.ID,
			Resource: payload.ResourceURI(*rec),
			Summary:  rec.OutputText(),
			Missing:  missing[rec.ID],
		}
		if rec.Failed() {
			res.Error = fmt.Sprintf("%d: %s", rec.Error.Code, rec.Error.Message)
		}
		if err := enc.Encode(res); err != nil {
			return "", errors.Internal(op, err, "failed to encode result")
		}
	}

	return storage.NewLocalStore(dir).Save(resultsFile, &buf)
}

// notifyDone never fails the run; the results are already on disk.
func (s *service) notifyDone(ctx context.Context, job *models.Job, result *Result) {
	summary := notify.Summary{
		JobHandle:   job.Handle,
		JobName:     job.Name,
		Status:      job.Status,
		Message:     job.Message,
		Records:     result.Records,
		ResultsPath: result.ResultsPath,
		FinishedAt:  s.now().UTC(),
	}
	if r := result.Report; r != nil {
		summary.Completed = r.Completed
		summary.Missing = len(r.Missing)
		summary.Orphans = len(r.Orphans)
		summary.Failed = len(r.RecordErrors)
	}

	if err := s.notifier.Notify(ctx, summary); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("job", job.Handle).Warn("Failed to send completion notice")
	}
}

// jobName is unique per run and fits the batch service's 63 character
// limit for the default prefix.
func (s *service) jobName() string {
	prefix := s.config.JobNamePrefix
	if prefix == "" {
		prefix = "batch"
	}
	return fmt.Sprintf("%s-%s-%s", prefix, s.now().UTC().Format("20060102-150405"), uuid.NewString()[:8])
}
