package batchjob

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/nijaru/vidsum/errors"
	"github.com/nijaru/vidsum/inference"
	"github.com/nijaru/vidsum/logger"
	"github.com/nijaru/vidsum/models"
	"github.com/nijaru/vidsum/payload"
	"github.com/nijaru/vidsum/storage"
	"github.com/nijaru/vidsum/validation"
)

const (
	// Output artifacts are named <input file>.out; the manifest shares the
	// suffix but carries no records.
	artifactSuffix = ".jsonl.out"
	manifestName   = "manifest.json.out"
)

type service struct {
	store     ObjectStore
	inference Inference
}

func NewService(store ObjectStore, client Inference) Service {
	return &service{
		store:     store,
		inference: client,
	}
}

func (s *service) Submit(ctx context.Context, req SubmitRequest) (*models.Job, error) {
	const op = "BatchJobService.Submit"
	log := logger.FromContext(ctx).WithField("operation", op)

	if _, _, err := validation.ParseS3URI(req.InputLocation); err != nil {
		return nil, errors.Configuration(op, err, "invalid input location")
	}
	if _, _, err := validation.ParseS3URI(req.OutputLocation); err != nil {
		return nil, errors.Configuration(op, err, "invalid output location")
	}
	if err := validation.ValidateJobName(req.JobName); err != nil {
		return nil, err
	}

	job, err := s.inference.Submit(ctx, inference.SubmitInput{
		JobName:        req.JobName,
		ModelID:        req.ModelID,
		RoleARN:        req.RoleARN,
		InputLocation:  req.InputLocation,
		OutputLocation: req.OutputLocation,
		TimeoutHours:   req.TimeoutHours,
	})
	if err != nil {
		log.WithError(err).Error("Batch job submission failed")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"job":    job.Handle,
		"name":   job.Name,
		"input":  job.InputLocation,
		"output": job.OutputLocation,
	}).Info("Batch job submitted")

	return job, nil
}

func (s *service) Status(ctx context.Context, handle string) (*models.Job, error) {
	const op = "BatchJobService.Status"

	if strings.TrimSpace(handle) == "" {
		return nil, errors.Configuration(op, nil, "job handle is required")
	}
	return s.inference.Status(ctx, handle)
}

// Wait queries status immediately, then once per interval, copying each
// result into job. It returns nil once the status is terminal, whatever
// that status is.
func (s *service) Wait(ctx context.Context, job *models.Job, opts WaitOptions) error {
	const op = "BatchJobService.Wait"
	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"operation": op,
		"job":       job.Handle,
	})

	if opts.Interval <= 0 {
		return errors.Configuration(op, nil, "poll interval must be positive")
	}

	waitCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	// Burst of one lets the first query through without delay.
	limiter := rate.NewLimiter(rate.Every(opts.Interval), 1)

	for attempt := 1; ; attempt++ {
		if err := limiter.Wait(waitCtx); err != nil {
			return stopped(ctx, op, job, attempt-1, opts, err)
		}

		current, err := s.inference.Status(waitCtx, job.Handle)
		if err != nil {
			if waitCtx.Err() != nil {
				return stopped(ctx, op, job, attempt, opts, err)
			}
			log.WithError(err).WithField("attempt", attempt).Error("Status query failed")
			return err
		}
		apply(job, current)

		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"status":  job.Status,
		}).Debug("Polled batch job")
		if opts.OnStatus != nil {
			opts.OnStatus(job, attempt)
		}

		if job.IsTerminal() {
			log.WithField("status", job.Status).Info("Batch job reached terminal status")
			return nil
		}
		if opts.MaxAttempts > 0 && attempt >= opts.MaxAttempts {
			return errors.Timeout(op, nil,
				fmt.Sprintf("job %s still %s after %d status queries", job.ID(), job.Status, attempt))
		}
	}
}

// stopped reports why polling ended early: the caller canceled, or the
// polling timeout would be (or was) exceeded.
func stopped(ctx context.Context, op string, job *models.Job, attempts int, opts WaitOptions, err error) error {
	if ctx.Err() != nil {
		return errors.Canceled(op, ctx.Err(),
			fmt.Sprintf("stopped waiting for job %s in status %s", job.ID(), job.Status))
	}
	return errors.Timeout(op, err,
		fmt.Sprintf("job %s still %s after %s (%d status queries)", job.ID(), job.Status, opts.Timeout, attempts))
}

func apply(job, current *models.Job) {
	job.Status = current.Status
	job.Message = current.Message
	if !current.UpdatedAt.IsZero() {
		job.UpdatedAt = current.UpdatedAt
	}
	if job.Name == "" {
		job.Name = current.Name
	}
	if job.InputLocation == "" {
		job.InputLocation = current.InputLocation
	}
	if job.OutputLocation == "" {
		job.OutputLocation = current.OutputLocation
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = current.SubmittedAt
	}
}

func (s *service) Retrieve(ctx context.Context, job *models.Job, inputs []models.Record, dir string) (*Report, error) {
	const op = "BatchJobService.Retrieve"
	log := logger.FromContext(ctx).WithFields(logrus.Fields{
		"operation": op,
		"job":       job.Handle,
	})

	if !job.IsRetrievable() {
		return nil, errors.BusinessRule(op, errors.ErrNotRetrievable,
			fmt.Sprintf("job %s is %s, outputs can only be retrieved from completed jobs", job.ID(), job.Status))
	}

	bucket, prefix, err := validation.ParseS3URI(job.OutputLocation)
	if err != nil {
		return nil, err
	}
	prefix = outputPrefix(prefix, job.ID())

	local := storage.NewLocalStore(dir)
	if err := local.Init(); err != nil {
		return nil, err
	}

	var (
		outputs   []models.Record
		lineErrs  []*payload.LineError
		artifacts []string
	)
	for ref, err := range s.store.Objects(ctx, bucket, prefix, artifactSuffix) {
		if err != nil {
			return nil, err
		}
		if path.Base(ref.Key) == manifestName {
			continue
		}

		localPath, err := s.store.Download(ctx, ref, local)
		if err != nil {
			return nil, err
		}
		records, errs, err := decodeFile(localPath, ref.URI())
		if err != nil {
			return nil, errors.Internal(op, err, fmt.Sprintf("failed to read %s", localPath))
		}

		log.WithFields(logrus.Fields{
			"artifact": ref.URI(),
			"records":  len(records),
			"errors":   len(errs),
		}).Info("Downloaded output artifact")

		artifacts = append(artifacts, localPath)
		outputs = append(outputs, records...)
		lineErrs = append(lineErrs, errs...)
	}

	if len(artifacts) == 0 {
		log.WithField("prefix", fmt.Sprintf("s3://%s/%s", bucket, prefix)).Warn("No output artifacts found")
	}

	report := Reconcile(inputs, outputs)
	report.LineErrors = lineErrs
	report.Artifacts = artifacts
	return report, nil
}

// ReadInputs recovers the input records of a submitted job from its input
// document.
func ReadInputs(ctx context.Context, store ObjectStore, job *models.Job) ([]models.Record, []*payload.LineError, error) {
	bucket, key, err := validation.ParseS3URI(job.InputLocation)
	if err != nil {
		return nil, nil, err
	}

	body, err := store.Open(ctx, bucket, key)
	if err != nil {
		return nil, nil, err
	}
	defer body.Close()

	records, lineErrs := payload.Decode(body, job.InputLocation)
	return records, lineErrs, nil
}

func outputPrefix(prefix, jobID string) string {
	if prefix == "" {
		return jobID + "/"
	}
	return strings.TrimSuffix(prefix, "/") + "/" + jobID + "/"
}

func decodeFile(localPath, source string) ([]models.Record, []*payload.LineError, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "open artifact")
	}
	defer file.Close()

	records, lineErrs := payload.Decode(file, source)
	return records, lineErrs, nil
}
