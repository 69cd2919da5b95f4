package batchjob

import (
	"context"
	"io"
	"iter"
	"time"

	"github.com/nijaru/vidsum/inference"
	"github.com/nijaru/vidsum/models"
	"github.com/nijaru/vidsum/storage"
)

type Service interface {
	// Submit creates a batch job over an uploaded input document
	Submit(ctx context.Context, req SubmitRequest) (*models.Job, error)

	// Status rebuilds a job from its handle
	Status(ctx context.Context, handle string) (*models.Job, error)

	// Wait polls until the job reaches a terminal status
	Wait(ctx context.Context, job *models.Job, opts WaitOptions) error

	// Retrieve downloads the job's output artifacts into dir and reconciles
	// them against inputs
	Retrieve(ctx context.Context, job *models.Job, inputs []models.Record, dir string) (*Report, error)
}

// ObjectStore is the slice of storage.S3Store the controller needs.
type ObjectStore interface {
	Objects(ctx context.Context, bucket, prefix, suffix string) iter.Seq2[models.ResourceRef, error]
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Download(ctx context.Context, ref models.ResourceRef, local *storage.LocalStore) (string, error)
}

// Inference is the batch endpoint; inference.BedrockClient implements it.
type Inference interface {
	Submit(ctx context.Context, in inference.SubmitInput) (*models.Job, error)
	Status(ctx context.Context, handle string) (*models.Job, error)
}

type SubmitRequest struct {
	JobName        string
	InputLocation  string
	OutputLocation string
	ModelID        string
	RoleARN        string
	TimeoutHours   int
}

type WaitOptions struct {
	// Interval is the fixed pause between status queries
	Interval time.Duration `json:"interval"`

	// MaxAttempts and Timeout bound polling; zero means unbounded
	MaxAttempts int           `json:"max_attempts"`
	Timeout     time.Duration `json:"timeout"`

	// OnStatus is called after every status query
	OnStatus func(job *models.Job, attempt int) `json:"-"`
}
