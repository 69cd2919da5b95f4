package summarize

import (
	"context"
	"io"
	"time"

	"github.com/nijaru/vidsum/config"
	"github.com/nijaru/vidsum/models"
	"github.com/nijaru/vidsum/payload"
	"github.com/nijaru/vidsum/services/batchjob"
)

type Service interface {
	// Run enumerates the input prefix and drives one batch job end to end
	Run(ctx context.Context) (*Result, error)

	// Resume picks up a previously submitted job by handle
	Resume(ctx context.Context, handle string) (*Result, error)
}

// ObjectStore adds uploads to what the job controller needs.
type ObjectStore interface {
	batchjob.ObjectStore
	Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
}

type Config struct {
	// Where the media lives
	InputBucket string `json:"input_bucket"`
	InputPrefix string `json:"input_prefix"`
	InputSuffix string `json:"input_suffix"`

	// Where the batch documents go
	BatchBucket  string `json:"batch_bucket"`
	DocPrefix    string `json:"doc_prefix"`
	OutputPrefix string `json:"output_prefix"`

	JobNamePrefix string `json:"job_name_prefix"`
	ModelID       string `json:"model_id"`
	RoleARN       string `json:"role_arn"`
	TimeoutHours  int    `json:"timeout_hours"`

	// OutputDir receives the local payload copy, artifacts and results
	OutputDir string `json:"output_dir"`

	// DryRun stops after the payload is written locally
	DryRun bool `json:"dry_run"`

	Poll    batchjob.WaitOptions `json:"poll"`
	Payload payload.Config       `json:"-"`
}

// ConfigFrom maps the application configuration onto the driver.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		InputBucket:   cfg.Input.Bucket,
		InputPrefix:   cfg.Input.Prefix,
		InputSuffix:   cfg.Input.Suffix,
		BatchBucket:   cfg.Batch.Bucket,
		DocPrefix:     cfg.Batch.InputPrefix,
		OutputPrefix:  cfg.Batch.OutputPrefix,
		JobNamePrefix: cfg.Batch.JobNamePrefix,
		ModelID:       cfg.Batch.ModelID,
		RoleARN:       cfg.Batch.RoleARN,
		TimeoutHours:  cfg.Batch.TimeoutHours,
		OutputDir:     cfg.OutputDir,
		DryRun:        cfg.DryRun,
		Poll: batchjob.WaitOptions{
			Interval:    cfg.Poll.Interval,
			MaxAttempts: cfg.Poll.MaxAttempts,
			Timeout:     cfg.Poll.Timeout,
		},
		Payload: payload.Config{
			RecordPrefix:    cfg.Batch.RecordPrefix,
			MinRecords:      cfg.Batch.MinRecords,
			MaxRecords:      cfg.Batch.MaxRecords,
			MaxResourceSize: cfg.Batch.MaxResourceSize,
			Template: payload.Template{
				Prompt:       cfg.Prompt.Text,
				SystemPrompt: cfg.Prompt.System,
				MaxTokens:    cfg.Prompt.MaxTokens,
				Temperature:  cfg.Prompt.Temperature,
				TopP:         cfg.Prompt.TopP,
				TopK:         cfg.Prompt.TopK,
				Format:       cfg.Prompt.MediaFormat,
				BucketOwner:  cfg.Input.BucketOwner,
			},
		},
	}
}

// Result describes what a run produced. Fields are filled as far as the
// run got, so a failed run still reports its job handle.
type Result struct {
	Job         *models.Job      `json:"job,omitempty"`
	Records     int              `json:"records"`
	PayloadPath string           `json:"payload_path,omitempty"`
	ResultsPath string           `json:"results_path,omitempty"`
	Report      *batchjob.Report `json:"report,omitempty"`
	DryRun      bool             `json:"dry_run"`
	Duration    time.Duration    `json:"duration"`
}
