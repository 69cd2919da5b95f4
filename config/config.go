package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	apperrors "github.com/nijaru/vidsum/errors"
	"github.com/nijaru/vidsum/validation"
)

type Config struct {
	Debug bool `json:"debug"`
	// DryRun builds the payload locally and never touches the batch service.
	DryRun bool `json:"dry_run"`

	// Application paths
	OutputDir string `json:"output_dir"`
	LogDir    string `json:"log_dir"`

	AWS    AWSConfig    `json:"aws"`
	Input  InputConfig  `json:"input"`
	Batch  BatchConfig  `json:"batch"`
	Prompt PromptConfig `json:"prompt"`
	Poll   PollConfig   `json:"poll"`
	Notify NotifyConfig `json:"notify"`
}

type AWSConfig struct {
	Region          string `json:"region"`
	Profile         string `json:"profile"`
	AccessKeyID     string `json:"-"`
	SecretAccessKey string `json:"-"`
	SessionToken    string `json:"-"`
	// Passed verbatim to the SDK's standard retryer.
	MaxAttempts int           `json:"max_attempts"`
	MaxBackoff  time.Duration `json:"max_backoff"`
}

type InputConfig struct {
	Bucket      string `json:"bucket"`
	Prefix      string `json:"prefix"`
	Suffix      string `json:"suffix"`
	BucketOwner string `json:"bucket_owner"`
}

type BatchConfig struct {
	ModelID         string `json:"model_id"`
	RoleARN         string `json:"role_arn"`
	Bucket          string `json:"bucket"`
	InputPrefix     string `json:"input_prefix"`
	OutputPrefix    string `json:"output_prefix"`
	JobNamePrefix   string `json:"job_name_prefix"`
	RecordPrefix    string `json:"record_prefix"`
	MinRecords      int    `json:"min_records"`
	MaxRecords      int    `json:"max_records"`
	MaxResourceSize int64  `json:"max_resource_size"`
	TimeoutHours    int    `json:"timeout_hours"`
}

type PromptConfig struct {
	Text        string  `json:"text"`
	System      string  `json:"system"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	TopK        int     `json:"top_k"`
	MediaFormat string  `json:"media_format"`
}

type PollConfig struct {
	Interval    time.Duration `json:"interval"`
	MaxAttempts int           `json:"max_attempts"`
	Timeout     time.Duration `json:"timeout"`
}

type NotifyConfig struct {
	Backend       string `json:"backend"`
	SQSQueueURL   string `json:"sqs_queue_url"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"-"`
	RedisDB       int    `json:"redis_db"`
	RedisKey      string `json:"redis_key"`
}

const defaultPrompt = "Summarize the video in a short paragraph. Describe the main subjects, " +
	"the setting and the key events in the order they happen."

// Overrides are command line values that take precedence over the
// environment. Empty strings leave the environment value in place.
type Overrides struct {
	OutputDir   string
	InputPrefix string
	DryRun      bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	return LoadWithOverrides(Overrides{})
}

// LoadWithOverrides applies o on top of the environment before validating,
// so nothing is created or required for values that o replaces.
func LoadWithOverrides(o Overrides) (*Config, error) {
	cfg := &Config{
		Debug:  getEnvAsBool("DEBUG", false),
		DryRun: getEnvAsBool("DRY_RUN", false),

		// Application paths
		OutputDir: getEnv("OUTPUT_DIR", "./output"),
		LogDir:    getEnv("LOG_DIR", "./logs"),

		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Profile:         getEnv("AWS_PROFILE", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			SessionToken:    getEnv("AWS_SESSION_TOKEN", ""),
			MaxAttempts:     getEnvAsInt("AWS_MAX_ATTEMPTS", 10),
			MaxBackoff:      getEnvAsDuration("AWS_MAX_BACKOFF", 20*time.Second),
		},

		Input: InputConfig{
			Bucket:      getEnv("INPUT_BUCKET", ""),
			Prefix:      getEnv("INPUT_PREFIX", ""),
			Suffix:      getEnv("INPUT_SUFFIX", ".mp4"),
			BucketOwner: getEnv("INPUT_BUCKET_OWNER", ""),
		},

		Batch: BatchConfig{
			ModelID:         getEnv("MODEL_ID", "amazon.nova-lite-v1:0"),
			RoleARN:         getEnv("BATCH_ROLE_ARN", ""),
			Bucket:          getEnv("BATCH_BUCKET", ""),
			InputPrefix:     getEnv("BATCH_INPUT_PREFIX", "batch-inputs/"),
			OutputPrefix:    getEnv("BATCH_OUTPUT_PREFIX", "batch-outputs/"),
			JobNamePrefix:   getEnv("BATCH_JOB_NAME_PREFIX", "video-summary"),
			RecordPrefix:    getEnv("BATCH_RECORD_PREFIX", "batch"),
			MinRecords:      getEnvAsInt("BATCH_MIN_RECORDS", 100),
			MaxRecords:      getEnvAsInt("BATCH_MAX_RECORDS", 50000),
			MaxResourceSize: getEnvAsInt64("BATCH_MAX_RESOURCE_SIZE", 1<<30), // 1GB
			TimeoutHours:    getEnvAsInt("BATCH_TIMEOUT_HOURS", 24),
		},

		Prompt: PromptConfig{
			Text:        getEnv("PROMPT", defaultPrompt),
			System:      getEnv("SYSTEM_PROMPT", ""),
			MaxTokens:   getEnvAsInt("PROMPT_MAX_TOKENS", 512),
			Temperature: getEnvAsFloat("PROMPT_TEMPERATURE", 0.3),
			TopP:        getEnvAsFloat("PROMPT_TOP_P", 0.9),
			TopK:        getEnvAsInt("PROMPT_TOP_K", 0),
			MediaFormat: getEnv("PROMPT_MEDIA_FORMAT", ""),
		},

		Poll: PollConfig{
			Interval:    getEnvAsDuration("POLL_INTERVAL", 60*time.Second),
			MaxAttempts: getEnvAsInt("POLL_MAX_ATTEMPTS", 0),
			Timeout:     getEnvAsDuration("POLL_TIMEOUT", 0),
		},

		Notify: NotifyConfig{
			Backend:       strings.ToLower(getEnv("NOTIFY_BACKEND", "")),
			SQSQueueURL:   getEnv("NOTIFY_SQS_QUEUE_URL", ""),
			RedisAddr:     getEnv("NOTIFY_REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("NOTIFY_REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("NOTIFY_REDIS_DB", 0),
			RedisKey:      getEnv("NOTIFY_REDIS_KEY", "vidsum:jobs"),
		},
	}

	if o.OutputDir != "" {
		cfg.OutputDir = o.OutputDir
	}
	if o.InputPrefix != "" {
		cfg.Input.Prefix = o.InputPrefix
	}
	cfg.DryRun = cfg.DryRun || o.DryRun

	// Payload documents live next to the inputs unless told otherwise
	if cfg.Batch.Bucket == "" {
		cfg.Batch.Bucket = cfg.Input.Bucket
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	const op = "Config.Validate"

	// Validate paths
	if err := validatePaths(c); err != nil {
		return apperrors.Configuration(op, err, "invalid paths")
	}

	// Validate timeouts
	if err := validateTimeouts(c); err != nil {
		return apperrors.Configuration(op, err, "invalid timeouts")
	}

	// Validate services
	if err := validateServices(c); err != nil {
		return apperrors.Configuration(op, err, "invalid service settings")
	}

	return nil
}

func validatePaths(c *Config) error {
	paths := []struct {
		path string
		name string
	}{
		{c.OutputDir, "output directory"},
		{c.LogDir, "log directory"},
	}

	for _, p := range paths {
		if p.path == "" {
			return fmt.Errorf("%s is required", p.name)
		}
		if err := os.MkdirAll(p.path, 0755); err != nil {
			return errors.Wrapf(err, "failed to create %s", p.name)
		}
	}

	return nil
}

func validateTimeouts(c *Config) error {
	if c.Poll.Interval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.Poll.MaxAttempts < 0 {
		return errors.New("poll max attempts must not be negative")
	}
	if c.Poll.Timeout < 0 {
		return errors.New("poll timeout must not be negative")
	}
	if c.Batch.TimeoutHours < 24 || c.Batch.TimeoutHours > 168 {
		return errors.New("batch timeout must be between 24 and 168 hours")
	}
	return nil
}

func validateServices(c *Config) error {
	if err := validation.ValidateBucketName(c.Input.Bucket); err != nil {
		return errors.Wrap(err, "input bucket")
	}
	if err := validation.ValidateAccountID(c.Input.BucketOwner); err != nil {
		return err
	}
	// A dry run never uploads or submits.
	if !c.DryRun {
		if err := validation.ValidateBucketName(c.Batch.Bucket); err != nil {
			return errors.Wrap(err, "batch bucket")
		}
		if err := validation.ValidateRoleARN(c.Batch.RoleARN); err != nil {
			return err
		}
	}
	if err := validation.ValidateModelID(c.Batch.ModelID); err != nil {
		return err
	}
	if c.Batch.MinRecords < 1 {
		return errors.New("minimum records must be at least 1")
	}
	if c.Batch.MaxRecords < c.Batch.MinRecords {
		return errors.New("maximum records must not be below minimum records")
	}
	if c.Batch.MaxResourceSize <= 0 {
		return errors.New("max resource size must be positive")
	}
	if c.Prompt.MaxTokens <= 0 {
		return errors.New("prompt max tokens must be positive")
	}

	switch c.Notify.Backend {
	case "", "none", "redis":
	case "sqs":
		if c.Notify.SQSQueueURL == "" {
			return errors.New("NOTIFY_SQS_QUEUE_URL is required for the sqs backend")
		}
	default:
		return errors.Errorf("unknown notify backend %q", c.Notify.Backend)
	}
	return nil
}

// Helper functions for reading environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		warnInvalid(key, value, defaultValue, "integer")
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
		warnInvalid(key, value, defaultValue, "integer")
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
		warnInvalid(key, value, defaultValue, "float")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		warnInvalid(key, value, defaultValue, "boolean")
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		warnInvalid(key, value, defaultValue, "duration")
	}
	return defaultValue
}

func warnInvalid(key, value string, defaultValue interface{}, kind string) {
	logrus.WithFields(logrus.Fields{
		"key":          key,
		"value":        value,
		"defaultValue": defaultValue,
	}).Warnf("Invalid %s, using default", kind)
}
