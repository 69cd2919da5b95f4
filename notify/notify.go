// Package notify publishes a run summary once a batch job has been
// reconciled.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/nijaru/vidsum/config"
	"github.com/nijaru/vidsum/errors"
	"github.com/nijaru/vidsum/models"
)

type Summary struct {
	JobHandle   string        `json:"job_handle"`
	JobName     string        `json:"job_name"`
	Status      models.Status `json:"status"`
	Message     string        `json:"message,omitempty"`
	Records     int           `json:"records"`
	Completed   int           `json:"completed"`
	Missing     int           `json:"missing"`
	Orphans     int           `json:"orphans"`
	Failed      int           `json:"failed"`
	ResultsPath string        `json:"results_path,omitempty"`
	FinishedAt  time.Time     `json:"finished_at"`
}

type Notifier interface {
	Notify(ctx context.Context, summary Summary) error
	Close() error
}

// Nop is used when no backend is configured.
type Nop struct{}

func (Nop) Notify(context.Context, Summary) error { return nil }
func (Nop) Close() error                          { return nil }

// New picks the backend named in cfg.
func New(cfg config.NotifyConfig, awsCfg aws.Config) (Notifier, error) {
	const op = "notify.New"

	switch cfg.Backend {
	case "", "none":
		return Nop{}, nil
	case "sqs":
		return NewSQSNotifier(sqs.NewFromConfig(awsCfg), cfg.SQSQueueURL), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisNotifier(client, cfg.RedisKey), nil
	default:
		return nil, errors.Configuration(op, nil, fmt.Sprintf("unknown notify backend %q", cfg.Backend))
	}
}

func marshal(op string, summary Summary) ([]byte, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, errors.Internal(op, err, "failed to encode summary")
	}
	return data, nil
}
