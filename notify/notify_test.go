package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/nijaru/vidsum/config"
	"github.com/nijaru/vidsum/errors"
	"github.com/nijaru/vidsum/models"
)

func testSummary() Summary {
	return Summary{
		JobHandle:  "arn:aws:bedrock:us-east-1:123456789012:model-invocation-job/job0001",
		JobName:    "video-summary-test",
		Status:     models.StatusPartiallyCompleted,
		Records:    100,
		Completed:  98,
		Missing:    2,
		FinishedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

type fakeRedis struct {
	key    string
	values []interface{}
	err    error
	closed bool
}

func (f *fakeRedis) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.key = key
	f.values = values
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	cmd.SetVal(int64(len(values)))
	return cmd
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestSQSNotifier(t *testing.T) {
	client := &fakeSQS{}
	n := NewSQSNotifier(client, "https://sqs.us-east-1.amazonaws.com/123456789012/jobs")

	if err := n.Notify(context.Background(), testSummary()); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if aws.ToString(client.input.QueueUrl) != n.QueueURL {
		t.Errorf("unexpected queue %s", aws.ToString(client.input.QueueUrl))
	}
	var got Summary
	if err := json.Unmarshal([]byte(aws.ToString(client.input.MessageBody)), &got); err != nil {
		t.Fatalf("message body is not JSON: %v", err)
	}
	if got.Completed != 98 || got.Status != models.StatusPartiallyCompleted {
		t.Errorf("unexpected summary %+v", got)
	}
	if attr := client.input.MessageAttributes["status"]; aws.ToString(attr.StringValue) != "PartiallyCompleted" {
		t.Errorf("unexpected status attribute %+v", attr)
	}
}

func TestSQSNotifierError(t *testing.T) {
	n := NewSQSNotifier(&fakeSQS{err: fmt.Errorf("queue does not exist")}, "q")

	if err := n.Notify(context.Background(), testSummary()); !errors.IsTransport(err) {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestRedisNotifier(t *testing.T) {
	client := &fakeRedis{}
	n := NewRedisNotifier(client, "vidsum:jobs")

	if err := n.Notify(context.Background(), testSummary()); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if client.key != "vidsum:jobs" || len(client.values) != 1 {
		t.Fatalf("unexpected push %s %v", client.key, client.values)
	}

	data, ok := client.values[0].([]byte)
	if !ok {
		t.Fatalf("expected []byte value, got %T", client.values[0])
	}
	var got Summary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if got.JobName != "video-summary-test" {
		t.Errorf("unexpected summary %+v", got)
	}

	if err := n.Close(); err != nil || !client.closed {
		t.Error("expected client to be closed")
	}
}

func TestRedisNotifierError(t *testing.T) {
	n := NewRedisNotifier(&fakeRedis{err: fmt.Errorf("connection refused")}, "k")

	if err := n.Notify(context.Background(), testSummary()); !errors.IsTransport(err) {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.NotifyConfig
		want    string
		wantErr bool
	}{
		{"empty", config.NotifyConfig{}, "notify.Nop", false},
		{"none", config.NotifyConfig{Backend: "none"}, "notify.Nop", false},
		{"sqs", config.NotifyConfig{Backend: "sqs", SQSQueueURL: "q"}, "*notify.SQSNotifier", false},
		{"redis", config.NotifyConfig{Backend: "redis", RedisAddr: "localhost:6379", RedisKey: "k"}, "*notify.RedisNotifier", false},
		{"unknown", config.NotifyConfig{Backend: "kafka"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := New(tt.cfg, aws.Config{Region: "us-east-1"})
			if tt.wantErr {
				if !errors.IsConfiguration(err) {
					t.Errorf("expected configuration error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer n.Close()
			if got := fmt.Sprintf("%T", n); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
