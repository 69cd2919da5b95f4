// Package inferencetest provides a scripted Bedrock batch API for tests.
package inferencetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrock/types"
)

const arnPrefix = "arn:aws:bedrock:us-east-1:123456789012:model-invocation-job/"

type job struct {
	name      string
	input     string
	output    string
	polls     int
	completed bool
}

type FakeBedrock struct {
	mu   sync.Mutex
	jobs map[string]*job
	seq  int

	// Statuses is returned in order by successive status calls for a job;
	// the last entry repeats.
	Statuses []types.ModelInvocationJobStatus
	Message  string

	CreateErr error
	GetErr    error

	// OnRetrievable runs once, the first time a job reports a retrievable
	// status. Tests use it to write output artifacts.
	OnRetrievable func(jobID, inputURI, outputURI string)

	CreateCalls int
	GetCalls    int
	LastCreate  *bedrock.CreateModelInvocationJobInput
}

func NewFakeBedrock(statuses ...types.ModelInvocationJobStatus) *FakeBedrock {
	if len(statuses) == 0 {
		statuses = []types.ModelInvocationJobStatus{types.ModelInvocationJobStatusCompleted}
	}
	return &FakeBedrock{
		jobs:     make(map[string]*job),
		Statuses: statuses,
	}
}

// AddJob registers an existing job, as if submitted by an earlier run.
func (f *FakeBedrock) AddJob(jobID, inputURI, outputURI string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	arn := arnPrefix + jobID
	f.jobs[arn] = &job{name: jobID, input: inputURI, output: outputURI}
	return arn
}

func (f *FakeBedrock) CreateModelInvocationJob(ctx context.Context, in *bedrock.CreateModelInvocationJobInput, _ ...func(*bedrock.Options)) (*bedrock.CreateModelInvocationJobOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CreateCalls++
	f.LastCreate = in
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	f.seq++
	arn := fmt.Sprintf("%sjob%04d", arnPrefix, f.seq)
	j := &job{name: aws.ToString(in.JobName)}
	if s3In, ok := in.InputDataConfig.(*types.ModelInvocationJobInputDataConfigMemberS3InputDataConfig); ok {
		j.input = aws.ToString(s3In.Value.S3Uri)
	}
	if s3Out, ok := in.OutputDataConfig.(*types.ModelInvocationJobOutputDataConfigMemberS3OutputDataConfig); ok {
		j.output = aws.ToString(s3Out.Value.S3Uri)
	}
	f.jobs[arn] = j

	return &bedrock.CreateModelInvocationJobOutput{JobArn: aws.String(arn)}, nil
}

func (f *FakeBedrock) GetModelInvocationJob(ctx context.Context, in *bedrock.GetModelInvocationJobInput, _ ...func(*bedrock.Options)) (*bedrock.GetModelInvocationJobOutput, error) {
	f.mu.Lock()

	f.GetCalls++
	if f.GetErr != nil {
		f.mu.Unlock()
		return nil, f.GetErr
	}

	arn := aws.ToString(in.JobIdentifier)
	j, ok := f.jobs[arn]
	if !ok {
		f.mu.Unlock()
		return nil, &types.ResourceNotFoundException{Message: aws.String("job not found")}
	}

	idx := j.polls
	if idx >= len(f.Statuses) {
		idx = len(f.Statuses) - 1
	}
	j.polls++
	status := f.Statuses[idx]

	var hook func(jobID, inputURI, outputURI string)
	if (status == types.ModelInvocationJobStatusCompleted || status == types.ModelInvocationJobStatusPartiallyCompleted) && !j.completed {
		j.completed = true
		hook = f.OnRetrievable
	}

	now := time.Now()
	out := &bedrock.GetModelInvocationJobOutput{
		JobArn:           aws.String(arn),
		JobName:          aws.String(j.name),
		Status:           status,
		SubmitTime:       aws.Time(now.Add(-time.Hour)),
		LastModifiedTime: aws.Time(now),
		InputDataConfig: &types.ModelInvocationJobInputDataConfigMemberS3InputDataConfig{
			Value: types.ModelInvocationJobS3InputDataConfig{S3Uri: aws.String(j.input)},
		},
		OutputDataConfig: &types.ModelInvocationJobOutputDataConfigMemberS3OutputDataConfig{
			Value: types.ModelInvocationJobS3OutputDataConfig{S3Uri: aws.String(j.output)},
		},
	}
	if f.Message != "" {
		out.Message = aws.String(f.Message)
	}
	f.mu.Unlock()

	if hook != nil {
		hook(arn[len(arnPrefix):], j.input, j.output)
	}
	return out, nil
}
