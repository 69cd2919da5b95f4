package inference

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrock/types"
	"github.com/aws/smithy-go"
	pkgerrors "github.com/pkg/errors"

	"github.com/nijaru/vidsum/errors"
	"github.com/nijaru/vidsum/models"
)

// BedrockAPI is the subset of the Bedrock control-plane client used here.
type BedrockAPI interface {
	CreateModelInvocationJob(ctx context.Context, params *bedrock.CreateModelInvocationJobInput, optFns ...func(*bedrock.Options)) (*bedrock.CreateModelInvocationJobOutput, error)
	GetModelInvocationJob(ctx context.Context, params *bedrock.GetModelInvocationJobInput, optFns ...func(*bedrock.Options)) (*bedrock.GetModelInvocationJobOutput, error)
}

type SubmitInput struct {
	JobName        string
	ModelID        string
	RoleARN        string
	InputLocation  string
	OutputLocation string
	TimeoutHours   int
}

type BedrockClient struct {
	client BedrockAPI
	now    func() time.Time
}

func NewBedrockClient(client BedrockAPI) *BedrockClient {
	return &BedrockClient{client: client, now: time.Now}
}

func NewBedrockClientFromConfig(awsCfg aws.Config) *BedrockClient {
	return NewBedrockClient(bedrock.NewFromConfig(awsCfg))
}

// Submit creates the batch job. The returned job is in Submitted state.
func (c *BedrockClient) Submit(ctx context.Context, in SubmitInput) (*models.Job, error) {
	const op = "BedrockClient.Submit"

	params := &bedrock.CreateModelInvocationJobInput{
		JobName: aws.String(in.JobName),
		ModelId: aws.String(in.ModelID),
		RoleArn: aws.String(in.RoleARN),
		InputDataConfig: &types.ModelInvocationJobInputDataConfigMemberS3InputDataConfig{
			Value: types.ModelInvocationJobS3InputDataConfig{
				S3Uri:         aws.String(in.InputLocation),
				S3InputFormat: types.S3InputFormatJsonl,
			},
		},
		OutputDataConfig: &types.ModelInvocationJobOutputDataConfigMemberS3OutputDataConfig{
			Value: types.ModelInvocationJobS3OutputDataConfig{
				S3Uri: aws.String(in.OutputLocation),
			},
		},
	}
	if in.TimeoutHours > 0 {
		params.TimeoutDurationInHours = aws.Int32(int32(in.TimeoutHours))
	}

	out, err := c.client.CreateModelInvocationJob(ctx, params)
	if err != nil {
		return nil, classify(op, pkgerrors.Wrap(err, "create model invocation job"), "failed to submit batch job")
	}

	now := c.now()
	return &models.Job{
		Handle:         aws.ToString(out.JobArn),
		Name:           in.JobName,
		Status:         models.StatusSubmitted,
		InputLocation:  in.InputLocation,
		OutputLocation: in.OutputLocation,
		SubmittedAt:    now,
		UpdatedAt:      now,
	}, nil
}

// Status fetches the current state of a job by handle. Status values are
// copied verbatim.
func (c *BedrockClient) Status(ctx context.Context, handle string) (*models.Job, error) {
	const op = "BedrockClient.Status"

	out, err := c.client.GetModelInvocationJob(ctx, &bedrock.GetModelInvocationJobInput{
		JobIdentifier: aws.String(handle),
	})
	if err != nil {
		return nil, classify(op, pkgerrors.Wrap(err, "get model invocation job"), fmt.Sprintf("failed to get status of %s", handle))
	}

	job := &models.Job{
		Handle:  aws.ToString(out.JobArn),
		Name:    aws.ToString(out.JobName),
		Status:  models.Status(out.Status),
		Message: aws.ToString(out.Message),
	}
	if job.Handle == "" {
		job.Handle = handle
	}
	if s3In, ok := out.InputDataConfig.(*types.ModelInvocationJobInputDataConfigMemberS3InputDataConfig); ok {
		job.InputLocation = aws.ToString(s3In.Value.S3Uri)
	}
	if s3Out, ok := out.OutputDataConfig.(*types.ModelInvocationJobOutputDataConfigMemberS3OutputDataConfig); ok {
		job.OutputLocation = aws.ToString(s3Out.Value.S3Uri)
	}
	if out.SubmitTime != nil {
		job.SubmittedAt = *out.SubmitTime
	}
	job.UpdatedAt = c.now()
	if out.LastModifiedTime != nil {
		job.UpdatedAt = *out.LastModifiedTime
	}

	return job, nil
}

// Errors the service raises for bad input, permissions or missing
// resources will fail the same way on every attempt.
var configurationCodes = map[string]bool{
	"ValidationException":         true,
	"AccessDeniedException":       true,
	"ResourceNotFoundException":   true,
	"ConflictException":           true,
	"UnrecognizedClientException": true,
}

func classify(op string, err error, message string) error {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) && configurationCodes[apiErr.ErrorCode()] {
		return errors.Configuration(op, err, fmt.Sprintf("%s (%s)", message, apiErr.ErrorCode()))
	}
	return errors.Transport(op, err, message)
}
