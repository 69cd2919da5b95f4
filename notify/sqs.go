package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	pkgerrors "github.com/pkg/errors"

	"github.com/nijaru/vidsum/errors"
)

type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQSNotifier struct {
	Client   SQSAPI
	QueueURL string
}

func NewSQSNotifier(client SQSAPI, queueURL string) *SQSNotifier {
	return &SQSNotifier{
		Client:   client,
		QueueURL: queueURL,
	}
}

func (n *SQSNotifier) Notify(ctx context.Context, summary Summary) error {
	const op = "SQSNotifier.Notify"

	data, err := marshal(op, summary)
	if err != nil {
		return err
	}

	_, err = n.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.QueueURL),
		MessageBody: aws.String(string(data)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"status": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(summary.Status)),
			},
		},
	})
	if err != nil {
		return errors.Transport(op, pkgerrors.Wrap(err, "send message"), fmt.Sprintf("failed to notify %s", n.QueueURL))
	}
	return nil
}

func (n *SQSNotifier) Close() error { return nil }
