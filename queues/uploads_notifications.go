package queues

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Yulian302/lfusys-services-studio/logging"
	"github.com/Yulian302/lfusys-services-studio/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type UploadsNotifier interface {
	Notify(ctx context.Context, n models.UploadNotification) (string, error)
}

// SendMessageAPI is the slice of the SQS client the notifier needs.
type SendMessageAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type UploadsNotifierImpl struct {
	client   SendMessageAPI
	queueUrl string

	logger logging.Logger
}

func NewUploadsNotifierImpl(client SendMessageAPI, queueUrl string, l logging.Logger) *UploadsNotifierImpl {
	return &UploadsNotifierImpl{
		client:   client,
		queueUrl: queueUrl,
		logger:   l,
	}
}

// Notify publishes one message per uploaded ZIP and returns its message id.
func (n *UploadsNotifierImpl) Notify(ctx context.Context, evt models.UploadNotification) (string, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("marshal notification: %w", err)
	}

	out, err := n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueUrl),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"fileType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(models.NotificationFileType),
			},
			"source": {
				DataType:    aws.String("String"),
				StringValue: aws.String(models.UploadSource),
			},
		},
	})
	if err != nil {
		n.logger.Error("failed to send upload notification", "key", evt.Key, "error", err)
		return "", fmt.Errorf("failed to send upload notification: %w", err)
	}

	messageID := aws.ToString(out.MessageId)
	n.logger.Info("upload notification sent", "key", evt.Key, "message_id", messageID)
	return messageID, nil
}
