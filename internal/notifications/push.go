// Package notifications delivers campaign side-channel events: push updates
// for connected dashboards over SQS and campaign counters to CloudWatch.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"wacrm/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// PushPublisher sends PushUpdates to the queue consumed by the realtime
// gateway. Each message carries the company and event type as attributes so
// the gateway can route without decoding the body.
type PushPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewPushPublisher creates a PushPublisher targeting queueURL.
func NewPushPublisher(client SQSSender, queueURL string, logger *slog.Logger) *PushPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushPublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Publish serializes the update and sends it to the push queue.
func (p *PushPublisher) Publish(ctx context.Context, update types.PushUpdate) error {
	if update.CompanyID == "" {
		return fmt.Errorf("push publisher: update %q has no company_id", update.Type)
	}

	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("push publisher: failed to marshal update: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"company_id": {DataType: aws.String("String"), StringValue: aws.String(update.CompanyID)},
			"type":       {DataType: aws.String("String"), StringValue: aws.String(string(update.Type))},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamPushChannel,
			fmt.Sprintf("push publisher: failed to send message to %s: %v", p.queueURL, err), err)
	}

	p.logger.DebugContext(ctx, "push update published",
		"company_id", update.CompanyID,
		"type", update.Type,
	)
	return nil
}

// NoopPublisher discards updates. It is used when no push queue is
// configured.
type NoopPublisher struct{}

// Publish does nothing.
func (NoopPublisher) Publish(context.Context, types.PushUpdate) error { return nil }
