package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSPublisher publishes raw event payloads to a topic.
type SNSPublisher interface {
	Publish(ctx context.Context, topicArn string, message []byte) error
}

type SNSClient struct {
	client *sns.Client
}

func NewSNSClient(cfg sdkaws.Config) *SNSClient {
	return &SNSClient{client: sns.NewFromConfig(cfg)}
}

// Publish sends message to topicArn. The "event_type" message attribute is
// filled from PublishEvent; plain Publish sends no attributes.
func (s *SNSClient) Publish(ctx context.Context, topicArn string, message []byte) error {
	return s.publish(ctx, topicArn, message, nil)
}

// PublishEvent publishes message tagged with an event_type attribute so
// subscribers can filter on it.
func (s *SNSClient) PublishEvent(ctx context.Context, topicArn, eventType string, message []byte) error {
	attrs := map[string]types.MessageAttributeValue{
		"event_type": {
			DataType:    sdkaws.String("String"),
			StringValue: sdkaws.String(eventType),
		},
	}
	return s.publish(ctx, topicArn, message, attrs)
}

func (s *SNSClient) publish(ctx context.Context, topicArn string, message []byte, attrs map[string]types.MessageAttributeValue) error {
	if topicArn == "" {
		return fmt.Errorf("empty topicArn")
	}
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          sdkaws.String(topicArn),
		Message:           sdkaws.String(string(message)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("sns publish failed for topic %s: %w", topicArn, err)
	}
	return nil
}
