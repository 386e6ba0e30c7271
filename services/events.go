package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yashrajoria/storefront/models"
	aws_pkg "github.com/yashrajoria/storefront/pkg/aws"
	"go.uber.org/zap"
)

type eventPublisher interface {
	PublishEvent(ctx context.Context, topicArn, eventType string, message []byte) error
}

// MetricsRecorder is the slice of the CloudWatch client services use.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, name string, dimensions map[string]string) error
}

// OrderEvents publishes order lifecycle events to SNS. Failures are logged
// and never surface to the caller.
type OrderEvents struct {
	sns      aws_pkg.SNSPublisher
	topicArn string
	metrics  MetricsRecorder
	logger   *zap.Logger
}

func NewOrderEvents(sns aws_pkg.SNSPublisher, topicArn string, metrics MetricsRecorder, logger *zap.Logger) *OrderEvents {
	return &OrderEvents{sns: sns, topicArn: topicArn, metrics: metrics, logger: logger}
}

func (p *OrderEvents) Publish(eventType string, o *models.Order) {
	if p == nil {
		return
	}
	p.count(eventType)

	if p.sns == nil || p.topicArn == "" {
		p.logger.Debug("SNS not configured, skipping order event", zap.String("event_type", eventType))
		return
	}

	body, err := json.Marshal(models.NewOrderEvent(eventType, o))
	if err != nil {
		p.logger.Error("Failed to marshal order event", zap.String("event_type", eventType), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if ep, ok := p.sns.(eventPublisher); ok {
		err = ep.PublishEvent(ctx, p.topicArn, eventType, body)
	} else {
		err = p.sns.Publish(ctx, p.topicArn, body)
	}
	if err != nil {
		p.logger.Error("Failed to publish order event",
			zap.String("event_type", eventType),
			zap.String("order_id", o.ID.Hex()),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("Published order event",
		zap.String("event_type", eventType),
		zap.String("tracking_id", o.TrackingID),
	)
}

var eventMetrics = map[string]string{
	models.EventOrderPlaced:    aws_pkg.MetricOrdersPlaced,
	models.EventOrderCancelled: aws_pkg.MetricOrdersCancelled,
	models.EventOrderPaid:      aws_pkg.MetricPaymentSucceeded,
	models.EventPaymentFailed:  aws_pkg.MetricPaymentFailed,
}

func (p *OrderEvents) count(eventType string) {
	if name, ok := eventMetrics[eventType]; ok {
		p.recordMetric(name)
	}
}

// recordMetric bumps a CloudWatch counter without blocking the caller.
func (p *OrderEvents) recordMetric(name string) {
	if p == nil || p.metrics == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.metrics.RecordCount(ctx, name, map[string]string{"Service": "storefront"})
	}()
}
