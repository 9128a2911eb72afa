package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/travel-crm-go/internal/domain"
)

var tracer = otel.Tracer("queue")

// Publisher is the subset of *amqp.Channel the producer needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Producer implements port.NotificationDispatcher by publishing each event
// as a persistent JSON message.
type Producer struct {
	ch     Publisher
	logger *zap.Logger
}

// NewProducer publishes on ch.
func NewProducer(ch Publisher, logger *zap.Logger) *Producer {
	return &Producer{ch: ch, logger: logger}
}

func (p *Producer) Dispatch(ctx context.Context, event domain.NotificationEvent) error {
	ctx, span := tracer.Start(ctx, "Queue.Dispatch")
	defer span.End()

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode notification event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    event.NotificationID,
			Type:         event.Type,
		},
	)
	if err != nil {
		return fmt.Errorf("publish notification %s: %w", event.NotificationID, err)
	}

	p.logger.Debug("notification published",
		zap.String("notification_id", event.NotificationID),
		zap.String("type", event.Type),
	)
	return nil
}

// LogDispatcher is used when no broker is configured: events stay in the
// in-app list and are only logged.
type LogDispatcher struct {
	Logger *zap.Logger
}

func (d LogDispatcher) Dispatch(_ context.Context, event domain.NotificationEvent) error {
	d.Logger.Debug("notification not dispatched, no broker configured",
		zap.String("notification_id", event.NotificationID),
		zap.String("user_id", event.UserID),
		zap.String("type", event.Type),
	)
	return nil
}
