package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/boddenberg/travel-crm-go/internal/domain"
)

// HandlerFunc delivers one event. A returned error dead-letters the message.
type HandlerFunc func(ctx context.Context, event domain.NotificationEvent) error

// Worker consumes notification events and hands them to a handler.
type Worker struct {
	ch      *amqp.Channel
	handler HandlerFunc
	logger  *zap.Logger
}

// NewWorker consumes from ch.
func NewWorker(ch *amqp.Channel, handler HandlerFunc, logger *zap.Logger) *Worker {
	return &Worker{ch: ch, handler: handler, logger: logger}
}

// Run consumes queueName until ctx is cancelled or the delivery channel closes.
func (w *Worker) Run(ctx context.Context, queueName string) error {
	msgs, err := w.ch.ConsumeWithContext(ctx,
		queueName,
		"crm-delivery",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer on %s: %w", queueName, err)
	}

	w.logger.Info("delivery worker consuming", zap.String("queue", queueName))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var err error
	if w.process(ctx, d.Body) == nil {
		err = d.Ack(false)
	} else {
		err = d.Nack(false, false)
	}
	if err != nil {
		w.logger.Error("delivery worker: ack failed", zap.String("message_id", d.MessageId), zap.Error(err))
	}
}

// process decodes and delivers one message body.
func (w *Worker) process(ctx context.Context, body []byte) error {
	var event domain.NotificationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		w.logger.Warn("delivery worker: malformed message", zap.Error(err))
		return err
	}

	if err := w.handler(ctx, event); err != nil {
		w.logger.Error("delivery worker: handler failed",
			zap.String("notification_id", event.NotificationID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
		return err
	}

	w.logger.Info("notification delivered",
		zap.String("notification_id", event.NotificationID),
		zap.String("user_id", event.UserID),
	)
	return nil
}
