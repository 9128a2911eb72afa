// Package queue carries created notifications to the delivery worker over
// RabbitMQ.
package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "ex.notifications"
	DLXName      = "ex.notifications.dlx"
	RoutingKey   = "k.notification"
)

// RabbitMQ holds one connection and channel with the notification topology declared.
type RabbitMQ struct {
	Conn  *amqp.Connection
	Ch    *amqp.Channel
	Queue string
}

// NewRabbitMQ dials url and declares the exchange, queue and dead-letter queue.
func NewRabbitMQ(url, queueName string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := setupTopology(ch, queueName); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare topology: %w", err)
	}

	return &RabbitMQ{Conn: conn, Ch: ch, Queue: queueName}, nil
}

// setupTopology is idempotent; rejected messages land in <queue>.dlq.
func setupTopology(ch *amqp.Channel, queueName string) error {
	dlq := queueName + ".dlq"

	if err := ch.ExchangeDeclare(DLXName, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(dlq, RoutingKey, DLXName, false, nil); err != nil {
		return err
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    DLXName,
		"x-dead-letter-routing-key": RoutingKey,
	}
	if err := ch.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, args); err != nil {
		return err
	}
	return ch.QueueBind(queueName, RoutingKey, ExchangeName, false, nil)
}

// Close closes the channel and the connection.
func (r *RabbitMQ) Close() error {
	if err := r.Ch.Close(); err != nil {
		r.Conn.Close()
		return err
	}
	return r.Conn.Close()
}
