// Package queue is the RabbitMQ transport of the prepare pipeline: it
// consumes the prepare queue, publishes route messages, and republishes
// prepare messages for another attempt.
package queue

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"notification-prep/internal/resilience/retry"
)

// Topology names the broker objects the pipeline uses. Every queue is bound to
// Exchange with its own name as the routing key.
type Topology struct {
	Exchange     string
	PrepareQueue string
	RouteQueue   string
}

// DeadExchange receives prepare messages rejected after their last attempt.
func (t Topology) DeadExchange() string { return t.Exchange + ".dead" }

// DeadQueue holds rejected prepare messages for inspection.
func (t Topology) DeadQueue() string { return t.PrepareQueue + ".dead" }

// Dial connects to the broker, retrying with backoff while ctx allows.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	err := retry.WithBackoff(ctx, retry.DialConfig(), func() error {
		c, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("rabbit dial failed", slog.Any("error", err))
			return retry.Transient(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("queue.Dial: %w", err)
	}
	logger.Info("rabbit connected")
	return conn, nil
}

// Declare creates the exchanges, queues and bindings of t. It is idempotent.
func Declare(ch *amqp.Channel, t Topology) error {
	if err := ch.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", t.Exchange, err)
	}
	if err := ch.ExchangeDeclare(t.DeadExchange(), "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", t.DeadExchange(), err)
	}

	prepareArgs := amqp.Table{"x-dead-letter-exchange": t.DeadExchange()}
	queues := []struct {
		name, exchange, key string
		args                amqp.Table
	}{
		{name: t.PrepareQueue, exchange: t.Exchange, key: t.PrepareQueue, args: prepareArgs},
		{name: t.DeadQueue(), exchange: t.DeadExchange(), key: ""},
		{name: t.RouteQueue, exchange: t.Exchange, key: t.RouteQueue},
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
		if err := ch.QueueBind(q.name, q.key, q.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q.name, err)
		}
	}
	return nil
}
