package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/resilience/circuitbreaker"
	"notification-prep/internal/resilience/retry"
	"notification-prep/internal/usecase/prepare"
)

// AttemptHeader carries the 1-based attempt number of a prepare message.
const AttemptHeader = "x-prepare-attempt"

// ErrNacked is returned when the broker refuses a published message.
var ErrNacked = errors.New("queue: publish not confirmed by broker")

type publishChannel interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	Close() error
}

// Publisher publishes route messages and requeues prepare messages on a
// confirm-mode channel. Failures are reported as retryable.
type Publisher struct {
	ch       publishChannel
	topology Topology
	breaker  *circuitbreaker.CircuitBreaker
	now      func() time.Time
}

// NewPublisher opens a confirm-mode channel on conn.
func NewPublisher(conn *amqp.Connection, t Topology) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("NewPublisher: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("NewPublisher: confirm mode: %w", err)
	}
	return newPublisher(ch, t), nil
}

func newPublisher(ch publishChannel, t Topology) *Publisher {
	return &Publisher{
		ch:       ch,
		topology: t,
		breaker:  circuitbreaker.New(circuitbreaker.BrokerConfig()),
		now:      time.Now,
	}
}

// Publish sends msg to the route queue.
func (p *Publisher) Publish(ctx context.Context, msg entity.RouteMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("Publish: marshal: %w", err)
	}
	return p.publish(ctx, p.topology.RouteQueue, amqp.Publishing{
		MessageId: msg.MessageID,
		Type:      msg.Type,
		Headers:   amqp.Table{"tenant-id": msg.TenantID},
		Body:      body,
	})
}

// Requeue republishes a prepare delivery for the given attempt. Headers and
// message properties are copied; only the attempt header changes.
func (p *Publisher) Requeue(ctx context.Context, d prepare.Delivery, attempt int) error {
	headers := make(amqp.Table, len(d.Headers)+1)
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[AttemptHeader] = int32(attempt)

	id := d.MessageID
	if id == "" {
		id = uuid.NewString()
	}
	return p.publish(ctx, p.topology.PrepareQueue, amqp.Publishing{
		MessageId:     id,
		CorrelationId: d.CorrelationID,
		Type:          d.Type,
		Headers:       headers,
		Body:          d.Body,
	})
}

func (p *Publisher) publish(ctx context.Context, key string, msg amqp.Publishing) error {
	msg.ContentType = "application/json"
	msg.DeliveryMode = amqp.Persistent
	msg.Timestamp = p.now().UTC()

	err := p.breaker.Do(func() error {
		conf, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.topology.Exchange, key, false, false, msg)
		if err != nil {
			return err
		}
		if conf == nil {
			return nil
		}
		acked, err := conf.WaitContext(ctx)
		if err != nil {
			return err
		}
		if !acked {
			return ErrNacked
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return retry.Transient(fmt.Errorf("publish %s: %w", key, err))
}

// Close closes the publishing channel.
func (p *Publisher) Close() error {
	return p.ch.Close()
}
