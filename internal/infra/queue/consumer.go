package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"notification-prep/internal/usecase/prepare"
)

// Handler processes one prepare delivery.
type Handler interface {
	Handle(ctx context.Context, d prepare.Delivery) (prepare.Disposition, error)
}

// Observer is told about every delivery the consumer handles.
type Observer interface {
	DeliveryStarted()
	DeliveryFinished(disposition string, elapsed time.Duration)
}

// Consumer runs Handler over the prepare queue.
//
// Dispositions map onto the broker as follows: Ack and Requeued acknowledge
// the delivery, Retry returns it to the queue, and Reject dead-letters it.
type Consumer struct {
	Handler     Handler
	Observer    Observer
	Logger      *slog.Logger
	Concurrency int
	// Timeout bounds each Handle call. In-flight deliveries are allowed to
	// finish within Timeout after shutdown begins.
	Timeout time.Duration
}

// Run consumes queue on a new channel of conn until ctx is done or the
// channel closes. It returns nil only when ctx ends the run.
func (c *Consumer) Run(ctx context.Context, conn *amqp.Connection, queue string, prefetch int) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("Consumer.Run: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("Consumer.Run: qos: %w", err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("Consumer.Run: consume %s: %w", queue, err)
	}

	c.logger().Info("consumer started",
		slog.String("queue", queue),
		slog.Int("prefetch", prefetch),
		slog.Int("concurrency", c.concurrency()))

	c.Serve(ctx, deliveries)
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("Consumer.Run: delivery channel for %s closed", queue)
}

// Serve handles deliveries with Concurrency workers until ctx is done or
// deliveries is closed, then waits for in-flight deliveries to settle.
func (c *Consumer) Serve(ctx context.Context, deliveries <-chan amqp.Delivery) {
	var wg sync.WaitGroup
	for i := 0; i < c.concurrency(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					c.handle(ctx, d)
				}
			}
		}()
	}
	wg.Wait()
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	start := time.Now()
	if c.Observer != nil {
		c.Observer.DeliveryStarted()
	}

	hctx := context.WithoutCancel(ctx)
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(hctx, c.Timeout)
		defer cancel()
	}

	disp, err := c.Handler.Handle(hctx, delivery(d))
	if err != nil {
		c.logger().Debug("delivery handled with error",
			slog.String("disposition", disp.String()),
			slog.Any("error", err))
	}

	if serr := settle(d, disp); serr != nil {
		c.logger().Error("failed to settle delivery",
			slog.String("disposition", disp.String()),
			slog.Uint64("delivery_tag", d.DeliveryTag),
			slog.Any("error", serr))
	}

	if c.Observer != nil {
		c.Observer.DeliveryFinished(disp.String(), time.Since(start))
	}
}

func settle(d amqp.Delivery, disp prepare.Disposition) error {
	switch disp {
	case prepare.Ack, prepare.Requeued:
		return d.Ack(false)
	case prepare.Retry:
		return d.Nack(false, true)
	default:
		return d.Nack(false, false)
	}
}

// Attempt reads AttemptHeader from headers. Messages without a usable header
// are on their first attempt.
func Attempt(headers amqp.Table) int {
	var n int64
	switch v := headers[AttemptHeader].(type) {
	case int:
		n = int64(v)
	case int16:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case string:
		n, _ = strconv.ParseInt(v, 10, 64)
	}
	if n < 1 {
		return 1
	}
	return int(n)
}

func (c *Consumer) concurrency() int {
	if c.Concurrency < 1 {
		return 1
	}
	return c.Concurrency
}

func (c *Consumer) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// delivery converts an amqp delivery, keeping the attributes a requeue
// carries over.
func delivery(d amqp.Delivery) prepare.Delivery {
	return prepare.Delivery{
		Body:          d.Body,
		Attempt:       Attempt(d.Headers),
		Headers:       d.Headers,
		MessageID:     d.MessageId,
		CorrelationID: d.CorrelationId,
		Type:          d.Type,
	}
}
