package amqp

import (
	"context"
	"fmt"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/homewatt/homewatt-core/internal/infrastructure/config"
)

// restartDelay is the pause before a consumer re-dials after losing its
// connection or channel. Variable so tests can shrink it.
var restartDelay = 5 * time.Second

const (
	// attemptsHeader carries the per-message delivery attempt counter used
	// for dead-letter routing.
	attemptsHeader = "x-homewatt-attempts"

	// deadQueueSuffix is appended to a stream's queue name to form its
	// dead-letter queue.
	deadQueueSuffix = ".dead"
)

// Handler processes a single delivery payload.
//
// Returning nil acknowledges the message. Returning an error rejects it: the
// message is either requeued or, with dead-lettering enabled, republished
// with an incremented attempt counter and eventually parked on the
// dead-letter queue.
//
// Handlers run sequentially per consumer and must tolerate duplicate and
// out-of-order deliveries.
type Handler func(ctx context.Context, body []byte) error

// consumeChannel is the slice of amqp091.Channel the consumer depends on.
type consumeChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// consumeConnector establishes a consume channel to the broker.
// Replaceable in tests.
type consumeConnector func(url string) (consumeChannel, error)

func dialConsumeChannel(url string) (consumeChannel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: open channel: %w", ErrConnectionFailed, err)
	}

	return &consumerChannel{conn: conn, ch: ch}, nil
}

type consumerChannel struct {
	conn *amqp091.Connection
	ch   *amqp091.Channel
}

func (c *consumerChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	return c.ch.Qos(prefetchCount, prefetchSize, global)
}

func (c *consumerChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	return c.ch.QueueDeclare(name, durable, autoDelete, exclusive, noWait, args)
}

func (c *consumerChannel) ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error) {
	return c.ch.ConsumeWithContext(ctx, queue, consumer, autoAck, exclusive, noLocal, noWait, args)
}

func (c *consumerChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	return c.ch.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}

func (c *consumerChannel) Close() error {
	c.ch.Close()
	return c.conn.Close()
}

// Consumer maintains a durable subscription on one event stream and feeds
// each delivery through a Handler.
//
// Run supervises the subscription: when the connection drops or the delivery
// stream ends, it waits restartDelay and dials again. Deliveries are
// processed one at a time in arrival order; the broker holds at most the
// configured prefetch count unacknowledged.
type Consumer struct {
	cfg        config.StreamConfig
	deadLetter config.DeadLetterConfig
	handler    Handler
	connect    consumeConnector
	logger     Logger
}

// NewConsumer creates a consumer for the given stream. Nothing connects
// until Run is called.
func NewConsumer(cfg config.StreamConfig, deadLetter config.DeadLetterConfig, handler Handler, logger Logger) *Consumer {
	return &Consumer{
		cfg:        cfg,
		deadLetter: deadLetter,
		handler:    handler,
		connect:    dialConsumeChannel,
		logger:     logger,
	}
}

// Run blocks consuming the stream until ctx is cancelled, restarting the
// subscription after broker failures. It always returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("consumer stopped, restarting",
			"queue", c.cfg.Queue,
			"retry_in", restartDelay.String(),
			"error", err,
		)

		if err := sleepCtx(ctx, restartDelay); err != nil {
			return err
		}
	}
}

// consume runs one subscription lifecycle: dial, declare, drain deliveries.
// It returns when the delivery stream closes or ctx is cancelled.
func (c *Consumer) consume(ctx context.Context) error {
	ch, err := c.connect(c.cfg.URL)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", c.cfg.Queue, err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, c.cfg.Queue, c.cfg.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming %q: %w", c.cfg.Queue, err)
	}

	c.logger.Info("consuming",
		"queue", c.cfg.Queue,
		"prefetch", c.cfg.Prefetch,
		"consumer_tag", c.cfg.ConsumerTag,
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%w: queue %q", ErrStreamClosed, c.cfg.Queue)
			}
			c.handleDelivery(ctx, ch, d)
		}
	}
}

// handleDelivery runs the handler and settles the delivery. Settlement
// failures are logged, not returned: an unsettled message is redelivered by
// the broker once the channel drops, which the supervising loop handles.
func (c *Consumer) handleDelivery(ctx context.Context, ch consumeChannel, d amqp091.Delivery) {
	err := c.handler(ctx, d.Body)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("ack failed", "queue", c.cfg.Queue, "error", ackErr)
		}
		return
	}

	c.logger.Warn("handler rejected delivery",
		"queue", c.cfg.Queue,
		"error", err,
	)

	if !c.deadLetter.Enabled {
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("nack failed", "queue", c.cfg.Queue, "error", nackErr)
		}
		return
	}

	if retryErr := c.retryOrPark(ctx, ch, d); retryErr != nil {
		c.logger.Error("dead-letter republish failed, requeueing",
			"queue", c.cfg.Queue,
			"error", retryErr,
		)
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("nack failed", "queue", c.cfg.Queue, "error", nackErr)
		}
	}
}

// retryOrPark republishes a failed delivery with its attempt counter
// incremented. Below the ceiling it goes back on the source queue; at the
// ceiling it is parked on the dead-letter queue. The original delivery is
// acknowledged only after the republish lands.
func (c *Consumer) retryOrPark(ctx context.Context, ch consumeChannel, d amqp091.Delivery) error {
	attempts := deliveryAttempts(d) + 1

	target := c.cfg.Queue
	if attempts >= c.deadLetter.MaxAttempts {
		target = c.cfg.Queue + deadQueueSuffix
		if _, err := ch.QueueDeclare(target, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dead-letter queue %q: %w", target, err)
		}
		c.logger.Error("parking message on dead-letter queue",
			"queue", c.cfg.Queue,
			"dead_queue", target,
			"attempts", attempts,
		)
	}

	headers := amqp091.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[attemptsHeader] = int64(attempts)

	err := ch.PublishWithContext(ctx, "", target, false, false, amqp091.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         d.Body,
	})
	if err != nil {
		return fmt.Errorf("republish to %q: %w", target, err)
	}

	if ackErr := d.Ack(false); ackErr != nil {
		return fmt.Errorf("ack after republish: %w", ackErr)
	}

	return nil
}

// deliveryAttempts reads the attempt counter header, tolerating the integer
// widths different AMQP clients encode.
func deliveryAttempts(d amqp091.Delivery) int {
	raw, ok := d.Headers[attemptsHeader]
	if !ok {
		return 0
	}

	switch v := raw.(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
