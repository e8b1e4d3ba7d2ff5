package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/homewatt/homewatt-core/internal/infrastructure/config"
)

// publishAttempts bounds how many times a single publish is tried before
// the error is surfaced to the caller.
const publishAttempts = 3

// publishRetryDelay is the pause between publish attempts. Broker outages
// are usually either momentary (connection churn) or long (broker down);
// a short fixed delay handles the first case and fails fast on the second.
// Variable so tests can shrink it.
var publishRetryDelay = 2 * time.Second

// confirmation is the broker's pending delivery confirmation.
// *amqp091.DeferredConfirmation satisfies it.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// confirmChannel is the slice of amqp091.Channel the publisher depends on.
// Narrowing to an interface lets tests substitute a scripted channel without
// a running broker.
type confirmChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) (confirmation, error)
	IsClosed() bool
	Close() error
}

// confirmConnector establishes a confirm-mode channel to the broker.
// Replaceable in tests.
type confirmConnector func(url string) (confirmChannel, error)

// dialConfirmChannel opens a connection, a channel on it, and puts the
// channel into publisher-confirm mode. The connection is owned by the
// channel wrapper and closed with it.
func dialConfirmChannel(url string) (confirmChannel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: open channel: %w", ErrConnectionFailed, err)
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: enable confirms: %w", ErrConnectionFailed, err)
	}

	return &brokerChannel{conn: conn, ch: ch}, nil
}

// brokerChannel binds a channel to the connection that carries it so both
// are torn down together.
type brokerChannel struct {
	conn *amqp091.Connection
	ch   *amqp091.Channel
}

func (b *brokerChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	return b.ch.QueueDeclare(name, durable, autoDelete, exclusive, noWait, args)
}

func (b *brokerChannel) PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) (confirmation, error) {
	return b.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, mandatory, immediate, msg)
}

func (b *brokerChannel) IsClosed() bool {
	return b.ch.IsClosed() || b.conn.IsClosed()
}

func (b *brokerChannel) Close() error {
	b.ch.Close()
	return b.conn.Close()
}

// Publisher delivers events to a single durable queue with broker confirms.
//
// A channel handle is established lazily on first publish and cached for
// subsequent calls. When a publish fails the handle is discarded so the next
// attempt dials fresh.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - The mutex guards only handle exchange; publishes on a shared handle
//     proceed concurrently (amqp091.Channel is itself concurrency-safe).
type Publisher struct {
	cfg     config.StreamConfig
	connect confirmConnector
	logger  Logger

	mu sync.Mutex
	ch confirmChannel
}

// Logger is the logging surface the package needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NewPublisher creates a publisher for the given stream. No connection is
// made until the first publish.
func NewPublisher(cfg config.StreamConfig, logger Logger) *Publisher {
	return &Publisher{
		cfg:     cfg,
		connect: dialConfirmChannel,
		logger:  logger,
	}
}

// PublishJSON marshals body and publishes it via Publish. Marshal errors are
// returned immediately without touching the broker.
func (p *Publisher) PublishJSON(ctx context.Context, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return p.Publish(ctx, payload)
}

// Publish delivers payload as a persistent message to the configured queue,
// waiting for the broker's confirmation.
//
// Each of the bounded attempts covers the full cycle: obtain a channel,
// declare the queue, publish, await confirm. Transient failures invalidate
// the cached channel and retry after a short delay; the last error is
// returned wrapped in ErrPublishFailed once attempts are exhausted.
//
// Callers shipping non-critical telemetry may treat a returned error as
// log-and-continue; the message is lost but the publisher stays usable.
func (p *Publisher) Publish(ctx context.Context, payload []byte) error {
	var lastErr error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, publishRetryDelay); err != nil {
				return fmt.Errorf("%w: %w", ErrPublishFailed, err)
			}
		}

		lastErr = p.publishOnce(ctx, payload)
		if lastErr == nil {
			return nil
		}

		p.logger.Warn("publish attempt failed",
			"queue", p.cfg.Queue,
			"attempt", attempt,
			"error", lastErr,
		)
	}

	return fmt.Errorf("%w: after %d attempts: %w", ErrPublishFailed, publishAttempts, lastErr)
}

// publishOnce performs a single publish cycle against the cached channel.
func (p *Publisher) publishOnce(ctx context.Context, payload []byte) error {
	ch, err := p.ensureChannel()
	if err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(p.cfg.Queue, true, false, false, false, nil); err != nil {
		p.invalidate(ch)
		return fmt.Errorf("declare queue %q: %w", p.cfg.Queue, err)
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", p.cfg.Queue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	if err != nil {
		p.invalidate(ch)
		return fmt.Errorf("publish to %q: %w", p.cfg.Queue, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		p.invalidate(ch)
		return fmt.Errorf("await confirm: %w", err)
	}
	if !acked {
		p.invalidate(ch)
		return ErrNotConfirmed
	}

	return nil
}

// ensureChannel returns the cached channel, dialing a new one if none is
// cached or the cached handle has closed underneath us.
func (p *Publisher) ensureChannel() (confirmChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	if p.ch != nil {
		p.ch.Close()
		p.ch = nil
	}

	ch, err := p.connect(p.cfg.URL)
	if err != nil {
		return nil, err
	}

	p.ch = ch
	return ch, nil
}

// invalidate drops the cached channel, but only if it is still the handle
// the failing publish used. A concurrent publish may already have replaced
// it with a healthy one.
func (p *Publisher) invalidate(ch confirmChannel) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == ch {
		p.ch = nil
	}
	ch.Close()
}

// Close releases the cached channel and its connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return nil
	}

	err := p.ch.Close()
	p.ch = nil
	return err
}

// sleepCtx waits for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
