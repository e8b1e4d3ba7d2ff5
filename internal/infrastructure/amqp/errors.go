package amqp

import "errors"

// Sentinel errors for broker interaction failures. Wrap with fmt.Errorf and
// %w to add context while callers match with errors.Is.
var (
	// ErrConnectionFailed indicates the broker connection could not be
	// established or has been lost.
	ErrConnectionFailed = errors.New("broker connection failed")

	// ErrPublishFailed indicates a message could not be handed to the broker
	// after exhausting all publish attempts.
	ErrPublishFailed = errors.New("publish failed")

	// ErrNotConfirmed indicates the broker received a message but refused to
	// confirm it (returned a negative acknowledgement to the publisher).
	ErrNotConfirmed = errors.New("broker did not confirm delivery")

	// ErrStreamClosed indicates the consumer's delivery stream ended because
	// the underlying channel or connection closed.
	ErrStreamClosed = errors.New("delivery stream closed")
)
