// Package amqp provides the reliable event distribution layer for HomeWatt Core.
//
// It wraps rabbitmq/amqp091-go with two building blocks:
//
//   - Publisher: turns a domain event into a durable message under
//     broker-confirmed delivery with bounded retry. A cached channel handle
//     is shared across concurrent publishes behind a mutex; the lock guards
//     only handle replacement, never network I/O.
//
//   - Consumer: maintains one durable subscription per event stream, applies
//     a handler per delivery, and translates the handler outcome into
//     acknowledge / negative-acknowledge-with-requeue. A supervising loop
//     restarts the subscription after connection-level errors.
//
// # Delivery guarantees
//
// The layer targets at-least-once delivery: the broker may redeliver a
// negative-acknowledged message at an arbitrary later point, interleaved
// with newer messages. Handlers must therefore be safe under duplicate and
// out-of-order delivery (the aggregation pipeline is: bucket accumulation is
// commutative, directory upserts are idempotent).
//
// # Poison messages
//
// A delivery whose handler always fails would otherwise loop through
// nack/redeliver forever. With dead-lettering enabled, failed deliveries are
// republished with an attempt-counter header and, at the configured ceiling,
// routed to "<queue>.dead" instead of being requeued.
//
// # Backpressure
//
// The consumer sets a per-channel QoS prefetch limit, bounding in-flight
// unacknowledged deliveries against a slow downstream.
package amqp
