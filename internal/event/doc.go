// Package event defines the wire types carried over the message channel.
//
// Two streams exist: the sync stream carries lifecycle Envelopes for devices
// and users, the measurement stream carries raw Measurements. All messages
// are UTF-8 JSON and immutable once published.
//
// Event type tags are open strings ("DEVICE_CREATED", "USER_UPDATED", ...):
// producers may introduce new tags at any time, and an envelope with an
// unrecognised tag is still valid. Consumers dispatch on the closed Kind
// type, which maps every unrecognised tag to KindUnknown so new tags are
// ignored rather than treated as errors.
package event
