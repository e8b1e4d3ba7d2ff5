package event

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Event type tags published on the sync stream.
const (
	TypeDeviceCreated = "DEVICE_CREATED"
	TypeDeviceUpdated = "DEVICE_UPDATED"
	TypeDeviceDeleted = "DEVICE_DELETED"
	TypeUserCreated   = "USER_CREATED"
	TypeUserUpdated   = "USER_UPDATED"
	TypeUserDeleted   = "USER_DELETED"
)

// Kind is the closed set of event kinds consumers dispatch on.
//
// The wire tag stays an open string for forward compatibility; Kind gives
// consumers an exhaustive switch with an explicit unknown fallback.
type Kind int

const (
	// KindUnknown covers every tag this version does not recognise.
	KindUnknown Kind = iota
	KindDeviceCreated
	KindDeviceUpdated
	KindDeviceDeleted
	KindUserCreated
	KindUserUpdated
	KindUserDeleted
)

// ParseKind maps a wire tag to its Kind. Unrecognised tags map to KindUnknown.
func ParseKind(tag string) Kind {
	switch tag {
	case TypeDeviceCreated:
		return KindDeviceCreated
	case TypeDeviceUpdated:
		return KindDeviceUpdated
	case TypeDeviceDeleted:
		return KindDeviceDeleted
	case TypeUserCreated:
		return KindUserCreated
	case TypeUserUpdated:
		return KindUserUpdated
	case TypeUserDeleted:
		return KindUserDeleted
	default:
		return KindUnknown
	}
}

// String returns the wire tag for known kinds, "UNKNOWN" otherwise.
func (k Kind) String() string {
	switch k {
	case KindDeviceCreated:
		return TypeDeviceCreated
	case KindDeviceUpdated:
		return TypeDeviceUpdated
	case KindDeviceDeleted:
		return TypeDeviceDeleted
	case KindUserCreated:
		return TypeUserCreated
	case KindUserUpdated:
		return TypeUserUpdated
	case KindUserDeleted:
		return TypeUserDeleted
	default:
		return "UNKNOWN"
	}
}

// Envelope is the outer message structure on the sync stream.
type Envelope struct {
	EventType string         `json:"event_type"`
	UserID    *uuid.UUID     `json:"user_id,omitempty"`
	DeviceID  *uuid.UUID     `json:"device_id,omitempty"`
	Payload   *DevicePayload `json:"payload,omitempty"`
}

// DevicePayload is the device snapshot carried by device lifecycle events.
type DevicePayload struct {
	ID             uuid.UUID       `json:"id"`
	UserID         *uuid.UUID      `json:"user_id,omitempty"`
	Name           string          `json:"name"`
	MaxConsumption *float64        `json:"max_consumption,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// Kind returns the closed-variant kind for this envelope's tag.
func (e *Envelope) Kind() Kind {
	return ParseKind(e.EventType)
}

// DecodeEnvelope parses an envelope from its wire bytes.
// The event_type tag is required; everything else is optional.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if e.EventType == "" {
		return Envelope{}, fmt.Errorf("decoding envelope: missing event_type")
	}
	return e, nil
}

// NewDeviceCreated builds a DEVICE_CREATED envelope from a device snapshot.
func NewDeviceCreated(payload DevicePayload) Envelope {
	return newDeviceEnvelope(TypeDeviceCreated, payload)
}

// NewDeviceUpdated builds a DEVICE_UPDATED envelope from a device snapshot.
func NewDeviceUpdated(payload DevicePayload) Envelope {
	return newDeviceEnvelope(TypeDeviceUpdated, payload)
}

// NewDeviceDeleted builds a DEVICE_DELETED envelope. Deletions carry only the
// device id; consumers fall back to payload.id when it is absent, but
// producers built here always set the dedicated field.
func NewDeviceDeleted(deviceID uuid.UUID) Envelope {
	id := deviceID
	return Envelope{
		EventType: TypeDeviceDeleted,
		DeviceID:  &id,
	}
}

func newDeviceEnvelope(eventType string, payload DevicePayload) Envelope {
	p := payload
	id := p.ID
	return Envelope{
		EventType: eventType,
		UserID:    p.UserID,
		DeviceID:  &id,
		Payload:   &p,
	}
}
