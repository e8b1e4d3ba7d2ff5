package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/homewatt/homewatt-core/internal/event"
)

// Logger is the logging surface the sync handler needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Sync applies lifecycle events from the sync stream to the projection.
//
// HandleEvent is shaped to plug into the consumer runner: a nil return
// acknowledges the event, an error requeues it. Malformed-but-parseable
// events (missing payload, missing target id, unknown tags) are logged and
// acknowledged rather than requeued, since redelivery cannot fix them.
type Sync struct {
	repo   Repository
	logger Logger
}

// NewSync creates the lifecycle-event handler.
func NewSync(repo Repository, logger Logger) *Sync {
	return &Sync{repo: repo, logger: logger}
}

// HandleEvent decodes one envelope and applies it to the projection.
func (s *Sync) HandleEvent(ctx context.Context, body []byte) error {
	env, err := event.DecodeEnvelope(body)
	if err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Kind() {
	case event.KindDeviceCreated, event.KindDeviceUpdated:
		return s.applyUpsert(ctx, &env)
	case event.KindDeviceDeleted:
		return s.applyDelete(ctx, &env)
	default:
		s.logger.Info("ignoring event", "event_type", env.EventType)
		return nil
	}
}

func (s *Sync) applyUpsert(ctx context.Context, env *event.Envelope) error {
	if env.Payload == nil {
		s.logger.Warn("device event without payload, skipping",
			"event_type", env.EventType,
		)
		return nil
	}

	rec := &Record{
		ID:             env.Payload.ID,
		UserID:         env.Payload.UserID,
		Name:           env.Payload.Name,
		MaxConsumption: env.Payload.MaxConsumption,
		Metadata:       env.Payload.Metadata,
	}

	if err := s.repo.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("apply %s: %w", env.EventType, err)
	}

	s.logger.Info("device synced",
		"event_type", env.EventType,
		"device_id", rec.ID,
	)
	return nil
}

func (s *Sync) applyDelete(ctx context.Context, env *event.Envelope) error {
	id, ok := deleteTarget(env)
	if !ok {
		s.logger.Warn("device delete without target id, skipping")
		return nil
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("apply %s: %w", env.EventType, err)
	}

	s.logger.Info("device removed", "device_id", id)
	return nil
}

// deleteTarget resolves the device id of a delete event: the envelope-level
// device_id when present, else the payload id.
func deleteTarget(env *event.Envelope) (uuid.UUID, bool) {
	if env.DeviceID != nil {
		return *env.DeviceID, true
	}
	if env.Payload != nil {
		return env.Payload.ID, true
	}
	return uuid.UUID{}, false
}
