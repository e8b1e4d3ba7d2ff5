package directory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/homewatt/homewatt-core/internal/event"
)

// fakeRepo records the projection calls the sync handler makes.
type fakeRepo struct {
	upserts      []Record
	deletes      []uuid.UUID
	placeholders []uuid.UUID
	err          error
}

func (f *fakeRepo) GetByID(context.Context, uuid.UUID) (*Record, error) {
	return nil, ErrDeviceNotFound
}

func (f *fakeRepo) List(context.Context) ([]Record, error) { return nil, nil }

func (f *fakeRepo) Upsert(_ context.Context, rec *Record) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, *rec)
	return nil
}

func (f *fakeRepo) EnsurePlaceholder(_ context.Context, id uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.placeholders = append(f.placeholders, id)
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.deletes = append(f.deletes, id)
	return nil
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any) {}
func (nopLogger) Warn(string, ...any) {}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestHandleEventDeviceCreated(t *testing.T) {
	repo := &fakeRepo{}
	s := NewSync(repo, nopLogger{})

	userID := uuid.New()
	maxConsumption := 2.0
	env := event.NewDeviceCreated(event.DevicePayload{
		ID:             uuid.New(),
		UserID:         &userID,
		Name:           "Dishwasher",
		MaxConsumption: &maxConsumption,
		Metadata:       []byte(`{"brand":"x"}`),
	})

	if err := s.HandleEvent(context.Background(), mustJSON(t, env)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	if len(repo.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(repo.upserts))
	}
	got := repo.upserts[0]
	if got.ID != env.Payload.ID {
		t.Errorf("upserted ID = %v, want %v", got.ID, env.Payload.ID)
	}
	if got.Name != "Dishwasher" {
		t.Errorf("upserted Name = %q", got.Name)
	}
	if got.MaxConsumption == nil || *got.MaxConsumption != 2.0 {
		t.Errorf("upserted MaxConsumption = %v, want 2.0", got.MaxConsumption)
	}
}

func TestHandleEventDeviceUpdated(t *testing.T) {
	repo := &fakeRepo{}
	s := NewSync(repo, nopLogger{})

	env := event.NewDeviceUpdated(event.DevicePayload{
		ID:   uuid.New(),
		Name: "Dishwasher (kitchen)",
	})

	if err := s.HandleEvent(context.Background(), mustJSON(t, env)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if len(repo.upserts) != 1 {
		t.Errorf("upserts = %d, want 1", len(repo.upserts))
	}
}

func TestHandleEventDeviceDeleted(t *testing.T) {
	repo := &fakeRepo{}
	s := NewSync(repo, nopLogger{})

	id := uuid.New()
	env := event.NewDeviceDeleted(id)

	if err := s.HandleEvent(context.Background(), mustJSON(t, env)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if len(repo.deletes) != 1 || repo.deletes[0] != id {
		t.Errorf("deletes = %v, want [%v]", repo.deletes, id)
	}
}

func TestHandleEventDeleteFallsBackToPayloadID(t *testing.T) {
	repo := &fakeRepo{}
	s := NewSync(repo, nopLogger{})

	id := uuid.New()
	body := mustJSON(t, map[string]any{
		"event_type": event.TypeDeviceDeleted,
		"payload":    map[string]any{"id": id.String(), "name": "x"},
	})

	if err := s.HandleEvent(context.Background(), body); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if len(repo.deletes) != 1 || repo.deletes[0] != id {
		t.Errorf("deletes = %v, want [%v]", repo.deletes, id)
	}
}

func TestHandleEventMalformedButParseable(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"created without payload", map[string]any{"event_type": event.TypeDeviceCreated}},
		{"deleted without any id", map[string]any{"event_type": event.TypeDeviceDeleted}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			s := NewSync(repo, nopLogger{})

			// Must ack (nil), not requeue: redelivery cannot repair these.
			if err := s.HandleEvent(context.Background(), mustJSON(t, tt.body)); err != nil {
				t.Errorf("HandleEvent() error = %v, want nil", err)
			}
			if len(repo.upserts)+len(repo.deletes) != 0 {
				t.Error("malformed event must not touch the projection")
			}
		})
	}
}

func TestHandleEventIgnoresOtherKinds(t *testing.T) {
	for _, tag := range []string{
		event.TypeUserCreated,
		event.TypeUserUpdated,
		event.TypeUserDeleted,
		"SOMETHING_NEW",
	} {
		t.Run(tag, func(t *testing.T) {
			repo := &fakeRepo{}
			s := NewSync(repo, nopLogger{})

			body := mustJSON(t, map[string]any{"event_type": tag})
			if err := s.HandleEvent(context.Background(), body); err != nil {
				t.Errorf("HandleEvent() error = %v, want nil", err)
			}
			if len(repo.upserts)+len(repo.deletes) != 0 {
				t.Error("non-device event must not touch the projection")
			}
		})
	}
}

func TestHandleEventUndecodable(t *testing.T) {
	s := NewSync(&fakeRepo{}, nopLogger{})

	if err := s.HandleEvent(context.Background(), []byte("not json")); err == nil {
		t.Error("HandleEvent() error = nil, want decode failure to requeue")
	}
}

func TestHandleEventRepositoryFailure(t *testing.T) {
	repo := &fakeRepo{err: context.DeadlineExceeded}
	s := NewSync(repo, nopLogger{})

	env := event.NewDeviceCreated(event.DevicePayload{ID: uuid.New(), Name: "x"})
	if err := s.HandleEvent(context.Background(), mustJSON(t, env)); err == nil {
		t.Error("HandleEvent() error = nil, want storage failure to requeue")
	}
}
