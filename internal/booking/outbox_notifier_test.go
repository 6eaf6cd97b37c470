package booking

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/voice-scheduler/internal/events"
	"github.com/wolfman30/voice-scheduler/internal/schedule"
)

type capturedInsert struct {
	businessID string
	eventType  string
	payload    []byte
}

type fakeOutboxWriter struct {
	inserts []capturedInsert
	err     error
}

func (f *fakeOutboxWriter) Insert(ctx context.Context, businessID, eventType string, payload any) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, err
	}
	f.inserts = append(f.inserts, capturedInsert{businessID: businessID, eventType: eventType, payload: raw})
	return uuid.New(), nil
}

type confirmationRecorder struct {
	got []Confirmation
}

func (r *confirmationRecorder) NotifyBooked(ctx context.Context, c Confirmation) error {
	r.got = append(r.got, c)
	return nil
}

func TestOutboxNotifierRoundTripsThroughHandler(t *testing.T) {
	outbox := &fakeOutboxWriter{}
	notifier := NewOutboxNotifier(outbox, nil)
	start := time.Date(2024, 1, 15, 19, 0, 0, 0, time.UTC)
	c := Confirmation{
		CallerName:  "John Doe",
		CallerEmail: "john@example.com",
		Window:      schedule.WindowFrom(start, 30*time.Minute),
		BusinessID:  "biz-1",
		EventID:     "evt-1",
	}

	require.NoError(t, notifier.NotifyBooked(context.Background(), c))
	require.Len(t, outbox.inserts, 1)
	assert.Equal(t, "biz-1", outbox.inserts[0].businessID)
	assert.Equal(t, events.EventAppointmentBooked, outbox.inserts[0].eventType)

	rec := &confirmationRecorder{}
	entry := events.OutboxEntry{ID: uuid.New(), Type: events.EventAppointmentBooked, Payload: outbox.inserts[0].payload}
	require.NoError(t, NewConfirmationHandler(rec).Handle(context.Background(), entry))

	require.Len(t, rec.got, 1)
	assert.Equal(t, "john@example.com", rec.got[0].CallerEmail)
	assert.True(t, rec.got[0].Window.Start.Equal(start))
	assert.Equal(t, 30*time.Minute, rec.got[0].Window.Duration())
}

func TestOutboxNotifierSkipsWithoutEmail(t *testing.T) {
	outbox := &fakeOutboxWriter{}
	require.NoError(t, NewOutboxNotifier(outbox, nil).NotifyBooked(context.Background(), Confirmation{CallerName: "Ann"}))
	assert.Empty(t, outbox.inserts)
}

func TestOutboxNotifierWrapsInsertError(t *testing.T) {
	outbox := &fakeOutboxWriter{err: errors.New("db down")}
	err := NewOutboxNotifier(outbox, nil).NotifyBooked(context.Background(), Confirmation{CallerEmail: "a@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue confirmation")
}

func TestConfirmationHandlerIgnoresOtherEvents(t *testing.T) {
	rec := &confirmationRecorder{}
	err := NewConfirmationHandler(rec).Handle(context.Background(), events.OutboxEntry{Type: "something.else", Payload: []byte("not json")})
	require.NoError(t, err)
	assert.Empty(t, rec.got)

	err = NewConfirmationHandler(rec).Handle(context.Background(), events.OutboxEntry{Type: events.EventAppointmentBooked, Payload: []byte("not json")})
	require.Error(t, err)
}
