package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newOutboxStoreWithExec(mock)

	mock.ExpectExec("INSERT INTO outbox").WithArgs(pgxmock.AnyArg(), "biz-1", EventAppointmentBooked, pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if _, err := store.Insert(context.Background(), "biz-1", EventAppointmentBooked, map[string]string{"foo": "bar"}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	now := time.Now().UTC()
	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "business_id", "type", "payload", "attempts", "created_at"}).
		AddRow(id, "biz-1", EventAppointmentBooked, []byte("{\"foo\":\"bar\"}"), 1, now)
	mock.ExpectQuery("SELECT id").WithArgs(int32(10), DefaultMaxAttempts).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("fetch pending failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id || entries[0].Attempts != 1 {
		t.Fatalf("unexpected entries: %#v", entries)
	}

	mock.ExpectExec("UPDATE outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	if err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if !ok {
		t.Fatal("expected mark delivered to report success")
	}

	mock.ExpectExec("UPDATE outbox").WithArgs(id, "smtp down").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := store.MarkFailed(context.Background(), id, errors.New("smtp down")); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type fakeOutbox struct {
	pending   []OutboxEntry
	delivered []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeOutbox) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	return f.pending, nil
}

func (f *fakeOutbox) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	f.delivered = append(f.delivered, id)
	return true, nil
}

func (f *fakeOutbox) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	f.failed = append(f.failed, id)
	return nil
}

type handlerFunc func(ctx context.Context, entry OutboxEntry) error

func (h handlerFunc) Handle(ctx context.Context, entry OutboxEntry) error { return h(ctx, entry) }

func TestDelivererDrainMarksOutcomes(t *testing.T) {
	ok, bad := uuid.New(), uuid.New()
	store := &fakeOutbox{pending: []OutboxEntry{{ID: ok, Type: EventAppointmentBooked}, {ID: bad, Type: EventAppointmentBooked}}}
	d := newDeliverer(store, handlerFunc(func(ctx context.Context, entry OutboxEntry) error {
		if entry.ID == bad {
			return errors.New("boom")
		}
		return nil
	}), logging.New("error"))

	delivered := d.drain(context.Background())

	assert.Equal(t, 1, delivered)
	assert.Equal(t, []uuid.UUID{ok}, store.delivered)
	assert.Equal(t, []uuid.UUID{bad}, store.failed)
}

func TestDelivererStartStopsOnCancel(t *testing.T) {
	store := &fakeOutbox{}
	d := newDeliverer(store, handlerFunc(func(ctx context.Context, entry OutboxEntry) error { return nil }), nil).
		WithInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "deliverer did not stop")
	}
}

func TestNewDelivererWithoutStoreIsInert(t *testing.T) {
	d := NewDeliverer(nil, nil, nil)
	d.Start(context.Background())
}
