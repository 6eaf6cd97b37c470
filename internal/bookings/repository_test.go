package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	repo := newRepositoryWithExec(mock)
	repo.now = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }
	return repo, mock
}

func TestCreateCallLog(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO call_logs").
		WithArgs(pgxmock.AnyArg(), "call-1", "tc-1", "biz", "John Doe", "555-0100", "", "2024-01-15T14:00:00-05:00", StatusReceived, "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := repo.CreateCallLog(context.Background(), CallLog{
		CallID:       "call-1",
		ToolCallID:   "tc-1",
		BusinessID:   "biz",
		CallerName:   "John Doe",
		CallerPhone:  "555-0100",
		RequestedRaw: "2024-01-15T14:00:00-05:00",
	})
	if err != nil {
		t.Fatalf("CreateCallLog: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected uuid id, got %q", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateCallLog(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.NewString()
	start := time.Date(2024, 1, 15, 19, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	mock.ExpectExec("UPDATE call_logs").
		WithArgs(pgxmock.AnyArg(), StatusBooked, "", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := repo.UpdateCallLog(context.Background(), id, CallLogUpdate{Status: StatusBooked, BookedStart: &start, BookedEnd: &end}); err != nil {
		t.Fatalf("UpdateCallLog: %v", err)
	}

	mock.ExpectExec("UPDATE call_logs").
		WithArgs(pgxmock.AnyArg(), StatusFailed, "past_date", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err := repo.UpdateCallLog(context.Background(), id, CallLogUpdate{Status: StatusFailed, Reason: "past_date"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := repo.UpdateCallLog(context.Background(), "not-a-uuid", CallLogUpdate{}); err == nil {
		t.Fatalf("expected invalid id error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateAppointment(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Date(2024, 1, 15, 19, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "biz", "John Doe", "", "john@example.com", pgxmock.AnyArg(), pgxmock.AnyArg(), "evt-1", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := repo.CreateAppointment(context.Background(), Appointment{
		CallLogID:       uuid.NewString(),
		BusinessID:      "biz",
		CallerName:      "John Doe",
		CallerEmail:     "john@example.com",
		Start:           start,
		End:             start.Add(30 * time.Minute),
		ExternalEventID: "evt-1",
	})
	if err != nil || id == "" {
		t.Fatalf("CreateAppointment: id=%q err=%v", id, err)
	}

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	if _, err := repo.CreateAppointment(context.Background(), Appointment{Start: start, End: start.Add(time.Hour)}); err == nil {
		t.Fatalf("expected insert error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetCallLog(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.NewString()
	created := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	start := time.Date(2024, 1, 15, 19, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	rows := pgxmock.NewRows([]string{
		"call_id", "tool_call_id", "business_id", "caller_name", "caller_phone", "caller_email", "requested_raw",
		"status", "reason", "booked_start", "booked_end", "created_at", "updated_at",
	}).AddRow("call-1", "tc-1", "biz", "John Doe", "", "", "raw", StatusBooked, "", &start, &end, created, created)
	mock.ExpectQuery("SELECT call_id").WithArgs(pgxmock.AnyArg()).WillReturnRows(rows)

	log, err := repo.GetCallLog(context.Background(), id)
	if err != nil {
		t.Fatalf("GetCallLog: %v", err)
	}
	if log.Status != StatusBooked || log.BookedStart == nil || !log.BookedStart.Equal(start) {
		t.Fatalf("unexpected call log %+v", log)
	}

	mock.ExpectQuery("SELECT call_id").WithArgs(pgxmock.AnyArg()).WillReturnError(pgx.ErrNoRows)
	if _, err := repo.GetCallLog(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
