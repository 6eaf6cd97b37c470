// Package bookings persists call logs and appointments for voice booking requests.
package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Call log statuses.
const (
	StatusReceived            = "received"
	StatusBooked              = "booked"
	StatusAlternativesOffered = "alternatives_offered"
	StatusNoAlternatives      = "no_alternatives"
	StatusFailed              = "failed"
	StatusRejected            = "rejected"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("bookings: not found")

// CallLog is one inbound booking request.
type CallLog struct {
	ID           string
	CallID       string
	ToolCallID   string
	BusinessID   string
	CallerName   string
	CallerPhone  string
	CallerEmail  string
	RequestedRaw string
	Status       string
	Reason       string
	BookedStart  *time.Time
	BookedEnd    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CallLogUpdate resolves a call log.
type CallLogUpdate struct {
	Status      string
	Reason      string
	BookedStart *time.Time
	BookedEnd   *time.Time
}

// Appointment is a confirmed booking.
type Appointment struct {
	ID              string
	CallLogID       string
	BusinessID      string
	CallerName      string
	CallerPhone     string
	CallerEmail     string
	Start           time.Time
	End             time.Time
	ExternalEventID string
	Notes           string
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence helpers for call logs and appointments.
type Repository struct {
	db  rowQuerier
	now func() time.Time
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &Repository{db: pool, now: time.Now}
}

func newRepositoryWithExec(db rowQuerier) *Repository {
	if db == nil {
		panic("bookings: exec required")
	}
	return &Repository{db: db, now: time.Now}
}

// CreateCallLog inserts a call log in the received state and returns its id.
func (r *Repository) CreateCallLog(ctx context.Context, in CallLog) (string, error) {
	id := uuid.New()
	status := in.Status
	if status == "" {
		status = StatusReceived
	}
	query := `
		INSERT INTO call_logs (id, call_id, tool_call_id, business_id, caller_name, caller_phone, caller_email, requested_raw, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`
	_, err := r.db.Exec(ctx, query,
		toPGUUID(id),
		in.CallID,
		in.ToolCallID,
		in.BusinessID,
		in.CallerName,
		in.CallerPhone,
		in.CallerEmail,
		in.RequestedRaw,
		status,
		in.Reason,
		toPGTime(r.now().UTC()),
	)
	if err != nil {
		return "", fmt.Errorf("bookings: insert call log: %w", err)
	}
	return id.String(), nil
}

// UpdateCallLog records the resolution of a call.
func (r *Repository) UpdateCallLog(ctx context.Context, id string, upd CallLogUpdate) error {
	callLogID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("bookings: invalid call log id %q: %w", id, err)
	}
	query := `
		UPDATE call_logs
		SET status = $2, reason = $3, booked_start = $4, booked_end = $5, updated_at = $6
		WHERE id = $1
	`
	ct, err := r.db.Exec(ctx, query,
		toPGUUID(callLogID),
		upd.Status,
		upd.Reason,
		toPGNullableTime(upd.BookedStart),
		toPGNullableTime(upd.BookedEnd),
		toPGTime(r.now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("bookings: update call log: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("bookings: update call log %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetCallLog loads a call log by id.
func (r *Repository) GetCallLog(ctx context.Context, id string) (*CallLog, error) {
	callLogID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("bookings: invalid call log id %q: %w", id, err)
	}
	query := `
		SELECT call_id, tool_call_id, business_id, caller_name, caller_phone, caller_email, requested_raw,
		       status, reason, booked_start, booked_end, created_at, updated_at
		FROM call_logs WHERE id = $1
	`
	var log CallLog
	err = r.db.QueryRow(ctx, query, toPGUUID(callLogID)).Scan(
		&log.CallID, &log.ToolCallID, &log.BusinessID, &log.CallerName, &log.CallerPhone, &log.CallerEmail,
		&log.RequestedRaw, &log.Status, &log.Reason, &log.BookedStart, &log.BookedEnd, &log.CreatedAt, &log.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("bookings: load call log: %w", err)
	}
	log.ID = id
	return &log, nil
}

// CreateAppointment inserts a confirmed appointment and returns its id.
func (r *Repository) CreateAppointment(ctx context.Context, a Appointment) (string, error) {
	id := uuid.New()
	var callLogID pgtype.UUID
	if a.CallLogID != "" {
		parsed, err := uuid.Parse(a.CallLogID)
		if err != nil {
			return "", fmt.Errorf("bookings: invalid call log id %q: %w", a.CallLogID, err)
		}
		callLogID = toPGUUID(parsed)
	}
	query := `
		INSERT INTO appointments (id, call_log_id, business_id, caller_name, caller_phone, caller_email, start_at, end_at, external_event_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		toPGUUID(id),
		callLogID,
		a.BusinessID,
		a.CallerName,
		a.CallerPhone,
		a.CallerEmail,
		toPGTime(a.Start.UTC()),
		toPGTime(a.End.UTC()),
		a.ExternalEventID,
		a.Notes,
		toPGTime(r.now().UTC()),
	)
	if err != nil {
		return "", fmt.Errorf("bookings: insert appointment: %w", err)
	}
	return id.String(), nil
}

func toPGUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{
		Bytes: [16]byte(id),
		Valid: true,
	}
}

func toPGTime(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{
		Time:  t,
		Valid: true,
	}
}

func toPGNullableTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{
		Time:  *t,
		Valid: true,
	}
}
