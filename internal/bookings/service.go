package bookings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

var bookingsTracer = otel.Tracer("voicescheduler.internal.bookings")

// Store is the persistence surface Service wraps; Repository and MemoryStore satisfy it.
type Store interface {
	CreateCallLog(ctx context.Context, in CallLog) (string, error)
	UpdateCallLog(ctx context.Context, id string, upd CallLogUpdate) error
	CreateAppointment(ctx context.Context, a Appointment) (string, error)
}

// Service wraps the repository with tracing and logging.
type Service struct {
	repo   Store
	logger *logging.Logger
}

// NewService constructs a bookings service.
func NewService(repo Store, logger *logging.Logger) *Service {
	if repo == nil {
		panic("bookings: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// CreateCallLog records a call immediately on receipt.
func (s *Service) CreateCallLog(ctx context.Context, in CallLog) (string, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.call_log.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("voice.call_id", in.CallID),
		attribute.String("voice.tool_call_id", in.ToolCallID),
	)

	id, err := s.repo.CreateCallLog(ctx, in)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	s.logger.Info("call log created", "call_log_id", id, "call_id", in.CallID, "tool_call_id", in.ToolCallID)
	return id, nil
}

// UpdateCallLog resolves a call log with its final status.
func (s *Service) UpdateCallLog(ctx context.Context, id string, upd CallLogUpdate) error {
	ctx, span := bookingsTracer.Start(ctx, "bookings.call_log.update")
	defer span.End()
	span.SetAttributes(
		attribute.String("voice.call_log_id", id),
		attribute.String("voice.status", upd.Status),
	)

	if err := s.repo.UpdateCallLog(ctx, id, upd); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Info("call log resolved", "call_log_id", id, "status", upd.Status, "reason", upd.Reason)
	return nil
}

// CreateAppointment persists a confirmed appointment.
func (s *Service) CreateAppointment(ctx context.Context, a Appointment) (string, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.appointment.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("voice.call_log_id", a.CallLogID),
		attribute.String("voice.external_event_id", a.ExternalEventID),
		attribute.String("voice.start", a.Start.UTC().Format(time.RFC3339)),
	)

	id, err := s.repo.CreateAppointment(ctx, a)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	s.logger.Info("appointment persisted", "appointment_id", id, "call_log_id", a.CallLogID, "external_event_id", a.ExternalEventID)
	return id, nil
}
