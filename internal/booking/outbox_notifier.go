package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/voice-scheduler/internal/events"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

// OutboxWriter records an event for later delivery.
type OutboxWriter interface {
	Insert(ctx context.Context, businessID string, eventType string, payload any) (uuid.UUID, error)
}

// OutboxNotifier defers confirmations to the outbox so email latency never
// reaches the voice response.
type OutboxNotifier struct {
	outbox OutboxWriter
	logger *logging.Logger
}

func NewOutboxNotifier(outbox OutboxWriter, logger *logging.Logger) *OutboxNotifier {
	if outbox == nil {
		panic("booking: outbox required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OutboxNotifier{outbox: outbox, logger: logger}
}

func (n *OutboxNotifier) NotifyBooked(ctx context.Context, c Confirmation) error {
	if strings.TrimSpace(c.CallerEmail) == "" {
		return nil
	}
	id, err := n.outbox.Insert(ctx, c.BusinessID, events.EventAppointmentBooked, c)
	if err != nil {
		return fmt.Errorf("booking: queue confirmation: %w", err)
	}
	n.logger.Debug("confirmation queued", "outbox_id", id, "event_id", c.EventID)
	return nil
}

// ConfirmationHandler delivers queued confirmations through a Notifier.
type ConfirmationHandler struct {
	notifier Notifier
}

func NewConfirmationHandler(notifier Notifier) *ConfirmationHandler {
	return &ConfirmationHandler{notifier: notifier}
}

// Handle ignores event types it does not own so they are marked delivered.
func (h *ConfirmationHandler) Handle(ctx context.Context, entry events.OutboxEntry) error {
	if entry.Type != events.EventAppointmentBooked || h.notifier == nil {
		return nil
	}
	var c Confirmation
	if err := json.Unmarshal(entry.Payload, &c); err != nil {
		return fmt.Errorf("booking: decode confirmation: %w", err)
	}
	return h.notifier.NotifyBooked(ctx, c)
}
