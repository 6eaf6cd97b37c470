package booking

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/voice-scheduler/internal/schedule"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

// Confirmation describes a booked appointment for the caller.
type Confirmation struct {
	CallerName  string              `json:"callerName"`
	CallerEmail string              `json:"callerEmail"`
	CallerPhone string              `json:"callerPhone,omitempty"`
	Window      schedule.TimeWindow `json:"window"`
	BusinessID  string              `json:"businessId,omitempty"`
	EventID     string              `json:"eventId,omitempty"`
}

// Notifier sends a confirmation after a successful booking. Failures never change the outcome.
type Notifier interface {
	NotifyBooked(ctx context.Context, c Confirmation) error
}

// EmailSender abstracts the email transport.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// EmailNotifier emails the caller when an email address was collected.
type EmailNotifier struct {
	sender       EmailSender
	hours        *schedule.BusinessHours
	businessName string
	logger       *logging.Logger
}

// NewEmailNotifier creates a notifier. businessName is used in the subject line.
func NewEmailNotifier(sender EmailSender, hours *schedule.BusinessHours, businessName string, logger *logging.Logger) *EmailNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(businessName) == "" {
		businessName = "us"
	}
	return &EmailNotifier{sender: sender, hours: hours, businessName: businessName, logger: logger}
}

func (n *EmailNotifier) NotifyBooked(ctx context.Context, c Confirmation) error {
	if n.sender == nil || strings.TrimSpace(c.CallerEmail) == "" {
		return nil
	}
	subject := fmt.Sprintf("Your appointment with %s is confirmed", n.businessName)
	if err := n.sender.SendEmail(ctx, c.CallerEmail, subject, FormatConfirmationHTML(c, n.hours)); err != nil {
		n.logger.Error("confirmation email failed", "error", err, "event_id", c.EventID)
		return fmt.Errorf("booking: send confirmation: %w", err)
	}
	n.logger.Info("confirmation email sent", "event_id", c.EventID)
	return nil
}

// FormatConfirmationHTML renders the confirmation email body.
func FormatConfirmationHTML(c Confirmation, hours *schedule.BusinessHours) string {
	var phoneRow string
	if c.CallerPhone != "" {
		phoneRow = fmt.Sprintf(`<tr><td style="padding:6px 12px;font-weight:bold;">Phone</td><td style="padding:6px 12px;">%s</td></tr>`, html.EscapeString(c.CallerPhone))
	}
	return fmt.Sprintf(`<div style="font-family:sans-serif;max-width:600px;">
<h2 style="color:#333;">Appointment Confirmed</h2>
<table style="border-collapse:collapse;width:100%%;">
<tr><td style="padding:6px 12px;font-weight:bold;">Name</td><td style="padding:6px 12px;">%s</td></tr>
%s
<tr><td style="padding:6px 12px;font-weight:bold;">When</td><td style="padding:6px 12px;">%s</td></tr>
<tr><td style="padding:6px 12px;font-weight:bold;">Length</td><td style="padding:6px 12px;">%d minutes</td></tr>
</table>
<p style="color:#666;font-size:12px;">Times are shown in %s.</p>
</div>`,
		html.EscapeString(c.CallerName),
		phoneRow,
		html.EscapeString(hours.FormatSpoken(c.Window.Start)),
		int(c.Window.Duration().Minutes()),
		html.EscapeString(hours.Timezone()),
	)
}
