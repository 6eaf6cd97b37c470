package booking

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wolfman30/voice-scheduler/internal/availability"
	"github.com/wolfman30/voice-scheduler/internal/schedule"
)

func TestMessagesRenderInBusinessTime(t *testing.T) {
	hours := schedule.DefaultBusinessHours()
	m := NewMessages(hours)
	w := hours.SlotAt(at(15, 14, 0))

	if got := m.Booked("John Doe", w); got != "Your appointment for John Doe on Monday, January 15 at 2:00 PM has been booked." {
		t.Fatalf("unexpected booked message %q", got)
	}

	alts := []schedule.TimeWindow{hours.SlotAt(at(15, 14, 30)), hours.SlotAt(at(15, 15, 0)), hours.SlotAt(at(15, 15, 30))}
	got := m.Alternatives(&availability.Decision{Reason: availability.ReasonAlreadyBooked}, alts)
	want := "That time is unavailable. However, these times are available: Monday, January 15 at 2:30 PM, Monday, January 15 at 3:00 PM, or Monday, January 15 at 3:30 PM. Which one works best for you?"
	if got != want {
		t.Fatalf("unexpected alternatives message\n got: %q\nwant: %q", got, want)
	}
}

func TestJoinSpoken(t *testing.T) {
	tests := map[string][]string{
		"":           nil,
		"a":          {"a"},
		"a or b":     {"a", "b"},
		"a, b, or c": {"a", "b", "c"},
	}
	for want, in := range tests {
		if got := joinSpoken(in); got != want {
			t.Fatalf("joinSpoken(%v) = %q, want %q", in, got, want)
		}
	}
}

type stubSender struct {
	to, subject, body string
	err               error
}

func (s *stubSender) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	s.to, s.subject, s.body = to, subject, htmlBody
	return s.err
}

func TestEmailNotifier(t *testing.T) {
	hours := schedule.DefaultBusinessHours()
	sender := &stubSender{}
	n := NewEmailNotifier(sender, hours, "Bright Dental", nil)
	c := Confirmation{CallerName: "John <Doe>", CallerEmail: "john@example.com", Window: hours.SlotAt(at(15, 14, 0))}

	if err := n.NotifyBooked(context.Background(), c); err != nil {
		t.Fatalf("NotifyBooked: %v", err)
	}
	if sender.to != "john@example.com" || !strings.Contains(sender.subject, "Bright Dental") {
		t.Fatalf("unexpected email %q %q", sender.to, sender.subject)
	}
	if !strings.Contains(sender.body, "John &lt;Doe&gt;") || !strings.Contains(sender.body, "30 minutes") {
		t.Fatalf("unexpected body %s", sender.body)
	}

	sender.to = ""
	if err := n.NotifyBooked(context.Background(), Confirmation{CallerName: "No Email"}); err != nil || sender.to != "" {
		t.Fatalf("expected skip without email")
	}

	sender.err = errors.New("rejected")
	if err := n.NotifyBooked(context.Background(), c); err == nil {
		t.Fatalf("expected send error")
	}
}
