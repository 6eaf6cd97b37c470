package booking

import (
	"fmt"
	"strings"

	"github.com/wolfman30/voice-scheduler/internal/availability"
	"github.com/wolfman30/voice-scheduler/internal/schedule"
)

// Messages renders outcomes as spoken sentences in business local time.
type Messages struct {
	hours *schedule.BusinessHours
}

// NewMessages binds rendering to the business calendar.
func NewMessages(hours *schedule.BusinessHours) Messages {
	return Messages{hours: hours}
}

func (m Messages) Booked(name string, w schedule.TimeWindow) string {
	return fmt.Sprintf("Your appointment for %s on %s has been booked.", name, m.hours.FormatSpoken(w.Start))
}

func (m Messages) Alternatives(d *availability.Decision, alts []schedule.TimeWindow) string {
	spoken := make([]string, 0, len(alts))
	for _, w := range alts {
		spoken = append(spoken, m.hours.FormatSpoken(w.Start))
	}
	return fmt.Sprintf("%s However, these times are available: %s. Which one works best for you?",
		m.unavailableLead(d), joinSpoken(spoken))
}

func (m Messages) NoAlternatives(d *availability.Decision) string {
	return fmt.Sprintf("%s I couldn't find another open time in the coming days. Would you like to try a different week?",
		m.unavailableLead(d))
}

func (m Messages) PastDate(w schedule.TimeWindow) string {
	return fmt.Sprintf("It looks like %s has already passed. Could you confirm the date you'd like, including the year?",
		m.hours.FormatSpoken(w.Start))
}

func (m Messages) MissingName() string {
	return "I need a name for the appointment before I can book it. What name should I use?"
}

func (m Messages) MissingTime() string {
	return "I didn't catch a date and time for the appointment. When would you like to come in?"
}

func (m Messages) CalendarError() string {
	return "I'm having trouble reaching the calendar right now. Please try again in a few minutes, or we can call you back to confirm."
}

func (m Messages) unavailableLead(d *availability.Decision) string {
	if d == nil {
		return "I wasn't able to book that time."
	}
	switch d.Reason {
	case availability.ReasonOutsideBusinessHours:
		return fmt.Sprintf("That time is outside our business hours, which are %s.", m.hoursSpoken())
	case availability.ReasonExtendsPastClose:
		return "That appointment would run past our closing time."
	case availability.ReasonAlreadyBooked:
		return "That time is unavailable."
	default:
		return "I wasn't able to book that time."
	}
}

func (m Messages) hoursSpoken() string {
	desc := m.hours.Describe()
	if i := strings.Index(desc, " ("); i > 0 {
		return desc[:i]
	}
	return desc
}

func joinSpoken(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " or " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", or " + items[len(items)-1]
	}
}

func (m Messages) Available(w schedule.TimeWindow) string {
	return fmt.Sprintf("Good news, %s is available. Would you like me to book it?", m.hours.FormatSpoken(w.Start))
}
