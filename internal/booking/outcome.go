// Package booking orchestrates check-then-book for a single appointment request and
// renders every result as a sentence the voice channel can read aloud.
package booking

import (
	"github.com/wolfman30/voice-scheduler/internal/availability"
	"github.com/wolfman30/voice-scheduler/internal/bookings"
	"github.com/wolfman30/voice-scheduler/internal/schedule"
)

// Request is one caller's appointment request. It is not mutated after construction.
type Request struct {
	CallerName    string
	CallerPhone   string
	CallerEmail   string
	Window        schedule.TimeWindow
	BusinessID    string
	ContextPrompt string
	Notes         string
	// CallLogID links the persisted appointment to its call log, when one exists.
	CallLogID string
}

// Kind tags the variant of an Outcome.
type Kind string

const (
	KindBooked              Kind = "booked"
	KindAlternativesOffered Kind = "alternatives_offered"
	KindNoAlternatives      Kind = "no_alternatives"
	KindFailed              Kind = "failed"
)

// FailureReason qualifies KindFailed.
type FailureReason string

const (
	FailurePastDate      FailureReason = "past_date"
	FailureValidation    FailureReason = "validation"
	FailureCalendarError FailureReason = "calendar_error"
	FailureMaxIterations FailureReason = "max_iterations"
	FailureModelError    FailureReason = "model_error"
	FailureUnresolved    FailureReason = "unresolved"
	FailureRejected      FailureReason = "rejected"
)

// Outcome is the terminal result of a booking attempt. Only the fields matching Kind are set.
type Outcome struct {
	Kind            Kind                   `json:"kind"`
	AppointmentID   string                 `json:"appointmentId,omitempty"`
	ExternalEventID string                 `json:"externalEventId,omitempty"`
	Window          schedule.TimeWindow    `json:"window,omitempty"`
	Alternatives    []schedule.TimeWindow  `json:"alternatives,omitempty"`
	FailureReason   FailureReason          `json:"failureReason,omitempty"`
	Decision        *availability.Decision `json:"decision,omitempty"`
	Message         string                 `json:"message"`
}

// Booked reports whether the outcome is a confirmed booking.
func (o Outcome) Booked() bool { return o.Kind == KindBooked }

// CallLogStatus maps the outcome onto the persisted call log status.
func (o Outcome) CallLogStatus() string {
	switch o.Kind {
	case KindBooked:
		return bookings.StatusBooked
	case KindAlternativesOffered:
		return bookings.StatusAlternativesOffered
	case KindNoAlternatives:
		return bookings.StatusNoAlternatives
	}
	if o.FailureReason == FailureValidation || o.FailureReason == FailureRejected {
		return bookings.StatusRejected
	}
	return bookings.StatusFailed
}

// CallLogReason is the reason string stored alongside the status.
func (o Outcome) CallLogReason() string {
	if o.Kind == KindFailed {
		return string(o.FailureReason)
	}
	if o.Decision != nil && !o.Decision.Available {
		return string(o.Decision.Reason)
	}
	return ""
}
