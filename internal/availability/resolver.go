// Package availability decides whether a window is bookable and finds nearby
// alternatives when it is not.
package availability

import (
	"context"
	"fmt"

	"github.com/wolfman30/voice-scheduler/internal/calendar"
	"github.com/wolfman30/voice-scheduler/internal/schedule"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

// Reason explains an unavailable decision.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonOutsideBusinessHours Reason = "outside_business_hours"
	ReasonExtendsPastClose     Reason = "extends_past_close"
	ReasonAlreadyBooked        Reason = "already_booked"
)

// Decision is the result of a single availability check.
type Decision struct {
	Available bool   `json:"available"`
	Reason    Reason `json:"reason,omitempty"`
}

// Resolver combines the business-hours rule with a calendar free/busy query.
type Resolver struct {
	hours    *schedule.BusinessHours
	calendar calendar.Client
	logger   *logging.Logger
}

// NewResolver wires a resolver.
func NewResolver(hours *schedule.BusinessHours, cal calendar.Client, logger *logging.Logger) *Resolver {
	if hours == nil {
		panic("availability: business hours required")
	}
	if cal == nil {
		panic("availability: calendar client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{hours: hours, calendar: cal, logger: logger}
}

// Hours exposes the business calendar the resolver enforces.
func (r *Resolver) Hours() *schedule.BusinessHours { return r.hours }

// CheckHours applies only the local business-hours rule.
func (r *Resolver) CheckHours(w schedule.TimeWindow) Decision {
	switch r.hours.CheckWindow(w) {
	case schedule.OutsideHours:
		return Decision{Reason: ReasonOutsideBusinessHours}
	case schedule.PastClose:
		return Decision{Reason: ReasonExtendsPastClose}
	default:
		return Decision{Available: true}
	}
}

// Resolve checks business hours first and only then queries the calendar.
func (r *Resolver) Resolve(ctx context.Context, w schedule.TimeWindow) (Decision, error) {
	if d := r.CheckHours(w); !d.Available {
		r.logger.Debug("window outside business hours", "window", w.String(), "reason", string(d.Reason))
		return d, nil
	}
	busy, err := r.calendar.CheckFreeBusy(ctx, w)
	if err != nil {
		return Decision{}, fmt.Errorf("availability: check free/busy: %w", err)
	}
	if busy {
		return Decision{Reason: ReasonAlreadyBooked}, nil
	}
	return Decision{Available: true}, nil
}
