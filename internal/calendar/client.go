// Package calendar defines the calendar collaborator used for free/busy queries and
// event creation, with Google Calendar and in-memory implementations.
package calendar

import (
	"context"
	"errors"

	"github.com/wolfman30/voice-scheduler/internal/schedule"
)

// ErrUnavailable marks calendar calls that timed out or failed in transport.
var ErrUnavailable = errors.New("calendar: unavailable")

// Event is the result of a successful CreateEvent.
type Event struct {
	ID     string
	Window schedule.TimeWindow
}

// Client is the calendar collaborator. Nothing outside CreateEvent mutates calendar state.
type Client interface {
	// CheckFreeBusy reports whether any busy interval overlaps w.
	CheckFreeBusy(ctx context.Context, w schedule.TimeWindow) (bool, error)
	// CreateEvent writes an event covering w.
	CreateEvent(ctx context.Context, w schedule.TimeWindow, summary, description string) (Event, error)
	// ListFreeBusy returns the busy intervals overlapping span, ordered by start.
	ListFreeBusy(ctx context.Context, span schedule.TimeWindow) ([]schedule.TimeWindow, error)
}
