// Package schedule holds the time-range and business-hours value types shared by the
// availability, booking, and conversation packages.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// DefaultSlotDuration applies when only a start instant is known.
const DefaultSlotDuration = 30 * time.Minute

// ErrInvalidWindow is returned when a window does not end after it starts.
var ErrInvalidWindow = errors.New("schedule: window end must be after start")

// TimeWindow is a half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeWindow validates end > start.
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	if !end.After(start) {
		return TimeWindow{}, fmt.Errorf("%w: start=%s end=%s", ErrInvalidWindow, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeWindow{Start: start, End: end}, nil
}

// WindowFrom builds a window of length d starting at start. A non-positive d falls back
// to DefaultSlotDuration.
func WindowFrom(start time.Time, d time.Duration) TimeWindow {
	if d <= 0 {
		d = DefaultSlotDuration
	}
	return TimeWindow{Start: start, End: start.Add(d)}
}

// IsZero reports whether the window was never set.
func (w TimeWindow) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Duration is derived from the bounds.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps reports whether two half-open windows share any instant.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Contains reports whether o lies entirely inside w.
func (w TimeWindow) Contains(o TimeWindow) bool {
	return !o.Start.Before(w.Start) && !o.End.After(w.End)
}

// In returns the window with both bounds expressed in loc.
func (w TimeWindow) In(loc *time.Location) TimeWindow {
	if loc == nil {
		return w
	}
	return TimeWindow{Start: w.Start.In(loc), End: w.End.In(loc)}
}

func (w TimeWindow) String() string {
	return w.Start.Format(time.RFC3339) + "/" + w.End.Format(time.RFC3339)
}
