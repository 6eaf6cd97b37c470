package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidHours is returned for business-hours configuration that cannot be used.
var ErrInvalidHours = errors.New("schedule: invalid business hours")

// Violation describes why a window falls outside business hours.
type Violation int

const (
	// WithinHours means the window fits inside one open day.
	WithinHours Violation = iota
	// OutsideHours covers closed weekdays and starts outside [open, close).
	OutsideHours
	// PastClose means the window starts in hours but ends after closing.
	PastClose
)

func (v Violation) String() string {
	switch v {
	case WithinHours:
		return "within_hours"
	case OutsideHours:
		return "outside_business_hours"
	case PastClose:
		return "extends_past_close"
	default:
		return "unknown"
	}
}

// BusinessHours is the immutable per-process business calendar: one IANA timezone, a
// daily [open, close) range, the set of open weekdays, and the fixed slot length.
type BusinessHours struct {
	timezone     string
	loc          *time.Location
	openMinutes  int
	closeMinutes int
	openDays     [7]bool
	slot         time.Duration
}

// NewBusinessHours validates and builds a BusinessHours. open and close use "15:04".
func NewBusinessHours(timezone, open, close string, weekdays []time.Weekday, slotMinutes int) (*BusinessHours, error) {
	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		return nil, fmt.Errorf("%w: timezone is required", ErrInvalidHours)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: load timezone %q: %v", ErrInvalidHours, timezone, err)
	}
	openMin, err := parseClock(open)
	if err != nil {
		return nil, fmt.Errorf("%w: open time: %v", ErrInvalidHours, err)
	}
	closeMin, err := parseClock(close)
	if err != nil {
		return nil, fmt.Errorf("%w: close time: %v", ErrInvalidHours, err)
	}
	if openMin >= closeMin {
		return nil, fmt.Errorf("%w: open time %s must be before close time %s", ErrInvalidHours, open, close)
	}
	if len(weekdays) == 0 {
		return nil, fmt.Errorf("%w: at least one open weekday is required", ErrInvalidHours)
	}
	if slotMinutes <= 0 {
		return nil, fmt.Errorf("%w: slot duration must be positive", ErrInvalidHours)
	}
	if slotMinutes > closeMin-openMin {
		return nil, fmt.Errorf("%w: slot duration %dm longer than the business day", ErrInvalidHours, slotMinutes)
	}

	b := &BusinessHours{
		timezone:     timezone,
		loc:          loc,
		openMinutes:  openMin,
		closeMinutes: closeMin,
		slot:         time.Duration(slotMinutes) * time.Minute,
	}
	for _, d := range weekdays {
		if d < time.Sunday || d > time.Saturday {
			return nil, fmt.Errorf("%w: weekday %d out of range", ErrInvalidHours, d)
		}
		b.openDays[d] = true
	}
	return b, nil
}

// DefaultBusinessHours is Monday-Friday 09:00-18:00 America/New_York with 30 minute slots.
func DefaultBusinessHours() *BusinessHours {
	b, err := NewBusinessHours("America/New_York", "09:00", "18:00",
		[]time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, 30)
	if err != nil {
		panic(err)
	}
	return b
}

func parseClock(raw string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", raw, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Timezone returns the configured IANA zone id.
func (b *BusinessHours) Timezone() string { return b.timezone }

// Location returns the loaded zone.
func (b *BusinessHours) Location() *time.Location { return b.loc }

// SlotDuration is the fixed appointment length.
func (b *BusinessHours) SlotDuration() time.Duration { return b.slot }

// IsOpenDay reports whether the weekday is an open day.
func (b *BusinessHours) IsOpenDay(d time.Weekday) bool { return b.openDays[d] }

// OpenWeekdays returns the open days in Sunday-first order.
func (b *BusinessHours) OpenWeekdays() []time.Weekday {
	var days []time.Weekday
	for d, open := range b.openDays {
		if open {
			days = append(days, time.Weekday(d))
		}
	}
	return days
}

// Local decomposes t into business-local weekday and minutes since local midnight.
// Uses the zone's full rules, so DST transitions shift the wall clock correctly.
func (b *BusinessHours) Local(t time.Time) (time.Weekday, int) {
	lt := t.In(b.loc)
	return lt.Weekday(), lt.Hour()*60 + lt.Minute()
}

// CheckWindow applies the business-hours rule to w: the start must fall on an open day
// inside [open, close) and the end may be at most the closing time of the same day.
func (b *BusinessHours) CheckWindow(w TimeWindow) Violation {
	day, startMin := b.Local(w.Start)
	if !b.openDays[day] {
		return OutsideHours
	}
	if startMin < b.openMinutes || startMin >= b.closeMinutes {
		return OutsideHours
	}
	ls, le := w.Start.In(b.loc), w.End.In(b.loc)
	if !sameDate(ls, le) {
		return PastClose
	}
	_, endMin := b.Local(w.End)
	if endMin > b.closeMinutes {
		return PastClose
	}
	return WithinHours
}

// SlotAt returns the standard slot window beginning at start.
func (b *BusinessHours) SlotAt(start time.Time) TimeWindow {
	return WindowFrom(start, b.slot)
}

// openingOn returns the opening instant for the local date of day.
// SlotsPerDay is how many whole slots fit between opening and closing.
func (b *BusinessHours) SlotsPerDay() int {
	return int(time.Duration(b.closeMinutes-b.openMinutes) * time.Minute / b.slot)
}

// CeilToSlot rounds t up to the next slot boundary on the local grid anchored at that
// day's opening time. Times before opening round to the opening.
func (b *BusinessHours) CeilToSlot(t time.Time) time.Time {
	lt := t.In(b.loc)
	open := b.openingOn(lt)
	if !lt.After(open) {
		return open
	}
	c := open.Add(lt.Sub(open) / b.slot * b.slot)
	if c.Before(lt) {
		c = c.Add(b.slot)
	}
	return c
}

func (b *BusinessHours) openingOn(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), b.openMinutes/60, b.openMinutes%60, 0, 0, b.loc)
}

// closingOn returns the closing instant for the local date of day.
func (b *BusinessHours) closingOn(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), b.closeMinutes/60, b.closeMinutes%60, 0, 0, b.loc)
}

// NextOpening returns the earliest instant >= t at which a full slot can start. If t is
// already inside business hours with room for a slot, t itself is returned.
func (b *BusinessHours) NextOpening(t time.Time) time.Time {
	lt := t.In(b.loc)
	for i := 0; i < 8; i++ {
		day := time.Date(lt.Year(), lt.Month(), lt.Day()+i, 12, 0, 0, 0, b.loc)
		if !b.openDays[day.Weekday()] {
			continue
		}
		open := b.openingOn(day)
		lastStart := b.closingOn(day).Add(-b.slot)
		if i == 0 {
			if lt.Before(open) {
				return open
			}
			if !lt.After(lastStart) {
				return lt
			}
			continue
		}
		return open
	}
	// Unreachable with at least one open weekday.
	return lt
}

// Describe renders the hours for prompts and logs, e.g.
// "Mon, Tue, Wed, Thu, Fri 09:00-18:00 (America/New_York), 30 minute appointments".
func (b *BusinessHours) Describe() string {
	days := b.OpenWeekdays()
	sort.Slice(days, func(i, j int) bool { return isoDay(days[i]) < isoDay(days[j]) })
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, d.String()[:3])
	}
	return fmt.Sprintf("%s %02d:%02d-%02d:%02d (%s), %d minute appointments",
		strings.Join(names, ", "),
		b.openMinutes/60, b.openMinutes%60,
		b.closeMinutes/60, b.closeMinutes%60,
		b.timezone, int(b.slot/time.Minute))
}

// FormatSpoken renders t for text-to-speech in business local time,
// e.g. "Monday, January 15 at 2:00 PM".
func (b *BusinessHours) FormatSpoken(t time.Time) string {
	return t.In(b.loc).Format("Monday, January 2 at 3:04 PM")
}

func isoDay(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
