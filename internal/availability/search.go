package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/voice-scheduler/internal/calendar"
	"github.com/wolfman30/voice-scheduler/internal/schedule"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

const (
	// DefaultAlternativeCount is how many alternatives a caller is offered.
	DefaultAlternativeCount = 3
	// DefaultLookaheadDays bounds how far past the request the search looks.
	DefaultLookaheadDays = 7
	// DefaultCandidateMultiplier scales count into the raw candidate budget.
	DefaultCandidateMultiplier = 16
)

// SearchOptions holds the defaults applied when a Query leaves fields zero.
type SearchOptions struct {
	LookaheadDays       int
	CandidateMultiplier int
}

// Query describes one alternative search.
type Query struct {
	Near                schedule.TimeWindow
	Count               int
	LookaheadDays       int
	CandidateMultiplier int
}

// Searcher scans forward from a requested window for bookable slots.
type Searcher struct {
	resolver *Resolver
	calendar calendar.Client
	opts     SearchOptions
	now      func() time.Time
	logger   *logging.Logger
}

// NewSearcher wires a searcher. now may be nil.
func NewSearcher(resolver *Resolver, cal calendar.Client, opts SearchOptions, now func() time.Time, logger *logging.Logger) *Searcher {
	if resolver == nil {
		panic("availability: resolver required")
	}
	if cal == nil {
		panic("availability: calendar client required")
	}
	if opts.LookaheadDays <= 0 {
		opts.LookaheadDays = DefaultLookaheadDays
	}
	if opts.CandidateMultiplier <= 0 {
		opts.CandidateMultiplier = DefaultCandidateMultiplier
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Searcher{resolver: resolver, calendar: cal, opts: opts, now: now, logger: logger}
}

// Search returns up to q.Count bookable windows after q.Near, in chronological order.
// The scan ends once q.Count windows are found or the lookahead is exhausted. Busy
// intervals are fetched in spans sized to hold q.Count*q.CandidateMultiplier slots, so a
// larger multiplier means fewer, wider calendar queries. An empty result is not an error.
func (s *Searcher) Search(ctx context.Context, q Query) ([]schedule.TimeWindow, error) {
	if q.Count <= 0 {
		q.Count = DefaultAlternativeCount
	}
	if q.LookaheadDays <= 0 {
		q.LookaheadDays = s.opts.LookaheadDays
	}
	if q.CandidateMultiplier <= 0 {
		q.CandidateMultiplier = s.opts.CandidateMultiplier
	}

	hours := s.resolver.Hours()
	slot := hours.SlotDuration()
	limit := q.Near.Start.AddDate(0, 0, q.LookaheadDays)
	perQuery := q.Count * q.CandidateMultiplier

	fetched := q.Near.Start
	var busy []schedule.TimeWindow
	queries := 0
	fetch := func(until time.Time) error {
		for fetched.Before(until) {
			end := s.querySpan(fetched, perQuery, limit)
			got, err := s.calendar.ListFreeBusy(ctx, schedule.TimeWindow{Start: fetched, End: end})
			if err != nil {
				return fmt.Errorf("availability: list free/busy: %w", err)
			}
			queries++
			busy = append(busy, got...)
			fetched = end
		}
		return nil
	}
	if err := fetch(q.Near.Start.Add(time.Nanosecond)); err != nil {
		return nil, err
	}

	cursor := q.Near.Start.Add(slot)
	if now := s.now(); cursor.Before(now) {
		cursor = hours.CeilToSlot(now)
	}

	examined := 0
	var found []schedule.TimeWindow
	for len(found) < q.Count {
		cursor = hours.NextOpening(cursor)
		candidate := hours.SlotAt(cursor)
		if candidate.End.After(limit) {
			break
		}
		if err := fetch(candidate.End); err != nil {
			return nil, err
		}
		examined++
		if s.resolver.CheckHours(candidate).Available && !overlapsAny(candidate, busy) {
			found = append(found, candidate)
		}
		cursor = cursor.Add(slot)
	}

	s.logger.Debug("alternative search complete",
		"near", q.Near.String(),
		"busy_intervals", len(busy),
		"calendar_queries", queries,
		"examined", examined,
		"found", len(found),
	)
	return found, nil
}

// querySpan returns where a calendar query starting at from should end to cover about
// candidates slots: enough whole open days past from, capped at limit.
func (s *Searcher) querySpan(from time.Time, candidates int, limit time.Time) time.Time {
	hours := s.resolver.Hours()
	perDay := hours.SlotsPerDay()
	if perDay < 1 {
		perDay = 1
	}
	days := (candidates + perDay - 1) / perDay
	loc := hours.Location()
	lf := from.In(loc)
	midnight := time.Date(lf.Year(), lf.Month(), lf.Day(), 0, 0, 0, 0, loc)

	opened := 0
	for d := 0; ; d++ {
		dayStart := midnight.AddDate(0, 0, d)
		if !dayStart.Before(limit) {
			return limit
		}
		if !hours.IsOpenDay(dayStart.Weekday()) {
			continue
		}
		opened++
		// the day containing from is usually partial, so it does not count toward days
		if opened > days {
			end := midnight.AddDate(0, 0, d+1)
			if end.After(limit) {
				return limit
			}
			return end
		}
	}
}

// overlapsAny covers a candidate starting inside, ending inside, or containing a busy
// interval; all three reduce to half-open overlap.
func overlapsAny(candidate schedule.TimeWindow, busy []schedule.TimeWindow) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}
