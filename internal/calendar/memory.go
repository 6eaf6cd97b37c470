package calendar

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/wolfman30/voice-scheduler/internal/schedule"
)

// MemoryClient is an in-process calendar for local runs and tests.
type MemoryClient struct {
	mu     sync.Mutex
	busy   []schedule.TimeWindow
	events []Event
	err    error
	calls  map[string]int
}

// NewMemoryClient seeds the calendar with busy intervals.
func NewMemoryClient(busy ...schedule.TimeWindow) *MemoryClient {
	return &MemoryClient{
		busy:  append([]schedule.TimeWindow(nil), busy...),
		calls: make(map[string]int),
	}
}

// FailWith makes every subsequent call return err; nil clears it.
func (m *MemoryClient) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times op ("check", "list", "create") was invoked.
func (m *MemoryClient) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls sums all operations.
func (m *MemoryClient) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// Events returns the events created so far.
func (m *MemoryClient) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func (m *MemoryClient) CheckFreeBusy(ctx context.Context, w schedule.TimeWindow) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["check"]++
	if m.err != nil {
		return false, m.err
	}
	for _, b := range m.busy {
		if b.Overlaps(w) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryClient) ListFreeBusy(ctx context.Context, span schedule.TimeWindow) ([]schedule.TimeWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["list"]++
	if m.err != nil {
		return nil, m.err
	}
	var out []schedule.TimeWindow
	for _, b := range m.busy {
		if b.Overlaps(span) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// CreateEvent records the event and marks its window busy.
func (m *MemoryClient) CreateEvent(ctx context.Context, w schedule.TimeWindow, summary, description string) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["create"]++
	if m.err != nil {
		return Event{}, m.err
	}
	ev := Event{ID: "mem-" + uuid.NewString(), Window: w}
	m.events = append(m.events, ev)
	m.busy = append(m.busy, w)
	return ev, nil
}
