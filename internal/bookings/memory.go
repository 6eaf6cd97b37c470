package bookings

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps call logs and appointments in process for local runs without Postgres.
type MemoryStore struct {
	mu           sync.Mutex
	callLogs     map[string]*CallLog
	appointments []Appointment
	err          error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{callLogs: make(map[string]*CallLog)}
}

// FailWith makes subsequent writes return err; nil clears it.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemoryStore) CreateCallLog(ctx context.Context, in CallLog) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	in.ID = uuid.NewString()
	if in.Status == "" {
		in.Status = StatusReceived
	}
	in.CreatedAt = time.Now().UTC()
	in.UpdatedAt = in.CreatedAt
	m.callLogs[in.ID] = &in
	return in.ID, nil
}

func (m *MemoryStore) UpdateCallLog(ctx context.Context, id string, upd CallLogUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	log, ok := m.callLogs[id]
	if !ok {
		return fmt.Errorf("bookings: update call log %s: %w", id, ErrNotFound)
	}
	log.Status = upd.Status
	log.Reason = upd.Reason
	log.BookedStart = upd.BookedStart
	log.BookedEnd = upd.BookedEnd
	log.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) CreateAppointment(ctx context.Context, a Appointment) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	a.ID = uuid.NewString()
	m.appointments = append(m.appointments, a)
	return a.ID, nil
}

// CallLog returns a copy of the call log with id.
func (m *MemoryStore) CallLog(id string) (CallLog, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.callLogs[id]
	if !ok {
		return CallLog{}, false
	}
	return *log, true
}

// CallLogCount returns how many call logs were created.
func (m *MemoryStore) CallLogCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.callLogs)
}

// Appointments returns the persisted appointments.
func (m *MemoryStore) Appointments() []Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Appointment(nil), m.appointments...)
}

// CallLogs returns every call log, oldest first.
func (m *MemoryStore) CallLogs() []CallLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CallLog, 0, len(m.callLogs))
	for _, l := range m.callLogs {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
