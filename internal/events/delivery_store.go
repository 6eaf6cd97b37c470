package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDeliveryInFlight is returned when another worker is still handling the same delivery.
var ErrDeliveryInFlight = errors.New("events: delivery in flight")

// DefaultDeliveryTTL is how long an unfinished claim blocks retries before it can be reclaimed.
const DefaultDeliveryTTL = 2 * time.Minute

const (
	StatusInFlight  = "in_flight"
	StatusCompleted = "completed"
)

// Delivery is a webhook tool call keyed by "<callId>:<toolCallId>".
type Delivery struct {
	Key         string
	Status      string
	Result      string
	ClaimedAt   time.Time
	CompletedAt *time.Time
}

// DeliveryKey builds the idempotency key for a tool call.
func DeliveryKey(callID, toolCallID string) string {
	return callID + ":" + toolCallID
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DeliveryStore records webhook deliveries so retries replay instead of re-running.
type DeliveryStore struct {
	pool rowQuerier
	ttl  time.Duration
	now  func() time.Time
}

func NewDeliveryStore(pool *pgxpool.Pool, ttl time.Duration) *DeliveryStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return newDeliveryStoreWithExec(pool, ttl)
}

func newDeliveryStoreWithExec(exec rowQuerier, ttl time.Duration) *DeliveryStore {
	if exec == nil {
		panic("events: exec required")
	}
	if ttl <= 0 {
		ttl = DefaultDeliveryTTL
	}
	return &DeliveryStore{pool: exec, ttl: ttl, now: time.Now}
}

// Claim takes ownership of key. It returns (nil, nil) when the caller now owns the
// delivery, the stored delivery when it already completed, or ErrDeliveryInFlight.
func (s *DeliveryStore) Claim(ctx context.Context, key string) (*Delivery, error) {
	now := s.now().UTC()
	insert := `
		INSERT INTO webhook_deliveries (delivery_key, status, claimed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, insert, key, StatusInFlight, now)
	if err != nil {
		return nil, fmt.Errorf("events: claim delivery: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return nil, nil
	}

	existing, err := s.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("events: claim delivery %s: row vanished", key)
	}
	if existing.Status == StatusCompleted {
		return existing, nil
	}

	// Abandoned claims past the TTL can be taken over.
	reclaim := `
		UPDATE webhook_deliveries SET claimed_at = $2
		WHERE delivery_key = $1 AND status = $3 AND claimed_at < $4
	`
	ct, err = s.pool.Exec(ctx, reclaim, key, now, StatusInFlight, now.Add(-s.ttl))
	if err != nil {
		return nil, fmt.Errorf("events: reclaim delivery: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return nil, nil
	}
	return nil, ErrDeliveryInFlight
}

// Complete stores the spoken result for replay.
func (s *DeliveryStore) Complete(ctx context.Context, key, result string) error {
	query := `
		UPDATE webhook_deliveries SET status = $2, result = $3, completed_at = $4
		WHERE delivery_key = $1
	`
	if _, err := s.pool.Exec(ctx, query, key, StatusCompleted, result, s.now().UTC()); err != nil {
		return fmt.Errorf("events: complete delivery: %w", err)
	}
	return nil
}

// Lookup returns the delivery for key, or nil when none exists.
func (s *DeliveryStore) Lookup(ctx context.Context, key string) (*Delivery, error) {
	query := `SELECT status, COALESCE(result, ''), claimed_at, completed_at FROM webhook_deliveries WHERE delivery_key = $1`
	d := Delivery{Key: key}
	if err := s.pool.QueryRow(ctx, query, key).Scan(&d.Status, &d.Result, &d.ClaimedAt, &d.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("events: lookup delivery: %w", err)
	}
	return &d, nil
}

// MemoryDeliveryStore is the in-process variant used without Postgres.
type MemoryDeliveryStore struct {
	mu    sync.Mutex
	items map[string]*Delivery
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryDeliveryStore(ttl time.Duration) *MemoryDeliveryStore {
	if ttl <= 0 {
		ttl = DefaultDeliveryTTL
	}
	return &MemoryDeliveryStore{items: make(map[string]*Delivery), ttl: ttl, now: time.Now}
}

func (m *MemoryDeliveryStore) Claim(ctx context.Context, key string) (*Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	d, ok := m.items[key]
	if !ok {
		m.items[key] = &Delivery{Key: key, Status: StatusInFlight, ClaimedAt: now}
		return nil, nil
	}
	if d.Status == StatusCompleted {
		cp := *d
		return &cp, nil
	}
	if now.Sub(d.ClaimedAt) > m.ttl {
		d.ClaimedAt = now
		return nil, nil
	}
	return nil, ErrDeliveryInFlight
}

func (m *MemoryDeliveryStore) Complete(ctx context.Context, key, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	d, ok := m.items[key]
	if !ok {
		d = &Delivery{Key: key, ClaimedAt: now}
		m.items[key] = d
	}
	d.Status = StatusCompleted
	d.Result = result
	d.CompletedAt = &now
	return nil
}

func (m *MemoryDeliveryStore) Lookup(ctx context.Context, key string) (*Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[key]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}
