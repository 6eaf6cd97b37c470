package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/voice-scheduler/internal/schedule"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

// DefaultSlotHoldTTL bounds how long a check-then-book gap may hold a slot.
const DefaultSlotHoldTTL = 30 * time.Second

// ReleaseFunc releases a held slot. It is safe to call more than once.
type ReleaseFunc func()

// SlotHolder reserves a normalized window for the duration of one booking attempt.
type SlotHolder interface {
	// Acquire returns ok=false when another request already holds the window.
	Acquire(ctx context.Context, w schedule.TimeWindow) (ReleaseFunc, bool, error)
}

func holdKey(w schedule.TimeWindow) string {
	return fmt.Sprintf("slot:hold:%d:%d", w.Start.Unix(), w.End.Unix())
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSlotHolder holds slots with SET NX PX so concurrent instances share reservations.
type RedisSlotHolder struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewRedisSlotHolder creates a holder backed by Redis.
func NewRedisSlotHolder(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisSlotHolder {
	if client == nil {
		panic("booking: redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultSlotHoldTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisSlotHolder{redis: client, ttl: ttl, logger: logger}
}

func (h *RedisSlotHolder) Acquire(ctx context.Context, w schedule.TimeWindow) (ReleaseFunc, bool, error) {
	key := holdKey(w)
	token := uuid.NewString()
	ok, err := h.redis.SetNX(ctx, key, token, h.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("booking: acquire slot hold: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	var once sync.Once
	release := func() {
		once.Do(func() {
			// Release on a fresh context so a cancelled request still frees the slot.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, h.redis, []string{key}, token).Err(); err != nil {
				h.logger.Warn("failed to release slot hold", "key", key, "error", err)
			}
		})
	}
	return release, true, nil
}

// LocalSlotHolder is an in-process holder for single-instance deployments.
type LocalSlotHolder struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalSlotHolder returns an empty holder.
func NewLocalSlotHolder() *LocalSlotHolder {
	return &LocalSlotHolder{held: make(map[string]struct{})}
}

func (h *LocalSlotHolder) Acquire(ctx context.Context, w schedule.TimeWindow) (ReleaseFunc, bool, error) {
	key := holdKey(w)
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, taken := h.held[key]; taken {
		return nil, false, nil
	}
	h.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.held, key)
			h.mu.Unlock()
		})
	}, true, nil
}
