package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/voice-scheduler/internal/schedule"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

// DefaultTimeout bounds each calendar call when none is configured.
const DefaultTimeout = 8 * time.Second

// CallObserver receives latency for each external call.
type CallObserver interface {
	ObserveExternalCall(collaborator, op, status string, seconds float64)
}

// GuardedClient bounds every call with a timeout and classifies failures as ErrUnavailable.
type GuardedClient struct {
	inner    Client
	timeout  time.Duration
	observer CallObserver
	logger   *logging.Logger
}

// NewGuardedClient wraps inner. observer may be nil.
func NewGuardedClient(inner Client, timeout time.Duration, observer CallObserver, logger *logging.Logger) *GuardedClient {
	if inner == nil {
		panic("calendar: inner client required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GuardedClient{inner: inner, timeout: timeout, observer: observer, logger: logger}
}

func (g *GuardedClient) CheckFreeBusy(ctx context.Context, w schedule.TimeWindow) (bool, error) {
	var busy bool
	err := g.do(ctx, "check_free_busy", func(ctx context.Context) error {
		var err error
		busy, err = g.inner.CheckFreeBusy(ctx, w)
		return err
	})
	return busy, err
}

func (g *GuardedClient) ListFreeBusy(ctx context.Context, span schedule.TimeWindow) ([]schedule.TimeWindow, error) {
	var busy []schedule.TimeWindow
	err := g.do(ctx, "list_free_busy", func(ctx context.Context) error {
		var err error
		busy, err = g.inner.ListFreeBusy(ctx, span)
		return err
	})
	return busy, err
}

func (g *GuardedClient) CreateEvent(ctx context.Context, w schedule.TimeWindow, summary, description string) (Event, error) {
	var ev Event
	err := g.do(ctx, "create_event", func(ctx context.Context) error {
		var err error
		ev, err = g.inner.CreateEvent(ctx, w, summary, description)
		return err
	})
	return ev, err
}

func (g *GuardedClient) do(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	started := time.Now()
	err := fn(ctx)
	elapsed := time.Since(started)

	status := "ok"
	if err != nil {
		status = "error"
		if ctx.Err() != nil {
			status = "timeout"
		}
	}
	if g.observer != nil {
		g.observer.ObserveExternalCall("calendar", op, status, elapsed.Seconds())
	}
	if err == nil {
		return nil
	}
	g.logger.Warn("calendar call failed", "op", op, "status", status, "elapsed_ms", elapsed.Milliseconds(), "error", err)
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
