package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

// DefaultModelTimeout bounds a single model round trip when none is configured.
const DefaultModelTimeout = 20 * time.Second

// CallObserver receives latency for each external call.
type CallObserver interface {
	ObserveExternalCall(collaborator, op, status string, seconds float64)
}

// GuardedModelClient applies a per-call timeout and classifies failures as ErrModelUnavailable.
type GuardedModelClient struct {
	inner    ModelClient
	timeout  time.Duration
	observer CallObserver
	logger   *logging.Logger
}

func NewGuardedModelClient(inner ModelClient, timeout time.Duration, observer CallObserver, logger *logging.Logger) *GuardedModelClient {
	if inner == nil {
		panic("conversation: inner model client required")
	}
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GuardedModelClient{inner: inner, timeout: timeout, observer: observer, logger: logger}
}

func (g *GuardedModelClient) Converse(ctx context.Context, req ModelRequest) (ModelResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	started := time.Now()
	resp, err := g.inner.Converse(ctx, req)
	elapsed := time.Since(started)

	status := "ok"
	if err != nil {
		status = "error"
		if ctx.Err() != nil {
			status = "timeout"
		}
	}
	if g.observer != nil {
		g.observer.ObserveExternalCall("model", "converse", status, elapsed.Seconds())
	}
	if err != nil {
		g.logger.Warn("model call failed", "status", status, "elapsed_ms", elapsed.Milliseconds(), "error", err)
		return ModelResponse{}, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return resp, nil
}
