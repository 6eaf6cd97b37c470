package conversation

import (
	"context"
	"errors"
	"testing"
	"time"
)

type observedCall struct {
	collaborator, op, status string
}

type recordingObserver struct {
	calls []observedCall
}

func (r *recordingObserver) ObserveExternalCall(collaborator, op, status string, seconds float64) {
	r.calls = append(r.calls, observedCall{collaborator, op, status})
}

type stubModel struct {
	resp  ModelResponse
	err   error
	calls int
	block bool
}

func (s *stubModel) Converse(ctx context.Context, req ModelRequest) (ModelResponse, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return ModelResponse{}, ctx.Err()
	}
	return s.resp, s.err
}

func TestGuardedModelClientTimeout(t *testing.T) {
	obs := &recordingObserver{}
	g := NewGuardedModelClient(&stubModel{block: true}, 10*time.Millisecond, obs, nil)

	_, err := g.Converse(context.Background(), ModelRequest{})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if len(obs.calls) != 1 || obs.calls[0] != (observedCall{"model", "converse", "timeout"}) {
		t.Fatalf("unexpected observations %+v", obs.calls)
	}
}

func TestGuardedModelClientSuccess(t *testing.T) {
	obs := &recordingObserver{}
	g := NewGuardedModelClient(&stubModel{resp: ModelResponse{Text: "ok"}}, 0, obs, nil)

	resp, err := g.Converse(context.Background(), ModelRequest{})
	if err != nil || resp.Text != "ok" {
		t.Fatalf("unexpected result %+v, %v", resp, err)
	}
	if obs.calls[0].status != "ok" {
		t.Fatalf("expected ok status, got %+v", obs.calls)
	}
}

func TestFallbackModelClient(t *testing.T) {
	primary := &stubModel{err: errors.New("throttled")}
	fallback := &stubModel{resp: ModelResponse{Text: "from fallback"}}
	c := NewFallbackModelClient(primary, fallback, nil)

	resp, err := c.Converse(context.Background(), ModelRequest{})
	if err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}
	if resp.Text != "from fallback" || primary.calls != 1 || fallback.calls != 1 {
		t.Fatalf("unexpected fallback behaviour: %+v primary=%d fallback=%d", resp, primary.calls, fallback.calls)
	}
}

func TestFallbackModelClientSkipsFallbackWhenCancelled(t *testing.T) {
	primary := &stubModel{err: errors.New("boom")}
	fallback := &stubModel{resp: ModelResponse{Text: "unused"}}
	c := NewFallbackModelClient(primary, fallback, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Converse(ctx, ModelRequest{}); err == nil {
		t.Fatalf("expected primary error")
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback should not run after cancellation")
	}
}
