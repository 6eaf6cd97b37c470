package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wolfman30/voice-scheduler/internal/schedule"
)

type observation struct {
	op     string
	status string
}

type recordingObserver struct {
	seen []observation
}

func (r *recordingObserver) ObserveExternalCall(collaborator, op, status string, seconds float64) {
	r.seen = append(r.seen, observation{op: op, status: status})
}

type slowClient struct {
	MemoryClient
}

func (s *slowClient) CheckFreeBusy(ctx context.Context, w schedule.TimeWindow) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func TestGuardedClientTimeout(t *testing.T) {
	obs := &recordingObserver{}
	g := NewGuardedClient(&slowClient{}, 20*time.Millisecond, obs, nil)

	_, err := g.CheckFreeBusy(context.Background(), slot(10, 0))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if len(obs.seen) != 1 || obs.seen[0].status != "timeout" || obs.seen[0].op != "check_free_busy" {
		t.Fatalf("unexpected observations %+v", obs.seen)
	}
}

func TestGuardedClientWrapsErrors(t *testing.T) {
	inner := NewMemoryClient()
	inner.FailWith(errors.New("503 backend error"))
	obs := &recordingObserver{}
	g := NewGuardedClient(inner, time.Second, obs, nil)

	if _, err := g.CreateEvent(context.Background(), slot(10, 0), "x", ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if obs.seen[0].status != "error" {
		t.Fatalf("expected error status, got %s", obs.seen[0].status)
	}
}

func TestGuardedClientPassesThrough(t *testing.T) {
	inner := NewMemoryClient(slot(10, 0))
	g := NewGuardedClient(inner, time.Second, nil, nil)

	busy, err := g.ListFreeBusy(context.Background(), schedule.WindowFrom(slot(9, 0).Start, 3*time.Hour))
	if err != nil || len(busy) != 1 {
		t.Fatalf("expected one busy interval, got %v err=%v", busy, err)
	}
}
