package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestNewTimeWindowRejectsNonPositive(t *testing.T) {
	start := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	if _, err := NewTimeWindow(start, start); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow for empty window, got %v", err)
	}
	if _, err := NewTimeWindow(start, start.Add(-time.Minute)); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow for reversed window, got %v", err)
	}
	w, err := NewTimeWindow(start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Duration() != time.Hour {
		t.Fatalf("expected 1h duration, got %s", w.Duration())
	}
}

func TestWindowFromDefaultsDuration(t *testing.T) {
	start := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	if got := WindowFrom(start, 0).Duration(); got != DefaultSlotDuration {
		t.Fatalf("expected default duration, got %s", got)
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	base := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	a := WindowFrom(base, 30*time.Minute)

	tests := []struct {
		name string
		b    TimeWindow
		want bool
	}{
		{"adjacent after", WindowFrom(base.Add(30*time.Minute), 30*time.Minute), false},
		{"adjacent before", WindowFrom(base.Add(-30*time.Minute), 30*time.Minute), false},
		{"starts inside", WindowFrom(base.Add(10*time.Minute), 30*time.Minute), true},
		{"ends inside", WindowFrom(base.Add(-10*time.Minute), 30*time.Minute), true},
		{"contains", WindowFrom(base.Add(-time.Hour), 3*time.Hour), true},
		{"identical", a, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Overlaps(tt.b); got != tt.want {
				t.Fatalf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(a); got != tt.want {
				t.Fatalf("Overlaps is not symmetric")
			}
		})
	}
}

func TestParseInstant(t *testing.T) {
	ny := mustLoc(t, "America/New_York")
	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{"rfc3339 offset", "2024-01-15T14:00:00-05:00", time.Date(2024, 1, 15, 19, 0, 0, 0, time.UTC), false},
		{"rfc3339 utc", "2024-01-15T19:00:00Z", time.Date(2024, 1, 15, 19, 0, 0, 0, time.UTC), false},
		{"naive seconds", "2024-01-15T14:00:00", time.Date(2024, 1, 15, 14, 0, 0, 0, ny), false},
		{"naive minutes", "2024-01-15T14:00", time.Date(2024, 1, 15, 14, 0, 0, 0, ny), false},
		{"space separated", "2024-01-15 14:00", time.Date(2024, 1, 15, 14, 0, 0, 0, ny), false},
		{"natural language", "next tuesday at 3pm", time.Time{}, true},
		{"empty", "  ", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInstant(tt.raw, ny)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ParseInstant = %s, want %s", got, tt.want)
			}
		})
	}
}
