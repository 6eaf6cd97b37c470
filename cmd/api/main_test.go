package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/voice-scheduler/internal/app/bootstrap"
	appconfig "github.com/wolfman30/voice-scheduler/internal/config"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		BusinessTimezone:     "America/New_York",
		BusinessOpenTime:     "09:00",
		BusinessCloseTime:    "18:00",
		BusinessOpenWeekdays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		SlotDurationMinutes:  30,
		CalendarProvider:     "memory",
		WebhookRateLimit:     10,
		WebhookRateBurst:     5,
	}
}

func TestBuildHandlerServesWebhookAndMetrics(t *testing.T) {
	logger := logging.New("error")
	registry := newMetricsRegistry()
	cfg := testConfig()
	rt, err := bootstrap.BuildRuntime(context.Background(), cfg, bootstrap.Options{
		Registerer: registry,
		Now:        func() time.Time { return time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC) },
	}, logger)
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	defer rt.Close()

	handler := buildHandler(cfg, rt, registry, logger)

	body := `{"toolCall":{"id":"tc-9","name":"checkAvailability","arguments":"{\"startTime\":\"2024-01-15T14:00:00-05:00\"}"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice/tool-calls", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"toolCallId":"tc-9"`) {
		t.Fatalf("expected tool call id echoed, got %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "voicescheduler_webhook_requests_total") {
		t.Fatalf("expected webhook counter to be exported")
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected go collector metrics")
	}
}
