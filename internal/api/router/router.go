package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/voice-scheduler/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/voice-scheduler/internal/http/middleware"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

// ReadinessCheck reports whether a dependency is reachable.
type ReadinessCheck = func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	VoiceTools     *handlers.VoiceToolHandler
	MetricsHandler http.Handler
	// Readiness maps dependency names to checks run by GET /ready.
	Readiness map[string]ReadinessCheck
	// WebhookRate is requests per second per client IP; zero disables limiting.
	WebhookRate  float64
	WebhookBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", readiness(cfg.Readiness))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.VoiceTools != nil {
		r.Group(func(webhooks chi.Router) {
			if cfg.WebhookRate > 0 {
				webhooks.Use(httpmiddleware.RateLimit(cfg.WebhookRate, cfg.WebhookBurst))
			}
			webhooks.Post("/webhooks/voice/tool-calls", cfg.VoiceTools.HandleToolCalls)
		})
	}

	return r
}

func readiness(checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				result[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			result[name] = "ok"
		}
		writeJSON(w, status, result)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
