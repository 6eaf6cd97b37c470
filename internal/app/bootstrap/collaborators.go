package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/wolfman30/voice-scheduler/internal/calendar"
	appconfig "github.com/wolfman30/voice-scheduler/internal/config"
	"github.com/wolfman30/voice-scheduler/internal/conversation"
	"github.com/wolfman30/voice-scheduler/internal/notify"
	"github.com/wolfman30/voice-scheduler/internal/schedule"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

// CallObserver receives latency for every guarded external call.
type CallObserver interface {
	ObserveExternalCall(collaborator, op, status string, seconds float64)
}

// BuildCalendarClient selects the calendar provider and wraps it with a timeout guard.
func BuildCalendarClient(ctx context.Context, cfg *appconfig.Config, hours *schedule.BusinessHours, observer CallObserver, logger *logging.Logger) (calendar.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var inner calendar.Client
	switch cfg.CalendarProvider {
	case "", "memory":
		logger.Warn("using in-memory calendar; bookings are not durable")
		inner = calendar.NewMemoryClient()
	case "google":
		tz := ""
		if hours != nil {
			tz = hours.Timezone()
		}
		client, err := calendar.NewGoogleClient(ctx, calendar.GoogleConfig{
			CalendarID:      cfg.GoogleCalendarID,
			CredentialsFile: cfg.GoogleCredentialsFile,
			Endpoint:        cfg.GoogleCalendarURL,
			Timezone:        tz,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: google calendar: %w", err)
		}
		logger.Info("google calendar enabled", "calendar_id", cfg.GoogleCalendarID)
		inner = client
	default:
		return nil, fmt.Errorf("bootstrap: unknown calendar provider %q", cfg.CalendarProvider)
	}
	return calendar.NewGuardedClient(inner, cfg.CalendarTimeout, observer, logger), nil
}

// BuildModelClient wires Bedrock as the primary model and Gemini as the fallback.
// It returns nil when neither is configured; callers then run without the agent path.
func BuildModelClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, observer CallObserver, logger *logging.Logger) (conversation.ModelClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var bedrock, gemini conversation.ModelClient
	if modelID := strings.TrimSpace(cfg.BedrockModelID); modelID != "" {
		bedrock = conversation.NewBedrockModelClient(bedrockruntime.NewFromConfig(awsCfg), modelID)
	}
	if key := strings.TrimSpace(cfg.GeminiAPIKey); key != "" {
		client, err := conversation.NewGeminiModelClient(ctx, key, cfg.GeminiModelID)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		gemini = client
	}

	primary, fallback := bedrock, gemini
	if cfg.LLMProvider == "gemini" {
		primary, fallback = gemini, bedrock
	}
	var model conversation.ModelClient
	switch {
	case primary != nil && fallback != nil:
		model = conversation.NewFallbackModelClient(primary, fallback, logger)
	case primary != nil:
		model = primary
	case fallback != nil:
		model = fallback
	default:
		logger.Warn("no language model configured; natural-language requests will not be scheduled")
		return nil, nil
	}

	logger.Info("language model enabled", "provider", cfg.LLMProvider, "bedrock_model", cfg.BedrockModelID, "gemini_model", cfg.GeminiModelID)
	return conversation.NewGuardedModelClient(model, cfg.LLMTimeout, observer, logger), nil
}

// BuildEmailSender returns the configured email transport, or a stub that only logs.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.Sender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}
	switch cfg.EmailProvider {
	case "ses":
		if cfg.SESFromEmail != "" {
			logger.Info("ses email enabled")
			return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		}
	default:
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			logger.Info("sendgrid email enabled")
			return sender
		}
	}
	logger.Warn("email provider not configured; confirmations will only be logged", "provider", cfg.EmailProvider)
	return notify.NewStubEmailSender(logger)
}
