package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wolfman30/voice-scheduler/internal/schedule"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Business calendar
	BusinessTimezone     string
	BusinessOpenTime     string
	BusinessCloseTime    string
	BusinessOpenWeekdays []time.Weekday
	SlotDurationMinutes  int
	BusinessHoursFile    string
	BusinessName         string
	DefaultBusinessID    string

	// Calendar collaborator
	CalendarProvider      string
	GoogleCalendarID      string
	GoogleCredentialsFile string
	GoogleCalendarURL     string
	CalendarTimeout       time.Duration

	// Model collaborator
	LLMProvider    string
	BedrockModelID string
	GeminiAPIKey   string
	GeminiModelID  string
	LLMTimeout     time.Duration
	AgentMaxSteps  int

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	AlternativeLookaheadDays       int
	AlternativeCandidateMultiplier int
	SlotHoldTTL                    time.Duration
	DeliveryTTL                    time.Duration
	KnowledgeMaxChars              int

	// ArchiveBucket receives scrubbed agent transcripts; empty disables archiving.
	ArchiveBucket string

	// Confirmation email
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string

	WebhookRateLimit float64
	WebhookRateBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		BusinessTimezone:     getEnv("BUSINESS_TIMEZONE", "America/New_York"),
		BusinessOpenTime:     getEnv("BUSINESS_OPEN_TIME", "09:00"),
		BusinessCloseTime:    getEnv("BUSINESS_CLOSE_TIME", "18:00"),
		BusinessOpenWeekdays: getEnvAsWeekdays("BUSINESS_OPEN_WEEKDAYS", []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}),
		SlotDurationMinutes:  getEnvAsInt("SLOT_DURATION_MINUTES", 30),
		BusinessHoursFile:    getEnv("BUSINESS_HOURS_FILE", ""),
		BusinessName:         getEnv("BUSINESS_NAME", ""),
		DefaultBusinessID:    getEnv("DEFAULT_BUSINESS_ID", ""),

		CalendarProvider:      strings.ToLower(getEnv("CALENDAR_PROVIDER", "memory")),
		GoogleCalendarID:      getEnv("GOOGLE_CALENDAR_ID", "primary"),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleCalendarURL:     getEnv("GOOGLE_CALENDAR_ENDPOINT", ""),
		CalendarTimeout:       getEnvAsDuration("CALENDAR_TIMEOUT", 5*time.Second),

		LLMProvider:    strings.ToLower(getEnv("LLM_PROVIDER", "bedrock")),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-1.5-flash"),
		LLMTimeout:     getEnvAsDuration("LLM_TIMEOUT", 15*time.Second),
		AgentMaxSteps:  getEnvAsInt("AGENT_MAX_ITERATIONS", 10),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		AlternativeLookaheadDays:       getEnvAsInt("ALTERNATIVE_LOOKAHEAD_DAYS", 7),
		AlternativeCandidateMultiplier: getEnvAsInt("ALTERNATIVE_CANDIDATE_MULTIPLIER", 3),
		SlotHoldTTL:                    getEnvAsDuration("SLOT_HOLD_TTL", 30*time.Second),
		DeliveryTTL:                    getEnvAsDuration("DELIVERY_TTL", 24*time.Hour),
		KnowledgeMaxChars:              getEnvAsInt("KNOWLEDGE_MAX_CHARS", 4000),

		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),

		EmailProvider:     strings.ToLower(getEnv("EMAIL_PROVIDER", "sendgrid")),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Appointments"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),

		WebhookRateLimit: getEnvAsFloat("WEBHOOK_RATE_LIMIT", 5),
		WebhookRateBurst: getEnvAsInt("WEBHOOK_RATE_BURST", 20),
	}
}

// hoursFile is the YAML shape accepted by BUSINESS_HOURS_FILE.
type hoursFile struct {
	Timezone    string `yaml:"timezone"`
	Open        string `yaml:"open"`
	Close       string `yaml:"close"`
	Weekdays    []int  `yaml:"weekdays"`
	SlotMinutes int    `yaml:"slot_minutes"`
}

// LoadBusinessHoursFile overlays the non-empty fields of a YAML hours file onto cfg.
func LoadBusinessHoursFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read business hours file: %w", err)
	}
	var f hoursFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("config: parse business hours file: %w", err)
	}
	if f.Timezone != "" {
		cfg.BusinessTimezone = f.Timezone
	}
	if f.Open != "" {
		cfg.BusinessOpenTime = f.Open
	}
	if f.Close != "" {
		cfg.BusinessCloseTime = f.Close
	}
	if len(f.Weekdays) > 0 {
		days := make([]time.Weekday, 0, len(f.Weekdays))
		for _, n := range f.Weekdays {
			d, ok := isoWeekday(n)
			if !ok {
				return fmt.Errorf("config: business hours file: weekday %d out of range", n)
			}
			days = append(days, d)
		}
		cfg.BusinessOpenWeekdays = days
	}
	if f.SlotMinutes > 0 {
		cfg.SlotDurationMinutes = f.SlotMinutes
	}
	return nil
}

// BusinessHours validates the configured calendar, applying BUSINESS_HOURS_FILE first when set.
func (c *Config) BusinessHours() (*schedule.BusinessHours, error) {
	if c.BusinessHoursFile != "" {
		if err := LoadBusinessHoursFile(c, c.BusinessHoursFile); err != nil {
			return nil, err
		}
	}
	return schedule.NewBusinessHours(c.BusinessTimezone, c.BusinessOpenTime, c.BusinessCloseTime, c.BusinessOpenWeekdays, c.SlotDurationMinutes)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsWeekdays parses a comma-separated list of ISO weekday numbers (1=Mon..7=Sun).
// Any invalid entry falls back to the default.
func getEnvAsWeekdays(key string, defaultValue []time.Weekday) []time.Weekday {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var days []time.Weekday
	for _, part := range strings.Split(valueStr, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		d, ok := isoWeekday(n)
		if !ok {
			return defaultValue
		}
		days = append(days, d)
	}
	return days
}

func isoWeekday(n int) (time.Weekday, bool) {
	if n < 1 || n > 7 {
		return 0, false
	}
	return time.Weekday(n % 7), true
}
