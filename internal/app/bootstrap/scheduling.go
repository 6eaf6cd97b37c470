package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/voice-scheduler/internal/availability"
	"github.com/wolfman30/voice-scheduler/internal/booking"
	"github.com/wolfman30/voice-scheduler/internal/bookings"
	"github.com/wolfman30/voice-scheduler/internal/archive"
	appconfig "github.com/wolfman30/voice-scheduler/internal/config"
	"github.com/wolfman30/voice-scheduler/internal/conversation"
	"github.com/wolfman30/voice-scheduler/internal/events"
	"github.com/wolfman30/voice-scheduler/internal/knowledge"
	"github.com/wolfman30/voice-scheduler/internal/notify"
	"github.com/wolfman30/voice-scheduler/internal/observability/metrics"
	"github.com/wolfman30/voice-scheduler/internal/schedule"
	"github.com/wolfman30/voice-scheduler/internal/scheduling"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

// Runtime is the assembled booking stack shared by the API server and the CLI.
type Runtime struct {
	Hours     *schedule.BusinessHours
	Redis     *redis.Client
	Pool      *pgxpool.Pool
	Metrics   *metrics.BookingMetrics
	Knowledge *knowledge.Store
	// Archive is nil unless ARCHIVE_BUCKET is set.
	Archive *archive.Store
	Service   *scheduling.Service
	// Deliverer drains queued confirmations; nil without Postgres.
	Deliverer *events.Deliverer

	closers []func()
}

// Options carry process-level inputs that do not come from the environment.
type Options struct {
	AWS        aws.Config
	Registerer prometheus.Registerer
	// Now overrides the clock; tests pin it.
	Now func() time.Time
}

// BuildRuntime wires every collaborator from config. Missing Redis or Postgres
// degrade to in-process stores rather than failing startup.
func BuildRuntime(ctx context.Context, cfg *appconfig.Config, opts Options, logger *logging.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	hours, err := cfg.BusinessHours()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: business hours: %w", err)
	}
	logger.Info("business calendar loaded", "hours", hours.Describe())

	rt := &Runtime{Hours: hours, Metrics: metrics.NewBookingMetrics(opts.Registerer)}

	rt.Redis = BuildRedisClient(ctx, cfg, logger, true)
	if rt.Redis != nil {
		rt.closers = append(rt.closers, func() { _ = rt.Redis.Close() })
	}
	rt.Pool, err = BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if rt.Pool != nil {
		rt.closers = append(rt.closers, rt.Pool.Close)
	}

	cal, err := BuildCalendarClient(ctx, cfg, hours, rt.Metrics, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	model, err := BuildModelClient(ctx, cfg, opts.AWS, rt.Metrics, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var store bookings.Store
	var deliveries scheduling.DeliveryTracker
	if rt.Pool != nil {
		store = bookings.NewRepository(rt.Pool)
		deliveries = events.NewDeliveryStore(rt.Pool, cfg.DeliveryTTL)
	} else {
		logger.Warn("DATABASE_URL not set; call logs and appointments kept in memory")
		store = bookings.NewMemoryStore()
		deliveries = events.NewMemoryDeliveryStore(cfg.DeliveryTTL)
	}
	records := bookings.NewService(store, logger)

	var holder booking.SlotHolder
	if rt.Redis != nil {
		holder = booking.NewRedisSlotHolder(rt.Redis, cfg.SlotHoldTTL, logger)
	} else {
		holder = booking.NewLocalSlotHolder()
	}

	mailer := notify.NewMailer(BuildEmailSender(cfg, opts.AWS, logger))
	var notifier booking.Notifier = booking.NewEmailNotifier(mailer, hours, cfg.BusinessName, logger)
	if rt.Pool != nil {
		outbox := events.NewOutboxStore(rt.Pool)
		rt.Deliverer = events.NewDeliverer(outbox, booking.NewConfirmationHandler(notifier), logger)
		notifier = booking.NewOutboxNotifier(outbox, logger)
	}

	resolver := availability.NewResolver(hours, cal, logger)
	coordinator := booking.NewCoordinator(booking.Deps{
		Resolver: resolver,
		Searcher: availability.NewSearcher(resolver, cal, availability.SearchOptions{
			LookaheadDays:       cfg.AlternativeLookaheadDays,
			CandidateMultiplier: cfg.AlternativeCandidateMultiplier,
		}, opts.Now, logger),
		Calendar: cal,
		Store:    records,
		Holder:   holder,
		Notifier: notifier,
		Now:      opts.Now,
		Logger:   logger,
	})

	deps := scheduling.Deps{
		Coordinator:       coordinator,
		CallLogs:          records,
		Deliveries:        deliveries,
		Metrics:           rt.Metrics,
		BusinessName:      cfg.BusinessName,
		DefaultBusinessID: cfg.DefaultBusinessID,
		Logger:            logger,
	}
	if model != nil {
		deps.Agent = conversation.NewAgent(model, coordinator, cfg.AgentMaxSteps, logger)
	}
	if rt.Redis != nil {
		rt.Knowledge = knowledge.NewStore(rt.Redis, cfg.KnowledgeMaxChars)
		deps.Knowledge = rt.Knowledge
	}
	if rt.Archive = BuildArchiveStore(cfg, opts.AWS, logger); rt.Archive != nil {
		deps.Archiver = rt.Archive
	}
	rt.Service = scheduling.NewService(deps)
	return rt, nil
}

// BuildArchiveStore returns nil when no archive bucket is configured.
func BuildArchiveStore(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) *archive.Store {
	if cfg.ArchiveBucket == "" {
		return nil
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// LocalStack serves buckets by path, not virtual host.
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	})
	logger.Info("transcript archive enabled", "bucket", cfg.ArchiveBucket)
	return archive.NewStore(client, cfg.ArchiveBucket, logger)
}

// Start runs background workers until ctx is cancelled.
func (r *Runtime) Start(ctx context.Context) {
	if r.Deliverer != nil {
		go r.Deliverer.Start(ctx)
	}
}

// Readiness returns the dependency pings served by GET /ready.
func (r *Runtime) Readiness() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{}
	if r.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return r.Redis.Ping(ctx).Err() }
	}
	if r.Pool != nil {
		checks["postgres"] = r.Pool.Ping
	}
	return checks
}

// Close releases connections in reverse order of acquisition.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}
