package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/bonddesk/internal/blob/s3"
	"github.com/alanyoungcy/bonddesk/internal/cache/local"
	"github.com/alanyoungcy/bonddesk/internal/cache/redis"
	"github.com/alanyoungcy/bonddesk/internal/config"
	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/metrics"
	"github.com/alanyoungcy/bonddesk/internal/notify"
	"github.com/alanyoungcy/bonddesk/internal/platform/moment"
	"github.com/alanyoungcy/bonddesk/internal/store/memory"
)

// Dependencies bundles the infrastructure every mode builds on. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Store    *memory.Store
	Upstream *moment.Client
	Metrics  *metrics.Metrics
	Notifier *notify.Notifier

	// Redis-backed when enabled. QuoteCache, SignalBus and LockManager are
	// nil without redis; RateLimiter falls back to an in-process limiter.
	QuoteCache  domain.QuoteCache
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager

	// Nil unless s3 is enabled.
	Archiver domain.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Store: memory.New(memory.Options{
			YieldField: domain.YieldField(cfg.Store.YieldFilterField),
		}),
	}

	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New()
	}

	deps.Upstream = moment.New(moment.Config{
		BaseURL:           cfg.Upstream.BaseURL,
		APIKey:            cfg.Upstream.APIKey,
		Timeout:           cfg.Upstream.Timeout.Duration,
		RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
		Burst:             cfg.Upstream.Burst,
		BreakerFailures:   cfg.Upstream.BreakerFailures,
		BreakerTimeout:    cfg.Upstream.BreakerTimeout.Duration,
	}, logger, moment.WithObserver(deps.Metrics.ObserveUpstream))

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			Prefix:     cfg.Redis.ChannelPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.QuoteCache = redis.NewQuoteCache(redisClient, cfg.Redis.QuoteTTL.Duration)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
	} else {
		deps.RateLimiter = local.NewRateLimiter()
	}

	// --- S3 archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			logger.WarnContext(ctx, "s3 bucket not reachable yet, archiving will retry on schedule",
				slog.String("bucket", cfg.S3.Bucket),
				slog.String("error", err.Error()),
			)
		}

		archiver := s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.Store.Orders, deps.Store.Market, logger)
		if deps.LockManager != nil {
			archiver = archiver.WithLocks(deps.LockManager)
		}
		deps.Archiver = archiver
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.WebhookURL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.Notify.WebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}
