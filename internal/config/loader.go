package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BONDDESK_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BONDDESK_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setStr(&cfg.Server.Host, "BONDDESK_SERVER_HOST")
	setInt(&cfg.Server.Port, "BONDDESK_SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT") // hosting platforms
	setStringSlice(&cfg.Server.CORSOrigins, "BONDDESK_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "BONDDESK_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "BONDDESK_SERVER_RATE_WINDOW")

	// ── Upstream ──
	setStr(&cfg.Upstream.BaseURL, "BONDDESK_UPSTREAM_BASE_URL")
	setStr(&cfg.Upstream.APIKey, "BONDDESK_UPSTREAM_API_KEY")
	setStr(&cfg.Upstream.APIKey, "MOMENT_API_KEY") // compatibility alias
	setDuration(&cfg.Upstream.Timeout, "BONDDESK_UPSTREAM_TIMEOUT")
	setFloat64(&cfg.Upstream.RequestsPerSecond, "BONDDESK_UPSTREAM_REQUESTS_PER_SECOND")
	setInt(&cfg.Upstream.Burst, "BONDDESK_UPSTREAM_BURST")
	setInt(&cfg.Upstream.BreakerFailures, "BONDDESK_UPSTREAM_BREAKER_FAILURES")
	setDuration(&cfg.Upstream.BreakerTimeout, "BONDDESK_UPSTREAM_BREAKER_TIMEOUT")

	// ── Sync ──
	setBool(&cfg.Sync.Enabled, "BONDDESK_SYNC_ENABLED")
	setDuration(&cfg.Sync.Interval, "BONDDESK_SYNC_INTERVAL")
	setInt(&cfg.Sync.BatchSize, "BONDDESK_SYNC_BATCH_SIZE")
	setDuration(&cfg.Sync.BatchDelay, "BONDDESK_SYNC_BATCH_DELAY")
	setInt(&cfg.Sync.InstrumentLimit, "BONDDESK_SYNC_INSTRUMENT_LIMIT")

	// ── Quotes ──
	setFloat64(&cfg.Quotes.HalfSpread, "BONDDESK_QUOTES_HALF_SPREAD")
	setFloat64(&cfg.Quotes.BidYieldSkew, "BONDDESK_QUOTES_BID_YIELD_SKEW")
	setFloat64(&cfg.Quotes.AskYieldSkew, "BONDDESK_QUOTES_ASK_YIELD_SKEW")
	setInt64(&cfg.Quotes.PlaceholderSize, "BONDDESK_QUOTES_PLACEHOLDER_SIZE")
	setInt64(&cfg.Quotes.PlaceholderMinSize, "BONDDESK_QUOTES_PLACEHOLDER_MIN_SIZE")

	// ── Store ──
	setStr(&cfg.Store.YieldFilterField, "BONDDESK_STORE_YIELD_FILTER_FIELD")
	setBool(&cfg.Store.SeedSampleBonds, "BONDDESK_STORE_SEED_SAMPLE_BONDS")
	setStr(&cfg.Store.SeedFile, "BONDDESK_STORE_SEED_FILE")

	// ── WS ──
	setBool(&cfg.WS.FilterBySubscription, "BONDDESK_WS_FILTER_BY_SUBSCRIPTION")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BONDDESK_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BONDDESK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BONDDESK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BONDDESK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BONDDESK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BONDDESK_REDIS_MAX_RETRIES")
	setDuration(&cfg.Redis.QuoteTTL, "BONDDESK_REDIS_QUOTE_TTL")
	setStr(&cfg.Redis.ChannelPrefix, "BONDDESK_REDIS_CHANNEL_PREFIX")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "BONDDESK_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "BONDDESK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BONDDESK_S3_REGION")
	setStr(&cfg.S3.Bucket, "BONDDESK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BONDDESK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BONDDESK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BONDDESK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BONDDESK_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "BONDDESK_S3_PREFIX")
	setStr(&cfg.S3.ArchiveCron, "BONDDESK_S3_ARCHIVE_CRON")

	// ── Notify ──
	setStr(&cfg.Notify.WebhookURL, "BONDDESK_NOTIFY_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BONDDESK_NOTIFY_EVENTS")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "BONDDESK_METRICS_ENABLED")
	setStr(&cfg.Metrics.Path, "BONDDESK_METRICS_PATH")

	// ── Top-level ──
	setStr(&cfg.Mode, "BONDDESK_MODE")
	setStr(&cfg.LogLevel, "BONDDESK_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
