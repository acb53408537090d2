// Package config defines the top-level configuration for bonddesk and
// provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BONDDESK_* environment variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Sync     SyncConfig     `toml:"sync"`
	Quotes   QuotesConfig   `toml:"quotes"`
	Store    StoreConfig    `toml:"store"`
	WS       WSConfig       `toml:"ws"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// RateLimit is the number of API requests one client IP may make per
	// RateWindow. Zero disables limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// UpstreamConfig holds the fixed-income market data / trading API settings.
type UpstreamConfig struct {
	BaseURL           string   `toml:"base_url"`
	APIKey            string   `toml:"api_key"`
	Timeout           duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	BreakerFailures   int      `toml:"breaker_failures"`
	BreakerTimeout    duration `toml:"breaker_timeout"`
}

// SyncConfig controls the periodic quote poller.
type SyncConfig struct {
	Enabled         bool     `toml:"enabled"`
	Interval        duration `toml:"interval"`
	BatchSize       int      `toml:"batch_size"`
	BatchDelay      duration `toml:"batch_delay"`
	InstrumentLimit int      `toml:"instrument_limit"`
}

// QuotesConfig is the spread policy used for estimated quotes.
type QuotesConfig struct {
	HalfSpread         float64 `toml:"half_spread"`
	BidYieldSkew       float64 `toml:"bid_yield_skew"`
	AskYieldSkew       float64 `toml:"ask_yield_skew"`
	PlaceholderSize    int64   `toml:"placeholder_size"`
	PlaceholderMinSize int64   `toml:"placeholder_min_size"`
}

// StoreConfig controls the in-memory store.
type StoreConfig struct {
	// YieldFilterField is the bond field the minYield/maxYield screens
	// compare: "coupon" or "ytm".
	YieldFilterField string `toml:"yield_filter_field"`
	SeedSampleBonds  bool   `toml:"seed_sample_bonds"`

	// SeedFile holds the bond snapshot written by import mode and loaded
	// by every mode at start.
	SeedFile string `toml:"seed_file"`
}

// WSConfig controls the quote push channel.
type WSConfig struct {
	// FilterBySubscription delivers updates only for subscribed bonds to
	// connections that sent a subscription. When false every connection
	// receives every update.
	FilterBySubscription bool `toml:"filter_by_subscription"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled       bool     `toml:"enabled"`
	Addr          string   `toml:"addr"`
	Password      string   `toml:"password"`
	DB            int      `toml:"db"`
	PoolSize      int      `toml:"pool_size"`
	MaxRetries    int      `toml:"max_retries"`
	QuoteTTL      duration `toml:"quote_ttl"`
	ChannelPrefix string   `toml:"channel_prefix"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
	// ArchiveCron is a 5-field cron expression, e.g. "0 3 * * *".
	ArchiveCron string `toml:"archive_cron"`
}

// NotifyConfig holds the alert webhook settings.
type NotifyConfig struct {
	WebhookURL string   `toml:"webhook_url"`
	Events     []string `toml:"events"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        5000,
			CORSOrigins: []string{"*"},
			RateLimit:   300,
			RateWindow:  duration{time.Minute},
		},
		Upstream: UpstreamConfig{
			BaseURL:           "https://paper.moment-api.com",
			Timeout:           duration{30 * time.Second},
			RequestsPerSecond: 10,
			Burst:             10,
			BreakerFailures:   5,
			BreakerTimeout:    duration{30 * time.Second},
		},
		Sync: SyncConfig{
			Enabled:         true,
			Interval:        duration{30 * time.Second},
			BatchSize:       10,
			BatchDelay:      duration{time.Second},
			InstrumentLimit: 100,
		},
		Quotes: QuotesConfig{
			HalfSpread:         0.125,
			BidYieldSkew:       1.002,
			AskYieldSkew:       0.998,
			PlaceholderSize:    1_000_000,
			PlaceholderMinSize: 25_000,
		},
		Store: StoreConfig{
			YieldFilterField: "coupon",
			SeedSampleBonds:  true,
			SeedFile:         "data/bonds.json",
		},
		WS: WSConfig{
			FilterBySubscription: true,
		},
		Redis: RedisConfig{
			Enabled:       false,
			Addr:          "localhost:6379",
			PoolSize:      10,
			MaxRetries:    3,
			QuoteTTL:      duration{10 * time.Minute},
			ChannelPrefix: "bonddesk",
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "bonddesk-archive",
			ForcePathStyle: true,
			Prefix:         "bonddesk",
			ArchiveCron:    "0 3 * * *",
		},
		Notify: NotifyConfig{
			Events: []string{"order_rejected", "sync_batch_failed"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":   true, // api server + quote sync + archiver
	"server": true, // api server only
	"sync":   true, // headless quote sync
	"import": true, // one-shot reference data import into the seed file
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validYieldFields = map[string]bool{
	"coupon": true,
	"ytm":    true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, server, sync, import)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
		errs = append(errs, "server: rate_window must be positive when rate_limit is set")
	}

	// Upstream
	if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("upstream: base_url %q is not an absolute URL", c.Upstream.BaseURL))
	}
	if c.Upstream.Timeout.Duration <= 0 {
		errs = append(errs, "upstream: timeout must be positive")
	}
	if c.Upstream.RequestsPerSecond <= 0 {
		errs = append(errs, "upstream: requests_per_second must be positive")
	}
	if c.Upstream.Burst < 1 {
		errs = append(errs, "upstream: burst must be >= 1")
	}
	if c.Upstream.BreakerFailures < 1 {
		errs = append(errs, "upstream: breaker_failures must be >= 1")
	}

	// Sync
	if c.Sync.Interval.Duration <= 0 {
		errs = append(errs, "sync: interval must be positive")
	}
	if c.Sync.BatchSize < 1 {
		errs = append(errs, "sync: batch_size must be >= 1")
	}
	if c.Sync.BatchDelay.Duration < 0 {
		errs = append(errs, "sync: batch_delay must be >= 0")
	}

	// Quotes
	if c.Quotes.HalfSpread < 0 {
		errs = append(errs, "quotes: half_spread must be >= 0")
	}
	if c.Quotes.BidYieldSkew <= 0 || c.Quotes.AskYieldSkew <= 0 {
		errs = append(errs, "quotes: yield skews must be positive")
	}

	// Store
	if !validYieldFields[strings.ToLower(c.Store.YieldFilterField)] {
		errs = append(errs, fmt.Sprintf("store: unknown yield_filter_field %q (valid: coupon, ytm)", c.Store.YieldFilterField))
	}
	if strings.EqualFold(c.Mode, "import") && strings.TrimSpace(c.Store.SeedFile) == "" {
		errs = append(errs, "store: seed_file must not be empty in import mode")
	}

	// Redis
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}
	if c.Redis.Enabled && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
		if len(strings.Fields(c.S3.ArchiveCron)) != 5 {
			errs = append(errs, "s3: archive_cron must have 5 fields")
		}
	}

	// Metrics
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Sprintf("metrics: path %q must start with /", c.Metrics.Path))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
