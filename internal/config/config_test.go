package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_Validate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval.Duration)
	assert.Equal(t, 10, cfg.Sync.BatchSize)
	assert.Equal(t, time.Second, cfg.Sync.BatchDelay.Duration)
	assert.Equal(t, "coupon", cfg.Store.YieldFilterField)
	assert.Equal(t, "https://paper.moment-api.com", cfg.Upstream.BaseURL)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "server"
log_level = "debug"

[server]
port = 8080

[sync]
interval = "45s"
batch_size = 25

[store]
yield_filter_field = "ytm"
`), 0o600))

	t.Setenv("PORT", "")
	t.Setenv("MOMENT_API_KEY", "")
	t.Setenv("BONDDESK_UPSTREAM_API_KEY", "secret-key")
	t.Setenv("BONDDESK_SYNC_BATCH_DELAY", "250ms")
	t.Setenv("BONDDESK_SERVER_CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("BONDDESK_STORE_SEED_FILE", "/var/lib/bonddesk/bonds.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Sync.Interval.Duration)
	assert.Equal(t, 25, cfg.Sync.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.BatchDelay.Duration)
	assert.Equal(t, "ytm", cfg.Store.YieldFilterField)
	assert.Equal(t, "/var/lib/bonddesk/bonds.json", cfg.Store.SeedFile)
	assert.Equal(t, "secret-key", cfg.Upstream.APIKey)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
}

func TestValidate_ImportNeedsSeedFile(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "import"
	require.NoError(t, cfg.Validate())

	cfg.Store.SeedFile = " "
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed_file")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Server.Port = 0
	cfg.Sync.BatchSize = 0
	cfg.Store.YieldFilterField = "ytw"
	cfg.Upstream.BaseURL = "not a url"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "trade"`)
	assert.Contains(t, msg, "server: port")
	assert.Contains(t, msg, "sync: batch_size")
	assert.Contains(t, msg, "yield_filter_field")
	assert.Contains(t, msg, "upstream: base_url")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Upstream.APIKey = "k"
	cfg.S3.SecretKey = "s"
	cfg.Redis.Password = ""

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Upstream.APIKey)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Equal(t, "", out.Redis.Password)
	assert.Equal(t, "k", cfg.Upstream.APIKey)

	out.Server.CORSOrigins[0] = "changed"
	assert.Equal(t, "*", cfg.Server.CORSOrigins[0])
}
