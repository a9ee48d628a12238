package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgapi/go-apiservice/pkg/cache"
	"github.com/mgapi/go-apiservice/pkg/config"
	"github.com/mgapi/go-apiservice/pkg/log"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: https://api.example.com
timeout: 5s
retry_count: 3
transport: resty
cache_mode: live-only
cache:
  driver: bbolt
  path: /tmp/cache.db
log:
  level: debug
  format: console
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.RetryCount)
	assert.Equal(t, config.TransportResty, cfg.Transport)
	assert.Equal(t, config.CacheModeLiveOnly, cfg.CacheMode)
	assert.Equal(t, cache.Config{Driver: "bbolt", Path: "/tmp/cache.db"}, cfg.Cache)
	assert.Equal(t, log.Config{Level: "debug", Format: "console"}, cfg.Log)
	assert.Equal(t, "go-apiservice", cfg.UserAgent)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("APISERVICE_BASE_URL", "https://env.example.com")
	t.Setenv("APISERVICE_TIMEOUT", "1m")
	t.Setenv("APISERVICE_CACHE_DRIVER", "memory")
	t.Setenv("APISERVICE_LOG_LEVEL", "warn")

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"base_url": "https://file.example.com", "trace": "zap"}`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.BaseURL)
	assert.Equal(t, time.Minute, cfg.Timeout)
	assert.Equal(t, config.TraceZap, cfg.Trace)
	assert.Equal(t, cache.DriverMemory, cfg.Cache.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_EnvFile(t *testing.T) {
	const key = "APISERVICE_USER_AGENT"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(key+"=my-app/1.0\n"), 0o600))

	cfg, err := config.Load("", envFile, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "my-app/1.0", cfg.UserAgent)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot read config file")
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("APISERVICE_CACHE_DRIVER", "bbolt")
	_, err := config.Load("")
	require.Error(t, err)
	assert.Equal(t, `cache.path is required by the "bbolt" cache driver`, err.Error())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		modify   func(c *config.Config)
		expected string
	}{
		{"timeout", func(c *config.Config) { c.Timeout = 0 }, "invalid timeout (must be positive duration)"},
		{"retry", func(c *config.Config) { c.RetryCount = -1 }, "invalid retry_count (must not be negative)"},
		{"cache write timeout", func(c *config.Config) { c.CacheWriteTimeout = -time.Second }, "invalid cache_write_timeout (must be positive duration)"},
		{"transport", func(c *config.Config) { c.Transport = "grpc" }, `unexpected transport "grpc"`},
		{"trace", func(c *config.Config) { c.Trace = "stdout" }, `unexpected trace "stdout"`},
		{"cache mode", func(c *config.Config) { c.CacheMode = "always" }, `unexpected cache_mode "always"`},
		{"cache driver", func(c *config.Config) { c.Cache.Driver = "redis" }, `unexpected cache.driver "redis"`},
		{"blob", func(c *config.Config) { c.Cache.Driver = "blob" }, `cache.bucket_url is required by the "blob" cache driver`},
		{"log", func(c *config.Config) { c.Log.Format = "xml" }, `invalid log config: unexpected log format "xml", expected "json" or "console"`},
	}

	for _, tc := range cases {
		cfg := config.Default()
		tc.modify(&cfg)
		err := cfg.Validate()
		if assert.Error(t, err, tc.name) {
			assert.Equal(t, tc.expected, err.Error(), tc.name)
		}
	}

	assert.NoError(t, config.Default().Validate())
}
