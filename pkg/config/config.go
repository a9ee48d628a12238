// Package config loads configuration of the API service from the environment and an optional file.
//
// Values are loaded in this order, the later one wins: defaults, config file (YAML, JSON, TOML), environment.
// Environment variables use the "APISERVICE_" prefix, nested keys are joined by "_",
// for example APISERVICE_CACHE_DRIVER. Variables from ".env" files are loaded first, see Load.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mgapi/go-apiservice/pkg/cache"
	"github.com/mgapi/go-apiservice/pkg/log"
)

const EnvPrefix = "APISERVICE"

const (
	TransportDefault = "default"
	TransportHTTP2   = "http2"
	TransportResty   = "resty"
)

const (
	TraceNone = "none"
	TraceLog  = "log"
	TraceDump = "dump"
	TraceZap  = "zap"
)

const (
	CacheModeMerge    = "merge"
	CacheModeLiveOnly = "live-only"
)

// Config of the API service.
type Config struct {
	// BaseURL is used for requests with a relative URL.
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// RetryCount enables retry of network errors, 0 means no retry.
	RetryCount int `mapstructure:"retry_count"`
	// Transport is one of: default, http2, resty.
	Transport string `mapstructure:"transport"`
	// Trace is one of: none, log, dump, zap.
	Trace string `mapstructure:"trace"`
	// Telemetry enables OpenTelemetry tracing and metrics by the global providers.
	Telemetry bool `mapstructure:"telemetry"`
	// CacheMode is one of: merge, live-only.
	CacheMode         string        `mapstructure:"cache_mode"`
	CacheWriteTimeout time.Duration `mapstructure:"cache_write_timeout"`
	Cache             cache.Config  `mapstructure:"cache"`
	Log               log.Config    `mapstructure:"log"`
}

func Default() Config {
	return Config{
		UserAgent:         "go-apiservice",
		Timeout:           30 * time.Second,
		Transport:         TransportDefault,
		Trace:             TraceNone,
		CacheMode:         CacheModeMerge,
		CacheWriteTimeout: 10 * time.Second,
		Cache:             cache.Config{Driver: cache.DriverNone},
		Log:               log.DefaultConfig(),
	}
}

// Load loads the configuration.
// Missing env files are ignored, a missing config file is an error. An empty configFile means no file.
func Load(configFile string, envFiles ...string) (Config, error) {
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf(`cannot load env file "%s": %w`, envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v, Default())

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf(`cannot read config file "%s": %w`, configFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("cannot unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks all values, it returns the first error found.
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout (must be positive duration)")
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("invalid retry_count (must not be negative)")
	}
	if c.CacheWriteTimeout <= 0 {
		return fmt.Errorf("invalid cache_write_timeout (must be positive duration)")
	}
	switch c.Transport {
	case "", TransportDefault, TransportHTTP2, TransportResty:
	default:
		return fmt.Errorf(`unexpected transport "%s"`, c.Transport)
	}
	switch c.Trace {
	case "", TraceNone, TraceLog, TraceDump, TraceZap:
	default:
		return fmt.Errorf(`unexpected trace "%s"`, c.Trace)
	}
	switch c.CacheMode {
	case "", CacheModeMerge, CacheModeLiveOnly:
	default:
		return fmt.Errorf(`unexpected cache_mode "%s"`, c.CacheMode)
	}
	switch strings.ToLower(c.Cache.Driver) {
	case "", cache.DriverNone, cache.DriverMemory:
	case cache.DriverBolt:
		if c.Cache.Path == "" {
			return fmt.Errorf(`cache.path is required by the "%s" cache driver`, cache.DriverBolt)
		}
	case cache.DriverBlob:
		if c.Cache.BucketURL == "" {
			return fmt.Errorf(`cache.bucket_url is required by the "%s" cache driver`, cache.DriverBlob)
		}
	default:
		return fmt.Errorf(`unexpected cache.driver "%s"`, c.Cache.Driver)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("invalid log config: %w", err)
	}
	return nil
}

// setDefaults registers all keys, so they can be overridden by the environment.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("retry_count", d.RetryCount)
	v.SetDefault("transport", d.Transport)
	v.SetDefault("trace", d.Trace)
	v.SetDefault("telemetry", d.Telemetry)
	v.SetDefault("cache_mode", d.CacheMode)
	v.SetDefault("cache_write_timeout", d.CacheWriteTimeout)
	v.SetDefault("cache.driver", d.Cache.Driver)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.bucket_url", d.Cache.BucketURL)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
