package apiservice

import (
	"context"
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/mgapi/go-apiservice/pkg/cache"
	"github.com/mgapi/go-apiservice/pkg/client"
	"github.com/mgapi/go-apiservice/pkg/client/restyclient"
	"github.com/mgapi/go-apiservice/pkg/client/trace"
	clientOtel "github.com/mgapi/go-apiservice/pkg/client/trace/otel"
	appconfig "github.com/mgapi/go-apiservice/pkg/config"
	"github.com/mgapi/go-apiservice/pkg/log"
	"github.com/mgapi/go-apiservice/pkg/request"
)

// ParseCacheMode converts the configuration value to the CacheMode.
func ParseCacheMode(v string) (CacheMode, error) {
	switch v {
	case "", appconfig.CacheModeMerge:
		return CacheModeMerge, nil
	case appconfig.CacheModeLiveOnly:
		return CacheModeLiveOnly, nil
	default:
		return 0, fmt.Errorf(`unexpected cache mode "%s"`, v)
	}
}

// NewFromConfig creates the Service with the transport, the cache store and the logger built from the configuration.
// Options are applied after the configuration, so they can override it.
func NewFromConfig(ctx context.Context, cfg appconfig.Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := log.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	mode, err := ParseCacheMode(cfg.CacheMode)
	if err != nil {
		return nil, err
	}

	sender := NewSender(cfg, logger)

	store, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}

	defaults := []Option{
		WithLogger(logger),
		WithCache(store),
		WithCacheMode(mode),
		WithCacheWriteTimeout(cfg.CacheWriteTimeout),
	}
	return New(sender, append(defaults, opts...)...), nil
}

// NewSender creates the transport configured by the Transport, Trace and Telemetry fields.
// Trace and telemetry are supported only by the net/http transports.
func NewSender(cfg appconfig.Config, logger *zap.Logger) request.Sender {
	if cfg.Transport == appconfig.TransportResty {
		c := resty.New().SetTimeout(cfg.Timeout)
		if cfg.RetryCount > 0 {
			c.SetRetryCount(cfg.RetryCount).SetRetryWaitTime(client.RetryWaitTimeStart).SetRetryMaxWaitTime(client.RetryWaitTimeMax)
		}
		if cfg.BaseURL != "" {
			c.SetBaseURL(cfg.BaseURL)
		}
		sender := restyclient.New(c)
		if cfg.UserAgent != "" {
			c.SetHeader("User-Agent", cfg.UserAgent)
		}
		return sender
	}

	c := client.New().WithTimeout(cfg.Timeout)
	if cfg.Transport == appconfig.TransportHTTP2 {
		c = c.WithTransport(client.HTTP2Transport())
	}
	if cfg.BaseURL != "" {
		c = c.WithBaseURL(cfg.BaseURL)
	}
	if cfg.UserAgent != "" {
		c = c.WithUserAgent(cfg.UserAgent)
	}
	if cfg.RetryCount > 0 {
		retry := client.RetryOnNetworkErrors()
		retry.Count = cfg.RetryCount
		retry.TotalRequestTimeout = cfg.Timeout
		c = c.WithRetry(retry)
	}

	switch cfg.Trace {
	case appconfig.TraceLog:
		c = c.AndTrace(trace.LogTracer(os.Stderr))
	case appconfig.TraceDump:
		c = c.AndTrace(trace.DumpTracer(os.Stderr))
	case appconfig.TraceZap:
		c = c.AndTrace(trace.ZapTracer(logger))
	}

	if cfg.Telemetry {
		c = c.AndTrace(clientOtel.NewTrace(otel.GetTracerProvider(), otel.GetMeterProvider()))
	}

	return c
}
