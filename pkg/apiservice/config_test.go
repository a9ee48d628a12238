package apiservice_test

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mgapi/go-apiservice/pkg/apiservice"
	"github.com/mgapi/go-apiservice/pkg/cache"
	"github.com/mgapi/go-apiservice/pkg/client"
	"github.com/mgapi/go-apiservice/pkg/client/restyclient"
	"github.com/mgapi/go-apiservice/pkg/config"
	"github.com/mgapi/go-apiservice/pkg/request"
)

func TestParseCacheMode(t *testing.T) {
	t.Parallel()

	mode, err := apiservice.ParseCacheMode("")
	require.NoError(t, err)
	assert.Equal(t, apiservice.CacheModeMerge, mode)

	mode, err = apiservice.ParseCacheMode("merge")
	require.NoError(t, err)
	assert.Equal(t, apiservice.CacheModeMerge, mode)
	assert.Equal(t, "merge", mode.String())

	mode, err = apiservice.ParseCacheMode("live-only")
	require.NoError(t, err)
	assert.Equal(t, apiservice.CacheModeLiveOnly, mode)
	assert.Equal(t, "live-only", mode.String())

	_, err = apiservice.ParseCacheMode("foo")
	assert.EqualError(t, err, `unexpected cache mode "foo"`)
}

func TestNewFromConfig_MemoryCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := config.Default()
	cfg.BaseURL = "https://example.com/api"
	cfg.Cache.Driver = cache.DriverMemory
	cfg.Transport = config.TransportResty

	svc, err := apiservice.NewFromConfig(ctx, cfg)
	require.NoError(t, err)

	sender, ok := svc.Sender().(restyclient.Sender)
	require.True(t, ok)
	transport := httpmock.NewMockTransport()
	sender.Client().SetTransport(transport)
	transport.RegisterResponder(http.MethodGet, itemURL, func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("User-Agent") != "go-apiservice" {
			return httpmock.NewStringResponse(http.StatusBadRequest, ""), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, `{"id":1,"name":"foo"}`), nil
	})

	req := request.NewHTTPRequest().WithGet("items/1").WithCache(true)
	result, err := apiservice.Object[item](svc, req).Send(ctx)
	require.NoError(t, err)
	assert.Equal(t, item{ID: 1, Name: "foo"}, result)

	// Second call emits the cached value first
	svc.Flush()
	values, err := apiservice.RequestObject[item](ctx, svc, req).Collect()
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, apiservice.SourceCache, values[0].Source)

	require.NoError(t, svc.Close())
}

func TestNewFromConfig_BoltCache(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Cache.Driver = cache.DriverBolt
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache", "responses.db")

	svc, err := apiservice.NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, client.Client{}, svc.Sender())
	require.NoError(t, svc.Close())
	assert.FileExists(t, cfg.Cache.Path)
}

func TestNewFromConfig_Invalid(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Transport = "carrier-pigeon"
	_, err := apiservice.NewFromConfig(context.Background(), cfg)
	assert.EqualError(t, err, `invalid config: unexpected transport "carrier-pigeon"`)

	cfg = config.Default()
	cfg.Cache.Driver = cache.DriverBolt
	_, err = apiservice.NewFromConfig(context.Background(), cfg)
	assert.EqualError(t, err, `invalid config: cache.path is required by the "bbolt" cache driver`)
}

func TestNewFromConfig_OptionsOverrideConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFakeStore()

	cfg := config.Default()
	cfg.Cache.Driver = cache.DriverMemory
	svc, err := apiservice.NewFromConfig(ctx, cfg, apiservice.WithCache(store))
	require.NoError(t, err)
	require.NoError(t, svc.Close())
	assert.True(t, store.closed.Load())
}

func TestNewSender_Default(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.DebugLevel)

	cfg := config.Default()
	cfg.BaseURL = "https://example.com/api"
	cfg.UserAgent = "my-app"
	cfg.RetryCount = 2
	cfg.Trace = config.TraceZap
	cfg.Telemetry = true

	sender, ok := apiservice.NewSender(cfg, zap.New(core)).(client.Client)
	require.True(t, ok)

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, itemURL, func(req *http.Request) (*http.Response, error) {
		return httpmock.NewStringResponse(http.StatusOK, `{"id":1,"name":"`+req.Header.Get("User-Agent")+`"}`), nil
	})

	svc := apiservice.New(sender.WithTransport(transport))
	result, err := apiservice.Object[item](svc, request.NewHTTPRequest().WithGet("items/1")).Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, item{ID: 1, Name: "my-app"}, result)

	assert.Equal(t, 1, logs.FilterMessage("http request started").Len())
	assert.Equal(t, 1, logs.FilterMessage("request processed").Len())
}

func TestNewSender_HTTP2(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Transport = config.TransportHTTP2
	cfg.Trace = config.TraceLog
	assert.IsType(t, client.Client{}, apiservice.NewSender(cfg, zap.NewNop()))
}
