package serverapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"storecfg/internal/config"
	"storecfg/internal/configrefresh"
	"storecfg/internal/logging"
	"storecfg/internal/naming"
)

const counterDoc = `
namespace: world
tables:
  Counter: uint32
`

const brokenDoc = `
tables:
  Owner:
    schema:
      owner: address
    key: [missing]
`

func testLogger() *logging.Logger {
	return logging.Discard()
}

func writeDoc(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

func testConfig(t *testing.T, contents string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mud.config.yaml")
	writeDoc(t, path, contents)
	return &config.Config{
		Input:  config.InputConfig{Path: path},
		Naming: naming.DefaultConfig(),
		Server: config.ServerConfig{
			Enabled:            true,
			Port:               0,
			HealthCheckTimeout: time.Second,
			ShutdownTimeout:    time.Second,
		},
		Observability: config.ObservabilityConfig{ServiceName: "storecfg-test"},
	}
}

func initApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := New(cfg, testLogger())
	require.NoError(t, err)
	require.NoError(t, app.Init(context.Background()))
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app
}

func serve(app *App, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, testLogger())
	assert.Error(t, err)

	_, err = New(&config.Config{Input: config.InputConfig{Path: "x.yaml"}}, nil)
	assert.Error(t, err)

	_, err = New(&config.Config{}, testLogger())
	assert.Error(t, err)
}

func TestWaitForStop_SignalWins(t *testing.T) {
	app := &App{logger: testLogger()}
	stop := make(chan os.Signal, 1)
	stop <- syscall.SIGTERM

	reason, err := app.WaitForStop(stop, make(chan error, 1))
	require.NoError(t, err)
	assert.Equal(t, "signal", reason)
}

func TestWaitForStop_ServerErrorWins(t *testing.T) {
	app := &App{logger: testLogger()}
	serverErrors := make(chan error, 1)
	serverErrors <- errors.New("boom")

	reason, err := app.WaitForStop(make(chan os.Signal, 1), serverErrors)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, "server_error", reason)
}

func TestWaitForStop_NoChannels(t *testing.T) {
	app := &App{logger: testLogger()}
	_, err := app.WaitForStop(nil, nil)
	assert.Error(t, err)
}

func TestShutdown_Idempotent(t *testing.T) {
	app := &App{logger: testLogger()}
	var calls int32
	app.cleanup.push("test", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("ignored")
	})

	require.NoError(t, app.Shutdown(context.Background()))
	require.NoError(t, app.Shutdown(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCleanupStack_ReverseOrder(t *testing.T) {
	var order []string
	var s cleanupStack
	for _, name := range []string{"first", "second", "third"} {
		s.push(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	s.run(context.Background(), testLogger())
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestStart_BeforeInit_Fails(t *testing.T) {
	app := &App{logger: testLogger()}
	_, err := app.Start()
	assert.Error(t, err)
}

func TestInit_InvalidDocument(t *testing.T) {
	app, err := New(testConfig(t, brokenDoc), testLogger())
	require.NoError(t, err)

	err = app.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load store document")
	assert.Nil(t, app.Handler())
}

func TestInit_Idempotent(t *testing.T) {
	app := initApp(t, testConfig(t, counterDoc))
	handler := app.Handler()
	require.NoError(t, app.Init(context.Background()))
	assert.NotNil(t, handler)
}

func TestConfigRoute(t *testing.T) {
	app := initApp(t, testConfig(t, counterDoc))

	rec := serve(app, http.MethodGet, "/config", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Contains(t, doc["tables"], "world__Counter")

	etag := rec.Header().Get("ETag")
	assert.Equal(t, `"`+configrefresh.Fingerprint([]byte(counterDoc))+`"`, etag)

	rec = serve(app, http.MethodGet, "/config", "", http.Header{"If-None-Match": {etag}})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())

	for _, header := range []string{`"stale", ` + etag, "*"} {
		rec = serve(app, http.MethodGet, "/config", "", http.Header{"If-None-Match": {header}})
		assert.Equal(t, http.StatusNotModified, rec.Code, header)
	}
	rec = serve(app, http.MethodGet, "/config", "", http.Header{"If-None-Match": {`"stale"`}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(app, http.MethodGet, "/config?format=yaml", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "world__Counter:")

	rec = serve(app, http.MethodGet, "/config?format=toml", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(app, http.MethodPost, "/config", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}

func TestEtagMatches(t *testing.T) {
	const etag = `"abc123"`
	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"empty", "", false},
		{"exact", `"abc123"`, true},
		{"wildcard", "*", true},
		{"weak", `W/"abc123"`, true},
		{"list", `"old", "abc123"`, true},
		{"list without spaces", `"old","abc123"`, true},
		{"list with weak tag", `"old", W/"abc123"`, true},
		{"list without match", `"old", "older"`, false},
		{"unquoted", "abc123", false},
		{"prefix only", `"abc"`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, etagMatches(tt.header, etag))
		})
	}
}

func TestHealthRoute(t *testing.T) {
	app := initApp(t, testConfig(t, counterDoc))

	rec := serve(app, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, configrefresh.Fingerprint([]byte(counterDoc)), resp.Store.Fingerprint)
	assert.Empty(t, resp.Indexer)
}

type fakePinger struct {
	err error
}

func (f fakePinger) PingContext(context.Context) error {
	return f.err
}

func TestHealthHandler_Indexer(t *testing.T) {
	app := initApp(t, testConfig(t, counterDoc))

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantState  string
	}{
		{"indexer up", nil, http.StatusOK, "ok"},
		{"indexer down", errors.New("connection refused"), http.StatusServiceUnavailable, "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := healthHandler(app.manager, fakePinger{err: tt.err}, time.Second)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp healthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantState, resp.Indexer)
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

func TestReloadRoute(t *testing.T) {
	cfg := testConfig(t, counterDoc)
	app := initApp(t, cfg)

	rec := serve(app, http.MethodGet, "/admin/reload", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = serve(app, http.MethodPost, "/admin/reload", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","changed":false}`, rec.Body.String())

	writeDoc(t, cfg.Input.Path, brokenDoc)
	rec = serve(app, http.MethodPost, "/admin/reload", "", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var failed struct {
		Status   string   `json:"status"`
		Problems []string `json:"problems"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
	assert.Equal(t, "error", failed.Status)
	require.Len(t, failed.Problems, 1)
	assert.Contains(t, failed.Problems[0], "missing")

	// The previous store keeps serving.
	rec = serve(app, http.MethodGet, "/config", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "world__Counter")

	rec = serve(app, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Contains(t, health.Store.LastError, "missing")
}

func TestGraphQLRoute(t *testing.T) {
	app := initApp(t, testConfig(t, counterDoc))

	rec := serve(app, http.MethodPost, "/graphql", `{"query":"{ tables { resourceId } }"}`,
		http.Header{"Content-Type": {"application/json"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "world__Counter")

	rec = serve(app, http.MethodPost, "/graphql", `{"query":"{ logs(chainId: 1) { blockNumber } }"}`,
		http.Header{"Content-Type": {"application/json"}})
	assert.Contains(t, rec.Body.String(), "errors", "logs is only exposed with an indexer")
}

func TestRootAndUnknownRoutes(t *testing.T) {
	app := initApp(t, testConfig(t, counterDoc))

	rec := serve(app, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/graphql", rec.Header().Get("Location"))

	rec = serve(app, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics are disabled")
}

func TestMetricsRoute(t *testing.T) {
	previous := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	cfg := testConfig(t, counterDoc)
	cfg.Observability.MetricsEnabled = true
	app := initApp(t, cfg)

	serve(app, http.MethodGet, "/config", "", nil)
	rec := serve(app, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storecfg_resolve")
	assert.Contains(t, rec.Body.String(), "storecfg_http_request")
}

func TestStart_ServesHTTP(t *testing.T) {
	app := initApp(t, testConfig(t, counterDoc))

	serverErrors, err := app.Start()
	require.NoError(t, err)
	require.NotNil(t, serverErrors)

	again, err := app.Start()
	require.NoError(t, err)
	assert.Equal(t, serverErrors, again)

	resp, err := http.Get("http://" + app.Addr() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))

	_, err = http.Get("http://" + app.Addr() + "/health")
	assert.Error(t, err)
}

func TestWrapHTTPHandler_UsesHTTPRootSpanName(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(recorder)
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(previous)
	})

	cfg := &config.Config{Observability: config.ObservabilityConfig{TracingEnabled: true}}
	handler := wrapHTTPHandler(cfg, testLogger(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Contains(t, names, "GET /config")
}

func TestNormalizeHTTPSpanRoute(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/graphql", "/graphql"},
		{"/config", "/config"},
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/admin/reload", "/admin/reload"},
		{"/", "/"},
		{"/tables/123", "/*"},
		{"", "/*"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeHTTPSpanRoute(tt.input))
		})
	}
	assert.Equal(t, "HTTP /*", httpRootSpanName(nil))
}

func TestInitLogger(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	cfg := &config.Config{Observability: config.ObservabilityConfig{
		Logging: config.LoggingConfig{Level: "debug", Format: "text"},
	}}
	logger, provider, err := InitLogger(cfg)
	require.NoError(t, err)
	assert.Nil(t, provider)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.Same(t, logger.Logger, slog.Default())
}
