package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"storecfg/internal/config"
	"storecfg/internal/configrefresh"
	"storecfg/internal/gqlschema"
	"storecfg/internal/logging"
	"storecfg/internal/middleware"
	"storecfg/internal/observability"
	"storecfg/internal/queryadapter"
)

// Routes served by the config service.
const (
	routeGraphQL = "/graphql"
	routeConfig  = "/config"
	routeHealth  = "/health"
	routeReload  = "/admin/reload"
	routeMetrics = "/metrics"
)

func otlpExporterConfig(c config.OTLPConfig) observability.OTLPExporterConfig {
	return observability.OTLPExporterConfig{
		Endpoint:          c.Endpoint,
		Protocol:          c.Protocol,
		Insecure:          c.Insecure,
		TLSCertFile:       c.TLSCertFile,
		TLSClientCertFile: c.TLSClientCertFile,
		TLSClientKeyFile:  c.TLSClientKeyFile,
		Headers:           c.Headers,
		Timeout:           c.Timeout,
		Compression:       c.Compression,
		RetryEnabled:      c.RetryEnabled,
		RetryMaxAttempts:  c.RetryMaxAttempts,
	}
}

func observabilityConfig(cfg *config.Config, otlp config.OTLPConfig) observability.Config {
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLPConfig:       otlpExporterConfig(otlp),
	}
}

// InitLogger builds the process logger and installs it as the slog default.
// When log export is enabled it also returns the OTLP logger provider, which
// the caller must shut down.
func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.LogsOTLP()
	logger.Info("initializing OpenTelemetry logging",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("otlp_endpoint", logsConfig.Endpoint),
		slog.String("otlp_protocol", logsConfig.Protocol),
		slog.Bool("insecure", logsConfig.Insecure),
	)

	loggerProvider, err := observability.InitLoggerProvider(observabilityConfig(cfg, logsConfig))
	if err != nil {
		return nil, nil, err
	}

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	return logger, loggerProvider, nil
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.ResolveMetrics, *observability.HTTPMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil, nil
	}

	meterProvider, err := observability.InitMeterProvider(observabilityConfig(cfg, config.OTLPConfig{}))
	if err != nil {
		return nil, nil, nil, err
	}

	resolveMetrics, err := observability.InitResolveMetrics(logger.Logger)
	if err != nil {
		return nil, nil, nil, err
	}
	httpMetrics, err := observability.InitHTTPMetrics()
	if err != nil {
		return nil, nil, nil, err
	}

	logger.Info("OpenTelemetry metrics initialized", slog.String("service_name", cfg.Observability.ServiceName))
	return meterProvider, resolveMetrics, httpMetrics, nil
}

func initTracing(cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesConfig := cfg.Observability.TracesOTLP()
	logger.Info("initializing OpenTelemetry tracing",
		slog.String("otlp_endpoint", tracesConfig.Endpoint),
		slog.String("otlp_protocol", tracesConfig.Protocol),
		slog.Float64("sample_ratio", cfg.Observability.TraceSampleRatio),
	)

	return observability.InitTracerProvider(observabilityConfig(cfg, tracesConfig))
}

// startRefreshManager resolves the input once and starts watching it. The
// returned cancel function stops the watcher.
func startRefreshManager(ctx context.Context, cfg *config.Config, logger *logging.Logger, metrics *observability.ResolveMetrics) (*configrefresh.Manager, context.CancelFunc, error) {
	manager, err := configrefresh.NewManager(ctx, configrefresh.Config{
		Path:     cfg.Input.Path,
		Naming:   cfg.Naming,
		Logger:   logger,
		Metrics:  metrics,
		Watch:    cfg.Server.WatchEnabled,
		Debounce: cfg.Server.WatchDebounce,
	})
	if err != nil {
		return nil, nil, err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	if err := manager.Start(watchCtx); err != nil {
		cancel()
		return nil, nil, err
	}
	return manager, cancel, nil
}

type routeDeps struct {
	manager     *configrefresh.Manager
	indexer     *queryadapter.DB
	schema      *graphql.Schema
	httpMetrics *observability.HTTPMetrics
	metricsOn   bool
}

func buildRouter(cfg *config.Config, logger *logging.Logger, deps routeDeps) *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(route string, h http.Handler) {
		mux.Handle(route, middleware.MetricsMiddleware(deps.httpMetrics, route)(h))
	}

	handle(routeGraphQL, gqlschema.NewHandler(deps.schema, cfg.Server.GraphiQLEnabled))
	handle(routeConfig, configHandler(deps.manager))
	handle(routeReload, reloadHandler(deps.manager))

	var pinger pinger
	if deps.indexer != nil {
		pinger = deps.indexer.DB
	}
	handle(routeHealth, healthHandler(deps.manager, pinger, cfg.Server.HealthCheckTimeout))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, routeGraphQL, http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})

	if deps.metricsOn {
		mux.Handle(routeMetrics, promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", routeMetrics))
	}

	return mux
}

// wrapHTTPHandler applies, innermost first: request logging, CORS and
// OpenTelemetry HTTP instrumentation.
func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	handler = middleware.LoggingMiddleware(logger)(handler)

	if cfg.Server.CORS.Enabled {
		handler = middleware.CORSMiddleware(cfg.Server.CORS)(handler)
		logger.Info("CORS enabled", slog.Any("allowed_origins", cfg.Server.CORS.AllowedOrigins))
	}

	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	return handler
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}
	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}
	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/", routeGraphQL, routeConfig, routeHealth, routeReload, routeMetrics:
		return rawPath
	default:
		return "/*"
	}
}

func buildServer(cfg *config.Config, handler http.Handler, serverAddr string) *http.Server {
	return &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

// startServer binds the listener synchronously so bind errors surface to the
// caller, then serves in the background.
func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server) (net.Listener, chan error, error) {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}

	logAttrs := []any{
		slog.String("address", ln.Addr().String()),
		slog.String("input", cfg.Input.Path),
		slog.String("graphql_endpoint", routeGraphQL),
		slog.String("config_endpoint", routeConfig),
		slog.String("health_endpoint", routeHealth),
		slog.Bool("watch", cfg.Server.WatchEnabled),
		slog.Bool("indexer", cfg.Indexer.Enabled),
	}
	if cfg.Observability.MetricsEnabled {
		logAttrs = append(logAttrs, slog.String("metrics_endpoint", routeMetrics))
	}
	logger.Info("server starting", logAttrs...)

	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return ln, serverErrors, nil
}
