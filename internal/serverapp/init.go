package serverapp

import (
	"context"
	"fmt"
	"log/slog"

	"storecfg/internal/gqlschema"
	"storecfg/internal/queryadapter"
)

// Init initializes all runtime resources. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	meterProvider, resolveMetrics, httpMetrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tracerProvider, err := initTracing(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	manager, refreshCancel, err := startRefreshManager(ctx, a.cfg, a.logger, resolveMetrics)
	if err != nil {
		return fmt.Errorf("failed to load store document: %w", err)
	}
	cleanup.push("store watcher", func(shutdownCtx context.Context) error {
		refreshCancel()
		return manager.Wait(shutdownCtx)
	})

	var indexer *queryadapter.DB
	var adapter queryadapter.QueryAdapter
	if a.cfg.Indexer.Enabled {
		a.logger.Info("connecting to indexer",
			slog.String("host", a.cfg.Indexer.Host),
			slog.Int("port", a.cfg.Indexer.Port),
			slog.String("database", a.cfg.Indexer.Database),
			slog.Bool("dsn_present", a.cfg.Indexer.ConnectionString != ""),
		)
		indexer, err = queryadapter.Open(&a.cfg.Indexer, a.cfg.Observability, a.logger)
		if err != nil {
			return fmt.Errorf("failed to open indexer database: %w", err)
		}
		cleanup.push("indexer database", func(_ context.Context) error {
			return indexer.Close()
		})
		if err := queryadapter.WaitForDB(ctx, indexer.DB, a.cfg.Indexer.ConnectionTimeout, a.logger); err != nil {
			return fmt.Errorf("failed to reach indexer database: %w", err)
		}
		adapter = queryadapter.NewSQLAdapter(indexer.DB, queryadapter.Config{Store: manager.Store})
	}

	schema, err := gqlschema.NewSchema(gqlschema.Config{Source: manager, Adapter: adapter})
	if err != nil {
		return fmt.Errorf("failed to build GraphQL schema: %w", err)
	}

	mux := buildRouter(a.cfg, a.logger, routeDeps{
		manager:     manager,
		indexer:     indexer,
		schema:      &schema,
		httpMetrics: httpMetrics,
		metricsOn:   meterProvider != nil,
	})
	handler := wrapHTTPHandler(a.cfg, a.logger, mux)

	serverAddr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv := buildServer(a.cfg, handler, serverAddr)
	cleanup.push("HTTP server", func(shutdownCtx context.Context) error {
		return srv.Shutdown(shutdownCtx)
	})

	a.stateMu.Lock()
	a.meterProvider = meterProvider
	a.resolveMetrics = resolveMetrics
	a.httpMetrics = httpMetrics
	a.tracerProvider = tracerProvider
	a.indexer = indexer
	a.adapter = adapter
	a.manager = manager
	a.refreshCancel = refreshCancel
	a.schema = schema
	a.mux = mux
	a.handler = handler
	a.serverAddr = serverAddr
	a.srv = srv
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
