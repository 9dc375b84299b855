package queryadapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/go-sql-driver/mysql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"storecfg/internal/config"
	"storecfg/internal/logging"
)

const connectRetryInterval = time.Second

// DB is an open indexer connection pool.
type DB struct {
	*sql.DB
	statsReg interface{ Unregister() error }
}

// Close unregisters pool metrics and closes the pool.
func (d *DB) Close() error {
	if d.statsReg != nil {
		_ = d.statsReg.Unregister()
	}
	return d.DB.Close()
}

// Open connects to the indexer database described by cfg, instrumenting the
// pool with otelsql when metrics or tracing are enabled.
func Open(cfg *config.IndexerConfig, obs config.ObservabilityConfig, logger *logging.Logger) (*DB, error) {
	if err := cfg.RegisterTLS(); err != nil {
		return nil, err
	}
	mysqlCfg, err := cfg.MySQLConfig()
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(mysqlCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexer connector: %w", err)
	}

	out := &DB{}
	if obs.MetricsEnabled || obs.TracingEnabled {
		opts := []otelsql.Option{otelsql.WithAttributes(semconv.DBSystemMySQL)}
		if obs.TracingEnabled {
			opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}))
		}
		if obs.SQLCommenterEnabled && obs.TracingEnabled {
			opts = append(opts, otelsql.WithSQLCommenter(true))
		}
		out.DB = otelsql.OpenDB(connector, opts...)

		if obs.MetricsEnabled {
			reg, err := otelsql.RegisterDBStatsMetrics(out.DB, otelsql.WithAttributes(semconv.DBSystemMySQL))
			if err != nil {
				logger.Warn("failed to register indexer pool metrics", slog.String("error", err.Error()))
			} else {
				out.statsReg = reg
			}
		}
		logger.Info("indexer instrumentation enabled",
			slog.Bool("metrics", obs.MetricsEnabled),
			slog.Bool("tracing", obs.TracingEnabled),
		)
	} else {
		out.DB = sql.OpenDB(connector)
	}

	out.SetMaxOpenConns(cfg.Pool.MaxOpen)
	out.SetMaxIdleConns(cfg.Pool.MaxIdle)
	out.SetConnMaxLifetime(cfg.Pool.MaxLifetime)
	return out, nil
}

// WaitForDB pings db until it answers or timeout elapses. A zero timeout
// pings once.
func WaitForDB(ctx context.Context, db *sql.DB, timeout time.Duration, logger *logging.Logger) error {
	if timeout <= 0 {
		return db.PingContext(ctx)
	}

	deadline := time.Now().Add(timeout)
	for attempt := 1; ; attempt++ {
		err := db.PingContext(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("indexer connection established", slog.Int("attempts", attempt))
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("indexer not available after %v: %w", timeout, err)
		}
		logger.Warn("indexer not ready, retrying",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(connectRetryInterval):
		}
	}
}
