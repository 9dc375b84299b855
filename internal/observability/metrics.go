package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ResolveMetrics records store resolution attempts.
type ResolveMetrics struct {
	resolveCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	durationHist    metric.Float64Histogram
	tablesGauge     metric.Int64Gauge
	lastSuccessUnix atomic.Int64
}

// InitResolveMetrics registers the resolution instruments on the global meter provider.
func InitResolveMetrics(logger *slog.Logger) (*ResolveMetrics, error) {
	meter := otel.Meter(InstrumentationName)

	resolveCounter, err := meter.Int64Counter(
		"storecfg.resolve.total",
		metric.WithDescription("Total number of store resolution attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolve counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"storecfg.resolve.errors.total",
		metric.WithDescription("Total number of problems reported by failed resolutions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolve error counter: %w", err)
	}

	durationHist, err := meter.Float64Histogram(
		"storecfg.resolve.duration",
		metric.WithDescription("Duration of store resolution in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolve duration histogram: %w", err)
	}

	tablesGauge, err := meter.Int64Gauge(
		"storecfg.resolve.tables",
		metric.WithDescription("Number of tables in the last resolved store"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolved tables gauge: %w", err)
	}

	lastSuccessGauge, err := meter.Int64ObservableGauge(
		"storecfg.resolve.last_success_unix",
		metric.WithDescription("Unix timestamp of the last successful resolution"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create last success gauge: %w", err)
	}

	m := &ResolveMetrics{
		resolveCounter: resolveCounter,
		errorCounter:   errorCounter,
		durationHist:   durationHist,
		tablesGauge:    tablesGauge,
	}

	_, err = meter.RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			if value := m.lastSuccessUnix.Load(); value > 0 {
				observer.ObserveInt64(lastSuccessGauge, value)
			}
			return nil
		},
		lastSuccessGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register last success gauge callback: %w", err)
	}

	logger.Info("resolve metrics initialized")
	return m, nil
}

// RecordResolve records one resolution. problems is the number of aggregated
// errors for a failed run; tables is the table count of a successful one.
func (m *ResolveMetrics) RecordResolve(ctx context.Context, duration time.Duration, trigger string, tables, problems int) {
	if m == nil {
		return
	}
	success := problems == 0
	attrs := metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.Bool("success", success),
	)

	m.resolveCounter.Add(ctx, 1, attrs)
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, attrs)

	if !success {
		m.errorCounter.Add(ctx, int64(problems), metric.WithAttributes(attribute.String("trigger", trigger)))
		return
	}
	m.tablesGauge.Record(ctx, int64(tables))
	m.lastSuccessUnix.Store(time.Now().Unix())
}

// LastSuccess returns the time of the last successful resolution, or the zero time.
func (m *ResolveMetrics) LastSuccess() time.Time {
	if m == nil {
		return time.Time{}
	}
	value := m.lastSuccessUnix.Load()
	if value == 0 {
		return time.Time{}
	}
	return time.Unix(value, 0)
}

// HTTPMetrics records requests served by the config service.
type HTTPMetrics struct {
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
}

// InitHTTPMetrics registers the HTTP instruments on the global meter provider.
func InitHTTPMetrics() (*HTTPMetrics, error) {
	meter := otel.Meter(InstrumentationName)

	requestDuration, err := meter.Float64Histogram(
		"storecfg.http.request.duration",
		metric.WithDescription("Duration of config service requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"storecfg.http.requests.total",
		metric.WithDescription("Total number of config service requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"storecfg.http.requests.active",
		metric.WithDescription("Number of in-flight config service requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	return &HTTPMetrics{
		requestDuration: requestDuration,
		requestCounter:  requestCounter,
		activeRequests:  activeRequests,
	}, nil
}

// RequestStarted increments the in-flight gauge.
func (m *HTTPMetrics) RequestStarted(ctx context.Context) {
	m.activeRequests.Add(ctx, 1)
}

// RequestFinished records a completed request.
func (m *HTTPMetrics) RequestFinished(ctx context.Context, route string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.activeRequests.Add(ctx, -1)
	m.requestCounter.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}
