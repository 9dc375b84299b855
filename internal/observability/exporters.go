package observability

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

type otlpProtocol string

const (
	otlpProtocolGRPC otlpProtocol = "grpc"
	otlpProtocolHTTP otlpProtocol = "http/protobuf"
)

// Backoff applied by every exporter when retries are on.
const (
	backoffInitial = time.Second
	backoffMax     = 5 * time.Second
	backoffElapsed = 30 * time.Second
)

func parseOTLPProtocol(value string) (otlpProtocol, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(otlpProtocolGRPC):
		return otlpProtocolGRPC, nil
	case "http", string(otlpProtocolHTTP):
		return otlpProtocolHTTP, nil
	default:
		return "", fmt.Errorf("unsupported OTLP protocol %q (use grpc or http/protobuf)", value)
	}
}

// exporterSettings is an OTLPExporterConfig after protocol parsing and TLS
// loading, shared by the trace and log exporter builders.
type exporterSettings struct {
	protocol otlpProtocol
	endpoint string
	isURL    bool
	// tls is nil for plaintext exporters.
	tls     *tls.Config
	headers map[string]string
	timeout time.Duration
	gzip    bool
	retry   bool
}

func newExporterSettings(cfg OTLPExporterConfig) (exporterSettings, error) {
	protocol, err := parseOTLPProtocol(cfg.Protocol)
	if err != nil {
		return exporterSettings{}, err
	}
	tlsConfig, err := exporterTLS(cfg)
	if err != nil {
		return exporterSettings{}, err
	}
	return exporterSettings{
		protocol: protocol,
		endpoint: cfg.Endpoint,
		isURL:    strings.HasPrefix(cfg.Endpoint, "http://") || strings.HasPrefix(cfg.Endpoint, "https://"),
		tls:      tlsConfig,
		headers:  cfg.Headers,
		timeout:  cfg.Timeout,
		gzip:     cfg.Compression == "gzip",
		retry:    cfg.RetryEnabled && cfg.RetryMaxAttempts > 0,
	}, nil
}

// exporterTLS returns nil for insecure exporters.
func exporterTLS(cfg OTLPExporterConfig) (*tls.Config, error) {
	if cfg.Insecure {
		return nil, nil
	}
	return buildTLSConfig(cfg)
}

func buildTLSConfig(cfg OTLPExporterConfig) (*tls.Config, error) {
	out := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.TLSCertFile != "" {
		pem, err := os.ReadFile(cfg.TLSCertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read OTLP TLS CA file: %w", err)
		}
		roots := x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pem) {
			return nil, errors.New("failed to parse OTLP TLS CA file")
		}
		out.RootCAs = roots
	}

	switch {
	case cfg.TLSClientCertFile == "" && cfg.TLSClientKeyFile == "":
	case cfg.TLSClientCertFile == "" || cfg.TLSClientKeyFile == "":
		return nil, errors.New("OTLP TLS client cert and key must both be set")
	default:
		pair, err := tls.LoadX509KeyPair(cfg.TLSClientCertFile, cfg.TLSClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load OTLP TLS client certificate: %w", err)
		}
		out.Certificates = []tls.Certificate{pair}
	}
	return out, nil
}

func newTraceExporter(ctx context.Context, cfg OTLPExporterConfig) (sdktrace.SpanExporter, error) {
	s, err := newExporterSettings(cfg)
	if err != nil {
		return nil, err
	}
	if s.protocol == otlpProtocolHTTP {
		return otlptracehttp.New(ctx, traceHTTPOptions(s)...)
	}
	return otlptracegrpc.New(ctx, traceGRPCOptions(s)...)
}

func traceHTTPOptions(s exporterSettings) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(s.endpoint)}
	if s.isURL {
		opts = []otlptracehttp.Option{otlptracehttp.WithEndpointURL(s.endpoint)}
	}
	if s.tls != nil {
		opts = append(opts, otlptracehttp.WithTLSClientConfig(s.tls))
	} else {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(s.headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(s.headers))
	}
	if s.timeout > 0 {
		opts = append(opts, otlptracehttp.WithTimeout(s.timeout))
	}
	if s.gzip {
		opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
	}
	if s.retry {
		opts = append(opts, otlptracehttp.WithRetry(otlptracehttp.RetryConfig{
			Enabled: true, InitialInterval: backoffInitial, MaxInterval: backoffMax, MaxElapsedTime: backoffElapsed,
		}))
	}
	return opts
}

func traceGRPCOptions(s exporterSettings) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(s.endpoint)}
	if s.tls != nil {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(s.tls)))
	} else {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(s.headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(s.headers))
	}
	if s.timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(s.timeout))
	}
	if s.gzip {
		opts = append(opts, otlptracegrpc.WithCompressor("gzip"))
	}
	if s.retry {
		opts = append(opts, otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{
			Enabled: true, InitialInterval: backoffInitial, MaxInterval: backoffMax, MaxElapsedTime: backoffElapsed,
		}))
	}
	return opts
}

func newLogExporter(ctx context.Context, cfg OTLPExporterConfig) (log.Exporter, error) {
	s, err := newExporterSettings(cfg)
	if err != nil {
		return nil, err
	}
	if s.protocol == otlpProtocolHTTP {
		return otlploghttp.New(ctx, logHTTPOptions(s)...)
	}
	return otlploggrpc.New(ctx, logGRPCOptions(s)...)
}

func logHTTPOptions(s exporterSettings) []otlploghttp.Option {
	opts := []otlploghttp.Option{otlploghttp.WithEndpoint(s.endpoint)}
	if s.isURL {
		opts = []otlploghttp.Option{otlploghttp.WithEndpointURL(s.endpoint)}
	}
	if s.tls != nil {
		opts = append(opts, otlploghttp.WithTLSClientConfig(s.tls))
	} else {
		opts = append(opts, otlploghttp.WithInsecure())
	}
	if len(s.headers) > 0 {
		opts = append(opts, otlploghttp.WithHeaders(s.headers))
	}
	if s.timeout > 0 {
		opts = append(opts, otlploghttp.WithTimeout(s.timeout))
	}
	if s.gzip {
		opts = append(opts, otlploghttp.WithCompression(otlploghttp.GzipCompression))
	}
	if s.retry {
		opts = append(opts, otlploghttp.WithRetry(otlploghttp.RetryConfig{
			Enabled: true, InitialInterval: backoffInitial, MaxInterval: backoffMax, MaxElapsedTime: backoffElapsed,
		}))
	}
	return opts
}

func logGRPCOptions(s exporterSettings) []otlploggrpc.Option {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(s.endpoint)}
	if s.tls != nil {
		opts = append(opts, otlploggrpc.WithTLSCredentials(credentials.NewTLS(s.tls)))
	} else {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	if len(s.headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(s.headers))
	}
	if s.timeout > 0 {
		opts = append(opts, otlploggrpc.WithTimeout(s.timeout))
	}
	if s.gzip {
		opts = append(opts, otlploggrpc.WithCompressor("gzip"))
	}
	if s.retry {
		opts = append(opts, otlploggrpc.WithRetry(otlploggrpc.RetryConfig{
			Enabled: true, InitialInterval: backoffInitial, MaxInterval: backoffMax, MaxElapsedTime: backoffElapsed,
		}))
	}
	return opts
}
