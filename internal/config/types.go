// Package config loads configuration from files, env vars, and flags, and validates it.
package config

import (
	"maps"
	"time"

	"storecfg/internal/naming"
)

// Config holds the application configuration.
type Config struct {
	Input         InputConfig         `mapstructure:"input"`
	Output        OutputConfig        `mapstructure:"output"`
	Naming        naming.Config       `mapstructure:"naming"`
	Server        ServerConfig        `mapstructure:"server"`
	Indexer       IndexerConfig       `mapstructure:"indexer"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// InputConfig points at the store document to resolve.
type InputConfig struct {
	// Path is a YAML or JSON store document.
	Path string `mapstructure:"path"`
}

// OutputConfig controls where the canonical store is written in one-shot mode.
type OutputConfig struct {
	// Path is the output file. Empty writes to stdout.
	Path    string `mapstructure:"path"`
	Format  string `mapstructure:"format"` // json, yaml; empty guesses from Path
	Compact bool   `mapstructure:"compact"`
}

// ServerConfig holds config service parameters.
type ServerConfig struct {
	// Enabled runs the long-lived config service instead of a one-shot resolve.
	Enabled            bool          `mapstructure:"enabled"`
	Port               int           `mapstructure:"port"`
	GraphiQLEnabled    bool          `mapstructure:"graphiql_enabled"`
	WatchEnabled       bool          `mapstructure:"watch_enabled"`
	WatchDebounce      time.Duration `mapstructure:"watch_debounce"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	HealthCheckTimeout time.Duration `mapstructure:"health_check_timeout"`
	CORS               CORSConfig    `mapstructure:"cors"`
}

// CORSConfig holds browser cross-origin settings for the service routes.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposeHeaders    []string `mapstructure:"expose_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"` // seconds
}

// PoolConfig holds connection pool parameters.
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// IndexerTLSConfig holds TLS settings for the indexer database connection.
type IndexerTLSConfig struct {
	// Mode controls TLS behavior:
	//   - "off": No TLS
	//   - "skip-verify": TLS without server certificate verification
	//   - "verify-ca": TLS with CA verification
	//   - "verify-full": TLS with full verification including hostname
	Mode       string `mapstructure:"mode"`
	CAFile     string `mapstructure:"ca_file"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	ServerName string `mapstructure:"server_name"`
}

// IndexerConfig holds the connection to a store indexer database, read by the
// query adapter.
type IndexerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// ConnectionString is a complete go-sql-driver/mysql Data Source Name.
	// When set, overrides Host/Port/User/Password/Database fields.
	ConnectionString string `mapstructure:"dsn"`
	// ConnectionStringFile is a path to a file containing the DSN.
	// Supports "@-" to read from stdin.
	ConnectionStringFile string `mapstructure:"dsn_file"`

	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	PasswordFile   string `mapstructure:"password_file"`
	PasswordPrompt bool   `mapstructure:"password_prompt"`
	Database       string `mapstructure:"database"`

	TLS  IndexerTLSConfig `mapstructure:"tls"`
	Pool PoolConfig       `mapstructure:"pool"`

	// ConnectionTimeout is the max time to wait for the indexer on startup.
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`           // debug, info, warn, error
	Format         string `mapstructure:"format"`          // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"` // Enable OTLP log export
}

// ObservabilityConfig holds observability parameters.
type ObservabilityConfig struct {
	ServiceName         string        `mapstructure:"service_name"`
	ServiceVersion      string        `mapstructure:"service_version"`
	Environment         string        `mapstructure:"environment"`
	MetricsEnabled      bool          `mapstructure:"metrics_enabled"`
	TracingEnabled      bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio    float64       `mapstructure:"trace_sample_ratio"`
	SQLCommenterEnabled bool          `mapstructure:"sqlcommenter_enabled"` // trace context comments on indexer queries
	Logging             LoggingConfig `mapstructure:"logging"`

	// OTLP applies to every exported signal unless Traces or Logs override it.
	OTLP   OTLPConfig  `mapstructure:"otlp"`
	Traces *OTLPConfig `mapstructure:"traces,omitempty"`
	Logs   *OTLPConfig `mapstructure:"logs,omitempty"`
}

// OTLPConfig describes one OTLP exporter endpoint.
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // "grpc", "http/protobuf"
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // "none", "gzip"
	RetryEnabled      bool              `mapstructure:"retry_enabled"`
	RetryMaxAttempts  int               `mapstructure:"retry_max_attempts"`
}

// TracesOTLP returns the OTLP settings for the trace exporter.
func (c *ObservabilityConfig) TracesOTLP() OTLPConfig {
	return c.OTLP.overlay(c.Traces)
}

// LogsOTLP returns the OTLP settings for the log exporter.
func (c *ObservabilityConfig) LogsOTLP() OTLPConfig {
	return c.OTLP.overlay(c.Logs)
}

// overlay applies the set fields of a per-signal section on top of c.
func (c OTLPConfig) overlay(signal *OTLPConfig) OTLPConfig {
	if signal == nil {
		return c
	}
	out := c
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&out.Endpoint, signal.Endpoint)
	pick(&out.Protocol, signal.Protocol)
	pick(&out.TLSCertFile, signal.TLSCertFile)
	pick(&out.TLSClientCertFile, signal.TLSClientCertFile)
	pick(&out.TLSClientKeyFile, signal.TLSClientKeyFile)
	pick(&out.Compression, signal.Compression)
	// A bool cannot say "unset", so the signal section always decides.
	out.Insecure = signal.Insecure

	if signal.Headers != nil {
		out.Headers = maps.Clone(c.Headers)
		if out.Headers == nil {
			out.Headers = make(map[string]string, len(signal.Headers))
		}
		maps.Copy(out.Headers, signal.Headers)
	}
	if signal.Timeout != 0 {
		out.Timeout = signal.Timeout
	}
	if signal.RetryMaxAttempts != 0 {
		out.RetryEnabled, out.RetryMaxAttempts = signal.RetryEnabled, signal.RetryMaxAttempts
	}
	return out
}
