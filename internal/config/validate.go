package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode"

	"storecfg/internal/naming"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.validateInputOutput(result)
	validateNamingConfig(result, c.Naming)
	if c.Server.Enabled {
		c.Server.validate(result)
	}
	if c.Indexer.Enabled {
		c.Indexer.validate(result)
		if !c.Server.Enabled {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "indexer.enabled",
				Message: "the indexer is only queried by the config service",
				Hint:    "pass --serve to expose store logs",
			})
		}
	}
	c.Observability.validate(result)

	return result
}

func (c *Config) validateInputOutput(result *ValidationResult) {
	if strings.TrimSpace(c.Input.Path) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "input.path",
			Message: "an input store document is required",
			Hint:    "pass --input.path or a positional path to a YAML or JSON store document",
		})
	}

	validFormats := map[string]bool{"": true, "json": true, "yaml": true, "yml": true}
	if !validFormats[strings.ToLower(c.Output.Format)] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "output.format",
			Message: fmt.Sprintf("invalid output format %q", c.Output.Format),
			Hint:    "valid values are: json, yaml",
		})
	}

	if c.Server.Enabled && c.Output.Path != "" {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "output.path",
			Message: "output.path is ignored when the config service runs",
			Hint:    "fetch /config from the service instead",
		})
	}
}

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	for _, r := range cfg.DisallowedChars {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$') {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "naming.disallowed_chars",
				Message: fmt.Sprintf("character %q cannot be disallowed", r),
				Hint:    "Solidity identifier characters are always allowed in labels",
			})
		}
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port),
		})
	}
	if s.WatchDebounce < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.watch_debounce",
			Message: "watch_debounce cannot be negative",
		})
	}
	if s.ShutdownTimeout <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown_timeout must be greater than 0",
		})
	}
	if s.CORS.Enabled {
		s.CORS.validate(result)
	}
	if s.GraphiQLEnabled {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "server.graphiql_enabled",
			Message: "GraphiQL UI is enabled",
			Hint:    "disable it outside local development",
		})
	}
}

func (c *CORSConfig) validate(result *ValidationResult) {
	if len(c.AllowedOrigins) == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.cors.allowed_origins",
			Message: "CORS enabled but no allowed origins configured",
			Hint:    "set server.cors.allowed_origins or disable CORS",
		})
		return
	}
	for _, origin := range c.AllowedOrigins {
		if strings.TrimSpace(origin) != "*" {
			continue
		}
		if c.AllowCredentials {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.cors.allow_credentials",
				Message: "credentials cannot be allowed for a wildcard origin",
				Hint:    "list explicit origins or disable allow_credentials",
			})
		} else {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "server.cors.allowed_origins",
				Message: "CORS wildcard origin enabled",
			})
		}
		break
	}
}

func (d *IndexerConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(d.ConnectionString) != "" {
		if _, err := d.MySQLConfig(); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "indexer.dsn",
				Message: err.Error(),
				Hint:    "use the go-sql-driver/mysql format user:pass@tcp(host:port)/db",
			})
		}
	} else {
		if strings.TrimSpace(d.Host) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "indexer.host",
				Message: "host is required when no DSN is set",
			})
		}
		if d.Port < 1 || d.Port > 65535 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "indexer.port",
				Message: fmt.Sprintf("port %d is out of valid range (1-65535)", d.Port),
			})
		}
		if strings.TrimSpace(d.Database) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "indexer.database",
				Message: "database is required when no DSN is set",
			})
		}
	}

	if d.Pool.MaxOpen < 0 || d.Pool.MaxIdle < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "indexer.pool",
			Message: "pool sizes cannot be negative",
		})
	}
	if d.Pool.MaxOpen > 0 && d.Pool.MaxIdle > d.Pool.MaxOpen {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "indexer.pool.max_idle",
			Message: fmt.Sprintf("max_idle (%d) exceeds max_open (%d)", d.Pool.MaxIdle, d.Pool.MaxOpen),
			Hint:    "the driver caps idle connections at max_open",
		})
	}

	d.TLS.validate(result)
}

func (t *IndexerTLSConfig) validate(result *ValidationResult) {
	validModes := map[string]bool{"": true, "off": true, "skip-verify": true, "verify-ca": true, "verify-full": true}
	if !validModes[t.Mode] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "indexer.tls.mode",
			Message: fmt.Sprintf("invalid TLS mode %q", t.Mode),
			Hint:    "valid values are: off, skip-verify, verify-ca, verify-full",
		})
		return
	}
	if (t.Mode == "verify-ca" || t.Mode == "verify-full") && t.CAFile == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "indexer.tls.ca_file",
			Message: fmt.Sprintf("ca_file is required for TLS mode %q", t.Mode),
		})
	}
	if (t.CertFile == "") != (t.KeyFile == "") {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "indexer.tls",
			Message: "cert_file and key_file must be set together",
		})
	}
	if t.Mode == "skip-verify" {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "indexer.tls.mode",
			Message: "server certificate verification is disabled",
			Hint:    "use verify-ca or verify-full in production",
		})
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.level",
			Message: fmt.Sprintf("invalid log level %q", o.Logging.Level),
			Hint:    "valid values are: debug, info, warn, error",
		})
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.format",
			Message: fmt.Sprintf("invalid log format %q", o.Logging.Format),
			Hint:    "valid values are: json, text",
		})
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.trace_sample_ratio",
			Message: fmt.Sprintf("trace_sample_ratio %v is outside [0, 1]", o.TraceSampleRatio),
		})
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".protocol",
			Message: fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			Hint:    "valid values are: grpc, http/protobuf",
		})
	}

	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".endpoint",
			Message: fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
			Hint:    "use host:port or a full URL",
		})
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".compression",
			Message: fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			Hint:    "valid values are: none, gzip",
		})
	}

	if o.RetryMaxAttempts < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".retry_max_attempts",
			Message: "retry_max_attempts cannot be negative",
		})
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
