package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"storecfg/internal/naming"
)

// EnvPrefix prefixes every environment variable, e.g. STORECFG_SERVER_PORT.
const EnvPrefix = "STORECFG"

// ErrHelp is returned when -h or --help was requested.
var ErrHelp = pflag.ErrHelp

// Load loads configuration from the process command line with the following precedence:
// 1. Explicit overrides (v.Set) – used only for secrets read from files or a prompt
// 2. Command line flags
// 3. Environment variables
// 4. Config file
// 5. Default values
func Load() (*Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs is Load with an explicit argument list. A single positional
// argument is taken as the input path.
func LoadArgs(args []string) (*Config, error) {
	fs := NewFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return load(fs)
}

// LoadFlagSet loads configuration from a flag set already parsed by the caller.
func LoadFlagSet(fs *pflag.FlagSet) (*Config, error) {
	return load(fs)
}

// NewFlagSet returns a flag set carrying every configuration flag.
func NewFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("storecfg", pflag.ContinueOnError)
	defineFlags(fs)
	return fs
}

func load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Defaults (lowest priority)
	setDefaults(v)

	// --- Config file ---
	cfgPath, _ := fs.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("storecfg")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/storecfg/")
		v.AddConfigPath("$HOME/.storecfg")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// --- Environment variables ---
	// Canonical keys: dot + snake_case
	// Env vars: STORECFG_INDEXER_POOL_MAX_OPEN
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Flags binding (highest normal priority) ---
	bindChangedFlagsToViper(fs, v)
	if fs.NArg() > 1 {
		return nil, fmt.Errorf("expected at most one input path, got %d arguments", fs.NArg())
	}
	if fs.NArg() == 1 && !fs.Changed("input.path") {
		v.Set("input.path", fs.Arg(0))
	}
	if err := validateSingleStdinFileSource(v); err != nil {
		return nil, err
	}

	// --- DSN from file (explicit override) ---
	if v.GetString("indexer.dsn") == "" && v.GetString("indexer.dsn_file") != "" {
		dsn, err := readSecretFile(v.GetString("indexer.dsn_file"))
		if err != nil {
			return nil, fmt.Errorf("failed to read indexer DSN file: %w", err)
		}
		v.Set("indexer.dsn", dsn)
	}

	// --- Secure password input (explicit override) ---
	if v.GetString("indexer.password") == "" && v.GetString("indexer.password_file") != "" {
		pwd, err := readSecretFile(v.GetString("indexer.password_file"))
		if err != nil {
			return nil, fmt.Errorf("failed to read indexer password file: %w", err)
		}
		v.Set("indexer.password", pwd)
	}
	if v.GetBool("indexer.enabled") && v.GetString("indexer.dsn") == "" &&
		v.GetString("indexer.password") == "" && v.GetBool("indexer.password_prompt") {
		pwd, err := promptPassword()
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		v.Set("indexer.password", pwd)
	}

	// --- Unmarshal (strict) ---
	var cfg Config
	if err := v.UnmarshalExact(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToStringSliceHookFunc(","),
		),
	)
}

// bindChangedFlagsToViper copies only explicitly-set flags into Viper,
// preserving precedence: flags > env > file > defaults.
func bindChangedFlagsToViper(fs *pflag.FlagSet, v *viper.Viper) {
	fs.Visit(func(f *pflag.Flag) {
		key := f.Name
		switch key {
		case "config", "version":
			return
		case "serve":
			key = "server.enabled"
		}

		switch f.Value.Type() {
		case "string":
			val, _ := fs.GetString(f.Name)
			v.Set(key, val)
		case "int":
			val, _ := fs.GetInt(f.Name)
			v.Set(key, val)
		case "bool":
			val, _ := fs.GetBool(f.Name)
			v.Set(key, val)
		case "float64":
			val, _ := fs.GetFloat64(f.Name)
			v.Set(key, val)
		case "duration":
			val, _ := fs.GetDuration(f.Name)
			v.Set(key, val)
		case "stringSlice":
			val, _ := fs.GetStringSlice(f.Name)
			v.Set(key, val)
		default:
			v.Set(key, f.Value.String())
		}
	})
}

// defineFlags defines all command line flags using canonical snake_case keys.
func defineFlags(fs *pflag.FlagSet) {
	// Input/output flags
	fs.StringP("input.path", "i", "", "Store document to resolve (YAML or JSON)")
	fs.StringP("output.path", "o", "", "Write the canonical store to this file instead of stdout")
	fs.String("output.format", "", "Output format (json, yaml); guessed from output.path when empty")
	fs.Bool("output.compact", false, "Write compact JSON")

	// Naming flags
	fs.String("naming.disallowed_chars", "", "Characters rejected in labels and identifier overrides")
	fs.Bool("naming.strict_reserved_words", false, "Reject Solidity reserved words as labels instead of warning")

	// Server flags
	fs.Bool("serve", false, "Run the config service instead of resolving once")
	fs.Int("server.port", 0, "HTTP server port")
	fs.Bool("server.graphiql_enabled", false, "Enable GraphiQL UI for /graphql (dev only)")
	fs.Bool("server.watch_enabled", false, "Reload the store document when it changes")
	fs.Duration("server.watch_debounce", 0, "Delay before reloading after a change")
	fs.Duration("server.read_timeout", 0, "HTTP server read timeout")
	fs.Duration("server.write_timeout", 0, "HTTP server write timeout")
	fs.Duration("server.idle_timeout", 0, "HTTP server idle timeout")
	fs.Duration("server.shutdown_timeout", 0, "HTTP server graceful shutdown timeout")
	fs.Duration("server.health_check_timeout", 0, "Health check timeout")
	fs.Bool("server.cors.enabled", false, "Enable CORS for service routes")
	fs.StringSlice("server.cors.allowed_origins", nil, "Allowed CORS origins (comma-separated or repeated)")
	fs.StringSlice("server.cors.allowed_methods", nil, "Allowed CORS methods (comma-separated or repeated)")
	fs.StringSlice("server.cors.allowed_headers", nil, "Allowed CORS headers (comma-separated or repeated)")
	fs.StringSlice("server.cors.expose_headers", nil, "CORS headers exposed to browsers (comma-separated or repeated)")
	fs.Bool("server.cors.allow_credentials", false, "Allow credentials in CORS requests")
	fs.Int("server.cors.max_age", 0, "CORS preflight cache duration in seconds")

	// Indexer flags
	fs.Bool("indexer.enabled", false, "Serve store logs from an indexer database")
	fs.String("indexer.dsn", "", "Complete MySQL DSN (user:pass@tcp(host:port)/db)")
	fs.String("indexer.dsn_file", "", "Path to file containing the indexer DSN (use @- for stdin)")
	fs.String("indexer.host", "", "Indexer database host")
	fs.Int("indexer.port", 0, "Indexer database port")
	fs.String("indexer.user", "", "Indexer database user")
	fs.String("indexer.password", "", "Indexer database password")
	fs.String("indexer.password_file", "", "Path to file containing the indexer password (use @- for stdin)")
	fs.Bool("indexer.password_prompt", false, "Prompt for the indexer password securely")
	fs.String("indexer.database", "", "Indexer database name")
	fs.String("indexer.tls.mode", "", "TLS mode (off, skip-verify, verify-ca, verify-full)")
	fs.String("indexer.tls.ca_file", "", "Path to CA certificate for server verification")
	fs.String("indexer.tls.cert_file", "", "Path to client certificate for mTLS")
	fs.String("indexer.tls.key_file", "", "Path to client private key for mTLS")
	fs.String("indexer.tls.server_name", "", "Override TLS server name for verification")
	fs.Int("indexer.pool.max_open", 0, "Maximum open indexer connections")
	fs.Int("indexer.pool.max_idle", 0, "Maximum idle indexer connections")
	fs.Duration("indexer.pool.max_lifetime", 0, "Connection max lifetime (e.g. 5m, 30s)")
	fs.Duration("indexer.connection_timeout", 0, "Max time to wait for the indexer on startup")

	// Observability flags
	fs.String("observability.service_name", "", "Service name for observability")
	fs.String("observability.service_version", "", "Service version for observability")
	fs.String("observability.environment", "", "Environment name (dev, staging, prod)")
	fs.Bool("observability.metrics_enabled", false, "Enable metrics collection")
	fs.Bool("observability.tracing_enabled", false, "Enable distributed tracing")
	fs.Float64("observability.trace_sample_ratio", 0, "Trace sampling ratio from 0.0 to 1.0")
	fs.Bool("observability.sqlcommenter_enabled", false, "Inject trace context into indexer queries")
	fs.String("observability.logging.level", "", "Log level (debug, info, warn, error)")
	fs.String("observability.logging.format", "", "Log format (json, text)")
	fs.Bool("observability.logging.exports_enabled", false, "Enable OTLP log export")
	fs.String("observability.otlp.endpoint", "", "OTLP endpoint for all signals (e.g., localhost:4317)")
	fs.String("observability.otlp.protocol", "", "OTLP protocol for all signals (grpc, http/protobuf)")
	fs.Bool("observability.otlp.insecure", false, "Use insecure connection (no TLS)")
	fs.Duration("observability.otlp.timeout", 0, "OTLP export timeout")
	fs.String("observability.otlp.compression", "", "OTLP compression (none, gzip)")
	fs.String("observability.traces.endpoint", "", "OTLP endpoint for traces only")
	fs.String("observability.logs.endpoint", "", "OTLP endpoint for logs only")

	fs.Bool("version", false, "Print version and exit")
	fs.StringP("config", "c", "", "Config file path")
}

// setDefaults sets default values (lowest precedence).
func setDefaults(v *viper.Viper) {
	v.SetDefault("input.path", "")
	v.SetDefault("output.path", "")
	v.SetDefault("output.format", "")
	v.SetDefault("output.compact", false)

	v.SetDefault("naming.disallowed_chars", naming.DefaultDisallowedChars)
	v.SetDefault("naming.strict_reserved_words", false)

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.graphiql_enabled", false)
	v.SetDefault("server.watch_enabled", true)
	v.SetDefault("server.watch_debounce", 250*time.Millisecond)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.health_check_timeout", 2*time.Second)
	v.SetDefault("server.cors.enabled", false)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("server.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("server.cors.allowed_headers", []string{"Content-Type", "X-Request-ID"})
	v.SetDefault("server.cors.expose_headers", []string{"X-Request-ID"})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.cors.max_age", 600)

	v.SetDefault("indexer.enabled", false)
	v.SetDefault("indexer.dsn", "")
	v.SetDefault("indexer.dsn_file", "")
	v.SetDefault("indexer.host", "localhost")
	v.SetDefault("indexer.port", 3306)
	v.SetDefault("indexer.user", "indexer")
	v.SetDefault("indexer.password", "")
	v.SetDefault("indexer.password_file", "")
	v.SetDefault("indexer.password_prompt", false)
	v.SetDefault("indexer.database", "indexer")
	v.SetDefault("indexer.tls.mode", "")
	v.SetDefault("indexer.tls.ca_file", "")
	v.SetDefault("indexer.tls.cert_file", "")
	v.SetDefault("indexer.tls.key_file", "")
	v.SetDefault("indexer.tls.server_name", "")
	v.SetDefault("indexer.pool.max_open", 10)
	v.SetDefault("indexer.pool.max_idle", 2)
	v.SetDefault("indexer.pool.max_lifetime", 5*time.Minute)
	v.SetDefault("indexer.connection_timeout", 30*time.Second)

	v.SetDefault("observability.service_name", "storecfg")
	v.SetDefault("observability.service_version", "")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.trace_sample_ratio", 1.0)
	v.SetDefault("observability.sqlcommenter_enabled", true)

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.logging.exports_enabled", false)

	v.SetDefault("observability.otlp.endpoint", "localhost:4317")
	v.SetDefault("observability.otlp.protocol", "grpc")
	v.SetDefault("observability.otlp.insecure", false)
	v.SetDefault("observability.otlp.tls_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_key_file", "")
	v.SetDefault("observability.otlp.timeout", 10*time.Second)
	v.SetDefault("observability.otlp.compression", "gzip")
	v.SetDefault("observability.otlp.retry_enabled", true)
	v.SetDefault("observability.otlp.retry_max_attempts", 3)
}

// promptPassword prompts the user for a password without echoing to terminal.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Enter indexer password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(bytePassword), nil
}

func readSecretFile(path string) (string, error) {
	var data []byte
	var err error

	if path == "@-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func validateSingleStdinFileSource(v *viper.Viper) error {
	stdinBackedKeys := []string{
		"indexer.dsn_file",
		"indexer.password_file",
	}

	var configured []string
	for _, key := range stdinBackedKeys {
		if strings.TrimSpace(v.GetString(key)) == "@-" {
			configured = append(configured, key)
		}
	}

	if len(configured) > 1 {
		return fmt.Errorf(
			"multiple stdin-backed file settings use @- (%s); only one @- source is allowed",
			strings.Join(configured, ", "),
		)
	}

	return nil
}

func stringToStringSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}

		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}

		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}
