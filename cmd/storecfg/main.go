package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"storecfg/internal/config"
	"storecfg/internal/configrefresh"
	"storecfg/internal/logging"
	"storecfg/internal/observability"
	"storecfg/internal/render"
	"storecfg/internal/serverapp"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

// errResolveFailed is returned after every resolution problem has been logged.
var errResolveFailed = errors.New("store resolution failed")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errResolveFailed) {
			slog.Error("storecfg failed", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := config.NewFlagSet()
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, config.ErrHelp) {
			return nil
		}
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if showVersion, _ := fs.GetBool("version"); showVersion {
		_, _ = fmt.Fprintf(stdout, "storecfg %s (%s)\n", Version, Commit)
		return nil
	}

	cfg, err := config.LoadFlagSet(fs)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = Version
	}

	validationResult := cfg.Validate()
	for _, warn := range validationResult.Warnings {
		slog.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}
	if validationResult.HasErrors() {
		for _, err := range validationResult.Errors {
			slog.Error("configuration error",
				slog.String("field", err.Field),
				slog.String("message", err.Message),
				slog.String("hint", err.Hint),
			)
		}
		return fmt.Errorf("configuration validation failed")
	}

	logger, loggerProvider, err := serverapp.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	if !cfg.Server.Enabled {
		if loggerProvider != nil {
			defer func() { _ = loggerProvider.Shutdown(context.Background(), logger.Logger) }()
		}
		return resolveOnce(context.Background(), cfg, logger, stdout)
	}
	return serve(cfg, logger, loggerProvider)
}

// resolveOnce resolves the input document and writes the canonical store to
// the configured output, or stdout.
func resolveOnce(ctx context.Context, cfg *config.Config, logger *logging.Logger, stdout io.Writer) error {
	data, err := os.ReadFile(cfg.Input.Path)
	if err != nil {
		return fmt.Errorf("failed to read store document: %w", err)
	}

	snapshot, err := configrefresh.BuildSnapshot(ctx, configrefresh.BuildConfig{
		Source: cfg.Input.Path,
		Data:   data,
		Naming: cfg.Naming,
		Logger: logger.Logger,
	})
	if err != nil {
		problems := configrefresh.Problems(err)
		for _, problem := range problems {
			logger.Error("resolve error", slog.String("input", cfg.Input.Path), slog.String("error", problem.Error()))
		}
		logger.Error("store resolution failed", slog.Int("problems", len(problems)))
		return errResolveFailed
	}

	format := render.FormatFromPath(cfg.Output.Path, render.FormatJSON)
	if cfg.Output.Format != "" {
		if format, err = render.ParseFormat(cfg.Output.Format); err != nil {
			return err
		}
	}
	opts := render.Options{Compact: cfg.Output.Compact}

	if cfg.Output.Path == "" {
		return render.Write(stdout, snapshot.Store, format, opts)
	}
	out, err := render.Marshal(snapshot.Store, format, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfg.Output.Path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfg.Output.Path, err)
	}
	logger.Info("store written",
		slog.String("output", cfg.Output.Path),
		slog.String("format", string(format)),
		slog.Int("tables", len(snapshot.Store.Tables)),
	)
	return nil
}

// serve runs the config service until a signal arrives or the server fails.
func serve(cfg *config.Config, logger *logging.Logger, loggerProvider *observability.LoggerProvider) error {
	app, err := serverapp.New(cfg, logger)
	if err != nil {
		if loggerProvider != nil {
			_ = loggerProvider.Shutdown(context.Background(), logger.Logger)
		}
		return err
	}
	app.AttachLoggerProvider(loggerProvider)

	if err := app.Init(context.Background()); err != nil {
		return err
	}

	serverErrors, err := app.Start()
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = app.Shutdown(shutdownCtx)
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	_, waitErr := app.WaitForStop(stop, serverErrors)

	logger.Info("shutting down server gracefully")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	shutdownErr := app.Shutdown(shutdownCtx)
	shutdownCancel()

	if waitErr != nil {
		return waitErr
	}
	if shutdownErr != nil {
		return shutdownErr
	}

	logger.Info("server stopped gracefully")
	return nil
}
