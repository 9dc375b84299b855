package configrefresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"storecfg/internal/naming"
	"storecfg/internal/storeconfig"
	"storecfg/internal/storeinput"
)

// BuildConfig defines inputs for one snapshot build.
type BuildConfig struct {
	// Source names where Data came from, usually the input path.
	Source string
	Data   []byte
	Naming naming.Config
	Logger *slog.Logger
}

// Fingerprint returns the hex sha256 of a store document.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BuildSnapshot decodes and resolves a store document. It is the pipeline
// shared by the one-shot CLI and the config service.
func BuildSnapshot(ctx context.Context, cfg BuildConfig) (*Snapshot, error) {
	tracer := otel.Tracer("storecfg/configrefresh")
	_, span := tracer.Start(ctx, "storecfg.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("storecfg.source", cfg.Source))

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	input, err := storeinput.Decode(cfg.Data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		if cfg.Source != "" {
			return nil, fmt.Errorf("%s: %w", cfg.Source, err)
		}
		return nil, err
	}

	resolver := storeconfig.NewResolver(
		storeconfig.WithNamingConfig(cfg.Naming),
		storeconfig.WithLogger(logger),
	)
	store, err := resolver.Resolve(input)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Int("storecfg.problems", ProblemCount(err)))
		span.SetStatus(codes.Error, "resolve failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("storecfg.namespaces", len(store.Namespaces)),
		attribute.Int("storecfg.tables", len(store.Tables)),
	)
	return &Snapshot{
		Store:       store,
		Fingerprint: Fingerprint(cfg.Data),
		BuiltAt:     time.Now().UTC(),
		Source:      cfg.Source,
	}, nil
}

// ProblemCount returns how many user errors err aggregates.
func ProblemCount(err error) int {
	if err == nil {
		return 0
	}
	var resolveErr *storeconfig.ResolveError
	if errors.As(err, &resolveErr) && len(resolveErr.Errors) > 0 {
		return len(resolveErr.Errors)
	}
	return 1
}

// Problems flattens err into its individual user errors.
func Problems(err error) []error {
	if err == nil {
		return nil
	}
	var resolveErr *storeconfig.ResolveError
	if errors.As(err, &resolveErr) && len(resolveErr.Errors) > 0 {
		return resolveErr.Errors
	}
	return []error{err}
}
