// Package render writes canonical stores as JSON or YAML.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"storecfg/internal/storeconfig"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses a format name. The empty string selects JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use json or yaml)", s)
	}
}

// FormatFromPath guesses a format from a file extension, falling back to fallback.
func FormatFromPath(path string, fallback Format) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return fallback
	}
}

// ContentType returns the HTTP content type for the format.
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// Options controls rendering.
type Options struct {
	// Compact drops indentation from JSON output.
	Compact bool
}

// Write renders store to w. Map keys are sorted, so equal stores render to
// identical bytes.
func Write(w io.Writer, store *storeconfig.Store, format Format, opts Options) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		if !opts.Compact {
			enc.SetIndent("", "  ")
		}
		if err := enc.Encode(store); err != nil {
			return fmt.Errorf("failed to encode store as JSON: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(store); err != nil {
			return fmt.Errorf("failed to encode store as YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode store as YAML: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// Marshal renders store into a byte slice.
func Marshal(store *storeconfig.Store, format Format, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, store, format, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
