package naming

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrEmptyLabel is returned for empty labels.
	ErrEmptyLabel = errors.New("label is empty")
	// ErrInvalidUTF8 is returned for labels that are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("label is not valid UTF-8")
	// ErrDisallowedChar is returned for labels containing a disallowed character.
	ErrDisallowedChar = errors.New("label contains a disallowed character")
	// ErrReservedWord is returned for reserved words when StrictReservedWords is set.
	ErrReservedWord = errors.New("label is a Solidity reserved word")
)

var solidityIdentifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Namer applies the label policy. It holds no per-run state and is safe for
// concurrent use.
type Namer struct {
	config Config
	logger *slog.Logger
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DisallowedChars == "" {
		cfg.DisallowedChars = DefaultDisallowedChars
	}
	return &Namer{
		config: cfg,
		logger: logger,
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// CheckLabel reports why a label cannot be used. The returned error wraps one
// of the Err* sentinels.
func (n *Namer) CheckLabel(label string) error {
	if label == "" {
		return ErrEmptyLabel
	}
	if !utf8.ValidString(label) {
		return ErrInvalidUTF8
	}
	for offset, r := range label {
		if unicode.IsControl(r) || strings.ContainsRune(n.config.DisallowedChars, r) {
			return fmt.Errorf("%w %q at offset %d", ErrDisallowedChar, r, offset)
		}
	}
	if n.config.StrictReservedWords && IsReservedWord(label) {
		return fmt.Errorf("%w: %q", ErrReservedWord, label)
	}
	return nil
}

// Lint returns non-fatal concerns about a label that already passed CheckLabel.
func (n *Namer) Lint(label string) []string {
	var concerns []string
	if !n.config.StrictReservedWords && IsReservedWord(label) {
		concerns = append(concerns, "label is a Solidity reserved word")
	}
	if !IsSolidityIdentifier(label) {
		concerns = append(concerns, "label is not a valid Solidity identifier and cannot be used as a library name")
	}
	return concerns
}

// IsSolidityIdentifier reports whether name is a syntactically valid Solidity identifier.
func IsSolidityIdentifier(name string) bool {
	return solidityIdentifierPattern.MatchString(name)
}

// Truncate returns the first max codepoints of s. It never splits a
// multi-byte character.
// Example: Truncate("LongTableNameThatCollides1", 16) -> "LongTableNameTha"
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	count := 0
	for offset := range s {
		if count == max {
			return s[:offset]
		}
		count++
	}
	return s
}
