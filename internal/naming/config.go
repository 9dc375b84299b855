// Package naming checks human-readable labels before they are used as config
// keys, directory names, file names and Solidity library names, and detects
// identifier collisions.
package naming

// DefaultDisallowedChars are rejected in every label and identifier override.
// Control characters (including NUL) are always rejected.
const DefaultDisallowedChars = `/\:*?"<>| `

// Config holds label policy options
type Config struct {
	// DisallowedChars lists characters rejected in labels and identifier overrides.
	// An empty value selects DefaultDisallowedChars.
	DisallowedChars string `mapstructure:"disallowed_chars"`

	// StrictReservedWords rejects labels that are Solidity reserved words
	// instead of only warning about them.
	StrictReservedWords bool `mapstructure:"strict_reserved_words"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		DisallowedChars: DefaultDisallowedChars,
	}
}
