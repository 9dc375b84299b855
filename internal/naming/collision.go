package naming

import (
	"log/slog"
)

// CollisionDetector tracks registered identifiers per scope and reports
// duplicates instead of renaming them.
type CollisionDetector struct {
	seen   map[string]map[string]string // scope → identifier → source
	logger *slog.Logger
}

// NewCollisionDetector creates a new collision detector.
func NewCollisionDetector(logger *slog.Logger) *CollisionDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollisionDetector{
		seen:   make(map[string]map[string]string),
		logger: logger,
	}
}

// Register records name within scope on behalf of source. If the name is
// already taken in that scope it returns the source that registered it first
// and false.
func (c *CollisionDetector) Register(scope, name, source string) (string, bool) {
	names, ok := c.seen[scope]
	if !ok {
		names = make(map[string]string)
		c.seen[scope] = names
	}
	if existing, taken := names[name]; taken {
		c.logger.Debug("identifier collision detected",
			slog.String("scope", scope),
			slog.String("name", name),
			slog.String("existing_source", existing),
			slog.String("new_source", source),
		)
		return existing, false
	}
	names[name] = source
	return source, true
}
