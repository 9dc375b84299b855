// Package storeinput decodes store documents (YAML or JSON) into
// storeconfig.StoreInput values.
//
// Documents are walked as yaml.v3 nodes so mapping order is kept: the order of
// schema fields is the on-chain field order, and tables keep their declaration
// order inside each namespace.
package storeinput

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"storecfg/internal/storeconfig"
)

// ErrEmptyDocument is returned when the document holds no store description.
var ErrEmptyDocument = errors.New("store document is empty")

// DecodeError reports a structural problem at a position in the document.
type DecodeError struct {
	Path    string
	Line    int
	Column  int
	Message string
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s (line %d, column %d): %s", e.Path, e.Line, e.Column, e.Message)
}

func nodeError(node *yaml.Node, path, format string, args ...any) error {
	return &DecodeError{Path: path, Line: node.Line, Column: node.Column, Message: fmt.Sprintf(format, args...)}
}

// Decode parses a YAML or JSON store document.
func Decode(data []byte) (storeconfig.StoreInput, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return storeconfig.StoreInput{}, ErrEmptyDocument
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return storeconfig.StoreInput{}, fmt.Errorf("failed to parse store document: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return storeconfig.StoreInput{}, ErrEmptyDocument
	}
	return decodeStore(doc.Content[0])
}

// DecodeReader reads r fully and decodes it.
func DecodeReader(r io.Reader) (storeconfig.StoreInput, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return storeconfig.StoreInput{}, fmt.Errorf("failed to read store document: %w", err)
	}
	return Decode(data)
}

// LoadFile reads and decodes the document at path. It also returns the raw
// bytes so callers can fingerprint what was loaded.
func LoadFile(path string) (storeconfig.StoreInput, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return storeconfig.StoreInput{}, nil, fmt.Errorf("failed to read store document: %w", err)
	}
	input, err := Decode(data)
	if err != nil {
		return storeconfig.StoreInput{}, data, fmt.Errorf("%s: %w", path, err)
	}
	return input, data, nil
}

// entry is one key/value pair of a mapping node.
type entry struct {
	key   string
	keyAt *yaml.Node
	value *yaml.Node
}

func mappingEntries(node *yaml.Node, path string) ([]entry, error) {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, nodeError(node, path, "expected a mapping")
	}
	entries := make([]entry, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, nodeError(k, path, "mapping keys must be scalars")
		}
		if seen[k.Value] {
			return nil, nodeError(k, path, "key %q is repeated", k.Value)
		}
		seen[k.Value] = true
		if v.Kind == yaml.AliasNode {
			v = v.Alias
		}
		entries = append(entries, entry{key: k.Value, keyAt: k, value: v})
	}
	return entries, nil
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func decodeString(node *yaml.Node, path string) (string, error) {
	if node.Kind != yaml.ScalarNode || isNull(node) {
		return "", nodeError(node, path, "expected a string")
	}
	return node.Value, nil
}

func decodeStringPtr(node *yaml.Node, path string) (*string, error) {
	s, err := decodeString(node, path)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func decodeBoolPtr(node *yaml.Node, path string) (*bool, error) {
	var b bool
	if node.Kind != yaml.ScalarNode || node.Tag != "!!bool" {
		return nil, nodeError(node, path, "expected a boolean")
	}
	if err := node.Decode(&b); err != nil {
		return nil, nodeError(node, path, "expected a boolean: %v", err)
	}
	return &b, nil
}

func decodeStrings(node *yaml.Node, path string) ([]string, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, nodeError(node, path, "expected a list of strings")
	}
	out := make([]string, 0, len(node.Content))
	for i, item := range node.Content {
		s, err := decodeString(item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func unknownKey(e entry, path string) error {
	return nodeError(e.keyAt, path, "unknown key %q", e.key)
}
