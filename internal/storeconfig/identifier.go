package storeconfig

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"storecfg/internal/naming"
)

// MaxIdentifierLength is the number of label characters kept in a derived
// namespace or table identifier.
const MaxIdentifierLength = 16

// RootNamespaceLabel labels the implicit root namespace formed by the store itself.
const RootNamespaceLabel = ""

const resourceSeparator = "__"

// ErrAmbiguousResourceID is returned for identifiers that would make two
// different (namespace, name) pairs share a resource ID.
var ErrAmbiguousResourceID = errors.New(`identifier would make the resource ID ambiguous: namespaces and names may not contain "__", namespaces may not end with "_" and names may not start with "_"`)

// ResourceID addresses a table within the store: "<namespace>__<name>", or
// just "<name>" in the root namespace. checkResourcePart keeps the encoding
// unambiguous: the first "__" always separates namespace from name.
type ResourceID string

// NewResourceID builds the resource ID of a table.
func NewResourceID(namespace, name string) ResourceID {
	if namespace == "" {
		return ResourceID(name)
	}
	return ResourceID(namespace + resourceSeparator + name)
}

// String returns the resource ID as a string.
func (id ResourceID) String() string {
	return string(id)
}

// DeriveIdentifier returns the identifier for a label: its first 16
// characters, cut at a codepoint boundary.
func DeriveIdentifier(label string) string {
	return naming.Truncate(label, MaxIdentifierLength)
}

// ResolveIdentifier returns the explicit override when present, and the
// derived identifier otherwise.
func ResolveIdentifier(label string, override *string) string {
	if override != nil {
		return *override
	}
	return DeriveIdentifier(label)
}

func checkLabel(namer *naming.Namer, path, label string) error {
	if err := namer.CheckLabel(label); err != nil {
		return &InvalidLabelError{Path: path, Label: label, Err: err}
	}
	return nil
}

// checkIdentifier validates an explicit namespace or name override. An empty
// namespace override selects the root namespace.
func checkIdentifier(namer *naming.Namer, path, id string, allowEmpty bool) error {
	if id == "" && allowEmpty {
		return nil
	}
	if err := checkLabel(namer, path, id); err != nil {
		return err
	}
	if utf8.RuneCountInString(id) > MaxIdentifierLength {
		return &InvalidLabelError{
			Path:  path,
			Label: id,
			Err:   fmt.Errorf("identifier is longer than %d characters", MaxIdentifierLength),
		}
	}
	return nil
}

// checkResourcePart rejects a resolved namespace identifier or table name
// that could not be told apart inside a ResourceID.
func checkResourcePart(path, id string, namespace bool) error {
	bad := strings.Contains(id, resourceSeparator)
	if namespace {
		bad = bad || strings.HasSuffix(id, "_")
	} else {
		bad = bad || strings.HasPrefix(id, "_")
	}
	if !bad {
		return nil
	}
	return &InvalidLabelError{Path: path, Label: id, Err: ErrAmbiguousResourceID}
}
