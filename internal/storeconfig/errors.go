package storeconfig

import (
	"fmt"
	"strings"
)

// InvalidLabelError reports an unusable label or identifier override.
type InvalidLabelError struct {
	Path  string
	Label string
	Err   error
}

func (e *InvalidLabelError) Error() string {
	return fmt.Sprintf("%s: invalid label %q: %v", e.Path, e.Label, e.Err)
}

func (e *InvalidLabelError) Unwrap() error {
	return e.Err
}

// DuplicateTypeError reports a user type or enum whose name is already in scope.
type DuplicateTypeError struct {
	Path     string
	Name     string
	Existing string
}

func (e *DuplicateTypeError) Error() string {
	return fmt.Sprintf("%s: type %q is already declared as %s", e.Path, e.Name, e.Existing)
}

// DuplicateIdentifierError reports two namespaces or tables that resolve to
// the same identifier or label within one scope.
type DuplicateIdentifierError struct {
	// Kind is one of "namespace", "namespace label", "table" or "table label".
	Kind       string
	Identifier string
	Path       string
	Existing   string
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("%s: %s %q collides with %s", e.Path, e.Kind, e.Identifier, e.Existing)
}

// UnknownKeyFieldError reports a key entry that is not a schema field, or that
// appears more than once in the key.
type UnknownKeyFieldError struct {
	Path      string
	Field     string
	Duplicate bool
}

func (e *UnknownKeyFieldError) Error() string {
	if e.Duplicate {
		return fmt.Sprintf("%s: key field %q is listed more than once", e.Path, e.Field)
	}
	return fmt.Sprintf("%s: key field %q is not in the schema", e.Path, e.Field)
}

// UnknownTypeError reports a type name that does not resolve in scope.
type UnknownTypeError struct {
	Path string
	Type string
	Hint string
}

func (e *UnknownTypeError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: unknown type %q (hint: %s)", e.Path, e.Type, e.Hint)
	}
	return fmt.Sprintf("%s: unknown type %q", e.Path, e.Type)
}

// OrphanTableError reports a table whose namespace is not declared in the store.
type OrphanTableError struct {
	Path           string
	Namespace      string
	NamespaceLabel string
	Reason         string
}

func (e *OrphanTableError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// InvalidEnumError reports an enum without members or with repeated members.
type InvalidEnumError struct {
	Path   string
	Name   string
	Reason string
}

func (e *InvalidEnumError) Error() string {
	return fmt.Sprintf("%s: invalid enum %q: %s", e.Path, e.Name, e.Reason)
}

// InvalidKeyError reports a key field whose type cannot be part of a key.
type InvalidKeyError struct {
	Path  string
	Field string
	Type  string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("%s: key field %q has dynamic type %q; keys only support static types", e.Path, e.Field, e.Type)
}

// InvalidSchemaError reports a structurally invalid schema.
type InvalidSchemaError struct {
	Path   string
	Reason string
}

func (e *InvalidSchemaError) Error() string {
	return fmt.Sprintf("%s: invalid schema: %s", e.Path, e.Reason)
}

// InvalidTableTypeError reports an unsupported table type.
type InvalidTableTypeError struct {
	Path string
	Type string
}

func (e *InvalidTableTypeError) Error() string {
	return fmt.Sprintf("%s: invalid table type %q (use %q or %q)", e.Path, e.Type, TableTypeTable, TableTypeOffchainTable)
}

// ResolveError aggregates every problem found while resolving a store.
type ResolveError struct {
	Errors []error
}

func (e *ResolveError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d problems: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *ResolveError) Unwrap() []error {
	return e.Errors
}

// collector accumulates errors across resolution stages.
type collector struct {
	errs []error
}

func (c *collector) add(err error) {
	if err != nil {
		c.errs = append(c.errs, err)
	}
}

func (c *collector) addAll(errs []error) {
	for _, err := range errs {
		c.add(err)
	}
}

func (c *collector) empty() bool {
	return len(c.errs) == 0
}

func (c *collector) err() error {
	if c.empty() {
		return nil
	}
	return &ResolveError{Errors: c.errs}
}
