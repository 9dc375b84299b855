// Package storeconfig resolves a terse store description (namespaces, tables,
// shorthand schemas, enums and user types) into a canonical, fully populated
// configuration for code generation and deployment tooling.
//
// Resolution is a pure, synchronous transform: shorthand expansion, scope
// construction, identifier derivation, defaulting, validation and assembly.
// Every user error found along the way is reported together in a *ResolveError.
package storeconfig

// Table types used in a table's resource ID.
const (
	TableTypeTable         = "table"
	TableTypeOffchainTable = "offchainTable"
)

// FieldInput declares one schema field.
type FieldInput struct {
	Name string
	Type string
}

// SchemaInput is an ordered list of fields. Declaration order is the on-chain
// field order.
type SchemaInput []FieldInput

// SchemaForm is either an explicit schema or a single type name (shorthand for
// a schema with one "value" field).
type SchemaForm struct {
	fields    SchemaInput
	typeName  string
	shorthand bool
}

// ExplicitSchema returns a schema form holding the given fields.
func ExplicitSchema(fields ...FieldInput) SchemaForm {
	return SchemaForm{fields: fields}
}

// ShorthandSchema returns a schema form holding a single type name.
func ShorthandSchema(typeName string) SchemaForm {
	return SchemaForm{typeName: typeName, shorthand: true}
}

// IsShorthand reports whether the form is a bare type name.
func (s SchemaForm) IsShorthand() bool {
	return s.shorthand
}

// TypeName returns the shorthand type name, or "" for explicit schemas.
func (s SchemaForm) TypeName() string {
	return s.typeName
}

// Fields returns the explicit fields, or nil for shorthand forms.
func (s SchemaForm) Fields() SchemaInput {
	return s.fields
}

// TableCodegenInput holds optional per-table codegen settings. Nil fields fall
// through to the enclosing namespace, then the store, then engine defaults.
type TableCodegenInput struct {
	OutputDirectory *string
	TableIDArgument *bool
	StoreArgument   *bool
	DataStruct      *bool
}

// TableDeployInput holds optional per-table deploy settings.
type TableDeployInput struct {
	Disabled *bool
}

// TableInput describes one table.
type TableInput struct {
	// Label is the human-readable name used as config key, library name and
	// file name. Required.
	Label string
	// NamespaceLabel defaults to the enclosing namespace label, or the root
	// namespace label for tables declared at the store level.
	NamespaceLabel *string
	// Namespace is the namespace identifier used in the resource ID. It
	// defaults to the identifier of the namespace labelled NamespaceLabel.
	Namespace *string
	// Name is the table identifier used in the resource ID. Defaults to the
	// first 16 characters of Label.
	Name string
	// Type defaults to "table".
	Type   string
	Schema SchemaForm
	// Key lists the primary key fields. Nil means unset; an empty, non-nil
	// key declares a singleton table.
	Key     []string
	Codegen TableCodegenInput
	Deploy  TableDeployInput
}

// NamespaceInput describes one namespace and the defaults it applies to its tables.
type NamespaceInput struct {
	Label string
	// Namespace overrides the identifier derived from Label.
	Namespace *string
	Tables    []TableInput
	Codegen   TableCodegenInput
	Deploy    TableDeployInput
}

// EnumInput declares an enum with at least one unique member.
type EnumInput struct {
	Name    string
	Members []string
}

// UserTypeInput declares a custom type backed by a static ABI type.
type UserTypeInput struct {
	Name     string
	Type     string
	FilePath string
}

// CodegenInput holds store-wide codegen settings. Table holds store-level
// defaults for every table's codegen settings.
type CodegenInput struct {
	StoreImportPath      *string
	UserTypesFilename    *string
	OutputDirectory      *string
	IndexFilename        *string
	NamespaceDirectories *bool
	Table                TableCodegenInput
}

// StoreInput is the root of a store description. The store itself acts as the
// root namespace: Namespace, Tables and Deploy apply to it.
type StoreInput struct {
	Namespace       *string
	Tables          []TableInput
	Deploy          TableDeployInput
	Namespaces      []NamespaceInput
	SourceDirectory string
	UserTypes       []UserTypeInput
	Enums           []EnumInput
	Codegen         CodegenInput
}
