package storeconfig

import "sort"

// Field is one resolved schema field.
type Field struct {
	Name string `json:"name" yaml:"name"`
	// Type is the ABI type stored on chain.
	Type string `json:"type" yaml:"type"`
	// InternalType is the declared type: a built-in, enum or user type name.
	InternalType string `json:"internalType" yaml:"internalType"`
}

// TableCodegen holds a table's fully resolved codegen settings.
type TableCodegen struct {
	OutputDirectory string `json:"outputDirectory" yaml:"outputDirectory"`
	TableIDArgument bool   `json:"tableIdArgument" yaml:"tableIdArgument"`
	StoreArgument   bool   `json:"storeArgument" yaml:"storeArgument"`
	DataStruct      bool   `json:"dataStruct" yaml:"dataStruct"`
}

// TableDeploy holds a table's fully resolved deploy settings.
type TableDeploy struct {
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// Table is a fully resolved table.
type Table struct {
	ResourceID     ResourceID   `json:"resourceId" yaml:"resourceId"`
	Type           string       `json:"type" yaml:"type"`
	Namespace      string       `json:"namespace" yaml:"namespace"`
	NamespaceLabel string       `json:"namespaceLabel" yaml:"namespaceLabel"`
	Name           string       `json:"name" yaml:"name"`
	Label          string       `json:"label" yaml:"label"`
	Schema         []Field      `json:"schema" yaml:"schema"`
	Key            []string     `json:"key" yaml:"key"`
	Codegen        TableCodegen `json:"codegen" yaml:"codegen"`
	Deploy         TableDeploy  `json:"deploy" yaml:"deploy"`
}

// Field returns the schema field with the given name.
func (t *Table) Field(name string) (Field, bool) {
	for _, f := range t.Schema {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ValueFields returns the schema fields that are not part of the key, in
// schema order.
func (t *Table) ValueFields() []Field {
	inKey := make(map[string]bool, len(t.Key))
	for _, k := range t.Key {
		inKey[k] = true
	}
	var values []Field
	for _, f := range t.Schema {
		if !inKey[f.Name] {
			values = append(values, f)
		}
	}
	return values
}

// Namespace is a resolved namespace and the resource IDs of its tables in
// declaration order.
type Namespace struct {
	Label     string       `json:"label" yaml:"label"`
	Namespace string       `json:"namespace" yaml:"namespace"`
	Tables    []ResourceID `json:"tables" yaml:"tables"`
}

// Enum is a resolved enum.
type Enum struct {
	Name    string   `json:"name" yaml:"name"`
	Members []string `json:"members" yaml:"members"`
}

// UserType is a resolved user type.
type UserType struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	FilePath string `json:"filePath" yaml:"filePath"`
}

// Codegen holds fully resolved store-wide codegen settings.
type Codegen struct {
	StoreImportPath      string `json:"storeImportPath" yaml:"storeImportPath"`
	UserTypesFilename    string `json:"userTypesFilename" yaml:"userTypesFilename"`
	OutputDirectory      string `json:"outputDirectory" yaml:"outputDirectory"`
	IndexFilename        string `json:"indexFilename" yaml:"indexFilename"`
	NamespaceDirectories bool   `json:"namespaceDirectories" yaml:"namespaceDirectories"`
}

// Store is the canonical resolved configuration. Namespaces are keyed by
// namespace identifier; the root namespace is keyed by its identifier, "" by
// default.
type Store struct {
	SourceDirectory string                `json:"sourceDirectory" yaml:"sourceDirectory"`
	Namespaces      map[string]*Namespace `json:"namespaces" yaml:"namespaces"`
	Tables          map[ResourceID]*Table `json:"tables" yaml:"tables"`
	Enums           []Enum                `json:"enums" yaml:"enums"`
	UserTypes       []UserType            `json:"userTypes" yaml:"userTypes"`
	Codegen         Codegen               `json:"codegen" yaml:"codegen"`
}

// Table returns the table with the given resource ID.
func (s *Store) Table(id ResourceID) (*Table, bool) {
	t, ok := s.Tables[id]
	return t, ok
}

// Root returns the root namespace.
func (s *Store) Root() *Namespace {
	for _, ns := range s.Namespaces {
		if ns.Label == RootNamespaceLabel {
			return ns
		}
	}
	return nil
}

// NamespaceByLabel returns the namespace with the given label.
func (s *Store) NamespaceByLabel(label string) (*Namespace, bool) {
	for _, ns := range s.Namespaces {
		if ns.Label == label {
			return ns, true
		}
	}
	return nil, false
}

// SortedNamespaces returns the namespaces ordered by identifier.
func (s *Store) SortedNamespaces() []*Namespace {
	out := make([]*Namespace, 0, len(s.Namespaces))
	for _, ns := range s.Namespaces {
		out = append(out, ns)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Namespace < out[j].Namespace })
	return out
}

// SortedTables returns every table ordered by resource ID.
func (s *Store) SortedTables() []*Table {
	out := make([]*Table, 0, len(s.Tables))
	for _, t := range s.Tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResourceID < out[j].ResourceID })
	return out
}

// NamespaceTables returns the tables of a namespace in declaration order.
func (s *Store) NamespaceTables(namespace string) []*Table {
	ns, ok := s.Namespaces[namespace]
	if !ok {
		return nil
	}
	out := make([]*Table, 0, len(ns.Tables))
	for _, id := range ns.Tables {
		out = append(out, s.Tables[id])
	}
	return out
}

// Input converts the store back into a fully specified StoreInput. Resolving
// the result yields a store equal to s.
func (s *Store) Input() StoreInput {
	root := s.Root()
	codegen := s.Codegen
	in := StoreInput{
		SourceDirectory: s.SourceDirectory,
		Codegen: CodegenInput{
			StoreImportPath:      &codegen.StoreImportPath,
			UserTypesFilename:    &codegen.UserTypesFilename,
			OutputDirectory:      &codegen.OutputDirectory,
			IndexFilename:        &codegen.IndexFilename,
			NamespaceDirectories: &codegen.NamespaceDirectories,
		},
	}
	if root != nil {
		id := root.Namespace
		in.Namespace = &id
		in.Tables = s.tableInputs(root)
	}
	for _, ns := range s.SortedNamespaces() {
		if ns == root {
			continue
		}
		id := ns.Namespace
		in.Namespaces = append(in.Namespaces, NamespaceInput{
			Label:     ns.Label,
			Namespace: &id,
			Tables:    s.tableInputs(ns),
		})
	}
	for _, ut := range s.UserTypes {
		in.UserTypes = append(in.UserTypes, UserTypeInput(ut))
	}
	for _, e := range s.Enums {
		in.Enums = append(in.Enums, EnumInput{Name: e.Name, Members: append([]string(nil), e.Members...)})
	}
	return in
}

func (s *Store) tableInputs(ns *Namespace) []TableInput {
	var tables []TableInput
	for _, id := range ns.Tables {
		t := s.Tables[id]
		fields := make(SchemaInput, 0, len(t.Schema))
		for _, f := range t.Schema {
			fields = append(fields, FieldInput{Name: f.Name, Type: f.InternalType})
		}
		nsLabel, nsID := t.NamespaceLabel, t.Namespace
		c, d := t.Codegen, t.Deploy
		tables = append(tables, TableInput{
			Label:          t.Label,
			NamespaceLabel: &nsLabel,
			Namespace:      &nsID,
			Name:           t.Name,
			Type:           t.Type,
			Schema:         ExplicitSchema(fields...),
			Key:            append([]string{}, t.Key...),
			Codegen: TableCodegenInput{
				OutputDirectory: &c.OutputDirectory,
				TableIDArgument: &c.TableIDArgument,
				StoreArgument:   &c.StoreArgument,
				DataStruct:      &c.DataStruct,
			},
			Deploy: TableDeployInput{Disabled: &d.Disabled},
		})
	}
	return tables
}
