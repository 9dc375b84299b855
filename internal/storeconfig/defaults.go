package storeconfig

import "path"

// Engine defaults applied when no layer sets a value.
const (
	DefaultSourceDirectory        = "src"
	DefaultStoreImportPath        = "@latticexyz/store/src/"
	DefaultUserTypesFilename      = "common.sol"
	DefaultCodegenOutputDirectory = "codegen"
	DefaultIndexFilename          = "index.sol"
	DefaultTableOutputDirectory   = "tables"
	DefaultTableType              = TableTypeTable
)

// firstSet returns the first non-nil layer, most specific first, or fallback.
func firstSet[T any](fallback T, layers ...*T) T {
	for _, layer := range layers {
		if layer != nil {
			return *layer
		}
	}
	return fallback
}

func resolveCodegen(input StoreInput) Codegen {
	c := input.Codegen
	return Codegen{
		StoreImportPath:      firstSet(DefaultStoreImportPath, c.StoreImportPath),
		UserTypesFilename:    firstSet(DefaultUserTypesFilename, c.UserTypesFilename),
		OutputDirectory:      firstSet(DefaultCodegenOutputDirectory, c.OutputDirectory),
		IndexFilename:        firstSet(DefaultIndexFilename, c.IndexFilename),
		NamespaceDirectories: firstSet(len(input.Namespaces) > 0, c.NamespaceDirectories),
	}
}

func resolveSourceDirectory(input StoreInput) string {
	if input.SourceDirectory != "" {
		return input.SourceDirectory
	}
	return DefaultSourceDirectory
}

// resolveTableCodegen layers table, namespace and store settings over the
// engine defaults, one key at a time.
func resolveTableCodegen(store Codegen, namespaceLabel string, valueFields int, table, namespace, storeTable TableCodegenInput) TableCodegen {
	outputDirectory := DefaultTableOutputDirectory
	if store.NamespaceDirectories {
		outputDirectory = path.Join(namespaceLabel, DefaultTableOutputDirectory)
	}
	return TableCodegen{
		OutputDirectory: firstSet(outputDirectory, table.OutputDirectory, namespace.OutputDirectory, storeTable.OutputDirectory),
		TableIDArgument: firstSet(false, table.TableIDArgument, namespace.TableIDArgument, storeTable.TableIDArgument),
		StoreArgument:   firstSet(false, table.StoreArgument, namespace.StoreArgument, storeTable.StoreArgument),
		DataStruct:      firstSet(valueFields > 1, table.DataStruct, namespace.DataStruct, storeTable.DataStruct),
	}
}

func resolveTableDeploy(table, namespace, store TableDeployInput) TableDeploy {
	return TableDeploy{
		Disabled: firstSet(false, table.Disabled, namespace.Disabled, store.Disabled),
	}
}

// namespaceDraft is a namespace with its identifier resolved.
type namespaceDraft struct {
	path      string
	label     string
	namespace string
	root      bool
	input     NamespaceInput
}

// tableDraft is a table after shorthand expansion and defaulting, before validation.
type tableDraft struct {
	path           string
	input          TableInput
	namespaceLabel string
	namespace      string
	name           string
	tableType      string
	codegen        TableCodegen
	deploy         TableDeploy
}

func (t tableDraft) resourceID() ResourceID {
	return NewResourceID(t.namespace, t.name)
}

// draftNamespaces lists the root namespace followed by the declared namespaces.
func draftNamespaces(input StoreInput) []namespaceDraft {
	drafts := make([]namespaceDraft, 0, len(input.Namespaces)+1)
	drafts = append(drafts, namespaceDraft{
		path:      "store",
		label:     RootNamespaceLabel,
		namespace: firstSet("", input.Namespace),
		root:      true,
		input:     NamespaceInput{Label: RootNamespaceLabel, Namespace: input.Namespace, Tables: input.Tables},
	})
	for _, ns := range input.Namespaces {
		drafts = append(drafts, namespaceDraft{
			path:      "namespaces." + ns.Label,
			label:     ns.Label,
			namespace: ResolveIdentifier(ns.Label, ns.Namespace),
			input:     ns,
		})
	}
	return drafts
}

// namespacesByLabel indexes drafts by label; the first declaration wins.
func namespacesByLabel(drafts []namespaceDraft) map[string]namespaceDraft {
	byLabel := make(map[string]namespaceDraft, len(drafts))
	for _, d := range drafts {
		if _, ok := byLabel[d.label]; !ok {
			byLabel[d.label] = d
		}
	}
	return byLabel
}

func tablePath(ns namespaceDraft, label string) string {
	if ns.root {
		return "tables." + label
	}
	return ns.path + ".tables." + label
}

// draftTable expands and defaults one table declared inside ns. Namespace-level
// defaults come from the namespace the table resolves into.
func draftTable(input StoreInput, codegen Codegen, byLabel map[string]namespaceDraft, ns namespaceDraft, table TableInput) tableDraft {
	t := ExpandShorthand(table)

	namespaceLabel := firstSet(ns.label, t.NamespaceLabel)
	owner, known := byLabel[namespaceLabel]

	var namespace string
	switch {
	case t.Namespace != nil:
		namespace = *t.Namespace
	case known:
		namespace = owner.namespace
	default:
		namespace = DeriveIdentifier(namespaceLabel)
	}

	name := t.Name
	if name == "" {
		name = DeriveIdentifier(t.Label)
	}
	tableType := t.Type
	if tableType == "" {
		tableType = DefaultTableType
	}

	var layer NamespaceInput
	if known {
		layer = owner.input
	}

	return tableDraft{
		path:           tablePath(ns, t.Label),
		input:          t,
		namespaceLabel: namespaceLabel,
		namespace:      namespace,
		name:           name,
		tableType:      tableType,
		codegen: resolveTableCodegen(codegen, namespaceLabel, countValueFields(t),
			t.Codegen, layer.Codegen, input.Codegen.Table),
		deploy: resolveTableDeploy(t.Deploy, layer.Deploy, input.Deploy),
	}
}

func countValueFields(t TableInput) int {
	inKey := make(map[string]bool, len(t.Key))
	for _, k := range t.Key {
		inKey[k] = true
	}
	count := 0
	for _, f := range t.Schema.Fields() {
		if !inKey[f.Name] {
			count++
		}
	}
	return count
}
