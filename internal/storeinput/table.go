package storeinput

import (
	"gopkg.in/yaml.v3"

	"storecfg/internal/storeconfig"
)

func decodeTables(node *yaml.Node, path string) ([]storeconfig.TableInput, error) {
	entries, err := mappingEntries(node, path)
	if err != nil {
		return nil, err
	}
	tables := make([]storeconfig.TableInput, 0, len(entries))
	for _, e := range entries {
		table, err := decodeTable(e.key, e.value, join(path, e.key))
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// decodeTable accepts the three table forms: a bare type name, a schema
// mapping whose values are all type names, or a full table mapping.
func decodeTable(label string, node *yaml.Node, path string) (storeconfig.TableInput, error) {
	if node.Kind == yaml.ScalarNode && !isNull(node) {
		return storeconfig.TableShorthand(label, storeconfig.ShorthandSchema(node.Value)), nil
	}
	if isSchemaMapping(node) {
		schema, err := decodeSchema(node, path)
		if err != nil {
			return storeconfig.TableInput{}, err
		}
		return storeconfig.TableShorthand(label, schema), nil
	}

	table := storeconfig.TableInput{Label: label}
	entries, err := mappingEntries(node, path)
	if err != nil {
		return table, err
	}
	hasSchema := false
	for _, e := range entries {
		p := join(path, e.key)
		switch e.key {
		case "schema":
			hasSchema = true
			if e.value.Kind == yaml.ScalarNode && !isNull(e.value) {
				table.Schema = storeconfig.ShorthandSchema(e.value.Value)
			} else {
				table.Schema, err = decodeSchema(e.value, p)
			}
		case "key":
			table.Key, err = decodeStrings(e.value, p)
		case "name":
			table.Name, err = decodeString(e.value, p)
		case "type":
			table.Type, err = decodeString(e.value, p)
		case "namespaceLabel":
			table.NamespaceLabel, err = decodeStringPtr(e.value, p)
		case "namespace":
			table.Namespace, err = decodeStringPtr(e.value, p)
		case "codegen":
			table.Codegen, err = decodeTableCodegen(e.value, p)
		case "deploy":
			table.Deploy, err = decodeDeploy(e.value, p)
		default:
			err = unknownKey(e, path)
		}
		if err != nil {
			return table, err
		}
	}
	if !hasSchema {
		return table, nodeError(node, path, "table needs a schema")
	}
	return table, nil
}

// tableKeys are the keys of the full table form. A mapping using any of them
// is a table, so schema fields cannot take these names in the bare form.
var tableKeys = map[string]bool{
	"schema":         true,
	"key":            true,
	"name":           true,
	"type":           true,
	"namespace":      true,
	"namespaceLabel": true,
	"codegen":        true,
	"deploy":         true,
}

// isSchemaMapping reports whether a mapping is a bare schema: no table keys
// and every value a type name.
func isSchemaMapping(node *yaml.Node) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if tableKeys[k.Value] {
			return false
		}
		if v.Kind != yaml.ScalarNode || isNull(v) || v.Tag == "!!bool" {
			return false
		}
	}
	return true
}

func decodeSchema(node *yaml.Node, path string) (storeconfig.SchemaForm, error) {
	entries, err := mappingEntries(node, path)
	if err != nil {
		return storeconfig.SchemaForm{}, err
	}
	fields := make([]storeconfig.FieldInput, 0, len(entries))
	for _, e := range entries {
		typeName, err := decodeString(e.value, join(path, e.key))
		if err != nil {
			return storeconfig.SchemaForm{}, err
		}
		fields = append(fields, storeconfig.FieldInput{Name: e.key, Type: typeName})
	}
	return storeconfig.ExplicitSchema(fields...), nil
}
