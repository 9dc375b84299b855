package storeconfig

// ShorthandFieldName is the single field created when a schema is given as a
// bare type name.
const ShorthandFieldName = "value"

// ExpandShorthand normalizes a table to canonical shape: an explicit schema
// and a non-nil key.
//
// A schema given as a bare type name becomes {value: <type>} keyed by
// ["value"] unless a key is supplied. An explicit schema without a key
// declares a singleton table. The input is not modified.
func ExpandShorthand(table TableInput) TableInput {
	out := table
	if table.Schema.IsShorthand() {
		out.Schema = ExplicitSchema(FieldInput{Name: ShorthandFieldName, Type: table.Schema.TypeName()})
		if table.Key == nil {
			out.Key = []string{ShorthandFieldName}
			return out
		}
	} else {
		out.Schema = ExplicitSchema(append(SchemaInput(nil), table.Schema.Fields()...)...)
	}
	out.Key = append([]string{}, table.Key...)
	return out
}

// TableShorthand declares a table from a label and a schema form, the way a
// bare schema map or type name is written inside a tables mapping.
func TableShorthand(label string, schema SchemaForm) TableInput {
	return TableInput{Label: label, Schema: schema}
}
