package storeconfig

import "fmt"

// assemble builds the canonical store from validated drafts. Validation
// guarantees every lookup below succeeds; a miss is an engine defect.
func assemble(input StoreInput, scope *Scope, codegen Codegen, namespaces []namespaceDraft, tables []tableDraft) *Store {
	store := &Store{
		SourceDirectory: resolveSourceDirectory(input),
		Namespaces:      make(map[string]*Namespace, len(namespaces)),
		Tables:          make(map[ResourceID]*Table, len(tables)),
		Enums:           cloneEnums(scope.enums),
		UserTypes:       append([]UserType(nil), scope.userTypes...),
		Codegen:         codegen,
	}

	for _, ns := range namespaces {
		store.Namespaces[ns.namespace] = &Namespace{Label: ns.label, Namespace: ns.namespace}
	}

	for _, draft := range tables {
		owner, ok := store.Namespaces[draft.namespace]
		if !ok {
			panic(fmt.Sprintf("storeconfig: table %s resolved into undeclared namespace %q", draft.path, draft.namespace))
		}
		id := draft.resourceID()
		if _, dup := store.Tables[id]; dup {
			panic(fmt.Sprintf("storeconfig: resource %q assembled twice", id))
		}

		fields := draft.input.Schema.Fields()
		schema := make([]Field, 0, len(fields))
		for _, f := range fields {
			info, ok := scope.Lookup(f.Type)
			if !ok {
				panic(fmt.Sprintf("storeconfig: field %s.%s has unresolved type %q", draft.path, f.Name, f.Type))
			}
			schema = append(schema, Field{Name: f.Name, Type: info.ABIType, InternalType: f.Type})
		}

		store.Tables[id] = &Table{
			ResourceID:     id,
			Type:           draft.tableType,
			Namespace:      draft.namespace,
			NamespaceLabel: draft.namespaceLabel,
			Name:           draft.name,
			Label:          draft.input.Label,
			Schema:         schema,
			Key:            append([]string{}, draft.input.Key...),
			Codegen:        draft.codegen,
			Deploy:         draft.deploy,
		}
		owner.Tables = append(owner.Tables, id)
	}

	return store
}

func cloneEnums(enums []Enum) []Enum {
	if enums == nil {
		return nil
	}
	out := make([]Enum, len(enums))
	for i, e := range enums {
		out[i] = Enum{Name: e.Name, Members: append([]string(nil), e.Members...)}
	}
	return out
}
