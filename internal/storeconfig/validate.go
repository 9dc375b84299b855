package storeconfig

import (
	"fmt"
	"log/slog"

	"storecfg/internal/naming"
)

// Schema limits enforced by the on-chain encoding.
const (
	MaxTotalFields   = 28
	MaxDynamicFields = 5
)

const (
	kindNamespace      = "namespace"
	kindNamespaceLabel = "namespace label"
	kindTable          = "table"
	kindTableLabel     = "table label"
)

type validator struct {
	namer     *naming.Namer
	logger    *slog.Logger
	scope     *Scope
	detector  *naming.CollisionDetector
	byLabel   map[string]namespaceDraft
	namespace map[string]bool
	errs      *collector
}

func newValidator(namer *naming.Namer, logger *slog.Logger, scope *Scope, namespaces []namespaceDraft, errs *collector) *validator {
	ids := make(map[string]bool, len(namespaces))
	for _, ns := range namespaces {
		ids[ns.namespace] = true
	}
	return &validator{
		namer:     namer,
		logger:    logger,
		scope:     scope,
		detector:  naming.NewCollisionDetector(logger),
		byLabel:   namespacesByLabel(namespaces),
		namespace: ids,
		errs:      errs,
	}
}

func (v *validator) register(kind, scope, identifier, path string) bool {
	existing, ok := v.detector.Register(kind+":"+scope, identifier, path)
	if !ok {
		v.errs.add(&DuplicateIdentifierError{Kind: kind, Identifier: identifier, Path: path, Existing: existing})
	}
	return ok
}

func (v *validator) lint(path, label string) {
	for _, concern := range v.namer.Lint(label) {
		v.logger.Warn("label warning",
			slog.String("path", path),
			slog.String("label", label),
			slog.String("concern", concern),
		)
	}
}

func (v *validator) validateNamespace(ns namespaceDraft) {
	if ns.root {
		if ns.input.Namespace != nil {
			v.errs.add(checkIdentifier(v.namer, "namespace", *ns.input.Namespace, true))
		}
	} else {
		if err := checkLabel(v.namer, ns.path, ns.label); err != nil {
			v.errs.add(err)
		} else {
			v.lint(ns.path, ns.label)
		}
		if ns.input.Namespace != nil {
			v.errs.add(checkIdentifier(v.namer, ns.path+".namespace", *ns.input.Namespace, true))
		}
		v.register(kindNamespaceLabel, "", ns.label, ns.path)
	}
	v.errs.add(checkResourcePart(ns.path, ns.namespace, true))
	v.register(kindNamespace, "", ns.namespace, ns.path)
}

func (v *validator) validateTable(t tableDraft) {
	in := t.input

	if err := checkLabel(v.namer, t.path, in.Label); err != nil {
		v.errs.add(err)
	} else {
		v.lint(t.path, in.Label)
	}
	if in.Name != "" {
		v.errs.add(checkIdentifier(v.namer, t.path+".name", in.Name, false))
	}
	if in.Namespace != nil {
		v.errs.add(checkIdentifier(v.namer, t.path+".namespace", *in.Namespace, true))
	}

	v.validateOwnership(t)

	if t.tableType != TableTypeTable && t.tableType != TableTypeOffchainTable {
		v.errs.add(&InvalidTableTypeError{Path: t.path + ".type", Type: t.tableType})
	}

	v.errs.add(checkResourcePart(t.path, t.name, false))
	v.register(kindTableLabel, t.namespaceLabel, in.Label, t.path)
	v.register(kindTable, t.namespace, t.name, t.path)

	v.validateSchema(t)
}

func (v *validator) validateOwnership(t tableDraft) {
	owner, ok := v.byLabel[t.namespaceLabel]
	switch {
	case !ok:
		v.errs.add(&OrphanTableError{
			Path:           t.path,
			Namespace:      t.namespace,
			NamespaceLabel: t.namespaceLabel,
			Reason:         fmt.Sprintf("namespace label %q is not declared", t.namespaceLabel),
		})
	case !v.namespace[t.namespace]:
		v.errs.add(&OrphanTableError{
			Path:           t.path,
			Namespace:      t.namespace,
			NamespaceLabel: t.namespaceLabel,
			Reason:         fmt.Sprintf("namespace %q is not declared", t.namespace),
		})
	case owner.namespace != t.namespace:
		v.errs.add(&OrphanTableError{
			Path:           t.path,
			Namespace:      t.namespace,
			NamespaceLabel: t.namespaceLabel,
			Reason:         fmt.Sprintf("namespace label %q has namespace %q, not %q", t.namespaceLabel, owner.namespace, t.namespace),
		})
	}
}

func (v *validator) validateSchema(t tableDraft) {
	schemaPath := t.path + ".schema"
	fields := t.input.Schema.Fields()
	if len(fields) == 0 {
		v.errs.add(&InvalidSchemaError{Path: schemaPath, Reason: "schema has no fields"})
		return
	}

	types := make(map[string]TypeInfo, len(fields))
	declared := make(map[string]bool, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			v.errs.add(&InvalidSchemaError{Path: schemaPath, Reason: fmt.Sprintf("field %d has no name", i)})
			continue
		}
		if declared[f.Name] {
			v.errs.add(&InvalidSchemaError{Path: schemaPath, Reason: fmt.Sprintf("field %q is declared more than once", f.Name)})
			continue
		}
		declared[f.Name] = true
		info, ok := v.scope.Lookup(f.Type)
		if !ok {
			v.errs.add(&UnknownTypeError{Path: schemaPath + "." + f.Name, Type: f.Type, Hint: v.scope.typeHint(f.Type)})
			continue
		}
		types[f.Name] = info
	}

	keyPath := t.path + ".key"
	inKey := make(map[string]bool, len(t.input.Key))
	for _, k := range t.input.Key {
		if inKey[k] {
			v.errs.add(&UnknownKeyFieldError{Path: keyPath, Field: k, Duplicate: true})
			continue
		}
		inKey[k] = true
		if !declared[k] {
			v.errs.add(&UnknownKeyFieldError{Path: keyPath, Field: k})
			continue
		}
		if info, ok := types[k]; ok && info.Dynamic {
			v.errs.add(&InvalidKeyError{Path: keyPath, Field: k, Type: info.Name})
		}
	}

	values, dynamic := 0, 0
	for _, f := range fields {
		if f.Name == "" || inKey[f.Name] {
			continue
		}
		values++
		if types[f.Name].Dynamic {
			dynamic++
		}
	}
	if len(inKey) > MaxTotalFields {
		v.errs.add(&InvalidSchemaError{Path: keyPath, Reason: fmt.Sprintf("key has %d fields, at most %d are allowed", len(inKey), MaxTotalFields)})
	}
	if values > MaxTotalFields {
		v.errs.add(&InvalidSchemaError{Path: schemaPath, Reason: fmt.Sprintf("%d value fields, at most %d are allowed", values, MaxTotalFields)})
	}
	if dynamic > MaxDynamicFields {
		v.errs.add(&InvalidSchemaError{Path: schemaPath, Reason: fmt.Sprintf("%d dynamic value fields, at most %d are allowed", dynamic, MaxDynamicFields)})
	}
}
