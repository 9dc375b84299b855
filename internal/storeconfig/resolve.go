package storeconfig

import (
	"log/slog"

	"storecfg/internal/naming"
)

// Resolver turns StoreInput values into canonical stores. A Resolver holds no
// per-run state and is safe for concurrent use.
type Resolver struct {
	namer  *naming.Namer
	logger *slog.Logger
}

type options struct {
	naming naming.Config
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*options)

// WithNamingConfig sets the label policy.
func WithNamingConfig(cfg naming.Config) Option {
	return func(o *options) {
		o.naming = cfg
	}
}

// WithLogger sets the logger used for label warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewResolver creates a Resolver. Without options it applies the default
// label policy and logs to slog.Default().
func NewResolver(opts ...Option) *Resolver {
	o := options{naming: naming.DefaultConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Resolver{
		namer:  naming.New(o.naming, o.logger),
		logger: o.logger,
	}
}

// Resolve resolves input with the default Resolver.
func Resolve(input StoreInput) (*Store, error) {
	return NewResolver().Resolve(input)
}

// Resolve expands shorthands, builds the type scope, derives identifiers,
// applies defaults, validates and assembles the canonical store. On failure it
// returns a nil store and a *ResolveError listing every problem found.
func (r *Resolver) Resolve(input StoreInput) (*Store, error) {
	errs := &collector{}

	scope, scopeErrs := newScope(r.namer, input.UserTypes, input.Enums)
	errs.addAll(scopeErrs)

	codegen := resolveCodegen(input)
	namespaces := draftNamespaces(input)
	byLabel := namespacesByLabel(namespaces)

	var tables []tableDraft
	for _, ns := range namespaces {
		for _, table := range ns.input.Tables {
			tables = append(tables, draftTable(input, codegen, byLabel, ns, table))
		}
	}

	v := newValidator(r.namer, r.logger, scope, namespaces, errs)
	for _, ns := range namespaces {
		v.validateNamespace(ns)
	}
	for _, t := range tables {
		v.validateTable(t)
	}

	if err := errs.err(); err != nil {
		r.logger.Debug("store resolution failed", slog.Int("errors", len(errs.errs)))
		return nil, err
	}

	store := assemble(input, scope, codegen, namespaces, tables)
	r.logger.Debug("store resolved",
		slog.Int("namespaces", len(store.Namespaces)),
		slog.Int("tables", len(store.Tables)),
	)
	return store, nil
}
