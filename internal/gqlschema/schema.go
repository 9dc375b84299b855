// Package gqlschema exposes the resolved store, and optionally indexed store
// records, as a read-only GraphQL API.
package gqlschema

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"

	"storecfg/internal/configrefresh"
	"storecfg/internal/queryadapter"
	"storecfg/internal/storeconfig"
)

// ErrNotReady is returned while no snapshot has been resolved.
var ErrNotReady = errors.New("store not ready")

// Source supplies the snapshot each query reads.
type Source interface {
	CurrentSnapshot() *configrefresh.Snapshot
}

// Config defines schema inputs.
type Config struct {
	Source Source
	// Adapter enables the logs and findAll fields when set.
	Adapter queryadapter.QueryAdapter
}

// namespaceView pairs a namespace with the store it belongs to so its tables
// resolve against the same snapshot.
type namespaceView struct {
	namespace *storeconfig.Namespace
	store     *storeconfig.Store
}

type builder struct {
	cfg Config

	fieldType        *graphql.Object
	tableCodegenType *graphql.Object
	tableDeployType  *graphql.Object
	tableType        *graphql.Object
	namespaceType    *graphql.Object
	enumType         *graphql.Object
	userTypeType     *graphql.Object
	codegenType      *graphql.Object
	storeType        *graphql.Object
}

// NewSchema builds the GraphQL schema.
func NewSchema(cfg Config) (graphql.Schema, error) {
	if cfg.Source == nil {
		return graphql.Schema{}, fmt.Errorf("gqlschema requires a snapshot source")
	}
	b := &builder{cfg: cfg}
	b.buildTypes()

	fields := graphql.Fields{
		"store": &graphql.Field{
			Type:        graphql.NewNonNull(b.storeType),
			Description: "The active resolved store.",
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return b.snapshot()
			},
		},
		"namespaces": &graphql.Field{
			Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(b.namespaceType))),
			Description: "Namespaces ordered by identifier; the root namespace is included.",
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				snap, err := b.snapshot()
				if err != nil {
					return nil, err
				}
				return namespaceViews(snap.Store), nil
			},
		},
		"namespace": &graphql.Field{
			Type: b.namespaceType,
			Args: graphql.FieldConfigArgument{
				"label": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				snap, err := b.snapshot()
				if err != nil {
					return nil, err
				}
				label, _ := p.Args["label"].(string)
				ns, ok := snap.Store.NamespaceByLabel(label)
				if !ok {
					return nil, nil
				}
				return namespaceView{namespace: ns, store: snap.Store}, nil
			},
		},
		"tables": &graphql.Field{
			Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(b.tableType))),
			Description: "Tables ordered by resource ID, optionally limited to one namespace identifier.",
			Args: graphql.FieldConfigArgument{
				"namespace": &graphql.ArgumentConfig{Type: graphql.String},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				snap, err := b.snapshot()
				if err != nil {
					return nil, err
				}
				if ns, ok := p.Args["namespace"].(string); ok {
					return snap.Store.NamespaceTables(ns), nil
				}
				return snap.Store.SortedTables(), nil
			},
		},
		"table": &graphql.Field{
			Type: b.tableType,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				snap, err := b.snapshot()
				if err != nil {
					return nil, err
				}
				id, _ := p.Args["id"].(string)
				table, ok := snap.Store.Table(storeconfig.ResourceID(id))
				if !ok {
					return nil, nil
				}
				return table, nil
			},
		},
		"enums": &graphql.Field{
			Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(b.enumType))),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				snap, err := b.snapshot()
				if err != nil {
					return nil, err
				}
				return snap.Store.Enums, nil
			},
		},
		"userTypes": &graphql.Field{
			Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(b.userTypeType))),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				snap, err := b.snapshot()
				if err != nil {
					return nil, err
				}
				return snap.Store.UserTypes, nil
			},
		},
	}

	if cfg.Adapter != nil {
		b.addAdapterFields(fields)
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: fields,
		}),
	})
}

// NewHandler serves schema over HTTP.
func NewHandler(schema *graphql.Schema, graphiQL bool) http.Handler {
	return handler.New(&handler.Config{
		Schema:   schema,
		Pretty:   true,
		GraphiQL: graphiQL,
	})
}

func (b *builder) snapshot() (*configrefresh.Snapshot, error) {
	snap := b.cfg.Source.CurrentSnapshot()
	if snap == nil || snap.Store == nil {
		return nil, ErrNotReady
	}
	return snap, nil
}

func namespaceViews(store *storeconfig.Store) []namespaceView {
	sorted := store.SortedNamespaces()
	views := make([]namespaceView, len(sorted))
	for i, ns := range sorted {
		views[i] = namespaceView{namespace: ns, store: store}
	}
	return views
}

func nonNullString() graphql.Output {
	return graphql.NewNonNull(graphql.String)
}

func nonNullStringList() graphql.Output {
	return graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String)))
}

func (b *builder) buildTypes() {
	b.fieldType = graphql.NewObject(graphql.ObjectConfig{
		Name:        "Field",
		Description: "A schema field. type is the ABI type; internalType is the declared type.",
		Fields: graphql.Fields{
			"name":         &graphql.Field{Type: nonNullString()},
			"type":         &graphql.Field{Type: nonNullString()},
			"internalType": &graphql.Field{Type: nonNullString()},
		},
	})

	b.tableCodegenType = graphql.NewObject(graphql.ObjectConfig{
		Name: "TableCodegen",
		Fields: graphql.Fields{
			"outputDirectory": &graphql.Field{Type: nonNullString()},
			"tableIdArgument": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"storeArgument":   &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"dataStruct":      &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		},
	})

	b.tableDeployType = graphql.NewObject(graphql.ObjectConfig{
		Name: "TableDeploy",
		Fields: graphql.Fields{
			"disabled": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		},
	})

	b.tableType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Table",
		Fields: graphql.Fields{
			"resourceId":     &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"type":           &graphql.Field{Type: nonNullString()},
			"namespace":      &graphql.Field{Type: nonNullString()},
			"namespaceLabel": &graphql.Field{Type: nonNullString()},
			"name":           &graphql.Field{Type: nonNullString()},
			"label":          &graphql.Field{Type: nonNullString()},
			"schema":         &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(b.fieldType)))},
			"key":            &graphql.Field{Type: nonNullStringList()},
			"codegen":        &graphql.Field{Type: graphql.NewNonNull(b.tableCodegenType)},
			"deploy":         &graphql.Field{Type: graphql.NewNonNull(b.tableDeployType)},
		},
	})

	b.namespaceType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Namespace",
		Fields: graphql.Fields{
			"label": &graphql.Field{
				Type: nonNullString(),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(namespaceView).namespace.Label, nil
				},
			},
			"namespace": &graphql.Field{
				Type: nonNullString(),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(namespaceView).namespace.Namespace, nil
				},
			},
			"tables": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(b.tableType))),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					view := p.Source.(namespaceView)
					tables := make([]*storeconfig.Table, 0, len(view.namespace.Tables))
					for _, id := range view.namespace.Tables {
						if table, ok := view.store.Table(id); ok {
							tables = append(tables, table)
						}
					}
					return tables, nil
				},
			},
		},
	})

	b.enumType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Enum",
		Fields: graphql.Fields{
			"name":    &graphql.Field{Type: nonNullString()},
			"members": &graphql.Field{Type: nonNullStringList()},
		},
	})

	b.userTypeType = graphql.NewObject(graphql.ObjectConfig{
		Name: "UserType",
		Fields: graphql.Fields{
			"name":     &graphql.Field{Type: nonNullString()},
			"type":     &graphql.Field{Type: nonNullString()},
			"filePath": &graphql.Field{Type: nonNullString()},
		},
	})

	b.codegenType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Codegen",
		Fields: graphql.Fields{
			"storeImportPath":      &graphql.Field{Type: nonNullString()},
			"userTypesFilename":    &graphql.Field{Type: nonNullString()},
			"outputDirectory":      &graphql.Field{Type: nonNullString()},
			"indexFilename":        &graphql.Field{Type: nonNullString()},
			"namespaceDirectories": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		},
	})

	snapField := func(typ graphql.Output, get func(*configrefresh.Snapshot) interface{}) *graphql.Field {
		return &graphql.Field{
			Type: typ,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return get(p.Source.(*configrefresh.Snapshot)), nil
			},
		}
	}
	b.storeType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Store",
		Fields: graphql.Fields{
			"sourceDirectory": snapField(nonNullString(), func(s *configrefresh.Snapshot) interface{} {
				return s.Store.SourceDirectory
			}),
			"codegen": snapField(graphql.NewNonNull(b.codegenType), func(s *configrefresh.Snapshot) interface{} {
				return s.Store.Codegen
			}),
			"fingerprint": snapField(nonNullString(), func(s *configrefresh.Snapshot) interface{} {
				return s.Fingerprint
			}),
			"builtAt": snapField(nonNullString(), func(s *configrefresh.Snapshot) interface{} {
				return s.BuiltAt.UTC().Format(time.RFC3339Nano)
			}),
			"source": snapField(graphql.String, func(s *configrefresh.Snapshot) interface{} {
				return s.Source
			}),
			"document": snapField(graphql.NewNonNull(jsonScalar), func(s *configrefresh.Snapshot) interface{} {
				return s.Store
			}),
		},
	})
}
