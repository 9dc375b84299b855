package gqlschema

import (
	"encoding/json"
	"log/slog"
	"math"
	"strconv"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// bigIntScalar carries chain IDs and block numbers, which overflow GraphQL
// Int. Values are unsigned 64-bit integers serialized as decimal strings.
var bigIntScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "BigInt",
	Description: "Unsigned 64-bit integer serialized as a decimal string.",
	Serialize: func(value interface{}) interface{} {
		if v, ok := coerceUint64(value); ok {
			return strconv.FormatUint(v, 10)
		}
		return nil
	},
	ParseValue: func(value interface{}) interface{} {
		if v, ok := coerceUint64(value); ok {
			return v
		}
		return nil
	},
	ParseLiteral: func(valueAST ast.Value) interface{} {
		var raw string
		switch v := valueAST.(type) {
		case *ast.IntValue:
			raw = v.Value
		case *ast.StringValue:
			raw = v.Value
		default:
			return nil
		}
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil
		}
		return parsed
	},
})

func coerceUint64(value interface{}) (uint64, bool) {
	switch v := value.(type) {
	case uint64:
		return v, true
	case uint32:
		return uint64(v), true
	case uint:
		return uint64(v), true
	case int:
		return uint64(v), v >= 0
	case int64:
		return uint64(v), v >= 0
	case float64:
		if v < 0 || v != math.Trunc(v) || v > math.MaxUint64 {
			return 0, false
		}
		return uint64(v), true
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		return parsed, err == nil
	case *uint64:
		if v == nil {
			return 0, false
		}
		return *v, true
	default:
		return 0, false
	}
}

// jsonScalar serializes any value as a JSON document string.
var jsonScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "Arbitrary JSON value serialized as a string.",
	Serialize: func(value interface{}) interface{} {
		switch v := value.(type) {
		case nil:
			return nil
		case []byte:
			return string(v)
		case string:
			return v
		default:
			serialized, err := json.Marshal(v)
			if err != nil {
				slog.Default().Warn("failed to serialize JSON scalar", slog.String("error", err.Error()))
				return nil
			}
			return string(serialized)
		}
	},
	ParseValue: func(value interface{}) interface{} {
		if s, ok := value.(string); ok {
			return s
		}
		return nil
	},
	ParseLiteral: func(valueAST ast.Value) interface{} {
		if sv, ok := valueAST.(*ast.StringValue); ok {
			return sv.Value
		}
		return nil
	},
})
