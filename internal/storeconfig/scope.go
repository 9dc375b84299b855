package storeconfig

import (
	"fmt"
	"sort"
	"strings"

	"storecfg/internal/naming"
)

// TypeOrigin records where a scope type was declared.
type TypeOrigin int

const (
	// OriginBuiltin marks elementary ABI types and their dynamic arrays.
	OriginBuiltin TypeOrigin = iota
	// OriginEnum marks user enums.
	OriginEnum
	// OriginUserType marks user-declared custom types.
	OriginUserType
)

// String returns a human-readable origin name.
func (o TypeOrigin) String() string {
	switch o {
	case OriginEnum:
		return "enum"
	case OriginUserType:
		return "user type"
	default:
		return "built-in type"
	}
}

// TypeInfo describes one resolvable field type.
type TypeInfo struct {
	// Name is the name fields use to refer to the type.
	Name string
	// ABIType is the on-chain representation.
	ABIType string
	// StaticLength is the encoded byte length of static types; 0 for dynamic types.
	StaticLength int
	Dynamic      bool
	Origin       TypeOrigin
}

// Scope is the immutable set of types fields may use during one resolution run.
type Scope struct {
	types     map[string]TypeInfo
	enums     []Enum
	userTypes []UserType
}

var builtinTypes = newBuiltinTypes()

func newBuiltinTypes() map[string]TypeInfo {
	types := make(map[string]TypeInfo)
	addStatic := func(name string, length int) {
		types[name] = TypeInfo{Name: name, ABIType: name, StaticLength: length, Origin: OriginBuiltin}
	}
	for bits := 8; bits <= 256; bits += 8 {
		addStatic(fmt.Sprintf("uint%d", bits), bits/8)
		addStatic(fmt.Sprintf("int%d", bits), bits/8)
	}
	for n := 1; n <= 32; n++ {
		addStatic(fmt.Sprintf("bytes%d", n), n)
	}
	addStatic("bool", 1)
	addStatic("address", 20)

	statics := make([]string, 0, len(types))
	for name := range types {
		statics = append(statics, name)
	}
	for _, name := range statics {
		array := name + "[]"
		types[array] = TypeInfo{Name: array, ABIType: array, Dynamic: true, Origin: OriginBuiltin}
	}
	types["bytes"] = TypeInfo{Name: "bytes", ABIType: "bytes", Dynamic: true, Origin: OriginBuiltin}
	types["string"] = TypeInfo{Name: "string", ABIType: "string", Dynamic: true, Origin: OriginBuiltin}
	return types
}

// NewScope builds a scope from user types and enums. It fails with a
// *ResolveError listing every DuplicateTypeError, InvalidEnumError and
// invalid user type found.
func NewScope(userTypes []UserTypeInput, enums []EnumInput) (*Scope, error) {
	scope, errs := newScope(naming.Default(), userTypes, enums)
	if len(errs) > 0 {
		return nil, &ResolveError{Errors: errs}
	}
	return scope, nil
}

// newScope always returns a usable scope so later stages can keep collecting
// errors; invalid declarations are registered with their best-effort metadata.
func newScope(namer *naming.Namer, userTypes []UserTypeInput, enums []EnumInput) (*Scope, []error) {
	scope := &Scope{types: make(map[string]TypeInfo, len(builtinTypes)+len(userTypes)+len(enums))}
	for name, info := range builtinTypes {
		scope.types[name] = info
	}

	var errs []error
	register := func(path string, info TypeInfo) bool {
		if err := namer.CheckLabel(info.Name); err != nil {
			errs = append(errs, &InvalidLabelError{Path: path, Label: info.Name, Err: err})
			return false
		}
		if existing, ok := scope.types[info.Name]; ok {
			errs = append(errs, &DuplicateTypeError{Path: path, Name: info.Name, Existing: existing.Origin.String()})
			return false
		}
		scope.types[info.Name] = info
		return true
	}

	for _, ut := range userTypes {
		path := "userTypes." + ut.Name
		underlying, ok := builtinTypes[ut.Type]
		if !ok || underlying.Dynamic {
			errs = append(errs, &UnknownTypeError{Path: path, Type: ut.Type, Hint: "user types must wrap a static ABI type"})
		}
		info := TypeInfo{
			Name:         ut.Name,
			ABIType:      ut.Type,
			StaticLength: underlying.StaticLength,
			Origin:       OriginUserType,
		}
		if register(path, info) && ok && !underlying.Dynamic {
			scope.userTypes = append(scope.userTypes, UserType{Name: ut.Name, Type: ut.Type, FilePath: ut.FilePath})
		}
	}

	for _, enum := range enums {
		path := "enums." + enum.Name
		valid := true
		if len(enum.Members) == 0 {
			errs = append(errs, &InvalidEnumError{Path: path, Name: enum.Name, Reason: "an enum needs at least one member"})
			valid = false
		}
		seen := make(map[string]bool, len(enum.Members))
		for _, member := range enum.Members {
			if seen[member] {
				errs = append(errs, &InvalidEnumError{Path: path, Name: enum.Name, Reason: fmt.Sprintf("member %q is listed more than once", member)})
				valid = false
			}
			seen[member] = true
		}
		abiType, length := enumABIType(len(enum.Members))
		info := TypeInfo{Name: enum.Name, ABIType: abiType, StaticLength: length, Origin: OriginEnum}
		if register(path, info) && valid {
			scope.enums = append(scope.enums, Enum{Name: enum.Name, Members: append([]string(nil), enum.Members...)})
		}
	}

	return scope, errs
}

// enumABIType returns the smallest unsigned integer type able to index count members.
func enumABIType(count int) (string, int) {
	length := 1
	capacity := 256
	for capacity < count && length < 32 {
		length++
		capacity *= 256
	}
	return fmt.Sprintf("uint%d", length*8), length
}

// Lookup returns the type registered under name.
func (s *Scope) Lookup(name string) (TypeInfo, bool) {
	info, ok := s.types[name]
	return info, ok
}

// Has reports whether name resolves in the scope.
func (s *Scope) Has(name string) bool {
	_, ok := s.types[name]
	return ok
}

// TypeNames returns every resolvable type name in sorted order.
func (s *Scope) TypeNames() []string {
	names := make([]string, 0, len(s.types))
	for name := range s.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// typeHint suggests a fix for a type name that is not in the scope.
func (s *Scope) typeHint(name string) string {
	if elem, ok := strings.CutSuffix(name, "[]"); ok && s.Has(elem) {
		return fmt.Sprintf("arrays are only available for static built-in types, not %q", elem)
	}
	for _, candidate := range s.TypeNames() {
		if strings.EqualFold(candidate, name) {
			return fmt.Sprintf("did you mean %q?", candidate)
		}
	}
	return ""
}
