package shim

import (
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/toyz/shim/internal/registry"
	"github.com/toyz/shim/internal/sigparse"
)

// The type table maps the type names accepted by the signature DSL to
// concrete types. It ships with the Go builtins plus a few common named
// types, supports aliases, and accepts user registrations for any named
// type a contract needs.

type typeTable struct {
	types   *registry.Base[string, reflect.Type]
	aliases *registry.Base[string, string]
}

var (
	defaultTypeTable     *typeTable
	defaultTypeTableOnce sync.Once
)

func newTypeTable() *typeTable {
	t := &typeTable{
		types:   registry.NewBase[string, reflect.Type]("type", "type name"),
		aliases: registry.NewBase[string, string]("type alias", "alias"),
	}
	t.types.SetValidator(registry.ChainValidators(
		registry.NotEmptyKeyValidator[reflect.Type]("type name"),
		registry.NoDuplicateValidator[string, reflect.Type]("type name"),
	))
	t.aliases.SetValidator(registry.ChainValidators(
		registry.NotEmptyKeyValidator[string]("alias"),
		registry.NoDuplicateValidator[string, string]("alias"),
	))

	builtins := map[string]reflect.Type{
		"bool":       reflect.TypeOf(false),
		"string":     reflect.TypeOf(""),
		"int":        reflect.TypeOf(int(0)),
		"int8":       reflect.TypeOf(int8(0)),
		"int16":      reflect.TypeOf(int16(0)),
		"int32":      reflect.TypeOf(int32(0)),
		"int64":      reflect.TypeOf(int64(0)),
		"uint":       reflect.TypeOf(uint(0)),
		"uint8":      reflect.TypeOf(uint8(0)),
		"uint16":     reflect.TypeOf(uint16(0)),
		"uint32":     reflect.TypeOf(uint32(0)),
		"uint64":     reflect.TypeOf(uint64(0)),
		"uintptr":    reflect.TypeOf(uintptr(0)),
		"float32":    reflect.TypeOf(float32(0)),
		"float64":    reflect.TypeOf(float64(0)),
		"complex64":  reflect.TypeOf(complex64(0)),
		"complex128": reflect.TypeOf(complex128(0)),
		"any":        reflect.TypeOf((*any)(nil)).Elem(),
		"error":      reflect.TypeOf((*error)(nil)).Elem(),
		"uuid.UUID":  reflect.TypeOf(uuid.UUID{}),
	}
	for name, typ := range builtins {
		// Builtins are registered against a fresh table; none can collide
		_ = t.types.Register(name, typ)
	}

	builtinAliases := map[string]string{
		"byte":        "uint8",
		"rune":        "int32",
		"interface{}": "any",
		"uuid":        "uuid.UUID",
	}
	for alias, canonical := range builtinAliases {
		_ = t.aliases.Register(alias, canonical)
	}

	return t
}

func defaultTable() *typeTable {
	defaultTypeTableOnce.Do(func() {
		defaultTypeTable = newTypeTable()
	})
	return defaultTypeTable
}

// resolveAlias resolves one level of aliasing; names without an alias are
// returned unchanged
func (t *typeTable) resolveAlias(name string) string {
	if canonical, ok := t.aliases.Get(name); ok {
		return canonical
	}
	return name
}

// lookup resolves a bare type name through aliases to a concrete type
func (t *typeTable) lookup(name string) (reflect.Type, bool) {
	if typ, ok := t.types.Get(name); ok {
		return typ, true
	}
	resolved := t.resolveAlias(name)
	if resolved != name {
		if typ, ok := t.types.Get(resolved); ok {
			return typ, true
		}
	}
	return nil, false
}

// resolveRef resolves a parsed type reference, applying pointer and slice
// decoration from the inside out
func (t *typeTable) resolveRef(ref sigparse.TypeRef) (reflect.Type, error) {
	typ, ok := t.lookup(ref.Name)
	if !ok {
		return nil, NewArgumentError("unknown type %q in signature", ref.Name).
			WithHint("register named types with shim.RegisterType before parsing contracts")
	}
	if ref.Pointer {
		typ = reflect.PointerTo(typ)
	}
	for range ref.Slices {
		typ = reflect.SliceOf(typ)
	}
	return typ, nil
}

// RegisterType makes a named type available to the signature DSL. The name
// must not collide with a builtin or a previously registered type.
func RegisterType(name string, t reflect.Type) error {
	if t == nil {
		return NewArgumentError("type for %q cannot be nil", name)
	}
	if err := defaultTable().types.Register(name, t); err != nil {
		return NewArgumentError("cannot register type %q", name).WithCause(err)
	}
	return nil
}

// RegisterTypeAlias makes alias resolve to an already registered type name
func RegisterTypeAlias(alias, canonical string) error {
	table := defaultTable()
	if !table.types.Has(canonical) {
		return NewArgumentError("alias %q targets unknown type %q", alias, canonical)
	}
	if err := table.aliases.Register(alias, canonical); err != nil {
		return NewArgumentError("cannot register alias %q", alias).WithCause(err)
	}
	return nil
}

// LookupType resolves a type name (or alias) registered with the DSL
func LookupType(name string) (reflect.Type, bool) {
	return defaultTable().lookup(name)
}

// ResolveTypeAlias returns the canonical name behind an alias, or the name
// itself when it is not an alias
func ResolveTypeAlias(name string) string {
	return defaultTable().resolveAlias(name)
}
