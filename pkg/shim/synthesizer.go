package shim

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
)

// Backend is the narrow interface the type synthesizer is called through.
// Given an analyzed descriptor it emits a loadable generated type whose
// method bodies are trampolines that defer through per-method call sites.
// Go has no native runtime class generation, so the default backend builds
// a dispatch-table type; alternative backends can be substituted with
// WithBackend.
type Backend interface {
	Emit(desc *Descriptor, scope string) (*GeneratedType, error)
}

// maxMethodArity is the largest parameter count the table backend will
// represent; beyond it a signature is rejected as an ArgumentError
const maxMethodArity = 32

// TableBackend is the default type-synthesis backend: the generated type
// owns a fixed-size slice of call sites keyed by method ordinal, and proxy
// instances forward into it through Invoke, Bind or the universal
// operations.
type TableBackend struct{}

// Emit implements Backend
func (TableBackend) Emit(desc *Descriptor, scope string) (*GeneratedType, error) {
	if desc == nil {
		return nil, NewArgumentError("descriptor cannot be nil")
	}

	id := uuid.New()
	t := &GeneratedType{
		id:     id,
		name:   generatedName(scope, desc, id),
		desc:   desc,
		byName: make(map[string][]*typeMethod),
	}

	for _, am := range desc.methods {
		if len(am.info.Signature.Params) > maxMethodArity {
			return nil, NewArgumentError("signature has %d parameters, backend supports at most %d",
				len(am.info.Signature.Params), maxMethodArity).WithMethod(am.info.String())
		}

		tm := &typeMethod{info: am.info, defaultBody: am.defaultBody}
		if am.synthesize {
			tm.site = newCallSite(am.info)
			t.sites = append(t.sites, tm.site)
		}
		t.methods = append(t.methods, tm)
		t.byName[am.info.Signature.Name] = append(t.byName[am.info.Signature.Name], tm)
	}

	return t, nil
}

// generatedName builds the generated type's name from the naming scope, the
// source contracts and a short unique suffix
func generatedName(scope string, desc *Descriptor, id uuid.UUID) string {
	base := strings.Join(desc.contracts, "+")
	return fmt.Sprintf("%s.%s$Proxy$%s", scope, base, id.String()[:8])
}

// typeMethod is one implemented method of a generated type: either a call
// site that lazily binds through the resolver, or a retained default body
type typeMethod struct {
	info        MethodInfo
	site        *CallSite
	defaultBody reflect.Value
}

// GeneratedType is a loadable type emitted by a Backend. It owns one call
// site per synthesized method and is immutable after creation; instances
// are created through the Constructor returned by DefineProxy.
type GeneratedType struct {
	id      uuid.UUID
	name    string
	desc    *Descriptor
	methods []*typeMethod
	sites   []*CallSite
	byName  map[string][]*typeMethod
}

// ID returns the type's unique identity
func (t *GeneratedType) ID() uuid.UUID {
	return t.id
}

// Name returns the type's generated name
func (t *GeneratedType) Name() string {
	return t.name
}

// Descriptor returns the analyzed method set the type was emitted from
func (t *GeneratedType) Descriptor() *Descriptor {
	return t.desc
}

// Methods returns the descriptions of the type's implemented methods
func (t *GeneratedType) Methods() []MethodInfo {
	return t.desc.Methods()
}

// CallSites returns the type's call sites in ordinal order
func (t *GeneratedType) CallSites() []*CallSite {
	return append([]*CallSite(nil), t.sites...)
}

// universalOverride returns the type's method for a universal operation, or
// nil when the override policy left it with identity semantics
func (t *GeneratedType) universalOverride(name string) *typeMethod {
	for _, tm := range t.byName[name] {
		if tm.info.Kind == UniversalMethod {
			return tm
		}
	}
	return nil
}

// lookupMethod selects the method to dispatch for a name and argument list.
// Most names are unique; when contracts overload a name the candidates are
// narrowed by arity and argument assignability.
func (t *GeneratedType) lookupMethod(name string, args []any) (*typeMethod, error) {
	candidates := t.byName[name]
	switch len(candidates) {
	case 0:
		return nil, NewArgumentError("type %s has no method %s", t.name, name)
	case 1:
		return candidates[0], nil
	}

	var matched []*typeMethod
	for _, tm := range candidates {
		if argsMatch(tm.info.Signature, args) {
			matched = append(matched, tm)
		}
	}
	switch len(matched) {
	case 0:
		return nil, NewArgumentError("no overload of %s.%s accepts the given arguments", t.name, name)
	case 1:
		return matched[0], nil
	default:
		return nil, NewArgumentError("ambiguous call to %s.%s: %d overloads accept the given arguments",
			t.name, name, len(matched))
	}
}

// argsMatch reports whether an argument list is compatible with a signature
func argsMatch(sig MethodSignature, args []any) bool {
	fixed := len(sig.Params)
	if sig.Variadic {
		fixed--
		if len(args) < fixed {
			return false
		}
	} else if len(args) != fixed {
		return false
	}
	for i := 0; i < fixed; i++ {
		if !argAssignable(args[i], sig.Params[i]) {
			return false
		}
	}
	if sig.Variadic {
		elem := sig.Params[len(sig.Params)-1].Elem()
		for _, a := range args[fixed:] {
			if !argAssignable(a, elem) {
				return false
			}
		}
	}
	return true
}

// argAssignable reports whether a single argument can be passed for a
// parameter type
func argAssignable(arg any, param reflect.Type) bool {
	if arg == nil {
		return nilable(param)
	}
	return reflect.TypeOf(arg).AssignableTo(param)
}

// nilable reports whether a nil argument is legal for a parameter type
func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map,
		reflect.Pointer, reflect.Slice, reflect.UnsafePointer:
		return true
	default:
		return false
	}
}
