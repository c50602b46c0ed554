package shim

import (
	"fmt"
	"reflect"
	"strings"
)

// MethodSignature describes one method of a contract: its name, parameter
// types, return types and whether the final parameter is variadic. For a
// variadic method the final parameter type is the slice type, following the
// reflect convention.
type MethodSignature struct {
	Name     string
	Params   []reflect.Type
	Returns  []reflect.Type
	Variadic bool
}

// Key returns the deduplication key for the signature. Two signatures with
// the same name, parameter types and return types share a key.
func (s MethodSignature) Key() string {
	var sb strings.Builder
	sb.WriteString(s.Name)
	sb.WriteString("(")
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(",")
		}
		if s.Variadic && i == len(s.Params)-1 {
			sb.WriteString("...")
		}
		sb.WriteString(p.String())
	}
	sb.WriteString(")")
	for i, r := range s.Returns {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(r.String())
	}
	return sb.String()
}

// String returns a readable rendering of the signature
func (s MethodSignature) String() string {
	var sb strings.Builder
	sb.WriteString(s.Name)
	sb.WriteString("(")
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if s.Variadic && i == len(s.Params)-1 {
			sb.WriteString("...")
			sb.WriteString(p.Elem().String())
		} else {
			sb.WriteString(p.String())
		}
	}
	sb.WriteString(")")
	switch len(s.Returns) {
	case 0:
	case 1:
		sb.WriteString(" ")
		sb.WriteString(s.Returns[0].String())
	default:
		sb.WriteString(" (")
		for i, r := range s.Returns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(r.String())
		}
		sb.WriteString(")")
	}
	return sb.String()
}

// MethodKind classifies how a contract method came to be part of the
// generated type's method set
type MethodKind int

const (
	// AbstractMethod is a contract method with no body; it is always
	// synthesized and always resolved through the resolver
	AbstractMethod MethodKind = iota

	// DefaultMethod is a contract method that carries a default body; it
	// is resolved through the resolver only if the override decision made
	// at generation time said so
	DefaultMethod

	// UniversalMethod is one of the universal operations (Equals,
	// HashCode, String) injected by the analyzer when the override policy
	// selects it
	UniversalMethod
)

// String returns the string representation of the method kind
func (k MethodKind) String() string {
	switch k {
	case AbstractMethod:
		return "abstract"
	case DefaultMethod:
		return "default"
	case UniversalMethod:
		return "universal"
	default:
		return "unknown"
	}
}

// MethodInfo is the method description handed to override policies and to
// the resolver. It identifies the declaring contract, the signature, the
// call-site ordinal within the generated type (-1 when no call site exists)
// and the delegate the generated type carries, if any.
type MethodInfo struct {
	// Contract is the name of the contract that declared the method, or
	// "universal" for injected universal operations
	Contract string

	// Signature is the method's signature
	Signature MethodSignature

	// Ordinal is the method's call-site index within the generated type,
	// or -1 for methods that keep their default body
	Ordinal int

	// Kind classifies the method
	Kind MethodKind

	// DelegateType is the delegate type carried by the generated type, or
	// nil when there is none. A resolved target for this method must
	// accept the delegate value right after the proxy instance.
	DelegateType reflect.Type
}

// HasDelegate reports whether the generated type carries a delegate field
func (m MethodInfo) HasDelegate() bool {
	return m.DelegateType != nil
}

// String returns a readable rendering of the method description
func (m MethodInfo) String() string {
	return fmt.Sprintf("%s.%s", m.Contract, m.Signature.String())
}

// OverridePolicy decides, once at generation time, whether a universal
// operation or a default-bodied method is synthesized on the generated type.
// The decision is never re-evaluated per call.
type OverridePolicy func(method MethodInfo) bool

// OverrideNone never overrides universal operations or default methods
func OverrideNone(MethodInfo) bool { return false }

// OverrideAll overrides every universal operation and default method
func OverrideAll(MethodInfo) bool { return true }

// Resolver supplies the implementation for one method of a generated type.
// Resolve is called at most once per method, on the method's first
// invocation; the returned target is cached permanently on success.
//
// A target must be a func value with the calling convention
//
//	func(p *shim.Instance, [delegate D,] params...) (returns...)
//
// where the delegate parameter is present exactly when the generated type
// carries a delegate. A resolver that returns a nil target, a target of the
// wrong shape, or an error causes the triggering call to fail with a
// LinkageError; the call site stays unbound and a later call may retry.
type Resolver interface {
	Resolve(method MethodInfo) (any, error)
}

// ResolverFunc adapts a plain function to the Resolver interface
type ResolverFunc func(method MethodInfo) (any, error)

// Resolve implements Resolver
func (f ResolverFunc) Resolve(method MethodInfo) (any, error) {
	return f(method)
}

// DefaultMethodPolicy is an optional companion interface a Resolver may
// implement. When present it is consulted instead of the OverridePolicy for
// default-bodied methods, once per method before any binding happens.
type DefaultMethodPolicy interface {
	OverrideDefault(method MethodInfo) bool
}

// options collects the settings accepted by DefineProxy
type options struct {
	scope        string
	hostLifetime bool
	backend      Backend
	applied      map[string]bool
}

// Option configures DefineProxy
type Option func(*options) error

// mark records that an option was applied and rejects duplicates
func (o *options) mark(name string) error {
	if o.applied[name] {
		return NewArgumentError("option %s specified more than once", name)
	}
	o.applied[name] = true
	return nil
}

// WithScope sets the naming scope used for the generated type's name. The
// default scope is "shim".
func WithScope(scope string) Option {
	return func(o *options) error {
		if err := o.mark("WithScope"); err != nil {
			return err
		}
		if scope == "" {
			return NewArgumentError("scope cannot be empty")
		}
		o.scope = scope
		return nil
	}
}

// WithHostLifetime pins the generated type in the registry for the life of
// the process. Without it the registry holds only a weak reference and the
// type becomes collectable once no constructor or instance is reachable.
func WithHostLifetime() Option {
	return func(o *options) error {
		if err := o.mark("WithHostLifetime"); err != nil {
			return err
		}
		o.hostLifetime = true
		return nil
	}
}

// WithBackend substitutes the type-synthesis backend used to emit the
// generated type. The default is the dispatch-table backend.
func WithBackend(b Backend) Option {
	return func(o *options) error {
		if err := o.mark("WithBackend"); err != nil {
			return err
		}
		if b == nil {
			return NewArgumentError("backend cannot be nil")
		}
		o.backend = b
		return nil
	}
}
