package shim

import (
	"fmt"
	"reflect"
)

// Constructor creates instances of a generated type. It takes no arguments
// when the type carries no delegate, and exactly one argument assignable to
// the delegate type otherwise. Arity or type violations are ArgumentErrors.
type Constructor func(args ...any) (*Instance, error)

// DefineProxy synthesizes a generated type implementing the given contracts
// and returns its constructor.
//
// The override policy decides, once per method at generation time, whether
// universal operations and default-bodied methods are synthesized; abstract
// methods always are. Each synthesized method gets a call site that defers
// to the resolver on its first invocation and caches the returned target
// permanently. The (type, resolver) association is published in the
// process-wide registry before the constructor is returned, so the resolver
// is visible to any goroutine that later constructs or invokes the type.
//
// delegateType may be nil; when set, every constructed instance stores one
// delegate value and forwards it to every resolved target.
//
// Generation either fully succeeds or fully fails: on error no type is
// registered and nothing is left reachable.
func DefineProxy(contracts []*Contract, policy OverridePolicy, delegateType reflect.Type, resolver Resolver, opts ...Option) (Constructor, error) {
	if resolver == nil {
		return nil, NewArgumentError("resolver cannot be nil")
	}

	o := &options{
		scope:   "shim",
		backend: TableBackend{},
		applied: make(map[string]bool),
	}
	for _, opt := range opts {
		if opt == nil {
			return nil, NewArgumentError("option cannot be nil")
		}
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	defaults, _ := resolver.(DefaultMethodPolicy)
	desc, err := analyze(contracts, policy, defaults, delegateType)
	if err != nil {
		return nil, err
	}

	t, err := o.backend.Emit(desc, o.scope)
	if err != nil {
		return nil, err
	}

	// Publish before the constructor escapes: no instance-producing path
	// is reachable until the resolver is visible in the registry.
	globalRegistry().publish(t, resolver, o.hostLifetime)

	return t.constructor(), nil
}

// constructor builds the constructor closure for a generated type
func (t *GeneratedType) constructor() Constructor {
	delegateType := t.desc.delegateType
	return func(args ...any) (*Instance, error) {
		if delegateType == nil {
			if len(args) != 0 {
				return nil, NewArgumentError("type %s takes no constructor arguments, got %d",
					t.name, len(args))
			}
			return &Instance{typ: t}, nil
		}

		if len(args) != 1 {
			return nil, NewArgumentError("type %s takes exactly one delegate argument, got %d",
				t.name, len(args))
		}
		dv, err := coerceValue(args[0], delegateType)
		if err != nil {
			return nil, NewArgumentError("delegate value: %v", err)
		}
		return &Instance{typ: t, delegate: dv}, nil
	}
}

// Instance is a proxy instance of a generated type. The delegate value, when
// present, is set by the constructor and immutable for the instance's
// lifetime.
type Instance struct {
	typ      *GeneratedType
	delegate reflect.Value
}

// Type returns the instance's generated type
func (p *Instance) Type() *GeneratedType {
	return p.typ
}

// Delegate returns the instance's delegate value, if the type carries one
func (p *Instance) Delegate() (any, bool) {
	if !p.delegate.IsValid() {
		return nil, false
	}
	return p.delegate.Interface(), true
}

// Invoke calls a contract method by name. Arguments for a variadic method
// are passed individually. Linkage failures and argument mismatches are
// returned as errors.
func (p *Instance) Invoke(name string, args ...any) ([]any, error) {
	tm, err := p.typ.lookupMethod(name, args)
	if err != nil {
		return nil, err
	}
	in, err := coerceArgs(tm.info.Signature, args)
	if err != nil {
		return nil, err
	}
	out, err := p.dispatch(tm, in, false)
	if err != nil {
		return nil, err
	}
	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, nil
}

// Call is Invoke for methods with a single result; it returns that result
func (p *Instance) Call(name string, args ...any) (any, error) {
	results, err := p.Invoke(name, args...)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// Bind fills a caller-supplied struct of func fields with typed trampolines,
// matched to contract methods by field name. Field signatures must equal the
// method signatures exactly. Because the trampolines carry no error slot,
// a linkage failure panics with the *Error.
//
//	var calc struct {
//		ApplyAsInt func(int, int) int
//	}
//	if err := inst.Bind(&calc); err != nil { ... }
//	sum := calc.ApplyAsInt(2, 3)
func (p *Instance) Bind(ptr any) error {
	if ptr == nil {
		return NewArgumentError("bind target cannot be nil")
	}
	pv := reflect.ValueOf(ptr)
	if pv.Kind() != reflect.Pointer || pv.IsNil() || pv.Elem().Kind() != reflect.Struct {
		return NewArgumentError("bind target must be a non-nil pointer to struct, got %T", ptr)
	}

	sv := pv.Elem()
	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		if field.Type.Kind() != reflect.Func {
			continue
		}
		if !field.IsExported() {
			return NewArgumentError("bind target field %s is unexported", field.Name)
		}

		tm, err := p.typ.methodForField(field)
		if err != nil {
			return err
		}
		sv.Field(i).Set(p.makeTrampoline(field.Type, tm))
	}
	return nil
}

// methodForField selects the contract method a func field binds to
func (t *GeneratedType) methodForField(field reflect.StructField) (*typeMethod, error) {
	for _, tm := range t.byName[field.Name] {
		if fieldTypeOf(tm.info.Signature) == field.Type {
			return tm, nil
		}
	}
	if len(t.byName[field.Name]) > 0 {
		return nil, NewArgumentError("field %s %s does not match any overload of %s",
			field.Name, field.Type, field.Name)
	}
	return nil, NewArgumentError("type %s has no method %s", t.name, field.Name)
}

// fieldTypeOf returns the func type a Bind field must have for a signature
func fieldTypeOf(sig MethodSignature) reflect.Type {
	return reflect.FuncOf(sig.Params, sig.Returns, sig.Variadic)
}

// makeTrampoline builds the typed forwarding func for one method
func (p *Instance) makeTrampoline(ft reflect.Type, tm *typeMethod) reflect.Value {
	return reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
		out, err := p.dispatch(tm, in, ft.IsVariadic())
		if err != nil {
			panic(err)
		}
		return out
	})
}

// dispatch performs the deferred call for one method: through the bound
// call site when the method is synthesized, or straight into the retained
// default body. packedVariadic marks that the final element of in is the
// packed variadic slice (as MakeFunc delivers it).
func (p *Instance) dispatch(tm *typeMethod, in []reflect.Value, packedVariadic bool) ([]reflect.Value, error) {
	if tm.site != nil {
		resolver, ok := globalRegistry().resolverFor(p.typ)
		if !ok {
			return nil, NewLinkageError("type %s has no registered resolver", p.typ.name).
				WithMethod(tm.info.String())
		}
		target, err := tm.site.bind(resolver)
		if err != nil {
			return nil, err
		}

		callIn := make([]reflect.Value, 0, len(in)+2)
		callIn = append(callIn, reflect.ValueOf(p))
		if p.delegate.IsValid() {
			callIn = append(callIn, p.delegate)
		}
		callIn = append(callIn, in...)
		return callValues(target.fn, callIn, packedVariadic), nil
	}

	// Default body kept by the override decision: invoked directly, no
	// call site, no resolver.
	callIn := make([]reflect.Value, 0, len(in)+1)
	callIn = append(callIn, reflect.ValueOf(p))
	callIn = append(callIn, in...)
	return callValues(tm.defaultBody, callIn, packedVariadic), nil
}

// callValues invokes fn, using CallSlice when the variadic tail is packed
func callValues(fn reflect.Value, in []reflect.Value, packedVariadic bool) []reflect.Value {
	if packedVariadic && fn.Type().IsVariadic() {
		return fn.CallSlice(in)
	}
	return fn.Call(in)
}

// coerceArgs converts an argument list to exactly the signature's parameter
// types. Variadic arguments arrive individually.
func coerceArgs(sig MethodSignature, args []any) ([]reflect.Value, error) {
	fixed := len(sig.Params)
	if sig.Variadic {
		fixed--
		if len(args) < fixed {
			return nil, NewArgumentError("%s wants at least %d arguments, got %d",
				sig.String(), fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, NewArgumentError("%s wants %d arguments, got %d",
			sig.String(), fixed, len(args))
	}

	in := make([]reflect.Value, 0, len(args))
	for i := 0; i < fixed; i++ {
		v, err := coerceValue(args[i], sig.Params[i])
		if err != nil {
			return nil, NewArgumentError("argument %d of %s: %v", i, sig.String(), err)
		}
		in = append(in, v)
	}
	if sig.Variadic {
		elem := sig.Params[len(sig.Params)-1].Elem()
		for i := fixed; i < len(args); i++ {
			v, err := coerceValue(args[i], elem)
			if err != nil {
				return nil, NewArgumentError("argument %d of %s: %v", i, sig.String(), err)
			}
			in = append(in, v)
		}
	}
	return in, nil
}

// coerceValue produces a value of exactly type want from an any
func coerceValue(arg any, want reflect.Type) (reflect.Value, error) {
	if arg == nil {
		if !nilable(want) {
			return reflect.Value{}, fmt.Errorf("nil is not a valid %s", want)
		}
		return reflect.Zero(want), nil
	}
	v := reflect.ValueOf(arg)
	if !v.Type().AssignableTo(want) {
		return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), want)
	}
	if v.Type() != want {
		exact := reflect.New(want).Elem()
		exact.Set(v)
		v = exact
	}
	return v, nil
}

// Universal operations. When the override policy selected one it resolves
// through its call site like any other method; otherwise it keeps identity
// semantics. Overridden operations panic with the *Error on linkage failure
// since their signatures carry no error slot.

// Equals reports whether the instance equals other. Identity semantics:
// reference equality.
func (p *Instance) Equals(other any) bool {
	if tm := p.typ.universalOverride("Equals"); tm != nil {
		in, err := coerceArgs(tm.info.Signature, []any{other})
		if err != nil {
			panic(err)
		}
		out, err := p.dispatch(tm, in, false)
		if err != nil {
			panic(err)
		}
		return out[0].Bool()
	}
	o, ok := other.(*Instance)
	return ok && o == p
}

// HashCode returns the instance's hash. Identity semantics: a hash derived
// from the instance's address, stable for the instance's lifetime.
func (p *Instance) HashCode() int {
	if tm := p.typ.universalOverride("HashCode"); tm != nil {
		out, err := p.dispatch(tm, nil, false)
		if err != nil {
			panic(err)
		}
		return int(out[0].Int())
	}
	return int(reflect.ValueOf(p).Pointer())
}

// String returns the instance's textual representation. Identity semantics:
// the generated type name and the instance's address.
func (p *Instance) String() string {
	if tm := p.typ.universalOverride("String"); tm != nil {
		out, err := p.dispatch(tm, nil, false)
		if err != nil {
			panic(err)
		}
		return out[0].String()
	}
	return fmt.Sprintf("%s@%#x", p.typ.name, reflect.ValueOf(p).Pointer())
}
