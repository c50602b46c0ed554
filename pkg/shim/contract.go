package shim

import (
	"reflect"

	"github.com/toyz/shim/internal/sigparse"
)

// Contract is the set of method signatures a generated type must implement.
// Contracts come from Go interface types (ContractOf), from the textual
// signature DSL (ParseContract) or from the programmatic builder
// (NewContract), which is also the only way to attach default bodies.
type Contract struct {
	name    string
	methods []contractMethod
}

// contractMethod is one declared method; defaultBody is the zero Value for
// abstract methods
type contractMethod struct {
	sig         MethodSignature
	defaultBody reflect.Value
}

// Name returns the contract's name
func (c *Contract) Name() string {
	return c.name
}

// Methods returns the contract's method signatures in declaration order
func (c *Contract) Methods() []MethodSignature {
	sigs := make([]MethodSignature, len(c.methods))
	for i, m := range c.methods {
		sigs[i] = m.sig
	}
	return sigs
}

// hasDefault reports whether the method at index i carries a default body
func (c *Contract) hasDefault(i int) bool {
	return c.methods[i].defaultBody.IsValid()
}

var instanceType = reflect.TypeOf((*Instance)(nil))

// ContractOf builds a contract from a Go interface type. The type must have
// kind reflect.Interface, and every method must be exported: an unexported
// method makes the contract unimplementable from outside its package, which
// surfaces as an AccessError.
func ContractOf(iface reflect.Type) (*Contract, error) {
	if iface == nil {
		return nil, NewArgumentError("interface type cannot be nil")
	}
	if iface.Kind() != reflect.Interface {
		return nil, NewArgumentError("%s is not an interface type", iface)
	}

	c := &Contract{name: iface.String()}
	for i := 0; i < iface.NumMethod(); i++ {
		m := iface.Method(i)
		if m.PkgPath != "" {
			return nil, NewAccessError("interface %s has unexported method %s", iface, m.Name)
		}
		ft := m.Type
		sig := MethodSignature{
			Name:     m.Name,
			Params:   make([]reflect.Type, ft.NumIn()),
			Returns:  make([]reflect.Type, ft.NumOut()),
			Variadic: ft.IsVariadic(),
		}
		for j := 0; j < ft.NumIn(); j++ {
			sig.Params[j] = ft.In(j)
		}
		for j := 0; j < ft.NumOut(); j++ {
			sig.Returns[j] = ft.Out(j)
		}
		c.methods = append(c.methods, contractMethod{sig: sig})
	}
	return c, nil
}

// ParseContract builds a contract from textual method signatures, e.g.
//
//	shim.ParseContract("Calculator", "applyAsInt(int, int) int")
//
// Type names resolve through the process-wide type table; unknown names are
// an ArgumentError. All parsed methods are abstract.
func ParseContract(name string, signatures ...string) (*Contract, error) {
	if name == "" {
		return nil, NewArgumentError("contract name cannot be empty")
	}
	if len(signatures) == 0 {
		return nil, NewArgumentError("contract %s declares no methods", name)
	}

	table := defaultTable()
	c := &Contract{name: name}
	seen := make(map[string]bool)
	for _, raw := range signatures {
		parsed, err := sigparse.Parse(raw)
		if err != nil {
			return nil, NewArgumentError("contract %s: %v", name, err)
		}
		sig, err := lowerSignature(table, parsed)
		if err != nil {
			return nil, err
		}
		key := sig.Key()
		if seen[key] {
			return nil, NewArgumentError("contract %s declares %s twice", name, sig.String())
		}
		seen[key] = true
		c.methods = append(c.methods, contractMethod{sig: sig})
	}
	return c, nil
}

// lowerSignature resolves a parsed signature's type names onto concrete types
func lowerSignature(table *typeTable, parsed *sigparse.Signature) (MethodSignature, error) {
	sig := MethodSignature{Name: parsed.Name}
	for _, p := range parsed.Params {
		typ, err := table.resolveRef(p.Type)
		if err != nil {
			return MethodSignature{}, err
		}
		if p.Variadic {
			sig.Variadic = true
			typ = reflect.SliceOf(typ)
		}
		sig.Params = append(sig.Params, typ)
	}
	for _, r := range parsed.Returns {
		typ, err := table.resolveRef(r)
		if err != nil {
			return MethodSignature{}, err
		}
		sig.Returns = append(sig.Returns, typ)
	}
	return sig, nil
}

// ContractBuilder assembles a contract programmatically. Errors are
// collected and reported by Build.
type ContractBuilder struct {
	contract *Contract
	seen     map[string]bool
	err      error
}

// NewContract creates a builder for a contract with the given name
func NewContract(name string) *ContractBuilder {
	b := &ContractBuilder{
		contract: &Contract{name: name},
		seen:     make(map[string]bool),
	}
	if name == "" {
		b.err = NewArgumentError("contract name cannot be empty")
	}
	return b
}

// Method declares an abstract method. The template carries only the
// signature; pass a typed nil func, e.g.
//
//	NewContract("Calculator").Method("ApplyAsInt", (func(int, int) int)(nil))
func (b *ContractBuilder) Method(name string, template any) *ContractBuilder {
	if b.err != nil {
		return b
	}
	sig, err := signatureOf(name, template, false)
	if err != nil {
		b.err = err
		return b
	}
	b.add(contractMethod{sig: sig})
	return b
}

// Default declares a default-bodied method. The body is a func whose first
// parameter is the proxy instance:
//
//	NewContract("Greeter").Default("Greet", func(p *shim.Instance, name string) string { ... })
//
// Whether the generated type overrides the default is decided once at
// generation time by the override policy (or the resolver's
// DefaultMethodPolicy); an un-overridden default is invoked directly and
// never goes through the resolver.
func (b *ContractBuilder) Default(name string, body any) *ContractBuilder {
	if b.err != nil {
		return b
	}
	sig, err := signatureOf(name, body, true)
	if err != nil {
		b.err = err
		return b
	}
	bv := reflect.ValueOf(body)
	if bv.IsNil() {
		b.err = NewArgumentError("default body for %s cannot be nil", name)
		return b
	}
	b.add(contractMethod{sig: sig, defaultBody: bv})
	return b
}

// add appends a method, enforcing signature uniqueness within the contract
func (b *ContractBuilder) add(m contractMethod) {
	key := m.sig.Key()
	if b.seen[key] {
		b.err = NewArgumentError("contract %s declares %s twice", b.contract.name, m.sig.String())
		return
	}
	b.seen[key] = true
	b.contract.methods = append(b.contract.methods, m)
}

// Build returns the assembled contract or the first error encountered
func (b *ContractBuilder) Build() (*Contract, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.contract.methods) == 0 {
		return nil, NewArgumentError("contract %s declares no methods", b.contract.name)
	}
	return b.contract, nil
}

// signatureOf derives a method signature from a func value or typed nil
// func. When receiver is true the func's first parameter must be *Instance
// and is excluded from the signature.
func signatureOf(name string, fn any, receiver bool) (MethodSignature, error) {
	if name == "" {
		return MethodSignature{}, NewArgumentError("method name cannot be empty")
	}
	if fn == nil {
		return MethodSignature{}, NewArgumentError("method %s needs a func template, got untyped nil", name)
	}
	ft := reflect.TypeOf(fn)
	if ft.Kind() != reflect.Func {
		return MethodSignature{}, NewArgumentError("method %s needs a func template, got %s", name, ft)
	}

	start := 0
	if receiver {
		if ft.NumIn() == 0 || ft.In(0) != instanceType {
			return MethodSignature{}, NewArgumentError(
				"default body for %s must take *shim.Instance as its first parameter", name)
		}
		start = 1
	}

	sig := MethodSignature{Name: name, Variadic: ft.IsVariadic()}
	for i := start; i < ft.NumIn(); i++ {
		sig.Params = append(sig.Params, ft.In(i))
	}
	for i := 0; i < ft.NumOut(); i++ {
		sig.Returns = append(sig.Returns, ft.Out(i))
	}
	return sig, nil
}
