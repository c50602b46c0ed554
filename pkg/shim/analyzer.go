package shim

import "reflect"

// The contract analyzer turns one or more contracts into the deduplicated,
// ordered method set of a generated type. Universal operations are
// considered first so that a policy-selected universal operation claims the
// slot before an identically-signed contract method; within and across
// contracts the first-seen signature wins. Every override decision is made
// here, exactly once, and is fixed for the generated type's lifetime.

// universalContract is the Contract name reported for injected universal
// operations
const universalContract = "universal"

var (
	anyType    = reflect.TypeOf((*any)(nil)).Elem()
	boolType   = reflect.TypeOf(false)
	intType    = reflect.TypeOf(int(0))
	stringType = reflect.TypeOf("")
)

// universalSignatures are the universal operations present on every contract
// by default: equality, hashing and textual representation
var universalSignatures = []MethodSignature{
	{Name: "Equals", Params: []reflect.Type{anyType}, Returns: []reflect.Type{boolType}},
	{Name: "HashCode", Returns: []reflect.Type{intType}},
	{Name: "String", Returns: []reflect.Type{stringType}},
}

// analyzedMethod is one entry of the analyzed method set
type analyzedMethod struct {
	info MethodInfo

	// synthesize is true when the method gets a call site and resolves
	// through the resolver; false when it keeps its default body
	synthesize bool

	// defaultBody holds the retained default body when synthesize is false
	defaultBody reflect.Value
}

// Descriptor is the analyzed, deduplicated method set of a generated type
type Descriptor struct {
	contracts    []string
	methods      []analyzedMethod
	delegateType reflect.Type
}

// Contracts returns the names of the source contracts in input order
func (d *Descriptor) Contracts() []string {
	return append([]string(nil), d.contracts...)
}

// Methods returns the descriptions of the analyzed methods
func (d *Descriptor) Methods() []MethodInfo {
	infos := make([]MethodInfo, len(d.methods))
	for i, m := range d.methods {
		infos[i] = m.info
	}
	return infos
}

// DelegateType returns the delegate type, or nil when there is none
func (d *Descriptor) DelegateType() reflect.Type {
	return d.delegateType
}

// analyze applies the override policy and deduplication rules to produce a
// Descriptor. The defaults policy, when non-nil, takes precedence over the
// override policy for default-bodied methods.
func analyze(contracts []*Contract, policy OverridePolicy, defaults DefaultMethodPolicy, delegateType reflect.Type) (*Descriptor, error) {
	if len(contracts) == 0 {
		return nil, NewArgumentError("at least one contract is required")
	}
	if policy == nil {
		policy = OverrideNone
	}

	d := &Descriptor{delegateType: delegateType}
	seen := make(map[string]bool)
	nextOrdinal := 0

	appendMethod := func(m analyzedMethod) {
		if m.synthesize {
			m.info.Ordinal = nextOrdinal
			nextOrdinal++
		} else {
			m.info.Ordinal = -1
		}
		seen[m.info.Signature.Key()] = true
		d.methods = append(d.methods, m)
	}

	// Universal operations come first; they are included only when the
	// policy asks for them, and an included one claims its signature slot
	// ahead of any identically-signed contract method.
	for _, sig := range universalSignatures {
		info := MethodInfo{
			Contract:     universalContract,
			Signature:    sig,
			Kind:         UniversalMethod,
			DelegateType: delegateType,
		}
		if policy(info) {
			appendMethod(analyzedMethod{info: info, synthesize: true})
		}
	}

	for _, c := range contracts {
		if c == nil {
			return nil, NewArgumentError("contract cannot be nil")
		}
		d.contracts = append(d.contracts, c.name)

		for i, cm := range c.methods {
			if seen[cm.sig.Key()] {
				continue // first-seen wins
			}

			info := MethodInfo{
				Contract:     c.name,
				Signature:    cm.sig,
				Kind:         AbstractMethod,
				DelegateType: delegateType,
			}
			if !c.hasDefault(i) {
				appendMethod(analyzedMethod{info: info, synthesize: true})
				continue
			}

			info.Kind = DefaultMethod
			override := false
			if defaults != nil {
				override = defaults.OverrideDefault(info)
			} else {
				override = policy(info)
			}
			if override {
				appendMethod(analyzedMethod{info: info, synthesize: true})
			} else {
				appendMethod(analyzedMethod{info: info, synthesize: false, defaultBody: cm.defaultBody})
			}
		}
	}

	if delegateType != nil && nextOrdinal == 0 {
		return nil, NewArgumentError(
			"delegate type %s requested but no method resolves through the resolver", delegateType).
			WithHint("include at least one abstract or overridden method, or drop the delegate")
	}

	return d, nil
}
