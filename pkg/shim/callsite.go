package shim

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// boundTarget is a validated, permanently cached resolution result
type boundTarget struct {
	fn reflect.Value
}

// CallSite is the per-method binding slot of a generated type. It starts
// unbound; the first invocation of the method, from any instance and any
// goroutine, runs the resolver under the site's lock and publishes the
// validated target atomically. Losing goroutines block on the lock and then
// observe the published target. A failed resolution leaves the site unbound
// so a later call may retry; a successful binding is never revisited.
type CallSite struct {
	info   MethodInfo
	mu     sync.Mutex
	target atomic.Pointer[boundTarget]
}

// newCallSite creates an unbound call site for the given method
func newCallSite(info MethodInfo) *CallSite {
	return &CallSite{info: info}
}

// Info returns the description of the method this site binds
func (s *CallSite) Info() MethodInfo {
	return s.info
}

// Bound reports whether the site has been bound to a target
func (s *CallSite) Bound() bool {
	return s.target.Load() != nil
}

// bind returns the bound target, resolving it on first use. The resolver is
// invoked at most once for a successful binding.
func (s *CallSite) bind(resolver Resolver) (*boundTarget, error) {
	if t := s.target.Load(); t != nil {
		return t, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.target.Load(); t != nil {
		return t, nil
	}

	raw, err := resolver.Resolve(s.info)
	if err != nil {
		return nil, NewLinkageError("resolver failed").
			WithMethod(s.info.String()).WithCause(err)
	}

	t, err := validateTarget(raw, s.info)
	if err != nil {
		return nil, err
	}

	s.target.Store(t)
	return t, nil
}

// validateTarget checks a resolved target against the calling convention
// (*Instance, [delegate], params...) -> returns
func validateTarget(raw any, info MethodInfo) (*boundTarget, error) {
	if raw == nil {
		return nil, NewLinkageError("resolver returned no target").WithMethod(info.String())
	}
	fn := reflect.ValueOf(raw)
	if fn.Kind() != reflect.Func {
		return nil, NewLinkageError("target is %s, not a func", fn.Type()).WithMethod(info.String())
	}
	if fn.IsNil() {
		return nil, NewLinkageError("resolver returned no target").WithMethod(info.String())
	}

	ft := fn.Type()
	sig := info.Signature
	lead := 1
	if info.HasDelegate() {
		lead = 2
	}

	if ft.NumIn() != lead+len(sig.Params) {
		return nil, NewLinkageError("target %s has wrong number of parameters: want %d, got %d",
			ft, lead+len(sig.Params), ft.NumIn()).WithMethod(info.String())
	}
	if sig.Variadic != ft.IsVariadic() {
		return nil, NewLinkageError("target %s variadic mismatch", ft).WithMethod(info.String())
	}
	if !instanceType.AssignableTo(ft.In(0)) {
		return nil, NewLinkageError("target %s must take *shim.Instance first, got %s",
			ft, ft.In(0)).WithMethod(info.String())
	}
	if info.HasDelegate() && !info.DelegateType.AssignableTo(ft.In(1)) {
		return nil, NewLinkageError("target %s must take the delegate %s second, got %s",
			ft, info.DelegateType, ft.In(1)).WithMethod(info.String())
	}
	for i, p := range sig.Params {
		if !p.AssignableTo(ft.In(lead + i)) {
			return nil, NewLinkageError("target %s parameter %d wants %s, method passes %s",
				ft, lead+i, ft.In(lead+i), p).WithMethod(info.String())
		}
	}

	if ft.NumOut() != len(sig.Returns) {
		return nil, NewLinkageError("target %s has wrong number of returns: want %d, got %d",
			ft, len(sig.Returns), ft.NumOut()).WithMethod(info.String())
	}
	for i, r := range sig.Returns {
		if !ft.Out(i).AssignableTo(r) {
			return nil, NewLinkageError("target %s return %d is %s, method returns %s",
				ft, i, ft.Out(i), r).WithMethod(info.String())
		}
	}

	return &boundTarget{fn: fn}, nil
}
