package shim

import (
	"sync"
	"weak"

	"github.com/google/uuid"
)

// The proxy registry is process-wide, append-only state associating each
// generated type with its resolver. An entry is published synchronously
// during generation, before DefineProxy hands the constructor back, so no
// caller can observe a generated type that is not yet registered; the
// registry lock doubles as the release/acquire barrier that makes the
// resolver visible to whichever goroutine later triggers linkage.
//
// Entries are never updated or explicitly removed. By default an entry
// holds only a weak reference to its type, so the type (and the entry,
// swept opportunistically) is reclaimed once no constructor or instance is
// reachable; WithHostLifetime pins a strong reference for the life of the
// process.

// registryEntry associates a generated type with its resolver. Exactly one
// of strong/wk carries the type reference.
type registryEntry struct {
	strong   *GeneratedType
	wk       weak.Pointer[GeneratedType]
	resolver Resolver
}

// typeRef returns the entry's type, or nil when it has been reclaimed
func (e *registryEntry) typeRef() *GeneratedType {
	if e.strong != nil {
		return e.strong
	}
	return e.wk.Value()
}

// proxyRegistry is the process-wide registry implementation
type proxyRegistry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*registryEntry
}

var (
	defaultRegistry     *proxyRegistry
	defaultRegistryOnce sync.Once
)

// globalRegistry returns the process-wide proxy registry
func globalRegistry() *proxyRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = &proxyRegistry{
			entries: make(map[uuid.UUID]*registryEntry),
		}
	})
	return defaultRegistry
}

// publish inserts the (type, resolver) association. Called exactly once per
// generated type, before its constructor escapes to the caller.
func (r *proxyRegistry) publish(t *GeneratedType, resolver Resolver, pin bool) {
	entry := &registryEntry{resolver: resolver}
	if pin {
		entry.strong = t
	} else {
		entry.wk = weak.Make(t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	r.entries[t.id] = entry
}

// sweepLocked drops entries whose weakly-held types have been reclaimed
func (r *proxyRegistry) sweepLocked() {
	for id, e := range r.entries {
		if e.strong == nil && e.wk.Value() == nil {
			delete(r.entries, id)
		}
	}
}

// lookup returns the live entry for a generated type
func (r *proxyRegistry) lookup(t *GeneratedType) (*registryEntry, bool) {
	if t == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[t.id]
	if !ok || e.typeRef() != t {
		return nil, false
	}
	return e, true
}

// resolverFor returns the resolver registered for a generated type
func (r *proxyRegistry) resolverFor(t *GeneratedType) (Resolver, bool) {
	e, ok := r.lookup(t)
	if !ok {
		return nil, false
	}
	return e.resolver, true
}

// size returns the number of live entries
func (r *proxyRegistry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.typeRef() != nil {
			n++
		}
	}
	return n
}

// IsGeneratedType reports whether t was produced by DefineProxy. It is a
// pure lookup with no side effects.
func IsGeneratedType(t *GeneratedType) bool {
	_, ok := globalRegistry().lookup(t)
	return ok
}

// LookupResolver returns the resolver associated with a generated type, if
// the type belongs to this mechanism. It is a pure lookup with no side
// effects.
func LookupResolver(t *GeneratedType) (Resolver, bool) {
	return globalRegistry().resolverFor(t)
}

// TypeOf returns the generated type behind a value when the value is a
// proxy instance created by this mechanism
func TypeOf(v any) (*GeneratedType, bool) {
	p, ok := v.(*Instance)
	if !ok || p == nil {
		return nil, false
	}
	if !IsGeneratedType(p.typ) {
		return nil, false
	}
	return p.typ, true
}
