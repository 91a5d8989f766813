// Package registry interns the runtime objects a compiled check needs
// (type references, the random index source, forward-reference slots)
// under short stable identifiers, and owns the scope that maps those
// identifiers back to the objects at check time.
package registry

import (
	"fmt"
	"sync"
)

// Reserved symbol names. Everything the compiler injects is prefixed
// so interned identifiers can never collide with it.
const (
	SymRand      = "__tg_rand"
	SymViolation = "__tg_violation"
	SymResolve   = "__tg_resolve"

	refSymPrefix    = "__tg_ref_"
	internSymPrefix = "t"
)

// RefSym returns the scope symbol holding the resolved target of the
// named forward reference.
func RefSym(name string) string {
	return refSymPrefix + name
}

// Scope maps symbol identifiers to the runtime objects a compiled
// predicate references. A scope outlives the compilation that built
// it: the memoization cache and every checker built from the compiled
// expression share it, so lookups are safe under concurrent checks.
type Scope struct {
	mu   sync.RWMutex
	vars map[string]any
}

func NewScope() *Scope {
	return &Scope{vars: make(map[string]any)}
}

func (s *Scope) Bind(name string, obj any) {
	s.mu.Lock()
	s.vars[name] = obj
	s.mu.Unlock()
}

func (s *Scope) Lookup(name string) (any, bool) {
	s.mu.RLock()
	obj, ok := s.vars[name]
	s.mu.RUnlock()
	return obj, ok
}

func (s *Scope) Has(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

func (s *Scope) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vars)
}

// Clone returns an independent copy sharing the bound objects. A
// checker derives its own scope from a cached compilation so that
// binding its violation callback or resolved references never leaks
// into other consumers of the same cache entry.
func (s *Scope) Clone() *Scope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vars := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		vars[k] = v
	}
	return &Scope{vars: vars}
}

// Registry accumulates scope entries for the duration of one
// top-level compilation. Interning is deduplicated by object
// identity: the same object interned twice yields the same identifier
// and a single scope entry.
type Registry struct {
	scope *Scope
	ids   map[any]string
	next  int
}

func New() *Registry {
	return &Registry{
		scope: NewScope(),
		ids:   make(map[any]string),
	}
}

// Intern returns the stable identifier for obj, binding it into the
// scope on first sight. The object must be a comparable value.
func (r *Registry) Intern(obj any) string {
	if id, ok := r.ids[obj]; ok {
		return id
	}
	id := fmt.Sprintf("%s%d", internSymPrefix, r.next)
	r.next++
	r.ids[obj] = id
	r.scope.Bind(id, obj)
	return id
}

// Bind associates a reserved symbol with an object without interning.
// Used for non-comparable objects such as the random index source.
func (r *Registry) Bind(name string, obj any) {
	r.scope.Bind(name, obj)
}

// Scope returns the scope accumulated so far. The compiler hands it
// off as part of the compiled expression once the walk completes.
func (r *Registry) Scope() *Scope {
	return r.scope
}
