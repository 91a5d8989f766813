package daemon

import (
	"fmt"
	"sync"

	"github.com/alucardeht/typegate/internal/cache"
	"github.com/alucardeht/typegate/internal/check"
	"github.com/alucardeht/typegate/internal/config"
	"github.com/alucardeht/typegate/internal/spec"
	"github.com/alucardeht/typegate/internal/store"
)

// storeResolver resolves forward references against the named
// specifications in the store. Each resolution parses and compiles
// the referenced specification once; a reference chain that loops
// back on itself is an error, not a hang.
type storeResolver struct {
	store  *store.Store
	engine *check.Engine

	mu      sync.Mutex
	refs    map[string]spec.TypeRef
	loading map[string]bool
}

func newStoreResolver(s *store.Store, cfg config.CheckConfig, c *cache.Cache) *storeResolver {
	r := &storeResolver{
		store:   s,
		refs:    make(map[string]spec.TypeRef),
		loading: make(map[string]bool),
	}
	r.engine = check.NewEngine(cfg, c, check.Options{Resolver: r.Resolve})
	return r
}

func (r *storeResolver) Resolve(name, scope string) (spec.TypeRef, error) {
	r.mu.Lock()
	if ref, ok := r.refs[name]; ok {
		r.mu.Unlock()
		return ref, nil
	}
	if r.loading[name] {
		r.mu.Unlock()
		return nil, fmt.Errorf("specification %q references itself", name)
	}
	r.loading[name] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.loading, name)
		r.mu.Unlock()
	}()

	stored, err := r.store.GetSpec(name)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("no specification named %q", name)
	}

	tree, err := spec.Parse(stored.Source)
	if err != nil {
		return nil, fmt.Errorf("stored specification %q: %w", name, err)
	}

	checker, err := r.engine.CheckerFor(tree, name)
	if err != nil {
		return nil, fmt.Errorf("compile specification %q: %w", name, err)
	}

	ref := &namedRef{name: name, checker: checker}

	r.mu.Lock()
	r.refs[name] = ref
	r.mu.Unlock()

	return ref, nil
}

// Invalidate drops the cached resolution for a name after the stored
// specification changes.
func (r *storeResolver) Invalidate(name string) {
	r.mu.Lock()
	delete(r.refs, name)
	r.mu.Unlock()
}

// namedRef adapts a compiled named specification to the type
// reference interface, so ref[Order] in one specification checks
// values against the stored Order specification.
type namedRef struct {
	name    string
	checker *check.Checker
}

func (n *namedRef) Name() string { return n.name }

func (n *namedRef) Matches(v any) bool {
	ok, err := n.checker.Check(v)
	return err == nil && ok
}
