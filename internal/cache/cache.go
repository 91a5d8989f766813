// Package cache memoizes compilations. A cache is an explicitly owned
// store: engines construct their own, so tests never share entries.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/alucardeht/typegate/internal/compile"
	"github.com/alucardeht/typegate/internal/config"
	"github.com/alucardeht/typegate/internal/spec"
)

// Cache maps a (specification, configuration) pair to its compiled
// expression. Keys are structural: independently built but identical
// trees share an entry. Compilation runs at most once per distinct
// key; concurrent first requests for the same key are serialized on
// that key alone. Failed compilations are cached too: compilation
// is deterministic, so a key that failed once fails forever.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	bounded   *lru.Cache[string, *entry]
	compileFn func(*spec.Node, config.CheckConfig) (*compile.Compiled, error)
}

type entry struct {
	once sync.Once
	res  *compile.Compiled
	err  error
}

// New returns an unbounded cache, the default for the typical
// bounded-specification workload.
func New() *Cache {
	return &Cache{
		entries:   make(map[string]*entry),
		compileFn: compile.Compile,
	}
}

// NewBounded returns a cache with LRU eviction capped at size
// entries, for long-lived hosts that churn specifications.
func NewBounded(size int) (*Cache, error) {
	l, err := lru.New[string, *entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{
		bounded:   l,
		compileFn: compile.Compile,
	}, nil
}

// Key returns the cache key for a specification under a
// configuration.
func Key(node *spec.Node, cfg config.CheckConfig) string {
	return node.Key() + "\x1f" + cfg.Key()
}

// GetOrCompile returns the memoized compilation for the pair,
// compiling on first request.
func (c *Cache) GetOrCompile(node *spec.Node, cfg config.CheckConfig) (*compile.Compiled, error) {
	e := c.entry(Key(node, cfg))
	e.once.Do(func() {
		e.res, e.err = c.compileFn(node, cfg)
	})
	return e.res, e.err
}

func (c *Cache) entry(key string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bounded != nil {
		if e, ok := c.bounded.Get(key); ok {
			return e
		}
		e := &entry{}
		c.bounded.Add(key, e)
		return e
	}

	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bounded != nil {
		return c.bounded.Len()
	}
	return len(c.entries)
}
