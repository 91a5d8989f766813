package check

import (
	"github.com/alucardeht/typegate/internal/cache"
	"github.com/alucardeht/typegate/internal/compile"
	"github.com/alucardeht/typegate/internal/config"
	"github.com/alucardeht/typegate/internal/spec"
)

// Engine is the inbound boundary callers use: it owns a memoization
// cache and a configuration and hands out checkers for specification
// trees. Compilation happens at most once per distinct
// (specification, configuration) pair for the engine's lifetime.
type Engine struct {
	cfg   config.CheckConfig
	cache *cache.Cache
	opts  Options
}

// NewEngine builds an engine around an owned cache. A nil cache gets
// a fresh unbounded one.
func NewEngine(cfg config.CheckConfig, c *cache.Cache, opts Options) *Engine {
	if c == nil {
		c = cache.New()
	}
	return &Engine{cfg: cfg, cache: c, opts: opts}
}

// CompileRoot returns the memoized compilation for a specification
// under the engine's configuration.
func (e *Engine) CompileRoot(node *spec.Node) (*compile.Compiled, error) {
	return e.cache.GetOrCompile(node, e.cfg)
}

// CheckerFor compiles (or recalls) the specification and binds it to
// the named slot with the engine's options.
func (e *Engine) CheckerFor(node *spec.Node, slot string) (*Checker, error) {
	ce, err := e.CompileRoot(node)
	if err != nil {
		return nil, err
	}
	return New(ce, slot, e.cfg, e.opts)
}

// Config returns the engine's check configuration.
func (e *Engine) Config() config.CheckConfig { return e.cfg }
