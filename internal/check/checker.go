// Package check binds compiled expressions to the slots they guard
// (a parameter, a return value, a document) and owns forward-reference
// resolution and violation reporting at the check boundary.
package check

import (
	"fmt"

	"github.com/alucardeht/typegate/internal/compile"
	"github.com/alucardeht/typegate/internal/config"
	"github.com/alucardeht/typegate/internal/registry"
)

// ViolationFunc is invoked exactly when a check evaluates to false,
// with the root value under test and the slot name. Diagnosis of why
// the value failed happens behind this callback, never inline in the
// compiled predicate.
type ViolationFunc func(value any, slot string)

// Options configures a checker built from a compiled expression.
type Options struct {
	// Resolver resolves forward references. Required when the
	// specification contains any and the policy is eager; bound into
	// the environment for lazy resolution otherwise.
	Resolver compile.Resolver
	// OnViolation is called on every failed check.
	OnViolation ViolationFunc
	// Rand overrides the random index source, mainly for tests that
	// need a fixed sampled index.
	Rand func() uint32
}

// Checker runs one compiled check against candidate values. Each
// checker derives its own environment from the compiled scope, so
// resolved references and callbacks never leak between checkers that
// share a cache entry.
type Checker struct {
	slot string
	ce   *compile.Compiled
	env  *registry.Scope
}

// New binds a compiled expression to a slot. Under the eager policy
// every forward reference is resolved here and failures surface
// immediately; under the lazy policy resolution happens on first use.
func New(ce *compile.Compiled, slot string, cfg config.CheckConfig, opts Options) (*Checker, error) {
	env := ce.Scope.Clone()

	if opts.Rand != nil {
		env.Bind(registry.SymRand, opts.Rand)
	}
	if opts.OnViolation != nil {
		env.Bind(registry.SymViolation, opts.OnViolation)
	}

	switch cfg.RefMode {
	case config.RefEager:
		for _, name := range ce.Refs {
			if opts.Resolver == nil {
				return nil, &compile.UnresolvedRefError{Name: name}
			}
			ref, err := opts.Resolver(name, "")
			if err != nil {
				return nil, fmt.Errorf("resolve forward reference %q: %w", name, err)
			}
			env.Bind(registry.RefSym(name), ref)
		}
	case config.RefLazy:
		if opts.Resolver != nil {
			env.Bind(registry.SymResolve, opts.Resolver)
		}
	default:
		return nil, fmt.Errorf("unknown forward reference policy %q", cfg.RefMode)
	}

	return &Checker{slot: slot, ce: ce, env: env}, nil
}

// Check evaluates the candidate value. An ordinary mismatch returns
// (false, nil) after invoking the violation callback; a non-nil error
// means the check itself could not run (unresolved forward
// reference).
func (c *Checker) Check(v any) (bool, error) {
	ok, err := c.ce.Pred(c.env, v)
	if err != nil {
		return false, err
	}
	if !ok {
		if obj, found := c.env.Lookup(registry.SymViolation); found {
			if fn, isFn := obj.(ViolationFunc); isFn {
				fn(v, c.slot)
			}
		}
	}
	return ok, nil
}

// Slot returns the name of the checked slot.
func (c *Checker) Slot() string { return c.slot }

// Expr returns the rendered boolean expression of the underlying
// compilation.
func (c *Checker) Expr() string { return c.ce.Expr }

// Sampled reports whether the check spot-samples containers.
func (c *Checker) Sampled() bool { return c.ce.Sampled() }
