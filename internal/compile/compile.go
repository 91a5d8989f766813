// Package compile turns a specification tree into an executable check:
// a predicate closure over the candidate value, the scope of runtime
// symbols the predicate references, and the set of forward references
// still awaiting resolution. It also renders each node through a
// fragment template so the full check is inspectable as a single
// boolean expression.
package compile

import (
	"fmt"
	"math/rand"

	"github.com/alucardeht/typegate/internal/config"
	"github.com/alucardeht/typegate/internal/registry"
	"github.com/alucardeht/typegate/internal/spec"
)

// Predicate is the compiled boolean check. The environment carries
// the runtime symbols (resolved forward references, random index
// source); the error return is reserved for unresolved forward
// references, never for ordinary check failure.
type Predicate func(env *registry.Scope, v any) (bool, error)

// Compiled is the result of compiling one specification tree under
// one configuration. It is immutable once returned and shared between
// the memoization cache and every checker built from it.
type Compiled struct {
	// Expr is the rendered boolean expression, for diagnostics.
	Expr string
	// Pred evaluates the check against a candidate value.
	Pred Predicate
	// Scope maps the symbols Expr references to their runtime objects.
	Scope *registry.Scope
	// Refs lists forward-reference names that must be resolved before
	// the predicate first runs.
	Refs []string
}

// Sampled reports whether the compiled check draws random indexes,
// i.e. whether the random source symbol ended up in its scope.
func (c *Compiled) Sampled() bool {
	return c.Scope.Has(registry.SymRand)
}

// UnsupportedError reports a specification node the compiler cannot
// render. Compilation of the whole tree aborts on the first one.
type UnsupportedError struct {
	Kind   spec.Kind
	Detail string
}

func (e *UnsupportedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("unsupported specification node %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("unsupported specification node %s", e.Kind)
}

// UnresolvedRefError reports a forward reference that was still
// unresolved when the compiled predicate executed.
type UnresolvedRefError struct {
	Name string
}

func (e *UnresolvedRefError) Error() string {
	return fmt.Sprintf("unresolved forward reference %q", e.Name)
}

// Resolver resolves a forward-reference name (plus optional scope
// hint) to a type reference. Bound under registry.SymResolve for the
// lazy policy.
type Resolver func(name, scope string) (spec.TypeRef, error)

// Compile is the sole compiler entry point. It is pure: the same tree
// and configuration always produce a behaviorally identical result.
func Compile(root *spec.Node, cfg config.CheckConfig) (*Compiled, error) {
	c := &compiler{
		reg:  registry.New(),
		cfg:  cfg,
		seen: make(map[string]bool),
	}

	expr, pred, err := c.node(root, pithName(0), 0)
	if err != nil {
		return nil, err
	}

	if c.needRand {
		c.reg.Bind(registry.SymRand, rand.Uint32)
	}

	return &Compiled{
		Expr:  expr,
		Pred:  pred,
		Scope: c.reg.Scope(),
		Refs:  c.refs,
	}, nil
}

type compiler struct {
	reg      *registry.Registry
	cfg      config.CheckConfig
	needRand bool
	refs     []string
	seen     map[string]bool
}

// node compiles one specification node against the expression that
// yields its current value. Depth grows by one per binding-introducing
// node (container element, tuple item) and only feeds binding names
// and indentation; sibling subtrees may reuse a depth because their
// generated regions never interleave within one check call.
func (c *compiler) node(n *spec.Node, pith string, depth int) (string, Predicate, error) {
	if n == nil {
		return "", nil, &UnsupportedError{Kind: spec.KindInvalid, Detail: "nil node"}
	}

	switch n.Kind() {
	case spec.KindScalar:
		return c.scalar(n, pith)
	case spec.KindUnion:
		return c.union(n, pith, depth)
	case spec.KindList:
		return c.list(n, pith, depth)
	case spec.KindTuple:
		return c.tuple(n, pith, depth)
	case spec.KindEmptyTuple:
		return c.emptyTuple(pith, depth)
	case spec.KindRef:
		return c.forwardRef(n, pith)
	case spec.KindGeneric:
		return c.generic(n, pith, depth)
	}
	return "", nil, &UnsupportedError{Kind: n.Kind()}
}

func (c *compiler) scalar(n *spec.Node, pith string) (string, Predicate, error) {
	ref := n.Ref()
	if ref == nil {
		return "", nil, &UnsupportedError{Kind: spec.KindScalar, Detail: "missing type reference"}
	}
	sym := c.reg.Intern(ref)
	pred := func(_ *registry.Scope, v any) (bool, error) {
		return ref.Matches(v), nil
	}
	return renderScalar(pith, sym), pred, nil
}

// union compiles every alternative against the same binding; no new
// binding is introduced. Short-circuit order follows child order.
func (c *compiler) union(n *spec.Node, pith string, depth int) (string, Predicate, error) {
	kids := n.Children()
	if len(kids) == 0 {
		return "", nil, &UnsupportedError{Kind: spec.KindUnion, Detail: "empty union"}
	}

	frags := make([]string, len(kids))
	preds := make([]Predicate, len(kids))
	for i, kid := range kids {
		frag, pred, err := c.node(kid, pith, depth)
		if err != nil {
			return "", nil, err
		}
		frags[i] = frag
		preds[i] = pred
	}

	pred := func(env *registry.Scope, v any) (bool, error) {
		for _, p := range preds {
			ok, err := p(env, v)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	return renderUnion(frags, depth), pred, nil
}

func (c *compiler) list(n *spec.Node, pith string, depth int) (string, Predicate, error) {
	elem := n.Elem()
	if elem == nil {
		return "", nil, &UnsupportedError{Kind: spec.KindList, Detail: "missing element specification"}
	}

	cur := pithName(depth + 1)
	assign := assignExpr(cur, pith)
	elemVar := cur + "e"

	if c.cfg.Sampling {
		c.needRand = true
		frag, elemPred, err := c.node(elem, elemVar, depth+1)
		if err != nil {
			return "", nil, err
		}

		pred := func(env *registry.Scope, v any) (bool, error) {
			rv, ok := asSequence(v)
			if !ok {
				return false, nil
			}
			n := rv.Len()
			if n == 0 {
				return true, nil
			}
			idx := sampleIndex(env, n)
			return elemPred(env, rv.Index(idx).Interface())
		}
		return renderSeqSampled(assign, cur, elemVar, registry.SymRand, frag, depth), pred, nil
	}

	frag, elemPred, err := c.node(elem, elemVar, depth+1)
	if err != nil {
		return "", nil, err
	}

	pred := func(env *registry.Scope, v any) (bool, error) {
		rv, ok := asSequence(v)
		if !ok {
			return false, nil
		}
		for i := 0; i < rv.Len(); i++ {
			ok, err := elemPred(env, rv.Index(i).Interface())
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
	return renderSeqEvery(assign, cur, elemVar, frag, depth), pred, nil
}

func (c *compiler) tuple(n *spec.Node, pith string, depth int) (string, Predicate, error) {
	items := n.Children()
	if len(items) == 0 {
		return "", nil, &UnsupportedError{Kind: spec.KindTuple, Detail: "tuple without items; use the zero-arity sentinel"}
	}

	cur := pithName(depth + 1)
	assign := assignExpr(cur, pith)
	arity := len(items)

	frags := make([]string, arity)
	preds := make([]Predicate, arity)
	for i, item := range items {
		itemExpr := fmt.Sprintf("%s[%d]", cur, i)
		frag, pred, err := c.node(item, itemExpr, depth+1)
		if err != nil {
			return "", nil, err
		}
		frags[i] = frag
		preds[i] = pred
	}

	pred := func(env *registry.Scope, v any) (bool, error) {
		rv, ok := asSequence(v)
		if !ok || rv.Len() != arity {
			return false, nil
		}
		for i, p := range preds {
			ok, err := p(env, rv.Index(i).Interface())
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
	return renderTuple(assign, arity, frags, depth), pred, nil
}

func (c *compiler) emptyTuple(pith string, depth int) (string, Predicate, error) {
	cur := pithName(depth + 1)
	assign := assignExpr(cur, pith)

	pred := func(_ *registry.Scope, v any) (bool, error) {
		rv, ok := asSequence(v)
		return ok && rv.Len() == 0, nil
	}
	return renderTupleEmpty(assign, depth), pred, nil
}

// forwardRef emits a placeholder check resolved through the scope at
// run time. Resolution order: a previously bound target under the
// reference's own symbol, then the resolver bound under SymResolve
// (lazy policy), else the check fails with UnresolvedRefError.
func (c *compiler) forwardRef(n *spec.Node, pith string) (string, Predicate, error) {
	name, scopeHint := n.RefName()
	if name == "" {
		return "", nil, &UnsupportedError{Kind: spec.KindRef, Detail: "empty reference name"}
	}
	if !c.seen[name] {
		c.seen[name] = true
		c.refs = append(c.refs, name)
	}
	sym := registry.RefSym(name)

	pred := func(env *registry.Scope, v any) (bool, error) {
		if obj, ok := env.Lookup(sym); ok {
			return obj.(spec.TypeRef).Matches(v), nil
		}
		if obj, ok := env.Lookup(registry.SymResolve); ok {
			ref, err := obj.(Resolver)(name, scopeHint)
			if err != nil {
				return false, &UnresolvedRefError{Name: name}
			}
			env.Bind(sym, ref)
			return ref.Matches(v), nil
		}
		return false, &UnresolvedRefError{Name: name}
	}
	return renderRef(pith, sym), pred, nil
}

// generic handles parameterized bases. Map projects its two argument
// checks onto entry keys and values; Seq with one argument degrades
// to the standard container check.
func (c *compiler) generic(n *spec.Node, pith string, depth int) (string, Predicate, error) {
	args := n.Children()

	switch n.Ref() {
	case spec.Seq:
		if len(args) != 1 {
			return "", nil, &UnsupportedError{Kind: spec.KindGeneric, Detail: "seq takes exactly one argument"}
		}
		return c.list(spec.List(args[0]), pith, depth)

	case spec.Map:
		if len(args) != 2 {
			return "", nil, &UnsupportedError{Kind: spec.KindGeneric, Detail: "map takes exactly two arguments"}
		}
		return c.mapGeneric(args[0], args[1], pith, depth)
	}

	detail := "unknown base"
	if n.Ref() != nil {
		detail = fmt.Sprintf("base %s has no argument projection", n.Ref().Name())
	}
	return "", nil, &UnsupportedError{Kind: spec.KindGeneric, Detail: detail}
}

func (c *compiler) mapGeneric(keySpec, valSpec *spec.Node, pith string, depth int) (string, Predicate, error) {
	cur := pithName(depth + 1)
	assign := assignExpr(cur, pith)
	keyVar := cur + "k"
	valVar := cur + "v"

	if c.cfg.Sampling {
		c.needRand = true
		keyFrag, keyPred, err := c.node(keySpec, keyVar, depth+1)
		if err != nil {
			return "", nil, err
		}
		valFrag, valPred, err := c.node(valSpec, valVar, depth+1)
		if err != nil {
			return "", nil, err
		}

		pred := func(env *registry.Scope, v any) (bool, error) {
			rv, ok := asMap(v)
			if !ok {
				return false, nil
			}
			n := rv.Len()
			if n == 0 {
				return true, nil
			}
			key, val := mapEntry(rv, sampleIndex(env, n))
			ok, err := keyPred(env, key.Interface())
			if err != nil || !ok {
				return false, err
			}
			return valPred(env, val.Interface())
		}
		return renderMapSampled(assign, cur, keyVar, valVar, registry.SymRand, keyFrag, valFrag, depth), pred, nil
	}

	keyFrag, keyPred, err := c.node(keySpec, keyVar, depth+1)
	if err != nil {
		return "", nil, err
	}
	valFrag, valPred, err := c.node(valSpec, valVar, depth+1)
	if err != nil {
		return "", nil, err
	}

	pred := func(env *registry.Scope, v any) (bool, error) {
		rv, ok := asMap(v)
		if !ok {
			return false, nil
		}
		iter := rv.MapRange()
		for iter.Next() {
			ok, err := keyPred(env, iter.Key().Interface())
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
			ok, err = valPred(env, iter.Value().Interface())
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
	return renderMapEvery(assign, cur, keyVar, valVar, keyFrag, valFrag, depth), pred, nil
}

