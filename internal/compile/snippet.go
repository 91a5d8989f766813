package compile

import (
	"fmt"
	"strings"
)

// The rendered expression mirrors the closure tree one fragment per
// node kind. Fragments compose by placeholder substitution only; a
// child expression is evaluated at most once per slot, and every
// value a fragment reuses is captured into a numbered binding (v0 is
// the root value, v1.. are container elements and tuple items by
// nesting depth) before fan-out.
const (
	snipScalar = `is({pith}, {type})`

	snipRef = `is({pith}, {refsym})`

	snipUnionChild = `
{indent}    {child} ||`

	snipSeqSampled = `(
{indent}    isseq({assign}) &&
{indent}    (len({cur}) == 0 || sample({elem} := {cur}[{rand} % len({cur})]: {child}))
{indent})`

	snipSeqEvery = `(
{indent}    isseq({assign}) &&
{indent}    all({elem} in {cur}: {child})
{indent})`

	snipTuplePrefix = `(
{indent}    istuple({assign}, {arity}) &&`

	snipTupleChild = `
{indent}    {child} &&`

	snipTupleEmpty = `(
{indent}    istuple({assign}, 0)
{indent})`

	snipGroupSuffix = `
{indent})`

	snipMapSampled = `(
{indent}    ismap({assign}) &&
{indent}    (len({cur}) == 0 || sample(({key}, {val}) := entry({cur}, {rand}): {keychild} && {valchild}))
{indent})`

	snipMapEvery = `(
{indent}    ismap({assign}) &&
{indent}    all(({key}, {val}) in {cur}: {keychild} && {valchild})
{indent})`
)

// subst replaces {name} placeholders with their values. Pairs are
// name, value, name, value, ...
func subst(tmpl string, pairs ...string) string {
	if len(pairs)%2 != 0 {
		panic("compile: odd substitution pair count")
	}
	oldnew := make([]string, 0, len(pairs))
	for i := 0; i < len(pairs); i += 2 {
		oldnew = append(oldnew, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(oldnew...).Replace(tmpl)
}

func indentAt(depth int) string {
	return strings.Repeat("    ", depth)
}

func pithName(depth int) string {
	return fmt.Sprintf("v%d", depth)
}

func assignExpr(binding, expr string) string {
	return binding + " := " + expr
}

// stripJoiner removes the trailing join operator left behind by the
// last child fragment. The final rendered group must never end in a
// dangling operator.
func stripJoiner(s, op string) string {
	return strings.TrimSuffix(s, " "+op)
}

func renderScalar(pith, typeSym string) string {
	return subst(snipScalar, "pith", pith, "type", typeSym)
}

func renderRef(pith, refSym string) string {
	return subst(snipRef, "pith", pith, "refsym", refSym)
}

func renderUnion(children []string, depth int) string {
	indent := indentAt(depth)
	var b strings.Builder
	b.WriteByte('(')
	for _, child := range children {
		b.WriteString(subst(snipUnionChild, "indent", indent, "child", child))
	}
	joined := stripJoiner(b.String(), "||")
	return joined + subst(snipGroupSuffix, "indent", indent)
}

func renderTuple(assign string, arity int, children []string, depth int) string {
	indent := indentAt(depth)
	var b strings.Builder
	b.WriteString(subst(snipTuplePrefix,
		"indent", indent,
		"assign", assign,
		"arity", fmt.Sprintf("%d", arity),
	))
	for _, child := range children {
		b.WriteString(subst(snipTupleChild, "indent", indent, "child", child))
	}
	joined := stripJoiner(b.String(), "&&")
	return joined + subst(snipGroupSuffix, "indent", indent)
}

func renderTupleEmpty(assign string, depth int) string {
	return subst(snipTupleEmpty, "indent", indentAt(depth), "assign", assign)
}

func renderSeqSampled(assign, cur, elem, randSym, child string, depth int) string {
	return subst(snipSeqSampled,
		"indent", indentAt(depth),
		"assign", assign,
		"cur", cur,
		"elem", elem,
		"rand", randSym,
		"child", child,
	)
}

func renderSeqEvery(assign, cur, elem, child string, depth int) string {
	return subst(snipSeqEvery,
		"indent", indentAt(depth),
		"assign", assign,
		"cur", cur,
		"elem", elem,
		"child", child,
	)
}

func renderMapSampled(assign, cur, key, val, randSym, keyChild, valChild string, depth int) string {
	return subst(snipMapSampled,
		"indent", indentAt(depth),
		"assign", assign,
		"cur", cur,
		"key", key,
		"val", val,
		"rand", randSym,
		"keychild", keyChild,
		"valchild", valChild,
	)
}

func renderMapEvery(assign, cur, key, val, keyChild, valChild string, depth int) string {
	return subst(snipMapEvery,
		"indent", indentAt(depth),
		"assign", assign,
		"cur", cur,
		"key", key,
		"val", val,
		"keychild", keyChild,
		"valchild", valChild,
	)
}
