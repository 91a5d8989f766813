package spec

import (
	"strings"
)

// Kind tags the variant of a specification node.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindScalar
	KindUnion
	KindList
	KindTuple
	KindEmptyTuple
	KindRef
	KindGeneric
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindUnion:
		return "union"
	case KindList:
		return "list"
	case KindTuple:
		return "tuple"
	case KindEmptyTuple:
		return "tuple0"
	case KindRef:
		return "ref"
	case KindGeneric:
		return "generic"
	}
	return "invalid"
}

// Node is one immutable node of a specification tree. Nodes are only
// built through the constructors below and may be shared between
// trees; the compiler never mutates them.
type Node struct {
	kind  Kind
	ref   TypeRef // Scalar, Generic base
	kids  []*Node // Union children, Tuple items, Generic args; List element at [0]
	name  string  // Ref target
	scope string  // Ref scope hint
}

// Scalar builds an exact-type membership test.
func Scalar(ref TypeRef) *Node {
	return &Node{kind: KindScalar, ref: ref}
}

// Union builds a disjunction over the given alternatives. Order is
// preserved: the first alternative is tested first.
func Union(children ...*Node) *Node {
	return &Node{kind: KindUnion, kids: children}
}

// List builds a homogeneous container specification whose elements
// must satisfy elem.
func List(elem *Node) *Node {
	return &Node{kind: KindList, kids: []*Node{elem}}
}

// Tuple builds a positional conjunction of exactly len(items) checks.
func Tuple(items ...*Node) *Node {
	return &Node{kind: KindTuple, kids: items}
}

// EmptyTuple builds the zero-arity sentinel accepting only an empty
// sequence.
func EmptyTuple() *Node {
	return &Node{kind: KindEmptyTuple}
}

// Ref builds a forward reference to a type resolved at check time.
func Ref(name string) *Node {
	return &Node{kind: KindRef, name: name}
}

// RefIn is Ref with an explicit scope hint.
func RefIn(name, scope string) *Node {
	return &Node{kind: KindRef, name: name, scope: scope}
}

// Generic builds a composite of a base membership test plus argument
// checks projected through the base.
func Generic(base TypeRef, args ...*Node) *Node {
	return &Node{kind: KindGeneric, ref: base, kids: args}
}

func (n *Node) Kind() Kind { return n.kind }

// Ref returns the type reference of a Scalar or Generic node.
func (n *Node) Ref() TypeRef { return n.ref }

// Elem returns the element specification of a List node.
func (n *Node) Elem() *Node {
	if n.kind != KindList || len(n.kids) == 0 {
		return nil
	}
	return n.kids[0]
}

// Children returns the ordered child nodes (union alternatives, tuple
// items or generic arguments). Callers must not mutate the slice.
func (n *Node) Children() []*Node { return n.kids }

// RefName returns the target name and scope hint of a Ref node.
func (n *Node) RefName() (name, scope string) { return n.name, n.scope }

// Key returns a canonical structural key for the node tree. Two
// independently constructed but structurally identical trees share a
// key, which is what the memoization cache keys on.
func (n *Node) Key() string {
	var b strings.Builder
	n.writeKey(&b)
	return b.String()
}

func (n *Node) writeKey(b *strings.Builder) {
	switch n.kind {
	case KindScalar:
		b.WriteString("scalar(")
		b.WriteString(n.ref.Name())
		b.WriteByte(')')
	case KindUnion:
		b.WriteString("union(")
		n.writeKids(b)
		b.WriteByte(')')
	case KindList:
		b.WriteString("list(")
		n.kids[0].writeKey(b)
		b.WriteByte(')')
	case KindTuple:
		b.WriteString("tuple(")
		n.writeKids(b)
		b.WriteByte(')')
	case KindEmptyTuple:
		b.WriteString("tuple0")
	case KindRef:
		b.WriteString("ref(")
		b.WriteString(n.name)
		if n.scope != "" {
			b.WriteByte('@')
			b.WriteString(n.scope)
		}
		b.WriteByte(')')
	case KindGeneric:
		b.WriteString("generic(")
		b.WriteString(n.ref.Name())
		b.WriteByte(';')
		n.writeKids(b)
		b.WriteByte(')')
	default:
		b.WriteString("invalid")
	}
}

func (n *Node) writeKids(b *strings.Builder) {
	for i, k := range n.kids {
		if i > 0 {
			b.WriteByte(',')
		}
		k.writeKey(b)
	}
}

// String renders the node in the same text syntax Parse accepts.
func (n *Node) String() string {
	switch n.kind {
	case KindScalar:
		return n.ref.Name()
	case KindUnion:
		parts := make([]string, len(n.kids))
		for i, k := range n.kids {
			parts[i] = k.String()
		}
		return strings.Join(parts, " | ")
	case KindList:
		return "list[" + n.kids[0].String() + "]"
	case KindTuple:
		parts := make([]string, len(n.kids))
		for i, k := range n.kids {
			parts[i] = k.String()
		}
		return "tuple[" + strings.Join(parts, ", ") + "]"
	case KindEmptyTuple:
		return "tuple[]"
	case KindRef:
		if n.scope != "" {
			return "ref[" + n.scope + "." + n.name + "]"
		}
		return "ref[" + n.name + "]"
	case KindGeneric:
		if n.ref == Map && len(n.kids) == 2 {
			return "map[" + n.kids[0].String() + "]" + n.kids[1].String()
		}
		parts := make([]string, len(n.kids))
		for i, k := range n.kids {
			parts[i] = k.String()
		}
		return n.ref.Name() + "[" + strings.Join(parts, ", ") + "]"
	}
	return "<invalid>"
}
