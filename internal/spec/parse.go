package spec

import (
	"fmt"
	"strings"
	"unicode"
)

// SyntaxError reports a malformed specification source string.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("spec syntax error at %d: %s", e.Pos, e.Msg)
}

// Parse builds a specification tree from its text form.
//
// Grammar:
//
//	expr  := term ('|' term)*
//	term  := 'list' '[' expr ']'
//	       | 'tuple' '[' (expr (',' expr)*)? ']'
//	       | 'map' '[' expr ']' term
//	       | 'ref' '[' name ']'
//	       | name
//
// Builtin names (any, nil, bool, int, float, num, str) become scalar
// checks; any other bare name becomes a forward reference. Dotted
// names carry their qualifier as the reference scope hint.
func Parse(src string) (*Node, error) {
	p := &parser{src: src}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errf("unexpected trailing input %q", p.src[p.pos:])
	}
	return n, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errf(format string, args ...any) error {
	return &SyntaxError{Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) eat(c byte) bool {
	p.skipSpace()
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '.' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *parser) parseExpr() (*Node, error) {
	first, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	alts := []*Node{first}
	for p.eat('|') {
		next, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		alts = append(alts, next)
	}
	if len(alts) == 1 {
		return first, nil
	}
	return Union(alts...), nil
}

func (p *parser) parseTerm() (*Node, error) {
	name := p.ident()
	if name == "" {
		return nil, p.errf("expected type name")
	}

	switch name {
	case "list":
		if !p.eat('[') {
			return nil, p.errf("list requires an element type: list[T]")
		}
		elem, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.eat(']') {
			return nil, p.errf("missing ']' after list element type")
		}
		return List(elem), nil

	case "tuple":
		if !p.eat('[') {
			return nil, p.errf("tuple requires item types: tuple[T, ...] or tuple[]")
		}
		if p.eat(']') {
			return EmptyTuple(), nil
		}
		var items []*Node
		for {
			item, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if p.eat(',') {
				continue
			}
			break
		}
		if !p.eat(']') {
			return nil, p.errf("missing ']' after tuple items")
		}
		return Tuple(items...), nil

	case "map":
		if !p.eat('[') {
			return nil, p.errf("map requires a key type: map[K]V")
		}
		key, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.eat(']') {
			return nil, p.errf("missing ']' after map key type")
		}
		val, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return Generic(Map, key, val), nil

	case "ref":
		if !p.eat('[') {
			return nil, p.errf("ref requires a target name: ref[Name]")
		}
		target := p.ident()
		if target == "" {
			return nil, p.errf("empty ref target")
		}
		if !p.eat(']') {
			return nil, p.errf("missing ']' after ref target")
		}
		return refFromName(target), nil
	}

	if ref, ok := builtinRef(name); ok {
		return Scalar(ref), nil
	}
	// Bare unknown names are forward references by construction.
	return refFromName(name), nil
}

func refFromName(name string) *Node {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return RefIn(name[i+1:], name[:i])
	}
	return Ref(name)
}
