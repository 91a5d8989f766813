// Package diag re-walks a specification tree against a failing value
// to explain why the check said no. It runs only after a violation,
// so it is deliberately exhaustive: every element of every container
// is visited, sampling never applies here.
package diag

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/alucardeht/typegate/internal/compile"
	"github.com/alucardeht/typegate/internal/spec"
)

// Diagnoser explains check failures. The resolver mirrors the one the
// checker used so forward references diagnose the same way they
// checked.
type Diagnoser struct {
	Resolver compile.Resolver
}

// Explain returns a human-readable reason the value violates the
// specification, or the empty string when the value conforms. The
// path is anchored at the checked slot's label. The walk reports the
// first offending element it finds, which may differ from the element
// a sampled check rejected.
func (d *Diagnoser) Explain(n *spec.Node, v any, slot string) string {
	ok, msg := d.walk(n, v, SlotLabel(slot))
	if ok {
		return ""
	}
	return msg
}

func (d *Diagnoser) walk(n *spec.Node, v any, path string) (bool, string) {
	switch n.Kind() {
	case spec.KindScalar:
		if n.Ref().Matches(v) {
			return true, ""
		}
		return false, fmt.Sprintf("%s: %s does not satisfy %s", path, Label(v), n.Ref().Name())

	case spec.KindUnion:
		for _, kid := range n.Children() {
			if ok, _ := d.walk(kid, v, path); ok {
				return true, ""
			}
		}
		return false, fmt.Sprintf("%s: %s satisfies none of %s", path, Label(v), n.String())

	case spec.KindList:
		rv := reflect.ValueOf(v)
		if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return false, fmt.Sprintf("%s: %s is not a sequence", path, Label(v))
		}
		for i := 0; i < rv.Len(); i++ {
			elemPath := fmt.Sprintf("%s[%d]", path, i)
			if ok, msg := d.walk(n.Elem(), rv.Index(i).Interface(), elemPath); !ok {
				return false, msg
			}
		}
		return true, ""

	case spec.KindTuple:
		items := n.Children()
		rv := reflect.ValueOf(v)
		if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return false, fmt.Sprintf("%s: %s is not a sequence", path, Label(v))
		}
		if rv.Len() != len(items) {
			return false, fmt.Sprintf("%s: sequence of %d items does not match arity %d of %s",
				path, rv.Len(), len(items), n.String())
		}
		for i, item := range items {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			if ok, msg := d.walk(item, rv.Index(i).Interface(), itemPath); !ok {
				return false, msg
			}
		}
		return true, ""

	case spec.KindEmptyTuple:
		rv := reflect.ValueOf(v)
		if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return false, fmt.Sprintf("%s: %s is not a sequence", path, Label(v))
		}
		if rv.Len() != 0 {
			return false, fmt.Sprintf("%s: sequence of %d items does not match the empty tuple", path, rv.Len())
		}
		return true, ""

	case spec.KindRef:
		name, scopeHint := n.RefName()
		if d.Resolver == nil {
			return false, fmt.Sprintf("%s: forward reference %q is unresolved", path, name)
		}
		ref, err := d.Resolver(name, scopeHint)
		if err != nil {
			return false, fmt.Sprintf("%s: forward reference %q is unresolved", path, name)
		}
		if ref.Matches(v) {
			return true, ""
		}
		return false, fmt.Sprintf("%s: %s does not satisfy %s", path, Label(v), ref.Name())

	case spec.KindGeneric:
		return d.walkGeneric(n, v, path)
	}

	return false, fmt.Sprintf("%s: unsupported specification node", path)
}

func (d *Diagnoser) walkGeneric(n *spec.Node, v any, path string) (bool, string) {
	args := n.Children()

	switch n.Ref() {
	case spec.Seq:
		if len(args) == 1 {
			return d.walk(spec.List(args[0]), v, path)
		}
	case spec.Map:
		if len(args) != 2 {
			break
		}
		rv := reflect.ValueOf(v)
		if v == nil || rv.Kind() != reflect.Map {
			return false, fmt.Sprintf("%s: %s is not a map", path, Label(v))
		}
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key().Interface()
			keyPath := fmt.Sprintf("%s key %s", path, Label(key))
			if ok, msg := d.walk(args[0], key, keyPath); !ok {
				return false, msg
			}
			valPath := fmt.Sprintf("%s[%s]", path, keyLabel(key))
			if ok, msg := d.walk(args[1], iter.Value().Interface(), valPath); !ok {
				return false, msg
			}
		}
		return true, ""
	}

	return false, fmt.Sprintf("%s: unsupported generic specification", path)
}

func keyLabel(key any) string {
	if s, ok := key.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return strings.TrimSpace(fmt.Sprintf("%v", key))
}
