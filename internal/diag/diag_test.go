package diag

import (
	"strings"
	"testing"

	"github.com/alucardeht/typegate/internal/spec"
)

func TestExplainConformingValueIsEmpty(t *testing.T) {
	d := &Diagnoser{}
	n := spec.Union(spec.Scalar(spec.Int), spec.Scalar(spec.Str))

	if msg := d.Explain(n, 3, ""); msg != "" {
		t.Errorf("conforming value must explain as empty, got %q", msg)
	}
	if msg := d.Explain(n, "x", ""); msg != "" {
		t.Errorf("conforming value must explain as empty, got %q", msg)
	}
}

func TestExplainScalarMismatch(t *testing.T) {
	d := &Diagnoser{}
	msg := d.Explain(spec.Scalar(spec.Int), "oops", "")

	if !strings.Contains(msg, "value:") {
		t.Errorf("message must anchor at the root path, got %q", msg)
	}
	if !strings.Contains(msg, `str "oops"`) || !strings.Contains(msg, "int") {
		t.Errorf("message must label the value and the expected type, got %q", msg)
	}
}

func TestExplainAnchorsAtSlotLabel(t *testing.T) {
	d := &Diagnoser{}
	n := spec.List(spec.Scalar(spec.Int))

	msg := d.Explain(n, []any{1, "x"}, "return")
	if !strings.Contains(msg, "return value[1]") {
		t.Errorf("return slot must anchor the path, got %q", msg)
	}

	msg = d.Explain(spec.Scalar(spec.Int), "x", "amount")
	if !strings.Contains(msg, `"amount":`) {
		t.Errorf("named slot must anchor the path, got %q", msg)
	}
}

func TestExplainUnionNamesEveryAlternative(t *testing.T) {
	d := &Diagnoser{}
	n := spec.Union(spec.Scalar(spec.Int), spec.Scalar(spec.Str))
	msg := d.Explain(n, 3.5, "")

	if !strings.Contains(msg, "satisfies none of") {
		t.Errorf("union failure must say the value satisfies no alternative, got %q", msg)
	}
	if !strings.Contains(msg, "int | str") {
		t.Errorf("union failure must spell the alternatives, got %q", msg)
	}
}

func TestExplainListPointsAtOffendingIndex(t *testing.T) {
	d := &Diagnoser{}
	n := spec.List(spec.Scalar(spec.Int))
	msg := d.Explain(n, []any{1, 2, "x", 4}, "")

	if !strings.Contains(msg, "value[2]") {
		t.Errorf("list failure must name the offending index, got %q", msg)
	}
}

func TestExplainNestedPathAccumulates(t *testing.T) {
	d := &Diagnoser{}
	n := spec.List(spec.List(spec.Scalar(spec.Int)))
	msg := d.Explain(n, []any{[]any{1}, []any{2, "x"}}, "")

	if !strings.Contains(msg, "value[1][1]") {
		t.Errorf("nested failure must accumulate the path, got %q", msg)
	}
}

func TestExplainTupleArityMismatch(t *testing.T) {
	d := &Diagnoser{}
	n := spec.Tuple(spec.Scalar(spec.Int), spec.Scalar(spec.Str))
	msg := d.Explain(n, []any{1}, "")

	if !strings.Contains(msg, "arity 2") {
		t.Errorf("tuple failure must report the expected arity, got %q", msg)
	}
}

func TestExplainNonSequence(t *testing.T) {
	d := &Diagnoser{}
	msg := d.Explain(spec.List(spec.Scalar(spec.Int)), 42, "")

	if !strings.Contains(msg, "is not a sequence") {
		t.Errorf("got %q", msg)
	}
}

func TestExplainEmptyTuple(t *testing.T) {
	d := &Diagnoser{}
	n := spec.EmptyTuple()

	if msg := d.Explain(n, []any{}, ""); msg != "" {
		t.Errorf("empty sequence conforms to the empty tuple, got %q", msg)
	}
	if msg := d.Explain(n, []any{1}, ""); !strings.Contains(msg, "empty tuple") {
		t.Errorf("got %q", msg)
	}
}

func TestExplainMapKeyAndValue(t *testing.T) {
	d := &Diagnoser{}
	n := spec.Generic(spec.Map, spec.Scalar(spec.Str), spec.Scalar(spec.Int))

	if msg := d.Explain(n, map[string]any{"a": 1}, ""); msg != "" {
		t.Errorf("conforming map must explain as empty, got %q", msg)
	}

	msg := d.Explain(n, map[string]any{"a": "oops"}, "")
	if !strings.Contains(msg, `value["a"]`) {
		t.Errorf("map value failure must name the key, got %q", msg)
	}

	msg = d.Explain(n, map[any]any{3: 1}, "")
	if !strings.Contains(msg, "key") {
		t.Errorf("map key failure must say it was the key, got %q", msg)
	}
}

func TestExplainForwardRef(t *testing.T) {
	n := spec.Ref("Order")

	unresolved := &Diagnoser{}
	if msg := unresolved.Explain(n, 1, ""); !strings.Contains(msg, `"Order"`) {
		t.Errorf("unresolved reference must be named, got %q", msg)
	}

	resolved := &Diagnoser{Resolver: func(name, scope string) (spec.TypeRef, error) {
		return spec.Int, nil
	}}
	if msg := resolved.Explain(n, 1, ""); msg != "" {
		t.Errorf("resolved conforming ref must explain as empty, got %q", msg)
	}
	if msg := resolved.Explain(n, "x", ""); !strings.Contains(msg, "does not satisfy int") {
		t.Errorf("got %q", msg)
	}
}

func TestExplainIsExhaustive(t *testing.T) {
	// Diagnosis always walks every element, so a failure a sampled
	// check happened to hit is found here deterministically.
	d := &Diagnoser{}
	n := spec.List(spec.Scalar(spec.Int))
	bad := []any{1, 2, 3, 4, 5, 6, 7, "x"}

	for i := 0; i < 20; i++ {
		if msg := d.Explain(n, bad, ""); !strings.Contains(msg, "value[7]") {
			t.Fatalf("iteration %d: got %q", i, msg)
		}
	}
}

func TestLabel(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, "nil"},
		{true, "bool true"},
		{42, "int 42"},
		{3.5, "float 3.5"},
		{"hi", `str "hi"`},
		{[]any{1, 2}, "sequence of 2 items"},
		{map[string]int{"a": 1}, "map of 1 entries"},
	}
	for _, c := range cases {
		if got := Label(c.in); got != c.want {
			t.Errorf("Label(%v) = %q, want %q", c.in, got, c.want)
		}
	}

	long := strings.Repeat("a", 60)
	if got := Label(long); !strings.Contains(got, "...") {
		t.Errorf("long strings must truncate, got %q", got)
	}
}

func TestSlotLabel(t *testing.T) {
	if SlotLabel("") != "value" || SlotLabel("value") != "value" {
		t.Error("unnamed slots label as value")
	}
	if SlotLabel("return") != "return value" {
		t.Error("return slot labels as return value")
	}
	if SlotLabel("amount") != `"amount"` {
		t.Error("named slots label quoted")
	}
}
