package spec

import (
	"reflect"
	"testing"
)

func TestScalarMatching(t *testing.T) {
	if !Int.Matches(3) {
		t.Error("int class should match 3")
	}
	if Int.Matches(3.5) {
		t.Error("int class should not match 3.5")
	}
	if !Str.Matches("x") {
		t.Error("str class should match \"x\"")
	}
	if !Num.Matches(3) || !Num.Matches(3.5) {
		t.Error("num class should match both int and float values")
	}
	if Nil.Matches(0) {
		t.Error("nil class should not match 0")
	}
	if !Nil.Matches(nil) {
		t.Error("nil class should match nil")
	}
	if !Any.Matches(nil) || !Any.Matches("x") {
		t.Error("any class should match everything")
	}
}

func TestGoTypeMatching(t *testing.T) {
	ref := TypeOf[string]()
	if !ref.Matches("hello") {
		t.Error("TypeOf[string] should match a string")
	}
	if ref.Matches(3) {
		t.Error("TypeOf[string] should not match an int")
	}

	errRef := GoType(reflect.TypeOf((*error)(nil)).Elem())
	if !errRef.Matches(errTest{}) {
		t.Error("interface ref should match an implementing value")
	}
	if errRef.Matches("nope") {
		t.Error("interface ref should not match a non-implementing value")
	}
}

type errTest struct{}

func (errTest) Error() string { return "test" }

func TestStructuralKey(t *testing.T) {
	a := Union(Scalar(Int), Scalar(Str))
	b := Union(Scalar(Int), Scalar(Str))
	if a.Key() != b.Key() {
		t.Errorf("independently built identical trees must share a key: %q vs %q", a.Key(), b.Key())
	}

	c := Union(Scalar(Str), Scalar(Int))
	if a.Key() == c.Key() {
		t.Error("child order must be part of the key")
	}

	if List(Scalar(Int)).Key() == Tuple(Scalar(Int)).Key() {
		t.Error("list and single-item tuple must not collide")
	}

	if Tuple(Scalar(Int)).Key() == EmptyTuple().Key() {
		t.Error("zero-arity sentinel must have its own key")
	}

	if Ref("Foo").Key() == RefIn("Foo", "pkg").Key() {
		t.Error("scope hint must be part of a ref key")
	}
}

func TestNodeSharing(t *testing.T) {
	shared := Scalar(Int)
	tree := Union(List(shared), Tuple(shared, shared))

	// The same node object appears multiple times; keys stay stable.
	first := tree.Key()
	if tree.Key() != first {
		t.Error("key must be deterministic")
	}
}

func TestStringRoundTrip(t *testing.T) {
	cases := []string{
		"int",
		"int | str",
		"list[int]",
		"tuple[int, str]",
		"tuple[]",
		"map[str]int",
		"list[tuple[int, num | str]]",
		"ref[Order]",
	}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			n, err := Parse(src)
			if err != nil {
				t.Fatalf("parse %q: %v", src, err)
			}
			if n.String() != src {
				t.Errorf("round trip: got %q, want %q", n.String(), src)
			}
		})
	}
}
