package spec

import (
	"fmt"
	"reflect"
)

// TypeRef is a runtime type object usable in membership tests. A ref is
// interned into the compiled scope by identity, so implementations must
// be comparable values.
type TypeRef interface {
	Name() string
	Matches(v any) bool
}

type goType struct {
	t reflect.Type
}

// GoType wraps a concrete reflect.Type as a membership test. Interface
// types match any value implementing them; all other types match the
// exact dynamic type of the value.
func GoType(t reflect.Type) TypeRef {
	return goType{t: t}
}

// TypeOf is shorthand for GoType over the type parameter.
func TypeOf[T any]() TypeRef {
	return goType{t: reflect.TypeOf((*T)(nil)).Elem()}
}

func (g goType) Name() string { return g.t.String() }

func (g goType) Matches(v any) bool {
	rt := reflect.TypeOf(v)
	if rt == nil {
		return false
	}
	if g.t.Kind() == reflect.Interface {
		return rt.Implements(g.t)
	}
	return rt == g.t
}

// kindClass is a builtin scalar matching a class of reflect kinds
// rather than one concrete type. Decoded documents (JSON, YAML) yield
// a small set of dynamic types, so the text syntax exposes these
// instead of concrete Go types.
type kindClass int

const (
	classAny kindClass = iota
	classNil
	classBool
	classInt
	classFloat
	classNum
	classStr
)

var (
	Any   TypeRef = classAny
	Nil   TypeRef = classNil
	Bool  TypeRef = classBool
	Int   TypeRef = classInt
	Float TypeRef = classFloat
	Num   TypeRef = classNum
	Str   TypeRef = classStr
)

func (k kindClass) Name() string {
	switch k {
	case classAny:
		return "any"
	case classNil:
		return "nil"
	case classBool:
		return "bool"
	case classInt:
		return "int"
	case classFloat:
		return "float"
	case classNum:
		return "num"
	case classStr:
		return "str"
	}
	return fmt.Sprintf("class(%d)", int(k))
}

func (k kindClass) Matches(v any) bool {
	if v == nil {
		return k == classAny || k == classNil
	}
	rk := reflect.TypeOf(v).Kind()
	switch k {
	case classAny:
		return true
	case classNil:
		return false
	case classBool:
		return rk == reflect.Bool
	case classInt:
		return isIntKind(rk)
	case classFloat:
		return rk == reflect.Float32 || rk == reflect.Float64
	case classNum:
		return isIntKind(rk) || rk == reflect.Float32 || rk == reflect.Float64
	case classStr:
		return rk == reflect.String
	}
	return false
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// containerClass is a builtin base for Generic nodes. The compiler
// projects argument checks through the base: Map applies its two
// argument checks to entry keys and values.
type containerClass int

const (
	classMap containerClass = iota
	classSeq
)

var (
	Map TypeRef = classMap
	Seq TypeRef = classSeq
)

func (c containerClass) Name() string {
	if c == classMap {
		return "map"
	}
	return "seq"
}

func (c containerClass) Matches(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map:
		return c == classMap
	case reflect.Slice, reflect.Array:
		return c == classSeq
	}
	return false
}

func builtinRef(name string) (TypeRef, bool) {
	switch name {
	case "any":
		return Any, true
	case "nil":
		return Nil, true
	case "bool":
		return Bool, true
	case "int":
		return Int, true
	case "float":
		return Float, true
	case "num":
		return Num, true
	case "str":
		return Str, true
	}
	return nil, false
}
