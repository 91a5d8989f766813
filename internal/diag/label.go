package diag

import (
	"fmt"
	"reflect"
)

// Label renders a short human-readable description of a value for
// violation messages: its shape first, then the value itself where
// that stays readable.
func Label(v any) string {
	if v == nil {
		return "nil"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return fmt.Sprintf("bool %v", v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("int %v", v)
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("float %v", v)
	case reflect.String:
		s := rv.String()
		if len(s) > 40 {
			s = s[:37] + "..."
		}
		return fmt.Sprintf("str %q", s)
	case reflect.Slice, reflect.Array:
		return fmt.Sprintf("sequence of %d items", rv.Len())
	case reflect.Map:
		return fmt.Sprintf("map of %d entries", rv.Len())
	case reflect.Func:
		return fmt.Sprintf("func %s", rv.Type())
	}
	return fmt.Sprintf("%T value", v)
}

// SlotLabel names the checked slot the way messages refer to it.
func SlotLabel(slot string) string {
	switch slot {
	case "", "value":
		return "value"
	case "return":
		return "return value"
	}
	return fmt.Sprintf("%q", slot)
}
