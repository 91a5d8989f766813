package compile

import (
	"math/rand"
	"reflect"

	"github.com/alucardeht/typegate/internal/registry"
)

// Sampling policy: with sampling enabled a container check draws one
// pseudo-random index per invocation and tests only that element,
// keeping the added cost O(1) regardless of container size. Repeated
// calls over a container's lifetime statistically cover it. With
// sampling disabled the container is scanned exhaustively with
// short-circuit on first failure. Both modes share the element
// sub-compilation; only the binding differs.

// randFrom reads the random index source from the environment so
// tests and checkers can rebind it; the fallback is math/rand's
// global source, which is what the compiler binds by default.
func randFrom(env *registry.Scope) uint32 {
	if obj, ok := env.Lookup(registry.SymRand); ok {
		if fn, ok := obj.(func() uint32); ok {
			return fn()
		}
	}
	return rand.Uint32()
}

// sampleIndex draws the index to spot-check for a container of length
// n > 0.
func sampleIndex(env *registry.Scope, n int) int {
	return int(randFrom(env) % uint32(n))
}

// mapEntry returns the idx-th entry of a map in iteration order. Maps
// have no O(1) indexing, so this advances the iterator idx steps.
func mapEntry(rv reflect.Value, idx int) (key, val reflect.Value) {
	iter := rv.MapRange()
	for i := 0; i <= idx && iter.Next(); i++ {
	}
	return iter.Key(), iter.Value()
}

func asSequence(v any) (reflect.Value, bool) {
	if v == nil {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv, true
	}
	return reflect.Value{}, false
}

func asMap(v any) (reflect.Value, bool) {
	if v == nil {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map {
		return rv, true
	}
	return reflect.Value{}, false
}
