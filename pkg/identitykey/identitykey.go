// Package identitykey wraps arbitrary values so that equality and hashing
// use pointer identity rather than the value's own Equal/Hash semantics.
// It is the building block every identity-keyed map or multiset in this
// module is built on top of.
package identitykey

import (
	"fmt"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// Key wraps a single object reference. Two Keys are equal iff they wrap
// the same pointer (or are both the zero Key). The hash is computed once,
// at construction, from the pointer's address combined with its dynamic
// type name — this keeps the hash stable even though Go never exposes a
// raw identity hash the way a JVM does.
type Key struct {
	ptr  uintptr
	typ  reflect.Type
	hash uint64
}

// Of returns the identity key for v. v must be a pointer-shaped value
// (pointer, map, chan, func, or an interface wrapping one, or a slice —
// whose header itself doesn't identify the backing array, so slices are
// keyed by their first element's address when len > 0). Passing a
// non-pointer-shaped value (e.g. a plain int or string) panics: identity
// doesn't exist for values, only for references, and callers that hit this
// have a modeling bug, not a runtime condition to recover from.
func Of(v any) Key {
	if v == nil {
		return Key{}
	}
	rv := reflect.ValueOf(v)
	ptr, typ := addressOf(rv)
	h := xxhash.New()
	fmt.Fprintf(h, "%s:%d", typ.String(), ptr)
	return Key{ptr: ptr, typ: typ, hash: h.Sum64()}
}

func addressOf(rv reflect.Value) (uintptr, reflect.Type) {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return rv.Pointer(), rv.Type()
	case reflect.Slice:
		if rv.Len() == 0 {
			return 0, rv.Type()
		}
		return rv.Pointer(), rv.Type()
	case reflect.Interface:
		return addressOf(rv.Elem())
	default:
		panic(fmt.Sprintf("identitykey: %s is not a reference type", rv.Kind()))
	}
}

// IsZero reports whether k is the identity key for a nil reference.
func (k Key) IsZero() bool { return k.ptr == 0 && k.typ == nil }

// Hash returns the precomputed identity hash.
func (k Key) Hash() uint64 { return k.hash }

func (k Key) String() string {
	if k.typ == nil {
		return "identitykey(nil)"
	}
	return fmt.Sprintf("identitykey(%s@%#x)", k.typ, k.ptr)
}

// Combine mixes two precomputed hashes the way a FieldLocator combines an
// owning object's identity hash with the string hashes of its class and
// field name (spec: "hash: precomputed; combines identity hash of owning
// object with string hashes of class and field").
func Combine(hashes ...uint64) uint64 {
	h := xxhash.New()
	for _, v := range hashes {
		fmt.Fprintf(h, "%d|", v)
	}
	return h.Sum64()
}

// HashString hashes a plain string the same way FieldLocator hashes class
// and field names.
func HashString(s string) uint64 {
	return xxhash.Sum64String(s)
}
