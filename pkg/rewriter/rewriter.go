// Package rewriter is ClassRewriter's Go substitute (SPEC_FULL.md §0): Go
// cannot retransform a compiled type's bytecode, so instead of emitting
// rewritten methods, Prepare classifies a reflect.Type against the
// known-methods table and records which watched.* wrapper kind and
// per-method classification applies — the same decision the original
// rewriter bakes into bytecode, made once per type and cached exactly the
// way spec.md's `processed` set makes the real rewrite idempotent.
package rewriter

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/golang/snappy"

	"fieldwatch-agent/pkg/catalog"
)

// Kind names the container role Prepare picked for a type, mirroring the
// watched.* wrapper it corresponds to.
type Kind string

const (
	KindList    Kind = "list"
	KindSet     Kind = "set"
	KindMap     Kind = "map"
	KindGeneric Kind = "generic"
)

// Descriptor is what Prepare produces: the debug-dump artifact this module
// writes in place of rewritten class bytes (spec.md §6's DEBUG dump).
type Descriptor struct {
	TypeName string                `json:"type_name"`
	Kind     Kind                  `json:"kind"`
	Methods  map[string]catalog.Kind `json:"methods"`
}

// Registry owns the classification cache for one Catalog. AgentRuntime
// keeps exactly one Registry, bound to the same Catalog it registers
// fields against, so Prepare's idempotency and catalog.processed agree.
type Registry struct {
	cat *catalog.Catalog

	mu    sync.Mutex
	cache map[string]Descriptor
}

// NewRegistry returns a Registry that marks types processed in cat.
func NewRegistry(cat *catalog.Catalog) *Registry {
	return &Registry{cat: cat, cache: make(map[string]Descriptor)}
}

// Prepare classifies t, caching the result so a second call for the same
// type is a no-op returning the cached Descriptor — spec.md §4.1's
// termination rule applied to classification instead of byte-rewriting.
func (r *Registry) Prepare(t reflect.Type) Descriptor {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	typeName := catalog.TypeName(t)

	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.cache[typeName]; ok {
		return d
	}
	r.cat.MarkProcessed(typeName)

	d := Descriptor{
		TypeName: typeName,
		Kind:     classify(t),
		Methods:  classifyMethods(t),
	}
	r.cache[typeName] = d
	return d
}

// classify picks the container role for t by probing for the method
// signatures its watched.* counterpart exposes — the Go analogue of
// walking a JVM type's interface list looking for `java.util.List`,
// `Set`, or `Map`.
func classify(t reflect.Type) Kind {
	ptr := reflect.PtrTo(t)
	switch {
	case hasMethod(ptr, "Put") && hasMethod(ptr, "Get"):
		return KindMap
	case hasMethod(ptr, "Contains") && hasMethod(ptr, "Add"):
		return KindSet
	case hasMethod(ptr, "Get") && hasMethod(ptr, "Add"):
		return KindList
	case t.Kind() == reflect.Map:
		return KindMap
	case t.Kind() == reflect.Slice:
		return KindList
	default:
		return KindGeneric
	}
}

func hasMethod(t reflect.Type, name string) bool {
	_, ok := t.MethodByName(name)
	return ok
}

// knownTypeNameFor maps a Kind to the known-methods table entry its
// watched.* wrapper registered under (see pkg/catalog/knownmethods.go),
// so Prepare reuses the same classification a wrapper method's own
// catalog.Classify call would get at runtime.
func knownTypeNameFor(k Kind) string {
	switch k {
	case KindList:
		return "fieldwatch-agent/pkg/watched.List"
	case KindSet:
		return "fieldwatch-agent/pkg/watched.Set"
	case KindMap:
		return "fieldwatch-agent/pkg/watched.Map"
	default:
		return ""
	}
}

// classifyMethods snapshots every exported method t's pointer type has
// into its Documented/Replaceable/Immutable/Default classification, for
// the debug-dump descriptor. GET /v1/known-methods serves
// catalog.KnownMethods, not this snapshot.
func classifyMethods(t reflect.Type) map[string]catalog.Kind {
	tableName := knownTypeNameFor(classify(t))
	ptr := reflect.PtrTo(t)
	out := make(map[string]catalog.Kind, ptr.NumMethod())
	for i := 0; i < ptr.NumMethod(); i++ {
		name := ptr.Method(i).Name
		out[name] = catalog.Classify(tableName, name)
	}
	return out
}

// DumpDescriptor writes d as snappy-compressed JSON to dir, in place of
// the rewritten class bytes the teacher's class-dump feature would have
// compressed with the same library (spec.md §6's DEBUG-mode dump).
func DumpDescriptor(dir string, d Descriptor) (path string, err error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("rewriter: marshal descriptor for %s: %w", d.TypeName, err)
	}
	compressed := snappy.Encode(nil, raw)
	path = dir + "/" + sanitizeTypeName(d.TypeName) + ".json.snappy"
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return "", fmt.Errorf("rewriter: write descriptor dump %s: %w", path, err)
	}
	return path, nil
}

func sanitizeTypeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return "instrumented_" + string(out)
}
