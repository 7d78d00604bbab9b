package watched

import (
	"context"
	"fmt"
	"sync"

	"fieldwatch-agent/pkg/identitykey"
)

// entry is the element watched.Map reports for a Put/Remove: the recorded
// ContainerModification element is the map.Entry-shaped pair, not the bare
// key or value, matching spec.md §4.3's MapEntry wrapping (and its Open
// Question about that entry's identity hash — see SPEC_FULL.md §9).
type entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Map is the instrumented stand-in for a tracked java.util.Map field.
// Put and Remove are Documented: they capture the map.Entry they just
// changed from their own arguments/return value, with no before/after
// bag-diff.
type Map[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]V
}

// NewMap returns an empty, ready-to-use Map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{items: make(map[K]V)}
}

// Put inserts or replaces the value for key, reporting the insertion of
// the new entry and, if a prior mapping existed, returns its value (the
// removal of the *entry itself* is not separately reported — only the
// Map's net membership change is, matching java.util.Map.put's contract of
// returning the previous value rather than firing a distinct remove).
func (m *Map[K, V]) Put(ctx context.Context, key K, value V) (previous V, had bool) {
	m.mu.Lock()
	previous, had = m.items[key]
	m.items[key] = value
	m.mu.Unlock()

	hooks.CaptureInline(ctx, m, entry[K, V]{Key: key, Value: value}, true)
	return previous, had
}

// Remove deletes key, reporting the removed entry if key was present.
func (m *Map[K, V]) Remove(ctx context.Context, key K) (removed V, had bool) {
	m.mu.Lock()
	removed, had = m.items[key]
	if had {
		delete(m.items, key)
	}
	m.mu.Unlock()

	if had {
		hooks.CaptureInline(ctx, m, entry[K, V]{Key: key, Value: removed}, false)
	}
	return removed, had
}

// PutAll delegates to Put per pair (Replaceable).
func (m *Map[K, V]) PutAll(ctx context.Context, kvs map[K]V) {
	for k, v := range kvs {
		m.Put(ctx, k, v)
	}
}

// Get is Immutable.
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok
}

// Len is Immutable.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Snapshot returns a defensive copy of the current entries.
func (m *Map[K, V]) Snapshot() map[K]V {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[K]V, len(m.items))
	for k, v := range m.items {
		out[k] = v
	}
	return out
}

func (m *Map[K, V]) String() string {
	return fmt.Sprintf("Map%v", m.Snapshot())
}

// Identity returns this Map's identity key.
func (m *Map[K, V]) Identity() identitykey.Key { return identitykey.Of(m) }
