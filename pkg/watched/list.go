package watched

import (
	"context"
	"fmt"
	"sync"

	"fieldwatch-agent/pkg/identitykey"
)

// List is the instrumented stand-in for a tracked java.util.List field's
// runtime value: an ordered, duplicate-permitting container whose Add and
// Remove are spec.md §4.3 Documented methods (captured inline from their
// own arguments/return value) and whose AddAll/RemoveAll are Replaceable
// (delegate per-element to Add/Remove, per catalog.Classify).
type List[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewList returns an empty, ready-to-use List.
func NewList[T any]() *List[T] { return &List[T]{} }

// Add appends v and reports the insertion. Matches java.util.List.add's
// Documented classification: one CaptureInline call, no container lock.
func (l *List[T]) Add(ctx context.Context, v T) bool {
	l.mu.Lock()
	l.items = append(l.items, v)
	l.mu.Unlock()

	hooks.CaptureInline(ctx, l, v, true)
	return true
}

// Remove deletes the first occurrence of v (by Go equality, standing in
// for Object.equals) and reports the removal if one was found.
func (l *List[T]) Remove(ctx context.Context, v any) bool {
	l.mu.Lock()
	removed := false
	for i, item := range l.items {
		if any(item) == v {
			l.items = append(l.items[:i], l.items[i+1:]...)
			removed = true
			break
		}
	}
	l.mu.Unlock()

	if removed {
		hooks.CaptureInline(ctx, l, v, false)
	}
	return removed
}

// AddAll appends every element of vs, delegating to Add so each insertion
// is captured individually — the Replaceable classification of
// java.util.Collection.addAll (spec.md §4.3).
func (l *List[T]) AddAll(ctx context.Context, vs []T) bool {
	changed := false
	for _, v := range vs {
		if l.Add(ctx, v) {
			changed = true
		}
	}
	return changed
}

// RemoveAll removes every element in vs that is present, delegating to
// Remove per element.
func (l *List[T]) RemoveAll(ctx context.Context, vs []any) bool {
	changed := false
	for _, v := range vs {
		if l.Remove(ctx, v) {
			changed = true
		}
	}
	return changed
}

// Len is Immutable: no capture, no lock beyond the container's own.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Get is Immutable.
func (l *List[T]) Get(i int) T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items[i]
}

// Snapshot returns a defensive copy of the current contents, for a
// debugger or test assertion — never instrumented.
func (l *List[T]) Snapshot() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

func (l *List[T]) String() string {
	return fmt.Sprintf("List%v", l.Snapshot())
}

// Identity returns the identity key AgentRuntime uses for this container in
// HistoryStore lookups.
func (l *List[T]) Identity() identitykey.Key { return identitykey.Of(l) }
