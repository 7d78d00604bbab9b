package watched

import (
	"context"
	"sync"
)

// Field is the instrumented wrapper for a tracked field (spec.md §4.4's
// "Field-write instrumentation" role): every Set call is the equivalent of
// a rewritten `putfield`, reporting the new container, the owning object,
// and whether to pay for a stack capture on this write.
type Field[T any] struct {
	mu sync.Mutex

	ownerClass string
	fieldName  string
	owner      any
	saveStack  bool
	value      T
}

// NewField returns a Field ready to track writes against ownerClass.fieldName
// on owner. owner is whatever object value identitykey.Of can key (a
// pointer, typically); it may be nil for a field this module treats as
// static. saveStack controls whether CaptureFieldWrite is asked to take a
// stack trace for this field (spec.md's per-field stack-capture flag).
func NewField[T any](ownerClass, fieldName string, owner any, saveStack bool, initial T) *Field[T] {
	return &Field[T]{ownerClass: ownerClass, fieldName: fieldName, owner: owner, saveStack: saveStack, value: initial}
}

// Get reads the current value. Reads are never instrumented — spec.md only
// tracks writes.
func (f *Field[T]) Get() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Set assigns v, reports the write to AgentRuntime, and returns the value
// that was previously held.
func (f *Field[T]) Set(ctx context.Context, v T) T {
	f.mu.Lock()
	previous := f.value
	f.value = v
	f.mu.Unlock()

	hooks.CaptureFieldWrite(ctx, v, f.owner, f.ownerClass, f.fieldName, f.saveStack)
	return previous
}

// Owner returns the object this field is declared on, for a FieldOpTracker
// or the rewriter's classifier to attribute field accesses back to an
// owning instance.
func (f *Field[T]) Owner() any { return f.owner }
