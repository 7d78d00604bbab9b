package watched

import (
	"context"
	"fmt"
	"sync"

	"fieldwatch-agent/pkg/identitykey"
)

// Set is the instrumented stand-in for a tracked java.util.Set field:
// Add/Remove report whether membership actually changed (a no-op add of an
// already-present element captures nothing, matching java.util.Set's
// contract), which is exactly what makes it safe to classify them
// Documented rather than Default.
type Set[T comparable] struct {
	mu      sync.Mutex
	members map[T]struct{}
}

// NewSet returns an empty, ready-to-use Set.
func NewSet[T comparable]() *Set[T] {
	return &Set[T]{members: make(map[T]struct{})}
}

// Add inserts v, reporting the insertion only if v was not already a
// member.
func (s *Set[T]) Add(ctx context.Context, v T) bool {
	s.mu.Lock()
	_, present := s.members[v]
	if !present {
		s.members[v] = struct{}{}
	}
	s.mu.Unlock()

	if !present {
		hooks.CaptureInline(ctx, s, v, true)
	}
	return !present
}

// Remove deletes v, reporting the removal only if v was present.
func (s *Set[T]) Remove(ctx context.Context, v T) bool {
	s.mu.Lock()
	_, present := s.members[v]
	if present {
		delete(s.members, v)
	}
	s.mu.Unlock()

	if present {
		hooks.CaptureInline(ctx, s, v, false)
	}
	return present
}

// AddAll delegates to Add per element (Replaceable).
func (s *Set[T]) AddAll(ctx context.Context, vs []T) bool {
	changed := false
	for _, v := range vs {
		if s.Add(ctx, v) {
			changed = true
		}
	}
	return changed
}

// RemoveAll delegates to Remove per element (Replaceable).
func (s *Set[T]) RemoveAll(ctx context.Context, vs []T) bool {
	changed := false
	for _, v := range vs {
		if s.Remove(ctx, v) {
			changed = true
		}
	}
	return changed
}

// Contains is Immutable.
func (s *Set[T]) Contains(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[v]
	return ok
}

// Len is Immutable.
func (s *Set[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// Snapshot returns the current members in no particular order.
func (s *Set[T]) Snapshot() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, 0, len(s.members))
	for v := range s.members {
		out = append(out, v)
	}
	return out
}

func (s *Set[T]) String() string {
	return fmt.Sprintf("Set%v", s.Snapshot())
}

// Identity returns this Set's identity key.
func (s *Set[T]) Identity() identitykey.Key { return identitykey.Of(s) }
