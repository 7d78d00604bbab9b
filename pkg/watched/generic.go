package watched

import (
	"context"
	"sync"

	"fieldwatch-agent/pkg/identitykey"
	"fieldwatch-agent/pkg/multiset"
)

// Generic is the Default-kind container (spec.md §4.3: any container type,
// or any method, absent from the known-methods table). Rather than an
// inline per-element capture, every Mutate call takes a full before/after
// bag snapshot under the container's reentrant lock and reports the
// symmetric difference as one CaptureMutator call — this is the fallback
// catalog.Classify selects for a method this module has no table entry
// for, and what a future container type gets for free without adding a
// single entry to the known-methods table. Elements are identity-keyed
// like every other container here, so they must be reference-shaped
// (pointers, maps, etc.) — the Go analogue of the JVM's object references.
type Generic struct {
	mu    sync.Mutex
	items []any
}

// NewGeneric returns an empty, ready-to-use Generic container.
func NewGeneric() *Generic { return &Generic{} }

// Mutate runs fn against a copy of the current contents and installs its
// result as the new contents, bracketed by Enter/Leave and a before/after
// diff exactly as spec.md §4.3's Default path prescribes. synchronize
// mirrors the bytecode-rewriter's own choice of whether this particular
// call site needs the container lock (e.g. a nestmate helper that already
// holds it would pass false).
func (g *Generic) Mutate(ctx context.Context, synchronize bool, fn func(items []any) []any) {
	outermost, ctx := hooks.Enter(ctx, g, synchronize)

	before := g.BagSnapshot()
	g.mu.Lock()
	g.items = fn(append([]any(nil), g.items...))
	g.mu.Unlock()
	after := g.BagSnapshot()

	if outermost {
		hooks.CaptureMutator(ctx, g, before, after)
	}
	hooks.Leave(ctx, g, synchronize)
}

// BagSnapshot builds the identity-keyed multiset AgentRuntime diffs to
// produce ContainerModifications: one entry per distinct element, counted
// by occurrence, so a duplicate removed from a 3-copy bag still reports
// correctly as "count 3 -> 2" rather than vanishing entirely.
func (g *Generic) BagSnapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := multiset.New[identitykey.Key]()
	for _, item := range g.items {
		ms.Add(identitykey.Of(item), item)
	}
	return ms
}

// Snapshot returns a defensive copy of the current contents.
func (g *Generic) Snapshot() []any {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]any, len(g.items))
	copy(out, g.items)
	return out
}

// Identity returns this container's identity key.
func (g *Generic) Identity() identitykey.Key { return identitykey.Of(g) }
