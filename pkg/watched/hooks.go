// Package watched provides the instrumented wrapper types that stand in
// for bytecode retransformation (see SPEC_FULL.md §0): Field[T] captures
// field writes, and List[T]/Set[T]/Map[K,V]/Generic bracket their
// mutators with exactly the AgentRuntime calls spec.md §4.4's
// ClassRewriter would have inserted into rewritten bytecode.
package watched

import (
	"context"

	"fieldwatch-agent/pkg/identitykey"
	"fieldwatch-agent/pkg/multiset"
)

// Snapshot is the bag-of-identities a Default-kind mutator takes before and
// after its call, for AgentRuntime to diff (spec.md §4.3's Default path).
type Snapshot = *multiset.Multiset[identitykey.Key]

// CopyState is one tracked Generic container's entry snapshot, kept by a
// FieldOpTracker across every touch within one method body (spec.md §4.4's
// "nestmate of a container class" role).
type CopyState struct {
	container *Generic
	before    Snapshot
}

// NewCopyState pairs container with the bag snapshot taken at entry.
func NewCopyState(container *Generic, before Snapshot) *CopyState {
	return &CopyState{container: container, before: before}
}

// Container returns the tracked container.
func (c *CopyState) Container() *Generic { return c.container }

// Before returns the entry-time bag snapshot.
func (c *CopyState) Before() Snapshot { return c.before }

// CopiesMap is the per-call identity-map of container to its entry
// snapshot that a field-owner or nestmate method threads through its own
// body (spec.md §4.2 `enter-with-copies`/`leave-with-copies`).
type CopiesMap = map[identitykey.Key]*CopyState

// Hooks is the subset of AgentRuntime's hot-path entry points the watched
// wrapper types call into. It is an interface, rather than a direct
// dependency on pkg/agentruntime, so this package never imports
// agentruntime — agentruntime imports watched, not the other way round.
type Hooks interface {
	CaptureFieldWrite(ctx context.Context, container, owner any, ownerClass, field string, saveStack bool)
	CaptureInline(ctx context.Context, container, element any, isAddition bool)
	CaptureMutator(ctx context.Context, container any, before, after Snapshot)
	Enter(ctx context.Context, container any, synchronize bool) (outermost bool, nextCtx context.Context)
	Leave(ctx context.Context, container any, synchronize bool)
	EnterWithCopies(ctx context.Context, container *Generic, copies CopiesMap) context.Context
	LeaveWithCopies(ctx context.Context, copies CopiesMap)
}

// hooks is the process-wide Hooks implementation, installed by
// agentruntime.New. Tests install their own via SetHooksForTest.
var hooks Hooks = noopHooks{}

// Install wires the real AgentRuntime into every watched wrapper. Called
// once, from agentruntime.New.
func Install(h Hooks) { hooks = h }

// SetHooksForTest swaps the installed Hooks and returns a restore func,
// for package-level tests that want to assert on captured calls without
// standing up the whole agentruntime.Runtime.
func SetHooksForTest(h Hooks) (restore func()) {
	prev := hooks
	hooks = h
	return func() { hooks = prev }
}

type noopHooks struct{}

func (noopHooks) CaptureFieldWrite(context.Context, any, any, string, string, bool) {}
func (noopHooks) CaptureInline(context.Context, any, any, bool)                     {}
func (noopHooks) CaptureMutator(context.Context, any, Snapshot, Snapshot)           {}
func (noopHooks) Enter(ctx context.Context, _ any, _ bool) (bool, context.Context) {
	return true, ctx
}
func (noopHooks) Leave(context.Context, any, bool) {}
func (noopHooks) EnterWithCopies(ctx context.Context, _ *Generic, _ CopiesMap) context.Context {
	return ctx
}
func (noopHooks) LeaveWithCopies(context.Context, CopiesMap) {}
