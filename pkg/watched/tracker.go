package watched

import "context"

// FieldOpTracker is the Go stand-in for the "nestmate of a container class,
// or a static method of a container class" role in spec.md §4.4: a method
// body that touches the same Default-kind (Generic) container more than
// once needs its bag-copy taken once, at the method's own entry, rather
// than once per access. A rewritten bytecode method gets this
// prologue/epilogue inserted automatically; here the method body
// constructs a FieldOpTracker via BeginFieldOps and calls Finish on return.
type FieldOpTracker struct {
	ctx    context.Context
	copies CopiesMap
}

// BeginFieldOps implements the prologue: allocate a local identity-map of
// container to its entry snapshot, and enter every Generic container this
// method's body is about to touch. List/Set/Map containers need no
// bracket — their Documented/Replaceable methods already capture inline
// per call.
func BeginFieldOps(ctx context.Context, containers ...*Generic) *FieldOpTracker {
	copies := make(CopiesMap, len(containers))
	for _, c := range containers {
		ctx = hooks.EnterWithCopies(ctx, c, copies)
	}
	return &FieldOpTracker{ctx: ctx, copies: copies}
}

// Context returns the context carrying this tracker's reentrancy state, to
// pass into the instrumented calls the tracked method body makes.
func (t *FieldOpTracker) Context() context.Context { return t.ctx }

// Finish implements the epilogue: leave every container captured in the
// copies map, reporting each one's before/after diff exactly once per
// outermost method invocation.
func (t *FieldOpTracker) Finish() {
	hooks.LeaveWithCopies(t.ctx, t.copies)
}
