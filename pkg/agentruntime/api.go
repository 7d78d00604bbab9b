package agentruntime

import (
	"context"

	"fieldwatch-agent/pkg/historystore"
	"fieldwatch-agent/pkg/identitykey"
	"fieldwatch-agent/pkg/stack"
	"fieldwatch-agent/pkg/watched"
)

// SetTrackingEnabled is the external `enable-tracking`/`set-tracking-
// enabled` operation (spec.md §4.5/§6): toggles whether writes to
// ownerClass.field get recorded.
func (r *Runtime) SetTrackingEnabled(ownerClass, field string, owner any, enabled bool) {
	locator := historystore.FieldLocator{Class: ownerClass, Field: field, Owner: identitykey.Of(owner)}
	r.history.SetTrackingEnabled(locator, enabled)
}

// ClearHistory is the external `clear-history` operation.
func (r *Runtime) ClearHistory(ownerClass, field string) {
	r.history.ClearHistory(ownerClass, field)
}

// GetFieldModifications is the external `get-field-modifications`
// operation.
func (r *Runtime) GetFieldModifications(ownerClass, field string, owner any) []historystore.FieldModification {
	locator := historystore.FieldLocator{Class: ownerClass, Field: field, Owner: identitykey.Of(owner)}
	return r.history.GetFieldModifications(locator)
}

// GetContainerModifications is the external `get-container-modifications`
// operation. container is identity-keyed the same way CaptureInline keys
// it, so callers pass the same reference they track (typically a
// watched.List/Set/Map/Generic pointer, or whatever got assigned to a
// tracked field).
func (r *Runtime) GetContainerModifications(container any) []historystore.ContainerModification {
	return r.history.GetContainerModifications(identitykey.Of(container))
}

// GetFieldStack is the external `get-stack(owner, field, index)` operation.
func (r *Runtime) GetFieldStack(ownerClass, field string, owner any, index int) stack.Frames {
	locator := historystore.FieldLocator{Class: ownerClass, Field: field, Owner: identitykey.Of(owner)}
	return r.history.GetFieldStack(locator, index)
}

// GetContainerStack is the external `get-stack(container, index)`
// operation.
func (r *Runtime) GetContainerStack(container any, index int) stack.Frames {
	return r.history.GetContainerStack(identitykey.Of(container), index)
}

// EmulateFieldWatchpoint is the external `emulate-field-watchpoint`
// operation: forces CaptureFieldWrite to run for a field write the target
// program already performed through an uninstrumented path (e.g. during a
// debugger-driven hot-attach), given the container that was assigned and
// the owning object. It is the same entry point a watched.Field[T].Set
// call reaches, invoked directly rather than through a wrapper method.
func (r *Runtime) EmulateFieldWatchpoint(ownerClass, field string, owner, container any, saveStack bool) {
	r.CaptureFieldWrite(context.Background(), container, owner, ownerClass, field, saveStack)
}

// NewCopiesMap returns an empty watched.CopiesMap, for a caller (typically
// generated nestmate code, or a hand-written method following the same
// convention) that drives Runtime.EnterWithCopies/LeaveWithCopies directly
// rather than through watched.BeginFieldOps, which builds its own map.
func NewCopiesMap() watched.CopiesMap {
	return make(watched.CopiesMap)
}
