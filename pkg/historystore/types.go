package historystore

import (
	"fieldwatch-agent/pkg/identitykey"
	"fieldwatch-agent/pkg/stack"
)

// FieldLocator identifies a tracked field instance: declaring class name,
// field name, and the owning object (or the zero Key for a static field).
// Equality requires class and field to match and Owner to be identical
// (pointer-equal) or both the static zero key (spec.md §3).
type FieldLocator struct {
	Class string
	Field string
	Owner identitykey.Key
}

// Hash precomputes the combined hash spec.md §3 describes: the owner's
// identity hash mixed with the string hashes of class and field.
func (l FieldLocator) Hash() uint64 {
	return identitykey.Combine(l.Owner.Hash(), identitykey.HashString(l.Class), identitykey.HashString(l.Field))
}

func (l FieldLocator) String() string {
	return l.Class + "#" + l.Field
}

// FieldModification is one captured field write: the call stack that made
// it and the container value that was assigned (the zero Key if the field
// was set to nil).
type FieldModification struct {
	Stack     stack.Frames
	Container identitykey.Key
}

// ContainerModification is one captured element insertion or removal.
type ContainerModification struct {
	Stack      stack.Frames
	Element    any
	IsAddition bool
}
