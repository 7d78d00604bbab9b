package catalog

import (
	"reflect"
	"testing"
)

type base struct {
	Items int
}

type derived struct {
	base
	Extra string
}

func TestRegisterField_SymbolicOwner(t *testing.T) {
	c := New()
	ownerClass := TypeName(reflect.TypeOf(base{}))

	c.RegisterField(ownerClass, "Items", "int", reflect.TypeOf(derived{}))

	owner, ok := c.LookupOwner(TypeName(reflect.TypeOf(derived{})), "Items")
	if !ok {
		t.Fatalf("expected symbolic owner to resolve through embedding")
	}
	if owner != ownerClass {
		t.Fatalf("expected owner %q, got %q", ownerClass, owner)
	}

	// The field also resolves against its own declaring class directly.
	owner, ok = c.LookupOwner(ownerClass, "Items")
	if !ok || owner != ownerClass {
		t.Fatalf("expected direct owner resolution, got %q, %v", owner, ok)
	}
}

func TestRegisterField_Idempotent(t *testing.T) {
	c := New()
	owner := TypeName(reflect.TypeOf(base{}))
	c.RegisterField(owner, "Items", "int", reflect.TypeOf(derived{}))
	c.RegisterField(owner, "Items", "int", reflect.TypeOf(derived{}))

	if !c.ShouldRewriteWrite("Items", "int") {
		t.Fatalf("expected field to be tracked")
	}
}

func TestShouldRewriteWrite_UnknownField(t *testing.T) {
	c := New()
	if c.ShouldRewriteWrite("Nope", "int") {
		t.Fatalf("expected unknown field to not be rewritten")
	}
}

func TestTakeUnprocessedNestmates_DrainsAndMarksProcessed(t *testing.T) {
	c := New()
	c.AddNestmate("pkg.Helper")
	c.AddNestmate("pkg.Other")

	got := c.TakeUnprocessedNestmates()
	if len(got) != 2 {
		t.Fatalf("expected 2 unprocessed nestmates, got %d", len(got))
	}
	if more := c.TakeUnprocessedNestmates(); more != nil {
		t.Fatalf("expected drained set to stay empty, got %v", more)
	}

	// Re-adding an already-prepared nestmate is a no-op (termination rule).
	c.AddNestmate("pkg.Helper")
	if more := c.TakeUnprocessedNestmates(); more != nil {
		t.Fatalf("expected already-prepared nestmate to not reappear, got %v", more)
	}
}

func TestProcessed_MarksOnce(t *testing.T) {
	c := New()
	if c.Processed("Foo") {
		t.Fatalf("expected Foo unprocessed initially")
	}
	c.MarkProcessed("Foo")
	if !c.Processed("Foo") {
		t.Fatalf("expected Foo processed after MarkProcessed")
	}
}

