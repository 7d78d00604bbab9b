package historystore

import (
	"sync"
	"testing"

	"fieldwatch-agent/pkg/identitykey"
)

func TestAppendFieldModification_InactiveLocatorIsNoOp(t *testing.T) {
	s := New()
	locator := FieldLocator{Class: "Foo", Field: "items"}
	if s.AppendFieldModification(locator, FieldModification{}) {
		t.Fatalf("expected append against an inactive locator to be a no-op")
	}
	if len(s.GetFieldModifications(locator)) != 0 {
		t.Fatalf("expected no modifications recorded")
	}
}

func TestAppendFieldModification_ActiveLocatorAppendsInOrder(t *testing.T) {
	s := New()
	locator := FieldLocator{Class: "Foo", Field: "items"}
	s.SetTrackingEnabled(locator, true)

	c1 := identitykey.Of(&struct{}{})
	c2 := identitykey.Of(&struct{}{})
	s.AppendFieldModification(locator, FieldModification{Container: c1})
	s.AppendFieldModification(locator, FieldModification{Container: c2})

	mods := s.GetFieldModifications(locator)
	if len(mods) != 2 || mods[0].Container != c1 || mods[1].Container != c2 {
		t.Fatalf("expected append order preserved, got %+v", mods)
	}
}

func TestClearHistory_RemovesMatchingLocatorsAndOrphanedContainers(t *testing.T) {
	s := New()
	locator := FieldLocator{Class: "Foo", Field: "items"}
	s.SetTrackingEnabled(locator, true)

	container := identitykey.Of(&struct{}{})
	s.RegisterTracker(container, locator)
	s.AppendFieldModification(locator, FieldModification{Container: container})
	s.AppendContainerModification(container, ContainerModification{Element: "a", IsAddition: true})

	s.ClearHistory("Foo", "items")

	if len(s.GetFieldModifications(locator)) != 0 {
		t.Fatalf("expected field modifications cleared")
	}
	if len(s.GetContainerModifications(container)) != 0 {
		t.Fatalf("expected container modifications cleared for an orphaned container")
	}
	if s.IsActive(locator) {
		t.Fatalf("expected locator to no longer be active after clear")
	}
}

func TestClearHistory_KeepsContainerTrackedByAnotherLocator(t *testing.T) {
	s := New()
	a := FieldLocator{Class: "A", Field: "items"}
	b := FieldLocator{Class: "B", Field: "items"}
	s.SetTrackingEnabled(a, true)
	s.SetTrackingEnabled(b, true)

	container := identitykey.Of(&struct{}{})
	s.RegisterTracker(container, a)
	s.RegisterTracker(container, b)
	s.AppendContainerModification(container, ContainerModification{Element: "x", IsAddition: true})

	s.ClearHistory("A", "items")

	if len(s.GetContainerModifications(container)) != 1 {
		t.Fatalf("expected container history to survive while tracker B remains active")
	}
}

func TestSetTrackingEnabled_Idempotent(t *testing.T) {
	s := New()
	locator := FieldLocator{Class: "Foo", Field: "items"}
	s.SetTrackingEnabled(locator, true)
	s.SetTrackingEnabled(locator, true)
	if !s.IsActive(locator) {
		t.Fatalf("expected locator to remain active")
	}
}

func TestConcurrentAppends_DoNotRace(t *testing.T) {
	s := New()
	locator := FieldLocator{Class: "Foo", Field: "items"}
	s.SetTrackingEnabled(locator, true)
	container := identitykey.Of(&struct{}{})
	s.RegisterTracker(container, locator)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AppendContainerModification(container, ContainerModification{IsAddition: true})
		}()
	}
	wg.Wait()

	if got := len(s.GetContainerModifications(container)); got != 100 {
		t.Fatalf("expected 100 modifications, got %d", got)
	}
}

func TestGetStack_OutOfRangeReturnsNil(t *testing.T) {
	s := New()
	locator := FieldLocator{Class: "Foo", Field: "items"}
	if s.GetFieldStack(locator, 0) != nil {
		t.Fatalf("expected nil stack for unknown locator")
	}
}
