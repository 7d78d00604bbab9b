package multiset

import "testing"

func TestDiff_AllAdditions(t *testing.T) {
	before := New[string]()
	after := New[string]()
	after.Add("a", "a")
	after.Add("b", "b")

	deltas := Diff(before, after)
	if len(deltas) != 2 {
		t.Fatalf("expected 2 deltas, got %d", len(deltas))
	}
	for _, d := range deltas {
		if !d.IsAdd {
			t.Fatalf("expected only additions, got removal for %v", d.Key)
		}
	}
}

func TestDiff_RemovalsPrecedeAdditions(t *testing.T) {
	before := New[string]()
	before.Add("a", "a")
	before.Add("b", "b")

	after := New[string]()
	after.Add("b", "b")
	after.Add("c", "c")

	deltas := Diff(before, after)
	if len(deltas) != 2 {
		t.Fatalf("expected 2 deltas, got %d", len(deltas))
	}
	if deltas[0].IsAdd || deltas[0].Key != "a" {
		t.Fatalf("expected first delta to be removal of a, got %+v", deltas[0])
	}
	if !deltas[1].IsAdd || deltas[1].Key != "c" {
		t.Fatalf("expected second delta to be addition of c, got %+v", deltas[1])
	}
}

func TestDiff_NoChange(t *testing.T) {
	before := New[string]()
	before.Add("a", "a")
	after := New[string]()
	after.Add("a", "a")

	if deltas := Diff(before, after); len(deltas) != 0 {
		t.Fatalf("expected no deltas for identical snapshots, got %v", deltas)
	}
}

func TestDiff_DuplicateKeysUseCounts(t *testing.T) {
	before := New[string]()
	before.Add("a", "a")
	before.Add("a", "a")
	before.Add("a", "a")

	after := New[string]()
	after.Add("a", "a")

	deltas := Diff(before, after)
	if len(deltas) != 2 {
		t.Fatalf("expected 2 removal deltas for count 3->1, got %d", len(deltas))
	}
	for _, d := range deltas {
		if d.IsAdd {
			t.Fatalf("expected only removals")
		}
	}
}

func TestCardinality_MatchesDiffLength(t *testing.T) {
	before := New[string]()
	before.Add("a", "a")
	before.Add("b", "b")
	after := New[string]()
	after.Add("b", "b")
	after.Add("c", "c")
	after.Add("c", "c")

	if got, want := Cardinality(before, after), len(Diff(before, after)); got != want {
		t.Fatalf("cardinality %d != diff length %d", got, want)
	}
}

func TestDiff_ApplyReproducesAfter(t *testing.T) {
	before := New[string]()
	before.Add("a", "a")
	before.Add("b", "b")
	after := New[string]()
	after.Add("b", "b")
	after.Add("c", "c")

	result := New[string]()
	for _, k := range before.Keys() {
		for i := 0; i < before.Count(k); i++ {
			result.Add(k, before.Element(k))
		}
	}
	for _, d := range Diff(before, after) {
		if d.IsAdd {
			result.Add(d.Key, d.Element)
		} else {
			result.Remove(d.Key)
		}
	}
	if result.Len() != after.Len() {
		t.Fatalf("expected applying delta to reproduce after, got len %d want %d", result.Len(), after.Len())
	}
	for _, k := range after.Keys() {
		if result.Count(k) != after.Count(k) {
			t.Fatalf("count mismatch for %v: got %d want %d", k, result.Count(k), after.Count(k))
		}
	}
}
