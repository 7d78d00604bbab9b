package watched

import (
	"context"
	"sync"
	"testing"
)

// recordedCall is one captured hook invocation, enough to assert ordering
// and payload across every scenario below.
type recordedCall struct {
	kind       string // "field", "inline", "mutator"
	element    any
	isAddition bool
}

type fakeHooks struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeHooks) record(c recordedCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeHooks) snapshot() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeHooks) CaptureFieldWrite(_ context.Context, container, _ any, _, _ string, _ bool) {
	f.record(recordedCall{kind: "field", element: container})
}
func (f *fakeHooks) CaptureInline(_ context.Context, _ any, element any, isAddition bool) {
	f.record(recordedCall{kind: "inline", element: element, isAddition: isAddition})
}
func (f *fakeHooks) CaptureMutator(_ context.Context, _ any, _, _ Snapshot) {
	f.record(recordedCall{kind: "mutator"})
}
func (f *fakeHooks) Enter(ctx context.Context, _ any, _ bool) (bool, context.Context) {
	return true, ctx
}
func (f *fakeHooks) Leave(context.Context, any, bool) {}
func (f *fakeHooks) EnterWithCopies(ctx context.Context, _ *Generic, _ CopiesMap) context.Context {
	return ctx
}
func (f *fakeHooks) LeaveWithCopies(context.Context, CopiesMap) {}

// Scenario 1 (spec.md §8): a single list on a single thread — add, add,
// remove — must capture exactly that sequence in order.
func TestList_SingleThread_AddAddRemove(t *testing.T) {
	fake := &fakeHooks{}
	defer SetHooksForTest(fake)()

	l := NewList[string]()
	ctx := context.Background()
	l.Add(ctx, "a")
	l.Add(ctx, "b")
	if ok := l.Remove(ctx, "a"); !ok {
		t.Fatalf("expected removal of present element to succeed")
	}

	calls := fake.snapshot()
	if len(calls) != 3 {
		t.Fatalf("expected 3 captured calls, got %d: %+v", len(calls), calls)
	}
	want := []recordedCall{
		{kind: "inline", element: "a", isAddition: true},
		{kind: "inline", element: "b", isAddition: true},
		{kind: "inline", element: "a", isAddition: false},
	}
	for i, w := range want {
		if calls[i] != w {
			t.Fatalf("call %d: want %+v, got %+v", i, w, calls[i])
		}
	}
	if got := l.Snapshot(); len(got) != 1 || got[0] != "b" {
		t.Fatalf("expected remaining contents [b], got %v", got)
	}
}

// Scenario 2: addAll on a list delegates to Add per element, so the
// Replaceable classification produces one inline capture per element
// rather than a single bag-diff.
func TestList_AddAll_DelegatesPerElement(t *testing.T) {
	fake := &fakeHooks{}
	defer SetHooksForTest(fake)()

	l := NewList[int]()
	ctx := context.Background()
	l.AddAll(ctx, []int{1, 2, 3})

	calls := fake.snapshot()
	if len(calls) != 3 {
		t.Fatalf("expected 3 captured calls from addAll, got %d", len(calls))
	}
	for _, c := range calls {
		if c.kind != "inline" || !c.isAddition {
			t.Fatalf("expected all-additions inline captures, got %+v", c)
		}
	}
}

// Scenario 3: concurrent adders on a set must each capture exactly once,
// with no lost or duplicated captures despite the shared map.
func TestSet_ConcurrentAdds_EachCapturedOnce(t *testing.T) {
	fake := &fakeHooks{}
	defer SetHooksForTest(fake)()

	s := NewSet[int]()
	ctx := context.Background()
	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			s.Add(ctx, v)
		}(i)
	}
	wg.Wait()

	if got := s.Len(); got != n {
		t.Fatalf("expected %d members, got %d", n, got)
	}
	calls := fake.snapshot()
	if len(calls) != n {
		t.Fatalf("expected %d captured inserts, got %d", n, len(calls))
	}

	// A duplicate add of an already-present element must not re-capture.
	if s.Add(ctx, 0) {
		t.Fatalf("expected re-adding an existing member to report no change")
	}
	if got := len(fake.snapshot()); got != n {
		t.Fatalf("expected no additional capture for a no-op add, got %d calls", got)
	}
}

// Scenario 5: map put/put/remove — Put reports the new entry each time
// (even when replacing an existing key), Remove reports the removed entry.
func TestMap_PutPutRemove(t *testing.T) {
	fake := &fakeHooks{}
	defer SetHooksForTest(fake)()

	m := NewMap[string, int]()
	ctx := context.Background()
	m.Put(ctx, "k", 1)
	prev, had := m.Put(ctx, "k", 2)
	if !had || prev != 1 {
		t.Fatalf("expected previous value 1, got %d (had=%v)", prev, had)
	}
	removed, had := m.Remove(ctx, "k")
	if !had || removed != 2 {
		t.Fatalf("expected removed value 2, got %d (had=%v)", removed, had)
	}

	calls := fake.snapshot()
	if len(calls) != 3 {
		t.Fatalf("expected 3 captured calls, got %d", len(calls))
	}
	if calls[0].kind != "inline" || !calls[0].isAddition {
		t.Fatalf("expected first put to capture an addition, got %+v", calls[0])
	}
	if calls[1].kind != "inline" || !calls[1].isAddition {
		t.Fatalf("expected replacing put to also capture an addition, got %+v", calls[1])
	}
	if calls[2].kind != "inline" || calls[2].isAddition {
		t.Fatalf("expected remove to capture a removal, got %+v", calls[2])
	}
	if _, had := m.Get("k"); had {
		t.Fatalf("expected key removed")
	}
}

// Field writes report through CaptureFieldWrite, once per Set call,
// carrying the newly-assigned container.
func TestField_Set_CapturesEachWrite(t *testing.T) {
	fake := &fakeHooks{}
	defer SetHooksForTest(fake)()

	owner := &struct{ Name string }{Name: "owner"}
	f := NewField[*List[int]]("Holder", "items", owner, true, nil)
	ctx := context.Background()

	first := NewList[int]()
	previous := f.Set(ctx, first)
	if previous != nil {
		t.Fatalf("expected nil previous value on first write")
	}
	second := NewList[int]()
	previous = f.Set(ctx, second)
	if previous != first {
		t.Fatalf("expected previous write returned, got %v", previous)
	}

	calls := fake.snapshot()
	if len(calls) != 2 {
		t.Fatalf("expected 2 captured field writes, got %d", len(calls))
	}
	if calls[0].element != any(first) || calls[1].element != any(second) {
		t.Fatalf("expected each write's new container captured, got %+v", calls)
	}
}

// Default-kind Generic containers report a single bag-diff per Mutate call
// rather than per-element captures.
func TestGeneric_Mutate_SingleMutatorCapture(t *testing.T) {
	fake := &fakeHooks{}
	defer SetHooksForTest(fake)()

	g := NewGeneric()
	owner := &struct{}{}
	ctx := context.Background()
	g.Mutate(ctx, true, func(items []any) []any {
		return append(items, owner)
	})

	calls := fake.snapshot()
	if len(calls) != 1 || calls[0].kind != "mutator" {
		t.Fatalf("expected exactly 1 mutator capture, got %+v", calls)
	}
	if got := g.Snapshot(); len(got) != 1 || got[0] != any(owner) {
		t.Fatalf("expected contents [owner], got %v", got)
	}
}

func TestFieldOpTracker_BeginFinish_DelegatesToHooks(t *testing.T) {
	fake := &fakeHooks{}
	defer SetHooksForTest(fake)()

	c1, c2 := NewGeneric(), NewGeneric()
	tracker := BeginFieldOps(context.Background(), c1, c2)
	if tracker.Context() == nil {
		t.Fatalf("expected non-nil context from BeginFieldOps")
	}
	tracker.Finish()
}
