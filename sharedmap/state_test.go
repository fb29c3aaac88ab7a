package sharedmap

import "testing"

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestMapStateSetDeleteClear(t *testing.T) {
	events := newEventBus()
	s := newMapState(events)

	s.setCore("a", StoredValue{Kind: ValuePlain, Payload: 1})
	if v, ok := s.get("a"); !ok || v.Payload != 1 {
		t.Fatalf("expected a=1, got %+v ok=%v", v, ok)
	}
	if !s.has("a") {
		t.Fatalf("expected has(a) == true")
	}

	s.deleteCore("a")
	if s.has("a") {
		t.Fatalf("expected a removed")
	}

	// Delete on a missing key is not an error: required for remote-delete
	// idempotence against a concurrent local clear.
	s.deleteCore("does-not-exist")

	s.setCore("b", StoredValue{Kind: ValuePlain, Payload: 2})
	s.setCore("c", StoredValue{Kind: ValuePlain, Payload: 3})
	s.clearCore()
	if len(s.keys()) != 0 {
		t.Fatalf("expected empty map after clear, got %v", s.keys())
	}

	evs := drain(events.subscribe())
	var changed, cleared int
	for _, ev := range evs {
		switch ev.(type) {
		case ValueChanged:
			changed++
		case Cleared:
			cleared++
		}
	}
	// set(a) set(b) set(c) delete(a) delete(missing) = 5 ValueChanged, 1 Cleared
	if changed != 5 {
		t.Fatalf("expected 5 ValueChanged events, got %d", changed)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 Cleared event, got %d", cleared)
	}
}

func TestMapStateApplyUnknownOperation(t *testing.T) {
	s := newMapState(newEventBus())
	if err := s.apply(Operation{Type: "bogus"}); err == nil {
		t.Fatalf("expected an error applying an unknown operation type")
	}
}

func TestMapStateSnapshotCopyIsIndependent(t *testing.T) {
	s := newMapState(newEventBus())
	s.setCore("x", StoredValue{Kind: ValuePlain, Payload: "y"})

	copied := s.snapshotCopy()
	s.setCore("x", StoredValue{Kind: ValuePlain, Payload: "mutated"})

	if copied["x"].Payload != "y" {
		t.Fatalf("expected snapshot copy to be unaffected by later mutation, got %v", copied["x"].Payload)
	}
}
