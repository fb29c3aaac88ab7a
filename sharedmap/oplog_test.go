package sharedmap

import "testing"

func TestOpLogFIFO(t *testing.T) {
	var l opLog
	if l.len() != 0 {
		t.Fatalf("expected empty log, got len %d", l.len())
	}
	if _, ok := l.peekHead(); ok {
		t.Fatalf("peekHead on empty log should report false")
	}

	l.push(Message{ClientSequenceNumber: 0})
	l.push(Message{ClientSequenceNumber: 1})
	l.push(Message{ClientSequenceNumber: 2})

	if l.len() != 3 {
		t.Fatalf("expected len 3, got %d", l.len())
	}

	head, ok := l.peekHead()
	if !ok || head.ClientSequenceNumber != 0 {
		t.Fatalf("expected head cseq 0, got %+v ok=%v", head, ok)
	}

	popped, ok := l.popHead()
	if !ok || popped.ClientSequenceNumber != 0 {
		t.Fatalf("expected popped cseq 0, got %+v", popped)
	}
	if l.len() != 2 {
		t.Fatalf("expected len 2 after pop, got %d", l.len())
	}

	l.popHead()
	l.popHead()
	if l.len() != 0 {
		t.Fatalf("expected empty log after popping all entries, got %d", l.len())
	}
	if _, ok := l.popHead(); ok {
		t.Fatalf("popHead on empty log should report false")
	}
}
