package sharedmaptrace

import (
	"testing"

	"go.sequencedb.dev/sharedmap"
)

func TestTracerSatisfiesMapTracer(t *testing.T) {
	tr := New("doc-1")
	defer tr.Finish()

	tr.LocalApply(0, sharedmap.OpSet, "k")
	tr.RemoteApply(1, "client-1", sharedmap.OpSet, "k")
	tr.Attach("doc-1")
}

func TestMapAcceptsTracer(t *testing.T) {
	m := sharedmap.New("doc-1")
	m.SetTracer(New("doc-1"))
	m.SetTracer(nil) // restores the no-op tracer without panicking
}
