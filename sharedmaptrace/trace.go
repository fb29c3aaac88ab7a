// Package sharedmaptrace adapts golang.org/x/net/trace to sharedmap.Tracer,
// the way consumer.addTrace threads a golang.org/x/net/trace.Trace through
// consumer RPC handling: off by default, lazily formatted, and cheap enough
// to leave wired in production builds.
package sharedmaptrace

import (
	"golang.org/x/net/trace"

	"go.sequencedb.dev/sharedmap"
)

// Tracer emits lazily-formatted breadcrumbs to a golang.org/x/net/trace.Trace
// scoped to a single Map's lifetime.
type Tracer struct {
	tr trace.Trace
}

// New starts a trace.Trace of family "sharedmap.Map" for id and returns a
// sharedmap.Tracer wired to it. Callers should arrange to call Finish when
// the Map is discarded.
func New(id string) *Tracer {
	return &Tracer{tr: trace.New("sharedmap.Map", id)}
}

// Finish ends the underlying trace.
func (t *Tracer) Finish() { t.tr.Finish() }

func (t *Tracer) LocalApply(cseq uint64, op sharedmap.OpType, key string) {
	t.tr.LazyPrintf("local apply: cseq=%d op=%s key=%q", cseq, op, key)
}

func (t *Tracer) RemoteApply(seq uint64, clientID string, op sharedmap.OpType, key string) {
	t.tr.LazyPrintf("remote apply: seq=%d client=%s op=%s key=%q", seq, clientID, op, key)
}

func (t *Tracer) Attach(id string) {
	t.tr.LazyPrintf("attach: id=%s", id)
}

var _ sharedmap.Tracer = (*Tracer)(nil)
