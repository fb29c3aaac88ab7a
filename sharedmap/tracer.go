package sharedmap

// tracer receives lazily-formatted breadcrumbs from the engine's hot paths.
// The zero value (noopTracer) does nothing; the sharedmaptrace package
// provides a golang.org/x/net/trace-backed implementation that a caller
// wires in via Map.SetTracer.
type tracer interface {
	LocalApply(cseq uint64, op OpType, key string)
	RemoteApply(seq uint64, clientID string, op OpType, key string)
	Attach(id string)
}

type noopTracer struct{}

func (noopTracer) LocalApply(uint64, OpType, string)          {}
func (noopTracer) RemoteApply(uint64, string, OpType, string) {}
func (noopTracer) Attach(string)                              {}

// Tracer is the public interface a caller implements (or obtains from
// sharedmaptrace.New) to receive engine breadcrumbs.
type Tracer = tracer

// SetTracer installs t as the Map's tracer. Passing nil restores the no-op
// tracer. Safe to call at any time.
func (m *Map) SetTracer(t Tracer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t == nil {
		t = noopTracer{}
	}
	m.tracer = t
}
