package sharedmap

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Map is a collaborative key-value map. It is created in local mode by New;
// Attach transitions it to attached mode, at which point it participates in
// replication through a DeltaConnection. All exported methods are safe for
// concurrent use.
type Map struct {
	id string

	mu        sync.Mutex
	seq       uint64
	minSeq    uint64
	clientSeq uint64
	clientID  string
	attached  bool
	halted    error

	log     opLog
	state   *mapState
	events  *eventBus
	cache   *nestedObjectCache
	codec   *valueCodec
	tracer  tracer
	dupAcks uint64

	conn    DeltaConnection
	storage ObjectStorage
	queue   *submitQueue

	ready     chan struct{}
	readyOnce sync.Once
}

// New returns a Map in local mode: it buffers operations until Attach is
// called, and is immediately ready (there is nothing to load).
func New(id string) *Map {
	events := newEventBus()
	cache := newNestedObjectCache()

	m := &Map{
		id:     id,
		state:  newMapState(events),
		events: events,
		cache:  cache,
		codec:  newValueCodec(cache),
		tracer: noopTracer{},
		ready:  make(chan struct{}),
	}
	m.readyOnce.Do(func() { close(m.ready) }) // nothing to load in local mode
	return m
}

// ID returns the map's document identifier.
func (m *Map) ID() string { return m.id }

// Kind returns the collaborative-object kind tag a Registry uses to
// recognize a nested reference as another Map. It lets a Map nest inside
// itself: Map satisfies CollaborativeObject the same way any extension does.
func (m *Map) Kind() string { return "map" }

// IsLocal reports whether the Map has ever been attached.
func (m *Map) IsLocal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.attached
}

// Events returns the Map's change-event stream.
func (m *Map) Events() <-chan Event { return m.events.subscribe() }

// DuplicateAckCount returns the number of inbound own-client messages that
// did not match the Operation Log head. This is a counter rather than a
// fatal error: the spec leaves open whether this can mask a genuine
// log/head desync, so it is exposed for callers to monitor rather than
// silently swallowed.
func (m *Map) DuplicateAckCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dupAcks
}

// SequenceNumber returns the highest server sequence number applied so far.
func (m *Map) SequenceNumber() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq
}

// PendingOperations returns the current Operation Log length.
func (m *Map) PendingOperations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.len()
}

// awaitReady blocks until the initial load (if any) has completed, or ctx is
// done, or the engine has halted.
func (m *Map) awaitReady(ctx context.Context) error {
	select {
	case <-m.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	m.mu.Lock()
	err := m.halted
	m.mu.Unlock()
	return err
}

// Get returns the current decoded value at key, or nil if absent.
func (m *Map) Get(ctx context.Context, key string) (interface{}, error) {
	if err := m.awaitReady(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	sv, ok := m.state.get(key)
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return m.codec.decode(ctx, sv)
}

// Has reports whether key is currently present.
func (m *Map) Has(ctx context.Context, key string) (bool, error) {
	if err := m.awaitReady(ctx); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.has(key), nil
}

// Keys returns a snapshot of the map's current keys.
func (m *Map) Keys(ctx context.Context) ([]string, error) {
	if err := m.awaitReady(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.keys(), nil
}

// Set encodes value and emits a Set operation.
func (m *Map) Set(ctx context.Context, key string, value interface{}) error {
	if err := m.awaitReady(ctx); err != nil {
		return err
	}
	sv := m.codec.encode(value)
	return m.processLocalOperation(ctx, Operation{Type: OpSet, Key: key, Value: &sv})
}

// Delete emits a Delete operation. Deleting an absent key is not an error.
func (m *Map) Delete(ctx context.Context, key string) error {
	if err := m.awaitReady(ctx); err != nil {
		return err
	}
	return m.processLocalOperation(ctx, Operation{Type: OpDelete, Key: key})
}

// Clear emits a Clear operation.
func (m *Map) Clear(ctx context.Context) error {
	if err := m.awaitReady(ctx); err != nil {
		return err
	}
	return m.processLocalOperation(ctx, Operation{Type: OpClear})
}

// resolveRefObj returns the locally-owned nested object handle referenced
// by op, if any. Must be called with m.mu held.
func (m *Map) resolveRefObj(op Operation) CollaborativeObject {
	if op.Type != OpSet || op.Value == nil || op.Value.Kind != ValueCollaborative {
		return nil
	}
	entry, ok := m.cache.get(op.Value.RefID)
	if !ok || !entry.localOnly {
		return nil
	}
	return entry.object
}

// processLocalOperation implements §4.3's local operation path: allocate a
// client sequence number, log the message, submit it (if attached, waiting
// for dispatch including any attach-before-submit precondition), then apply
// the operation to Map State optimistically.
func (m *Map) processLocalOperation(ctx context.Context, op Operation) error {
	m.mu.Lock()
	if m.halted != nil {
		err := m.halted
		m.mu.Unlock()
		return err
	}
	cseq := m.clientSeq
	m.clientSeq++
	msg := Message{ClientSequenceNumber: cseq, ReferenceSequenceNumber: m.seq, Op: op}
	m.log.push(msg)
	attached := m.attached
	queue := m.queue
	refObj := m.resolveRefObj(op)
	m.mu.Unlock()

	var submitErr error
	if attached {
		submitErr = queue.submit(ctx, msg, refObj)
	}

	m.mu.Lock()
	m.tracer.LocalApply(cseq, op.Type, op.Key)
	applyErr := m.state.apply(op)
	m.mu.Unlock()

	if submitErr != nil {
		// Transport failure on submission is surfaced to the caller, but
		// the optimistic apply above is not rolled back.
		return submitErr
	}
	return applyErr
}

// processRemoteMessage implements §4.3's inbound sequenced message path.
func (m *Map) processRemoteMessage(msg SequencedMessage) error {
	m.mu.Lock()

	expected := m.seq + 1
	if msg.SequenceNumber != expected {
		err := newSequenceGapError(expected, msg.SequenceNumber)
		m.halted = err
		m.mu.Unlock()
		return err
	}
	m.seq = msg.SequenceNumber
	m.minSeq = msg.MinimumSequenceNumber

	if msg.Kind != KindOperation {
		m.mu.Unlock()
		return nil
	}

	if msg.ClientID == m.clientID {
		head, ok := m.log.peekHead()
		if ok && head.ClientSequenceNumber == msg.ClientSequenceNumber {
			m.log.popHead()
		} else {
			m.dupAcks++
			log.WithFields(log.Fields{
				"mapID":    m.id,
				"clientID": msg.ClientID,
				"cseq":     msg.ClientSequenceNumber,
			}).Warn("duplicate or unexpected ack; operation log head left unchanged")
		}
		m.mu.Unlock()
		return nil
	}

	m.tracer.RemoteApply(msg.SequenceNumber, msg.ClientID, msg.Op.Type, msg.Op.Key)
	err := m.state.apply(msg.Op)
	if err != nil {
		m.halted = err
	}
	m.mu.Unlock()
	return err
}

// pump drains conn.Inbound() into processRemoteMessage until the channel
// closes or the engine halts.
func (m *Map) pump(conn DeltaConnection) {
	for msg := range conn.Inbound() {
		if err := m.processRemoteMessage(msg); err != nil {
			log.WithFields(log.Fields{"mapID": m.id, "err": err}).Error("replication engine halted")
			return
		}
	}
}

// Attach transitions the Map from local to attached mode. storage may be
// nil only if the caller never intends to call Snapshot and conn reports a
// fresh document: attaching to an existing document with nil storage fails
// with ErrNotAttached. On success, Attach
// drains the Operation Log by submitting each entry in order; entries
// remain in the log until acknowledged.
func (m *Map) Attach(ctx context.Context, conn DeltaConnection, storage ObjectStorage, reg Registry) error {
	m.mu.Lock()
	if m.attached {
		m.mu.Unlock()
		return ErrAlreadyAttached
	}
	m.attached = true
	m.clientID = conn.ClientID()
	m.conn = conn
	m.storage = storage
	m.queue = newSubmitQueue(conn, storage, reg)
	m.codec.setAdapter(newRegistryAdapter(reg, Services{Storage: storage}, m.cache))
	existing := conn.IsExisting()
	pending := make([]Message, m.log.len())
	copy(pending, m.log.entries)
	m.tracer.Attach(m.id)
	m.mu.Unlock()

	if existing {
		if err := m.loadExisting(ctx, conn); err != nil {
			return errors.Wrap(err, "attach")
		}
	}

	go m.pump(conn)

	for _, msg := range pending {
		m.mu.Lock()
		refObj := m.resolveRefObj(msg.Op)
		m.mu.Unlock()
		if err := m.queue.submit(ctx, msg, refObj); err != nil {
			return errors.Wrap(err, "attach: draining operation log")
		}
	}
	return nil
}

// loadExisting restores state from the document's snapshot and opens the
// initial-load readiness gate. Invariant 6 (the first inbound sequenced
// message after restore must be at SequenceNumber+1) is then enforced the
// same way as any other inbound message, by processRemoteMessage.
func (m *Map) loadExisting(ctx context.Context, conn DeltaConnection) error {
	if m.storage == nil {
		return ErrNotAttached
	}
	snap, err := loadSnapshot(ctx, m.storage, m.id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.state.restore(snap.State)
	m.seq = snap.SequenceNumber
	m.mu.Unlock()
	m.readyOnce.Do(func() { close(m.ready) })
	return nil
}

// Snapshot serializes {sequence_number, map_state} to storage under the
// Map's id. It observes a consistent point: no local or remote operation
// can be mid-apply while the snapshot copy is taken, because the copy is
// made while holding the same mutex that guards apply.
func (m *Map) Snapshot(ctx context.Context) error {
	if err := m.awaitReady(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	storage := m.storage
	if storage == nil {
		m.mu.Unlock()
		return ErrNotAttached
	}
	seq := m.seq
	copied := m.state.snapshotCopy()
	m.mu.Unlock()

	return writeSnapshot(ctx, storage, m.id, seq, copied)
}
