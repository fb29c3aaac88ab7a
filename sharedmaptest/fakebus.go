// Package sharedmaptest provides an in-memory stand-in for the external
// delta transport, used by sharedmap's own tests.
// It plays the role teststub plays for the broker client in this
// repository's lineage: a minimal, in-process fake that is good enough to
// exercise ordering and acknowledgement without a live server.
package sharedmaptest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.sequencedb.dev/sharedmap"
)

// Bus is a fake central sequencer: every Connection created from the same
// Bus observes the same total order of operations, assigned by a single
// monotonic counter, exactly as a real sequencer would assign a server
// sequence number.
type Bus struct {
	mu       sync.Mutex
	seq      uint64
	minSeq   uint64
	clients  int64
	inboxes  map[*Connection]chan sharedmap.SequencedMessage
	existing bool
}

// NewBus returns an empty Bus. Pass existing=true to simulate connecting to
// a document that already exists (so the first Connection created reports
// IsExisting() == true).
func NewBus(existing bool) *Bus {
	return &Bus{inboxes: make(map[*Connection]chan sharedmap.SequencedMessage), existing: existing}
}

// Connect returns a new Connection attached to the Bus, simulating a fresh
// DeltaConnection.connect(id, kind) call.
func (b *Bus) Connect(id, kind string) *Connection {
	clientID := fmt.Sprintf("client-%d", atomic.AddInt64(&b.clients, 1))
	conn := &Connection{
		bus:      b,
		clientID: clientID,
		inbox:    make(chan sharedmap.SequencedMessage, 256),
	}
	b.mu.Lock()
	existing := b.existing
	b.existing = true // only the very first connect reports a fresh document
	b.inboxes[conn] = conn.inbox
	b.mu.Unlock()
	conn.existing = existing
	return conn
}

// Disconnect removes conn from the Bus's fan-out set and closes its inbox.
func (b *Bus) Disconnect(conn *Connection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.inboxes[conn]; ok {
		delete(b.inboxes, conn)
		close(ch)
	}
}

// broadcast assigns the next sequence number to msg and fans it out to every
// connected inbox, in the order submit calls arrive at the Bus. A single
// mutex around allocation + fan-out is what gives every replica the same
// total order.
func (b *Bus) broadcast(msg sharedmap.Message, clientID string, kind sharedmap.MessageKind) sharedmap.SequencedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	out := sharedmap.SequencedMessage{
		Message:               msg,
		SequenceNumber:        b.seq,
		MinimumSequenceNumber: b.minSeq,
		ClientID:              clientID,
		Kind:                  kind,
	}
	for _, ch := range b.inboxes {
		ch <- out
	}
	return out
}

// Connection is a fake sharedmap.DeltaConnection bound to a Bus.
type Connection struct {
	bus      *Bus
	clientID string
	existing bool
	inbox    chan sharedmap.SequencedMessage
	closed   bool
}

func (c *Connection) ClientID() string { return c.clientID }
func (c *Connection) IsExisting() bool { return c.existing }

func (c *Connection) Submit(ctx context.Context, msg sharedmap.Message) error {
	if c.closed {
		return fmt.Errorf("sharedmaptest: connection closed")
	}
	c.bus.broadcast(msg, c.clientID, sharedmap.KindOperation)
	return nil
}

func (c *Connection) Inbound() <-chan sharedmap.SequencedMessage { return c.inbox }

func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.bus.Disconnect(c)
	return nil
}

// InjectControl delivers a non-operation control message to every attached
// connection, exercising the engine's "ignore non-op messages" branch.
func (b *Bus) InjectControl() {
	b.broadcast(sharedmap.Message{}, "", sharedmap.KindControl)
}
