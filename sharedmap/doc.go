// Package sharedmap implements the replication core of a collaborative
// key-value map: local operations are applied optimistically and queued for
// acknowledgement, a central sequencer imposes a total order on the wire,
// and every replica converges to identical state by applying operations in
// that order.
//
// The package intentionally knows nothing about how messages travel to and
// from the sequencer, how snapshots are persisted, or how nested
// collaborative objects are constructed: those are the DeltaConnection,
// ObjectStorage and Registry interfaces of interfaces.go, satisfied
// elsewhere in this module (see the sequencer, memstore and registry
// packages) or by a caller's own implementation.
//
// A Map begins in local mode:
//
//	var m = sharedmap.New("doc-1")
//	m.Set(ctx, "greeting", "hello")
//
// Later it may be attached to a transport, which flushes any operations
// queued while local and begins participating in replication:
//
//	err := m.Attach(ctx, conn, storage, reg)
//
// Attaching a Map to a document that already exists restores its state from
// the document's stored Snapshot before Attach returns. The readiness gate
// that Get/Has/Keys check is already open from New onward, so calls made
// concurrently with such an Attach do not wait for the restore.
package sharedmap
