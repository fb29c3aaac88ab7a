package sharedmap

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// writeSnapshot serializes seq and the already-copied state and hands the
// result to storage under id. The caller must take the copy (via
// mapState.snapshotCopy) while holding the engine's lock, so that no
// operation can be mid-apply while the copy is taken; writeSnapshot itself
// does no further locking, which lets the (potentially slow) storage write
// happen off that lock.
func writeSnapshot(ctx context.Context, storage ObjectStorage, id string, seq uint64, state map[string]StoredValue) error {
	snap := Snapshot{SequenceNumber: seq, State: state}

	blob, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "writeSnapshot: marshal")
	}
	if err := storage.Write(ctx, id, blob); err != nil {
		return errors.Wrap(err, "writeSnapshot: write")
	}
	return nil
}

// loadSnapshot reads and parses the blob for id. If no blob exists, it
// returns an empty Snapshot at sequence number 0 (the "fresh document"
// case).
func loadSnapshot(ctx context.Context, storage ObjectStorage, id string) (Snapshot, error) {
	blob, err := storage.Read(ctx, id)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "loadSnapshot: read")
	}
	if blob == nil {
		return Snapshot{SequenceNumber: 0, State: make(map[string]StoredValue)}, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return Snapshot{}, errors.Wrap(err, "loadSnapshot: unmarshal")
	}
	if snap.State == nil {
		snap.State = make(map[string]StoredValue)
	}
	return snap, nil
}
