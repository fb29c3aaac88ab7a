package sharedmap

import (
	"fmt"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Fatal invariant violations. Once returned from processRemoteMessage, the
// engine halts: Map.halted is set and all subsequent public calls return it.
var (
	// ErrSequenceGap is returned when an inbound SequencedMessage's
	// SequenceNumber is not exactly the prior sequence number plus one.
	ErrSequenceGap = errors.New("sequence gap: transport contract violated")

	// ErrUnknownOperation is returned when an inbound Operation's Type is
	// not one of set, delete or clear.
	ErrUnknownOperation = errors.New("unknown operation type")
)

// Caller errors. These are returned to the caller without halting the
// engine.
var (
	// ErrUnknownKind is returned by Get when a Reference's Kind has no
	// matching Registry Factory.
	ErrUnknownKind = errors.New("unknown reference kind")

	// ErrAlreadyAttached is returned by Attach if the Map is already
	// attached.
	ErrAlreadyAttached = errors.New("map is already attached")

	// ErrNotAttached is returned when the Map has no ObjectStorage
	// configured: by Snapshot, and by Attach to an existing document (whose
	// snapshot has to be loaded from storage).
	ErrNotAttached = errors.New("map is not attached")
)

// sequenceGapError carries the observed and expected sequence numbers so
// callers of errors.Cause or status.FromError can recover the detail.
type sequenceGapError struct {
	expected, got uint64
}

func (e *sequenceGapError) Error() string {
	return fmt.Sprintf("expected sequence number %d, got %d", e.expected, e.got)
}

func (e *sequenceGapError) Unwrap() error { return ErrSequenceGap }

// GRPCStatus lets google.golang.org/grpc/status.FromError recover a
// FailedPrecondition status from a sequence gap the way broker/client's
// Reader classifies transport-layer errors, even though this package never
// itself runs a gRPC server.
func (e *sequenceGapError) GRPCStatus() *status.Status {
	return status.New(codes.FailedPrecondition, e.Error())
}

func newSequenceGapError(expected, got uint64) error {
	return errors.Wrap(&sequenceGapError{expected: expected, got: got}, "processRemoteMessage")
}

type unknownOperationError struct{ op OpType }

func (e *unknownOperationError) Error() string {
	return fmt.Sprintf("operation type %q: %v", e.op, ErrUnknownOperation)
}
func (e *unknownOperationError) Unwrap() error { return ErrUnknownOperation }

func newUnknownOperationError(op OpType) error {
	return errors.Wrap(&unknownOperationError{op: op}, "processRemoteMessage")
}

type unknownKindError struct{ kind string }

func (e *unknownKindError) Error() string {
	return fmt.Sprintf("kind %q: %v", e.kind, ErrUnknownKind)
}
func (e *unknownKindError) Unwrap() error { return ErrUnknownKind }

func errUnknownKindf(kind string) error {
	return errors.Wrap(&unknownKindError{kind: kind}, "materialize")
}
