package sharedmap

import "encoding/json"

// OpType distinguishes the three operation shapes a Map can emit.
type OpType string

const (
	OpSet    OpType = "set"
	OpDelete OpType = "delete"
	OpClear  OpType = "clear"
)

// MessageKind distinguishes an Operation message from a control message the
// engine ignores at this layer (e.g. a transport keepalive).
type MessageKind string

const (
	KindOperation MessageKind = "op"
	KindControl   MessageKind = "control"
)

// ValueKind tags a StoredValue as either opaque payload or a reference to a
// nested collaborative object.
type ValueKind string

const (
	ValuePlain         ValueKind = "Plain"
	ValueCollaborative ValueKind = "Collaborative"
)

// StoredValue is the tagged sum a Map holds in its state: either a Plain
// JSON-compatible payload, or a Reference to another collaborative object.
type StoredValue struct {
	Kind ValueKind

	// Populated when Kind == ValuePlain.
	Payload interface{}

	// Populated when Kind == ValueCollaborative.
	RefKind string
	RefID   string
}

// referenceWire is the JSON shape nested under "value" for a Reference
// StoredValue.
type referenceWire struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// storedValueWire is the on-the-wire shape of a StoredValue: a type tag and
// an arbitrary "value" payload, matching the message wire shape of §6.
type storedValueWire struct {
	Kind  ValueKind       `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON implements the wire shape of §6: Plain values nest their
// payload directly under "value"; Reference values nest a {kind, id} object.
func (sv StoredValue) MarshalJSON() ([]byte, error) {
	switch sv.Kind {
	case ValueCollaborative:
		ref, err := json.Marshal(referenceWire{Kind: sv.RefKind, ID: sv.RefID})
		if err != nil {
			return nil, err
		}
		return json.Marshal(storedValueWire{Kind: sv.Kind, Value: ref})
	default:
		payload, err := json.Marshal(sv.Payload)
		if err != nil {
			return nil, err
		}
		return json.Marshal(storedValueWire{Kind: ValuePlain, Value: payload})
	}
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (sv *StoredValue) UnmarshalJSON(data []byte) error {
	var wire storedValueWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Kind {
	case ValueCollaborative:
		var ref referenceWire
		if len(wire.Value) > 0 {
			if err := json.Unmarshal(wire.Value, &ref); err != nil {
				return err
			}
		}
		sv.Kind = ValueCollaborative
		sv.RefKind, sv.RefID = ref.Kind, ref.ID
	default:
		var payload interface{}
		if len(wire.Value) > 0 {
			if err := json.Unmarshal(wire.Value, &payload); err != nil {
				return err
			}
		}
		sv.Kind = ValuePlain
		sv.Payload = payload
	}
	return nil
}

// Operation is the tagged sum of mutations a Map may apply.
type Operation struct {
	Type  OpType       `json:"type"`
	Key   string       `json:"key,omitempty"`
	Value *StoredValue `json:"value,omitempty"`
}

// Message is a locally-issued operation awaiting acknowledgement.
type Message struct {
	ClientSequenceNumber    uint64    `json:"clientSequenceNumber"`
	ReferenceSequenceNumber uint64    `json:"referenceSequenceNumber"`
	Op                      Operation `json:"op"`
}

// SequencedMessage is a Message after the server has stamped it with a
// total order.
type SequencedMessage struct {
	Message
	SequenceNumber        uint64      `json:"sequenceNumber"`
	MinimumSequenceNumber uint64      `json:"minimumSequenceNumber"`
	ClientID              string      `json:"clientId"`
	Kind                  MessageKind `json:"type"`
}

// Snapshot is the serialized form of a Map's state at a point in time.
type Snapshot struct {
	SequenceNumber uint64                 `json:"sequenceNumber"`
	State          map[string]StoredValue `json:"snapshot"`
}

// Event is the sum type emitted on a Map's event stream.
type Event interface{ isEvent() }

// ValueChanged is emitted after any Set or Delete, local or remote.
type ValueChanged struct{ Key string }

// Cleared is emitted after any Clear.
type Cleared struct{}

func (ValueChanged) isEvent() {}
func (Cleared) isEvent()      {}
