package sharedmap

import "context"

// valueCodec encodes user-facing values into the StoredValue tagged sum, and
// decodes them back, resolving References through the registry adapter and
// nested object cache.
type valueCodec struct {
	cache   *nestedObjectCache
	adapter *registryAdapter // nil until the Map is attached.
}

func newValueCodec(cache *nestedObjectCache) *valueCodec {
	return &valueCodec{cache: cache}
}

func (c *valueCodec) setAdapter(a *registryAdapter) { c.adapter = a }

// encode produces a StoredValue for a user value. A value satisfying
// CollaborativeObject is encoded as a Reference and registered into the
// nested object cache as locally-owned (so the attach-before-submit rule
// can find it later); any other value is encoded as Plain.
func (c *valueCodec) encode(value interface{}) StoredValue {
	if obj, ok := value.(CollaborativeObject); ok {
		c.cache.register(obj, true)
		return StoredValue{Kind: ValueCollaborative, RefKind: obj.Kind(), RefID: obj.ID()}
	}
	return StoredValue{Kind: ValuePlain, Payload: value}
}

// decode returns the user-facing value for a StoredValue: the Plain payload
// as-is, or the live (possibly freshly materialized) handle for a
// Reference.
func (c *valueCodec) decode(ctx context.Context, sv StoredValue) (interface{}, error) {
	switch sv.Kind {
	case ValuePlain:
		return sv.Payload, nil
	case ValueCollaborative:
		if e, ok := c.cache.get(sv.RefID); ok {
			return e.object, nil
		}
		if c.adapter == nil {
			return nil, errUnknownKindf(sv.RefKind)
		}
		return c.adapter.materialize(ctx, sv.RefKind, sv.RefID)
	default:
		return nil, newUnknownOperationError(OpType(sv.Kind))
	}
}
