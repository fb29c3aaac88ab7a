package sharedmap

import (
	"context"
	"errors"
	"testing"
)

// fakeCollab is a minimal CollaborativeObject for codec/nested tests.
type fakeCollab struct {
	id      string
	kind    string
	local   bool
	attachN int
}

func (f *fakeCollab) ID() string      { return f.id }
func (f *fakeCollab) Kind() string    { return f.kind }
func (f *fakeCollab) IsLocal() bool   { return f.local }
func (f *fakeCollab) Attach(ctx context.Context, conn DeltaConnection, storage ObjectStorage, reg Registry) error {
	f.attachN++
	f.local = false
	return nil
}

func TestCodecEncodePlain(t *testing.T) {
	c := newValueCodec(newNestedObjectCache())
	sv := c.encode(42)
	if sv.Kind != ValuePlain || sv.Payload != 42 {
		t.Fatalf("expected Plain(42), got %+v", sv)
	}
}

func TestCodecEncodeCollaborativeRegistersCache(t *testing.T) {
	cache := newNestedObjectCache()
	c := newValueCodec(cache)
	obj := &fakeCollab{id: "n1", kind: "map", local: true}

	sv := c.encode(obj)
	if sv.Kind != ValueCollaborative || sv.RefKind != "map" || sv.RefID != "n1" {
		t.Fatalf("expected Reference(map, n1), got %+v", sv)
	}

	entry, ok := cache.get("n1")
	if !ok || !entry.localOnly || entry.object != obj {
		t.Fatalf("expected n1 cached as local-only, got %+v ok=%v", entry, ok)
	}
}

func TestCodecDecodePlain(t *testing.T) {
	c := newValueCodec(newNestedObjectCache())
	v, err := c.decode(context.Background(), StoredValue{Kind: ValuePlain, Payload: "hi"})
	if err != nil || v != "hi" {
		t.Fatalf("expected (hi, nil), got (%v, %v)", v, err)
	}
}

func TestCodecDecodeCollaborativeFromCache(t *testing.T) {
	cache := newNestedObjectCache()
	obj := &fakeCollab{id: "n1", kind: "map", local: true}
	cache.register(obj, true)

	c := newValueCodec(cache)
	v, err := c.decode(context.Background(), StoredValue{Kind: ValueCollaborative, RefKind: "map", RefID: "n1"})
	if err != nil || v != obj {
		t.Fatalf("expected cached object, got (%v, %v)", v, err)
	}
}

func TestCodecDecodeUnknownKindWithoutAdapter(t *testing.T) {
	c := newValueCodec(newNestedObjectCache())
	_, err := c.decode(context.Background(), StoredValue{Kind: ValueCollaborative, RefKind: "ghost", RefID: "x"})
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

// fakeFactory constructs a single fakeCollab on Load.
type fakeFactory struct{ obj *fakeCollab }

func (f fakeFactory) Load(ctx context.Context, id string, services Services, reg Registry) (CollaborativeObject, error) {
	return f.obj, nil
}

type fakeRegistry struct{ factories map[string]Factory }

func (r fakeRegistry) GetExtension(kind string) (Factory, bool) {
	f, ok := r.factories[kind]
	return f, ok
}

func TestRegistryAdapterMaterializesAndCaches(t *testing.T) {
	cache := newNestedObjectCache()
	obj := &fakeCollab{id: "remote-1", kind: "map"}
	reg := fakeRegistry{factories: map[string]Factory{"map": fakeFactory{obj: obj}}}
	adapter := newRegistryAdapter(reg, Services{}, cache)

	got, err := adapter.materialize(context.Background(), "map", "remote-1")
	if err != nil || got != obj {
		t.Fatalf("expected materialized object, got (%v, %v)", got, err)
	}

	entry, ok := cache.get("remote-1")
	if !ok || entry.localOnly {
		t.Fatalf("expected remote-1 cached as not local-only, got %+v ok=%v", entry, ok)
	}

	// Second materialize should hit the cache, not the factory.
	again, err := adapter.materialize(context.Background(), "map", "remote-1")
	if err != nil || again != obj {
		t.Fatalf("expected cached object on second materialize, got (%v, %v)", again, err)
	}
}

func TestRegistryAdapterUnknownKind(t *testing.T) {
	adapter := newRegistryAdapter(fakeRegistry{factories: map[string]Factory{}}, Services{}, newNestedObjectCache())
	_, err := adapter.materialize(context.Background(), "ghost", "x")
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
