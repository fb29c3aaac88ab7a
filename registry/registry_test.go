package registry

import (
	"context"
	"testing"

	"go.sequencedb.dev/sharedmap"
)

type stubObject struct{ id string }

func (s *stubObject) ID() string    { return s.id }
func (s *stubObject) Kind() string  { return "stub" }
func (s *stubObject) IsLocal() bool { return false }
func (s *stubObject) Attach(ctx context.Context, conn sharedmap.DeltaConnection, storage sharedmap.ObjectStorage, reg sharedmap.Registry) error {
	return nil
}

func TestStaticRegisterAndGetExtension(t *testing.T) {
	r := New()
	r.Register("stub", func(ctx context.Context, id string, services sharedmap.Services, reg sharedmap.Registry) (sharedmap.CollaborativeObject, error) {
		return &stubObject{id: id}, nil
	})

	factory, ok := r.GetExtension("stub")
	if !ok {
		t.Fatalf("expected stub kind to be registered")
	}
	obj, err := factory.Load(context.Background(), "n1", sharedmap.Services{}, r)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if obj.ID() != "n1" || obj.Kind() != "stub" {
		t.Fatalf("unexpected object from factory: id=%q kind=%q", obj.ID(), obj.Kind())
	}

	if _, ok := r.GetExtension("ghost"); ok {
		t.Fatalf("expected ghost kind to be unregistered")
	}
}

func TestStaticRegisterDuplicateKindPanics(t *testing.T) {
	r := New()
	r.Register("stub", func(ctx context.Context, id string, services sharedmap.Services, reg sharedmap.Registry) (sharedmap.CollaborativeObject, error) {
		return &stubObject{id: id}, nil
	})

	defer func() {
		if recover() == nil {
			t.Fatalf("expected registering a duplicate kind to panic")
		}
	}()
	r.Register("stub", func(ctx context.Context, id string, services sharedmap.Services, reg sharedmap.Registry) (sharedmap.CollaborativeObject, error) {
		return &stubObject{id: id}, nil
	})
}
