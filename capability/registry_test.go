package capability

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/teamflow-ai/teamflow/store"
	"github.com/teamflow-ai/teamflow/types"
)

func newRegistry() *Registry {
	return NewRegistry(store.NewMemory(), zap.NewNop())
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	cap := &types.Capability{Name: "python", Category: "programming", ComplexityLevel: 2, Core: true}
	if err := r.Register(ctx, cap); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	got, err := r.Get(ctx, "python")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Category != "programming" || !got.Core {
		t.Errorf("unexpected capability: %+v", got)
	}

	// Re-registering the same name must fail.
	if err := r.Register(ctx, cap); !types.IsInvalidState(err) {
		t.Errorf("expected INVALID_STATE on duplicate, got %v", err)
	}

	if _, err := r.Get(ctx, "rust"); !types.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestRegistry_UpdateDescription(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	r.Register(ctx, &types.Capability{Name: "ml", Category: "data"})
	if err := r.UpdateDescription(ctx, "ml", "machine learning"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	got, _ := r.Get(ctx, "ml")
	if got.Description != "machine learning" {
		t.Errorf("description not updated: %q", got.Description)
	}
}

func TestRegistry_CompatibilityAndSubsumption(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	r.Register(ctx, &types.Capability{Name: "python", Category: "programming", ComplexityLevel: 2})
	r.Register(ctx, &types.Capability{Name: "systems-design", Category: "programming", ComplexityLevel: 5})
	r.Register(ctx, &types.Capability{Name: "negotiation", Category: "soft-skills", ComplexityLevel: 3})

	if ok, err := r.Compatible(ctx, "python", "systems-design"); err != nil || !ok {
		t.Errorf("same category should be compatible: %v %v", ok, err)
	}
	if ok, _ := r.Compatible(ctx, "python", "negotiation"); ok {
		t.Error("cross category should not be compatible")
	}

	if ok, _ := r.Subsumes(ctx, "systems-design", "python"); !ok {
		t.Error("higher complexity same category should subsume")
	}
	if ok, _ := r.Subsumes(ctx, "python", "systems-design"); ok {
		t.Error("lower complexity should not subsume")
	}

	if _, err := r.Subsumes(ctx, "python", "missing"); !types.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND for missing capability, got %v", err)
	}
}
