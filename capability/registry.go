// Package capability provides the typed registry of named capabilities with
// category, complexity, and compatibility relations. It is a leaf package:
// everything else references capabilities by name through it.
package capability

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teamflow-ai/teamflow/store"
	"github.com/teamflow-ai/teamflow/types"
)

// Registry is the capability registry. Capabilities are immutable once
// created except for their description.
type Registry struct {
	store  store.CapabilityStore
	logger *zap.Logger
}

// NewRegistry creates a registry over the given store.
func NewRegistry(st store.CapabilityStore, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:  st,
		logger: logger.With(zap.String("component", "capability_registry")),
	}
}

// Register creates a capability. Re-registering an existing name is an
// INVALID_STATE error; use UpdateDescription for the one mutable field.
func (r *Registry) Register(ctx context.Context, c *types.Capability) error {
	if _, err := r.store.GetCapability(ctx, c.Name); err == nil {
		return types.InvalidState("capability %q already registered", c.Name)
	} else if !types.IsNotFound(err) {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if err := r.store.SaveCapability(ctx, c); err != nil {
		return err
	}
	r.logger.Info("capability registered",
		zap.String("name", c.Name),
		zap.String("category", c.Category),
		zap.Int("complexity", c.ComplexityLevel),
	)
	return nil
}

// Get resolves a capability by name.
func (r *Registry) Get(ctx context.Context, name string) (*types.Capability, error) {
	return r.store.GetCapability(ctx, name)
}

// UpdateDescription changes the only mutable field of a capability.
func (r *Registry) UpdateDescription(ctx context.Context, name, description string) error {
	c, err := r.store.GetCapability(ctx, name)
	if err != nil {
		return err
	}
	c.Description = description
	return r.store.SaveCapability(ctx, c)
}

// Compatible reports whether two named capabilities share a category.
func (r *Registry) Compatible(ctx context.Context, a, b string) (bool, error) {
	ca, err := r.store.GetCapability(ctx, a)
	if err != nil {
		return false, err
	}
	cb, err := r.store.GetCapability(ctx, b)
	if err != nil {
		return false, err
	}
	return ca.CompatibleWith(cb), nil
}

// Subsumes reports whether capability a covers capability b: same category
// and greater-or-equal complexity.
func (r *Registry) Subsumes(ctx context.Context, a, b string) (bool, error) {
	ca, err := r.store.GetCapability(ctx, a)
	if err != nil {
		return false, err
	}
	cb, err := r.store.GetCapability(ctx, b)
	if err != nil {
		return false, err
	}
	return ca.Subsumes(cb), nil
}

// ListByCategory returns the capabilities in a category.
func (r *Registry) ListByCategory(ctx context.Context, category string) ([]*types.Capability, error) {
	return r.store.FindByCategory(ctx, category)
}

// List returns every registered capability.
func (r *Registry) List(ctx context.Context) ([]*types.Capability, error) {
	return r.store.ListCapabilities(ctx)
}
