// Package registry tracks agents: their capability levels, specializations,
// availability, bargaining preferences, and performance history. It is the
// candidate source for team formation and the preference source for
// negotiation.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamflow-ai/teamflow/internal/cache"
	"github.com/teamflow-ai/teamflow/store"
	"github.com/teamflow-ai/teamflow/types"
)

// Registry is the agent registry. Any mutation of an agent invalidates that
// agent's cached preference/utility data, so negotiation never bargains on
// stale state.
type Registry struct {
	store  store.AgentStore
	cache  cache.Cache
	logger *zap.Logger

	mu          sync.RWMutex
	preferences map[string]*types.AgentPreferences
}

// New creates an agent registry. cache may be nil when no engine caches
// per-agent data.
func New(st store.AgentStore, c cache.Cache, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:       st,
		cache:       c,
		logger:      logger.With(zap.String("component", "agent_registry")),
		preferences: make(map[string]*types.AgentPreferences),
	}
}

// CacheKeyPrefix returns the cache key prefix owning every cached entry for
// one agent.
func CacheKeyPrefix(agentID string) string {
	return fmt.Sprintf("agent:%s:", agentID)
}

// Register creates an agent. A missing id is generated. New agents start
// active and available.
func (r *Registry) Register(ctx context.Context, agent *types.Agent) (*types.Agent, error) {
	if agent.ID == "" {
		agent.ID = uuid.New().String()
	} else if _, err := r.store.GetAgent(ctx, agent.ID); err == nil {
		return nil, types.InvalidState("agent %q already registered", agent.ID)
	} else if !types.IsNotFound(err) {
		return nil, err
	}

	if agent.Capabilities == nil {
		agent.Capabilities = make(map[string]float64)
	}
	now := time.Now()
	agent.Active = true
	agent.Available = true
	agent.CreatedAt = now
	agent.UpdatedAt = now

	if err := r.store.SaveAgent(ctx, agent); err != nil {
		return nil, err
	}
	r.logger.Info("agent registered",
		zap.String("agent_id", agent.ID),
		zap.String("name", agent.Name),
		zap.Int("capabilities", len(agent.Capabilities)),
	)
	return agent, nil
}

// Get resolves an agent by id.
func (r *Registry) Get(ctx context.Context, id string) (*types.Agent, error) {
	return r.store.GetAgent(ctx, id)
}

// UpdateCapabilities sets or adjusts capability levels in place. Levels are
// clamped to [0,1]. Cached data for the agent is invalidated.
func (r *Registry) UpdateCapabilities(ctx context.Context, id string, levels map[string]float64) error {
	agent, err := r.store.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	for name, level := range levels {
		agent.Capabilities[name] = clamp01(level)
	}
	agent.UpdatedAt = time.Now()
	if err := r.store.SaveAgent(ctx, agent); err != nil {
		return err
	}
	return r.invalidate(ctx, id)
}

// UpdateSpecializations replaces the agent's specialization tags.
func (r *Registry) UpdateSpecializations(ctx context.Context, id string, tags []string) error {
	agent, err := r.store.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	agent.Specializations = tags
	agent.UpdatedAt = time.Now()
	if err := r.store.SaveAgent(ctx, agent); err != nil {
		return err
	}
	return r.invalidate(ctx, id)
}

// SetAvailability toggles whether the agent can join new teams.
func (r *Registry) SetAvailability(ctx context.Context, id string, available bool) error {
	agent, err := r.store.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	agent.Available = available
	agent.UpdatedAt = time.Now()
	return r.store.SaveAgent(ctx, agent)
}

// Deactivate soft-deletes the agent: it stops appearing in candidate pools
// but historical team and negotiation references keep resolving.
func (r *Registry) Deactivate(ctx context.Context, id string) error {
	agent, err := r.store.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	agent.Active = false
	agent.Available = false
	agent.UpdatedAt = time.Now()
	if err := r.store.SaveAgent(ctx, agent); err != nil {
		return err
	}
	r.logger.Info("agent deactivated", zap.String("agent_id", id))
	return r.invalidate(ctx, id)
}

// AdjustPerformance shifts the agent's rolling 0–10 performance rating by
// delta, clamped to range.
func (r *Registry) AdjustPerformance(ctx context.Context, id string, delta float64) error {
	agent, err := r.store.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	agent.PerformanceRating += delta
	if agent.PerformanceRating < 0 {
		agent.PerformanceRating = 0
	}
	if agent.PerformanceRating > 10 {
		agent.PerformanceRating = 10
	}
	agent.UpdatedAt = time.Now()
	if err := r.store.SaveAgent(ctx, agent); err != nil {
		return err
	}
	return r.invalidate(ctx, id)
}

// SetPreferences stores the agent's bargaining priority and preference map.
func (r *Registry) SetPreferences(ctx context.Context, prefs *types.AgentPreferences) error {
	if _, err := r.store.GetAgent(ctx, prefs.AgentID); err != nil {
		return err
	}
	r.mu.Lock()
	r.preferences[prefs.AgentID] = prefs
	r.mu.Unlock()
	return r.invalidate(ctx, prefs.AgentID)
}

// Preferences returns the agent's bargaining data. Agents without recorded
// preferences get an empty map and zero priority.
func (r *Registry) Preferences(ctx context.Context, agentID string) (*types.AgentPreferences, error) {
	r.mu.RLock()
	p, ok := r.preferences[agentID]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}
	if _, err := r.store.GetAgent(ctx, agentID); err != nil {
		return nil, err
	}
	return &types.AgentPreferences{AgentID: agentID, Preferences: map[string]any{}}, nil
}

// FindAvailable returns active, available agents.
func (r *Registry) FindAvailable(ctx context.Context) ([]*types.Agent, error) {
	return r.store.FindAvailable(ctx)
}

// FindByCapability returns active agents holding the capability at or above
// minLevel.
func (r *Registry) FindByCapability(ctx context.Context, name string, minLevel float64) ([]*types.Agent, error) {
	return r.store.FindByCapability(ctx, name, minLevel)
}

// FindBySpecialization returns active agents declaring the tag.
func (r *Registry) FindBySpecialization(ctx context.Context, tag string) ([]*types.Agent, error) {
	return r.store.FindBySpecialization(ctx, tag)
}

// FindByProvider returns active agents from the provider.
func (r *Registry) FindByProvider(ctx context.Context, provider string) ([]*types.Agent, error) {
	return r.store.FindByProvider(ctx, provider)
}

func (r *Registry) invalidate(ctx context.Context, agentID string) error {
	if r.cache == nil {
		return nil
	}
	if err := r.cache.DeletePrefix(ctx, CacheKeyPrefix(agentID)); err != nil {
		// Invalidation failure must not fail the update; the cache TTL
		// bounds staleness.
		r.logger.Warn("cache invalidation failed",
			zap.String("agent_id", agentID),
			zap.Error(err),
		)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
