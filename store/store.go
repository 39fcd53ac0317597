// Package store defines the repository interfaces the collaboration core
// depends on, plus in-memory implementations for development and testing.
// A GORM-backed implementation lives in the gormstore subpackage.
//
// The core never assumes a storage engine: lookups are synchronous, missing
// ids surface as NOT_FOUND coded errors, and any other failure propagates
// unchanged to the caller (the core adds no retry logic of its own).
package store

import (
	"context"
	"time"

	"github.com/teamflow-ai/teamflow/types"
)

// AgentStore persists agents and serves the capability-filtered queries the
// formation engine relies on.
type AgentStore interface {
	SaveAgent(ctx context.Context, agent *types.Agent) error
	GetAgent(ctx context.Context, id string) (*types.Agent, error)
	ListAgents(ctx context.Context) ([]*types.Agent, error)

	// FindAvailable returns active agents currently marked available.
	FindAvailable(ctx context.Context) ([]*types.Agent, error)

	// FindByCapability returns active agents holding the capability at or
	// above minLevel (0 matches any level).
	FindByCapability(ctx context.Context, name string, minLevel float64) ([]*types.Agent, error)

	FindBySpecialization(ctx context.Context, tag string) ([]*types.Agent, error)
	FindByProvider(ctx context.Context, provider string) ([]*types.Agent, error)
}

// TaskStore persists tasks.
type TaskStore interface {
	SaveTask(ctx context.Context, task *types.Task) error
	GetTask(ctx context.Context, id string) (*types.Task, error)
	ListTasks(ctx context.Context) ([]*types.Task, error)
	FindUnassignedTasks(ctx context.Context) ([]*types.Task, error)
	FindOverdueTasks(ctx context.Context, now time.Time) ([]*types.Task, error)
}

// TeamStore persists teams together with their roles (a team owns its
// roles; disbanding cascades).
type TeamStore interface {
	SaveTeam(ctx context.Context, team *types.Team) error
	GetTeam(ctx context.Context, id string) (*types.Team, error)
	ListTeams(ctx context.Context) ([]*types.Team, error)
	DeleteTeam(ctx context.Context, id string) error

	// FindHighPriorityUnfilledRoles returns unfilled roles across all
	// teams with priority >= minPriority.
	FindHighPriorityUnfilledRoles(ctx context.Context, minPriority int) ([]*types.Role, error)
}

// NegotiationStore persists negotiations. The core needs nothing beyond
// load/save by id.
type NegotiationStore interface {
	SaveNegotiation(ctx context.Context, n *types.Negotiation) error
	GetNegotiation(ctx context.Context, id string) (*types.Negotiation, error)
}

// ContextStore persists shared contexts and their version chains. A context
// owns its grants and versions; deleting cascades.
type ContextStore interface {
	SaveContext(ctx context.Context, sc *types.SharedContext) error
	GetContext(ctx context.Context, id string) (*types.SharedContext, error)
	ListContexts(ctx context.Context) ([]*types.SharedContext, error)
	DeleteContext(ctx context.Context, id string) error

	SaveVersion(ctx context.Context, v *types.ContextVersion) error
	GetVersion(ctx context.Context, contextID, versionID string) (*types.ContextVersion, error)
	ListVersions(ctx context.Context, contextID string) ([]*types.ContextVersion, error)
}

// CapabilityStore is the capability registry's persistence surface.
type CapabilityStore interface {
	SaveCapability(ctx context.Context, c *types.Capability) error
	GetCapability(ctx context.Context, name string) (*types.Capability, error)
	ListCapabilities(ctx context.Context) ([]*types.Capability, error)
	FindByCategory(ctx context.Context, category string) ([]*types.Capability, error)
}
