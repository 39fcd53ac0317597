package types

import "time"

// Role is a position on a team, optionally filled by one agent. Filling is a
// two-way link guarded by a qualification check in the formation engine.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// RequiredCapabilities lists capability names the filling agent must
	// hold (at any level; tasks carry the level thresholds).
	RequiredCapabilities []string `json:"required_capabilities"`

	// Categories constrain which specializations count as related when
	// scoring candidates.
	Categories []string `json:"categories,omitempty"`

	Priority int `json:"priority"`

	TeamID string `json:"team_id"`

	// AgentID is the filling agent, empty while unfilled.
	AgentID string `json:"agent_id,omitempty"`
}

// Filled reports whether the role has an assigned agent.
func (r *Role) Filled() bool { return r.AgentID != "" }

// TeamStatus is the forward-only lifecycle state of a team.
type TeamStatus string

const (
	TeamForming   TeamStatus = "FORMING"
	TeamActive    TeamStatus = "ACTIVE"
	TeamDisbanded TeamStatus = "DISBANDED"
)

// CanTransition reports whether the move from s to next is legal.
func (s TeamStatus) CanTransition(next TeamStatus) bool {
	switch s {
	case TeamForming:
		return next == TeamActive || next == TeamDisbanded
	case TeamActive:
		return next == TeamDisbanded
	default:
		return false
	}
}

// TeamCompletion reports whether formation filled every required role.
type TeamCompletion string

const (
	// TeamComplete means every required role was filled.
	TeamComplete TeamCompletion = "COMPLETE"
	// TeamPartial means at least one role could not be filled by a
	// qualified agent. This is the soft UNQUALIFIED signal.
	TeamPartial TeamCompletion = "PARTIAL"
)

// Team is a group of agents with roles. Capabilities is a derived view:
// the union of all members' capabilities (max level per name), recomputed by
// the formation engine after every membership change and never trusted
// incrementally.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// MemberIDs is the member set in join order.
	MemberIDs []string `json:"member_ids"`

	// LeaderID must be a member when set.
	LeaderID string `json:"leader_id,omitempty"`

	// Capabilities is derived from membership; see type comment.
	Capabilities map[string]float64 `json:"capabilities"`

	Roles []*Role `json:"roles"`

	Status     TeamStatus     `json:"status"`
	Completion TeamCompletion `json:"completion,omitempty"`

	PerformanceRating float64 `json:"performance_rating"`
	TasksSucceeded    int     `json:"tasks_succeeded"`
	TasksTotal        int     `json:"tasks_total"`

	// TaskID is the task this team was formed for, if any.
	TaskID string `json:"task_id,omitempty"`

	CreatedAt       time.Time `json:"created_at"`
	LastOptimizedAt time.Time `json:"last_optimized_at,omitempty"`
}

// HasMember reports whether the agent is on the team.
func (t *Team) HasMember(agentID string) bool {
	for _, id := range t.MemberIDs {
		if id == agentID {
			return true
		}
	}
	return false
}

// RoleFor returns the role filled by the agent, or nil.
func (t *Team) RoleFor(agentID string) *Role {
	for _, r := range t.Roles {
		if r.AgentID == agentID {
			return r
		}
	}
	return nil
}
