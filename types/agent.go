package types

import "time"

// Agent is an opaque capability-bearing participant. Engines never invoke
// agent cognition; they only read capability levels, specializations,
// availability, and performance history.
type Agent struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// Capabilities maps capability name to proficiency level in [0,1].
	Capabilities map[string]float64 `json:"capabilities"`

	// Specializations are free-form tags the agent declares.
	Specializations []string `json:"specializations,omitempty"`

	// PerformanceRating is a rolling success score on a 0–10 scale,
	// adjusted by team-outcome feedback.
	PerformanceRating float64 `json:"performance_rating"`

	Available bool `json:"available"`

	// Active is false once the agent is deactivated. Agents are
	// soft-deleted so historical team and negotiation references
	// stay resolvable.
	Active bool `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCapability reports whether the agent holds the capability at or above
// minLevel.
func (a *Agent) HasCapability(name string, minLevel float64) bool {
	level, ok := a.Capabilities[name]
	return ok && level >= minLevel
}

// HasSpecialization reports whether the agent declares the tag.
func (a *Agent) HasSpecialization(tag string) bool {
	for _, s := range a.Specializations {
		if s == tag {
			return true
		}
	}
	return false
}

// QualifiesFor reports whether the agent holds every required capability at
// its minimum level.
func (a *Agent) QualifiesFor(required map[string]float64) bool {
	for name, min := range required {
		if !a.HasCapability(name, min) {
			return false
		}
	}
	return true
}

// AgentPreferences is the per-agent bargaining data consumed by the
// negotiation engine: an integer priority and a key→preferred-value map.
type AgentPreferences struct {
	AgentID     string         `json:"agent_id"`
	Priority    int            `json:"priority"`
	Preferences map[string]any `json:"preferences"`
}
