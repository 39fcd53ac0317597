package formation

import (
	"strings"

	"github.com/teamflow-ai/teamflow/types"
)

// ScoreBreakdown carries the sub-scores behind one candidate evaluation, so
// callers and logs can explain why an agent won a role.
type ScoreBreakdown struct {
	CapabilityMatch float64 `json:"capability_match"`
	RoleMatch       float64 `json:"role_match"`
	Performance     float64 `json:"performance"`
	Specialization  float64 `json:"specialization"`
	Final           float64 `json:"final"`

	// BelowThreshold marks a candidate rejected before full scoring.
	BelowThreshold bool `json:"below_threshold,omitempty"`
}

// scorer evaluates candidates against roles using the configured weights.
type scorer struct {
	config Config
}

// score evaluates one candidate for a role. requiredCapabilities maps the
// role's capability names to the task's minimum levels; names absent from
// the map have no level floor.
//
// A candidate whose capability match score is below the configured threshold
// is rejected before the remaining sub-scores are computed.
func (s *scorer) score(agent *types.Agent, role *types.Role, requiredCapabilities map[string]float64) ScoreBreakdown {
	b := ScoreBreakdown{}

	b.CapabilityMatch = capabilityMatchScore(agent, role, requiredCapabilities)
	if b.CapabilityMatch < s.config.CapabilityMatchThreshold {
		b.BelowThreshold = true
		return b
	}

	b.RoleMatch = roleMatchScore(agent, role)
	b.Performance = agent.PerformanceRating / 10.0
	b.Specialization = specializationScore(agent, role)

	// The weights deliberately do not sum to 1.0; see config.go.
	b.Final = capabilityWeight*b.CapabilityMatch +
		roleWeight*b.RoleMatch +
		s.config.PerformanceWeight*b.Performance +
		s.config.SpecializationWeight*b.Specialization
	return b
}

// capabilityMatchScore is the fraction of the role's required capabilities
// the agent holds at or above the task's minimum level. A role with no
// required capabilities scores 1.0.
func capabilityMatchScore(agent *types.Agent, role *types.Role, minLevels map[string]float64) float64 {
	if len(role.RequiredCapabilities) == 0 {
		return 1.0
	}
	matched := 0
	for _, name := range role.RequiredCapabilities {
		if agent.HasCapability(name, minLevels[name]) {
			matched++
		}
	}
	return float64(matched) / float64(len(role.RequiredCapabilities))
}

// roleMatchScore is 0.8 when the agent holds a capability textually matching
// the role's name or description, else 0.2, plus a 0.2 bonus (capped at 1.0)
// when a declared specialization equals the role name.
func roleMatchScore(agent *types.Agent, role *types.Role) float64 {
	score := 0.2
	roleName := strings.ToLower(role.Name)
	roleDesc := strings.ToLower(role.Description)
	for name := range agent.Capabilities {
		lower := strings.ToLower(name)
		if strings.Contains(roleName, lower) || strings.Contains(lower, roleName) ||
			(roleDesc != "" && strings.Contains(roleDesc, lower)) {
			score = 0.8
			break
		}
	}
	for _, spec := range agent.Specializations {
		if strings.EqualFold(spec, role.Name) {
			score += 0.2
			break
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// specializationScore grades how well the agent's declared specializations
// fit the role: 1.0 exact match on the role name, 0.7 substring overlap,
// 0.5 when the role's category set contains the specialization, else 0.1.
func specializationScore(agent *types.Agent, role *types.Role) float64 {
	best := 0.1
	roleName := strings.ToLower(role.Name)
	for _, spec := range agent.Specializations {
		lower := strings.ToLower(spec)
		switch {
		case lower == roleName:
			return 1.0
		case strings.Contains(roleName, lower) || strings.Contains(lower, roleName):
			if best < 0.7 {
				best = 0.7
			}
		case roleCategoryContains(role, lower):
			if best < 0.5 {
				best = 0.5
			}
		}
	}
	return best
}

func roleCategoryContains(role *types.Role, spec string) bool {
	for _, c := range role.Categories {
		if strings.EqualFold(c, spec) {
			return true
		}
	}
	return false
}
