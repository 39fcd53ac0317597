// Package formation implements the team formation engine: weighted scoring
// of agents against roles, initial and asynchronous team formation, post-hoc
// optimization by member swapping, and the outcome feedback loop into agent
// performance ratings.
package formation

// Fixed weights of the final score. The capability and role components are
// fixed; the performance and specialization weights are configurable. The
// four weights intentionally do not sum to 1.0; callers depend on the
// specific numeric output, so the looseness is preserved rather than
// normalized away.
const (
	capabilityWeight = 0.4
	roleWeight       = 0.2
)

// Config holds the externally supplied formation options.
type Config struct {
	// CapabilityMatchThreshold rejects candidates whose capability match
	// score falls below it, before any other scoring.
	CapabilityMatchThreshold float64 `yaml:"capability_match_threshold" json:"capability_match_threshold"`

	// PerformanceWeight scales the normalized performance rating.
	PerformanceWeight float64 `yaml:"performance_weight" json:"performance_weight"`

	// SpecializationWeight scales the specialization score.
	SpecializationWeight float64 `yaml:"specialization_weight" json:"specialization_weight"`
}

// DefaultConfig returns the reference defaults.
func DefaultConfig() Config {
	return Config{
		CapabilityMatchThreshold: 0.75,
		PerformanceWeight:        0.6,
		SpecializationWeight:     0.4,
	}
}

// FormationStrategy selects the simple-form behavior.
type FormationStrategy string

const (
	// StrategyCapability fills the team with the highest-scoring agents
	// for the task's required capabilities.
	StrategyCapability FormationStrategy = "capability"
	// StrategyDiversity prefers candidates whose specializations are not
	// yet represented on the team.
	StrategyDiversity FormationStrategy = "diversity"
)
