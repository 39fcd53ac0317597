package coordinator

import (
	"context"
	"time"

	"github.com/teamflow-ai/teamflow/types"
)

// ProblemSpec describes a problem submitted for collaborative solving.
type ProblemSpec struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// Domains lists the knowledge domains the problem touches. More than
	// one domain drives domain-based decomposition.
	Domains []string `json:"domains,omitempty"`

	Requirements []string `json:"requirements,omitempty"`
	Constraints  []string `json:"constraints,omitempty"`

	// Complexity is "low", "medium", or "high".
	Complexity string `json:"complexity,omitempty"`

	// EstimatedMinutes is the expected solving time.
	EstimatedMinutes int `json:"estimated_minutes,omitempty"`

	// Kind shapes the fallback pipeline: "ml", "optimization", or
	// anything else for the generic pipeline.
	Kind string `json:"kind,omitempty"`

	// FeatureGroups drives partition decomposition for large
	// single-domain data problems.
	FeatureGroups []string `json:"feature_groups,omitempty"`

	// RequiredCapabilities maps capability name to minimum level for the
	// problem as a whole.
	RequiredCapabilities map[string]float64 `json:"required_capabilities,omitempty"`
}

// Analysis is the output of problem analysis.
type Analysis struct {
	IsCollaborative       bool               `json:"is_collaborative"`
	RequiredCapabilities  map[string]float64 `json:"required_capabilities"`
	DecompositionApproach string             `json:"decomposition_approach"`
	ResourceRequirements  map[string]any     `json:"resource_requirements"`
	RelevantKnowledge     []string           `json:"relevant_knowledge"`
	VerificationApproach  string             `json:"verification_approach"`
}

// Decomposition approaches.
const (
	ApproachDomain       = "domain"
	ApproachPartition    = "partition"
	ApproachHierarchical = "hierarchical"
	ApproachPipeline     = "pipeline"
)

// Subtask is one unit of the decomposed problem.
type Subtask struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Domain      string `json:"domain,omitempty"`

	RequiredCapabilities map[string]float64 `json:"required_capabilities,omitempty"`

	// DependsOn lists subtask ids that must complete first.
	DependsOn []string `json:"depends_on,omitempty"`

	// Integration marks the final subtask that folds all leaf outputs
	// into the solution.
	Integration bool `json:"integration,omitempty"`
}

// Decomposition is the subtask set plus its dependency graph.
type Decomposition struct {
	Approach string     `json:"approach"`
	Subtasks []*Subtask `json:"subtasks"`
}

// SubtaskByID returns the subtask or nil.
func (d *Decomposition) SubtaskByID(id string) *Subtask {
	for _, st := range d.Subtasks {
		if st.ID == id {
			return st
		}
	}
	return nil
}

// SubtaskStatus values tracked in the session and the shared context's
// progress map.
const (
	SubtaskPending   = "PENDING"
	SubtaskRunning   = "RUNNING"
	SubtaskCompleted = "COMPLETED"
	SubtaskFailed    = "FAILED"
)

// SessionStatus is the lifecycle state of a problem-solving session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionFailed    SessionStatus = "FAILED"
)

// Session records one full problem-solving run.
type Session struct {
	ID        string `json:"id"`
	ProblemID string `json:"problem_id"`
	TeamID    string `json:"team_id"`
	ContextID string `json:"context_id"`

	// Assignments maps subtask id to the member responsible for it.
	Assignments map[string]string `json:"assignments"`

	// SubtaskStatus maps subtask id to its terminal status.
	SubtaskStatus map[string]string `json:"subtask_status"`

	Status   SessionStatus   `json:"status"`
	Solution *types.Document `json:"solution,omitempty"`

	// Warnings surfaces non-fatal anomalies, such as a dependency cycle
	// broken by force-scheduling.
	Warnings []string `json:"warnings,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// Executor runs one subtask on behalf of an assigned agent. Inputs map each
// declared dependency's id to its output. The coordinator never invokes
// agent cognition itself; callers supply the execution behavior.
type Executor interface {
	ExecuteSubtask(ctx context.Context, subtask *Subtask, agentID string, inputs map[string]*types.Document) (*types.Document, error)
}

// acknowledgeExecutor is the fallback when no executor is injected: it
// marks the subtask done without producing real work output.
var acknowledgeExecutor = ExecutorFunc(func(_ context.Context, subtask *Subtask, agentID string, _ map[string]*types.Document) (*types.Document, error) {
	out := types.NewDocument()
	out.Set("subtask", subtask.Name)
	out.Set("acknowledged_by", agentID)
	return out, nil
})

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, subtask *Subtask, agentID string, inputs map[string]*types.Document) (*types.Document, error)

// ExecuteSubtask implements Executor.
func (f ExecutorFunc) ExecuteSubtask(ctx context.Context, subtask *Subtask, agentID string, inputs map[string]*types.Document) (*types.Document, error) {
	return f(ctx, subtask, agentID, inputs)
}
