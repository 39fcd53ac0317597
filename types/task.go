package types

import "time"

// TaskStatus is the forward-only lifecycle state of a task.
type TaskStatus string

const (
	TaskCreated    TaskStatus = "CREATED"
	TaskAssigned   TaskStatus = "ASSIGNED"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

// taskTransitions encodes the forward-only status graph. Terminal states
// have no successors.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskCreated:    {TaskAssigned, TaskCancelled},
	TaskAssigned:   {TaskInProgress, TaskCancelled},
	TaskInProgress: {TaskCompleted, TaskFailed, TaskCancelled},
}

// CanTransition reports whether the move from s to next is legal.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	for _, t := range taskTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no legal successors.
func (s TaskStatus) Terminal() bool {
	return len(taskTransitions[s]) == 0
}

// Task describes a unit of work that a team is formed for.
type Task struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// RequiredCapabilities maps capability name to minimum level.
	RequiredCapabilities    map[string]float64 `json:"required_capabilities"`
	RequiredSpecializations []string           `json:"required_specializations,omitempty"`

	Priority          int           `json:"priority"`
	Complexity        int           `json:"complexity"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
	MinTeamSize       int           `json:"min_team_size"`
	MaxTeamSize       int           `json:"max_team_size"`

	Status TaskStatus `json:"status"`

	// AssignedTeamID is set once a team takes the task. A task owns zero
	// or one team.
	AssignedTeamID string `json:"assigned_team_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	DueAt     time.Time `json:"due_at,omitempty"`
}

// Overdue reports whether the task passed its due time without reaching a
// terminal state.
func (t *Task) Overdue(now time.Time) bool {
	return !t.DueAt.IsZero() && now.After(t.DueAt) && !t.Status.Terminal()
}
