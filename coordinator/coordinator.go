// Package coordinator orchestrates collaborative problem solving: analysis,
// decomposition, team formation, shared-context tracking, and phased
// execution of the subtask graph.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teamflow-ai/teamflow/contextstore"
	"github.com/teamflow-ai/teamflow/formation"
	"github.com/teamflow-ai/teamflow/internal/metrics"
	"github.com/teamflow-ai/teamflow/store"
	"github.com/teamflow-ai/teamflow/types"
)

// maxSubtasksPerAgent caps greedy assignment; the second pass ignores it
// only when a subtask would otherwise stay unassigned.
const maxSubtasksPerAgent = 5

// defaultSubtaskTimeout bounds one subtask execution.
const defaultSubtaskTimeout = 300 * time.Second

// Coordinator drives the problem-solving pipeline end to end.
type Coordinator struct {
	formation *formation.Engine
	contexts  *contextstore.Service
	agents    store.AgentStore
	tasks     store.TaskStore
	executor  Executor

	subtaskTimeout time.Duration
	logger         *zap.Logger
	metrics        *metrics.Collector

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New builds a coordinator. subtaskTimeout of zero uses the default.
func New(form *formation.Engine, contexts *contextstore.Service, agents store.AgentStore, tasks store.TaskStore, executor Executor, subtaskTimeout time.Duration, collector *metrics.Collector, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if subtaskTimeout <= 0 {
		subtaskTimeout = defaultSubtaskTimeout
	}
	if executor == nil {
		executor = acknowledgeExecutor
	}
	return &Coordinator{
		formation:      form,
		contexts:       contexts,
		agents:         agents,
		tasks:          tasks,
		executor:       executor,
		subtaskTimeout: subtaskTimeout,
		logger:         logger.With(zap.String("component", "coordinator")),
		metrics:        collector,
		sessions:       map[string]*Session{},
	}
}

// Session returns a stored session by id.
func (c *Coordinator) Session(id string) (*Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[id]
	if !ok {
		return nil, types.NotFound("session", id)
	}
	return s, nil
}

// FormProblemSolvingTeam collects the union of all subtasks' required
// capabilities, forms a team for it, and assigns subtasks to members
// greedily: each subtask goes to the member with the best
// load-normalized capability coverage, under the per-agent cap; a second
// pass force-assigns leftovers to the member with the fewest subtasks.
func (c *Coordinator) FormProblemSolvingTeam(ctx context.Context, spec *ProblemSpec, dec *Decomposition) (*types.Team, map[string]string, error) {
	union := map[string]float64{}
	for _, st := range dec.Subtasks {
		for name, level := range st.RequiredCapabilities {
			if level > union[name] {
				union[name] = level
			}
		}
	}

	task := &types.Task{
		ID:                   uuid.NewString(),
		Name:                 spec.Title,
		Description:          spec.Description,
		RequiredCapabilities: union,
		Status:               types.TaskCreated,
		CreatedAt:            time.Now(),
	}
	if err := c.tasks.SaveTask(ctx, task); err != nil {
		return nil, nil, err
	}
	team, err := c.formation.FormTeamForTask(ctx, task.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(team.MemberIDs) == 0 {
		return nil, nil, types.NewError(types.ErrUnqualified,
			"no qualified agents available for problem "+spec.Title)
	}

	assignments, err := c.assignSubtasks(ctx, team, dec)
	if err != nil {
		return nil, nil, err
	}
	return team, assignments, nil
}

func (c *Coordinator) assignSubtasks(ctx context.Context, team *types.Team, dec *Decomposition) (map[string]string, error) {
	members := make([]*types.Agent, 0, len(team.MemberIDs))
	for _, id := range team.MemberIDs {
		agent, err := c.agents.GetAgent(ctx, id)
		if err != nil {
			return nil, err
		}
		members = append(members, agent)
	}

	assignments := make(map[string]string, len(dec.Subtasks))
	load := make(map[string]int, len(members))

	for _, st := range dec.Subtasks {
		var best *types.Agent
		bestScore := 0.0
		for _, m := range members {
			if load[m.ID] >= maxSubtasksPerAgent {
				continue
			}
			score := coverageScore(m, st) / float64(load[m.ID]+1)
			if best == nil || score > bestScore {
				best, bestScore = m, score
			}
		}
		if best != nil {
			assignments[st.ID] = best.ID
			load[best.ID]++
		}
	}

	// Second pass: force-assign whatever remains to the least loaded.
	for _, st := range dec.Subtasks {
		if _, ok := assignments[st.ID]; ok {
			continue
		}
		var fewest *types.Agent
		for _, m := range members {
			if fewest == nil || load[m.ID] < load[fewest.ID] {
				fewest = m
			}
		}
		if fewest == nil {
			return nil, types.NewError(types.ErrUnqualified,
				"no team member available for subtask "+st.Name)
		}
		assignments[st.ID] = fewest.ID
		load[fewest.ID]++
	}
	return assignments, nil
}

// coverageScore is the fraction of the subtask's required capability mass
// the agent covers, weighted by its own levels.
func coverageScore(agent *types.Agent, st *Subtask) float64 {
	if len(st.RequiredCapabilities) == 0 {
		return 1.0
	}
	covered := 0.0
	for name, min := range st.RequiredCapabilities {
		if level, ok := agent.Capabilities[name]; ok && level >= min {
			covered += level
		}
	}
	return covered / float64(len(st.RequiredCapabilities))
}

// CreateProblemSolvingContext creates a shared context seeded with the
// problem, decomposition, team, and a progress tracker, and opens the
// session. Every team member receives READ_WRITE.
func (c *Coordinator) CreateProblemSolvingContext(ctx context.Context, spec *ProblemSpec, dec *Decomposition, team *types.Team, assignments map[string]string) (*types.SharedContext, *Session, error) {
	statuses := types.NewDocument()
	for _, st := range dec.Subtasks {
		statuses.Set(st.ID, SubtaskPending)
	}
	seed := types.NewDocument()
	seed.Set("problem_id", spec.ID)
	seed.Set("problem_title", spec.Title)
	seed.Set("approach", dec.Approach)
	seed.Set("team_id", team.ID)
	seed.Set("subtasks_total", len(dec.Subtasks))
	seed.Set("subtasks_completed", 0)
	seed.Set("subtask_status", statuses.Map())

	var grants []*types.ContextAccess
	for _, id := range team.MemberIDs {
		grants = append(grants, &types.ContextAccess{
			AgentID: id,
			Level:   types.AccessReadWrite,
		})
	}
	owner := team.LeaderID
	if owner == "" {
		owner = team.MemberIDs[0]
	}
	sc, err := c.contexts.Create(ctx, spec.Title+" session", "problem_solving", owner, seed, grants)
	if err != nil {
		return nil, nil, err
	}

	session := &Session{
		ID:            uuid.NewString(),
		ProblemID:     spec.ID,
		TeamID:        team.ID,
		ContextID:     sc.ID,
		Assignments:   assignments,
		SubtaskStatus: map[string]string{},
		Status:        SessionActive,
		StartedAt:     time.Now(),
	}
	for _, st := range dec.Subtasks {
		session.SubtaskStatus[st.ID] = SubtaskPending
	}
	c.mu.Lock()
	c.sessions[session.ID] = session
	c.mu.Unlock()
	return sc, session, nil
}

// CoordinateProblemSolving runs the whole pipeline: analyze, decompose,
// form the team, open the session context, then execute the plan phase by
// phase. Subtasks within a phase run concurrently; a phase starts only
// after every prior phase fully completed. A failed or timed-out subtask
// is recorded and its output withheld, but siblings keep running.
func (c *Coordinator) CoordinateProblemSolving(ctx context.Context, spec *ProblemSpec) (*Session, error) {
	analysis := AnalyzeProblem(spec)
	dec := DecomposeProblem(spec, analysis)

	team, assignments, err := c.FormProblemSolvingTeam(ctx, spec, dec)
	if err != nil {
		return nil, err
	}
	sc, session, err := c.CreateProblemSolvingContext(ctx, spec, dec, team, assignments)
	if err != nil {
		return nil, err
	}

	plan := buildExecutionPlan(dec)
	session.Warnings = append(session.Warnings, plan.warnings...)
	for _, w := range plan.warnings {
		c.logger.Warn(w, zap.String("session_id", session.ID))
	}

	outputs := map[string]*types.Document{}
	var outputsMu sync.Mutex

	progressOwner := sc.OwnerID
	for _, phase := range plan.phases {
		g, phaseCtx := errgroup.WithContext(ctx)
		for _, st := range phase {
			st := st
			g.Go(func() error {
				c.runSubtask(phaseCtx, session, st, assignments[st.ID], outputs, &outputsMu)
				return nil
			})
		}
		// Barrier: the next phase starts only when the whole phase is
		// done. Subtask failures are aggregated, not propagated.
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := c.recordProgress(ctx, session, progressOwner); err != nil {
			c.logger.Warn("progress update failed",
				zap.String("session_id", session.ID), zap.Error(err))
		}
	}

	session.Solution = c.finalSolution(dec, outputs)
	session.Status = SessionCompleted
	session.EndedAt = time.Now()

	final := types.NewDocument()
	final.Set("status", string(SessionCompleted))
	if session.Solution != nil {
		final.Set("solution", session.Solution.Map())
	}
	if _, err := c.contexts.Update(ctx, session.ContextID, progressOwner, final, nil); err != nil {
		c.logger.Warn("final context update failed",
			zap.String("session_id", session.ID), zap.Error(err))
	}
	c.logger.Info("problem solving completed",
		zap.String("session_id", session.ID),
		zap.String("team_id", session.TeamID),
		zap.Int("subtasks", len(dec.Subtasks)),
		zap.Int("warnings", len(session.Warnings)))
	return session, nil
}

// runSubtask executes one subtask with the per-call timeout, gathering its
// dependencies' outputs as inputs. Failures mark the subtask FAILED for
// aggregation without aborting siblings.
func (c *Coordinator) runSubtask(ctx context.Context, session *Session, st *Subtask, agentID string, outputs map[string]*types.Document, mu *sync.Mutex) {
	mu.Lock()
	session.SubtaskStatus[st.ID] = SubtaskRunning
	inputs := make(map[string]*types.Document, len(st.DependsOn))
	for _, dep := range st.DependsOn {
		if out, ok := outputs[dep]; ok {
			inputs[dep] = out
		}
	}
	mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, c.subtaskTimeout)
	defer cancel()

	out, err := c.executor.ExecuteSubtask(runCtx, st, agentID, inputs)

	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		session.SubtaskStatus[st.ID] = SubtaskFailed
		c.metrics.IncSubtask(SubtaskFailed)
		c.logger.Warn("subtask failed",
			zap.String("session_id", session.ID),
			zap.String("subtask", st.Name),
			zap.String("agent_id", agentID),
			zap.Error(err))
		return
	}
	session.SubtaskStatus[st.ID] = SubtaskCompleted
	outputs[st.ID] = out
	c.metrics.IncSubtask(SubtaskCompleted)
}

// recordProgress writes the completed/total counters and per-subtask status
// map into the session's shared context.
func (c *Coordinator) recordProgress(ctx context.Context, session *Session, authorID string) error {
	completed := 0
	statuses := map[string]any{}
	for id, status := range session.SubtaskStatus {
		statuses[id] = status
		if status == SubtaskCompleted {
			completed++
		}
	}
	update := types.NewDocument()
	update.Set("subtasks_completed", completed)
	update.Set("subtask_status", statuses)
	_, err := c.contexts.Update(ctx, session.ContextID, authorID, update, nil)
	return err
}

// finalSolution prefers the INTEGRATION subtask's output; without one the
// last subtask's output wins. A run with no outputs at all yields an empty
// solution document.
func (c *Coordinator) finalSolution(dec *Decomposition, outputs map[string]*types.Document) *types.Document {
	for _, st := range dec.Subtasks {
		if st.Integration {
			if out, ok := outputs[st.ID]; ok {
				return out
			}
		}
	}
	for i := len(dec.Subtasks) - 1; i >= 0; i-- {
		if out, ok := outputs[dec.Subtasks[i].ID]; ok {
			return out
		}
	}
	return types.NewDocument()
}
