package formation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamflow-ai/teamflow/internal/metrics"
	"github.com/teamflow-ai/teamflow/internal/pool"
	"github.com/teamflow-ai/teamflow/registry"
	"github.com/teamflow-ai/teamflow/store"
	"github.com/teamflow-ai/teamflow/types"
)

// Engine forms teams for tasks by scoring available agents against derived
// roles, and maintains them afterwards: membership changes, role assignment,
// swap-based optimization, and outcome feedback into agent ratings.
type Engine struct {
	agents *registry.Registry
	teams  store.TeamStore
	tasks  store.TaskStore

	scorer  scorer
	config  Config
	logger  *zap.Logger
	metrics *metrics.Collector
	workers *pool.WorkerPool

	// mu serializes team mutation so the derived capability map is always
	// recomputed against a consistent member set.
	mu sync.Mutex
}

// NewEngine builds a formation engine. The worker pool and collector may be
// nil; async formation then runs inline and metrics are dropped.
func NewEngine(agents *registry.Registry, teams store.TeamStore, tasks store.TaskStore, cfg Config, workers *pool.WorkerPool, collector *metrics.Collector, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		agents:  agents,
		teams:   teams,
		tasks:   tasks,
		scorer:  scorer{config: cfg},
		config:  cfg,
		logger:  logger.With(zap.String("component", "formation")),
		metrics: collector,
		workers: workers,
	}
}

// FormTeamForTask derives one role per required capability of the task,
// fills each with the best qualified available agent, and persists the team.
// Roles that no agent qualifies for are left unfilled and the team is marked
// PARTIAL; the call itself does not fail for that.
func (e *Engine) FormTeamForTask(ctx context.Context, taskID string) (*types.Team, error) {
	start := time.Now()

	task, err := e.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.AssignedTeamID != "" {
		return nil, types.InvalidState("task %q already assigned to team %q", task.ID, task.AssignedTeamID)
	}
	if !task.Status.CanTransition(types.TaskAssigned) {
		return nil, types.InvalidState("task %q in status %s cannot be assigned", task.ID, task.Status)
	}

	roles := deriveRoles(task)
	candidates, err := e.agents.FindAvailable(ctx)
	if err != nil {
		return nil, err
	}
	cp := newCandidatePool(candidates, nil)

	team := &types.Team{
		ID:           uuid.NewString(),
		Name:         task.Name + " team",
		Capabilities: map[string]float64{},
		Status:       types.TeamForming,
		TaskID:       task.ID,
		CreatedAt:    time.Now(),
	}

	filled := 0
	for _, role := range roles {
		if task.MaxTeamSize > 0 && len(team.MemberIDs) >= task.MaxTeamSize {
			break
		}
		role.TeamID = team.ID
		winner, breakdown := e.bestCandidate(cp.available(), role, task.RequiredCapabilities)
		if winner == nil {
			e.logger.Warn("no qualified agent for role",
				zap.String("task_id", task.ID),
				zap.String("role", role.Name))
			team.Roles = append(team.Roles, role)
			continue
		}
		cp.remove(winner.ID)
		role.AgentID = winner.ID
		team.MemberIDs = append(team.MemberIDs, winner.ID)
		team.Roles = append(team.Roles, role)
		filled++
		e.logger.Debug("role filled",
			zap.String("team_id", team.ID),
			zap.String("role", role.Name),
			zap.String("agent_id", winner.ID),
			zap.Float64("score", breakdown.Final))
	}

	team.Completion = types.TeamPartial
	if filled == len(roles) {
		team.Completion = types.TeamComplete
		team.Status = types.TeamActive
	}
	if len(team.MemberIDs) > 0 {
		team.LeaderID = team.MemberIDs[0]
	}
	if err := e.recomputeCapabilities(ctx, team); err != nil {
		return nil, err
	}
	if err := e.teams.SaveTeam(ctx, team); err != nil {
		return nil, err
	}

	task.AssignedTeamID = team.ID
	task.Status = types.TaskAssigned
	if err := e.tasks.SaveTask(ctx, task); err != nil {
		return nil, err
	}

	e.metrics.ObserveFormation(string(team.Completion), time.Since(start).Seconds())
	e.logger.Info("team formed",
		zap.String("team_id", team.ID),
		zap.String("task_id", task.ID),
		zap.Int("members", len(team.MemberIDs)),
		zap.String("completion", string(team.Completion)))
	return team, nil
}

// FormTeam assembles a team of the given size for a free-standing capability
// requirement, without a backing task. The diversity strategy prefers
// candidates whose specializations are not yet represented.
func (e *Engine) FormTeam(ctx context.Context, name string, required map[string]float64, size int, strategy FormationStrategy) (*types.Team, error) {
	if size <= 0 {
		return nil, types.InvalidState("team size must be positive, got %d", size)
	}
	candidates, err := e.agents.FindAvailable(ctx)
	if err != nil {
		return nil, err
	}

	role := &types.Role{
		ID:                   uuid.NewString(),
		Name:                 name,
		RequiredCapabilities: sortedKeys(required),
	}
	team := &types.Team{
		ID:           uuid.NewString(),
		Name:         name,
		Capabilities: map[string]float64{},
		Status:       types.TeamForming,
		CreatedAt:    time.Now(),
	}

	cp := newCandidatePool(candidates, nil)
	seen := map[string]bool{}
	for len(team.MemberIDs) < size {
		var winner *types.Agent
		var best float64
		for _, agent := range cp.available() {
			b := e.scorer.score(agent, role, required)
			if b.BelowThreshold {
				continue
			}
			score := b.Final
			if strategy == StrategyDiversity {
				score += diversityBonus(agent, seen)
			}
			if winner == nil || score > best {
				winner, best = agent, score
			}
		}
		if winner == nil {
			break
		}
		cp.remove(winner.ID)
		team.MemberIDs = append(team.MemberIDs, winner.ID)
		for _, s := range winner.Specializations {
			seen[s] = true
		}
	}

	team.Completion = types.TeamPartial
	if len(team.MemberIDs) == size {
		team.Completion = types.TeamComplete
		team.Status = types.TeamActive
	}
	if len(team.MemberIDs) > 0 {
		team.LeaderID = team.MemberIDs[0]
	}
	if err := e.recomputeCapabilities(ctx, team); err != nil {
		return nil, err
	}
	if err := e.teams.SaveTeam(ctx, team); err != nil {
		return nil, err
	}
	e.metrics.ObserveFormation(string(team.Completion), 0)
	return team, nil
}

// FindBestAgentForRole scores every available agent not already on the team
// and returns the winner with its breakdown. Returns a nil agent when nobody
// clears the capability threshold.
func (e *Engine) FindBestAgentForRole(ctx context.Context, role *types.Role, required map[string]float64, team *types.Team) (*types.Agent, ScoreBreakdown, error) {
	candidates, err := e.agents.FindAvailable(ctx)
	if err != nil {
		return nil, ScoreBreakdown{}, err
	}
	exclude := map[string]bool{}
	if team != nil {
		for _, id := range team.MemberIDs {
			exclude[id] = true
		}
	}
	cp := newCandidatePool(candidates, exclude)
	winner, breakdown := e.bestCandidate(cp.available(), role, required)
	return winner, breakdown, nil
}

// OptimizeTeam revisits every filled role and swaps in a strictly better
// scoring available agent where one exists. Displaced members return to the
// candidate pool so a later role in the same pass may pick them up.
func (e *Engine) OptimizeTeam(ctx context.Context, teamID string) (*types.Team, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	team, err := e.teams.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.Status == types.TeamDisbanded {
		return nil, types.InvalidState("team %q is disbanded", teamID)
	}

	var required map[string]float64
	if team.TaskID != "" {
		task, err := e.tasks.GetTask(ctx, team.TaskID)
		if err != nil {
			return nil, err
		}
		required = task.RequiredCapabilities
	}

	candidates, err := e.agents.FindAvailable(ctx)
	if err != nil {
		return nil, err
	}
	exclude := map[string]bool{}
	for _, id := range team.MemberIDs {
		exclude[id] = true
	}
	cp := newCandidatePool(candidates, exclude)

	swaps := 0
	for _, role := range team.Roles {
		if !role.Filled() {
			continue
		}
		current, err := e.agents.Get(ctx, role.AgentID)
		if err != nil {
			return nil, err
		}
		currentScore := e.scorer.score(current, role, required)

		var challenger *types.Agent
		var challengerScore ScoreBreakdown
		for _, agent := range cp.available() {
			b := e.scorer.score(agent, role, required)
			if b.BelowThreshold {
				continue
			}
			if b.Final > currentScore.Final && (challenger == nil || b.Final > challengerScore.Final) {
				challenger, challengerScore = agent, b
			}
		}
		if challenger == nil {
			continue
		}
		if !cp.checkOut(challenger.ID) {
			continue
		}

		replaceMember(team, current.ID, challenger.ID)
		role.AgentID = challenger.ID
		cp.remove(challenger.ID)
		cp.checkIn(current)
		swaps++
		e.metrics.IncTeamSwap()
		e.logger.Info("member swapped",
			zap.String("team_id", team.ID),
			zap.String("role", role.Name),
			zap.String("out", current.ID),
			zap.String("in", challenger.ID),
			zap.Float64("old_score", currentScore.Final),
			zap.Float64("new_score", challengerScore.Final))
	}

	team.LastOptimizedAt = time.Now()
	if err := e.recomputeCapabilities(ctx, team); err != nil {
		return nil, err
	}
	if err := e.teams.SaveTeam(ctx, team); err != nil {
		return nil, err
	}
	e.logger.Debug("optimization pass complete",
		zap.String("team_id", team.ID), zap.Int("swaps", swaps))
	return team, nil
}

// TeamRecommendation is one candidate composition produced without
// persisting anything.
type TeamRecommendation struct {
	Members []*types.Agent `json:"members"`
	Score   float64        `json:"score"`
}

// GetTeamRecommendations produces up to count alternative compositions for
// the task, ordered best first. Each subsequent composition excludes the
// agents already recommended so the alternatives are genuinely different.
func (e *Engine) GetTeamRecommendations(ctx context.Context, taskID string, count int) ([]*TeamRecommendation, error) {
	task, err := e.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	candidates, err := e.agents.FindAvailable(ctx)
	if err != nil {
		return nil, err
	}

	roles := deriveRoles(task)
	exclude := map[string]bool{}
	var recs []*TeamRecommendation
	for i := 0; i < count; i++ {
		cp := newCandidatePool(candidates, exclude)
		var members []*types.Agent
		total := 0.0
		for _, role := range roles {
			winner, b := e.bestCandidate(cp.available(), role, task.RequiredCapabilities)
			if winner == nil {
				continue
			}
			cp.remove(winner.ID)
			members = append(members, winner)
			total += b.Final
		}
		if len(members) == 0 {
			break
		}
		rec := &TeamRecommendation{Members: members, Score: total / float64(len(members))}
		recs = append(recs, rec)
		for _, m := range members {
			exclude[m.ID] = true
		}
	}
	return recs, nil
}

// AddMember adds the agent to the team and recomputes the derived
// capability map from the full member set.
func (e *Engine) AddMember(ctx context.Context, teamID, agentID string) (*types.Team, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	team, err := e.teams.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.Status == types.TeamDisbanded {
		return nil, types.InvalidState("team %q is disbanded", teamID)
	}
	if team.HasMember(agentID) {
		return nil, types.InvalidState("agent %q already on team %q", agentID, teamID)
	}
	if _, err := e.agents.Get(ctx, agentID); err != nil {
		return nil, err
	}

	team.MemberIDs = append(team.MemberIDs, agentID)
	if team.LeaderID == "" {
		team.LeaderID = agentID
	}
	if err := e.recomputeCapabilities(ctx, team); err != nil {
		return nil, err
	}
	if err := e.teams.SaveTeam(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

// RemoveMember removes the agent, clears any role it filled, and recomputes
// the derived capability map.
func (e *Engine) RemoveMember(ctx context.Context, teamID, agentID string) (*types.Team, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	team, err := e.teams.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !team.HasMember(agentID) {
		return nil, types.NotFound("team member", agentID)
	}

	kept := team.MemberIDs[:0]
	for _, id := range team.MemberIDs {
		if id != agentID {
			kept = append(kept, id)
		}
	}
	team.MemberIDs = kept
	if r := team.RoleFor(agentID); r != nil {
		r.AgentID = ""
		team.Completion = types.TeamPartial
	}
	if team.LeaderID == agentID {
		team.LeaderID = ""
		if len(team.MemberIDs) > 0 {
			team.LeaderID = team.MemberIDs[0]
		}
	}
	if err := e.recomputeCapabilities(ctx, team); err != nil {
		return nil, err
	}
	if err := e.teams.SaveTeam(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

// AssignRole links the agent and the role both ways. The agent must hold
// every capability the role requires (at the owning task's minimum levels
// when the team has a task) and must not already fill another role on the
// team. A non-member is added as part of the assignment.
func (e *Engine) AssignRole(ctx context.Context, teamID, roleID, agentID string) (*types.Team, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	team, err := e.teams.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	var role *types.Role
	for _, r := range team.Roles {
		if r.ID == roleID {
			role = r
			break
		}
	}
	if role == nil {
		return nil, types.NotFound("role", roleID)
	}
	agent, err := e.agents.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if existing := team.RoleFor(agentID); existing != nil && existing.ID != roleID {
		return nil, types.InvalidState("agent %q already fills role %q on team %q", agentID, existing.Name, teamID)
	}

	var minLevels map[string]float64
	if team.TaskID != "" {
		if task, err := e.tasks.GetTask(ctx, team.TaskID); err == nil {
			minLevels = task.RequiredCapabilities
		}
	}
	for _, name := range role.RequiredCapabilities {
		if !agent.HasCapability(name, minLevels[name]) {
			return nil, types.NewError(types.ErrUnqualified,
				"agent "+agentID+" lacks capability "+name+" for role "+role.Name)
		}
	}

	role.AgentID = agentID
	if !team.HasMember(agentID) {
		team.MemberIDs = append(team.MemberIDs, agentID)
	}
	allFilled := true
	for _, r := range team.Roles {
		if !r.Filled() {
			allFilled = false
			break
		}
	}
	if allFilled {
		team.Completion = types.TeamComplete
		if team.Status == types.TeamForming {
			team.Status = types.TeamActive
		}
	}
	if err := e.recomputeCapabilities(ctx, team); err != nil {
		return nil, err
	}
	if err := e.teams.SaveTeam(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

// UpdateAgentCollaborationScores feeds a completed engagement outcome back
// into every member's performance rating and the team's own counters.
// successRating is in [0,1]; 0.5 is neutral.
func (e *Engine) UpdateAgentCollaborationScores(ctx context.Context, teamID string, successRating float64) error {
	team, err := e.teams.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}

	delta := successRating - 0.5
	for _, id := range team.MemberIDs {
		if err := e.agents.AdjustPerformance(ctx, id, delta); err != nil {
			e.logger.Warn("performance adjustment failed",
				zap.String("agent_id", id), zap.Error(err))
		}
	}

	team.TasksTotal++
	if successRating >= 0.5 {
		team.TasksSucceeded++
	}
	// Rolling mean over engagements, kept on the agents' 0 to 10 scale.
	n := float64(team.TasksTotal)
	team.PerformanceRating = team.PerformanceRating*(n-1)/n + successRating*10/n
	return e.teams.SaveTeam(ctx, team)
}

// Disband moves the team to DISBANDED and releases role links.
func (e *Engine) Disband(ctx context.Context, teamID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	team, err := e.teams.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if !team.Status.CanTransition(types.TeamDisbanded) {
		return types.InvalidState("team %q in status %s cannot disband", teamID, team.Status)
	}
	team.Status = types.TeamDisbanded
	for _, r := range team.Roles {
		r.AgentID = ""
	}
	return e.teams.SaveTeam(ctx, team)
}

// FormationFuture is the handle for an asynchronous formation request.
type FormationFuture struct {
	done chan struct{}
	team *types.Team
	err  error
}

// Wait blocks until formation finishes or the context is cancelled.
func (f *FormationFuture) Wait(ctx context.Context) (*types.Team, error) {
	select {
	case <-f.done:
		return f.team, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FormTeamAsync runs FormTeamForTask on the worker pool. Without a pool the
// formation runs inline and the returned future is already resolved.
func (e *Engine) FormTeamAsync(ctx context.Context, taskID string) (*FormationFuture, error) {
	f := &FormationFuture{done: make(chan struct{})}
	run := func(ctx context.Context) error {
		f.team, f.err = e.FormTeamForTask(ctx, taskID)
		close(f.done)
		return f.err
	}
	if e.workers == nil {
		_ = run(ctx)
		return f, nil
	}
	if err := e.workers.Submit(ctx, run); err != nil {
		return nil, err
	}
	return f, nil
}

// bestCandidate returns the first strictly highest scoring candidate above
// the threshold. Candidates must already be in deterministic order; equal
// scores keep the earlier candidate.
func (e *Engine) bestCandidate(candidates []*types.Agent, role *types.Role, required map[string]float64) (*types.Agent, ScoreBreakdown) {
	var winner *types.Agent
	var best ScoreBreakdown
	for _, agent := range candidates {
		b := e.scorer.score(agent, role, required)
		if b.BelowThreshold {
			continue
		}
		if winner == nil || b.Final > best.Final {
			winner, best = agent, b
		}
	}
	return winner, best
}

// recomputeCapabilities rebuilds the derived capability map from scratch:
// the union of member capabilities with the maximum level per name.
func (e *Engine) recomputeCapabilities(ctx context.Context, team *types.Team) error {
	caps := map[string]float64{}
	for _, id := range team.MemberIDs {
		agent, err := e.agents.Get(ctx, id)
		if err != nil {
			return err
		}
		for name, level := range agent.Capabilities {
			if level > caps[name] {
				caps[name] = level
			}
		}
	}
	team.Capabilities = caps
	return nil
}

// deriveRoles builds one role per required capability of the task, named
// after the capability, ordered by name for deterministic filling.
func deriveRoles(task *types.Task) []*types.Role {
	names := sortedKeys(task.RequiredCapabilities)
	roles := make([]*types.Role, 0, len(names))
	for _, name := range names {
		roles = append(roles, &types.Role{
			ID:                   uuid.NewString(),
			Name:                 name,
			RequiredCapabilities: []string{name},
			Priority:             task.Priority,
		})
	}
	return roles
}

func diversityBonus(agent *types.Agent, seen map[string]bool) float64 {
	for _, s := range agent.Specializations {
		if !seen[s] {
			return 0.15
		}
	}
	return 0
}

func replaceMember(team *types.Team, oldID, newID string) {
	for i, id := range team.MemberIDs {
		if id == oldID {
			team.MemberIDs[i] = newID
			break
		}
	}
	if team.LeaderID == oldID {
		team.LeaderID = newID
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
