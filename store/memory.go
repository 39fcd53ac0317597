package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/teamflow-ai/teamflow/types"
)

// Memory is an in-process implementation of every store interface, guarded
// by a single RWMutex. Suitable for tests and single-node deployments.
type Memory struct {
	mu           sync.RWMutex
	agents       map[string]*types.Agent
	tasks        map[string]*types.Task
	teams        map[string]*types.Team
	negotiations map[string]*types.Negotiation
	contexts     map[string]*types.SharedContext
	versions     map[string]map[string]*types.ContextVersion // contextID -> versionID -> version
	capabilities map[string]*types.Capability
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		agents:       make(map[string]*types.Agent),
		tasks:        make(map[string]*types.Task),
		teams:        make(map[string]*types.Team),
		negotiations: make(map[string]*types.Negotiation),
		contexts:     make(map[string]*types.SharedContext),
		versions:     make(map[string]map[string]*types.ContextVersion),
		capabilities: make(map[string]*types.Capability),
	}
}

// --- agents ---

func (m *Memory) SaveAgent(_ context.Context, agent *types.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[agent.ID] = agent
	return nil
}

func (m *Memory) GetAgent(_ context.Context, id string) (*types.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, types.NotFound("agent", id)
	}
	return a, nil
}

func (m *Memory) ListAgents(_ context.Context) ([]*types.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a)
	}
	sortAgents(out)
	return out, nil
}

func (m *Memory) FindAvailable(_ context.Context) ([]*types.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.Agent
	for _, a := range m.agents {
		if a.Active && a.Available {
			out = append(out, a)
		}
	}
	sortAgents(out)
	return out, nil
}

func (m *Memory) FindByCapability(_ context.Context, name string, minLevel float64) ([]*types.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.Agent
	for _, a := range m.agents {
		if a.Active && a.HasCapability(name, minLevel) {
			out = append(out, a)
		}
	}
	sortAgents(out)
	return out, nil
}

func (m *Memory) FindBySpecialization(_ context.Context, tag string) ([]*types.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.Agent
	for _, a := range m.agents {
		if a.Active && a.HasSpecialization(tag) {
			out = append(out, a)
		}
	}
	sortAgents(out)
	return out, nil
}

func (m *Memory) FindByProvider(_ context.Context, provider string) ([]*types.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.Agent
	for _, a := range m.agents {
		if a.Active && a.Provider == provider {
			out = append(out, a)
		}
	}
	sortAgents(out)
	return out, nil
}

// --- tasks ---

func (m *Memory) SaveTask(_ context.Context, task *types.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
	return nil
}

func (m *Memory) GetTask(_ context.Context, id string) (*types.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, types.NotFound("task", id)
	}
	return t, nil
}

func (m *Memory) ListTasks(_ context.Context) ([]*types.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) FindUnassignedTasks(_ context.Context) ([]*types.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.Task
	for _, t := range m.tasks {
		if t.AssignedTeamID == "" && !t.Status.Terminal() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) FindOverdueTasks(_ context.Context, now time.Time) ([]*types.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.Task
	for _, t := range m.tasks {
		if t.Overdue(now) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- teams ---

func (m *Memory) SaveTeam(_ context.Context, team *types.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[team.ID] = team
	return nil
}

func (m *Memory) GetTeam(_ context.Context, id string) (*types.Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.teams[id]
	if !ok {
		return nil, types.NotFound("team", id)
	}
	return t, nil
}

func (m *Memory) ListTeams(_ context.Context) ([]*types.Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Team, 0, len(m.teams))
	for _, t := range m.teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteTeam(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teams[id]; !ok {
		return types.NotFound("team", id)
	}
	delete(m.teams, id)
	return nil
}

func (m *Memory) FindHighPriorityUnfilledRoles(_ context.Context, minPriority int) ([]*types.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.Role
	for _, t := range m.teams {
		for _, r := range t.Roles {
			if !r.Filled() && r.Priority >= minPriority {
				out = append(out, r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// --- negotiations ---

func (m *Memory) SaveNegotiation(_ context.Context, n *types.Negotiation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.negotiations[n.ID] = n
	return nil
}

func (m *Memory) GetNegotiation(_ context.Context, id string) (*types.Negotiation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.negotiations[id]
	if !ok {
		return nil, types.NotFound("negotiation", id)
	}
	return n, nil
}

// --- contexts ---

func (m *Memory) SaveContext(_ context.Context, sc *types.SharedContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts[sc.ID] = sc
	return nil
}

func (m *Memory) GetContext(_ context.Context, id string) (*types.SharedContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, ok := m.contexts[id]
	if !ok {
		return nil, types.NotFound("context", id)
	}
	return sc, nil
}

func (m *Memory) ListContexts(_ context.Context) ([]*types.SharedContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.SharedContext, 0, len(m.contexts))
	for _, sc := range m.contexts {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteContext(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contexts[id]; !ok {
		return types.NotFound("context", id)
	}
	delete(m.contexts, id)
	// A context owns its version chain.
	delete(m.versions, id)
	return nil
}

func (m *Memory) SaveVersion(_ context.Context, v *types.ContextVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.versions[v.ContextID]
	if !ok {
		byID = make(map[string]*types.ContextVersion)
		m.versions[v.ContextID] = byID
	}
	byID[v.ID] = v
	return nil
}

func (m *Memory) GetVersion(_ context.Context, contextID, versionID string) (*types.ContextVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.versions[contextID][versionID]
	if !ok {
		return nil, types.NotFound("context version", versionID)
	}
	return v, nil
}

func (m *Memory) ListVersions(_ context.Context, contextID string) ([]*types.ContextVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byID := m.versions[contextID]
	out := make([]*types.ContextVersion, 0, len(byID))
	for _, v := range byID {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// --- capabilities ---

func (m *Memory) SaveCapability(_ context.Context, c *types.Capability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capabilities[c.Name] = c
	return nil
}

func (m *Memory) GetCapability(_ context.Context, name string) (*types.Capability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.capabilities[name]
	if !ok {
		return nil, types.NotFound("capability", name)
	}
	return c, nil
}

func (m *Memory) ListCapabilities(_ context.Context) ([]*types.Capability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Capability, 0, len(m.capabilities))
	for _, c := range m.capabilities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) FindByCategory(_ context.Context, category string) ([]*types.Capability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.Capability
	for _, c := range m.capabilities {
		if c.Category == category {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func sortAgents(agents []*types.Agent) {
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
}

var (
	_ AgentStore       = (*Memory)(nil)
	_ TaskStore        = (*Memory)(nil)
	_ TeamStore        = (*Memory)(nil)
	_ NegotiationStore = (*Memory)(nil)
	_ ContextStore     = (*Memory)(nil)
	_ CapabilityStore  = (*Memory)(nil)
)
