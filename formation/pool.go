package formation

import (
	"sort"
	"sync"

	"github.com/teamflow-ai/teamflow/types"
)

// candidatePool is an explicit check-out/check-in pool over a fixed agent
// snapshot. Team optimization reserves an agent while evaluating a swap and
// releases the displaced member back into the pool, so later swap
// evaluations within the same pass can still claim it. The two-phase swap
// stays auditable and race-free under concurrent optimization requests
// because each pass owns its own pool.
type candidatePool struct {
	mu       sync.Mutex
	agents   map[string]*types.Agent
	reserved map[string]bool
}

// newCandidatePool builds a pool over the snapshot, excluding the given ids.
func newCandidatePool(snapshot []*types.Agent, exclude map[string]bool) *candidatePool {
	p := &candidatePool{
		agents:   make(map[string]*types.Agent, len(snapshot)),
		reserved: make(map[string]bool),
	}
	for _, a := range snapshot {
		if !exclude[a.ID] {
			p.agents[a.ID] = a
		}
	}
	return p
}

// available returns the unreserved agents, ordered by id for deterministic
// first-found tie-breaking.
func (p *candidatePool) available() []*types.Agent {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*types.Agent, 0, len(p.agents))
	for id, a := range p.agents {
		if !p.reserved[id] {
			out = append(out, a)
		}
	}
	sortByID(out)
	return out
}

// checkOut reserves an agent. Returns false if absent or already reserved.
func (p *candidatePool) checkOut(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.agents[id]; !ok || p.reserved[id] {
		return false
	}
	p.reserved[id] = true
	return true
}

// checkIn returns an agent to the pool, adding it if it was not part of the
// original snapshot (a displaced team member re-entering circulation).
func (p *candidatePool) checkIn(agent *types.Agent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.agents[agent.ID] = agent
	delete(p.reserved, agent.ID)
}

// remove takes an agent out of the pool permanently (it joined a team).
func (p *candidatePool) remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.agents, id)
	delete(p.reserved, id)
}

func sortByID(agents []*types.Agent) {
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
}
