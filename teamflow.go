// Package teamflow provides a top-level convenience entry point wiring the
// collaboration engines over shared infrastructure with minimal boilerplate.
//
// Usage:
//
//	import "github.com/teamflow-ai/teamflow"
//
//	tf, err := teamflow.New()
//	tf, err := teamflow.New(teamflow.WithLogger(logger), teamflow.WithExecutor(exec))
//
// The zero-option form runs entirely in process: memory store, in-process
// cache, default formation weights.
package teamflow

import (
	"time"

	"go.uber.org/zap"

	"github.com/teamflow-ai/teamflow/capability"
	"github.com/teamflow-ai/teamflow/contextstore"
	"github.com/teamflow-ai/teamflow/coordinator"
	"github.com/teamflow-ai/teamflow/formation"
	"github.com/teamflow-ai/teamflow/internal/cache"
	"github.com/teamflow-ai/teamflow/internal/metrics"
	"github.com/teamflow-ai/teamflow/internal/pool"
	"github.com/teamflow-ai/teamflow/negotiation"
	"github.com/teamflow-ai/teamflow/registry"
	"github.com/teamflow-ai/teamflow/store"
	"github.com/teamflow-ai/teamflow/types"
)

// Platform bundles the four collaboration engines and the agent registry.
type Platform struct {
	agents       *registry.Registry
	capabilities *capability.Registry
	formation    *formation.Engine
	negotiation  *negotiation.Engine
	contexts     *contextstore.Service
	coordinator  *coordinator.Coordinator
	workers      *pool.WorkerPool
	ownedWorkers bool
}

// Option configures the platform built by [New].
type Option func(*options)

type options struct {
	agents          store.AgentStore
	capabilities    store.CapabilityStore
	tasks           store.TaskStore
	teams           store.TeamStore
	negotiations    store.NegotiationStore
	contexts        store.ContextStore
	cache           cache.Cache
	logger          *zap.Logger
	collector       *metrics.Collector
	workers         *pool.WorkerPool
	formationConfig formation.Config
	defaultStrategy types.ResolutionStrategy
	executor        coordinator.Executor
	subtaskTimeout  time.Duration
}

// WithStores overrides all repository views at once. Any nil view keeps the
// shared in-memory default.
func WithStores(agents store.AgentStore, tasks store.TaskStore, teams store.TeamStore, negotiations store.NegotiationStore, contexts store.ContextStore) Option {
	return func(o *options) {
		o.agents, o.tasks, o.teams = agents, tasks, teams
		o.negotiations, o.contexts = negotiations, contexts
	}
}

// WithCache overrides the in-process cache.
func WithCache(c cache.Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCollector enables prometheus metrics.
func WithCollector(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// WithWorkerPool supplies an externally managed pool. The platform will not
// close it.
func WithWorkerPool(p *pool.WorkerPool) Option {
	return func(o *options) { o.workers = p }
}

// WithFormationConfig overrides the formation scorer tunables.
func WithFormationConfig(cfg formation.Config) Option {
	return func(o *options) { o.formationConfig = cfg }
}

// WithDefaultStrategy sets the fallback negotiation resolution strategy.
func WithDefaultStrategy(s types.ResolutionStrategy) Option {
	return func(o *options) { o.defaultStrategy = s }
}

// WithExecutor sets the subtask executor used by the coordinator.
func WithExecutor(e coordinator.Executor) Option {
	return func(o *options) { o.executor = e }
}

// WithSubtaskTimeout bounds each coordinated subtask.
func WithSubtaskTimeout(d time.Duration) Option {
	return func(o *options) { o.subtaskTimeout = d }
}

// New wires a platform. The defaults need no external services.
func New(opts ...Option) (*Platform, error) {
	o := &options{
		formationConfig: formation.DefaultConfig(),
		defaultStrategy: types.StrategyCompromise,
		subtaskTimeout:  300 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	if t := o.formationConfig.CapabilityMatchThreshold; t < 0 || t > 1 {
		return nil, types.InvalidState("capability match threshold %v outside [0, 1]", t)
	}
	if !o.defaultStrategy.Valid() {
		return nil, types.InvalidState("unknown default strategy %q", o.defaultStrategy)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.cache == nil {
		o.cache = cache.NewMemoryCache(5 * time.Minute)
	}
	if o.agents == nil || o.tasks == nil || o.teams == nil || o.negotiations == nil || o.contexts == nil {
		m := store.NewMemory()
		if o.agents == nil {
			o.agents = m
		}
		if o.tasks == nil {
			o.tasks = m
		}
		if o.teams == nil {
			o.teams = m
		}
		if o.negotiations == nil {
			o.negotiations = m
		}
		if o.contexts == nil {
			o.contexts = m
		}
		if o.capabilities == nil {
			o.capabilities = m
		}
	}
	if o.capabilities == nil {
		o.capabilities = store.NewMemory()
	}
	ownedWorkers := false
	if o.workers == nil {
		o.workers = pool.New(pool.DefaultConfig())
		ownedWorkers = true
	}

	agents := registry.New(o.agents, o.cache, o.logger)
	formationEngine := formation.NewEngine(agents, o.teams, o.tasks, o.formationConfig, o.workers, o.collector, o.logger)
	contexts := contextstore.NewService(o.contexts, o.collector, o.logger)
	return &Platform{
		agents:       agents,
		capabilities: capability.NewRegistry(o.capabilities, o.logger),
		formation:    formationEngine,
		negotiation:  negotiation.NewEngine(o.negotiations, agents, o.cache, o.defaultStrategy, o.collector, o.logger),
		contexts:     contexts,
		coordinator: coordinator.New(formationEngine, contexts, o.agents, o.tasks,
			o.executor, o.subtaskTimeout, o.collector, o.logger),
		workers:      o.workers,
		ownedWorkers: ownedWorkers,
	}, nil
}

// Agents returns the agent registry.
func (p *Platform) Agents() *registry.Registry { return p.agents }

// Capabilities returns the capability registry.
func (p *Platform) Capabilities() *capability.Registry { return p.capabilities }

// Formation returns the team formation engine.
func (p *Platform) Formation() *formation.Engine { return p.formation }

// Negotiation returns the negotiation engine.
func (p *Platform) Negotiation() *negotiation.Engine { return p.negotiation }

// Contexts returns the shared context store.
func (p *Platform) Contexts() *contextstore.Service { return p.contexts }

// Coordinator returns the problem-solving coordinator.
func (p *Platform) Coordinator() *coordinator.Coordinator { return p.coordinator }

// Close releases the worker pool if the platform created it.
func (p *Platform) Close() {
	if p.ownedWorkers {
		p.workers.Close()
	}
}
