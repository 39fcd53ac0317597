package negotiation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamflow-ai/teamflow/internal/cache"
	"github.com/teamflow-ai/teamflow/internal/metrics"
	"github.com/teamflow-ai/teamflow/registry"
	"github.com/teamflow-ai/teamflow/store"
	"github.com/teamflow-ai/teamflow/types"
)

// systemSender marks synthetic messages appended by the engine itself.
const systemSender = "SYSTEM"

// preferenceTTL bounds how long fetched preference data is served from
// cache; agent updates invalidate it earlier.
const preferenceTTL = 5 * time.Minute

// Engine runs multi-party negotiations: proposal exchange, the message log,
// and conflict resolution through seven interchangeable strategies.
type Engine struct {
	negotiations store.NegotiationStore
	agents       *registry.Registry
	cache        cache.Cache

	defaultStrategy types.ResolutionStrategy
	logger          *zap.Logger
	metrics         *metrics.Collector
}

// NewEngine builds a negotiation engine. defaultStrategy applies when
// neither the resolve call nor the negotiation itself names one; empty
// means COMPROMISE.
func NewEngine(negotiations store.NegotiationStore, agents *registry.Registry, c cache.Cache, defaultStrategy types.ResolutionStrategy, collector *metrics.Collector, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultStrategy == "" {
		defaultStrategy = types.StrategyCompromise
	}
	return &Engine{
		negotiations:    negotiations,
		agents:          agents,
		cache:           c,
		defaultStrategy: defaultStrategy,
		logger:          logger.With(zap.String("component", "negotiation")),
		metrics:         collector,
	}
}

// Start opens a negotiation between the initiator and the participants.
func (e *Engine) Start(ctx context.Context, initiatorID string, participantIDs []string, subject string, strategy types.ResolutionStrategy) (*types.Negotiation, error) {
	if strategy != "" && !strategy.Valid() {
		return nil, types.InvalidState("unknown resolution strategy %q", strategy)
	}
	if _, err := e.agents.Get(ctx, initiatorID); err != nil {
		return nil, err
	}
	for _, id := range participantIDs {
		if _, err := e.agents.Get(ctx, id); err != nil {
			return nil, err
		}
	}

	n := &types.Negotiation{
		ID:             uuid.NewString(),
		InitiatorID:    initiatorID,
		ParticipantIDs: participantIDs,
		Proposals:      map[string]*types.Document{},
		Status:         types.NegotiationProposed,
		Strategy:       strategy,
		Subject:        subject,
		StartedAt:      time.Now(),
	}
	if err := e.negotiations.SaveNegotiation(ctx, n); err != nil {
		return nil, err
	}
	e.logger.Info("negotiation started",
		zap.String("negotiation_id", n.ID),
		zap.String("initiator_id", initiatorID),
		zap.Int("participants", len(participantIDs)))
	return n, nil
}

// Get loads a negotiation by id.
func (e *Engine) Get(ctx context.Context, id string) (*types.Negotiation, error) {
	return e.negotiations.GetNegotiation(ctx, id)
}

// SubmitProposal records one party's proposal and logs it as a PROPOSAL
// message. The first proposal moves the negotiation to IN_PROGRESS.
func (e *Engine) SubmitProposal(ctx context.Context, negotiationID, agentID string, proposal *types.Document) (*types.Negotiation, error) {
	n, err := e.negotiations.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	if n.Status.Terminal() {
		return nil, types.InvalidState("negotiation %q is %s", negotiationID, n.Status)
	}
	if !n.IsParty(agentID) {
		return nil, types.Forbidden("agent %q is not a party to negotiation %q", agentID, negotiationID)
	}

	n.Proposals[agentID] = proposal.Clone()
	n.CurrentProposal = proposal.Clone()
	if n.Status == types.NegotiationProposed {
		n.Status = types.NegotiationInProgress
	}
	n.Messages = append(n.Messages, &types.NegotiationMessage{
		ID:       uuid.NewString(),
		SenderID: agentID,
		Type:     types.MessageProposal,
		Payload:  proposal.Clone(),
		SentAt:   time.Now(),
	})
	if err := e.negotiations.SaveNegotiation(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// SendMessage appends a counter/accept/reject entry to the log.
func (e *Engine) SendMessage(ctx context.Context, negotiationID, agentID string, msgType types.MessageType, content string, payload *types.Document) (*types.Negotiation, error) {
	n, err := e.negotiations.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	if n.Status.Terminal() {
		return nil, types.InvalidState("negotiation %q is %s", negotiationID, n.Status)
	}
	if !n.IsParty(agentID) {
		return nil, types.Forbidden("agent %q is not a party to negotiation %q", agentID, negotiationID)
	}

	msg := &types.NegotiationMessage{
		ID:       uuid.NewString(),
		SenderID: agentID,
		Type:     msgType,
		Content:  content,
		SentAt:   time.Now(),
	}
	if payload != nil {
		msg.Payload = payload.Clone()
	}
	n.Messages = append(n.Messages, msg)
	if err := e.negotiations.SaveNegotiation(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Resolve collapses the submitted proposals into one agreement. Strategy
// selection order is the explicit parameter, then the negotiation's stored
// strategy, then the engine default. A strategy that produces no result
// marks the negotiation FAILED rather than returning an error; resolving a
// terminal negotiation is INVALID_STATE.
func (e *Engine) Resolve(ctx context.Context, negotiationID string, strategy types.ResolutionStrategy) (*types.Negotiation, error) {
	start := time.Now()

	n, err := e.negotiations.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	if n.Status.Terminal() {
		return nil, types.InvalidState("negotiation %q is already %s", negotiationID, n.Status)
	}

	effective := e.pickStrategy(n, strategy)
	if !effective.Valid() {
		return nil, types.InvalidState("unknown resolution strategy %q", effective)
	}
	n.Status = types.NegotiationConflictResolution

	parties := n.Parties()
	prefs := e.preferences(ctx, parties)
	result := dispatch(effective, parties, n.Proposals, prefs)

	now := time.Now()
	if result == nil {
		n.Status = types.NegotiationFailed
		n.EndedAt = now
		if err := e.negotiations.SaveNegotiation(ctx, n); err != nil {
			return nil, err
		}
		e.metrics.ObserveResolution(string(effective), string(n.Status), time.Since(start).Seconds())
		e.logger.Warn("negotiation failed to resolve",
			zap.String("negotiation_id", n.ID),
			zap.String("strategy", string(effective)))
		return n, nil
	}

	n.FinalAgreement = result
	n.CurrentProposal = result.Clone()
	n.Status = types.NegotiationSuccessful
	n.EndedAt = now
	n.Messages = append(n.Messages, &types.NegotiationMessage{
		ID:       uuid.NewString(),
		SenderID: systemSender,
		Type:     types.MessageResolution,
		Payload:  result.Clone(),
		SentAt:   now,
	})
	if err := e.negotiations.SaveNegotiation(ctx, n); err != nil {
		return nil, err
	}
	e.metrics.ObserveResolution(string(effective), string(n.Status), time.Since(start).Seconds())
	e.logger.Info("negotiation resolved",
		zap.String("negotiation_id", n.ID),
		zap.String("strategy", string(effective)),
		zap.Int("proposals", len(n.Proposals)))
	return n, nil
}

// ForceTimeout moves a non-terminal negotiation to TIMEOUT. Deadline
// tracking itself is the caller's concern.
func (e *Engine) ForceTimeout(ctx context.Context, negotiationID string) (*types.Negotiation, error) {
	n, err := e.negotiations.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	if n.Status.Terminal() {
		return nil, types.InvalidState("negotiation %q is already %s", negotiationID, n.Status)
	}
	n.Status = types.NegotiationTimeout
	n.EndedAt = time.Now()
	if err := e.negotiations.SaveNegotiation(ctx, n); err != nil {
		return nil, err
	}
	e.metrics.ObserveResolution("", string(n.Status), 0)
	return n, nil
}

// Fairness measures how evenly the final agreement treats the parties.
// Only defined for SUCCESSFUL negotiations.
func (e *Engine) Fairness(ctx context.Context, negotiationID string) (float64, error) {
	n, err := e.negotiations.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return 0, err
	}
	if n.Status != types.NegotiationSuccessful {
		return 0, types.InvalidState("fairness undefined for %s negotiation %q", n.Status, negotiationID)
	}
	parties := n.Parties()
	prefs := e.preferences(ctx, parties)
	return calculateFairness(utilityVector(parties, n.FinalAgreement, prefs)), nil
}

func (e *Engine) pickStrategy(n *types.Negotiation, explicit types.ResolutionStrategy) types.ResolutionStrategy {
	if explicit != "" {
		return explicit
	}
	if n.Strategy != "" {
		return n.Strategy
	}
	return e.defaultStrategy
}

// preferences loads each party's bargaining data through the injectable
// cache; agent updates invalidate the cached entry. A missing preference
// record is served as an empty one, never as an error.
func (e *Engine) preferences(ctx context.Context, parties []string) map[string]*types.AgentPreferences {
	out := make(map[string]*types.AgentPreferences, len(parties))
	for _, id := range parties {
		out[id] = e.preferencesFor(ctx, id)
	}
	return out
}

func (e *Engine) preferencesFor(ctx context.Context, agentID string) *types.AgentPreferences {
	if e.cache != nil {
		key := registry.CacheKeyPrefix(agentID) + "preferences"
		v, err := e.cache.GetOrCompute(ctx, key, preferenceTTL, func(ctx context.Context) (any, error) {
			return e.agents.Preferences(ctx, agentID)
		})
		if err == nil {
			if prefs, ok := v.(*types.AgentPreferences); ok {
				return prefs
			}
		}
	}
	prefs, err := e.agents.Preferences(ctx, agentID)
	if err != nil {
		e.logger.Warn("preference lookup failed",
			zap.String("agent_id", agentID), zap.Error(err))
		return &types.AgentPreferences{AgentID: agentID, Preferences: map[string]any{}}
	}
	return prefs
}

func dispatch(strategy types.ResolutionStrategy, parties []string, proposals map[string]*types.Document, prefs map[string]*types.AgentPreferences) *types.Document {
	switch strategy {
	case types.StrategyPriorityBased:
		return resolvePriorityBased(parties, proposals, prefs)
	case types.StrategyCompromise:
		return resolveCompromise(parties, proposals, prefs)
	case types.StrategyVoting:
		return resolveVoting(parties, proposals, prefs)
	case types.StrategyOptimization:
		return resolveOptimization(parties, proposals, prefs)
	case types.StrategyFairDivision:
		return resolveFairDivision(parties, proposals, prefs)
	case types.StrategyParetoOptimal:
		return resolveParetoOptimal(parties, proposals, prefs)
	case types.StrategyNashBargaining:
		return resolveNashBargaining(parties, proposals, prefs)
	}
	return nil
}
