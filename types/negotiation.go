package types

import "time"

// NegotiationStatus is the forward-only state of a negotiation.
// SUCCESSFUL, FAILED, and TIMEOUT are terminal.
type NegotiationStatus string

const (
	NegotiationProposed           NegotiationStatus = "PROPOSED"
	NegotiationInProgress         NegotiationStatus = "IN_PROGRESS"
	NegotiationConflictResolution NegotiationStatus = "CONFLICT_RESOLUTION"
	NegotiationSuccessful         NegotiationStatus = "SUCCESSFUL"
	NegotiationFailed             NegotiationStatus = "FAILED"
	NegotiationTimeout            NegotiationStatus = "TIMEOUT"
)

// Terminal reports whether the status admits no further transitions.
func (s NegotiationStatus) Terminal() bool {
	switch s {
	case NegotiationSuccessful, NegotiationFailed, NegotiationTimeout:
		return true
	}
	return false
}

// ResolutionStrategy selects how conflicting proposals collapse into one
// agreement.
type ResolutionStrategy string

const (
	StrategyPriorityBased  ResolutionStrategy = "PRIORITY_BASED"
	StrategyCompromise     ResolutionStrategy = "COMPROMISE"
	StrategyVoting         ResolutionStrategy = "VOTING"
	StrategyOptimization   ResolutionStrategy = "OPTIMIZATION"
	StrategyFairDivision   ResolutionStrategy = "FAIR_DIVISION"
	StrategyParetoOptimal  ResolutionStrategy = "PARETO_OPTIMAL"
	StrategyNashBargaining ResolutionStrategy = "NASH_BARGAINING"
)

// Valid reports whether s names a known strategy.
func (s ResolutionStrategy) Valid() bool {
	switch s {
	case StrategyPriorityBased, StrategyCompromise, StrategyVoting,
		StrategyOptimization, StrategyFairDivision, StrategyParetoOptimal,
		StrategyNashBargaining:
		return true
	}
	return false
}

// MessageType classifies entries in a negotiation's message log.
type MessageType string

const (
	MessageProposal   MessageType = "PROPOSAL"
	MessageCounter    MessageType = "COUNTER"
	MessageAccept     MessageType = "ACCEPT"
	MessageReject     MessageType = "REJECT"
	MessageResolution MessageType = "RESOLUTION"
)

// NegotiationMessage is one append-only log entry. Resolution messages are
// synthetic, sent by "SYSTEM" and carrying the resolved proposal as payload.
type NegotiationMessage struct {
	ID       string      `json:"id"`
	SenderID string      `json:"sender_id"`
	Type     MessageType `json:"type"`
	Content  string      `json:"content,omitempty"`
	Payload  *Document   `json:"payload,omitempty"`
	SentAt   time.Time   `json:"sent_at"`
}

// Negotiation is a structured multi-party exchange of proposals converging
// on one agreement. It owns its proposal map and message log.
type Negotiation struct {
	ID          string `json:"id"`
	InitiatorID string `json:"initiator_id"`

	// ParticipantIDs excludes the initiator; Parties returns both.
	ParticipantIDs []string `json:"participant_ids"`

	// Proposals maps party id to its submitted proposal.
	Proposals map[string]*Document `json:"proposals"`

	CurrentProposal *Document `json:"current_proposal,omitempty"`

	Status NegotiationStatus `json:"status"`

	// Strategy is the stored default; an explicit strategy passed to the
	// engine overrides it.
	Strategy ResolutionStrategy `json:"strategy,omitempty"`

	// FinalAgreement is set only when status is SUCCESSFUL.
	FinalAgreement *Document `json:"final_agreement,omitempty"`

	Messages []*NegotiationMessage `json:"messages"`

	Subject string `json:"subject,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// Parties returns the initiator plus every participant, initiator first.
func (n *Negotiation) Parties() []string {
	out := make([]string, 0, len(n.ParticipantIDs)+1)
	out = append(out, n.InitiatorID)
	for _, id := range n.ParticipantIDs {
		if id != n.InitiatorID {
			out = append(out, id)
		}
	}
	return out
}

// IsParty reports whether the agent is the initiator or a participant.
func (n *Negotiation) IsParty(agentID string) bool {
	for _, id := range n.Parties() {
		if id == agentID {
			return true
		}
	}
	return false
}
