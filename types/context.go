package types

import "time"

// AccessLevel is the privilege tier of a context grant.
type AccessLevel string

const (
	AccessReadOnly  AccessLevel = "READ_ONLY"
	AccessReadWrite AccessLevel = "READ_WRITE"
	AccessAdmin     AccessLevel = "ADMIN"
)

// ContextOp is a concrete operation checked against a grant. Access checks
// are per-operation: an insufficient grant fails the specific operation
// requested, not reads or writes wholesale.
type ContextOp string

const (
	CtxOpRead      ContextOp = "READ"
	CtxOpWrite     ContextOp = "WRITE"
	CtxOpDelete    ContextOp = "DELETE"
	CtxOpGrant     ContextOp = "GRANT"
	CtxOpSubscribe ContextOp = "SUBSCRIBE"
)

// Permits reports whether the level allows the operation. ADMIN permits
// everything; READ_WRITE everything except DELETE and GRANT; READ_ONLY only
// READ and SUBSCRIBE.
func (l AccessLevel) Permits(op ContextOp) bool {
	switch l {
	case AccessAdmin:
		return true
	case AccessReadWrite:
		return op != CtxOpDelete && op != CtxOpGrant
	case AccessReadOnly:
		return op == CtxOpRead || op == CtxOpSubscribe
	}
	return false
}

// ContextAccess is a per-(context, agent) grant.
type ContextAccess struct {
	AgentID   string      `json:"agent_id"`
	Level     AccessLevel `json:"level"`
	GrantedBy string      `json:"granted_by"`
	GrantedAt time.Time   `json:"granted_at"`

	// ExpiresAt is optional; an expired grant behaves exactly like no
	// grant.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the grant has lapsed at now.
func (a *ContextAccess) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}

// ContextVersion is an immutable snapshot of a context's content. Versions
// form a chain through ParentID; merges record one parent (the target's
// current version) plus a MERGE change naming the source.
type ContextVersion struct {
	ID        string `json:"id"`
	ContextID string `json:"context_id"`

	// Number is the 1-based position in the context's history.
	Number int `json:"number"`

	AuthorID string `json:"author_id"`
	ParentID string `json:"parent_id,omitempty"`

	// Changes lists the path-level edits from the parent version.
	Changes []Change `json:"changes"`

	// Content is the full snapshot at this version.
	Content *Document `json:"content"`

	// ContentHash is a deterministic digest of Content.
	ContentHash string `json:"content_hash"`

	CreatedAt time.Time `json:"created_at"`
}

// SharedContext is a versioned, access-controlled document shared by a team.
// It owns its grants and version chain.
type SharedContext struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	OwnerID string `json:"owner_id"`

	Content *Document `json:"content"`

	CurrentVersionID string `json:"current_version_id"`

	// Access maps agent id to its grant. The owner always holds ADMIN.
	Access map[string]*ContextAccess `json:"access"`

	Subscribers []string `json:"subscribers,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GrantFor returns the agent's non-expired grant, or nil.
func (c *SharedContext) GrantFor(agentID string, now time.Time) *ContextAccess {
	g, ok := c.Access[agentID]
	if !ok || g.Expired(now) {
		return nil
	}
	return g
}

// Subscribed reports whether the agent is a subscriber.
func (c *SharedContext) Subscribed(agentID string) bool {
	for _, id := range c.Subscribers {
		if id == agentID {
			return true
		}
	}
	return false
}
