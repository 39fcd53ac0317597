// Package contextstore implements the shared context store: versioned,
// access-controlled documents with merge, fork, revert, diff, and
// subscription support. Version creation is linearized per context; writes
// to different contexts are independent.
package contextstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamflow-ai/teamflow/internal/metrics"
	"github.com/teamflow-ai/teamflow/store"
	"github.com/teamflow-ai/teamflow/types"
)

// Service is the shared context store.
type Service struct {
	contexts store.ContextStore
	logger   *zap.Logger
	metrics  *metrics.Collector

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService builds a context store service.
func NewService(contexts store.ContextStore, collector *metrics.Collector, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		contexts: contexts,
		logger:   logger.With(zap.String("component", "contextstore")),
		metrics:  collector,
		locks:    map[string]*sync.Mutex{},
	}
}

// lockFor returns the per-context write lock, creating it on first use.
// Writes to the same context serialize on it so every version has a single
// unambiguous parent.
func (s *Service) lockFor(contextID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[contextID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[contextID] = l
	}
	return l
}

// Create opens a new shared context. The owner implicitly receives ADMIN;
// accessList carries additional grants. The initial content becomes
// version 1.
func (s *Service) Create(ctx context.Context, name, ctype, ownerID string, initial *types.Document, accessList []*types.ContextAccess) (*types.SharedContext, error) {
	now := time.Now()
	if initial == nil {
		initial = types.NewDocument()
	}

	sc := &types.SharedContext{
		ID:      uuid.NewString(),
		Name:    name,
		Type:    ctype,
		OwnerID: ownerID,
		Content: initial.Clone(),
		Access: map[string]*types.ContextAccess{
			ownerID: {
				AgentID:   ownerID,
				Level:     types.AccessAdmin,
				GrantedBy: ownerID,
				GrantedAt: now,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, a := range accessList {
		if a == nil || a.AgentID == ownerID {
			continue
		}
		grant := *a
		if grant.GrantedBy == "" {
			grant.GrantedBy = ownerID
		}
		if grant.GrantedAt.IsZero() {
			grant.GrantedAt = now
		}
		sc.Access[grant.AgentID] = &grant
	}

	version := s.newVersion(sc, ownerID, nil, types.NewDocument().Diff(initial), 1, "")
	sc.CurrentVersionID = version.ID

	if err := s.contexts.SaveContext(ctx, sc); err != nil {
		return nil, err
	}
	if err := s.contexts.SaveVersion(ctx, version); err != nil {
		return nil, err
	}
	s.logger.Info("context created",
		zap.String("context_id", sc.ID),
		zap.String("owner_id", ownerID),
		zap.String("type", ctype))
	return sc, nil
}

// Get loads a context for an agent holding at least READ.
func (s *Service) Get(ctx context.Context, id, agentID string) (*types.SharedContext, error) {
	return s.authorized(ctx, id, agentID, types.CtxOpRead)
}

// Update applies the updates on top of the current content, producing a new
// version whose parent is the version current when the write is applied.
// Requires READ_WRITE or ADMIN. The prior version stays retrievable.
func (s *Service) Update(ctx context.Context, id, agentID string, updates *types.Document, metadata map[string]any) (*types.SharedContext, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	sc, err := s.authorized(ctx, id, agentID, types.CtxOpWrite)
	if err != nil {
		return nil, err
	}

	next := sc.Content.Clone()
	if next == nil {
		next = types.NewDocument()
	}
	for _, k := range updates.Keys() {
		v, _ := updates.Get(k)
		next.Set(k, v)
	}

	changes := sc.Content.Diff(next)
	for i := range changes {
		changes[i].Metadata = metadata
	}
	if err := s.writeVersion(ctx, sc, agentID, next, changes); err != nil {
		return nil, err
	}
	return sc, nil
}

// Merge folds the source context's current content into the target,
// producing a new version on the target that records the merge. Requires
// write access on the target and read access on the source. Overlapping
// keys resolve by policy, or by fn when the policy is empty.
func (s *Service) Merge(ctx context.Context, targetID, sourceID, agentID string, policy types.MergePolicy, fn types.MergeFunc) (*types.SharedContext, error) {
	lock := s.lockFor(targetID)
	lock.Lock()
	defer lock.Unlock()

	target, err := s.authorized(ctx, targetID, agentID, types.CtxOpWrite)
	if err != nil {
		return nil, err
	}
	source, err := s.authorized(ctx, sourceID, agentID, types.CtxOpRead)
	if err != nil {
		return nil, err
	}

	merged := target.Content.Merge(source.Content, policy, fn)
	changes := target.Content.Diff(merged)
	changes = append(changes, types.Change{
		Op:   types.OpMerge,
		Path: "",
		Metadata: map[string]any{
			"source_context_id": sourceID,
			"source_version_id": source.CurrentVersionID,
			"policy":            string(policy),
		},
	})
	if err := s.writeVersion(ctx, target, agentID, merged, changes); err != nil {
		return nil, err
	}
	s.metrics.IncContextMerge()
	s.logger.Info("contexts merged",
		zap.String("target_id", targetID),
		zap.String("source_id", sourceID),
		zap.String("policy", string(policy)))
	return target, nil
}

// Fork creates an entirely new context owned by the forking agent, whose
// first version copies the source's current state. Requires READ on the
// source.
func (s *Service) Fork(ctx context.Context, id, agentID, newName string) (*types.SharedContext, error) {
	src, err := s.authorized(ctx, id, agentID, types.CtxOpRead)
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, newName, src.Type, agentID, src.Content, nil)
}

// Grant adds or replaces an access grant. Requires ADMIN. A zero expiry
// grants indefinitely.
func (s *Service) Grant(ctx context.Context, id, adminID, agentID string, level types.AccessLevel, expiry time.Duration) (*types.SharedContext, error) {
	sc, err := s.authorized(ctx, id, adminID, types.CtxOpGrant)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	grant := &types.ContextAccess{
		AgentID:   agentID,
		Level:     level,
		GrantedBy: adminID,
		GrantedAt: now,
	}
	if expiry > 0 {
		grant.ExpiresAt = now.Add(expiry)
	}
	sc.Access[agentID] = grant
	sc.UpdatedAt = now
	if err := s.contexts.SaveContext(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// Revoke removes an agent's grant. Requires ADMIN. The owner's grant cannot
// be revoked.
func (s *Service) Revoke(ctx context.Context, id, adminID, agentID string) (*types.SharedContext, error) {
	sc, err := s.authorized(ctx, id, adminID, types.CtxOpGrant)
	if err != nil {
		return nil, err
	}
	if agentID == sc.OwnerID {
		return nil, types.Forbidden("cannot revoke the owner's access on context %q", id)
	}
	delete(sc.Access, agentID)
	sc.UpdatedAt = time.Now()
	if err := s.contexts.SaveContext(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// Subscribe registers the agent for change notifications. Requires at least
// READ; idempotent.
func (s *Service) Subscribe(ctx context.Context, id, agentID string) (*types.SharedContext, error) {
	sc, err := s.authorized(ctx, id, agentID, types.CtxOpSubscribe)
	if err != nil {
		return nil, err
	}
	if sc.Subscribed(agentID) {
		return sc, nil
	}
	sc.Subscribers = append(sc.Subscribers, agentID)
	sc.UpdatedAt = time.Now()
	if err := s.contexts.SaveContext(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// Unsubscribe removes the agent's subscription. Idempotent.
func (s *Service) Unsubscribe(ctx context.Context, id, agentID string) (*types.SharedContext, error) {
	sc, err := s.authorized(ctx, id, agentID, types.CtxOpSubscribe)
	if err != nil {
		return nil, err
	}
	if !sc.Subscribed(agentID) {
		return sc, nil
	}
	kept := sc.Subscribers[:0]
	for _, sub := range sc.Subscribers {
		if sub != agentID {
			kept = append(kept, sub)
		}
	}
	sc.Subscribers = kept
	sc.UpdatedAt = time.Now()
	if err := s.contexts.SaveContext(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// GetVersion loads one historical version. Requires READ.
func (s *Service) GetVersion(ctx context.Context, id, versionID, agentID string) (*types.ContextVersion, error) {
	if _, err := s.authorized(ctx, id, agentID, types.CtxOpRead); err != nil {
		return nil, err
	}
	return s.contexts.GetVersion(ctx, id, versionID)
}

// ListVersions returns the full version chain, oldest first. Requires READ.
func (s *Service) ListVersions(ctx context.Context, id, agentID string) ([]*types.ContextVersion, error) {
	if _, err := s.authorized(ctx, id, agentID, types.CtxOpRead); err != nil {
		return nil, err
	}
	return s.contexts.ListVersions(ctx, id)
}

// CompareVersions diffs two historical versions, path level. Requires READ.
func (s *Service) CompareVersions(ctx context.Context, id, v1, v2, agentID string) ([]types.Change, error) {
	if _, err := s.authorized(ctx, id, agentID, types.CtxOpRead); err != nil {
		return nil, err
	}
	a, err := s.contexts.GetVersion(ctx, id, v1)
	if err != nil {
		return nil, err
	}
	b, err := s.contexts.GetVersion(ctx, id, v2)
	if err != nil {
		return nil, err
	}
	return a.Content.Diff(b.Content), nil
}

// RevertToVersion creates a new version copying the historical version's
// content. Intervening history is never deleted. Requires write access.
func (s *Service) RevertToVersion(ctx context.Context, id, versionID, agentID string) (*types.SharedContext, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	sc, err := s.authorized(ctx, id, agentID, types.CtxOpWrite)
	if err != nil {
		return nil, err
	}
	target, err := s.contexts.GetVersion(ctx, id, versionID)
	if err != nil {
		return nil, err
	}

	restored := target.Content.Clone()
	changes := sc.Content.Diff(restored)
	changes = append(changes, types.Change{
		Op:   types.OpRevert,
		Path: "",
		Metadata: map[string]any{
			"reverted_to_version_id": versionID,
			"reverted_to_number":     target.Number,
		},
	})
	if err := s.writeVersion(ctx, sc, agentID, restored, changes); err != nil {
		return nil, err
	}
	return sc, nil
}

// Delete removes a context and its whole version chain. ADMIN only.
func (s *Service) Delete(ctx context.Context, id, agentID string) error {
	if _, err := s.authorized(ctx, id, agentID, types.CtxOpDelete); err != nil {
		return err
	}
	return s.contexts.DeleteContext(ctx, id)
}

// Search matches contexts by free text over name and content. An empty
// ctype matches every type; with a non-empty agentID only contexts the
// agent can read are returned.
func (s *Service) Search(ctx context.Context, query, ctype, agentID string) ([]*types.SharedContext, error) {
	all, err := s.contexts.ListContexts(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	needle := strings.ToLower(query)

	var out []*types.SharedContext
	for _, sc := range all {
		if ctype != "" && sc.Type != ctype {
			continue
		}
		if agentID != "" {
			g := sc.GrantFor(agentID, now)
			if g == nil || !g.Level.Permits(types.CtxOpRead) {
				continue
			}
		}
		if needle != "" && !matches(sc, needle) {
			continue
		}
		out = append(out, sc)
	}
	return out, nil
}

// authorized loads the context and checks the agent's grant for the
// operation. Missing contexts are NOT_FOUND; missing, expired, or
// insufficient grants are FORBIDDEN.
func (s *Service) authorized(ctx context.Context, id, agentID string, op types.ContextOp) (*types.SharedContext, error) {
	sc, err := s.contexts.GetContext(ctx, id)
	if err != nil {
		return nil, err
	}
	grant := sc.GrantFor(agentID, time.Now())
	if grant == nil {
		return nil, types.Forbidden("agent %q has no access to context %q", agentID, id)
	}
	if !grant.Level.Permits(op) {
		return nil, types.Forbidden("agent %q lacks %s on context %q", agentID, op, id)
	}
	return sc, nil
}

// writeVersion installs new content as the next version and advances the
// current-version pointer. Callers hold the per-context lock.
func (s *Service) writeVersion(ctx context.Context, sc *types.SharedContext, authorID string, content *types.Document, changes []types.Change) error {
	versions, err := s.contexts.ListVersions(ctx, sc.ID)
	if err != nil {
		return err
	}
	version := s.newVersion(sc, authorID, content, changes, len(versions)+1, sc.CurrentVersionID)

	sc.Content = content
	sc.CurrentVersionID = version.ID
	sc.UpdatedAt = version.CreatedAt

	if err := s.contexts.SaveVersion(ctx, version); err != nil {
		return err
	}
	if err := s.contexts.SaveContext(ctx, sc); err != nil {
		return err
	}
	s.metrics.IncContextWrite()
	return nil
}

func (s *Service) newVersion(sc *types.SharedContext, authorID string, content *types.Document, changes []types.Change, number int, parentID string) *types.ContextVersion {
	if content == nil {
		content = sc.Content
	}
	return &types.ContextVersion{
		ID:          uuid.NewString(),
		ContextID:   sc.ID,
		Number:      number,
		AuthorID:    authorID,
		ParentID:    parentID,
		Changes:     changes,
		Content:     content.Clone(),
		ContentHash: ContentHash(content),
		CreatedAt:   time.Now(),
	}
}

func matches(sc *types.SharedContext, needle string) bool {
	if strings.Contains(strings.ToLower(sc.Name), needle) {
		return true
	}
	return strings.Contains(strings.ToLower(sc.Content.Canonical()), needle)
}
