package negotiation

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/teamflow-ai/teamflow/internal/cache"
	"github.com/teamflow-ai/teamflow/registry"
	"github.com/teamflow-ai/teamflow/store"
	"github.com/teamflow-ai/teamflow/types"
)

func newTestEngine(t *testing.T) (*Engine, *registry.Registry) {
	t.Helper()
	st := store.NewMemory()
	reg := registry.New(st, cache.NewMemoryCache(time.Minute), zap.NewNop())
	eng := NewEngine(st, reg, cache.NewMemoryCache(time.Minute), "", nil, zap.NewNop())
	for _, id := range []string{"p1", "p2", "p3"} {
		if _, err := reg.Register(context.Background(), &types.Agent{ID: id, Name: id}); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	return eng, reg
}

func startNegotiation(t *testing.T, eng *Engine, strategy types.ResolutionStrategy) *types.Negotiation {
	t.Helper()
	n, err := eng.Start(context.Background(), "p1", []string{"p2", "p3"}, "resource split", strategy)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return n
}

func TestResolveCompromiseEndToEnd(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	n := startNegotiation(t, eng, "")

	for id, v := range map[string]int{"p1": 10, "p2": 20, "p3": 30} {
		if _, err := eng.SubmitProposal(ctx, n.ID, id, doc("a", v)); err != nil {
			t.Fatalf("submit %s: %v", id, err)
		}
	}

	n, err := eng.Resolve(ctx, n.ID, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if n.Status != types.NegotiationSuccessful {
		t.Fatalf("status = %s, want SUCCESSFUL", n.Status)
	}
	v, _ := n.FinalAgreement.Get("a")
	if got, _ := types.AsNumber(v); got != 20 {
		t.Errorf("a = %v, want 20", v)
	}
	if n.EndedAt.IsZero() {
		t.Errorf("EndedAt not set")
	}

	last := n.Messages[len(n.Messages)-1]
	if last.Type != types.MessageResolution || last.SenderID != systemSender {
		t.Errorf("last message = %s from %s, want RESOLUTION from SYSTEM", last.Type, last.SenderID)
	}
	if !last.Payload.Equal(n.FinalAgreement) {
		t.Errorf("resolution payload differs from final agreement")
	}
}

func TestResolveTerminalNegotiationFails(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	n := startNegotiation(t, eng, "")

	if _, err := eng.SubmitProposal(ctx, n.ID, "p1", doc("a", 1)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := eng.Resolve(ctx, n.ID, ""); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if _, err := eng.Resolve(ctx, n.ID, ""); !types.IsInvalidState(err) {
		t.Fatalf("second resolve err = %v, want INVALID_STATE", err)
	}
}

func TestResolveWithoutProposalsMarksFailed(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	n := startNegotiation(t, eng, "")

	n, err := eng.Resolve(ctx, n.ID, "")
	if err != nil {
		t.Fatalf("resolve returned error: %v (missing data must fail the negotiation, not the call)", err)
	}
	if n.Status != types.NegotiationFailed {
		t.Errorf("status = %s, want FAILED", n.Status)
	}
	if n.FinalAgreement != nil {
		t.Errorf("final agreement set on a failed negotiation")
	}
}

func TestStrategySelectionOrder(t *testing.T) {
	eng, reg := newTestEngine(t)
	ctx := context.Background()

	if err := reg.SetPreferences(ctx, &types.AgentPreferences{AgentID: "p2", Priority: 9, Preferences: map[string]any{}}); err != nil {
		t.Fatalf("set preferences: %v", err)
	}

	// Stored strategy COMPROMISE, explicit PRIORITY_BASED: explicit wins.
	n := startNegotiation(t, eng, types.StrategyCompromise)
	if _, err := eng.SubmitProposal(ctx, n.ID, "p1", doc("a", 0)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := eng.SubmitProposal(ctx, n.ID, "p2", doc("a", 100)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	n, err := eng.Resolve(ctx, n.ID, types.StrategyPriorityBased)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	v, _ := n.FinalAgreement.Get("a")
	if got, _ := types.AsNumber(v); got != 100 {
		t.Errorf("a = %v, want p2's whole proposal under PRIORITY_BASED", v)
	}

	// No explicit strategy: the stored one applies.
	n2 := startNegotiation(t, eng, types.StrategyVoting)
	if _, err := eng.SubmitProposal(ctx, n2.ID, "p1", doc("a", 0)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	n2, err = eng.Resolve(ctx, n2.ID, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	v, _ = n2.FinalAgreement.Get("a")
	if got, _ := types.AsNumber(v); got != 0 {
		t.Errorf("a = %v, want the only submitted proposal under VOTING", v)
	}
}

func TestSubmitProposalAccessControl(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	n := startNegotiation(t, eng, "")

	if _, err := eng.SubmitProposal(ctx, n.ID, "stranger", doc("a", 1)); !types.IsForbidden(err) {
		t.Fatalf("err = %v, want FORBIDDEN for a non-party", err)
	}
	if _, err := eng.SubmitProposal(ctx, "missing", "p1", doc("a", 1)); !types.IsNotFound(err) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}

func TestForceTimeout(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	n := startNegotiation(t, eng, "")

	n, err := eng.ForceTimeout(ctx, n.ID)
	if err != nil {
		t.Fatalf("timeout: %v", err)
	}
	if n.Status != types.NegotiationTimeout {
		t.Fatalf("status = %s, want TIMEOUT", n.Status)
	}
	if _, err := eng.ForceTimeout(ctx, n.ID); !types.IsInvalidState(err) {
		t.Errorf("second timeout err = %v, want INVALID_STATE", err)
	}
	if _, err := eng.Resolve(ctx, n.ID, ""); !types.IsInvalidState(err) {
		t.Errorf("resolve after timeout err = %v, want INVALID_STATE", err)
	}
}

func TestFairnessOnlyForSuccessful(t *testing.T) {
	eng, reg := newTestEngine(t)
	ctx := context.Background()

	for _, id := range []string{"p1", "p2", "p3"} {
		if err := reg.SetPreferences(ctx, &types.AgentPreferences{
			AgentID:     id,
			Preferences: map[string]any{"a": 20},
		}); err != nil {
			t.Fatalf("set preferences: %v", err)
		}
	}

	n := startNegotiation(t, eng, "")
	if _, err := eng.Fairness(ctx, n.ID); !types.IsInvalidState(err) {
		t.Fatalf("fairness on open negotiation: err = %v, want INVALID_STATE", err)
	}

	for id, v := range map[string]int{"p1": 10, "p2": 20, "p3": 30} {
		if _, err := eng.SubmitProposal(ctx, n.ID, id, doc("a", v)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if _, err := eng.Resolve(ctx, n.ID, ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// The agreement {a:20} matches everyone's preference equally.
	f, err := eng.Fairness(ctx, n.ID)
	if err != nil {
		t.Fatalf("fairness: %v", err)
	}
	if f != 1 {
		t.Errorf("fairness = %v, want 1 for identical utilities", f)
	}
}

func TestStartValidatesParties(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.Start(ctx, "ghost", []string{"p2"}, "", ""); !types.IsNotFound(err) {
		t.Errorf("unknown initiator: err = %v, want NOT_FOUND", err)
	}
	if _, err := eng.Start(ctx, "p1", []string{"ghost"}, "", ""); !types.IsNotFound(err) {
		t.Errorf("unknown participant: err = %v, want NOT_FOUND", err)
	}
	if _, err := eng.Start(ctx, "p1", []string{"p2"}, "", "BOGUS"); !types.IsInvalidState(err) {
		t.Errorf("bogus strategy: err = %v, want INVALID_STATE", err)
	}
}
