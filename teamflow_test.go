package teamflow

import (
	"context"
	"testing"
	"time"

	"github.com/teamflow-ai/teamflow/coordinator"
	"github.com/teamflow-ai/teamflow/formation"
	"github.com/teamflow-ai/teamflow/types"
)

func TestNew_DefaultsRunInProcess(t *testing.T) {
	tf, err := New()
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	defer tf.Close()
	ctx := context.Background()

	for _, a := range []*types.Agent{
		{ID: "a1", Name: "analyst", Capabilities: map[string]float64{"python": 0.9}, Available: true, Active: true},
		{ID: "a2", Name: "writer", Capabilities: map[string]float64{"writing": 0.8}, Available: true, Active: true},
	} {
		if _, err := tf.Agents().Register(ctx, a); err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}

	team, err := tf.Formation().FormTeam(ctx, "docs", map[string]float64{"writing": 0.5}, 1, formation.StrategyCapability)
	if err != nil {
		t.Fatalf("form team failed: %v", err)
	}
	if len(team.MemberIDs) != 1 || team.MemberIDs[0] != "a2" {
		t.Errorf("expected a2 on the team, got %v", team.MemberIDs)
	}
}

func TestNew_NegotiationThroughFacade(t *testing.T) {
	tf, err := New(WithDefaultStrategy(types.StrategyCompromise))
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	defer tf.Close()
	ctx := context.Background()

	for _, id := range []string{"p1", "p2"} {
		if _, err := tf.Agents().Register(ctx, &types.Agent{ID: id, Name: id, Available: true, Active: true}); err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}

	n, err := tf.Negotiation().Start(ctx, "p1", []string{"p2"}, "budget", "")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	for party, amount := range map[string]int{"p1": 10, "p2": 30} {
		doc := types.NewDocument()
		doc.Set("amount", amount)
		if _, err := tf.Negotiation().SubmitProposal(ctx, n.ID, party, doc); err != nil {
			t.Fatalf("proposal from %s failed: %v", party, err)
		}
	}

	resolved, err := tf.Negotiation().Resolve(ctx, n.ID, "")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Status != types.NegotiationSuccessful {
		t.Fatalf("status = %s, want SUCCESSFUL", resolved.Status)
	}
	v, _ := resolved.FinalAgreement.Get("amount")
	if num, _ := types.AsNumber(v); num != 20 {
		t.Errorf("compromise amount = %v, want 20", v)
	}
}

func TestNew_CoordinationThroughFacade(t *testing.T) {
	exec := coordinator.ExecutorFunc(func(_ context.Context, st *coordinator.Subtask, agentID string, _ map[string]*types.Document) (*types.Document, error) {
		out := types.NewDocument()
		out.Set("subtask", st.Name)
		out.Set("agent", agentID)
		return out, nil
	})
	tf, err := New(WithExecutor(exec), WithSubtaskTimeout(time.Second))
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	defer tf.Close()
	ctx := context.Background()

	if _, err := tf.Agents().Register(ctx, &types.Agent{
		ID: "a1", Name: "generalist",
		Capabilities: map[string]float64{"nlp": 0.9, "integration": 0.9},
		Available:    true, Active: true,
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	session, err := tf.Coordinator().CoordinateProblemSolving(ctx, &coordinator.ProblemSpec{
		ID:      "prob1",
		Title:   "classify support tickets",
		Domains: []string{"nlp"},
	})
	if err != nil {
		t.Fatalf("coordinate failed: %v", err)
	}
	if session.Status != coordinator.SessionCompleted {
		t.Errorf("session status = %s, want COMPLETED", session.Status)
	}
	if session.Solution == nil {
		t.Errorf("expected a solution document")
	}
}

func TestNew_RejectsInvalidOptions(t *testing.T) {
	if _, err := New(WithFormationConfig(formation.Config{CapabilityMatchThreshold: 1.5})); err == nil {
		t.Errorf("expected error for out-of-range threshold")
	}
	if _, err := New(WithDefaultStrategy("HAGGLE")); err == nil {
		t.Errorf("expected error for unknown strategy")
	}
}
