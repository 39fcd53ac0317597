package store

import (
	"context"
	"testing"
	"time"

	"github.com/teamflow-ai/teamflow/types"
)

func TestMemory_AgentQueries(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	agents := []*types.Agent{
		{ID: "a1", Provider: "openai", Active: true, Available: true,
			Capabilities:    map[string]float64{"python": 0.9, "ml": 0.8},
			Specializations: []string{"data-science"}},
		{ID: "a2", Provider: "anthropic", Active: true, Available: true,
			Capabilities: map[string]float64{"python": 0.5}},
		{ID: "a3", Provider: "openai", Active: false, Available: true,
			Capabilities: map[string]float64{"python": 1.0}},
	}
	for _, a := range agents {
		if err := m.SaveAgent(ctx, a); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	got, err := m.FindByCapability(ctx, "python", 0.7)
	if err != nil {
		t.Fatalf("find by capability failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a1" {
		t.Errorf("expected only a1 (a3 is inactive), got %v", ids(got))
	}

	got, err = m.FindBySpecialization(ctx, "data-science")
	if err != nil || len(got) != 1 || got[0].ID != "a1" {
		t.Errorf("expected a1 by specialization, got %v (%v)", ids(got), err)
	}

	got, err = m.FindByProvider(ctx, "openai")
	if err != nil || len(got) != 1 || got[0].ID != "a1" {
		t.Errorf("expected a1 by provider (a3 inactive), got %v (%v)", ids(got), err)
	}

	if _, err := m.GetAgent(ctx, "nope"); !types.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestMemory_TaskQueries(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	m.SaveTask(ctx, &types.Task{ID: "t1", Status: types.TaskCreated})
	m.SaveTask(ctx, &types.Task{ID: "t2", Status: types.TaskAssigned, AssignedTeamID: "team1"})
	m.SaveTask(ctx, &types.Task{ID: "t3", Status: types.TaskInProgress, AssignedTeamID: "team1", DueAt: now.Add(-time.Hour)})
	m.SaveTask(ctx, &types.Task{ID: "t4", Status: types.TaskCompleted, AssignedTeamID: "team1", DueAt: now.Add(-time.Hour)})

	unassigned, err := m.FindUnassignedTasks(ctx)
	if err != nil || len(unassigned) != 1 || unassigned[0].ID != "t1" {
		t.Errorf("expected t1 unassigned, got %v", taskIDs(unassigned))
	}

	overdue, err := m.FindOverdueTasks(ctx, now)
	if err != nil || len(overdue) != 1 || overdue[0].ID != "t3" {
		t.Errorf("expected t3 overdue (t4 terminal), got %v", taskIDs(overdue))
	}
}

func TestMemory_UnfilledRoles(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.SaveTeam(ctx, &types.Team{ID: "team1", Roles: []*types.Role{
		{ID: "r1", Priority: 5, AgentID: "a1"},
		{ID: "r2", Priority: 8},
		{ID: "r3", Priority: 2},
	}})

	roles, err := m.FindHighPriorityUnfilledRoles(ctx, 3)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(roles) != 1 || roles[0].ID != "r2" {
		t.Errorf("expected only r2, got %d roles", len(roles))
	}
}

func TestMemory_ContextVersionCascade(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.SaveContext(ctx, &types.SharedContext{ID: "c1"})
	m.SaveVersion(ctx, &types.ContextVersion{ID: "v1", ContextID: "c1", Number: 1})
	m.SaveVersion(ctx, &types.ContextVersion{ID: "v2", ContextID: "c1", Number: 2})

	versions, err := m.ListVersions(ctx, "c1")
	if err != nil || len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d (%v)", len(versions), err)
	}
	if versions[0].Number != 1 || versions[1].Number != 2 {
		t.Error("versions not ordered by number")
	}

	if err := m.DeleteContext(ctx, "c1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := m.GetVersion(ctx, "c1", "v1"); !types.IsNotFound(err) {
		t.Error("versions should cascade on context delete")
	}
}

func ids(agents []*types.Agent) []string {
	out := make([]string, len(agents))
	for i, a := range agents {
		out[i] = a.ID
	}
	return out
}

func taskIDs(tasks []*types.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
