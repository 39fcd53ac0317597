package contextstore

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/teamflow-ai/teamflow/store"
	"github.com/teamflow-ai/teamflow/types"
)

func newTestService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	return NewService(st, nil, zap.NewNop()), st
}

func doc(pairs ...any) *types.Document {
	d := types.NewDocument()
	for i := 0; i+1 < len(pairs); i += 2 {
		d.Set(pairs[i].(string), pairs[i+1])
	}
	return d
}

func TestCreateGrantsOwnerAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sc, err := svc.Create(ctx, "plan", "session", "owner", doc("count", 1), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	g := sc.GrantFor("owner", time.Now())
	if g == nil || g.Level != types.AccessAdmin {
		t.Fatalf("owner grant = %+v, want ADMIN", g)
	}
	if sc.CurrentVersionID == "" {
		t.Fatalf("no initial version")
	}

	v, err := svc.GetVersion(ctx, sc.ID, sc.CurrentVersionID, "owner")
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if v.Number != 1 {
		t.Errorf("initial version number = %d, want 1", v.Number)
	}
	if v.ParentID != "" {
		t.Errorf("initial version has parent %q", v.ParentID)
	}
	if !VerifyContentHash(v.ContentHash, v.Content) {
		t.Errorf("content hash does not verify")
	}
}

func TestUpdateCreatesVersionAndCompareReportsChange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sc, err := svc.Create(ctx, "counter", "session", "owner", doc("count", 1), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	v1 := sc.CurrentVersionID

	sc, err = svc.Update(ctx, sc.ID, "owner", doc("count", 2), nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	v2 := sc.CurrentVersionID
	if v2 == v1 {
		t.Fatalf("current version pointer did not advance")
	}

	changes, err := svc.CompareVersions(ctx, sc.ID, v1, v2, "owner")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("changes = %+v, want exactly one", changes)
	}
	c := changes[0]
	if c.Op != types.OpUpdate || c.Path != "count" {
		t.Errorf("change = %+v, want UPDATE at count", c)
	}
	oldN, _ := types.AsNumber(c.OldValue)
	newN, _ := types.AsNumber(c.NewValue)
	if oldN != 1 || newN != 2 {
		t.Errorf("old/new = %v/%v, want 1/2", c.OldValue, c.NewValue)
	}

	// The prior version stays retrievable and untouched.
	old, err := svc.GetVersion(ctx, sc.ID, v1, "owner")
	if err != nil {
		t.Fatalf("get old version: %v", err)
	}
	if v, _ := old.Content.Get("count"); func() float64 { n, _ := types.AsNumber(v); return n }() != 1 {
		t.Errorf("historical version mutated: count = %v", v)
	}

	next, err := svc.GetVersion(ctx, sc.ID, v2, "owner")
	if err != nil {
		t.Fatalf("get new version: %v", err)
	}
	if next.ParentID != v1 {
		t.Errorf("parent = %q, want %q", next.ParentID, v1)
	}
	if next.Number != 2 {
		t.Errorf("number = %d, want 2", next.Number)
	}
}

func TestAccessLevels(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sc, err := svc.Create(ctx, "doc", "notes", "owner", doc("k", "v"), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// No grant at all: FORBIDDEN, distinguishable from NOT_FOUND.
	if _, err := svc.Get(ctx, sc.ID, "stranger"); !types.IsForbidden(err) {
		t.Errorf("no grant: err = %v, want FORBIDDEN", err)
	}
	if _, err := svc.Get(ctx, "missing", "owner"); !types.IsNotFound(err) {
		t.Errorf("missing context: err = %v, want NOT_FOUND", err)
	}

	// READ_ONLY can read and subscribe but not write.
	if _, err := svc.Grant(ctx, sc.ID, "owner", "reader", types.AccessReadOnly, 0); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := svc.Get(ctx, sc.ID, "reader"); err != nil {
		t.Errorf("reader cannot read: %v", err)
	}
	if _, err := svc.Subscribe(ctx, sc.ID, "reader"); err != nil {
		t.Errorf("reader cannot subscribe: %v", err)
	}
	if _, err := svc.Update(ctx, sc.ID, "reader", doc("k", "x"), nil); !types.IsForbidden(err) {
		t.Errorf("reader write: err = %v, want FORBIDDEN", err)
	}

	// READ_WRITE can write but not grant or delete.
	if _, err := svc.Grant(ctx, sc.ID, "owner", "writer", types.AccessReadWrite, 0); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := svc.Update(ctx, sc.ID, "writer", doc("k", "x"), nil); err != nil {
		t.Errorf("writer cannot write: %v", err)
	}
	if _, err := svc.Grant(ctx, sc.ID, "writer", "other", types.AccessReadOnly, 0); !types.IsForbidden(err) {
		t.Errorf("writer grant: err = %v, want FORBIDDEN", err)
	}
	if err := svc.Delete(ctx, sc.ID, "writer"); !types.IsForbidden(err) {
		t.Errorf("writer delete: err = %v, want FORBIDDEN", err)
	}

	// Only grants can be revoked, never the owner's.
	if _, err := svc.Revoke(ctx, sc.ID, "owner", "owner"); !types.IsForbidden(err) {
		t.Errorf("revoking owner: err = %v, want FORBIDDEN", err)
	}
	if _, err := svc.Revoke(ctx, sc.ID, "owner", "reader"); err != nil {
		t.Fatalf("revoke reader: %v", err)
	}
	if _, err := svc.Get(ctx, sc.ID, "reader"); !types.IsForbidden(err) {
		t.Errorf("revoked reader still reads: err = %v", err)
	}
}

func TestExpiredGrantBehavesLikeNoGrant(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sc, err := svc.Create(ctx, "doc", "notes", "owner", nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Grant(ctx, sc.ID, "owner", "temp", types.AccessReadWrite, time.Nanosecond); err != nil {
		t.Fatalf("grant: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := svc.Get(ctx, sc.ID, "temp"); !types.IsForbidden(err) {
		t.Errorf("expired grant: err = %v, want FORBIDDEN", err)
	}
}

func TestMergeRecordsSourceAndResolvesOverlap(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	target, err := svc.Create(ctx, "target", "session", "owner", doc("a", 10, "only_t", true), nil)
	if err != nil {
		t.Fatalf("create target: %v", err)
	}
	source, err := svc.Create(ctx, "source", "session", "owner", doc("a", 30, "only_s", "x"), nil)
	if err != nil {
		t.Fatalf("create source: %v", err)
	}

	target, err = svc.Merge(ctx, target.ID, source.ID, "owner", types.MergeCombine, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if v, _ := target.Content.Get("a"); func() float64 { n, _ := types.AsNumber(v); return n }() != 20 {
		t.Errorf("a = %v, want combined mean 20", v)
	}
	if _, ok := target.Content.Get("only_s"); !ok {
		t.Errorf("source-only key not carried over")
	}
	if _, ok := target.Content.Get("only_t"); !ok {
		t.Errorf("target-only key lost")
	}

	v, err := svc.GetVersion(ctx, target.ID, target.CurrentVersionID, "owner")
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	var merge *types.Change
	for i := range v.Changes {
		if v.Changes[i].Op == types.OpMerge {
			merge = &v.Changes[i]
		}
	}
	if merge == nil {
		t.Fatalf("no MERGE change recorded: %+v", v.Changes)
	}
	if merge.Metadata["source_context_id"] != source.ID {
		t.Errorf("merge metadata = %+v, want source id recorded", merge.Metadata)
	}
}

func TestMergeTargetWinsAndSourceWins(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, tc := range []struct {
		policy types.MergePolicy
		want   float64
	}{
		{types.MergeTargetWins, 1},
		{types.MergeSourceWins, 9},
	} {
		target, err := svc.Create(ctx, "t", "s", "owner", doc("k", 1), nil)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		source, err := svc.Create(ctx, "s", "s", "owner", doc("k", 9), nil)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		target, err = svc.Merge(ctx, target.ID, source.ID, "owner", tc.policy, nil)
		if err != nil {
			t.Fatalf("%s: merge: %v", tc.policy, err)
		}
		v, _ := target.Content.Get("k")
		if n, _ := types.AsNumber(v); n != tc.want {
			t.Errorf("%s: k = %v, want %v", tc.policy, v, tc.want)
		}
	}
}

func TestForkCreatesIndependentContext(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	src, err := svc.Create(ctx, "origin", "session", "owner", doc("k", 1), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Grant(ctx, src.ID, "owner", "forker", types.AccessReadOnly, 0); err != nil {
		t.Fatalf("grant: %v", err)
	}

	fork, err := svc.Fork(ctx, src.ID, "forker", "copy")
	if err != nil {
		t.Fatalf("fork: %v", err)
	}
	if fork.OwnerID != "forker" {
		t.Errorf("fork owner = %q, want forker", fork.OwnerID)
	}
	if fork.ID == src.ID {
		t.Fatalf("fork shares the source id")
	}
	if !fork.Content.Equal(src.Content) {
		t.Errorf("fork content differs from source")
	}

	// Writes to the fork leave the source untouched.
	if _, err := svc.Update(ctx, fork.ID, "forker", doc("k", 2), nil); err != nil {
		t.Fatalf("update fork: %v", err)
	}
	src, err = svc.Get(ctx, src.ID, "owner")
	if err != nil {
		t.Fatalf("reload source: %v", err)
	}
	if v, _ := src.Content.Get("k"); func() float64 { n, _ := types.AsNumber(v); return n }() != 1 {
		t.Errorf("source mutated by fork write: k = %v", v)
	}
}

func TestRevertCreatesNewVersion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sc, err := svc.Create(ctx, "doc", "notes", "owner", doc("k", 1), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	v1 := sc.CurrentVersionID
	if sc, err = svc.Update(ctx, sc.ID, "owner", doc("k", 2), nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	sc, err = svc.RevertToVersion(ctx, sc.ID, v1, "owner")
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if v, _ := sc.Content.Get("k"); func() float64 { n, _ := types.AsNumber(v); return n }() != 1 {
		t.Errorf("k = %v after revert, want 1", v)
	}

	// Revert adds history, never truncates it.
	versions, err := svc.ListVersions(ctx, sc.ID, "owner")
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("history length = %d, want 3", len(versions))
	}
	if _, err := svc.RevertToVersion(ctx, sc.ID, "missing", "owner"); !types.IsNotFound(err) {
		t.Errorf("revert to missing version: err = %v, want NOT_FOUND", err)
	}
}

func TestSubscribeIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sc, err := svc.Create(ctx, "doc", "notes", "owner", nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if sc, err = svc.Subscribe(ctx, sc.ID, "owner"); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}
	if len(sc.Subscribers) != 1 {
		t.Fatalf("subscribers = %v, want exactly one entry", sc.Subscribers)
	}
	for i := 0; i < 2; i++ {
		if sc, err = svc.Unsubscribe(ctx, sc.ID, "owner"); err != nil {
			t.Fatalf("unsubscribe: %v", err)
		}
	}
	if len(sc.Subscribers) != 0 {
		t.Fatalf("subscribers = %v after unsubscribe, want none", sc.Subscribers)
	}
}

func TestSearch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "ml plan", "session", "owner", doc("topic", "training"), nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	private, err := svc.Create(ctx, "secret roadmap", "notes", "boss", doc("topic", "training"), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Free-text over name.
	got, err := svc.Search(ctx, "plan", "", "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Name != "ml plan" {
		t.Fatalf("search by name = %v", names(got))
	}

	// Free-text over content, across both contexts.
	got, err = svc.Search(ctx, "training", "", "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("search by content = %v, want both", names(got))
	}

	// Type filter.
	got, err = svc.Search(ctx, "training", "notes", "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != private.ID {
		t.Fatalf("search by type = %v", names(got))
	}

	// Caller filter hides contexts the agent cannot read.
	got, err = svc.Search(ctx, "training", "", "owner")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Name != "ml plan" {
		t.Fatalf("access-filtered search = %v", names(got))
	}
}

func names(scs []*types.SharedContext) []string {
	out := make([]string, len(scs))
	for i, sc := range scs {
		out[i] = sc.Name
	}
	return out
}
