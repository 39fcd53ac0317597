package types

import (
	"encoding/json"
	"testing"
)

func TestDocument_SetGetDelete(t *testing.T) {
	d := NewDocument()
	d.Set("a", 1)
	d.Set("b", "two")
	d.Set("a", 3)

	if d.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", d.Len())
	}
	if v, _ := d.Get("a"); v != 3 {
		t.Errorf("expected a=3, got %v", v)
	}

	d.Delete("a")
	if _, ok := d.Get("a"); ok {
		t.Error("expected a to be deleted")
	}
	if got := d.Keys(); len(got) != 1 || got[0] != "b" {
		t.Errorf("unexpected keys after delete: %v", got)
	}
}

func TestDocument_JSONRoundTripPreservesOrder(t *testing.T) {
	d := NewDocument()
	d.Set("zeta", 1)
	d.Set("alpha", true)
	d.Set("mid", map[string]any{"nested": "yes"})

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var back Document
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	keys := back.Keys()
	if len(keys) != 3 || keys[0] != "zeta" || keys[1] != "alpha" || keys[2] != "mid" {
		t.Errorf("key order not preserved: %v", keys)
	}
	if !d.Equal(&back) {
		t.Error("round-tripped document not equal to original")
	}
}

func TestCombineValues_NumericMean(t *testing.T) {
	got := CombineValues([]any{10, 20, 30})
	mean, ok := got.(float64)
	if !ok || mean != 20 {
		t.Fatalf("expected mean exactly 20, got %v", got)
	}
}

func TestCombineValues_BooleanMajority(t *testing.T) {
	if got := CombineValues([]any{true, true, false}); got != true {
		t.Errorf("expected majority true, got %v", got)
	}
	if got := CombineValues([]any{true, false, false}); got != false {
		t.Errorf("expected majority false, got %v", got)
	}
}

func TestCombineValues_MostFrequent(t *testing.T) {
	got := CombineValues([]any{"red", "blue", "red"})
	if got != "red" {
		t.Errorf("expected most frequent 'red', got %v", got)
	}
}

func TestCombineValues_MixedTypesFallToFrequency(t *testing.T) {
	// A numeric and a string together cannot be averaged; frequency rules.
	got := CombineValues([]any{"x", "x", 7})
	if got != "x" {
		t.Errorf("expected 'x', got %v", got)
	}
}

func TestDocument_MergePolicies(t *testing.T) {
	target := NewDocument()
	target.Set("shared", 10)
	target.Set("only_target", "t")

	source := NewDocument()
	source.Set("shared", 30)
	source.Set("only_source", "s")

	sourceWins := target.Merge(source, MergeSourceWins, nil)
	if v, _ := sourceWins.Get("shared"); v != 30 {
		t.Errorf("source_wins: expected 30, got %v", v)
	}

	targetWins := target.Merge(source, MergeTargetWins, nil)
	if v, _ := targetWins.Get("shared"); v != 10 {
		t.Errorf("target_wins: expected 10, got %v", v)
	}

	combined := target.Merge(source, MergeCombine, nil)
	if v, _ := combined.Get("shared"); v != float64(20) {
		t.Errorf("combine: expected 20, got %v", v)
	}

	// Non-overlapping keys always carry over.
	for _, m := range []*Document{sourceWins, targetWins, combined} {
		if _, ok := m.Get("only_target"); !ok {
			t.Error("missing only_target after merge")
		}
		if _, ok := m.Get("only_source"); !ok {
			t.Error("missing only_source after merge")
		}
	}
}

func TestDocument_MergeCustomFunc(t *testing.T) {
	target := NewDocument()
	target.Set("k", "old")
	source := NewDocument()
	source.Set("k", "new")

	merged := target.Merge(source, "", func(key string, tv, sv any) any {
		return tv.(string) + "+" + sv.(string)
	})
	if v, _ := merged.Get("k"); v != "old+new" {
		t.Errorf("expected custom merge result, got %v", v)
	}
}

func TestDocument_Diff(t *testing.T) {
	before := NewDocument()
	before.Set("count", 1)
	before.Set("gone", "x")

	after := NewDocument()
	after.Set("count", 2)
	after.Set("fresh", true)

	changes := before.Diff(after)
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d: %+v", len(changes), changes)
	}

	byPath := make(map[string]Change)
	for _, c := range changes {
		byPath[c.Path] = c
	}

	if c := byPath["count"]; c.Op != OpUpdate || c.OldValue != 1 || c.NewValue != 2 {
		t.Errorf("unexpected count change: %+v", c)
	}
	if c := byPath["fresh"]; c.Op != OpCreate || c.NewValue != true {
		t.Errorf("unexpected fresh change: %+v", c)
	}
	if c := byPath["gone"]; c.Op != OpDelete || c.OldValue != "x" {
		t.Errorf("unexpected gone change: %+v", c)
	}
}

func TestDocument_DiffNumericRepresentations(t *testing.T) {
	// int 2 and float64 2 are the same value; no change reported.
	before := NewDocument()
	before.Set("n", 2)
	after := NewDocument()
	after.Set("n", float64(2))

	if changes := before.Diff(after); len(changes) != 0 {
		t.Errorf("expected no changes, got %+v", changes)
	}
}

func TestDocument_CanonicalIsSorted(t *testing.T) {
	a := NewDocument()
	a.Set("b", 1)
	a.Set("a", 2)

	b := NewDocument()
	b.Set("a", 2)
	b.Set("b", 1)

	if a.Canonical() != b.Canonical() {
		t.Errorf("canonical forms differ: %s vs %s", a.Canonical(), b.Canonical())
	}
}

func TestDocument_CloneIsDeep(t *testing.T) {
	d := NewDocument()
	d.Set("m", map[string]any{"inner": 1})

	c := d.Clone()
	inner, _ := c.Get("m")
	inner.(map[string]any)["inner"] = 99

	orig, _ := d.Get("m")
	if orig.(map[string]any)["inner"] != 1 {
		t.Error("clone shares nested map with original")
	}
}
