package negotiation

import (
	"math"

	"github.com/teamflow-ai/teamflow/types"
)

// The seven resolution strategies are pure functions from the submitted
// proposals and the parties' preference data to a single resolved proposal.
// Each takes the party ids in negotiation order (initiator first) so that
// ties resolve deterministically, and returns nil when it cannot produce a
// result.

// resolvePriorityBased picks the entire proposal of the party with the
// highest integer priority.
func resolvePriorityBased(parties []string, proposals map[string]*types.Document, prefs map[string]*types.AgentPreferences) *types.Document {
	var winner *types.Document
	best := 0
	for _, id := range parties {
		p, ok := proposals[id]
		if !ok {
			continue
		}
		priority := 0
		if pref := prefs[id]; pref != nil {
			priority = pref.Priority
		}
		if winner == nil || priority > best {
			winner, best = p, priority
		}
	}
	if winner == nil {
		return nil
	}
	return winner.Clone()
}

// resolveCompromise merges all proposals key by key: numeric values average,
// booleans take the majority, anything else takes the most frequent value.
func resolveCompromise(parties []string, proposals map[string]*types.Document, _ map[string]*types.AgentPreferences) *types.Document {
	keys, byKey := collectValues(parties, proposals)
	if len(keys) == 0 {
		return nil
	}
	out := types.NewDocument()
	for _, key := range keys {
		out.Set(key, types.CombineValues(byKey[key]))
	}
	return out
}

// resolveVoting compares proposals by canonical form; the most-submitted
// exact proposal wins outright and is never merged. Ties keep the earlier
// party's proposal.
func resolveVoting(parties []string, proposals map[string]*types.Document, _ map[string]*types.AgentPreferences) *types.Document {
	counts := map[string]int{}
	first := map[string]*types.Document{}
	var order []string
	for _, id := range parties {
		p, ok := proposals[id]
		if !ok {
			continue
		}
		c := p.Canonical()
		if counts[c] == 0 {
			first[c] = p
			order = append(order, c)
		}
		counts[c]++
	}
	var winner *types.Document
	best := 0
	for _, c := range order {
		if counts[c] > best {
			winner, best = first[c], counts[c]
		}
	}
	if winner == nil {
		return nil
	}
	return winner.Clone()
}

// resolveOptimization picks, per key, the submitted value matching the most
// parties' own preference for that key.
func resolveOptimization(parties []string, proposals map[string]*types.Document, prefs map[string]*types.AgentPreferences) *types.Document {
	keys, byKey := collectValues(parties, proposals)
	if len(keys) == 0 {
		return nil
	}
	out := types.NewDocument()
	for _, key := range keys {
		var bestValue any
		bestMatches := -1
		for _, value := range byKey[key] {
			matches := 0
			for _, id := range parties {
				pref := prefs[id]
				if pref == nil {
					continue
				}
				if want, ok := pref.Preferences[key]; ok && equalValues(value, want) {
					matches++
				}
			}
			if matches > bestMatches {
				bestValue, bestMatches = value, matches
			}
		}
		out.Set(key, bestValue)
	}
	return out
}

// resolveFairDivision allocates each key to the party with the strongest
// recorded preference for it: numeric preferences rank by magnitude, any
// other preference counts as strength 1, ties rank by priority then party
// order. Keys nobody has a preference for fall back to the compromise rule.
func resolveFairDivision(parties []string, proposals map[string]*types.Document, prefs map[string]*types.AgentPreferences) *types.Document {
	keys, byKey := collectValues(parties, proposals)
	if len(keys) == 0 {
		return nil
	}
	out := types.NewDocument()
	for _, key := range keys {
		owner := ""
		bestStrength := 0.0
		bestPriority := 0
		for _, id := range parties {
			pref := prefs[id]
			if pref == nil {
				continue
			}
			want, ok := pref.Preferences[key]
			if !ok {
				continue
			}
			strength := 1.0
			if n, isNum := types.AsNumber(want); isNum {
				strength = math.Abs(n)
			}
			priority := pref.Priority
			if owner == "" || strength > bestStrength ||
				(strength == bestStrength && priority > bestPriority) {
				owner, bestStrength, bestPriority = id, strength, priority
			}
		}
		if owner != "" {
			if p, ok := proposals[owner]; ok {
				if v, ok := p.Get(key); ok {
					out.Set(key, v)
					continue
				}
			}
		}
		out.Set(key, types.CombineValues(byKey[key]))
	}
	return out
}

// resolveParetoOptimal drops every proposal dominated by another (no worse
// for every party, strictly better for at least one) and picks the
// non-dominated proposal with the highest average utility.
func resolveParetoOptimal(parties []string, proposals map[string]*types.Document, prefs map[string]*types.AgentPreferences) *types.Document {
	var ids []string
	for _, id := range parties {
		if _, ok := proposals[id]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	vectors := make(map[string][]float64, len(ids))
	for _, id := range ids {
		vectors[id] = utilityVector(parties, proposals[id], prefs)
	}

	var winner *types.Document
	bestAvg := -1.0
	for _, id := range ids {
		if dominated(id, ids, vectors) {
			continue
		}
		avg := mean(vectors[id])
		if avg > bestAvg {
			winner, bestAvg = proposals[id], avg
		}
	}
	if winner == nil {
		return nil
	}
	return winner.Clone()
}

// resolveNashBargaining evaluates every submitted proposal plus the
// compromise result against a zero-utility disagreement point, and picks
// the candidate maximizing the product of per-party utilities.
func resolveNashBargaining(parties []string, proposals map[string]*types.Document, prefs map[string]*types.AgentPreferences) *types.Document {
	var candidates []*types.Document
	for _, id := range parties {
		if p, ok := proposals[id]; ok {
			candidates = append(candidates, p)
		}
	}
	if compromise := resolveCompromise(parties, proposals, prefs); compromise != nil {
		candidates = append(candidates, compromise)
	}
	if len(candidates) == 0 {
		return nil
	}

	var winner *types.Document
	best := -1.0
	for _, c := range candidates {
		product := 1.0
		for _, u := range utilityVector(parties, c, prefs) {
			if u < 0 {
				u = 0
			}
			product *= u
		}
		if product > best {
			winner, best = c, product
		}
	}
	return winner.Clone()
}

// collectValues gathers, in party order, every key appearing in any proposal
// (first-seen key order) with the list of submitted values for it.
func collectValues(parties []string, proposals map[string]*types.Document) ([]string, map[string][]any) {
	var keys []string
	byKey := map[string][]any{}
	for _, id := range parties {
		p, ok := proposals[id]
		if !ok {
			continue
		}
		for _, key := range p.Keys() {
			if _, seen := byKey[key]; !seen {
				keys = append(keys, key)
			}
			v, _ := p.Get(key)
			byKey[key] = append(byKey[key], v)
		}
	}
	return keys, byKey
}

// utilityVector computes each party's utility for the proposal, in party
// order.
func utilityVector(parties []string, proposal *types.Document, prefs map[string]*types.AgentPreferences) []float64 {
	out := make([]float64, len(parties))
	for i, id := range parties {
		out[i] = CalculateUtility(prefs[id], proposal)
	}
	return out
}

// dominated reports whether another proposal is at least as good for every
// party and strictly better for one.
func dominated(id string, ids []string, vectors map[string][]float64) bool {
	mine := vectors[id]
	for _, other := range ids {
		if other == id {
			continue
		}
		theirs := vectors[other]
		atLeastAsGood := true
		strictlyBetter := false
		for i := range mine {
			if theirs[i] < mine[i] {
				atLeastAsGood = false
				break
			}
			if theirs[i] > mine[i] {
				strictlyBetter = true
			}
		}
		if atLeastAsGood && strictlyBetter {
			return true
		}
	}
	return false
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
