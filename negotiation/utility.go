package negotiation

import (
	"math"
	"reflect"

	"github.com/teamflow-ai/teamflow/types"
)

// CalculateUtility scores a proposal against one agent's preferences,
// in [0,1]. Each proposal key present in the preference map contributes:
// numeric values score 1 - min(1, |value-preference| / max(1, |preference|)),
// exact matches on anything else score 1. The sum is divided by the size of
// the whole preference map, so a proposal that ignores most of an agent's
// preferences scores low even when the keys it does touch match perfectly.
func CalculateUtility(prefs *types.AgentPreferences, proposal *types.Document) float64 {
	if prefs == nil || len(prefs.Preferences) == 0 || proposal == nil {
		return 0
	}
	sum := 0.0
	for _, key := range proposal.Keys() {
		want, ok := prefs.Preferences[key]
		if !ok {
			continue
		}
		got, _ := proposal.Get(key)
		if gn, gok := types.AsNumber(got); gok {
			if wn, wok := types.AsNumber(want); wok {
				dist := math.Abs(gn-wn) / math.Max(1, math.Abs(wn))
				sum += 1 - math.Min(1, dist)
				continue
			}
		}
		if equalValues(got, want) {
			sum += 1
		}
	}
	return sum / float64(len(prefs.Preferences))
}

// CalculateFairness measures how evenly a successful agreement treats the
// parties: the average of the min/max utility ratio and Jain's fairness
// index (sum u)^2 / (n * sum u^2), both in [0,1].
func calculateFairness(utilities []float64) float64 {
	if len(utilities) == 0 {
		return 0
	}
	minU, maxU := utilities[0], utilities[0]
	sum, sumSq := 0.0, 0.0
	for _, u := range utilities {
		if u < minU {
			minU = u
		}
		if u > maxU {
			maxU = u
		}
		sum += u
		sumSq += u * u
	}

	ratio := 1.0
	if maxU > 0 {
		ratio = minU / maxU
	}
	jain := 1.0
	if sumSq > 0 {
		n := float64(len(utilities))
		jain = (sum * sum) / (n * sumSq)
	}
	return (ratio + jain) / 2
}

// equalValues compares a proposal value with a preference value, folding
// numeric representations together so int 5 matches float64 5.
func equalValues(a, b any) bool {
	an, aok := types.AsNumber(a)
	bn, bok := types.AsNumber(b)
	if aok && bok {
		return an == bn
	}
	if aok != bok {
		return false
	}
	return reflect.DeepEqual(a, b)
}
