package negotiation

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/teamflow-ai/teamflow/types"
)

func TestProperty_ParetoNonDomination(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("the winning proposal is dominated by no submitted proposal", prop.ForAll(
		func(values []int, prefValues []int) bool {
			if len(values) < 2 || len(prefValues) < 2 {
				return true
			}
			n := len(values)
			if len(prefValues) < n {
				n = len(prefValues)
			}

			parties := make([]string, n)
			proposals := make(map[string]*types.Document, n)
			prefs := make(map[string]*types.AgentPreferences, n)
			for i := 0; i < n; i++ {
				id := fmt.Sprintf("p%d", i)
				parties[i] = id
				d := types.NewDocument()
				d.Set("amount", values[i])
				proposals[id] = d
				prefs[id] = &types.AgentPreferences{
					AgentID:     id,
					Preferences: map[string]any{"amount": prefValues[i]},
				}
			}

			result := resolveParetoOptimal(parties, proposals, prefs)
			if result == nil {
				t.Logf("no result for %d proposals", n)
				return false
			}
			winner := utilityVector(parties, result, prefs)

			// No submitted proposal may be at least as good for every
			// party and strictly better for one.
			for _, id := range parties {
				other := utilityVector(parties, proposals[id], prefs)
				atLeastAsGood := true
				strictlyBetter := false
				for i := range winner {
					if other[i] < winner[i] {
						atLeastAsGood = false
						break
					}
					if other[i] > winner[i] {
						strictlyBetter = true
					}
				}
				if atLeastAsGood && strictlyBetter {
					t.Logf("winner %s dominated by %s's proposal", result.Canonical(), id)
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 100)),
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.TestingRun(t)
}
