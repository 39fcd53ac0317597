package coordinator

// executionPlan is the topological layering of a decomposition: phases run
// sequentially, subtasks within a phase have no required relative order.
type executionPlan struct {
	phases [][]*Subtask

	// warnings records dependency cycles broken by force-scheduling.
	warnings []string
}

// buildExecutionPlan layers the dependency graph with Kahn's algorithm:
// every zero-in-degree subtask forms the next phase. When no subtask has
// zero in-degree but unscheduled subtasks remain, a cycle exists; it is
// broken by force-scheduling one arbitrary member, and a warning records
// the compromise.
func buildExecutionPlan(dec *Decomposition) *executionPlan {
	known := make(map[string]*Subtask, len(dec.Subtasks))
	for _, st := range dec.Subtasks {
		known[st.ID] = st
	}

	indegree := make(map[string]int, len(dec.Subtasks))
	dependents := make(map[string][]string, len(dec.Subtasks))
	for _, st := range dec.Subtasks {
		indegree[st.ID] = 0
	}
	for _, st := range dec.Subtasks {
		for _, dep := range st.DependsOn {
			if _, ok := known[dep]; !ok {
				continue
			}
			indegree[st.ID]++
			dependents[dep] = append(dependents[dep], st.ID)
		}
	}

	plan := &executionPlan{}
	scheduled := make(map[string]bool, len(dec.Subtasks))
	remaining := len(dec.Subtasks)

	for remaining > 0 {
		var phase []*Subtask
		for _, st := range dec.Subtasks {
			if !scheduled[st.ID] && indegree[st.ID] == 0 {
				phase = append(phase, st)
			}
		}

		if len(phase) == 0 {
			// Cycle: force-schedule the first unscheduled subtask.
			for _, st := range dec.Subtasks {
				if !scheduled[st.ID] {
					phase = append(phase, st)
					plan.warnings = append(plan.warnings,
						"dependency cycle broken by force-scheduling subtask "+st.Name)
					break
				}
			}
		}

		for _, st := range phase {
			scheduled[st.ID] = true
			remaining--
			for _, dependent := range dependents[st.ID] {
				if indegree[dependent] > 0 {
					indegree[dependent]--
				}
			}
		}
		plan.phases = append(plan.phases, phase)
	}

	return plan
}
