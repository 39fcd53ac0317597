package coordinator

import (
	"fmt"

	"github.com/google/uuid"
)

// AnalyzeProblem inspects a problem spec and reports whether it needs a
// collaborative approach, which capabilities it requires, and how it should
// be decomposed. Collaborativeness is a majority vote over five indicators:
// more than 2 constraints, more than 3 requirements, medium or high
// complexity, more than one domain, and an estimate above 60 minutes.
func AnalyzeProblem(spec *ProblemSpec) *Analysis {
	indicators := 0
	if len(spec.Constraints) > 2 {
		indicators++
	}
	if len(spec.Requirements) > 3 {
		indicators++
	}
	if spec.Complexity == "medium" || spec.Complexity == "high" {
		indicators++
	}
	if len(spec.Domains) > 1 {
		indicators++
	}
	if spec.EstimatedMinutes > 60 {
		indicators++
	}

	required := make(map[string]float64, len(spec.RequiredCapabilities))
	for name, level := range spec.RequiredCapabilities {
		required[name] = level
	}
	for _, domain := range spec.Domains {
		if _, ok := required[domain]; !ok {
			required[domain] = defaultCapabilityLevel
		}
	}

	return &Analysis{
		IsCollaborative:       indicators >= 3,
		RequiredCapabilities:  required,
		DecompositionApproach: pickApproach(spec),
		ResourceRequirements: map[string]any{
			"estimated_minutes": spec.EstimatedMinutes,
			"domains":           len(spec.Domains),
			"constraints":       len(spec.Constraints),
		},
		RelevantKnowledge:    append([]string(nil), spec.Domains...),
		VerificationApproach: verificationFor(spec),
	}
}

// defaultCapabilityLevel is assumed for capabilities derived from domain
// names when the problem carries no explicit level.
const defaultCapabilityLevel = 0.5

func pickApproach(spec *ProblemSpec) string {
	switch {
	case len(spec.Domains) > 1:
		return ApproachDomain
	case len(spec.FeatureGroups) > 1:
		return ApproachPartition
	case spec.Complexity == "high":
		return ApproachHierarchical
	default:
		return ApproachPipeline
	}
}

func verificationFor(spec *ProblemSpec) string {
	switch spec.Kind {
	case "ml":
		return "holdout evaluation"
	case "optimization":
		return "constraint satisfaction check"
	default:
		return "peer review"
	}
}

// DecomposeProblem splits the problem into subtasks with a dependency
// graph, according to the analysis approach:
//
//   - domain: one subtask per domain, independent of each other
//   - partition: one subtask per feature group
//   - hierarchical: a 3-level tree (plan, branches, leaves)
//   - pipeline: a fixed sequential pipeline shaped by the problem kind
//
// Whenever more than one subtask results, an INTEGRATION subtask depending
// on all others is appended.
func DecomposeProblem(spec *ProblemSpec, analysis *Analysis) *Decomposition {
	var subtasks []*Subtask
	approach := analysis.DecompositionApproach

	switch approach {
	case ApproachDomain:
		for _, domain := range spec.Domains {
			subtasks = append(subtasks, &Subtask{
				ID:                   uuid.NewString(),
				Name:                 domain,
				Description:          fmt.Sprintf("solve the %s portion of %s", domain, spec.Title),
				Domain:               domain,
				RequiredCapabilities: map[string]float64{domain: levelFor(analysis, domain)},
			})
		}
	case ApproachPartition:
		for _, group := range spec.FeatureGroups {
			subtasks = append(subtasks, &Subtask{
				ID:                   uuid.NewString(),
				Name:                 "partition " + group,
				Description:          fmt.Sprintf("process the %s feature group", group),
				Domain:               primaryDomain(spec),
				RequiredCapabilities: analysis.RequiredCapabilities,
			})
		}
	case ApproachHierarchical:
		subtasks = hierarchicalSubtasks(spec, analysis)
	default:
		subtasks = pipelineSubtasks(spec, analysis)
	}

	if len(subtasks) > 1 {
		deps := make([]string, len(subtasks))
		for i, st := range subtasks {
			deps[i] = st.ID
		}
		subtasks = append(subtasks, &Subtask{
			ID:                   uuid.NewString(),
			Name:                 "integration",
			Description:          "fold all subtask outputs into the final solution",
			RequiredCapabilities: analysis.RequiredCapabilities,
			DependsOn:            deps,
			Integration:          true,
		})
	}

	return &Decomposition{Approach: approach, Subtasks: subtasks}
}

// hierarchicalSubtasks builds a 3-level tree: one planning root, two
// branches depending on it, and two leaves per branch.
func hierarchicalSubtasks(spec *ProblemSpec, analysis *Analysis) []*Subtask {
	root := &Subtask{
		ID:                   uuid.NewString(),
		Name:                 "plan",
		Description:          "break down " + spec.Title,
		RequiredCapabilities: analysis.RequiredCapabilities,
	}
	out := []*Subtask{root}
	for _, branchName := range []string{"core", "support"} {
		branch := &Subtask{
			ID:                   uuid.NewString(),
			Name:                 branchName,
			RequiredCapabilities: analysis.RequiredCapabilities,
			DependsOn:            []string{root.ID},
		}
		out = append(out, branch)
		for _, leafName := range []string{"build", "verify"} {
			out = append(out, &Subtask{
				ID:                   uuid.NewString(),
				Name:                 branchName + " " + leafName,
				RequiredCapabilities: analysis.RequiredCapabilities,
				DependsOn:            []string{branch.ID},
			})
		}
	}
	return out
}

// pipelineSubtasks builds the fixed sequential pipeline for the problem
// kind.
func pipelineSubtasks(spec *ProblemSpec, analysis *Analysis) []*Subtask {
	var stages []string
	switch spec.Kind {
	case "ml":
		stages = []string{"preprocessing", "feature engineering", "training", "evaluation"}
	case "optimization":
		stages = []string{"formulation", "constraints", "algorithm selection", "computation"}
	default:
		stages = []string{"analyze", "design", "implement", "test"}
	}

	out := make([]*Subtask, 0, len(stages))
	var prev *Subtask
	for _, stage := range stages {
		st := &Subtask{
			ID:                   uuid.NewString(),
			Name:                 stage,
			Description:          stage + " stage of " + spec.Title,
			Domain:               primaryDomain(spec),
			RequiredCapabilities: analysis.RequiredCapabilities,
		}
		if prev != nil {
			st.DependsOn = []string{prev.ID}
		}
		out = append(out, st)
		prev = st
	}
	return out
}

func primaryDomain(spec *ProblemSpec) string {
	if len(spec.Domains) > 0 {
		return spec.Domains[0]
	}
	return ""
}

func levelFor(analysis *Analysis, name string) float64 {
	if level, ok := analysis.RequiredCapabilities[name]; ok {
		return level
	}
	return defaultCapabilityLevel
}
