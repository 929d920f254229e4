package registry

import "recoveryd/internal/domain"

// Gate is a named bundle of pass/fail criteria. Criterion names resolve to
// rego rules in the policy engine.
type Gate struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Criteria    []string `json:"criteria"`
}

var gates = []Gate{
	{
		ID:          "build-success",
		Name:        "Build Success",
		Description: "Every target module builds and its last build succeeded.",
		Criteria:    []string{"modules-buildable", "last-build-success"},
	},
	{
		ID:          "dependency-integrity",
		Name:        "Dependency Integrity",
		Description: "Cross-module dependencies resolve and nothing is critical.",
		Criteria:    []string{"dependencies-resolved", "no-critical-modules"},
	},
	{
		ID:          "health-baseline",
		Name:        "Health Baseline",
		Description: "Average health clears the baseline with no critical modules.",
		Criteria:    []string{"health-threshold", "no-critical-modules"},
	},
	{
		ID:          "integration-ready",
		Name:        "Integration Ready",
		Description: "Targets are buildable, healthy enough, and error free.",
		Criteria:    []string{"modules-buildable", "health-threshold", "error-free"},
	},
	{
		ID:          "regression-suite",
		Name:        "Regression Suite",
		Description: "Test pass ratio clears the coverage floor with no errors.",
		Criteria:    []string{"test-coverage", "error-free"},
	},
	{
		ID:          "workspace-stable",
		Name:        "Workspace Stable",
		Description: "Workspace-wide health, progress, and warning budget hold.",
		Criteria:    []string{"health-threshold", "recovery-progress", "warning-budget"},
	},
}

func (r *Registry) Gates() []Gate {
	out := make([]Gate, len(gates))
	copy(out, gates)
	return out
}

func (r *Registry) Gate(id string) (Gate, error) {
	for _, g := range gates {
		if g.ID == id {
			return g, nil
		}
	}
	return Gate{}, domain.ErrGateNotFound
}
