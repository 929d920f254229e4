package registry

import "recoveryd/internal/domain"

// Phase is one step of the fixed five-step recovery sequence.
type Phase struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Order         int      `json:"order"`
	Category      string   `json:"category"`
	Description   string   `json:"description"`
	Gates         []string `json:"gates"`
	DependsOn     []string `json:"depends_on"`
	RequiresBuild bool     `json:"requires_build"`
	// PassThreshold is the health score a module must reach for its
	// recovery state to complete within this phase.
	PassThreshold int `json:"pass_threshold"`
}

var phases = []Phase{
	{
		ID:            "emergency-stabilization",
		Name:          "Emergency Stabilization",
		Order:         1,
		Category:      "stabilization",
		Description:   "Stop the bleeding: verify dependency integrity and bring offline modules back to a probed state.",
		Gates:         []string{"dependency-integrity"},
		PassThreshold: 30,
	},
	{
		ID:            "dependency-restoration",
		Name:          "Dependency Restoration",
		Order:         2,
		Category:      "infrastructure",
		Description:   "Restore layer-1 infrastructure and re-resolve cross-module dependencies.",
		Gates:         []string{"dependency-integrity", "build-success"},
		DependsOn:     []string{"emergency-stabilization"},
		RequiresBuild: true,
		PassThreshold: 50,
	},
	{
		ID:            "module-rebuild",
		Name:          "Module Rebuild",
		Order:         3,
		Category:      "build",
		Description:   "Rebuild target modules layer by layer, parallel within a layer.",
		Gates:         []string{"build-success"},
		DependsOn:     []string{"dependency-restoration"},
		RequiresBuild: true,
		PassThreshold: 70,
	},
	{
		ID:            "integration-validation",
		Name:          "Integration Validation",
		Order:         4,
		Category:      "validation",
		Description:   "Validate cross-module integration and run the regression suite.",
		Gates:         []string{"integration-ready", "regression-suite"},
		DependsOn:     []string{"module-rebuild"},
		PassThreshold: 80,
	},
	{
		ID:            "final-verification",
		Name:          "Final Verification",
		Order:         5,
		Category:      "verification",
		Description:   "Confirm workspace-wide stability before declaring recovery complete.",
		Gates:         []string{"workspace-stable"},
		DependsOn:     []string{"integration-validation"},
		PassThreshold: 90,
	},
}

// TotalPhases is fixed by the recovery sequence.
const TotalPhases = 5

// Phases returns the catalog in execution order.
func (r *Registry) Phases() []Phase {
	out := make([]Phase, len(phases))
	copy(out, phases)
	return out
}

func (r *Registry) Phase(id string) (Phase, error) {
	for _, p := range phases {
		if p.ID == id {
			return p, nil
		}
	}
	return Phase{}, domain.ErrPhaseNotFound
}

// PhaseCategories returns the distinct categories in phase order.
func (r *Registry) PhaseCategories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range phases {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out
}
