package domain

import "time"

type CriterionStatus string

const (
	CriterionPassed  CriterionStatus = "passed"
	CriterionFailed  CriterionStatus = "failed"
	CriterionSkipped CriterionStatus = "skipped"
)

type CriterionResult struct {
	Criterion string          `json:"criterion"`
	Status    CriterionStatus `json:"status"`
	Score     int             `json:"score"`
	Detail    string          `json:"detail,omitempty"`
}

type ModuleGateResult struct {
	ModuleID ModuleID     `json:"module_id"`
	Status   string       `json:"status"`
	Score    int          `json:"score"`
	Health   HealthStatus `json:"health"`
}

// GateResult scores one named criterion bundle. Status is "passed" only if
// every criterion passed or was explicitly skipped.
type GateResult struct {
	GateID        string             `json:"gate_id"`
	Status        string             `json:"status"`
	Score         int                `json:"score"`
	Strict        bool               `json:"strict"`
	Criteria      []CriterionResult  `json:"criteria"`
	ModuleResults []ModuleGateResult `json:"module_results,omitempty"`
	EvaluatedAt   time.Time          `json:"evaluated_at"`
}

type ValidationOptions struct {
	Strict         bool          `json:"strict"`
	Timeout        time.Duration `json:"-"`
	TargetModules  []ModuleID    `json:"target_modules,omitempty"`
	SkipValidation bool          `json:"skip_validation"`
}
