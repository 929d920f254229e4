// Package policy evaluates validation-gate criteria as rego rules over a
// health-sweep input document.
package policy

import (
	"context"
	"encoding/json"
	"fmt"

	"recoveryd/internal/domain"

	"github.com/open-policy-agent/opa/rego"
)

const criteriaQuery = "data.recoveryd.criteria"

// criteriaModule scores every known criterion against the module health
// input. Scores are 0-100; pass/fail is decided by the gate runner.
const criteriaModule = `package recoveryd

total := count(input.modules)

buildable := count([m | m := input.modules[_]; m.can_build])

last_ok := count([m | m := input.modules[_]; m.last_build_success])

deps_ok := count([m | m := input.modules[_]; m.dependencies_resolved])

stable := count([m | m := input.modules[_]; m.status != "critical"; m.status != "offline"])

progressed := count([m | m := input.modules[_]; m.score >= 70])

error_total := sum([m.error_count | m := input.modules[_]])

warning_total := sum([m.warning_count | m := input.modules[_]])

tests_passed := sum([m.tests_passed | m := input.modules[_]])

tests_total := sum([m.tests_total | m := input.modules[_]])

ratio(n) = s {
	s := round((100 * n) / total)
}

avg_score = s {
	total > 0
	s := round(sum([m.score | m := input.modules[_]]) / total)
}

criteria["modules-buildable"] = {"score": ratio(buildable)} { total > 0 }

criteria["last-build-success"] = {"score": ratio(last_ok)} { total > 0 }

criteria["dependencies-resolved"] = {"score": ratio(deps_ok)} { total > 0 }

criteria["no-critical-modules"] = {"score": ratio(stable)} { total > 0 }

criteria["health-threshold"] = {"score": avg_score} { total > 0 }

criteria["recovery-progress"] = {"score": ratio(progressed)} { total > 0 }

criteria["error-free"] = {"score": 100} { error_total == 0 }

criteria["error-free"] = {"score": 0} { error_total > 0 }

criteria["warning-budget"] = {"score": s} { s := max([0, 100 - (10 * warning_total)]) }

criteria["test-coverage"] = {"score": s} {
	tests_total > 0
	s := round((100 * tests_passed) / tests_total)
}

criteria["test-coverage"] = {"score": 0} { tests_total == 0 }
`

type Engine struct {
	query rego.PreparedEvalQuery
}

func NewEngine(ctx context.Context) (*Engine, error) {
	r := rego.New(
		rego.Query(criteriaQuery),
		rego.Module("criteria.rego", criteriaModule),
		rego.StrictBuiltinErrors(true),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare criteria policy: %w", err)
	}
	return &Engine{query: prepared}, nil
}

func (e *Engine) EvaluateCriterion(ctx context.Context, name string, modules []domain.ModuleHealthCheck) (domain.CriterionResult, error) {
	input := map[string]any{
		"criterion": name,
		"modules":   moduleDocs(modules),
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		if ctx.Err() != nil {
			return domain.CriterionResult{}, fmt.Errorf("criterion %s: %w", name, ctx.Err())
		}
		return domain.CriterionResult{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.CriterionResult{}, fmt.Errorf("empty criteria result")
	}
	scores, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return domain.CriterionResult{}, fmt.Errorf("unexpected criteria result shape")
	}
	raw, ok := scores[name]
	if !ok {
		return domain.CriterionResult{}, fmt.Errorf("unknown criterion %q", name)
	}
	score, err := decodeScore(raw)
	if err != nil {
		return domain.CriterionResult{}, fmt.Errorf("criterion %s: %w", name, err)
	}
	return domain.CriterionResult{Criterion: name, Score: score}, nil
}

func decodeScore(raw any) (int, error) {
	entry, ok := raw.(map[string]any)
	if !ok {
		return 0, fmt.Errorf("criterion result is not an object")
	}
	switch v := entry["score"].(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, err
		}
		return int(f), nil
	case float64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("criterion score has unexpected type %T", v)
	}
}

func moduleDocs(modules []domain.ModuleHealthCheck) []map[string]any {
	docs := make([]map[string]any, 0, len(modules))
	for _, m := range modules {
		docs = append(docs, map[string]any{
			"id":                    string(m.ModuleID),
			"score":                 m.Score,
			"status":                string(m.Status),
			"can_build":             m.BuildHealth.CanBuild,
			"last_build_success":    m.BuildHealth.LastBuildSuccess,
			"dependencies_resolved": m.BuildHealth.DependenciesResolved,
			"error_count":           len(m.Errors),
			"warning_count":         len(m.Warnings),
			"tests_passed":          m.Tests.Passed,
			"tests_total":           m.Tests.Total,
		})
	}
	return docs
}
