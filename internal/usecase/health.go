package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"recoveryd/internal/domain"
	"recoveryd/internal/registry"
)

// HealthEvaluator reduces raw probe signals into a composite score and
// status bucket. A probe failure is folded into a synthetic offline result
// so one broken module never aborts a batch sweep.
type HealthEvaluator struct {
	Registry *registry.Registry
	Probe    domain.HealthProbe
	Clock    func() time.Time
}

func (e *HealthEvaluator) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

// Check evaluates one registered module. Unknown ids fail with
// domain.ErrModuleNotFound.
func (e *HealthEvaluator) Check(ctx context.Context, id domain.ModuleID) (domain.ModuleHealthCheck, error) {
	if _, err := e.Registry.Get(id); err != nil {
		return domain.ModuleHealthCheck{}, err
	}

	report, err := e.Probe.Probe(ctx, id)
	if err != nil {
		return domain.ModuleHealthCheck{
			ModuleID:  id,
			Status:    domain.HealthOffline,
			Score:     0,
			Errors:    []string{fmt.Sprintf("health probe failed: %v", err)},
			Warnings:  []string{},
			Timestamp: e.now(),
		}, nil
	}

	score := Score(report)
	return domain.ModuleHealthCheck{
		ModuleID: id,
		Status:   domain.StatusForScore(score),
		Score:    score,
		Errors:   copyStrings(report.Errors),
		Warnings: copyStrings(report.Warnings),
		BuildHealth: domain.BuildHealth{
			CanBuild:             report.DependenciesResolved && len(report.Errors) == 0,
			LastBuildSuccess:     report.LastBuildSuccess,
			DependenciesResolved: report.DependenciesResolved,
		},
		Tests:     domain.TestSummary{Passed: report.TestsPassed, Total: report.TestsTotal},
		Timestamp: e.now(),
	}, nil
}

// Sweep evaluates a module set in registry order. Per-module failures are
// contained in the individual results.
func (e *HealthEvaluator) Sweep(ctx context.Context, ids []domain.ModuleID) ([]domain.ModuleHealthCheck, error) {
	layers, err := e.Registry.Partition(ids)
	if err != nil {
		return nil, err
	}
	var checks []domain.ModuleHealthCheck
	for _, layer := range layers {
		for _, m := range layer {
			check, err := e.Check(ctx, m.ID)
			if err != nil {
				return nil, err
			}
			checks = append(checks, check)
		}
	}
	return checks, nil
}

// Score is the deterministic composite: build 30, tests 30 (pass ratio),
// dependencies 20, last build 10, error-free 10.
func Score(r domain.ProbeReport) int {
	score := 0
	if r.BuildOK {
		score += 30
	}
	if r.TestsTotal > 0 {
		score += int(math.Round(30 * float64(r.TestsPassed) / float64(r.TestsTotal)))
	}
	if r.DependenciesResolved {
		score += 20
	}
	if r.LastBuildSuccess {
		score += 10
	}
	if len(r.Errors) == 0 {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
