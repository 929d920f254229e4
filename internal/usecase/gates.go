package usecase

import (
	"context"
	"errors"
	"time"

	"recoveryd/internal/domain"
	"recoveryd/internal/registry"

	"github.com/sirupsen/logrus"
)

const (
	criterionPassScore  = 70
	gatePassThreshold   = 70
	strictPassThreshold = 90

	detailValidationTimeout = "VALIDATION_TIMEOUT"
	moduleReady             = "ready"
	moduleNotReady          = "MODULES_NOT_READY"
)

// GateRunner executes a named criterion bundle against one or more modules
// and produces a scored report.
type GateRunner struct {
	Registry       *registry.Registry
	Health         *HealthEvaluator
	Evaluator      CriterionEvaluator
	DefaultTimeout time.Duration
	Clock          func() time.Time
	Log            *logrus.Logger
}

func (g *GateRunner) now() time.Time {
	if g.Clock != nil {
		return g.Clock()
	}
	return time.Now()
}

func (g *GateRunner) timeout(opts domain.ValidationOptions) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	if g.DefaultTimeout > 0 {
		return g.DefaultTimeout
	}
	return 10 * time.Second
}

// Run evaluates every criterion of the gate independently. Criterion-level
// pass/fail is fixed at the 70-score line; strict only raises the aggregate
// threshold deciding the gate's boolean outcome.
func (g *GateRunner) Run(ctx context.Context, gateID string, opts domain.ValidationOptions) (*domain.GateResult, error) {
	gate, err := g.Registry.Gate(gateID)
	if err != nil {
		return nil, err
	}

	targets := opts.TargetModules
	if len(targets) == 0 {
		targets = g.Registry.IDs()
	}
	checks, err := g.Health.Sweep(ctx, targets)
	if err != nil {
		return nil, err
	}

	result := &domain.GateResult{
		GateID:      gate.ID,
		Strict:      opts.Strict,
		EvaluatedAt: g.now(),
	}

	if len(opts.TargetModules) > 0 {
		var unready []domain.ModuleID
		for _, check := range checks {
			mr := domain.ModuleGateResult{ModuleID: check.ModuleID, Health: check.Status}
			if check.BuildHealth.CanBuild {
				mr.Status = moduleReady
				mr.Score = check.Score
			} else {
				mr.Status = moduleNotReady
				unready = append(unready, check.ModuleID)
			}
			result.ModuleResults = append(result.ModuleResults, mr)
		}
		if len(unready) == len(checks) {
			return nil, &ModulesNotReadyError{GateID: gate.ID, Modules: unready}
		}
	}

	scored := 0
	sum := 0
	allPass := true
	for _, name := range gate.Criteria {
		cr := g.evaluate(ctx, name, checks, opts)
		result.Criteria = append(result.Criteria, cr)
		switch cr.Status {
		case domain.CriterionSkipped:
			// skipped criteria neither score nor fail the gate
		case domain.CriterionPassed:
			scored++
			sum += cr.Score
		default:
			scored++
			sum += cr.Score
			allPass = false
		}
	}
	if ctx.Err() != nil {
		return nil, domain.ErrValidationTimeout
	}

	if scored > 0 {
		result.Score = sum / scored
	}
	threshold := gatePassThreshold
	if opts.Strict {
		threshold = strictPassThreshold
	}
	switch {
	case scored == 0:
		// every criterion was explicitly skipped under relaxed options
		result.Status = "passed"
	case allPass && result.Score >= threshold:
		result.Status = "passed"
	default:
		result.Status = "failed"
	}
	if g.Log != nil {
		g.Log.WithFields(logrus.Fields{
			"gate":   gate.ID,
			"status": result.Status,
			"score":  result.Score,
		}).Debug("validation gate evaluated")
	}
	return result, nil
}

func (g *GateRunner) evaluate(ctx context.Context, name string, checks []domain.ModuleHealthCheck, opts domain.ValidationOptions) domain.CriterionResult {
	cctx, cancel := context.WithTimeout(ctx, g.timeout(opts))
	defer cancel()

	res, err := g.Evaluator.EvaluateCriterion(cctx, name, checks)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			status := domain.CriterionFailed
			if opts.SkipValidation {
				status = domain.CriterionSkipped
			}
			return domain.CriterionResult{
				Criterion: name,
				Status:    status,
				Detail:    detailValidationTimeout,
			}
		}
		return domain.CriterionResult{
			Criterion: name,
			Status:    domain.CriterionFailed,
			Detail:    err.Error(),
		}
	}

	res.Criterion = name
	if res.Score >= criterionPassScore {
		res.Status = domain.CriterionPassed
	} else {
		res.Status = domain.CriterionFailed
	}
	return res
}
