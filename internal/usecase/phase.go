package usecase

import (
	"context"
	"fmt"
	"time"

	"recoveryd/internal/domain"
	"recoveryd/internal/registry"

	"github.com/sirupsen/logrus"
)

type PhaseExecutionOptions struct {
	Force             bool `json:"force"`
	SkipValidation    bool `json:"skip_validation"`
	DryRun            bool `json:"dry_run"`
	RollbackOnFailure bool `json:"rollback_on_failure"`
}

type TaskResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type ModuleImpact struct {
	ModuleID     domain.ModuleID     `json:"module_id"`
	StatusBefore domain.HealthStatus `json:"status_before"`
	StatusAfter  domain.HealthStatus `json:"status_after"`
	ScoreBefore  int                 `json:"score_before"`
	ScoreAfter   int                 `json:"score_after"`
}

type PhaseExecution struct {
	PhaseID           string              `json:"phase_id"`
	Status            string              `json:"status"`
	DryRun            bool                `json:"dry_run"`
	ValidationSkipped bool                `json:"validation_skipped"`
	Tasks             []TaskResult        `json:"tasks"`
	Validation        []domain.GateResult `json:"validation,omitempty"`
	ModuleImpact      []ModuleImpact      `json:"module_impact,omitempty"`
	PlannedActions    []string            `json:"planned_actions,omitempty"`
	EstimatedDuration time.Duration       `json:"estimated_duration,omitempty"`
	StartedAt         time.Time           `json:"started_at"`
	Duration          time.Duration       `json:"duration"`
}

// PhaseExecutor runs a single catalog phase across every registered module,
// outside of any session. It shares the workspace lock with the session
// orchestrator, so phases and sessions exclude each other.
type PhaseExecutor struct {
	Registry *registry.Registry
	Health   *HealthEvaluator
	Gates    GateService
	Builds   BuildService
	Ledger   PhaseLedger
	States   StateStore
	Lock     domain.WorkspaceLock
	Clock    func() time.Time
	Log      *logrus.Logger
}

func (p *PhaseExecutor) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}

func phaseHolder(id string) string { return "phase:" + id }

func (p *PhaseExecutor) Execute(ctx context.Context, phaseID string, opts PhaseExecutionOptions) (*PhaseExecution, error) {
	phase, err := p.Registry.Phase(phaseID)
	if err != nil {
		return nil, err
	}
	if opts.SkipValidation && opts.RollbackOnFailure {
		return nil, fmt.Errorf("%w: rollback_on_failure requires validation", domain.ErrInvalidArgument)
	}

	if !opts.Force {
		for _, dep := range phase.DependsOn {
			done, err := p.Ledger.Completed(ctx, dep)
			if err != nil {
				return nil, err
			}
			if !done {
				return nil, fmt.Errorf("%w: phase %q has not completed", domain.ErrDependenciesNotMet, dep)
			}
		}
	}

	if opts.DryRun {
		return p.planDryRun(phase, opts), nil
	}

	if err := p.Lock.Acquire(ctx, phaseHolder(phase.ID)); err != nil {
		return nil, err
	}
	defer func() {
		_ = p.Lock.Release(ctx, phaseHolder(phase.ID))
	}()

	exec := &PhaseExecution{
		PhaseID:           phase.ID,
		ValidationSkipped: opts.SkipValidation,
		StartedAt:         p.now(),
	}
	targets := p.Registry.IDs()

	before, err := p.Health.Sweep(ctx, targets)
	if err != nil {
		return nil, err
	}
	exec.Tasks = append(exec.Tasks, TaskResult{Name: "health-sweep", Status: "completed"})

	priorStates := p.snapshotStates(ctx, targets)
	for _, check := range before {
		st := priorStates[check.ModuleID]
		if st.Phase == domain.PhaseNotStarted || st.Phase == domain.PhaseFailed {
			st.Phase = domain.PhaseInProgress
		}
		st.HealthStatus = check.Status
		st.HealthScore = check.Score
		st.UpdatedAt = p.now()
		p.putState(ctx, st)
	}

	if phase.RequiresBuild {
		report, err := p.Builds.Build(ctx, targets, domain.BuildOptions{Parallel: true, Force: opts.Force})
		if err != nil {
			exec.Tasks = append(exec.Tasks, TaskResult{Name: "layered-build", Status: "failed", Detail: err.Error()})
		} else {
			status := "completed"
			if !report.Summary.Success {
				status = "partial"
			}
			exec.Tasks = append(exec.Tasks, TaskResult{
				Name:   "layered-build",
				Status: status,
				Detail: fmt.Sprintf("%d succeeded, %d failed", report.Summary.SuccessfulBuilds, report.Summary.FailedBuilds),
			})
		}
	}

	var failedGates []string
	if !opts.SkipValidation {
		for _, gateID := range phase.Gates {
			res, err := p.Gates.Run(ctx, gateID, domain.ValidationOptions{TargetModules: targets})
			if err != nil {
				failedGates = append(failedGates, gateID)
				exec.Tasks = append(exec.Tasks, TaskResult{Name: "gate:" + gateID, Status: "failed", Detail: err.Error()})
				continue
			}
			exec.Validation = append(exec.Validation, *res)
			if res.Status != "passed" {
				failedGates = append(failedGates, gateID)
			}
		}
	}

	after, err := p.Health.Sweep(ctx, targets)
	if err != nil {
		return nil, err
	}
	exec.ModuleImpact = moduleImpact(before, after)

	if len(failedGates) > 0 && !opts.Force {
		if opts.RollbackOnFailure {
			for _, st := range priorStates {
				p.putState(ctx, st)
			}
			exec.Tasks = append(exec.Tasks, TaskResult{Name: "rollback", Status: "completed", Detail: "module states restored"})
		} else {
			for _, check := range after {
				if check.Score < phase.PassThreshold {
					st := p.loadState(ctx, check.ModuleID)
					st.Phase = domain.PhaseFailed
					st.UpdatedAt = p.now()
					p.putState(ctx, st)
				}
			}
		}
		exec.Status = "failed"
		exec.Duration = p.now().Sub(exec.StartedAt)
		return exec, &ValidationFailedError{PhaseID: phase.ID, Gates: failedGates}
	}

	for _, check := range after {
		if check.Score >= phase.PassThreshold {
			st := p.loadState(ctx, check.ModuleID)
			st.Phase = domain.PhaseCompleted
			st.HealthStatus = check.Status
			st.HealthScore = check.Score
			st.UpdatedAt = p.now()
			p.putState(ctx, st)
		}
	}
	if err := p.Ledger.MarkCompleted(ctx, phase.ID); err != nil && p.Log != nil {
		p.Log.WithError(err).Warn("phase ledger update failed")
	}

	exec.Status = "completed"
	exec.Duration = p.now().Sub(exec.StartedAt)
	if p.Log != nil {
		p.Log.WithFields(logrus.Fields{"phase": phase.ID, "status": exec.Status}).Info("phase executed")
	}
	return exec, nil
}

func (p *PhaseExecutor) planDryRun(phase registry.Phase, opts PhaseExecutionOptions) *PhaseExecution {
	targets := p.Registry.IDs()
	actions := []string{fmt.Sprintf("health sweep over %d module(s)", len(targets))}
	if phase.RequiresBuild {
		for _, id := range targets {
			if s, err := p.Registry.Strategy(id); err == nil {
				actions = append(actions, fmt.Sprintf("build %s: %v", id, s.Steps))
			}
		}
	}
	if !opts.SkipValidation {
		for _, gateID := range phase.Gates {
			if gate, err := p.Registry.Gate(gateID); err == nil {
				actions = append(actions, fmt.Sprintf("gate %s (%d criteria)", gate.ID, len(gate.Criteria)))
			}
		}
	}
	return &PhaseExecution{
		PhaseID:           phase.ID,
		Status:            "planned",
		DryRun:            true,
		ValidationSkipped: opts.SkipValidation,
		PlannedActions:    actions,
		EstimatedDuration: p.Registry.RecoveryEstimate(targets),
		StartedAt:         p.now(),
	}
}

func (p *PhaseExecutor) snapshotStates(ctx context.Context, ids []domain.ModuleID) map[domain.ModuleID]domain.RecoveryState {
	out := make(map[domain.ModuleID]domain.RecoveryState, len(ids))
	for _, id := range ids {
		out[id] = p.loadState(ctx, id)
	}
	return out
}

func (p *PhaseExecutor) loadState(ctx context.Context, id domain.ModuleID) domain.RecoveryState {
	if st, err := p.States.Get(ctx, id); err == nil && st != nil {
		return *st
	}
	return domain.RecoveryState{ModuleID: id, Phase: domain.PhaseNotStarted}
}

func (p *PhaseExecutor) putState(ctx context.Context, st domain.RecoveryState) {
	if err := p.States.Put(ctx, st); err != nil && p.Log != nil {
		p.Log.WithError(err).WithField("module", st.ModuleID).Warn("state persistence failed")
	}
}

func moduleImpact(before, after []domain.ModuleHealthCheck) []ModuleImpact {
	byID := make(map[domain.ModuleID]domain.ModuleHealthCheck, len(before))
	for _, c := range before {
		byID[c.ModuleID] = c
	}
	out := make([]ModuleImpact, 0, len(after))
	for _, c := range after {
		prev := byID[c.ModuleID]
		out = append(out, ModuleImpact{
			ModuleID:     c.ModuleID,
			StatusBefore: prev.Status,
			StatusAfter:  c.Status,
			ScoreBefore:  prev.Score,
			ScoreAfter:   c.Score,
		})
	}
	return out
}
