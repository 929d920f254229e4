package usecase

import (
	"context"
	"fmt"

	"recoveryd/internal/domain"
)

// SessionStore persists recovery sessions. Create fails with
// domain.ErrConflict when the id already exists.
type SessionStore interface {
	Create(ctx context.Context, s domain.RecoverySession) error
	Get(ctx context.Context, id string) (*domain.RecoverySession, error)
	Update(ctx context.Context, s domain.RecoverySession) error
	ListActive(ctx context.Context) ([]domain.RecoverySession, error)
}

// StateStore persists per-module recovery states. Get returns
// domain.ErrNotFound when the module has never been touched.
type StateStore interface {
	Get(ctx context.Context, id domain.ModuleID) (*domain.RecoveryState, error)
	Put(ctx context.Context, st domain.RecoveryState) error
	Delete(ctx context.Context, id domain.ModuleID) error
	List(ctx context.Context) ([]domain.RecoveryState, error)
}

// PhaseLedger records which recovery phases have completed for the
// workspace, backing ExecutePhase dependency checks.
type PhaseLedger interface {
	MarkCompleted(ctx context.Context, phaseID string) error
	Completed(ctx context.Context, phaseID string) (bool, error)
	Reset(ctx context.Context) error
}

// BuildHistory is the bounded, append-only build audit trail.
type BuildHistory interface {
	Append(ctx context.Context, r domain.BuildResult) error
	Recent(ctx context.Context, limit int) ([]domain.BuildResult, error)
	Clear(ctx context.Context) error
	// NextBuildNumber increments and returns the workspace build counter.
	NextBuildNumber(ctx context.Context) (int64, error)
}

// CriterionEvaluator scores one named gate criterion against a health
// sweep. The policy engine implements this; tests substitute fakes.
type CriterionEvaluator interface {
	EvaluateCriterion(ctx context.Context, name string, modules []domain.ModuleHealthCheck) (domain.CriterionResult, error)
}

// GateService is the gate-running surface the orchestrator and phase
// executor depend on.
type GateService interface {
	Run(ctx context.Context, gateID string, opts domain.ValidationOptions) (*domain.GateResult, error)
}

// BuildService is the build-coordination surface the orchestrator and
// phase executor depend on.
type BuildService interface {
	Build(ctx context.Context, ids []domain.ModuleID, opts domain.BuildOptions) (*domain.BuildReport, error)
}

// ModulesNotReadyError reports gate targets that are not yet buildable.
type ModulesNotReadyError struct {
	GateID  string
	Modules []domain.ModuleID
}

func (e *ModulesNotReadyError) Error() string {
	return fmt.Sprintf("gate %s: %d target module(s) not ready", e.GateID, len(e.Modules))
}

func (e *ModulesNotReadyError) Unwrap() error { return domain.ErrModulesNotReady }

// UnknownFieldsError names the rejected fields of a module update.
type UnknownFieldsError struct {
	Fields []string
}

func (e *UnknownFieldsError) Error() string {
	return fmt.Sprintf("unknown fields: %v", e.Fields)
}

func (e *UnknownFieldsError) Unwrap() error { return domain.ErrUnknownFields }

// ValidationFailedError names the gates that failed a phase execution.
type ValidationFailedError struct {
	PhaseID string
	Gates   []string
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("phase %s: validation failed for gates %v", e.PhaseID, e.Gates)
}

func (e *ValidationFailedError) Unwrap() error { return domain.ErrValidationFailed }
