package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"recoveryd/internal/domain"
	"recoveryd/internal/registry"

	"github.com/sirupsen/logrus"
)

// WorkspaceService is the read-only rollup over every registered module
// plus the per-module recovery-state operations.
type WorkspaceService struct {
	Registry *registry.Registry
	Health   *HealthEvaluator
	Sessions SessionStore
	States   StateStore
	History  BuildHistory
	Ledger   PhaseLedger
	Clock    func() time.Time
	Log      *logrus.Logger
}

func (w *WorkspaceService) now() time.Time {
	if w.Clock != nil {
		return w.Clock()
	}
	return time.Now()
}

// Status sweeps every registered module, buckets the results, and derives
// the overall tier from average score and healthy percentage combined.
func (w *WorkspaceService) Status(ctx context.Context) (*domain.WorkspaceSnapshot, error) {
	checks, err := w.Health.Sweep(ctx, w.Registry.IDs())
	if err != nil {
		return nil, err
	}

	snapshot := &domain.WorkspaceSnapshot{
		Modules:   checks,
		Timestamp: w.now(),
	}
	sum := 0
	for _, c := range checks {
		sum += c.Score
		switch c.Status {
		case domain.HealthHealthy:
			snapshot.HealthyCount++
		case domain.HealthDegraded:
			snapshot.DegradedCount++
		case domain.HealthCritical:
			snapshot.CriticalCount++
		default:
			snapshot.OfflineCount++
		}
	}
	if len(checks) > 0 {
		snapshot.AverageScore = sum / len(checks)
	}
	snapshot.Status = workspaceTier(snapshot.AverageScore, snapshot.HealthyCount, len(checks))

	sessions, err := w.Sessions.ListActive(ctx)
	if err != nil {
		if w.Log != nil {
			w.Log.WithError(err).Warn("active session listing unavailable")
		}
	} else {
		snapshot.ActiveSessions = len(sessions)
		for _, s := range sessions {
			progress := 0.0
			if s.TotalPhases > 0 {
				progress = float64(s.CurrentPhase) / float64(s.TotalPhases)
			}
			snapshot.Sessions = append(snapshot.Sessions, domain.SessionSummary{
				SessionID:    s.SessionID,
				Status:       s.Status,
				CurrentPhase: s.CurrentPhase,
				TotalPhases:  s.TotalPhases,
				Progress:     progress,
			})
		}
		sort.Slice(snapshot.Sessions, func(i, j int) bool {
			return snapshot.Sessions[i].SessionID < snapshot.Sessions[j].SessionID
		})
	}
	return snapshot, nil
}

// workspaceTier combines two thresholds: both the average score and the
// healthy-module percentage must clear a tier's cutoff.
func workspaceTier(avg, healthy, total int) domain.HealthStatus {
	if total == 0 {
		return domain.HealthOffline
	}
	healthyPct := 100 * healthy / total
	switch {
	case avg >= 90 && healthyPct >= 80:
		return domain.HealthHealthy
	case avg >= 70 && healthyPct >= 50:
		return domain.HealthDegraded
	case avg >= 30 || healthyPct >= 25:
		return domain.HealthCritical
	default:
		return domain.HealthOffline
	}
}

// GetModules sweeps every module and pairs the checks with the workspace
// summary, in registry order.
func (w *WorkspaceService) GetModules(ctx context.Context) ([]domain.ModuleHealthCheck, *domain.WorkspaceSnapshot, error) {
	snapshot, err := w.Status(ctx)
	if err != nil {
		return nil, nil, err
	}
	return snapshot.Modules, snapshot, nil
}

var updatableModuleFields = map[string]bool{
	"status": true,
	"notes":  true,
}

// UpdateModule patches a module's recovery state. Unknown fields, empty
// updates, and bad status values are rejected; repeating the same patch is
// idempotent.
func (w *WorkspaceService) UpdateModule(ctx context.Context, id domain.ModuleID, patch map[string]any) (*domain.RecoveryState, error) {
	if _, err := w.Registry.Get(id); err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return nil, domain.ErrEmptyUpdate
	}
	var unknown []string
	for k := range patch {
		if !updatableModuleFields[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &UnknownFieldsError{Fields: unknown}
	}

	state := domain.RecoveryState{ModuleID: id, Phase: domain.PhaseNotStarted}
	if existing, err := w.States.Get(ctx, id); err == nil && existing != nil {
		state = *existing
	}

	if raw, ok := patch["status"]; ok {
		s, ok := raw.(string)
		if !ok || !domain.ValidRecoveryPhase(s) {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidStatus, raw)
		}
		state.Phase = domain.RecoveryPhase(s)
	}
	if raw, ok := patch["notes"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: notes must be a string", domain.ErrInvalidArgument)
		}
		state.Notes = s
	}
	state.UpdatedAt = w.now()

	if err := w.States.Put(ctx, state); err != nil {
		return nil, err
	}
	return &state, nil
}

const (
	ResetRecoveryState = "recovery-state"
	ResetBuildHistory  = "build-history"
	ResetFull          = "full"
)

type ResetRequest struct {
	Modules   []domain.ModuleID
	ResetType string
	Confirm   bool
}

type ModuleResetOutcome struct {
	ModuleID domain.ModuleID `json:"module_id"`
	Reset    bool            `json:"reset"`
	Detail   string          `json:"detail,omitempty"`
}

type ResetReport struct {
	ResetType string               `json:"reset_type"`
	Outcomes  []ModuleResetOutcome `json:"outcomes"`
}

// ResetWorkspace clears recovery state and/or build history. Without the
// explicit confirmation flag it fails before touching anything.
func (w *WorkspaceService) ResetWorkspace(ctx context.Context, req ResetRequest) (*ResetReport, error) {
	if !req.Confirm {
		return nil, domain.ErrConfirmationRequired
	}
	switch req.ResetType {
	case ResetRecoveryState, ResetBuildHistory, ResetFull:
	default:
		return nil, fmt.Errorf("%w: unknown reset type %q", domain.ErrInvalidArgument, req.ResetType)
	}

	targets := req.Modules
	if len(targets) == 0 {
		targets = w.Registry.IDs()
	}
	for _, id := range targets {
		if _, err := w.Registry.Get(id); err != nil {
			return nil, err
		}
	}

	report := &ResetReport{ResetType: req.ResetType}
	if req.ResetType == ResetBuildHistory || req.ResetType == ResetFull {
		if err := w.History.Clear(ctx); err != nil {
			return nil, err
		}
	}
	if req.ResetType == ResetFull {
		if err := w.Ledger.Reset(ctx); err != nil {
			return nil, err
		}
	}
	for _, id := range targets {
		outcome := ModuleResetOutcome{ModuleID: id, Reset: true}
		if req.ResetType == ResetRecoveryState || req.ResetType == ResetFull {
			if err := w.States.Delete(ctx, id); err != nil {
				outcome.Reset = false
				outcome.Detail = err.Error()
			} else {
				outcome.Detail = "recovery state reset to not_started"
			}
		} else {
			outcome.Detail = "build history cleared"
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	if w.Log != nil {
		w.Log.WithFields(logrus.Fields{"type": req.ResetType, "modules": len(targets)}).Warn("workspace reset executed")
	}
	return report, nil
}
