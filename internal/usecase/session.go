package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"recoveryd/internal/domain"
	"recoveryd/internal/registry"

	"github.com/sirupsen/logrus"
)

// SessionOrchestrator drives the five-phase recovery state machine over a
// target module set. The workspace lock is acquired at initialize and held
// until the session reaches a terminal status, so at most one session is
// ever active.
type SessionOrchestrator struct {
	Registry  *registry.Registry
	Health    *HealthEvaluator
	Gates     GateService
	Builds    BuildService
	Workspace WorkspaceReader
	Sessions  SessionStore
	States    StateStore
	Lock      domain.WorkspaceLock
	Clock     func() time.Time
	Log       *logrus.Logger

	mu        sync.Mutex
	cancelled map[string]bool
	executing map[string]bool
}

// WorkspaceReader supplies the health baseline captured at session start.
type WorkspaceReader interface {
	Status(ctx context.Context) (*domain.WorkspaceSnapshot, error)
}

type ExecuteSessionOptions struct {
	DryRun bool
}

// SessionExecution is the execute result: the session snapshot, plus the
// planned actions and estimate when running dry.
type SessionExecution struct {
	Session           *domain.RecoverySession `json:"session"`
	DryRun            bool                    `json:"dry_run"`
	PlannedActions    []string                `json:"planned_actions,omitempty"`
	EstimatedDuration time.Duration           `json:"estimated_duration,omitempty"`
}

func (o *SessionOrchestrator) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

func sessionHolder(id string) string { return "session:" + id }

// Initialize registers a new session and takes the workspace lock. Two
// concurrent initializations yield exactly one success and one conflict.
func (o *SessionOrchestrator) Initialize(ctx context.Context, sessionID string, targets []domain.ModuleID) (*domain.RecoverySession, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidArgument)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: at least one target module is required", domain.ErrInvalidArgument)
	}
	for _, id := range targets {
		if _, err := o.Registry.Get(id); err != nil {
			return nil, fmt.Errorf("%w: unknown module %q", domain.ErrInvalidArgument, id)
		}
	}
	if existing, err := o.Sessions.Get(ctx, sessionID); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: session %q already exists", domain.ErrInvalidArgument, sessionID)
	}

	if err := o.Lock.Acquire(ctx, sessionHolder(sessionID)); err != nil {
		return nil, err
	}

	session := domain.RecoverySession{
		SessionID:     sessionID,
		TargetModules: append([]domain.ModuleID(nil), targets...),
		Status:        domain.SessionInitialized,
		TotalPhases:   registry.TotalPhases,
		PhaseProgress: make(map[string]float64),
		ModuleStates:  make(map[domain.ModuleID]domain.RecoveryState, len(targets)),
		StartTime:     o.now(),
	}
	for _, id := range targets {
		session.ModuleStates[id] = o.loadOrInitState(ctx, id)
	}

	if snapshot, err := o.Workspace.Status(ctx); err == nil {
		session.WorkspaceHealth = snapshot
	} else {
		session.Warnings = append(session.Warnings, fmt.Sprintf("workspace baseline unavailable: %v", err))
	}

	if err := o.Sessions.Create(ctx, session); err != nil {
		_ = o.Lock.Release(ctx, sessionHolder(sessionID))
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: session %q already exists", domain.ErrInvalidArgument, sessionID)
		}
		return nil, err
	}

	if o.Log != nil {
		o.Log.WithFields(logrus.Fields{"session": sessionID, "targets": len(targets)}).Info("recovery session initialized")
	}
	return &session, nil
}

// Execute advances the session through the five ordered phases. A phase
// fails the whole session only when its gates fail and no module made
// forward progress; partial progress continues with warnings. A session
// record has exactly one executor at a time; a concurrent Execute of the
// same session fails with domain.ErrConflict.
func (o *SessionOrchestrator) Execute(ctx context.Context, sessionID string, opts ExecuteSessionOptions) (*SessionExecution, error) {
	session, err := o.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, fmt.Errorf("%w: session %q is already %s", domain.ErrInvalidArgument, sessionID, session.Status)
	}

	if opts.DryRun {
		return o.planDryRun(session), nil
	}

	if !o.beginExecute(sessionID) {
		return nil, fmt.Errorf("%w: session %q is already executing", domain.ErrConflict, sessionID)
	}
	defer o.endExecute(sessionID)

	// Re-read under the guard; a racing executor may have just finished.
	session, err = o.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, fmt.Errorf("%w: session %q is already %s", domain.ErrInvalidArgument, sessionID, session.Status)
	}

	session.Status = domain.SessionRunning
	if err := o.Sessions.Update(ctx, *session); err != nil {
		return nil, err
	}

	for _, phase := range o.Registry.Phases() {
		if o.cancelRequested(sessionID) {
			o.finish(ctx, session, domain.SessionCancelled,
				fmt.Sprintf("session cancelled during phase %s", phase.ID))
			return &SessionExecution{Session: session}, nil
		}
		session.CurrentPhase = phase.Order

		failed := o.runPhase(ctx, session, phase)
		if err := o.Sessions.Update(ctx, *session); err != nil {
			o.finish(ctx, session, domain.SessionFailed, fmt.Sprintf("session persistence failed: %v", err))
			return &SessionExecution{Session: session}, nil
		}
		if failed {
			o.finish(ctx, session, domain.SessionFailed, "")
			return &SessionExecution{Session: session}, nil
		}
	}

	o.finish(ctx, session, domain.SessionCompleted, "")
	return &SessionExecution{Session: session}, nil
}

// runPhase executes one phase and reports whether it fails the session.
func (o *SessionOrchestrator) runPhase(ctx context.Context, session *domain.RecoverySession, phase registry.Phase) bool {
	targets := session.TargetModules

	for _, id := range targets {
		st := session.ModuleStates[id]
		if st.Phase != domain.PhaseCompleted {
			st.Phase = domain.PhaseInProgress
		}
		session.ModuleStates[id] = st
	}

	if phase.RequiresBuild {
		report, err := o.Builds.Build(ctx, targets, domain.BuildOptions{Parallel: true})
		if err != nil {
			session.Warnings = append(session.Warnings, fmt.Sprintf("phase %s: build coordinator: %v", phase.ID, err))
		} else {
			for _, r := range report.Results {
				if !r.Success {
					session.Warnings = append(session.Warnings, fmt.Sprintf("phase %s: build of %s failed", phase.ID, r.ModuleID))
				}
			}
		}
	}

	checks, err := o.Health.Sweep(ctx, targets)
	if err != nil {
		session.Errors = append(session.Errors, fmt.Sprintf("phase %s: health sweep: %v", phase.ID, err))
		return true
	}

	gatesFailed := false
	for _, gateID := range phase.Gates {
		res, err := o.Gates.Run(ctx, gateID, domain.ValidationOptions{TargetModules: targets})
		if err != nil {
			gatesFailed = true
			session.Warnings = append(session.Warnings, fmt.Sprintf("phase %s: gate %s: %v", phase.ID, gateID, err))
			continue
		}
		if res.Status != "passed" {
			gatesFailed = true
			session.Warnings = append(session.Warnings, fmt.Sprintf("phase %s: gate %s failed with score %d", phase.ID, gateID, res.Score))
		}
	}

	progressed := 0
	completed := 0
	for _, check := range checks {
		st := session.ModuleStates[check.ModuleID]
		st.HealthStatus = check.Status
		st.HealthScore = check.Score
		st.UpdatedAt = o.now()
		switch {
		case check.Score >= phase.PassThreshold:
			if st.Phase != domain.PhaseCompleted {
				progressed++
			}
			st.Phase = domain.PhaseCompleted
			completed++
		case gatesFailed:
			st.Phase = domain.PhaseFailed
		}
		session.ModuleStates[check.ModuleID] = st
		o.persistState(ctx, session, st)
	}
	if len(targets) > 0 {
		session.PhaseProgress[phase.ID] = float64(completed) / float64(len(targets))
	}

	if o.Log != nil {
		o.Log.WithFields(logrus.Fields{
			"session":    session.SessionID,
			"phase":      phase.ID,
			"completed":  completed,
			"progressed": progressed,
			"gates_ok":   !gatesFailed,
		}).Info("recovery phase finished")
	}

	if gatesFailed && progressed == 0 {
		session.Errors = append(session.Errors, fmt.Sprintf("phase %s failed with no forward progress", phase.ID))
		return true
	}
	return false
}

func (o *SessionOrchestrator) planDryRun(session *domain.RecoverySession) *SessionExecution {
	var actions []string
	for _, phase := range o.Registry.Phases() {
		actions = append(actions, fmt.Sprintf("phase %s: health sweep over %d module(s)", phase.ID, len(session.TargetModules)))
		if phase.RequiresBuild {
			actions = append(actions, fmt.Sprintf("phase %s: layered parallel build", phase.ID))
		}
		for _, gateID := range phase.Gates {
			gate, err := o.Registry.Gate(gateID)
			if err != nil {
				continue
			}
			actions = append(actions, fmt.Sprintf("phase %s: gate %s (%d criteria)", phase.ID, gate.ID, len(gate.Criteria)))
		}
	}
	return &SessionExecution{
		Session:           session,
		DryRun:            true,
		PlannedActions:    actions,
		EstimatedDuration: o.Registry.RecoveryEstimate(session.TargetModules),
	}
}

// Cancel asks a running session to stop at the next phase boundary; an
// initialized session is cancelled immediately.
func (o *SessionOrchestrator) Cancel(ctx context.Context, sessionID string) (*domain.RecoverySession, error) {
	session, err := o.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case domain.SessionRunning:
		o.mu.Lock()
		if o.cancelled == nil {
			o.cancelled = make(map[string]bool)
		}
		o.cancelled[sessionID] = true
		o.mu.Unlock()
		return session, nil
	case domain.SessionInitialized:
		o.finish(ctx, session, domain.SessionCancelled, "session cancelled before execution")
		return session, nil
	default:
		return nil, fmt.Errorf("%w: session %q is already %s", domain.ErrInvalidArgument, sessionID, session.Status)
	}
}

// Get returns the current session snapshot.
func (o *SessionOrchestrator) Get(ctx context.Context, sessionID string) (*domain.RecoverySession, error) {
	return o.Sessions.Get(ctx, sessionID)
}

func (o *SessionOrchestrator) cancelRequested(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled[sessionID]
}

func (o *SessionOrchestrator) beginExecute(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.executing[sessionID] {
		return false
	}
	if o.executing == nil {
		o.executing = make(map[string]bool)
	}
	o.executing[sessionID] = true
	return true
}

func (o *SessionOrchestrator) endExecute(sessionID string) {
	o.mu.Lock()
	delete(o.executing, sessionID)
	o.mu.Unlock()
}

// finish fixes the terminal status and releases the workspace lock on
// every exit path.
func (o *SessionOrchestrator) finish(ctx context.Context, session *domain.RecoverySession, status domain.SessionStatus, warning string) {
	session.Status = status
	end := o.now()
	session.EndTime = &end
	if warning != "" {
		session.Warnings = append(session.Warnings, warning)
	}
	if err := o.Sessions.Update(ctx, *session); err != nil && o.Log != nil {
		o.Log.WithError(err).Error("failed to persist terminal session state")
	}
	o.mu.Lock()
	delete(o.cancelled, session.SessionID)
	o.mu.Unlock()
	if err := o.Lock.Release(ctx, sessionHolder(session.SessionID)); err != nil && o.Log != nil {
		o.Log.WithError(err).Error("failed to release workspace lock")
	}
	if o.Log != nil {
		o.Log.WithFields(logrus.Fields{"session": session.SessionID, "status": status}).Info("recovery session finished")
	}
}

func (o *SessionOrchestrator) loadOrInitState(ctx context.Context, id domain.ModuleID) domain.RecoveryState {
	if st, err := o.States.Get(ctx, id); err == nil && st != nil {
		return *st
	}
	return domain.RecoveryState{ModuleID: id, Phase: domain.PhaseNotStarted, UpdatedAt: o.now()}
}

func (o *SessionOrchestrator) persistState(ctx context.Context, session *domain.RecoverySession, st domain.RecoveryState) {
	if err := o.States.Put(ctx, st); err != nil {
		session.Warnings = append(session.Warnings, fmt.Sprintf("state persistence for %s failed: %v", st.ModuleID, err))
	}
}
