package domain

import "time"

type RecoveryPhase string

const (
	PhaseNotStarted RecoveryPhase = "not_started"
	PhaseInProgress RecoveryPhase = "in_progress"
	PhaseCompleted  RecoveryPhase = "completed"
	PhaseFailed     RecoveryPhase = "failed"
)

// ValidRecoveryPhase reports whether s is one of the four phase values.
func ValidRecoveryPhase(s string) bool {
	switch RecoveryPhase(s) {
	case PhaseNotStarted, PhaseInProgress, PhaseCompleted, PhaseFailed:
		return true
	}
	return false
}

// RecoveryState is the persisted per-module recovery record. It is created
// lazily on first touch and overwritten on every transition.
type RecoveryState struct {
	ModuleID     ModuleID      `json:"module_id"`
	Phase        RecoveryPhase `json:"phase"`
	HealthStatus HealthStatus  `json:"health_status"`
	HealthScore  int           `json:"health_score"`
	Notes        string        `json:"notes,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type SessionStatus string

const (
	SessionInitialized SessionStatus = "initialized"
	SessionRunning     SessionStatus = "running"
	SessionCompleted   SessionStatus = "completed"
	SessionFailed      SessionStatus = "failed"
	SessionCancelled   SessionStatus = "cancelled"
)

// Terminal reports whether a session in this status is immutable.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionCancelled
}

// RecoverySession is the only mutable shared record; it has a single writer
// at a time, enforced by the workspace lock.
type RecoverySession struct {
	SessionID       string                     `json:"session_id"`
	TargetModules   []ModuleID                 `json:"target_modules"`
	Status          SessionStatus              `json:"status"`
	CurrentPhase    int                        `json:"current_phase"`
	TotalPhases     int                        `json:"total_phases"`
	PhaseProgress   map[string]float64         `json:"phase_progress"`
	ModuleStates    map[ModuleID]RecoveryState `json:"module_states"`
	Errors          []string                   `json:"errors"`
	Warnings        []string                   `json:"warnings"`
	WorkspaceHealth *WorkspaceSnapshot         `json:"workspace_health,omitempty"`
	StartTime       time.Time                  `json:"start_time"`
	EndTime         *time.Time                 `json:"end_time,omitempty"`
}
