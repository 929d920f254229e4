package domain

import "time"

type SessionSummary struct {
	SessionID    string        `json:"session_id"`
	Status       SessionStatus `json:"status"`
	CurrentPhase int           `json:"current_phase"`
	TotalPhases  int           `json:"total_phases"`
	Progress     float64       `json:"progress"`
}

// WorkspaceSnapshot is the read-only rollup over every registered module.
type WorkspaceSnapshot struct {
	Status         HealthStatus        `json:"status"`
	AverageScore   int                 `json:"average_score"`
	HealthyCount   int                 `json:"healthy_count"`
	DegradedCount  int                 `json:"degraded_count"`
	CriticalCount  int                 `json:"critical_count"`
	OfflineCount   int                 `json:"offline_count"`
	Modules        []ModuleHealthCheck `json:"modules"`
	ActiveSessions int                 `json:"active_sessions"`
	Sessions       []SessionSummary    `json:"sessions,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
}
