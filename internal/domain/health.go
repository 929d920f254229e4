package domain

import (
	"context"
	"time"
)

type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthCritical HealthStatus = "critical"
	HealthOffline  HealthStatus = "offline"
)

// ProbeReport is the raw signal set a health probe returns for one module.
type ProbeReport struct {
	BuildOK              bool
	LastBuildSuccess     bool
	DependenciesResolved bool
	TestsPassed          int
	TestsTotal           int
	Errors               []string
	Warnings             []string
}

// HealthProbe is the external collaborator that inspects one module.
// Implementations may be slow; callers pass a context.
type HealthProbe interface {
	Probe(ctx context.Context, id ModuleID) (ProbeReport, error)
}

type TestSummary struct {
	Passed int `json:"passed"`
	Total  int `json:"total"`
}

type BuildHealth struct {
	CanBuild             bool `json:"can_build"`
	LastBuildSuccess     bool `json:"last_build_success"`
	DependenciesResolved bool `json:"dependencies_resolved"`
}

// ModuleHealthCheck is freshly computed on every evaluation and never
// persisted.
type ModuleHealthCheck struct {
	ModuleID    ModuleID     `json:"module_id"`
	Status      HealthStatus `json:"status"`
	Score       int          `json:"score"`
	Errors      []string     `json:"errors"`
	Warnings    []string     `json:"warnings"`
	BuildHealth BuildHealth  `json:"build_health"`
	Tests       TestSummary  `json:"tests"`
	Timestamp   time.Time    `json:"timestamp"`
}

// StatusForScore buckets a 0-100 composite score.
func StatusForScore(score int) HealthStatus {
	switch {
	case score >= 90:
		return HealthHealthy
	case score >= 70:
		return HealthDegraded
	case score >= 30:
		return HealthCritical
	default:
		return HealthOffline
	}
}
