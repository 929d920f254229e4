// Package sim provides in-process default collaborators: a health probe
// and a module builder backed by a shared deterministic workspace model.
// Real deployments substitute probes and builders that talk to the actual
// build infrastructure; the simulator keeps the service fully operational
// without it.
package sim

import (
	"context"
	"sync"
	"time"

	"recoveryd/internal/domain"
	"recoveryd/internal/registry"
)

type moduleState struct {
	built  bool
	broken bool
}

// Simulator implements domain.HealthProbe and domain.ModuleBuilder.
type Simulator struct {
	Registry *registry.Registry
	Clock    func() time.Time

	mu    sync.Mutex
	state map[domain.ModuleID]*moduleState
}

func New(reg *registry.Registry) *Simulator {
	return &Simulator{
		Registry: reg,
		state:    make(map[domain.ModuleID]*moduleState),
	}
}

func (s *Simulator) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *Simulator) get(id domain.ModuleID) *moduleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state[id]
	if !ok {
		st = &moduleState{}
		s.state[id] = st
	}
	return st
}

// MarkBroken degrades a module until its next successful build. Used by
// operators (and tests) to exercise recovery flows.
func (s *Simulator) MarkBroken(id domain.ModuleID) {
	st := s.get(id)
	s.mu.Lock()
	st.broken = true
	st.built = false
	s.mu.Unlock()
}

// Probe reports a degraded-but-buildable profile until a module has been
// rebuilt, then a fully healthy one. Broken modules report failures.
func (s *Simulator) Probe(_ context.Context, id domain.ModuleID) (domain.ProbeReport, error) {
	if _, err := s.Registry.Get(id); err != nil {
		return domain.ProbeReport{}, err
	}
	st := s.get(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case st.broken:
		return domain.ProbeReport{
			BuildOK:              false,
			LastBuildSuccess:     false,
			DependenciesResolved: false,
			TestsPassed:          0,
			TestsTotal:           10,
			Errors:               []string{"module build is broken"},
		}, nil
	case st.built:
		return domain.ProbeReport{
			BuildOK:              true,
			LastBuildSuccess:     true,
			DependenciesResolved: true,
			TestsPassed:          10,
			TestsTotal:           10,
		}, nil
	default:
		return domain.ProbeReport{
			BuildOK:              true,
			LastBuildSuccess:     false,
			DependenciesResolved: true,
			TestsPassed:          8,
			TestsTotal:           10,
			Warnings:             []string{"stale build artifacts"},
		}, nil
	}
}

// Build runs the module's catalog strategy and marks it rebuilt. Durations
// come from the strategy table; the simulator never sleeps.
func (s *Simulator) Build(_ context.Context, id domain.ModuleID, opts domain.BuildOptions) (domain.BuildResult, error) {
	strategy, err := s.Registry.Strategy(id)
	if err != nil {
		return domain.BuildResult{}, err
	}
	start := s.now()
	st := s.get(id)

	s.mu.Lock()
	st.broken = false
	st.built = true
	s.mu.Unlock()

	result := domain.BuildResult{
		ModuleID:  id,
		Success:   true,
		StartTime: start,
		EndTime:   start.Add(strategy.BaseDuration),
		Duration:  strategy.BaseDuration,
		Artifacts: append([]string(nil), strategy.Artifacts...),
	}
	if opts.SkipTests {
		result.Warnings = append(result.Warnings, "tests skipped by request")
	}
	return result, nil
}
