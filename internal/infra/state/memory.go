// Package state persists per-module recovery states, recovery sessions,
// and the phase-completion ledger. Any durable store with per-key
// read/write suffices; the memory implementations back tests and
// single-node runs, the Redis implementations back everything else.
package state

import (
	"context"
	"sort"
	"sync"

	"recoveryd/internal/domain"
)

// Memory holds module recovery states and the phase ledger.
type Memory struct {
	mu     sync.RWMutex
	states map[domain.ModuleID]domain.RecoveryState
	phases map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		states: make(map[domain.ModuleID]domain.RecoveryState),
		phases: make(map[string]bool),
	}
}

func (m *Memory) Get(_ context.Context, id domain.ModuleID) (*domain.RecoveryState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

func (m *Memory) Put(_ context.Context, st domain.RecoveryState) error {
	m.mu.Lock()
	m.states[st.ModuleID] = st
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, id domain.ModuleID) error {
	m.mu.Lock()
	delete(m.states, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context) ([]domain.RecoveryState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.RecoveryState, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out, nil
}

func (m *Memory) MarkCompleted(_ context.Context, phaseID string) error {
	m.mu.Lock()
	m.phases[phaseID] = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) Completed(_ context.Context, phaseID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phases[phaseID], nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	m.phases = make(map[string]bool)
	m.mu.Unlock()
	return nil
}

// MemorySessions holds recovery sessions.
type MemorySessions struct {
	mu       sync.RWMutex
	sessions map[string]domain.RecoverySession
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]domain.RecoverySession)}
}

func (m *MemorySessions) Create(_ context.Context, s domain.RecoverySession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.SessionID]; ok {
		return domain.ErrConflict
	}
	m.sessions[s.SessionID] = cloneSession(s)
	return nil
}

func (m *MemorySessions) Get(_ context.Context, id string) (*domain.RecoverySession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	cloned := cloneSession(s)
	return &cloned, nil
}

func (m *MemorySessions) Update(_ context.Context, s domain.RecoverySession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.SessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	m.sessions[s.SessionID] = cloneSession(s)
	return nil
}

func (m *MemorySessions) ListActive(_ context.Context) ([]domain.RecoverySession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.RecoverySession
	for _, s := range m.sessions {
		if !s.Status.Terminal() {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func cloneSession(s domain.RecoverySession) domain.RecoverySession {
	out := s
	out.TargetModules = append([]domain.ModuleID(nil), s.TargetModules...)
	out.Errors = append([]string(nil), s.Errors...)
	out.Warnings = append([]string(nil), s.Warnings...)
	out.PhaseProgress = make(map[string]float64, len(s.PhaseProgress))
	for k, v := range s.PhaseProgress {
		out.PhaseProgress[k] = v
	}
	out.ModuleStates = make(map[domain.ModuleID]domain.RecoveryState, len(s.ModuleStates))
	for k, v := range s.ModuleStates {
		out.ModuleStates[k] = v
	}
	return out
}
