// Package history is the bounded, append-only build audit trail.
package history

import (
	"context"
	"sync"

	"recoveryd/internal/domain"
)

const DefaultBound = 100

// Memory keeps the most recent builds in a ring.
type Memory struct {
	mu      sync.Mutex
	bound   int
	counter int64
	results []domain.BuildResult
}

func NewMemory(bound int) *Memory {
	if bound <= 0 {
		bound = DefaultBound
	}
	return &Memory{bound: bound}
}

func (m *Memory) Append(_ context.Context, r domain.BuildResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	if len(m.results) > m.bound {
		m.results = m.results[len(m.results)-m.bound:]
	}
	return nil
}

// Recent returns up to limit results, newest first.
func (m *Memory) Recent(_ context.Context, limit int) ([]domain.BuildResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.results) {
		limit = len(m.results)
	}
	out := make([]domain.BuildResult, 0, limit)
	for i := len(m.results) - 1; i >= len(m.results)-limit; i-- {
		out = append(out, m.results[i])
	}
	return out, nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	m.results = nil
	m.mu.Unlock()
	return nil
}

func (m *Memory) NextBuildNumber(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return m.counter, nil
}
