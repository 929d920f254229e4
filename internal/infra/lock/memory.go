// Package lock provides the workspace-wide mutual-exclusion token. The
// memory implementation serves single-process deployments and tests; the
// Redis implementation survives restarts and covers multi-replica setups.
package lock

import (
	"context"
	"sync"

	"recoveryd/internal/domain"
)

type memoryLock struct {
	mu     sync.Mutex
	holder string
}

func NewMemoryLock() domain.WorkspaceLock {
	return &memoryLock{}
}

func (l *memoryLock) Acquire(_ context.Context, holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.holder {
	case "":
		l.holder = holder
		return nil
	case holder:
		// re-acquisition by the current holder is a no-op
		return nil
	default:
		return domain.ErrPhaseInProgress
	}
}

func (l *memoryLock) Release(_ context.Context, holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == holder {
		l.holder = ""
	}
	return nil
}
