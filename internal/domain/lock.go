package domain

import "context"

// WorkspaceLock is the single mutual-exclusion token guarding every
// exclusive recovery operation. It is keyed on a workspace-wide constant,
// never per module, so two exclusive operations can never overlap even
// over disjoint module sets.
type WorkspaceLock interface {
	// Acquire takes the lock for holder or returns ErrPhaseInProgress.
	Acquire(ctx context.Context, holder string) error
	// Release frees the lock if holder still owns it.
	Release(ctx context.Context, holder string) error
}
