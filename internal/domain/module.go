package domain

// ModuleID identifies one of the fixed deployable units under recovery.
type ModuleID string

// Priority drives recovery-time estimates and build strategy selection.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Module is immutable catalog data. Layer N modules may depend on any
// layer < N module; modules sharing a layer never depend on each other.
type Module struct {
	ID       ModuleID `json:"id"`
	Layer    int      `json:"layer"`
	Priority Priority `json:"priority"`
}
