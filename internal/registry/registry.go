// Package registry holds the static catalogs: the module table with its
// dependency-layer assignment, the five recovery phases, and the six
// validation gates. The catalogs are configuration data; orchestration
// logic never hardcodes their contents.
package registry

import (
	"time"

	"recoveryd/internal/domain"
)

// modules is the fixed catalog in registration order. Layer 1 is the
// infrastructure tier; higher layers may depend on any lower layer.
var modules = []domain.Module{
	{ID: "database", Layer: 1, Priority: domain.PriorityCritical},
	{ID: "auth", Layer: 1, Priority: domain.PriorityCritical},
	{ID: "storage", Layer: 1, Priority: domain.PriorityHigh},
	{ID: "core-api", Layer: 2, Priority: domain.PriorityCritical},
	{ID: "cv-parser", Layer: 2, Priority: domain.PriorityHigh},
	{ID: "notifications", Layer: 2, Priority: domain.PriorityMedium},
	{ID: "ai-analysis", Layer: 3, Priority: domain.PriorityHigh},
	{ID: "analytics", Layer: 3, Priority: domain.PriorityMedium},
	{ID: "qr-service", Layer: 3, Priority: domain.PriorityLow},
	{ID: "profile-web", Layer: 4, Priority: domain.PriorityHigh},
	{ID: "admin-portal", Layer: 4, Priority: domain.PriorityLow},
}

// baseRecoveryTime feeds dry-run duration estimates.
var baseRecoveryTime = map[domain.Priority]time.Duration{
	domain.PriorityCritical: 5 * time.Minute,
	domain.PriorityHigh:     3 * time.Minute,
	domain.PriorityMedium:   2 * time.Minute,
	domain.PriorityLow:      1 * time.Minute,
}

type Registry struct {
	ordered []domain.Module
	byID    map[domain.ModuleID]domain.Module
}

func New() *Registry {
	r := &Registry{
		ordered: modules,
		byID:    make(map[domain.ModuleID]domain.Module, len(modules)),
	}
	for _, m := range modules {
		r.byID[m.ID] = m
	}
	return r
}

func (r *Registry) Get(id domain.ModuleID) (domain.Module, error) {
	m, ok := r.byID[id]
	if !ok {
		return domain.Module{}, domain.ErrModuleNotFound
	}
	return m, nil
}

// Modules returns the catalog in registry order (layer, then registration).
func (r *Registry) Modules() []domain.Module {
	out := make([]domain.Module, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// IDs returns every module id in registry order.
func (r *Registry) IDs() []domain.ModuleID {
	out := make([]domain.ModuleID, 0, len(r.ordered))
	for _, m := range r.ordered {
		out = append(out, m.ID)
	}
	return out
}

// Partition splits ids into dependency layers, ascending, keeping only
// layers that intersect ids. Within a layer, registry order is preserved.
// Unknown ids fail with ErrModuleNotFound.
func (r *Registry) Partition(ids []domain.ModuleID) ([][]domain.Module, error) {
	want := make(map[domain.ModuleID]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.byID[id]; !ok {
			return nil, domain.ErrModuleNotFound
		}
		want[id] = true
	}
	var layers [][]domain.Module
	current := -1
	for _, m := range r.ordered {
		if !want[m.ID] {
			continue
		}
		if m.Layer != current {
			layers = append(layers, nil)
			current = m.Layer
		}
		layers[len(layers)-1] = append(layers[len(layers)-1], m)
	}
	return layers, nil
}

// RecoveryEstimate is the dry-run duration estimate for a module set.
func (r *Registry) RecoveryEstimate(ids []domain.ModuleID) time.Duration {
	var total time.Duration
	for _, id := range ids {
		if m, ok := r.byID[id]; ok {
			total += baseRecoveryTime[m.Priority]
		}
	}
	return total
}
