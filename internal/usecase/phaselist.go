package usecase

import (
	"context"
	"fmt"

	"recoveryd/internal/domain"
	"recoveryd/internal/registry"
)

type PhaseFilter struct {
	Status   string
	Category string
	Page     int
	PageSize int
}

// PhaseView is one catalog phase plus its workspace completion status and
// resolved gate metadata.
type PhaseView struct {
	registry.Phase
	Status      string          `json:"status"`
	GateCatalog []registry.Gate `json:"gate_catalog"`
}

type PhaseList struct {
	Phases   []PhaseView `json:"phases"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

const (
	phaseStatusPending   = "pending"
	phaseStatusCompleted = "completed"
)

// List returns catalog phases in execution order, filtered and paginated.
func (p *PhaseExecutor) List(ctx context.Context, f PhaseFilter) (*PhaseList, error) {
	if f.Status != "" && f.Status != phaseStatusPending && f.Status != phaseStatusCompleted {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatusFilter, f.Status)
	}
	if f.Page < 0 || f.PageSize < 0 || f.PageSize > 100 {
		return nil, fmt.Errorf("%w: page=%d page_size=%d", domain.ErrInvalidPagination, f.Page, f.PageSize)
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PageSize == 0 {
		f.PageSize = 20
	}

	var views []PhaseView
	for _, phase := range p.Registry.Phases() {
		done, err := p.Ledger.Completed(ctx, phase.ID)
		if err != nil {
			return nil, err
		}
		status := phaseStatusPending
		if done {
			status = phaseStatusCompleted
		}
		if f.Status != "" && f.Status != status {
			continue
		}
		if f.Category != "" && f.Category != phase.Category {
			continue
		}
		view := PhaseView{Phase: phase, Status: status}
		for _, gateID := range phase.Gates {
			if gate, err := p.Registry.Gate(gateID); err == nil {
				view.GateCatalog = append(view.GateCatalog, gate)
			}
		}
		views = append(views, view)
	}

	total := len(views)
	start := (f.Page - 1) * f.PageSize
	if start > total {
		start = total
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return &PhaseList{
		Phases:   views[start:end],
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
	}, nil
}
