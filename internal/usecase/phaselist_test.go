package usecase

import (
	"context"
	"errors"
	"testing"

	"recoveryd/internal/domain"
)

func TestListPhasesDefaults(t *testing.T) {
	f := newExecutor()
	list, err := f.exec.List(context.Background(), PhaseFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Total != 5 || len(list.Phases) != 5 {
		t.Fatalf("expected the five catalog phases, got total=%d len=%d", list.Total, len(list.Phases))
	}
	if list.Page != 1 || list.PageSize != 20 {
		t.Fatalf("expected default pagination 1/20, got %d/%d", list.Page, list.PageSize)
	}
	for i, view := range list.Phases {
		if view.Order != i+1 {
			t.Fatalf("phases must come back in execution order, got %d at %d", view.Order, i)
		}
		if view.Status != "pending" {
			t.Fatalf("fresh workspace phases are pending, got %s", view.Status)
		}
		if len(view.GateCatalog) != len(view.Gates) {
			t.Fatalf("gate catalog must resolve every gate id")
		}
	}
}

func TestListPhasesStatusFilter(t *testing.T) {
	f := newExecutor()
	if err := f.ledger.MarkCompleted(context.Background(), "emergency-stabilization"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	list, err := f.exec.List(context.Background(), PhaseFilter{Status: "completed"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Total != 1 || list.Phases[0].ID != "emergency-stabilization" {
		t.Fatalf("expected the completed phase only, got %+v", list.Phases)
	}

	list, err = f.exec.List(context.Background(), PhaseFilter{Status: "pending"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Total != 4 {
		t.Fatalf("expected four pending phases, got %d", list.Total)
	}
}

func TestListPhasesCategoryFilter(t *testing.T) {
	f := newExecutor()
	list, err := f.exec.List(context.Background(), PhaseFilter{Category: "build"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Total != 1 || list.Phases[0].ID != "module-rebuild" {
		t.Fatalf("expected the build phase only, got %+v", list.Phases)
	}
}

func TestListPhasesPagination(t *testing.T) {
	f := newExecutor()
	list, err := f.exec.List(context.Background(), PhaseFilter{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Phases) != 2 || list.Phases[0].Order != 3 {
		t.Fatalf("expected page 2 to start at phase 3, got %+v", list.Phases)
	}
	if list.Total != 5 {
		t.Fatalf("total must count the filtered set, got %d", list.Total)
	}

	list, err = f.exec.List(context.Background(), PhaseFilter{Page: 9, PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Phases) != 0 {
		t.Fatalf("pages past the end are empty, got %d", len(list.Phases))
	}
}

func TestListPhasesInvalidFilters(t *testing.T) {
	f := newExecutor()
	if _, err := f.exec.List(context.Background(), PhaseFilter{Status: "done"}); !errors.Is(err, domain.ErrInvalidStatusFilter) {
		t.Fatalf("expected ErrInvalidStatusFilter, got %v", err)
	}
	if _, err := f.exec.List(context.Background(), PhaseFilter{Page: -1}); !errors.Is(err, domain.ErrInvalidPagination) {
		t.Fatalf("expected ErrInvalidPagination for negative page, got %v", err)
	}
	if _, err := f.exec.List(context.Background(), PhaseFilter{PageSize: 101}); !errors.Is(err, domain.ErrInvalidPagination) {
		t.Fatalf("expected ErrInvalidPagination for oversized page, got %v", err)
	}
}
