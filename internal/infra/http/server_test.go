package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recoveryd/internal/config"
	"recoveryd/internal/domain"
	"recoveryd/internal/infra/history"
	"recoveryd/internal/infra/lock"
	"recoveryd/internal/infra/policy"
	"recoveryd/internal/infra/sim"
	"recoveryd/internal/infra/state"
	"recoveryd/internal/registry"
	"recoveryd/internal/usecase"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Server, *sim.Simulator) {
	t.Helper()

	reg := registry.New()
	simulator := sim.New(reg)
	engine, err := policy.NewEngine(context.Background())
	if err != nil {
		t.Fatalf("policy engine: %v", err)
	}

	workspaceLock := lock.NewMemoryLock()
	states := state.NewMemory()
	sessions := state.NewMemorySessions()
	buildHistory := history.NewMemory(history.DefaultBound)

	health := &usecase.HealthEvaluator{Registry: reg, Probe: simulator}
	gates := &usecase.GateRunner{Registry: reg, Health: health, Evaluator: engine, DefaultTimeout: 5 * time.Second}
	builds := &usecase.BuildCoordinator{Registry: reg, Health: health, Builder: simulator, History: buildHistory}
	workspace := &usecase.WorkspaceService{
		Registry: reg, Health: health,
		Sessions: sessions, States: states, History: buildHistory, Ledger: states,
	}
	phases := &usecase.PhaseExecutor{
		Registry: reg, Health: health, Gates: gates, Builds: builds,
		Ledger: states, States: states, Lock: workspaceLock,
	}
	orchestrator := &usecase.SessionOrchestrator{
		Registry: reg, Health: health, Gates: gates, Builds: builds,
		Workspace: workspace, Sessions: sessions, States: states, Lock: workspaceLock,
	}

	srv := NewServerWithDeps(config.Config{HTTPAddr: ":0"}, ServerDeps{
		Registry:  reg,
		Workspace: workspace,
		Builds:    builds,
		Gates:     gates,
		Phases:    phases,
		Sessions:  orchestrator,
		Tracker:   &usecase.Tracker{},
	})
	return srv, simulator
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) errorResponse {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d (%s)", status, w.Code, w.Body.String())
	}
	var er errorResponse
	decodeBody(t, w, &er)
	if er.Code != code {
		t.Fatalf("expected code %s, got %s", code, er.Code)
	}
	return er
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestNoRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/v1/nope", nil)
	assertErrorCode(t, w, http.StatusNotFound, "NOT_FOUND")
}

func TestGetModules(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/v1/modules", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var resp struct {
		Modules   []map[string]any `json:"modules"`
		Workspace map[string]any   `json:"workspace"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Modules) != 11 {
		t.Fatalf("expected 11 modules, got %d", len(resp.Modules))
	}
	if resp.Workspace["status"] == "" {
		t.Fatalf("expected workspace summary, got %v", resp.Workspace)
	}
}

func TestUpdateModule(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPatch, "/v1/modules/database", map[string]any{
		"status": "in_progress",
		"notes":  "manual triage",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var st map[string]any
	decodeBody(t, w, &st)
	if st["phase"] != "in_progress" || st["notes"] != "manual triage" {
		t.Fatalf("unexpected state: %v", st)
	}

	w = doJSON(t, srv, http.MethodPatch, "/v1/modules/bogus", map[string]any{"notes": "x"})
	assertErrorCode(t, w, http.StatusNotFound, "MODULE_NOT_FOUND")

	w = doJSON(t, srv, http.MethodPatch, "/v1/modules/database", map[string]any{})
	assertErrorCode(t, w, http.StatusBadRequest, "EMPTY_UPDATE")

	w = doJSON(t, srv, http.MethodPatch, "/v1/modules/database", map[string]any{"health_score": 100})
	er := assertErrorCode(t, w, http.StatusBadRequest, "UNKNOWN_FIELDS")
	if er.Details["fields"] == nil {
		t.Fatalf("expected rejected fields in details, got %v", er.Details)
	}

	w = doJSON(t, srv, http.MethodPatch, "/v1/modules/database", map[string]any{"status": "exploded"})
	assertErrorCode(t, w, http.StatusBadRequest, "INVALID_STATUS")
}

func TestBuildModuleSync(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodPost, "/v1/modules/database/build", map[string]any{"force": true})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var res map[string]any
	decodeBody(t, w, &res)
	if res["success"] != true {
		t.Fatalf("expected successful build, got %v", res)
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/modules/bogus/build", nil)
	assertErrorCode(t, w, http.StatusNotFound, "MODULE_NOT_FOUND")
}

func TestBuildModuleAsync(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodPost, "/v1/modules/database/build", map[string]any{"async": true})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%s)", w.Code, w.Body.String())
	}
	var accepted trackingResponse
	decodeBody(t, w, &accepted)
	if accepted.ID == "" || accepted.Tracking == "" {
		t.Fatalf("expected tracking info, got %+v", accepted)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		w = doJSON(t, srv, http.MethodGet, accepted.Tracking, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
		}
		var job map[string]any
		decodeBody(t, w, &job)
		if job["status"] != "running" {
			if job["status"] != "completed" {
				t.Fatalf("expected completed job, got %v", job)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("async build did not finish in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/builds/unknown", nil)
	assertErrorCode(t, w, http.StatusNotFound, "BUILD_NOT_FOUND")
}

func TestListPhases(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/v1/phases", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var list struct {
		Phases []map[string]any `json:"phases"`
		Total  int              `json:"total"`
	}
	decodeBody(t, w, &list)
	if list.Total != 5 || len(list.Phases) != 5 {
		t.Fatalf("expected five phases, got %+v", list)
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/phases?page=abc", nil)
	assertErrorCode(t, w, http.StatusBadRequest, "INVALID_PAGINATION")

	w = doJSON(t, srv, http.MethodGet, "/v1/phases?status=done", nil)
	assertErrorCode(t, w, http.StatusBadRequest, "INVALID_STATUS_FILTER")
}

func TestExecutePhase(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/v1/phases/dependency-restoration/execute", nil)
	assertErrorCode(t, w, http.StatusPreconditionFailed, "DEPENDENCIES_NOT_MET")

	w = doJSON(t, srv, http.MethodPost, "/v1/phases/emergency-stabilization/execute", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var exec map[string]any
	decodeBody(t, w, &exec)
	if exec["status"] != "completed" {
		t.Fatalf("expected completed execution, got %v", exec)
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/phases/bogus/execute", nil)
	assertErrorCode(t, w, http.StatusNotFound, "PHASE_NOT_FOUND")
}

func TestExecutePhaseValidationFailure(t *testing.T) {
	srv, simulator := newTestServer(t)
	// Enough breakage to drag the dependency-integrity criteria below the
	// pass line across the 11-module catalog.
	for _, id := range []string{"database", "auth", "storage", "core-api", "cv-parser"} {
		simulator.MarkBroken(domain.ModuleID(id))
	}

	w := doJSON(t, srv, http.MethodPost, "/v1/phases/emergency-stabilization/execute", nil)
	er := assertErrorCode(t, w, http.StatusPreconditionFailed, "VALIDATION_FAILED")
	if er.Details["failed_gates"] == nil {
		t.Fatalf("expected failed gates in details, got %v", er.Details)
	}
}

func TestExecutePhaseAsync(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodPost, "/v1/phases/emergency-stabilization/execute", map[string]any{"async": true})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%s)", w.Code, w.Body.String())
	}
	var accepted trackingResponse
	decodeBody(t, w, &accepted)

	deadline := time.Now().Add(2 * time.Second)
	for {
		w = doJSON(t, srv, http.MethodGet, accepted.Tracking, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
		}
		var job map[string]any
		decodeBody(t, w, &job)
		if job["status"] != "running" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("async phase did not finish in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunGate(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodPost, "/v1/gates/dependency-integrity/run", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var res map[string]any
	decodeBody(t, w, &res)
	if res["status"] != "passed" {
		t.Fatalf("expected passed gate on a fresh workspace, got %v", res)
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/gates/bogus/run", nil)
	assertErrorCode(t, w, http.StatusNotFound, "GATE_NOT_FOUND")
}

func TestRunGateAllTargetsUnready(t *testing.T) {
	srv, simulator := newTestServer(t)
	simulator.MarkBroken("database")
	simulator.MarkBroken("auth")

	w := doJSON(t, srv, http.MethodPost, "/v1/gates/build-success/run", map[string]any{
		"target_modules": []string{"database", "auth"},
	})
	er := assertErrorCode(t, w, http.StatusPreconditionFailed, "MODULES_NOT_READY")
	if er.Details["unready_modules"] == nil {
		t.Fatalf("expected unready modules in details, got %v", er.Details)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/v1/sessions", map[string]any{
		"session_id":     "rec-1",
		"target_modules": []string{"database", "auth"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/sessions", map[string]any{
		"session_id":     "rec-1",
		"target_modules": []string{"database"},
	})
	assertErrorCode(t, w, http.StatusBadRequest, "INVALID_ARGUMENT")

	w = doJSON(t, srv, http.MethodPost, "/v1/sessions", map[string]any{
		"session_id":     "rec-2",
		"target_modules": []string{"storage"},
	})
	assertErrorCode(t, w, http.StatusConflict, "PHASE_IN_PROGRESS")

	w = doJSON(t, srv, http.MethodPost, "/v1/sessions/rec-1/execute", map[string]any{"dry_run": true})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 dry run, got %d (%s)", w.Code, w.Body.String())
	}
	var dry map[string]any
	decodeBody(t, w, &dry)
	if dry["dry_run"] != true {
		t.Fatalf("expected dry run echo, got %v", dry)
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/sessions/rec-1/execute", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var exec struct {
		Session map[string]any `json:"session"`
	}
	decodeBody(t, w, &exec)
	if exec.Session["status"] != "completed" {
		t.Fatalf("expected completed session, got %v", exec.Session["status"])
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/sessions/rec-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/sessions/rec-1/cancel", nil)
	assertErrorCode(t, w, http.StatusBadRequest, "INVALID_ARGUMENT")

	w = doJSON(t, srv, http.MethodGet, "/v1/sessions/missing", nil)
	assertErrorCode(t, w, http.StatusNotFound, "SESSION_NOT_FOUND")
}

func TestGetWorkspace(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodGet, "/v1/workspace", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var snapshot map[string]any
	decodeBody(t, w, &snapshot)
	if snapshot["status"] == "" || snapshot["average_score"] == nil {
		t.Fatalf("unexpected snapshot: %v", snapshot)
	}
}

func TestResetWorkspace(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/v1/workspace/reset", map[string]any{"reset_type": "full"})
	assertErrorCode(t, w, http.StatusPreconditionFailed, "CONFIRMATION_REQUIRED")

	w = doJSON(t, srv, http.MethodPost, "/v1/workspace/reset", map[string]any{
		"reset_type": "full",
		"confirm":    true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var report struct {
		ResetType string           `json:"reset_type"`
		Outcomes  []map[string]any `json:"outcomes"`
	}
	decodeBody(t, w, &report)
	if report.ResetType != "full" || len(report.Outcomes) != 11 {
		t.Fatalf("unexpected reset report: %+v", report)
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/workspace/reset", map[string]any{
		"reset_type": "everything",
		"confirm":    true,
	})
	assertErrorCode(t, w, http.StatusBadRequest, "INVALID_ARGUMENT")
}
