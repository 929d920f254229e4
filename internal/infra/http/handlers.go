package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"recoveryd/internal/domain"
	"recoveryd/internal/usecase"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type workspaceSummary struct {
	Status         domain.HealthStatus `json:"status"`
	AverageScore   int                 `json:"average_score"`
	HealthyCount   int                 `json:"healthy_count"`
	DegradedCount  int                 `json:"degraded_count"`
	CriticalCount  int                 `json:"critical_count"`
	OfflineCount   int                 `json:"offline_count"`
	ActiveSessions int                 `json:"active_sessions"`
	Timestamp      time.Time           `json:"timestamp"`
}

type modulesResponse struct {
	Modules   []domain.ModuleHealthCheck `json:"modules"`
	Workspace workspaceSummary           `json:"workspace"`
}

type buildRequest struct {
	Force     bool `json:"force"`
	SkipTests bool `json:"skip_tests"`
	Async     bool `json:"async"`
}

type trackingResponse struct {
	ID       string `json:"id"`
	Tracking string `json:"tracking"`
}

type executePhaseRequest struct {
	Force             bool `json:"force"`
	SkipValidation    bool `json:"skip_validation"`
	DryRun            bool `json:"dry_run"`
	Async             bool `json:"async"`
	RollbackOnFailure bool `json:"rollback_on_failure"`
}

type runGateRequest struct {
	Strict         bool     `json:"strict"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	TargetModules  []string `json:"target_modules"`
	SkipValidation bool     `json:"skip_validation"`
}

type initializeSessionRequest struct {
	SessionID     string   `json:"session_id"`
	TargetModules []string `json:"target_modules"`
}

type executeSessionRequest struct {
	DryRun bool `json:"dry_run"`
}

type resetRequest struct {
	Modules   []string `json:"modules"`
	ResetType string   `json:"reset_type"`
	Confirm   bool     `json:"confirm"`
}

func (s *Server) handleGetModules(c *gin.Context) {
	checks, snapshot, err := s.workspace.GetModules(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, modulesResponse{
		Modules:   checks,
		Workspace: summarize(snapshot),
	})
}

func (s *Server) handleUpdateModule(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json", nil)
		return
	}
	state, err := s.workspace.UpdateModule(c.Request.Context(), domain.ModuleID(c.Param("module_id")), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleBuildModule(c *gin.Context) {
	var req buildRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	id := domain.ModuleID(c.Param("module_id"))
	opts := domain.BuildOptions{Force: req.Force, SkipTests: req.SkipTests}

	if req.Async {
		if _, err := s.registry.Get(id); err != nil {
			writeError(c, err)
			return
		}
		job := s.tracker.Start(usecase.JobBuild)
		go func() {
			res, err := s.builds.BuildModule(context.Background(), id, opts)
			if err != nil {
				s.tracker.Fail(job.ID, err.Error())
				return
			}
			s.tracker.Complete(job.ID, res, nil)
		}()
		c.JSON(http.StatusAccepted, trackingResponse{ID: job.ID, Tracking: "/v1/builds/" + job.ID})
		return
	}

	res, err := s.builds.BuildModule(c.Request.Context(), id, opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleGetBuild(c *gin.Context) {
	job, err := s.tracker.Get(c.Param("build_id"))
	if err != nil || job.Kind != usecase.JobBuild {
		writeError(c, domain.ErrBuildNotFound)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleGetExecution(c *gin.Context) {
	job, err := s.tracker.Get(c.Param("execution_id"))
	if err != nil || job.Kind != usecase.JobPhase {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "unknown execution id", nil)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleListPhases(c *gin.Context) {
	filter := usecase.PhaseFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
	}
	var bad bool
	filter.Page, bad = parsePageParam(c.Query("page"))
	if bad {
		writeError(c, domain.ErrInvalidPagination)
		return
	}
	filter.PageSize, bad = parsePageParam(c.Query("page_size"))
	if bad {
		writeError(c, domain.ErrInvalidPagination)
		return
	}
	list, err := s.phases.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleExecutePhase(c *gin.Context) {
	var req executePhaseRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	phaseID := c.Param("phase_id")
	opts := usecase.PhaseExecutionOptions{
		Force:             req.Force,
		SkipValidation:    req.SkipValidation,
		DryRun:            req.DryRun,
		RollbackOnFailure: req.RollbackOnFailure,
	}

	if req.Async {
		if _, err := s.registry.Phase(phaseID); err != nil {
			writeError(c, err)
			return
		}
		job := s.tracker.Start(usecase.JobPhase)
		go func() {
			exec, err := s.phases.Execute(context.Background(), phaseID, opts)
			if err != nil {
				s.tracker.Fail(job.ID, err.Error())
				return
			}
			s.tracker.Complete(job.ID, nil, exec)
		}()
		c.JSON(http.StatusAccepted, trackingResponse{ID: job.ID, Tracking: "/v1/executions/" + job.ID})
		return
	}

	exec, err := s.phases.Execute(c.Request.Context(), phaseID, opts)
	if err != nil {
		var vf *usecase.ValidationFailedError
		if errors.As(err, &vf) {
			c.JSON(http.StatusPreconditionFailed, errorResponse{
				Code:    "VALIDATION_FAILED",
				Message: err.Error(),
				Details: map[string]any{"failed_gates": vf.Gates, "execution": exec},
			})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, exec)
}

func (s *Server) handleRunGate(c *gin.Context) {
	var req runGateRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	opts := domain.ValidationOptions{
		Strict:         req.Strict,
		TargetModules:  moduleIDs(req.TargetModules),
		SkipValidation: req.SkipValidation,
	}
	if req.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	result, err := s.gates.Run(c.Request.Context(), c.Param("gate_id"), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleInitializeSession(c *gin.Context) {
	var req initializeSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json", nil)
		return
	}
	session, err := s.sessions.Initialize(c.Request.Context(), req.SessionID, moduleIDs(req.TargetModules))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (s *Server) handleExecuteSession(c *gin.Context) {
	var req executeSessionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	exec, err := s.sessions.Execute(c.Request.Context(), c.Param("session_id"), usecase.ExecuteSessionOptions{DryRun: req.DryRun})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, exec)
}

func (s *Server) handleCancelSession(c *gin.Context) {
	session, err := s.sessions.Cancel(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.sessions.Get(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) handleGetWorkspace(c *gin.Context) {
	snapshot, err := s.workspace.Status(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleResetWorkspace(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json", nil)
		return
	}
	report, err := s.workspace.ResetWorkspace(c.Request.Context(), usecase.ResetRequest{
		Modules:   moduleIDs(req.Modules),
		ResetType: req.ResetType,
		Confirm:   req.Confirm,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// bindOptionalJSON decodes a request body when one is present; an empty
// body leaves dst at its zero value.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json", nil)
		return false
	}
	return true
}

func parsePageParam(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true
	}
	return n, false
}

func moduleIDs(raw []string) []domain.ModuleID {
	ids := make([]domain.ModuleID, 0, len(raw))
	for _, r := range raw {
		ids = append(ids, domain.ModuleID(r))
	}
	return ids
}

func summarize(snapshot *domain.WorkspaceSnapshot) workspaceSummary {
	return workspaceSummary{
		Status:         snapshot.Status,
		AverageScore:   snapshot.AverageScore,
		HealthyCount:   snapshot.HealthyCount,
		DegradedCount:  snapshot.DegradedCount,
		CriticalCount:  snapshot.CriticalCount,
		OfflineCount:   snapshot.OfflineCount,
		ActiveSessions: snapshot.ActiveSessions,
		Timestamp:      snapshot.Timestamp,
	}
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	var details map[string]any
	switch {
	case errors.Is(err, domain.ErrModuleNotFound):
		status, code = http.StatusNotFound, "MODULE_NOT_FOUND"
	case errors.Is(err, domain.ErrPhaseNotFound):
		status, code = http.StatusNotFound, "PHASE_NOT_FOUND"
	case errors.Is(err, domain.ErrGateNotFound):
		status, code = http.StatusNotFound, "GATE_NOT_FOUND"
	case errors.Is(err, domain.ErrSessionNotFound):
		status, code = http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, domain.ErrBuildNotFound):
		status, code = http.StatusNotFound, "BUILD_NOT_FOUND"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrUnknownFields):
		status, code = http.StatusBadRequest, "UNKNOWN_FIELDS"
		var uf *usecase.UnknownFieldsError
		if errors.As(err, &uf) {
			details = map[string]any{"fields": uf.Fields}
		}
	case errors.Is(err, domain.ErrEmptyUpdate):
		status, code = http.StatusBadRequest, "EMPTY_UPDATE"
	case errors.Is(err, domain.ErrInvalidStatus):
		status, code = http.StatusBadRequest, "INVALID_STATUS"
	case errors.Is(err, domain.ErrInvalidStatusFilter):
		status, code = http.StatusBadRequest, "INVALID_STATUS_FILTER"
	case errors.Is(err, domain.ErrInvalidPagination):
		status, code = http.StatusBadRequest, "INVALID_PAGINATION"
	case errors.Is(err, domain.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrConfirmationRequired):
		status, code = http.StatusPreconditionFailed, "CONFIRMATION_REQUIRED"
	case errors.Is(err, domain.ErrDependenciesNotMet):
		status, code = http.StatusPreconditionFailed, "DEPENDENCIES_NOT_MET"
	case errors.Is(err, domain.ErrModulesNotReady):
		status, code = http.StatusPreconditionFailed, "MODULES_NOT_READY"
		var nr *usecase.ModulesNotReadyError
		if errors.As(err, &nr) {
			details = map[string]any{"unready_modules": nr.Modules}
		}
	case errors.Is(err, domain.ErrValidationFailed):
		status, code = http.StatusPreconditionFailed, "VALIDATION_FAILED"
		var vf *usecase.ValidationFailedError
		if errors.As(err, &vf) {
			details = map[string]any{"failed_gates": vf.Gates}
		}
	case errors.Is(err, domain.ErrPhaseInProgress):
		status, code = http.StatusConflict, "PHASE_IN_PROGRESS"
	case errors.Is(err, domain.ErrConflict):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrBuildInProgress):
		status, code = http.StatusConflict, "BUILD_IN_PROGRESS"
	case errors.Is(err, domain.ErrValidationTimeout):
		status, code = http.StatusGatewayTimeout, "VALIDATION_TIMEOUT"
	}
	writeErrorCode(c, status, code, err.Error(), details)
}

func writeErrorCode(c *gin.Context, status int, code, message string, details map[string]any) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}
