package http

import (
	"net/http"

	"recoveryd/internal/config"
	"recoveryd/internal/registry"
	"recoveryd/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg config.Config
	r   *gin.Engine
	log *logrus.Logger

	registry  *registry.Registry
	workspace *usecase.WorkspaceService
	builds    *usecase.BuildCoordinator
	gates     *usecase.GateRunner
	phases    *usecase.PhaseExecutor
	sessions  *usecase.SessionOrchestrator
	tracker   *usecase.Tracker
}

type ServerDeps struct {
	Registry  *registry.Registry
	Workspace *usecase.WorkspaceService
	Builds    *usecase.BuildCoordinator
	Gates     *usecase.GateRunner
	Phases    *usecase.PhaseExecutor
	Sessions  *usecase.SessionOrchestrator
	Tracker   *usecase.Tracker
	Log       *logrus.Logger
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:       cfg,
		r:         r,
		log:       deps.Log,
		registry:  deps.Registry,
		workspace: deps.Workspace,
		builds:    deps.Builds,
		gates:     deps.Gates,
		phases:    deps.Phases,
		sessions:  deps.Sessions,
		tracker:   deps.Tracker,
	}
	if s.registry == nil {
		s.registry = registry.New()
	}
	if s.tracker == nil {
		s.tracker = &usecase.Tracker{}
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "modules": len(s.registry.IDs())})
	})

	v1 := s.r.Group("/v1")
	{
		v1.GET("/modules", s.handleGetModules)
		v1.PATCH("/modules/:module_id", s.handleUpdateModule)
		v1.POST("/modules/:module_id/build", s.handleBuildModule)
		v1.GET("/builds/:build_id", s.handleGetBuild)

		v1.GET("/phases", s.handleListPhases)
		v1.POST("/phases/:phase_id/execute", s.handleExecutePhase)
		v1.GET("/executions/:execution_id", s.handleGetExecution)

		v1.POST("/gates/:gate_id/run", s.handleRunGate)

		v1.POST("/sessions", s.handleInitializeSession)
		v1.POST("/sessions/:session_id/execute", s.handleExecuteSession)
		v1.POST("/sessions/:session_id/cancel", s.handleCancelSession)
		v1.GET("/sessions/:session_id", s.handleGetSession)

		v1.GET("/workspace", s.handleGetWorkspace)
		v1.POST("/workspace/reset", s.handleResetWorkspace)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "unknown route", nil)
	})
}

func (s *Server) Handler() http.Handler { return s.r }

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}
