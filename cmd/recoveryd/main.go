package main

import (
	"context"
	"log"

	"recoveryd/internal/config"
	"recoveryd/internal/domain"
	"recoveryd/internal/infra/history"
	httpinfra "recoveryd/internal/infra/http"
	"recoveryd/internal/infra/lock"
	"recoveryd/internal/infra/policy"
	"recoveryd/internal/infra/sim"
	"recoveryd/internal/infra/state"
	"recoveryd/internal/registry"
	"recoveryd/internal/usecase"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.FromEnv()

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	logger.SetFormatter(&logrus.JSONFormatter{})

	reg := registry.New()
	simulator := sim.New(reg)

	engine, err := policy.NewEngine(context.Background())
	if err != nil {
		log.Fatalf("failed to init policy engine: %v", err)
	}

	var (
		workspaceLock domain.WorkspaceLock
		states        usecase.StateStore
		ledger        usecase.PhaseLedger
		sessions      usecase.SessionStore
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		workspaceLock = lock.NewRedisLock(client, cfg.LockTTL)
		redisState := state.NewRedis(client)
		states = redisState
		ledger = redisState
		sessions = state.NewRedisSessions(client, cfg.SessionTTL)
		logger.WithField("addr", cfg.RedisAddr).Info("using redis state store")
	} else {
		workspaceLock = lock.NewMemoryLock()
		memState := state.NewMemory()
		states = memState
		ledger = memState
		sessions = state.NewMemorySessions()
		logger.Info("using in-memory state store")
	}

	var buildHistory usecase.BuildHistory
	if cfg.PostgresDSN != "" {
		pg, err := history.NewPostgres(cfg.PostgresDSN, cfg.BuildHistoryLimit)
		if err != nil {
			log.Fatalf("failed to init build history store: %v", err)
		}
		buildHistory = pg
		logger.Info("using postgres build history")
	} else {
		buildHistory = history.NewMemory(cfg.BuildHistoryLimit)
	}

	health := &usecase.HealthEvaluator{Registry: reg, Probe: simulator}
	gates := &usecase.GateRunner{
		Registry:       reg,
		Health:         health,
		Evaluator:      engine,
		DefaultTimeout: cfg.ValidationTimeout,
		Log:            logger,
	}
	builds := &usecase.BuildCoordinator{
		Registry: reg,
		Health:   health,
		Builder:  simulator,
		History:  buildHistory,
		Log:      logger,
	}
	workspace := &usecase.WorkspaceService{
		Registry: reg,
		Health:   health,
		Sessions: sessions,
		States:   states,
		History:  buildHistory,
		Ledger:   ledger,
		Log:      logger,
	}
	phases := &usecase.PhaseExecutor{
		Registry: reg,
		Health:   health,
		Gates:    gates,
		Builds:   builds,
		Ledger:   ledger,
		States:   states,
		Lock:     workspaceLock,
		Log:      logger,
	}
	orchestrator := &usecase.SessionOrchestrator{
		Registry:  reg,
		Health:    health,
		Gates:     gates,
		Builds:    builds,
		Workspace: workspace,
		Sessions:  sessions,
		States:    states,
		Lock:      workspaceLock,
		Log:       logger,
	}

	srv := httpinfra.NewServerWithDeps(cfg, httpinfra.ServerDeps{
		Registry:  reg,
		Workspace: workspace,
		Builds:    builds,
		Gates:     gates,
		Phases:    phases,
		Sessions:  orchestrator,
		Tracker:   &usecase.Tracker{},
		Log:       logger,
	})
	logger.WithField("addr", cfg.HTTPAddr).Info("recoveryd listening")
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
