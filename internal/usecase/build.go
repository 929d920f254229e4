package usecase

import (
	"context"
	"sync"
	"time"

	"recoveryd/internal/domain"
	"recoveryd/internal/registry"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// BuildCoordinator builds module sets layer by layer: layers strictly
// sequential in ascending order, modules within a layer concurrent when
// requested. One module's failure never halts siblings or later layers.
type BuildCoordinator struct {
	Registry *registry.Registry
	Health   *HealthEvaluator
	Builder  domain.ModuleBuilder
	History  BuildHistory
	Clock    func() time.Time
	Log      *logrus.Logger

	mu       sync.Mutex
	inflight map[domain.ModuleID]bool
}

func (c *BuildCoordinator) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

func (c *BuildCoordinator) tryAcquire(id domain.ModuleID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == nil {
		c.inflight = make(map[domain.ModuleID]bool)
	}
	if c.inflight[id] {
		return false
	}
	c.inflight[id] = true
	return true
}

func (c *BuildCoordinator) release(id domain.ModuleID) {
	c.mu.Lock()
	delete(c.inflight, id)
	c.mu.Unlock()
}

// BuildModule builds a single module, rejecting concurrent builds of the
// same module with domain.ErrBuildInProgress.
func (c *BuildCoordinator) BuildModule(ctx context.Context, id domain.ModuleID, opts domain.BuildOptions) (*domain.BuildResult, error) {
	m, err := c.Registry.Get(id)
	if err != nil {
		return nil, err
	}
	if !c.tryAcquire(id) {
		return nil, domain.ErrBuildInProgress
	}
	defer c.release(id)

	res := c.buildOne(ctx, m, opts)
	return &res, nil
}

// Build partitions ids into dependency layers and processes them in
// ascending order. A layer completes only once every module in it has a
// terminal result; that barrier gates the next layer.
func (c *BuildCoordinator) Build(ctx context.Context, ids []domain.ModuleID, opts domain.BuildOptions) (*domain.BuildReport, error) {
	layers, err := c.Registry.Partition(ids)
	if err != nil {
		return nil, err
	}

	report := &domain.BuildReport{}
	for _, layer := range layers {
		results := make([]domain.BuildResult, len(layer))
		if opts.Parallel && len(layer) > 1 {
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(len(layer))
			for i, m := range layer {
				i, m := i, m
				g.Go(func() error {
					results[i] = c.buildGuarded(gctx, m, opts)
					return nil
				})
			}
			_ = g.Wait()
		} else {
			for i, m := range layer {
				results[i] = c.buildGuarded(ctx, m, opts)
			}
		}
		report.Results = append(report.Results, results...)
	}

	for _, r := range report.Results {
		report.Summary.TotalBuilds++
		switch {
		case r.Skipped:
			report.Summary.SkippedBuilds++
			report.Summary.FailedBuilds++
		case r.Success:
			report.Summary.SuccessfulBuilds++
		default:
			report.Summary.FailedBuilds++
		}
	}
	report.Summary.Success = report.Summary.FailedBuilds == 0
	return report, nil
}

func (c *BuildCoordinator) buildGuarded(ctx context.Context, m domain.Module, opts domain.BuildOptions) domain.BuildResult {
	if !c.tryAcquire(m.ID) {
		now := c.now()
		return domain.BuildResult{
			ModuleID:  m.ID,
			StartTime: now,
			EndTime:   now,
			Errors:    []string{"build already in progress"},
		}
	}
	defer c.release(m.ID)
	return c.buildOne(ctx, m, opts)
}

func (c *BuildCoordinator) buildOne(ctx context.Context, m domain.Module, opts domain.BuildOptions) domain.BuildResult {
	start := c.now()

	if !opts.Force {
		check, err := c.Health.Check(ctx, m.ID)
		if err == nil && !check.BuildHealth.CanBuild {
			reason := "critical errors present"
			if !check.BuildHealth.DependenciesResolved {
				reason = "unresolved dependencies"
			}
			result := domain.BuildResult{
				ModuleID:  m.ID,
				Skipped:   true,
				StartTime: start,
				EndTime:   c.now(),
				Errors:    []string{"module is not buildable: " + reason},
				Warnings:  []string{"skipped: " + reason},
			}
			c.record(ctx, &result)
			return result
		}
	}

	result, err := c.Builder.Build(ctx, m.ID, opts)
	if err != nil {
		// Builder breakage is contained in the result, never escalated.
		result = domain.BuildResult{
			ModuleID:  m.ID,
			StartTime: start,
			EndTime:   c.now(),
			Errors:    []string{err.Error()},
		}
	}
	if result.Duration == 0 {
		result.Duration = result.EndTime.Sub(result.StartTime)
	}
	c.record(ctx, &result)
	if c.Log != nil {
		c.Log.WithFields(logrus.Fields{
			"module":  m.ID,
			"success": result.Success,
			"skipped": result.Skipped,
		}).Info("module build finished")
	}
	return result
}

func (c *BuildCoordinator) record(ctx context.Context, r *domain.BuildResult) {
	if c.History == nil {
		return
	}
	n, err := c.History.NextBuildNumber(ctx)
	if err != nil {
		if c.Log != nil {
			c.Log.WithError(err).Warn("build counter unavailable")
		}
	} else {
		r.BuildNumber = n
	}
	if err := c.History.Append(ctx, *r); err != nil && c.Log != nil {
		c.Log.WithError(err).Warn("build history append failed")
	}
}
