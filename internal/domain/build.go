package domain

import (
	"context"
	"time"
)

type BuildOptions struct {
	Parallel  bool `json:"parallel"`
	Force     bool `json:"force"`
	SkipTests bool `json:"skip_tests"`
}

// BuildResult is immutable once created; results are appended to a bounded
// history for audit.
type BuildResult struct {
	BuildNumber int64         `json:"build_number,omitempty"`
	ModuleID    ModuleID      `json:"module_id"`
	Success     bool          `json:"success"`
	Skipped     bool          `json:"skipped"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Duration    time.Duration `json:"duration"`
	Errors      []string      `json:"errors"`
	Warnings    []string      `json:"warnings"`
	Artifacts   []string      `json:"artifacts"`
}

type BuildSummary struct {
	TotalBuilds      int  `json:"total_builds"`
	SuccessfulBuilds int  `json:"successful_builds"`
	FailedBuilds     int  `json:"failed_builds"`
	SkippedBuilds    int  `json:"skipped_builds"`
	Success          bool `json:"success"`
}

type BuildReport struct {
	Results []BuildResult `json:"results"`
	Summary BuildSummary  `json:"summary"`
}

// ModuleBuilder is the external collaborator that performs one module build.
// A failed build is reported through the result, not an error; errors are
// reserved for the builder itself being unusable.
type ModuleBuilder interface {
	Build(ctx context.Context, id ModuleID, opts BuildOptions) (BuildResult, error)
}
