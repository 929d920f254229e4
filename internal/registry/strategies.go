package registry

import (
	"time"

	"recoveryd/internal/domain"
)

// BuildStrategy is the per-module build/validate behavior. Selection is a
// table lookup; call sites never branch on module ids.
type BuildStrategy struct {
	Steps        []string
	BaseDuration time.Duration
	Artifacts    []string
}

var strategies = map[domain.ModuleID]BuildStrategy{
	"database":      {Steps: []string{"migrate", "verify-schema"}, BaseDuration: 40 * time.Second, Artifacts: []string{"schema.sql"}},
	"auth":          {Steps: []string{"compile", "rotate-keys", "unit-tests"}, BaseDuration: 35 * time.Second, Artifacts: []string{"auth-service"}},
	"storage":       {Steps: []string{"compile", "bucket-policies"}, BaseDuration: 25 * time.Second, Artifacts: []string{"storage-service"}},
	"core-api":      {Steps: []string{"compile", "unit-tests", "contract-tests"}, BaseDuration: 60 * time.Second, Artifacts: []string{"core-api", "openapi.json"}},
	"cv-parser":     {Steps: []string{"compile", "unit-tests", "fixture-corpus"}, BaseDuration: 45 * time.Second, Artifacts: []string{"cv-parser"}},
	"notifications": {Steps: []string{"compile", "template-check"}, BaseDuration: 20 * time.Second, Artifacts: []string{"notifications"}},
	"ai-analysis":   {Steps: []string{"compile", "prompt-lint", "unit-tests"}, BaseDuration: 50 * time.Second, Artifacts: []string{"ai-analysis"}},
	"analytics":     {Steps: []string{"compile", "pipeline-dry-run"}, BaseDuration: 30 * time.Second, Artifacts: []string{"analytics"}},
	"qr-service":    {Steps: []string{"compile"}, BaseDuration: 15 * time.Second, Artifacts: []string{"qr-service"}},
	"profile-web":   {Steps: []string{"bundle", "asset-hash", "smoke-tests"}, BaseDuration: 55 * time.Second, Artifacts: []string{"profile-web.tar"}},
	"admin-portal":  {Steps: []string{"bundle", "smoke-tests"}, BaseDuration: 35 * time.Second, Artifacts: []string{"admin-portal.tar"}},
}

// Strategy returns the build strategy for a registered module.
func (r *Registry) Strategy(id domain.ModuleID) (BuildStrategy, error) {
	s, ok := strategies[id]
	if !ok {
		return BuildStrategy{}, domain.ErrModuleNotFound
	}
	return s, nil
}
