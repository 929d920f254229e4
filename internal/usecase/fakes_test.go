package usecase

import (
	"context"
	"sync"
	"time"

	"recoveryd/internal/domain"
)

// fixedClock keeps test timestamps deterministic.
func fixedClock() time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}

type fakeProbe struct {
	mu      sync.Mutex
	reports map[domain.ModuleID]domain.ProbeReport
	errs    map[domain.ModuleID]error
	calls   int
}

func healthyReport() domain.ProbeReport {
	return domain.ProbeReport{
		BuildOK:              true,
		LastBuildSuccess:     true,
		DependenciesResolved: true,
		TestsPassed:          10,
		TestsTotal:           10,
	}
}

func brokenReport() domain.ProbeReport {
	return domain.ProbeReport{
		TestsTotal: 10,
		Errors:     []string{"compile error"},
	}
}

func (p *fakeProbe) set(id domain.ModuleID, r domain.ProbeReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reports == nil {
		p.reports = make(map[domain.ModuleID]domain.ProbeReport)
	}
	p.reports[id] = r
}

func (p *fakeProbe) Probe(_ context.Context, id domain.ModuleID) (domain.ProbeReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if err, ok := p.errs[id]; ok {
		return domain.ProbeReport{}, err
	}
	if r, ok := p.reports[id]; ok {
		return r, nil
	}
	return healthyReport(), nil
}

type fakeBuilder struct {
	mu    sync.Mutex
	order []domain.ModuleID
	errs  map[domain.ModuleID]error
	fail  map[domain.ModuleID]bool
}

func (b *fakeBuilder) Build(_ context.Context, id domain.ModuleID, _ domain.BuildOptions) (domain.BuildResult, error) {
	b.mu.Lock()
	b.order = append(b.order, id)
	b.mu.Unlock()
	if err, ok := b.errs[id]; ok {
		return domain.BuildResult{}, err
	}
	now := fixedClock()
	return domain.BuildResult{
		ModuleID:  id,
		Success:   !b.fail[id],
		StartTime: now,
		EndTime:   now.Add(time.Second),
		Duration:  time.Second,
	}, nil
}

func (b *fakeBuilder) built() []domain.ModuleID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.ModuleID(nil), b.order...)
}

type fakeEvaluator struct {
	mu     sync.Mutex
	calls  int
	scores map[string]int
	score  int
	block  bool
	err    error
}

func (e *fakeEvaluator) EvaluateCriterion(ctx context.Context, name string, _ []domain.ModuleHealthCheck) (domain.CriterionResult, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.block {
		<-ctx.Done()
		return domain.CriterionResult{}, ctx.Err()
	}
	if e.err != nil {
		return domain.CriterionResult{}, e.err
	}
	score := e.score
	if s, ok := e.scores[name]; ok {
		score = s
	}
	return domain.CriterionResult{Criterion: name, Score: score}, nil
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]domain.RecoverySession
	updates  int
}

func (s *fakeSessions) Create(_ context.Context, sess domain.RecoverySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		s.sessions = make(map[string]domain.RecoverySession)
	}
	if _, ok := s.sessions[sess.SessionID]; ok {
		return domain.ErrConflict
	}
	s.sessions[sess.SessionID] = sess
	return nil
}

func (s *fakeSessions) Get(_ context.Context, id string) (*domain.RecoverySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := sess
	copied.ModuleStates = make(map[domain.ModuleID]domain.RecoveryState, len(sess.ModuleStates))
	for k, v := range sess.ModuleStates {
		copied.ModuleStates[k] = v
	}
	copied.PhaseProgress = make(map[string]float64, len(sess.PhaseProgress))
	for k, v := range sess.PhaseProgress {
		copied.PhaseProgress[k] = v
	}
	return &copied, nil
}

func (s *fakeSessions) Update(_ context.Context, sess domain.RecoverySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	s.sessions[sess.SessionID] = sess
	return nil
}

func (s *fakeSessions) ListActive(_ context.Context) ([]domain.RecoverySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RecoverySession
	for _, sess := range s.sessions {
		if !sess.Status.Terminal() {
			out = append(out, sess)
		}
	}
	return out, nil
}

type fakeStates struct {
	mu     sync.Mutex
	states map[domain.ModuleID]domain.RecoveryState
	puts   int
}

func (s *fakeStates) Get(_ context.Context, id domain.ModuleID) (*domain.RecoveryState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := st
	return &copied, nil
}

func (s *fakeStates) Put(_ context.Context, st domain.RecoveryState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states == nil {
		s.states = make(map[domain.ModuleID]domain.RecoveryState)
	}
	s.puts++
	s.states[st.ModuleID] = st
	return nil
}

func (s *fakeStates) Delete(_ context.Context, id domain.ModuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
	return nil
}

func (s *fakeStates) List(_ context.Context) ([]domain.RecoveryState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RecoveryState
	for _, st := range s.states {
		out = append(out, st)
	}
	return out, nil
}

type fakeLedger struct {
	mu        sync.Mutex
	completed map[string]bool
	marks     int
	resets    int
}

func (l *fakeLedger) MarkCompleted(_ context.Context, phaseID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.completed == nil {
		l.completed = make(map[string]bool)
	}
	l.marks++
	l.completed[phaseID] = true
	return nil
}

func (l *fakeLedger) Completed(_ context.Context, phaseID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.completed[phaseID], nil
}

func (l *fakeLedger) Reset(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resets++
	l.completed = nil
	return nil
}

type fakeHistory struct {
	mu      sync.Mutex
	items   []domain.BuildResult
	counter int64
	clears  int
}

func (h *fakeHistory) Append(_ context.Context, r domain.BuildResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, r)
	return nil
}

func (h *fakeHistory) Recent(_ context.Context, limit int) ([]domain.BuildResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := append([]domain.BuildResult(nil), h.items...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (h *fakeHistory) Clear(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clears++
	h.items = nil
	return nil
}

func (h *fakeHistory) NextBuildNumber(_ context.Context) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counter++
	return h.counter, nil
}

type fakeLock struct {
	mu       sync.Mutex
	holder   string
	acquires int
	releases int
}

func (l *fakeLock) Acquire(_ context.Context, holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != "" && l.holder != holder {
		return domain.ErrPhaseInProgress
	}
	l.holder = holder
	l.acquires++
	return nil
}

func (l *fakeLock) Release(_ context.Context, holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == holder {
		l.holder = ""
		l.releases++
	}
	return nil
}

type fakeGateService struct {
	mu      sync.Mutex
	calls   int
	gates   []string
	result  domain.GateResult
	err     error
	entered chan struct{}
	release chan struct{}
}

func (g *fakeGateService) Run(_ context.Context, gateID string, _ domain.ValidationOptions) (*domain.GateResult, error) {
	g.mu.Lock()
	g.calls++
	g.gates = append(g.gates, gateID)
	g.mu.Unlock()
	if g.entered != nil {
		select {
		case g.entered <- struct{}{}:
		default:
		}
	}
	if g.release != nil {
		<-g.release
	}
	if g.err != nil {
		return nil, g.err
	}
	res := g.result
	if res.Status == "" {
		res.Status = "passed"
		res.Score = 100
	}
	res.GateID = gateID
	return &res, nil
}

type fakeBuildService struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (b *fakeBuildService) Build(_ context.Context, ids []domain.ModuleID, _ domain.BuildOptions) (*domain.BuildReport, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	report := &domain.BuildReport{}
	for _, id := range ids {
		report.Results = append(report.Results, domain.BuildResult{ModuleID: id, Success: true})
		report.Summary.TotalBuilds++
		report.Summary.SuccessfulBuilds++
	}
	report.Summary.Success = true
	return report, nil
}
