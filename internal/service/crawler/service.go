package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/logger"
	"github.com/LouYuanbo1/catalogsync/internal/service/catalog"
)

const countTimeout = 10 * time.Second

// Runner performs one crawl. *Driver is the production implementation.
type Runner interface {
	Run(ctx context.Context, state *RunState) error
}

// SizeReporter receives the catalog size counted after every run.
type SizeReporter interface {
	CatalogSize(n int64)
}

type StartResult struct {
	Accepted bool `json:"accepted"`
}

// Service is the trigger surface: it admits runs through the Guard and
// executes them in the background.
type Service struct {
	ctx    context.Context
	runner Runner
	guard  *Guard
	log    logger.Interface
	now    func() time.Time

	counter  catalog.Counter
	reporter SizeReporter

	mu    sync.Mutex
	state *RunState
	wg    sync.WaitGroup
}

type ServiceOption func(*Service)

func WithGuard(g *Guard) ServiceOption {
	return func(s *Service) {
		s.guard = g
	}
}

// WithCatalogCounter counts the stored catalog after every run for the
// summary log and, when set, the SizeReporter.
func WithCatalogCounter(c catalog.Counter) ServiceOption {
	return func(s *Service) {
		s.counter = c
	}
}

func WithSizeReporter(r SizeReporter) ServiceOption {
	return func(s *Service) {
		s.reporter = r
	}
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService runs crawls under ctx; cancelling it winds down an active run.
func NewService(ctx context.Context, runner Runner, log logger.Interface, opts ...ServiceOption) *Service {
	s := &Service{
		ctx:    ctx,
		runner: runner,
		guard:  NewGuard(),
		log:    log.WithComponent("crawl_service"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start returns immediately. Accepted is false when a run is already active;
// in that case nothing else happens.
func (s *Service) Start() StartResult {
	if !s.guard.TryStart() {
		s.log.Info("crawl already running, start rejected")
		return StartResult{Accepted: false}
	}

	state := NewRunState(s.now())
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(state)
	s.log.Info("crawl started")
	return StartResult{Accepted: true}
}

func (s *Service) run(state *RunState) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
		// Finish moves the run to shutdown; keep where it stopped.
		stoppedIn := state.Phase()
		state.Finish(s.now(), err)
		s.guard.Finish()

		snap := state.Snapshot()
		kv := []any{
			"collections", snap.Collections,
			"products", snap.Products,
			"variants", snap.Variants,
			"synced", snap.Synced,
			"elapsed", snap.FinishedAt.Sub(snap.StartedAt),
		}
		if n, ok := s.countCatalog(); ok {
			kv = append(kv, "catalog_entries", n)
		}
		s.wg.Done()

		if err != nil {
			s.log.Error("crawl aborted", append(kv, "phase", stoppedIn, "class", Classify(err), "error", err)...)
			return
		}
		s.log.Info("crawl finished", kv...)
	}()
	err = s.runner.Run(s.ctx, state)
}

// countCatalog runs on its own context: the service context may already be
// cancelled when a run ends at shutdown.
func (s *Service) countCatalog() (int64, bool) {
	if s.counter == nil {
		return 0, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), countTimeout)
	defer cancel()
	n, err := s.counter.Count(ctx)
	if err != nil {
		s.log.Warn("count catalog entries", "error", err)
		return 0, false
	}
	if s.reporter != nil {
		s.reporter.CatalogSize(n)
	}
	return n, true
}

// Status describes the active run, or the last one when idle.
func (s *Service) Status() RunSnapshot {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == nil {
		return RunSnapshot{Phase: PhaseIdle}
	}
	return state.Snapshot()
}

func (s *Service) Running() bool {
	return s.guard.Running()
}

// Wait blocks until the active run, if any, has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}
