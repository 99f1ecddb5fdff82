package crawler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingRunner holds every run open until release is closed.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	runs    atomic.Int32
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context, state *RunState) error {
	r.runs.Add(1)
	state.SetPhase(PhaseLaunching)
	r.started <- struct{}{}
	select {
	case <-r.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return r.err
}

func TestGuard(t *testing.T) {
	g := NewGuard()
	assert.True(t, g.TryStart())
	assert.False(t, g.TryStart())
	assert.True(t, g.Running())
	g.Finish()
	assert.False(t, g.Running())
	g.Finish()
	assert.True(t, g.TryStart())
}

func TestConcurrentStartsAdmitExactlyOne(t *testing.T) {
	runner := newBlockingRunner()
	s := NewService(context.Background(), runner, logger.NewNop())

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Start().Accepted {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	<-runner.started

	assert.Equal(t, int32(1), accepted.Load())
	assert.True(t, s.Running())
	assert.True(t, s.Status().Running)

	close(runner.release)
	s.Wait()
	assert.Equal(t, int32(1), runner.runs.Load())
	assert.False(t, s.Running())

	snap := s.Status()
	assert.False(t, snap.Running)
	assert.Equal(t, PhaseShutdown, snap.Phase)
	assert.True(t, s.Start().Accepted, "guard is released after the run")
	s.Wait()
}

func TestRejectedStartHasNoSideEffects(t *testing.T) {
	runner := newBlockingRunner()
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewService(context.Background(), runner, logger.NewNop(), WithServiceClock(func() time.Time { return clock }))

	require.True(t, s.Start().Accepted)
	<-runner.started
	before := s.Status()

	assert.False(t, s.Start().Accepted)
	assert.Equal(t, before, s.Status())

	close(runner.release)
	s.Wait()
	assert.Equal(t, int32(1), runner.runs.Load())
}

func TestFailedRunReleasesGuard(t *testing.T) {
	site := newFakeSite()
	d, err := NewDriver(testCrawlConfig(), &fakeLauncher{site: site, err: errors.New("no chrome")}, fakeExtractor{}, &recordingSink{}, logger.NewNop())
	require.NoError(t, err)
	s := NewService(context.Background(), d, logger.NewNop())

	require.True(t, s.Start().Accepted)
	s.Wait()

	assert.False(t, s.Running())
	snap := s.Status()
	assert.Contains(t, snap.LastError, "browser launch failed")
	assert.Equal(t, PhaseShutdown, snap.Phase)
}

type panickingRunner struct{}

func (panickingRunner) Run(context.Context, *RunState) error { panic("driver bug") }

func TestPanickingRunReleasesGuard(t *testing.T) {
	s := NewService(context.Background(), panickingRunner{}, logger.NewNop())
	require.True(t, s.Start().Accepted)
	s.Wait()
	assert.False(t, s.Running())
	assert.Contains(t, s.Status().LastError, "driver bug")
}

func TestCancelledContextEndsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := newBlockingRunner()
	s := NewService(ctx, runner, logger.NewNop())

	require.True(t, s.Start().Accepted)
	<-runner.started
	cancel()
	s.Wait()
	assert.False(t, s.Running())
	assert.Contains(t, s.Status().LastError, "context canceled")
}

func TestStatusBeforeFirstRun(t *testing.T) {
	s := NewService(context.Background(), newBlockingRunner(), logger.NewNop())
	assert.Equal(t, RunSnapshot{Phase: PhaseIdle}, s.Status())
}

type fixedCounter struct {
	n   int64
	err error
}

func (c fixedCounter) Count(context.Context) (int64, error) { return c.n, c.err }

type sizeRecorder struct {
	sizes []int64
}

func (r *sizeRecorder) CatalogSize(n int64) { r.sizes = append(r.sizes, n) }

func TestRunReportsCatalogSize(t *testing.T) {
	testCases := []struct {
		name    string
		counter fixedCounter
		want    []int64
	}{
		{name: "counted", counter: fixedCounter{n: 7}, want: []int64{7}},
		{name: "count failure is only logged", counter: fixedCounter{err: errors.New("store unreachable")}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			runner := newBlockingRunner()
			rec := &sizeRecorder{}
			s := NewService(context.Background(), runner, logger.NewNop(),
				WithCatalogCounter(tc.counter), WithSizeReporter(rec))

			require.True(t, s.Start().Accepted)
			<-runner.started
			close(runner.release)
			s.Wait()

			assert.Equal(t, tc.want, rec.sizes)
			assert.False(t, s.Running())
		})
	}
}
