package crawler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/config"
	"github.com/LouYuanbo1/catalogsync/internal/logger"
	"github.com/stretchr/testify/assert"
)

// busyPage never goes idle and shows a spinner for the first spinnerPolls
// checks.
type busyPage struct {
	fakePage
	idleErr      error
	spinnerPolls int32
	polls        atomic.Int32
}

func (p *busyPage) WaitIdle(ctx context.Context, _ time.Duration) error {
	if p.idleErr != nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *busyPage) Evaluate(_ context.Context, _ string, out any) error {
	n := p.polls.Add(1)
	*(out.(*bool)) = n <= p.spinnerPolls
	return nil
}

func waiterConfig(network, indicator time.Duration) config.CrawlConfig {
	var cfg config.CrawlConfig
	cfg.Stability.QuietWindow = 10 * time.Millisecond
	cfg.Stability.MaxNetworkWait = network
	cfg.Stability.MaxIndicatorWait = indicator
	cfg.Stability.LoadingSelectors = []string{".spinner"}
	return cfg
}

func TestAwaitStableTimeoutsAreNotErrors(t *testing.T) {
	w := NewWaiter(waiterConfig(20*time.Millisecond, 50*time.Millisecond), logger.NewNop())
	w.poll = 5 * time.Millisecond
	page := &busyPage{idleErr: errors.New("busy"), spinnerPolls: 1 << 30}

	assert.NoError(t, w.AwaitStable(context.Background(), page))
	assert.Greater(t, page.polls.Load(), int32(1))
}

func TestAwaitStableReturnsOnceSpinnerHides(t *testing.T) {
	w := NewWaiter(waiterConfig(time.Second, time.Second), logger.NewNop())
	w.poll = time.Millisecond
	page := &busyPage{spinnerPolls: 3}

	start := time.Now()
	assert.NoError(t, w.AwaitStable(context.Background(), page))
	assert.Equal(t, int32(4), page.polls.Load())
	assert.Less(t, time.Since(start), time.Second)
}

func TestAwaitStablePropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := NewWaiter(waiterConfig(time.Second, time.Second), logger.NewNop())
	page := &busyPage{idleErr: errors.New("busy")}

	assert.ErrorIs(t, w.AwaitStable(ctx, page), context.Canceled)
}
