package crawler

import (
	"context"
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/config"
	"github.com/LouYuanbo1/catalogsync/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/catalogsync/internal/logger"
)

const indicatorPollInterval = 150 * time.Millisecond

// Waiter decides when a page has settled after navigation or interaction.
type Waiter struct {
	quiet            time.Duration
	maxNetworkWait   time.Duration
	maxIndicatorWait time.Duration
	loadingSelectors []string
	poll             time.Duration
	log              logger.Interface
}

func NewWaiter(cfg config.CrawlConfig, log logger.Interface) *Waiter {
	return &Waiter{
		quiet:            cfg.Stability.QuietWindow,
		maxNetworkWait:   cfg.Stability.MaxNetworkWait,
		maxIndicatorWait: cfg.Stability.MaxIndicatorWait,
		loadingSelectors: cfg.Stability.LoadingSelectors,
		poll:             indicatorPollInterval,
		log:              log.WithComponent("stability"),
	}
}

// AwaitStable waits for the network to go quiet and for loading indicators
// to disappear. Running out of time on either is not an error; the only
// error returned is the cancellation of ctx itself.
func (w *Waiter) AwaitStable(ctx context.Context, page chrome.Page) error {
	if w.maxNetworkWait > 0 {
		netCtx, cancel := context.WithTimeout(ctx, w.maxNetworkWait)
		err := page.WaitIdle(netCtx, w.quiet)
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			w.log.Debug("network did not settle, continuing", "error", err)
		}
	}

	if len(w.loadingSelectors) == 0 || w.maxIndicatorWait <= 0 {
		return nil
	}
	indCtx, cancel := context.WithTimeout(ctx, w.maxIndicatorWait)
	defer cancel()
	script := loadingVisibleScript(w.loadingSelectors)
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()
	for {
		var visible bool
		if err := page.Evaluate(indCtx, script, &visible); err == nil && !visible {
			return nil
		}
		select {
		case <-indCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Debug("loading indicator still visible, continuing", "waited", w.maxIndicatorWait)
			return nil
		case <-ticker.C:
		}
	}
}
