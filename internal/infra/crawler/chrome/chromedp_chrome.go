package chrome

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/config"
	"github.com/LouYuanbo1/catalogsync/internal/logger"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const idlePollInterval = 100 * time.Millisecond

type chromedpLauncher struct {
	cfg config.BrowserConfig
	log logger.Interface
}

func InitChromedpLauncher(cfg config.BrowserConfig, log logger.Interface) Launcher {
	return &chromedpLauncher{cfg: cfg, log: log.WithComponent("chromedp")}
}

func (cl *chromedpLauncher) Launch(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cl.cfg.Headless),
		chromedp.Flag("incognito", cl.cfg.Incognito),
		chromedp.Flag("disable-dev-shm-usage", cl.cfg.DisableDevShmUsage),
		chromedp.Flag("no-sandbox", cl.cfg.NoSandbox),
	)
	if cl.cfg.DisableBlinkFeatures != "" {
		opts = append(opts, chromedp.Flag("disable-blink-features", cl.cfg.DisableBlinkFeatures))
	}
	if cl.cfg.Bin != "" {
		opts = append(opts, chromedp.ExecPath(cl.cfg.Bin))
	}
	if cl.cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cl.cfg.UserDataDir))
	}
	if cl.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cl.cfg.UserAgent))
	}
	if cl.cfg.ViewportWidth > 0 && cl.cfg.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cl.cfg.ViewportWidth, cl.cfg.ViewportHeight))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	// An empty Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	cl.log.Info("browser started", "headless", cl.cfg.Headless)

	return &chromedpSession{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		cfg:           cl.cfg,
	}, nil
}

type chromedpSession struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	cfg           config.BrowserConfig
}

func (cs *chromedpSession) OpenTab(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(cs.browserCtx)
	p := &chromedpPage{tabCtx: tabCtx, cancel: cancel, tracker: newRequestTracker()}

	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			p.tracker.begin(string(e.RequestID))
		case *network.EventLoadingFinished:
			p.tracker.end(string(e.RequestID))
		case *network.EventLoadingFailed:
			p.tracker.end(string(e.RequestID))
		}
	})

	actions := []chromedp.Action{network.Enable()}
	if cs.cfg.ViewportWidth > 0 && cs.cfg.ViewportHeight > 0 {
		actions = append(actions, chromedp.EmulateViewport(int64(cs.cfg.ViewportWidth), int64(cs.cfg.ViewportHeight)))
	}
	if err := p.run(ctx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return p, nil
}

func (cs *chromedpSession) Close() error {
	err := chromedp.Cancel(cs.browserCtx)
	cs.cancelBrowser()
	cs.cancelAlloc()
	return err
}

type chromedpPage struct {
	tabCtx  context.Context
	cancel  context.CancelFunc
	tracker *requestTracker
}

// run executes actions on the tab while honouring the caller's ctx.
// Cancelling the derived context aborts the actions without closing the tab.
func (cp *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(cp.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (cp *chromedpPage) Goto(ctx context.Context, url string) error {
	if err := cp.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func (cp *chromedpPage) Evaluate(ctx context.Context, fn string, out any) error {
	expr := fmt.Sprintf("(%s)()", fn)
	if err := cp.run(ctx, chromedp.Evaluate(expr, out, awaitPromise)); err != nil {
		return fmt.Errorf("eval: %w", err)
	}
	return nil
}

func (cp *chromedpPage) WaitForSelector(ctx context.Context, selector string) error {
	return cp.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (cp *chromedpPage) WaitIdle(ctx context.Context, quiet time.Duration) error {
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()
	for {
		if cp.tracker.idleFor(time.Now(), quiet) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (cp *chromedpPage) MouseMove(ctx context.Context, x, y float64) error {
	return cp.run(ctx, chromedp.MouseEvent(input.MouseMoved, x, y))
}

func (cp *chromedpPage) Close() error {
	err := chromedp.Cancel(cp.tabCtx)
	cp.cancel()
	return err
}

// requestTracker counts in-flight requests of one tab.
type requestTracker struct {
	mu           sync.Mutex
	inflight     map[string]struct{}
	lastActivity time.Time
}

func newRequestTracker() *requestTracker {
	return &requestTracker{inflight: make(map[string]struct{}), lastActivity: time.Now()}
}

func (t *requestTracker) begin(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[id] = struct{}{}
	t.lastActivity = time.Now()
}

func (t *requestTracker) end(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, id)
	t.lastActivity = time.Now()
}

// idleFor reports whether nothing is in flight and nothing happened for quiet.
func (t *requestTracker) idleFor(now time.Time, quiet time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) == 0 && now.Sub(t.lastActivity) >= quiet
}
