package crawler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/config"
	"github.com/LouYuanbo1/catalogsync/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/catalogsync/internal/infra/crawler/types"
)

const minMouseMoves = 2

var defaultViewport = types.Viewport{Width: 1366, Height: 768}

// DelayPolicy is a bounded random wait. Min == Max gives a fixed delay.
type DelayPolicy struct {
	Min time.Duration
	Max time.Duration
}

func (p DelayPolicy) draw(r *rand.Rand) time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + time.Duration(r.Int64N(int64(p.Max-p.Min)+1))
}

// HumanPolicy shapes pointer and scroll behaviour.
type HumanPolicy struct {
	MouseMoves     int
	ScrollStepMin  int
	ScrollStepMax  int
	ScrollPause    DelayPolicy
	MaxScrollSteps int
}

// Emulator drives a page the way a visitor would, to keep bot heuristics
// quiet and to trigger hover and scroll based lazy loading.
type Emulator struct {
	human HumanPolicy
	delay DelayPolicy

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewEmulator(human HumanPolicy, delay DelayPolicy, rnd *rand.Rand) *Emulator {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}
	if human.MouseMoves < minMouseMoves {
		human.MouseMoves = minMouseMoves
	}
	if human.ScrollStepMin <= 0 {
		human.ScrollStepMin = 200
	}
	if human.ScrollStepMax < human.ScrollStepMin {
		human.ScrollStepMax = human.ScrollStepMin
	}
	if human.MaxScrollSteps <= 0 {
		human.MaxScrollSteps = 50
	}
	return &Emulator{human: human, delay: delay, rnd: rnd}
}

func EmulatorFromConfig(cfg config.CrawlConfig) *Emulator {
	return NewEmulator(HumanPolicy{
		MouseMoves:     cfg.Human.MouseMoves,
		ScrollStepMin:  cfg.Human.ScrollStepMin,
		ScrollStepMax:  cfg.Human.ScrollStepMax,
		ScrollPause:    DelayPolicy{Min: cfg.Human.ScrollPauseMin, Max: cfg.Human.ScrollPauseMax},
		MaxScrollSteps: cfg.Human.MaxScrollSteps,
	}, DelayPolicy{Min: cfg.Delay.Min, Max: cfg.Delay.Max}, nil)
}

// EmulateBrowsing moves the pointer to at least two distinct points inside
// the viewport, then scrolls down in random increments until the document
// end or the step limit, pausing between increments so lazy content loads.
func (e *Emulator) EmulateBrowsing(ctx context.Context, page chrome.Page) error {
	vp := defaultViewport
	var measured types.Viewport
	if err := page.Evaluate(ctx, viewportScript, &measured); err == nil && measured.Width >= 2 && measured.Height >= 2 {
		vp = measured
	}

	for _, p := range e.pointerPath(vp) {
		if err := page.MouseMove(ctx, p[0], p[1]); err != nil {
			return fmt.Errorf("mouse move: %w", err)
		}
		if err := sleep(ctx, e.drawScrollPause()); err != nil {
			return err
		}
	}

	for range e.human.MaxScrollSteps {
		var m types.ScrollMetrics
		if err := page.Evaluate(ctx, scrollMetricsScript, &m); err != nil {
			return fmt.Errorf("read scroll position: %w", err)
		}
		if m.AtBottom() {
			return nil
		}
		if err := page.Evaluate(ctx, scrollByScript(e.drawScrollStep()), nil); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if err := sleep(ctx, e.drawScrollPause()); err != nil {
			return err
		}
	}
	return nil
}

// Pause waits for a random duration drawn from the delay policy.
func (e *Emulator) Pause(ctx context.Context) error {
	e.mu.Lock()
	d := e.delay.draw(e.rnd)
	e.mu.Unlock()
	return sleep(ctx, d)
}

// pointerPath returns MouseMoves points, each different from every other.
func (e *Emulator) pointerPath(vp types.Viewport) [][2]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, h := int64(vp.Width), int64(vp.Height)
	moves := int(min(int64(e.human.MouseMoves), w*h))
	seen := make(map[[2]float64]bool, moves)
	path := make([][2]float64, 0, moves)
	for len(path) < moves {
		p := [2]float64{float64(e.rnd.Int64N(w)), float64(e.rnd.Int64N(h))}
		if seen[p] {
			continue
		}
		seen[p] = true
		path = append(path, p)
	}
	return path
}

func (e *Emulator) drawScrollStep() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.human.ScrollStepMin + e.rnd.IntN(e.human.ScrollStepMax-e.human.ScrollStepMin+1)
}

func (e *Emulator) drawScrollPause() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.human.ScrollPause.draw(e.rnd)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
