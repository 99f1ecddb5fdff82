package chrome

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/config"
	"github.com/LouYuanbo1/catalogsync/internal/logger"
)

// ErrLaunch wraps every failure to start or connect to a browser.
var ErrLaunch = errors.New("browser launch failed")

// Launcher starts a browser process.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session owns one browser process and the tabs opened in it.
type Session interface {
	OpenTab(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single browser tab.
type Page interface {
	// Goto navigates and waits for the load event.
	Goto(ctx context.Context, url string) error
	// Evaluate runs a JavaScript function expression such as
	// `() => document.title` and decodes its JSON result into out.
	// out may be nil. Promises are awaited.
	Evaluate(ctx context.Context, fn string, out any) error
	// WaitForSelector blocks until an element matching selector is visible.
	WaitForSelector(ctx context.Context, selector string) error
	// WaitIdle blocks until no network request was in flight for quiet.
	WaitIdle(ctx context.Context, quiet time.Duration) error
	MouseMove(ctx context.Context, x, y float64) error
	Close() error
}

// NewLauncher picks the backend named by cfg.Driver.
func NewLauncher(cfg config.BrowserConfig, log logger.Interface) (Launcher, error) {
	switch cfg.Driver {
	case "", "rod":
		return InitRodLauncher(cfg, log), nil
	case "chromedp":
		return InitChromedpLauncher(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}
}
