package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/config"
	"github.com/LouYuanbo1/catalogsync/internal/infra/crawler/options"
	"github.com/LouYuanbo1/catalogsync/internal/logger"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// mouseSteps is how many intermediate points a linear pointer move emits.
const mouseSteps = 12

type rodLauncher struct {
	cfg config.BrowserConfig
	log logger.Interface
}

func InitRodLauncher(cfg config.BrowserConfig, log logger.Interface) Launcher {
	return &rodLauncher{cfg: cfg, log: log.WithComponent("rod")}
}

func (rl *rodLauncher) Launch(ctx context.Context) (Session, error) {
	l := options.CreateLauncher(rl.cfg.UserMode,
		options.WithBin(rl.cfg.Bin),
		options.WithUserDataDir(rl.cfg.UserDataDir),
		options.WithHeadless(rl.cfg.Headless),
		options.WithDisableBlinkFeatures(rl.cfg.DisableBlinkFeatures),
		options.WithIncognito(rl.cfg.Incognito),
		options.WithDisableDevShmUsage(rl.cfg.DisableDevShmUsage),
		options.WithNoSandbox(rl.cfg.NoSandbox),
		options.WithUserAgent(rl.cfg.UserAgent),
		options.WithLeakless(rl.cfg.Leakless),
		options.WithWindowSize(rl.cfg.ViewportWidth, rl.cfg.ViewportHeight),
	)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: connect browser: %w", ErrLaunch, err)
	}
	rl.log.Info("browser connected", "control_url", controlURL, "headless", rl.cfg.Headless, "stealth", rl.cfg.Stealth)

	return &rodSession{
		browser:  browser,
		launcher: l,
		cfg:      rl.cfg,
	}, nil
}

type rodSession struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      config.BrowserConfig
}

func (rs *rodSession) OpenTab(ctx context.Context) (Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if rs.cfg.Stealth {
		page, err = stealth.Page(rs.browser)
	} else {
		page, err = rs.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}

	if rs.cfg.ViewportWidth > 0 && rs.cfg.ViewportHeight > 0 {
		err = page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             rs.cfg.ViewportWidth,
			Height:            rs.cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("set viewport: %w", err)
		}
	}
	return &rodPage{page: page}, nil
}

func (rs *rodSession) Close() error {
	err := rs.browser.Close()
	rs.launcher.Kill()
	return err
}

type rodPage struct {
	page *rod.Page
}

func (rp *rodPage) Goto(ctx context.Context, url string) error {
	p := rp.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

func (rp *rodPage) Evaluate(ctx context.Context, fn string, out any) error {
	res, err := rp.page.Context(ctx).Eval(fn)
	if err != nil {
		return fmt.Errorf("eval: %w", err)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(res.Value.JSON("", "")), out)
}

func (rp *rodPage) WaitForSelector(ctx context.Context, selector string) error {
	el, err := rp.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("find %s: %w", selector, err)
	}
	return el.WaitVisible()
}

func (rp *rodPage) WaitIdle(ctx context.Context, quiet time.Duration) error {
	wait := rp.page.Context(ctx).WaitRequestIdle(quiet, nil, nil, nil)
	wait()
	return ctx.Err()
}

func (rp *rodPage) MouseMove(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return rp.page.Mouse.MoveLinear(proto.Point{X: x, Y: y}, mouseSteps)
}

func (rp *rodPage) Close() error {
	return rp.page.Close()
}
