package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/config"
	"github.com/LouYuanbo1/catalogsync/internal/domain/entity"
	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
	"github.com/LouYuanbo1/catalogsync/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/catalogsync/internal/infra/crawler/types"
	"github.com/LouYuanbo1/catalogsync/internal/logger"
	"github.com/LouYuanbo1/catalogsync/internal/service/catalog"
	"github.com/LouYuanbo1/catalogsync/internal/service/extract"
	"github.com/cenkalti/backoff/v4"
)

// Extractor turns a rendered page into a catalog entry.
type Extractor interface {
	Extract(snap types.PageSnapshot, ec extract.Context) *model.CatalogEntry
}

// Sink receives every extracted entry.
type Sink interface {
	Upsert(ctx context.Context, entry *model.CatalogEntry) (catalog.Outcome, error)
}

// SeedSource lists collection pages from outside the site navigation,
// for example a sitemap.
type SeedSource interface {
	Collect(ctx context.Context, sitemapURL string) ([]entity.CrawlTarget, error)
}

// Observer is told about every finished scope and sync outcome.
type Observer interface {
	ScopeDone(scope Scope, err error)
	Synced(outcome catalog.Outcome)
	RunDone(elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ScopeDone(Scope, error)       {}
func (nopObserver) Synced(catalog.Outcome)       {}
func (nopObserver) RunDone(time.Duration, error) {}

// Driver walks collections, products and variants in one browser session.
type Driver struct {
	cfg               config.CrawlConfig
	launcher          chrome.Launcher
	extractor         Extractor
	sink              Sink
	seeds             SeedSource
	emulator          *Emulator
	waiter            *Waiter
	observer          Observer
	log               logger.Interface
	collectionPattern *regexp.Regexp
	productPattern    *regexp.Regexp
}

type DriverOption func(*Driver)

func WithSeedSource(src SeedSource) DriverOption {
	return func(d *Driver) {
		d.seeds = src
	}
}

func WithEmulator(e *Emulator) DriverOption {
	return func(d *Driver) {
		d.emulator = e
	}
}

func WithWaiter(w *Waiter) DriverOption {
	return func(d *Driver) {
		d.waiter = w
	}
}

func WithObserver(o Observer) DriverOption {
	return func(d *Driver) {
		d.observer = o
	}
}

func NewDriver(
	cfg config.CrawlConfig,
	launcher chrome.Launcher,
	extractor Extractor,
	sink Sink,
	log logger.Interface,
	opts ...DriverOption,
) (*Driver, error) {
	collectionPattern, err := regexp.Compile(cfg.CollectionLinkPattern)
	if err != nil {
		return nil, fmt.Errorf("collection link pattern: %w", err)
	}
	productPattern, err := regexp.Compile(cfg.ProductLinkPattern)
	if err != nil {
		return nil, fmt.Errorf("product link pattern: %w", err)
	}
	log = log.WithComponent("driver")
	d := &Driver{
		cfg:               cfg,
		launcher:          launcher,
		extractor:         extractor,
		sink:              sink,
		emulator:          EmulatorFromConfig(cfg),
		waiter:            NewWaiter(cfg, log),
		observer:          nopObserver{},
		log:               log,
		collectionPattern: collectionPattern,
		productPattern:    productPattern,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run performs one full crawl. Only a launch failure or a cancelled ctx is
// returned; every other failure is logged, counted in state and skipped.
func (d *Driver) Run(ctx context.Context, state *RunState) (err error) {
	start := time.Now()
	defer func() { d.observer.RunDone(time.Since(start), err) }()

	state.SetPhase(PhaseLaunching)
	session, err := d.launcher.Launch(ctx)
	if err != nil {
		if !errors.Is(err, chrome.ErrLaunch) {
			err = fmt.Errorf("%w: %w", chrome.ErrLaunch, err)
		}
		d.log.Error("browser launch failed, aborting run", "error", err)
		return err
	}
	defer func() {
		state.SetPhase(PhaseShutdown)
		if cerr := session.Close(); cerr != nil {
			d.log.Warn("close browser session", "error", cerr)
		}
	}()

	state.SetPhase(PhaseScanningNav)
	collections := d.discoverCollections(ctx, session, state)
	if d.cfg.MaxCollections > 0 && len(collections) > d.cfg.MaxCollections {
		collections = collections[:d.cfg.MaxCollections]
	}
	d.log.Info("collections discovered", "count", len(collections))

	products := entity.NewTargetSet()
	for _, c := range collections {
		if ctx.Err() != nil {
			break
		}
		cerr := d.processCollection(ctx, session, c, products, state)
		state.Record(ScopeCollection, cerr)
		d.observer.ScopeDone(ScopeCollection, cerr)
		if cerr != nil {
			d.log.Error("collection failed", "collection", c.Title, "url", c.URL, "class", Classify(cerr), "error", cerr)
		}
	}
	return ctx.Err()
}

// discoverCollections merges configured seeds, sitemap seeds and the links
// found on the home page. A failure in any source only shrinks the list.
func (d *Driver) discoverCollections(ctx context.Context, session chrome.Session, state *RunState) []entity.CrawlTarget {
	set := entity.NewTargetSet()
	for _, seed := range d.cfg.SeedCollections {
		u := resolveSeed(d.cfg.BaseURL, seed)
		set.Add(entity.CrawlTarget{Kind: entity.KindCollection, Title: entity.TitleFromURL(u), URL: u})
	}

	if d.seeds != nil && d.cfg.Sitemap.Enabled && d.cfg.Sitemap.URL != "" {
		found, err := d.seeds.Collect(ctx, d.cfg.Sitemap.URL)
		if err != nil {
			d.log.Warn("sitemap seeding failed", "url", d.cfg.Sitemap.URL, "error", err)
		}
		set.AddAll(found)
	}

	if d.cfg.BaseURL == "" || d.cfg.CollectionLinkPattern == "" {
		return set.Items()
	}
	err := d.withTab(ctx, session, func(page chrome.Page) error {
		if err := d.visit(ctx, page, d.cfg.BaseURL, state); err != nil {
			return err
		}
		snap, err := d.snapshot(ctx, page)
		if err != nil {
			return err
		}
		set.AddAll(extract.Links(snap, d.collectionPattern, entity.KindCollection, ""))
		return nil
	})
	if err != nil {
		d.log.Warn("navigation scan failed, using seeds only", "url", d.cfg.BaseURL, "error", err)
	}
	return set.Items()
}

func (d *Driver) processCollection(ctx context.Context, session chrome.Session, c entity.CrawlTarget, seen *entity.TargetSet, state *RunState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	log := d.log.With("collection", c.Title, "url", c.URL)

	var products []entity.CrawlTarget
	err = d.withTab(ctx, session, func(page chrome.Page) error {
		if err := d.visit(ctx, page, c.URL, state); err != nil {
			return err
		}
		if d.cfg.ProductGridSelector != "" && d.cfg.Stability.MaxIndicatorWait > 0 {
			gridCtx, cancel := context.WithTimeout(ctx, d.cfg.Stability.MaxIndicatorWait)
			if err := page.WaitForSelector(gridCtx, d.cfg.ProductGridSelector); err != nil {
				log.Debug("product grid not visible, scanning anyway", "error", err)
			}
			cancel()
		}
		state.SetPhase(PhaseCollectingProducts)
		snap, err := d.snapshot(ctx, page)
		if err != nil {
			return err
		}
		for _, p := range extract.Links(snap, d.productPattern, entity.KindProduct, collectionLabel(c)) {
			if d.cfg.MaxProductsPerCollection > 0 && len(products) >= d.cfg.MaxProductsPerCollection {
				break
			}
			if seen.Add(p) {
				products = append(products, p)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("collection %s: %w", c.URL, err)
	}
	log.Info("products collected", "count", len(products))

	for _, p := range products {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		perr := d.processProduct(ctx, session, p, state)
		state.Record(ScopeProduct, perr)
		d.observer.ScopeDone(ScopeProduct, perr)
		if perr != nil {
			log.Error("product failed", "product", p.Title, "product_url", p.URL, "class", Classify(perr), "error", perr)
		}
	}
	return nil
}

func (d *Driver) processProduct(ctx context.Context, session chrome.Session, p entity.CrawlTarget, state *RunState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	log := d.log.With("product", p.Title, "url", p.URL)

	err = d.withTab(ctx, session, func(page chrome.Page) error {
		if err := d.visit(ctx, page, p.URL, state); err != nil {
			return err
		}

		state.SetPhase(PhaseExpanding)
		if len(d.cfg.ExpandSelectors) > 0 {
			var clicked int
			if err := page.Evaluate(ctx, expandScript(d.cfg.ExpandSelectors), &clicked); err != nil {
				log.Debug("expand hidden content failed", "error", err)
			} else if clicked > 0 {
				if err := d.stabilize(ctx, page, state); err != nil {
					return err
				}
			}
		}

		variants := 0
		if d.cfg.VariantSelector != "" {
			if err := page.Evaluate(ctx, countScript(d.cfg.VariantSelector), &variants); err != nil {
				log.Warn("count variants failed, treating page as single variant", "error", err)
				variants = 0
			}
		}
		n := max(1, variants)
		for i := range n {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			verr := d.processVariant(ctx, page, p, i, variants > 0, state)
			if errors.Is(verr, errDiscarded) {
				state.RecordDiscarded(ScopeVariant)
				d.observer.ScopeDone(ScopeVariant, nil)
				continue
			}
			state.Record(ScopeVariant, verr)
			d.observer.ScopeDone(ScopeVariant, verr)
			if verr != nil {
				log.Error("variant failed", "variant", i, "class", Classify(verr), "error", verr)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("product %s: %w", p.URL, err)
	}
	return nil
}

var errDiscarded = errors.New("entry discarded")

func (d *Driver) processVariant(ctx context.Context, page chrome.Page, p entity.CrawlTarget, i int, selectable bool, state *RunState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()

	label := ""
	if selectable {
		state.SetPhase(PhaseSelecting)
		var clicked bool
		if err := page.Evaluate(ctx, clickNthScript(d.cfg.VariantSelector, i), &clicked); err != nil {
			return fmt.Errorf("select variant %d: %w", i, err)
		}
		if !clicked {
			return fmt.Errorf("select variant %d: swatch disappeared", i)
		}
		if err := page.Evaluate(ctx, labelNthScript(d.cfg.VariantSelector, i), &label); err != nil {
			label = ""
		}
		if err := d.stabilize(ctx, page, state); err != nil {
			return err
		}
	}
	if err := d.emulator.Pause(ctx); err != nil {
		return err
	}

	state.SetPhase(PhaseExtracting)
	snap, err := d.snapshot(ctx, page)
	if err != nil {
		return err
	}
	entry := d.extractor.Extract(snap, extract.Context{
		SourceURL:    p.URL,
		Category:     p.DiscoveredFrom,
		VariantIndex: i,
		VariantLabel: label,
	})

	state.SetPhase(PhaseSaving)
	outcome, err := d.sink.Upsert(ctx, entry)
	if err != nil {
		return fmt.Errorf("%w: variant %d: %w", ErrPersistence, i, err)
	}
	state.RecordOutcome(outcome)
	d.observer.Synced(outcome)
	if outcome == catalog.OutcomeRejected {
		return errDiscarded
	}
	return nil
}

// withTab opens a tab, runs fn and closes the tab exactly once, even when
// fn panics.
func (d *Driver) withTab(ctx context.Context, session chrome.Session, fn func(page chrome.Page) error) (err error) {
	page, err := session.OpenTab(ctx)
	if err != nil {
		return fmt.Errorf("open tab: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
		if cerr := page.Close(); cerr != nil {
			d.log.Warn("close tab", "error", cerr)
		}
	}()
	return fn(page)
}

// visit paces, navigates, stabilizes and emulates a visitor on target.
// Emulation runs before any link scan so hover and scroll driven content
// is rendered.
func (d *Driver) visit(ctx context.Context, page chrome.Page, target string, state *RunState) error {
	if err := d.emulator.Pause(ctx); err != nil {
		return err
	}
	state.SetPhase(PhaseNavigating)
	if err := d.navigate(ctx, page, target); err != nil {
		return err
	}
	if err := d.stabilize(ctx, page, state); err != nil {
		return err
	}
	if err := d.emulator.EmulateBrowsing(ctx, page); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.log.Debug("browsing emulation incomplete", "url", target, "error", err)
	}
	return nil
}

func (d *Driver) stabilize(ctx context.Context, page chrome.Page, state *RunState) error {
	state.SetPhase(PhaseStabilizing)
	return d.waiter.AwaitStable(ctx, page)
}

// navigate retries hard failures with backoff. A navigation that merely
// times out is accepted and the page is used as far as it loaded.
func (d *Driver) navigate(ctx context.Context, page chrome.Page, target string) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = d.cfg.RetryBackoff
	eb.MaxInterval = d.cfg.RetryBackoffMax
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, d.cfg.NavigationRetries), ctx)

	err := backoff.RetryNotify(func() error {
		navCtx, cancel := ctx, context.CancelFunc(func() {})
		if d.cfg.NavigationTimeout > 0 {
			navCtx, cancel = context.WithTimeout(ctx, d.cfg.NavigationTimeout)
		}
		defer cancel()
		err := page.Goto(navCtx, target)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		case errors.Is(err, context.DeadlineExceeded):
			d.log.Warn("navigation timed out, continuing with partial page", "url", target, "timeout", d.cfg.NavigationTimeout)
			return nil
		default:
			return err
		}
	}, b, func(err error, wait time.Duration) {
		d.log.Warn("navigation failed, retrying", "url", target, "retry_in", wait, "error", err)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %w", ErrNavigation, target, err)
	}
	return nil
}

func (d *Driver) snapshot(ctx context.Context, page chrome.Page) (types.PageSnapshot, error) {
	var snap types.PageSnapshot
	if err := page.Evaluate(ctx, snapshotScript, &snap); err != nil {
		return snap, fmt.Errorf("snapshot page: %w", err)
	}
	return snap, nil
}

func collectionLabel(c entity.CrawlTarget) string {
	if c.Title != "" {
		return c.Title
	}
	return entity.TitleFromURL(c.URL)
}

func resolveSeed(base, seed string) string {
	seed = strings.TrimSpace(seed)
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return seed
	}
	ref, err := url.Parse(seed)
	if err != nil {
		return seed
	}
	return b.ResolveReference(ref).String()
}
