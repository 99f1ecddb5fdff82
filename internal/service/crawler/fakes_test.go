package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
	"github.com/LouYuanbo1/catalogsync/internal/infra/crawler/chrome"
	"github.com/LouYuanbo1/catalogsync/internal/infra/crawler/types"
	"github.com/LouYuanbo1/catalogsync/internal/service/catalog"
	"github.com/LouYuanbo1/catalogsync/internal/service/extract"
)

type fixture struct {
	links    []string
	variants int
	// panicOnCount makes the variant count script blow up.
	panicOnCount bool
}

// fakeSite is a tiny in-memory web site served through fakePage.
type fakeSite struct {
	pages   map[string]fixture
	gotoErr map[string]error
	// slowIdle pages never reach network idle.
	slowIdle map[string]bool

	mu     sync.Mutex
	opened []*fakePage
	gotos  map[string]int
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		pages:    map[string]fixture{},
		gotoErr:  map[string]error{},
		slowIdle: map[string]bool{},
		gotos:    map[string]int{},
	}
}

func (s *fakeSite) html(f fixture) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, l := range f.links {
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, l, l[strings.LastIndex(l, "/")+1:])
	}
	b.WriteString("</body></html>")
	return b.String()
}

func (s *fakeSite) tabs() []*fakePage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakePage(nil), s.opened...)
}

type fakeLauncher struct {
	site    *fakeSite
	err     error
	session *fakeSession
}

func (l *fakeLauncher) Launch(context.Context) (chrome.Session, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.session = &fakeSession{site: l.site}
	return l.session, nil
}

type fakeSession struct {
	site   *fakeSite
	closed atomic.Int32
}

func (s *fakeSession) OpenTab(context.Context) (chrome.Page, error) {
	p := &fakePage{site: s.site}
	s.site.mu.Lock()
	s.site.opened = append(s.site.opened, p)
	s.site.mu.Unlock()
	return p, nil
}

func (s *fakeSession) Close() error {
	s.closed.Add(1)
	return nil
}

type fakePage struct {
	site    *fakeSite
	url     string
	scrollY float64
	moves   [][2]float64
	closed  atomic.Int32
}

func (p *fakePage) Goto(_ context.Context, url string) error {
	p.site.mu.Lock()
	p.site.gotos[url]++
	p.site.mu.Unlock()
	if err := p.site.gotoErr[url]; err != nil {
		return err
	}
	p.url = url
	p.scrollY = 0
	return nil
}

func (p *fakePage) Evaluate(_ context.Context, fn string, out any) error {
	f := p.site.pages[p.url]
	var v any
	switch {
	case strings.Contains(fn, "outerHTML"):
		v = types.PageSnapshot{URL: p.url, HTML: p.site.html(f), Text: "MRP 100"}
	case strings.Contains(fn, "scrollIntoView"):
		i := variantIndex(fn)
		v = i >= 0 && i < f.variants
	case strings.Contains(fn, `getAttribute("aria-label")`):
		v = fmt.Sprintf("Pack %d", variantIndex(fn)+1)
	case strings.Contains(fn, "getComputedStyle"):
		v = false
	case strings.Contains(fn, "for (const sel of"):
		v = 0
	case strings.Contains(fn, "innerWidth"):
		v = types.Viewport{Width: 800, Height: 600}
	case strings.Contains(fn, "scrollBy("):
		var dy float64
		_, _ = fmt.Sscanf(fn[strings.Index(fn, "scrollBy(0, ")+len("scrollBy(0, "):], "%g", &dy)
		p.scrollY += dy
		v = p.scrollY
	case strings.Contains(fn, "scrollHeight"):
		v = types.ScrollMetrics{ScrollY: p.scrollY, InnerHeight: 600, ScrollHeight: 1000}
	case strings.Contains(fn, ".length"):
		if f.panicOnCount {
			panic("count script crashed")
		}
		v = f.variants
	default:
		return fmt.Errorf("unexpected script %q", fn)
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// variantIndex pulls N out of "querySelectorAll(...)[N]".
func variantIndex(fn string) int {
	i := strings.Index(fn, ")[")
	if i < 0 {
		return -1
	}
	var n int
	_, _ = fmt.Sscanf(fn[i+2:], "%d", &n)
	return n
}

func (p *fakePage) WaitForSelector(context.Context, string) error { return nil }

func (p *fakePage) WaitIdle(ctx context.Context, _ time.Duration) error {
	if p.site != nil && p.site.slowIdle[p.url] {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *fakePage) MouseMove(_ context.Context, x, y float64) error {
	p.moves = append(p.moves, [2]float64{x, y})
	return nil
}

func (p *fakePage) Close() error {
	p.closed.Add(1)
	return nil
}

// fakeExtractor prices every page except those marked skeleton and panics
// on those marked panic.
type fakeExtractor struct{}

func (fakeExtractor) Extract(snap types.PageSnapshot, ec extract.Context) *model.CatalogEntry {
	if strings.Contains(ec.SourceURL, "panic") {
		panic("extractor crashed on " + ec.SourceURL)
	}
	e := &model.CatalogEntry{
		StableKey:    model.StableKey(ec.SourceURL, ec.VariantIndex),
		Name:         ec.SourceURL,
		Category:     ec.Category,
		SourceURL:    ec.SourceURL,
		VariantIndex: ec.VariantIndex,
		VariantLabel: ec.VariantLabel,
	}
	if !strings.Contains(ec.SourceURL, "skeleton") {
		e.ListPrice = 100
	}
	return e
}

type recordingSink struct {
	failFor string

	mu      sync.Mutex
	entries []*model.CatalogEntry
}

func (s *recordingSink) Upsert(_ context.Context, e *model.CatalogEntry) (catalog.Outcome, error) {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	if s.failFor != "" && strings.Contains(e.SourceURL, s.failFor) {
		return "", errors.New("store unreachable")
	}
	if !e.HasPrice() {
		return catalog.OutcomeRejected, nil
	}
	return catalog.OutcomeInserted, nil
}

func (s *recordingSink) sources() map[string][]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string][]int{}
	for _, e := range s.entries {
		out[e.SourceURL] = append(out[e.SourceURL], e.VariantIndex)
	}
	return out
}
