package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/domain/entity"
	"github.com/LouYuanbo1/catalogsync/internal/logger"
	"github.com/gocolly/colly/v2"
)

const (
	// a sitemap index may point at sitemaps, which are never nested further
	sitemapMaxDepth       = 2
	sitemapRequestTimeout = 30 * time.Second
)

type Option func(*collyCollector)

// WithTransport replaces the HTTP transport, mainly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *collyCollector) {
		c.transport = rt
	}
}

func WithUserAgent(ua string) Option {
	return func(c *collyCollector) {
		c.userAgent = ua
	}
}

type collyCollector struct {
	collectionPattern *regexp.Regexp
	userAgent         string
	transport         http.RoundTripper
	log               logger.Interface
}

// InitSitemapCollector keeps only URLs matching collectionPattern.
func InitSitemapCollector(collectionPattern string, log logger.Interface, opts ...Option) (SitemapCollector, error) {
	re, err := regexp.Compile(collectionPattern)
	if err != nil {
		return nil, fmt.Errorf("compile collection pattern: %w", err)
	}
	c := &collyCollector{collectionPattern: re, log: log.WithComponent("sitemap")}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newCollector builds a fresh colly collector, since colly remembers visited URLs.
func (c *collyCollector) newCollector(host string) *colly.Collector {
	opts := []colly.CollectorOption{
		colly.MaxDepth(sitemapMaxDepth),
		colly.AllowedDomains(host),
	}
	if c.userAgent != "" {
		opts = append(opts, colly.UserAgent(c.userAgent))
	}
	cc := colly.NewCollector(opts...)
	cc.SetRequestTimeout(sitemapRequestTimeout)
	if c.transport != nil {
		cc.WithTransport(c.transport)
	}
	return cc
}

func (c *collyCollector) Collect(ctx context.Context, sitemapURL string) ([]entity.CrawlTarget, error) {
	parsed, err := url.Parse(sitemapURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid sitemap url %q", sitemapURL)
	}

	cc := c.newCollector(parsed.Hostname())
	set := entity.NewTargetSet()
	var errs []error

	cc.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	cc.OnXML("//sitemapindex/sitemap/loc", func(e *colly.XMLElement) {
		loc := strings.TrimSpace(e.Text)
		if err := e.Request.Visit(loc); err != nil && !errors.Is(err, colly.ErrAlreadyVisited) {
			c.log.Warn("skip nested sitemap", "url", loc, "error", err)
		}
	})
	cc.OnXML("//urlset/url/loc", func(e *colly.XMLElement) {
		loc := strings.TrimSpace(e.Text)
		if !c.collectionPattern.MatchString(loc) {
			return
		}
		set.Add(entity.CrawlTarget{
			Kind:  entity.KindCollection,
			Title: entity.TitleFromURL(loc),
			URL:   loc,
		})
	})
	cc.OnError(func(r *colly.Response, err error) {
		errs = append(errs, fmt.Errorf("fetch %s (status %d): %w", r.Request.URL, r.StatusCode, err))
	})

	if err := cc.Visit(sitemapURL); err != nil {
		return nil, fmt.Errorf("visit sitemap: %w", err)
	}
	cc.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if set.Len() == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		c.log.Warn("sitemap fetch failed", "error", err)
	}
	c.log.Info("sitemap collected", "url", sitemapURL, "collections", set.Len())
	return set.Items(), nil
}
