package collector

import (
	"context"

	"github.com/LouYuanbo1/catalogsync/internal/domain/entity"
)

// SitemapCollector reads a sitemap (or sitemap index) over plain HTTP and
// returns the collection pages it lists.
type SitemapCollector interface {
	Collect(ctx context.Context, sitemapURL string) ([]entity.CrawlTarget, error)
}
