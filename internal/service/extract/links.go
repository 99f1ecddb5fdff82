package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/LouYuanbo1/catalogsync/internal/domain/entity"
	"github.com/LouYuanbo1/catalogsync/internal/infra/crawler/types"
	"github.com/PuerkitoBio/goquery"
)

// Links lists same-host anchors on the page whose absolute URL matches
// pattern, deduplicated, in document order.
func Links(snap types.PageSnapshot, pattern *regexp.Regexp, kind entity.TargetKind, parent string) []entity.CrawlTarget {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.HTML))
	if err != nil {
		return nil
	}
	base, err := url.Parse(snap.URL)
	if err != nil {
		return nil
	}

	set := entity.NewTargetSet()
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := resolveAgainst(base, href)
		if abs == nil || (abs.Scheme != "http" && abs.Scheme != "https") {
			return
		}
		if base.Host != "" && !strings.EqualFold(abs.Host, base.Host) {
			return
		}
		abs.Fragment = ""
		link := abs.String()
		if !pattern.MatchString(link) {
			return
		}
		set.Add(entity.CrawlTarget{
			Kind:           kind,
			Title:          anchorTitle(a),
			URL:            link,
			DiscoveredFrom: parent,
		})
	})
	return set.Items()
}

func anchorTitle(a *goquery.Selection) string {
	if t := clean(a.Text()); t != "" {
		return t
	}
	for _, attr := range []string{"title", "aria-label"} {
		if v, ok := a.Attr(attr); ok && clean(v) != "" {
			return clean(v)
		}
	}
	if alt, ok := a.Find("img").First().Attr("alt"); ok {
		return clean(alt)
	}
	return ""
}

func resolveAgainst(base *url.URL, ref string) *url.URL {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(strings.ToLower(ref), "javascript:") {
		return nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil
	}
	return base.ResolveReference(u)
}

// resolveURL makes ref absolute against page, leaving it untouched on failure.
func resolveURL(page, ref string) string {
	if ref == "" {
		return ""
	}
	base, err := url.Parse(page)
	if err != nil {
		return ref
	}
	if u := resolveAgainst(base, ref); u != nil {
		return u.String()
	}
	return ref
}
