package extract

import (
	"strings"

	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
	"github.com/PuerkitoBio/goquery"
)

// MetaLayer reads OpenGraph and standard meta tags.
type MetaLayer struct{}

func (MetaLayer) Name() string { return "meta" }

func (MetaLayer) Apply(page *Page, e *model.CatalogEntry) {
	doc := page.Doc
	if e.Name == "" {
		e.Name = clean(metaContent(doc, `meta[property="og:title"]`))
	}
	if e.Description == "" {
		e.Description = clean(firstNonEmpty(
			metaContent(doc, `meta[property="og:description"]`),
			metaContent(doc, `meta[name="description"]`),
		))
	}
	if e.ImageURL == "" {
		e.ImageURL = firstNonEmpty(
			metaContent(doc, `meta[property="og:image:secure_url"]`),
			metaContent(doc, `meta[property="og:image"]`),
		)
	}
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
