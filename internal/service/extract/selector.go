package extract

import (
	"strings"

	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
	"github.com/PuerkitoBio/goquery"
)

// SelectorLayer falls back to common storefront markup.
type SelectorLayer struct {
	NameSelectors        []string
	DescriptionSelectors []string
	ImageSelectors       []string
	IngredientSelectors  []string
	// HeadingSelectors find section titles such as "Ingredients" whose
	// following sibling holds the section body.
	HeadingSelectors []string
}

func NewSelectorLayer() SelectorLayer {
	return SelectorLayer{
		NameSelectors: []string{
			"h1.product-title", "h1.product__title", ".product-single__title", ".product_title", "h1",
		},
		DescriptionSelectors: []string{
			".product-description", ".product__description", ".product-single__description",
			`[itemprop="description"]`, "#product-description", ".description",
		},
		ImageSelectors: []string{
			".product__media img", ".product-single__photo img", ".product-gallery img",
			`img[itemprop="image"]`, ".product img",
		},
		IngredientSelectors: []string{
			".ingredients li", ".product-ingredients li",
		},
		HeadingSelectors: []string{
			"h2", "h3", "h4", "h5", "strong", "summary", "button", ".accordion__title", ".tab-title",
		},
	}
}

func (SelectorLayer) Name() string { return "selector" }

func (l SelectorLayer) Apply(page *Page, e *model.CatalogEntry) {
	doc := page.Doc
	if e.Name == "" {
		e.Name = firstText(doc, l.NameSelectors)
	}
	if e.Description == "" {
		e.Description = firstText(doc, l.DescriptionSelectors)
	}
	if e.ImageURL == "" {
		e.ImageURL = firstImage(doc, l.ImageSelectors)
	}
	if len(e.Ingredients) == 0 {
		e.Ingredients = listItems(doc, l.IngredientSelectors)
	}
	if len(e.Ingredients) == 0 {
		e.Ingredients = sectionList(l.section(doc, "ingredient", "composition"))
	}
	if len(e.HealthBenefits) == 0 {
		e.HealthBenefits = sectionList(l.section(doc, "benefit"))
	}
	if e.Usage.Dosage == "" {
		e.Usage.Dosage = sectionText(l.section(doc, "dosage", "how to use", "directions"))
	}
	if e.Usage.Caution == "" {
		e.Usage.Caution = sectionText(l.section(doc, "caution", "warning", "precaution"))
	}
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if t := clean(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func firstImage(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		img := doc.Find(sel).First()
		for _, attr := range []string{"src", "data-src", "data-srcset", "srcset"} {
			v, ok := img.Attr(attr)
			if !ok || strings.TrimSpace(v) == "" {
				continue
			}
			// srcset: "url 1x, url 2x"
			first := strings.Fields(strings.Split(v, ",")[0])
			if len(first) > 0 {
				return first[0]
			}
		}
	}
	return ""
}

func listItems(doc *goquery.Document, selectors []string) []string {
	for _, sel := range selectors {
		var items []string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if t := clean(s.Text()); t != "" {
				items = append(items, t)
			}
		})
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

// section returns the body that follows the first heading mentioning any keyword.
func (l SelectorLayer) section(doc *goquery.Document, keywords ...string) *goquery.Selection {
	var body *goquery.Selection
	doc.Find(strings.Join(l.HeadingSelectors, ", ")).EachWithBreak(func(_ int, h *goquery.Selection) bool {
		title := strings.ToLower(clean(h.Text()))
		// headings are short; longer matches are prose mentioning the word
		if title == "" || len(title) > 60 || !containsAny(title, keywords) {
			return true
		}
		next := h.Next()
		if next.Length() == 0 {
			next = h.Parent().Next()
		}
		if next.Length() > 0 {
			body = next
			return false
		}
		return true
	})
	return body
}

func sectionList(s *goquery.Selection) []string {
	if s == nil {
		return nil
	}
	var items []string
	s.Find("li").Each(func(_ int, li *goquery.Selection) {
		if t := clean(li.Text()); t != "" {
			items = append(items, t)
		}
	})
	if len(items) > 0 {
		return items
	}
	return splitList(s.Text())
}

func sectionText(s *goquery.Selection) string {
	if s == nil {
		return ""
	}
	return clean(s.Text())
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
