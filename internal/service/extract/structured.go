package extract

import (
	"encoding/json"
	"strings"

	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
	"github.com/PuerkitoBio/goquery"
)

// StructuredDataLayer reads embedded schema.org Product JSON-LD. It is
// trusted for name, description, image and category only: prices follow the
// selected variant on screen while the embedded offer usually describes the
// first one.
type StructuredDataLayer struct{}

func (StructuredDataLayer) Name() string { return "structured_data" }

func (StructuredDataLayer) Apply(page *Page, e *model.CatalogEntry) {
	product := findProductLD(page.Doc)
	if product == nil {
		return
	}
	if e.Name == "" {
		e.Name = clean(stringField(product["name"]))
	}
	if e.Description == "" {
		e.Description = strings.TrimSpace(stripTags(stringField(product["description"])))
	}
	if e.ImageURL == "" {
		e.ImageURL = imageField(product["image"])
	}
	if e.Category == "" {
		e.Category = clean(stringField(product["category"]))
	}
}

func findProductLD(doc *goquery.Document) map[string]any {
	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return true
		}
		found = productNode(data)
		return found == nil
	})
	return found
}

// productNode walks arrays and @graph containers looking for a Product.
func productNode(v any) map[string]any {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if p := productNode(item); p != nil {
				return p
			}
		}
	case map[string]any:
		if isProductType(node["@type"]) {
			return node
		}
		if graph, ok := node["@graph"]; ok {
			return productNode(graph)
		}
	}
	return nil
}

func isProductType(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "Product" || v == "ProductGroup"
	case []any:
		for _, item := range v {
			if isProductType(item) {
				return true
			}
		}
	}
	return false
}

func stringField(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case map[string]any:
		return stringField(s["name"])
	case []any:
		if len(s) > 0 {
			return stringField(s[0])
		}
	}
	return ""
}

func imageField(v any) string {
	switch img := v.(type) {
	case string:
		return strings.TrimSpace(img)
	case []any:
		for _, item := range img {
			if u := imageField(item); u != "" {
				return u
			}
		}
	case map[string]any:
		if u, ok := img["url"].(string); ok {
			return strings.TrimSpace(u)
		}
		if u, ok := img["contentUrl"].(string); ok {
			return strings.TrimSpace(u)
		}
	}
	return ""
}

// stripTags removes markup some shops leave inside JSON-LD descriptions.
func stripTags(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return clean(doc.Text())
}
