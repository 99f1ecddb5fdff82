// Package extract turns a rendered product page into a catalog entry.
//
// Extraction is layered: each Layer fills only the fields earlier layers left
// empty, and anything still missing at the end gets an explicit placeholder.
// Supporting a site redesign means adding or replacing a layer.
package extract

import (
	"fmt"
	"strings"

	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
	"github.com/LouYuanbo1/catalogsync/internal/infra/crawler/types"
	"github.com/LouYuanbo1/catalogsync/internal/logger"
	"github.com/PuerkitoBio/goquery"
)

// Context carries what the driver knows about the page being extracted.
type Context struct {
	SourceURL    string
	Category     string
	VariantIndex int
	VariantLabel string
}

// Layer is one extraction strategy.
type Layer interface {
	Name() string
	Apply(page *Page, entry *model.CatalogEntry)
}

// Page is the parsed snapshot handed to every layer.
type Page struct {
	Snapshot types.PageSnapshot
	Doc      *goquery.Document
	// Text is the visible page text with whitespace runs collapsed per line.
	Text string
}

type Extractor struct {
	layers []Layer
	log    logger.Interface
}

// New builds an extractor running layers in the given order.
// With no layers it uses DefaultLayers.
func New(log logger.Interface, layers ...Layer) *Extractor {
	if len(layers) == 0 {
		layers = DefaultLayers()
	}
	return &Extractor{layers: layers, log: log.WithComponent("extract")}
}

func DefaultLayers() []Layer {
	return []Layer{
		StructuredDataLayer{},
		MetaLayer{},
		NewPatternLayer(),
		NewSelectorLayer(),
	}
}

// Extract never fails: a field no layer could resolve gets its empty value.
func (x *Extractor) Extract(snap types.PageSnapshot, ec Context) *model.CatalogEntry {
	sourceURL := ec.SourceURL
	if sourceURL == "" {
		sourceURL = snap.URL
	}
	entry := &model.CatalogEntry{
		StableKey:    model.StableKey(sourceURL, ec.VariantIndex),
		SourceURL:    sourceURL,
		Category:     strings.TrimSpace(ec.Category),
		VariantIndex: ec.VariantIndex,
		VariantLabel: strings.TrimSpace(ec.VariantLabel),
	}

	page := x.parse(snap)
	for _, layer := range x.layers {
		x.apply(layer, page, entry)
	}
	entry.ImageURL = resolveURL(sourceURL, entry.ImageURL)
	applyDefaults(entry)
	return entry
}

func (x *Extractor) parse(snap types.PageSnapshot) *Page {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.HTML))
	if err != nil {
		x.log.Warn("unparseable page html", "url", snap.URL, "error", err)
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader("<html></html>"))
	}
	text := snap.Text
	if strings.TrimSpace(text) == "" {
		text = doc.Find("body").Text()
	}
	return &Page{Snapshot: snap, Doc: doc, Text: normalizeText(text)}
}

// apply isolates a misbehaving layer so the remaining layers still run.
func (x *Extractor) apply(layer Layer, page *Page, entry *model.CatalogEntry) {
	defer func() {
		if r := recover(); r != nil {
			x.log.Error("extraction layer panicked", "layer", layer.Name(), "url", page.Snapshot.URL, "panic", fmt.Sprint(r))
		}
	}()
	layer.Apply(page, entry)
}

func applyDefaults(e *model.CatalogEntry) {
	for _, s := range []*string{&e.Name, &e.Category, &e.Description, &e.Usage.Dosage, &e.Usage.Caution} {
		if strings.TrimSpace(*s) == "" {
			*s = model.NotAvailable
		}
	}
	if e.Ingredients == nil {
		e.Ingredients = []string{}
	}
	if e.HealthBenefits == nil {
		e.HealthBenefits = []string{}
	}
	if e.AITags == nil {
		e.AITags = []string{}
	}
	if e.ListPrice < 0 {
		e.ListPrice = 0
	}
	if e.BusinessPrice < 0 {
		e.BusinessPrice = 0
	}
	if e.PointValue < 0 {
		e.PointValue = 0
	}
}

// normalizeText collapses whitespace inside each line and drops blank lines.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
