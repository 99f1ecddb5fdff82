package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
	"github.com/google/uuid"
)

// NotAvailable marks a text field the extractor could not resolve.
const NotAvailable = "N/A"

// catalogNamespace seeds UUIDv5 stable keys. Changing it re-keys the whole catalog.
var catalogNamespace = uuid.MustParse("6f1c2b7e-3f5d-5a8e-9c41-2d7b0e8a4c19")

// Usage is the structured dosage information shown on a product page.
type Usage struct {
	Dosage  string `json:"dosage" db:"dosage"`
	Caution string `json:"caution" db:"caution"`
}

// CatalogEntry is one purchasable product variant.
type CatalogEntry struct {
	StableKey      string    `json:"stable_key"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	ListPrice      float64   `json:"list_price"`
	BusinessPrice  float64   `json:"business_price"`
	PointValue     int       `json:"point_value"`
	Description    string    `json:"description"`
	Ingredients    []string  `json:"ingredients"`
	HealthBenefits []string  `json:"health_benefits"`
	Usage          Usage     `json:"usage"`
	SourceURL      string    `json:"source_url"`
	ImageURL       string    `json:"image_url"`
	VariantIndex   int       `json:"variant_index"`
	VariantLabel   string    `json:"variant_label"`
	AITags         []string  `json:"ai_tags"`
	ContentHash    string    `json:"content_hash"`
	Embedding      []float32 `json:"embedding,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StableKey derives the idempotency key of a variant from its product URL and
// position. The URL is normalized first so tracking parameters and trailing
// slashes do not fork the key.
func StableKey(sourceURL string, variantIndex int) string {
	name := NormalizeURL(sourceURL) + "#" + strconv.Itoa(variantIndex)
	return uuid.NewSHA1(catalogNamespace, []byte(name)).String()
}

// NormalizeURL lower-cases scheme and host and drops query, fragment and
// trailing slash. Unparseable input is returned trimmed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// HasPrice reports whether the entry carries at least one real price.
// Skeleton pages rendered before price hydration fail this check.
func (e *CatalogEntry) HasPrice() bool {
	return e.ListPrice > 0 || e.BusinessPrice > 0
}

// fingerprintView is the content-only projection hashed by Fingerprint.
type fingerprintView struct {
	StableKey      string   `json:"k"`
	Name           string   `json:"n"`
	Category       string   `json:"c"`
	ListPrice      float64  `json:"lp"`
	BusinessPrice  float64  `json:"bp"`
	PointValue     int      `json:"pv"`
	Description    string   `json:"d"`
	Ingredients    []string `json:"i"`
	HealthBenefits []string `json:"hb"`
	Usage          Usage    `json:"u"`
	SourceURL      string   `json:"s"`
	ImageURL       string   `json:"img"`
	VariantIndex   int      `json:"vi"`
	VariantLabel   string   `json:"vl"`
}

// Fingerprint hashes the scraped content of the entry, ignoring bookkeeping
// fields (timestamps, embedding, AI tags, stored hash).
func (e *CatalogEntry) Fingerprint() string {
	view := fingerprintView{
		StableKey:      e.StableKey,
		Name:           e.Name,
		Category:       e.Category,
		ListPrice:      e.ListPrice,
		BusinessPrice:  e.BusinessPrice,
		PointValue:     e.PointValue,
		Description:    e.Description,
		Ingredients:    nonNil(e.Ingredients),
		HealthBenefits: nonNil(e.HealthBenefits),
		Usage:          e.Usage,
		SourceURL:      e.SourceURL,
		ImageURL:       e.ImageURL,
		VariantIndex:   e.VariantIndex,
		VariantLabel:   e.VariantLabel,
	}
	// json.Marshal of this struct cannot fail: no maps, channels or funcs.
	data, _ := json.Marshal(view)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Clone returns a deep copy.
func (e *CatalogEntry) Clone() *CatalogEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.Ingredients = append([]string(nil), e.Ingredients...)
	c.HealthBenefits = append([]string(nil), e.HealthBenefits...)
	c.AITags = append([]string(nil), e.AITags...)
	c.Embedding = append([]float32(nil), e.Embedding...)
	return &c
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (e *CatalogEntry) GetID() string {
	return e.StableKey
}

func (e *CatalogEntry) GetEmbeddingString() string {
	var b strings.Builder
	b.WriteString(e.Name)
	if e.Category != "" && e.Category != NotAvailable {
		b.WriteString(" | ")
		b.WriteString(e.Category)
	}
	if e.VariantLabel != "" {
		b.WriteString(" | ")
		b.WriteString(e.VariantLabel)
	}
	if e.Description != "" && e.Description != NotAvailable {
		b.WriteString("\n")
		b.WriteString(e.Description)
	}
	if len(e.Ingredients) > 0 {
		b.WriteString("\nIngredients: ")
		b.WriteString(strings.Join(e.Ingredients, ", "))
	}
	if len(e.HealthBenefits) > 0 {
		b.WriteString("\nBenefits: ")
		b.WriteString(strings.Join(e.HealthBenefits, ", "))
	}
	return b.String()
}

func (e *CatalogEntry) SetEmbedding(embedding []float32) {
	e.Embedding = embedding
}

func (e *CatalogEntry) GetEmbedding() []float32 {
	return e.Embedding
}

// EmbeddingDims must match the embedding model configured for the embedder.
var EmbeddingDims = 768

func (e *CatalogEntry) GetTypeMapping() *types.TypeMapping {
	dims := EmbeddingDims
	index := true
	return &types.TypeMapping{
		Properties: map[string]types.Property{
			"stable_key":      types.NewKeywordProperty(),
			"name":            types.NewTextProperty(),
			"category":        types.NewKeywordProperty(),
			"list_price":      types.NewDoubleNumberProperty(),
			"business_price":  types.NewDoubleNumberProperty(),
			"point_value":     types.NewIntegerNumberProperty(),
			"description":     types.NewTextProperty(),
			"ingredients":     types.NewKeywordProperty(),
			"health_benefits": types.NewKeywordProperty(),
			"usage":           types.NewObjectProperty(),
			"source_url":      types.NewKeywordProperty(),
			"image_url":       types.NewKeywordProperty(),
			"variant_index":   types.NewIntegerNumberProperty(),
			"variant_label":   types.NewKeywordProperty(),
			"ai_tags":         types.NewKeywordProperty(),
			"content_hash":    types.NewKeywordProperty(),
			"created_at":      types.NewDateProperty(),
			"updated_at":      types.NewDateProperty(),
			"embedding": &types.DenseVectorProperty{
				Dims:  &dims,
				Index: &index,
			},
		},
	}
}
