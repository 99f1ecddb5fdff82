package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStableKeyDeterministic(t *testing.T) {
	a := StableKey("https://shop.example.com/products/aloe-juice", 2)
	b := StableKey("https://shop.example.com/products/aloe-juice", 2)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, StableKey("https://shop.example.com/products/aloe-juice", 1))
	assert.NotEqual(t, a, StableKey("https://shop.example.com/products/neem-tablets", 2))
}

func TestStableKeyIgnoresURLNoise(t *testing.T) {
	want := StableKey("https://shop.example.com/products/aloe-juice", 0)

	for _, u := range []string{
		"https://SHOP.example.com/products/aloe-juice/",
		"https://shop.example.com/products/aloe-juice?utm_source=menu",
		"https://shop.example.com/products/aloe-juice#reviews",
	} {
		assert.Equal(t, want, StableKey(u, 0), u)
	}
}

func TestHasPrice(t *testing.T) {
	tests := []struct {
		name  string
		entry CatalogEntry
		want  bool
	}{
		{"both zero", CatalogEntry{}, false},
		{"list only", CatalogEntry{ListPrice: 450}, true},
		{"business only", CatalogEntry{BusinessPrice: 399.5}, true},
		{"negative", CatalogEntry{ListPrice: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.HasPrice())
		})
	}
}

func TestFingerprintIgnoresBookkeeping(t *testing.T) {
	e := &CatalogEntry{StableKey: "k", Name: "Aloe Juice", ListPrice: 450, Ingredients: []string{"aloe"}}
	f := e.Fingerprint()

	c := e.Clone()
	c.AITags = []string{"digestion"}
	c.Embedding = []float32{0.1, 0.2}
	c.ContentHash = "stale"
	assert.Equal(t, f, c.Fingerprint())

	c.BusinessPrice = 399
	assert.NotEqual(t, f, c.Fingerprint())
}

func TestFingerprintNilAndEmptyListsMatch(t *testing.T) {
	a := &CatalogEntry{Name: "x"}
	b := &CatalogEntry{Name: "x", Ingredients: []string{}, HealthBenefits: []string{}}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestCloneIsDeep(t *testing.T) {
	e := &CatalogEntry{Ingredients: []string{"aloe"}}
	c := e.Clone()
	c.Ingredients[0] = "neem"
	assert.Equal(t, "aloe", e.Ingredients[0])
}

func TestEmbeddingStringSkipsPlaceholders(t *testing.T) {
	e := &CatalogEntry{Name: "Aloe Juice", Category: NotAvailable, Description: NotAvailable}
	assert.Equal(t, "Aloe Juice", e.GetEmbeddingString())
}
