package model

import (
	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
)

// Document is what the search store needs from an indexed record.
type Document interface {
	GetID() string
	GetTypeMapping() *types.TypeMapping
	GetEmbeddingString() string
	SetEmbedding(embedding []float32)
	GetEmbedding() []float32
}

var _ Document = (*CatalogEntry)(nil)
