package catalog

import (
	"context"
	"fmt"

	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
)

// Enricher adds derived data to an entry before it is written. Enrichers
// only run when the scraped content is new or changed.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, entry *model.CatalogEntry) error
}

// Embedder turns texts into vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Classifier derives short topical tags for an entry.
type Classifier interface {
	Classify(ctx context.Context, entry *model.CatalogEntry) ([]string, error)
}

type embeddingEnricher struct {
	embedder Embedder
}

func NewEmbeddingEnricher(embedder Embedder) Enricher {
	return &embeddingEnricher{embedder: embedder}
}

func (e *embeddingEnricher) Name() string { return "embedding" }

func (e *embeddingEnricher) Enrich(ctx context.Context, entry *model.CatalogEntry) error {
	vectors, err := e.embedder.Embed(ctx, []string{entry.GetEmbeddingString()})
	if err != nil {
		return err
	}
	if len(vectors) != 1 {
		return fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	entry.SetEmbedding(vectors[0])
	return nil
}

type tagEnricher struct {
	classifier Classifier
}

func NewTagEnricher(classifier Classifier) Enricher {
	return &tagEnricher{classifier: classifier}
}

func (t *tagEnricher) Name() string { return "ai_tags" }

func (t *tagEnricher) Enrich(ctx context.Context, entry *model.CatalogEntry) error {
	tags, err := t.classifier.Classify(ctx, entry)
	if err != nil {
		return err
	}
	entry.AITags = tags
	return nil
}
