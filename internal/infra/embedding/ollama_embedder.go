package embedding

import (
	"context"
	"fmt"
	"strconv"

	"github.com/LouYuanbo1/catalogsync/internal/config"
	"github.com/cloudwego/eino-ext/components/embedding/ollama"
	"github.com/cloudwego/eino/components/embedding"
)

// Embedder turns texts into dense vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	BatchSize() int
}

type embedder struct {
	model     embedding.Embedder
	batchSize int
}

func InitEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	model, err := ollama.NewEmbedder(ctx, &ollama.EmbeddingConfig{
		Model:   cfg.Embedder.Model,
		BaseURL: cfg.Embedder.Host + ":" + strconv.Itoa(cfg.Embedder.Port),
	})
	if err != nil {
		return nil, fmt.Errorf("init ollama embedder: %w", err)
	}
	return NewEmbedder(model, cfg.Embedder.BatchSize), nil
}

// NewEmbedder wraps any eino embedding component.
func NewEmbedder(model embedding.Embedder, batchSize int) Embedder {
	if batchSize <= 0 {
		batchSize = 16
	}
	return &embedder{model: model, batchSize: batchSize}
}

func (e *embedder) BatchSize() int {
	return e.batchSize
}

// Embed sends texts in chunks of BatchSize and narrows the float64 vectors
// the models return to float32.
func (e *embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vectors, err := e.model.EmbedStrings(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("embed batch %d-%d: got %d vectors", start, end, len(vectors))
		}
		for _, v64 := range vectors {
			v32 := make([]float32, len(v64))
			for i, f := range v64 {
				v32[i] = float32(f)
			}
			out = append(out, v32)
		}
	}
	return out, nil
}
