package es

import (
	"context"

	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
)

// TypedEsClient stores documents of type D in a single index.
type TypedEsClient[D model.Document] interface {
	Index() string
	CreateIndexWithMapping(ctx context.Context) error
	// GetDoc returns the zero D and no error when the id is absent.
	GetDoc(ctx context.Context, id string) (D, bool, error)
	// CreateDoc fails with ErrConflict when the id already exists.
	CreateDoc(ctx context.Context, doc D) error
	IndexDocWithID(ctx context.Context, doc D) error
	CountDocs(ctx context.Context) (int64, error)
}
