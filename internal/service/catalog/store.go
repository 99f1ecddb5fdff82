package catalog

import (
	"context"
	"errors"

	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
)

var (
	// ErrDuplicate is returned by Insert when the key is already stored.
	ErrDuplicate = errors.New("catalog entry already exists")
	// ErrNotFound is returned by Update when the key is not stored.
	ErrNotFound = errors.New("catalog entry not found")
)

// Store is the persistence contract the syncer relies on. Implementations
// must not assume exclusive access: other writers may touch the same keys.
type Store interface {
	// FindByKey returns nil and no error when the key is absent.
	FindByKey(ctx context.Context, key string) (*model.CatalogEntry, error)
	Insert(ctx context.Context, entry *model.CatalogEntry) error
	Update(ctx context.Context, key string, entry *model.CatalogEntry) error
}

// Counter is implemented by stores that can report how many entries they hold.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}
