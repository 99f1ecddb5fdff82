package es

import (
	"context"
	"errors"
	"fmt"

	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
	"github.com/LouYuanbo1/catalogsync/internal/service/catalog"
)

// CatalogStore persists catalog entries as documents keyed by StableKey.
type CatalogStore struct {
	client TypedEsClient[*model.CatalogEntry]
}

var (
	_ catalog.Store   = (*CatalogStore)(nil)
	_ catalog.Counter = (*CatalogStore)(nil)
)

func NewCatalogStore(client TypedEsClient[*model.CatalogEntry]) *CatalogStore {
	return &CatalogStore{client: client}
}

func (s *CatalogStore) FindByKey(ctx context.Context, key string) (*model.CatalogEntry, error) {
	doc, found, err := s.client.GetDoc(ctx, key)
	if err != nil || !found {
		return nil, err
	}
	return doc, nil
}

func (s *CatalogStore) Insert(ctx context.Context, entry *model.CatalogEntry) error {
	err := s.client.CreateDoc(ctx, entry)
	if errors.Is(err, ErrConflict) {
		return catalog.ErrDuplicate
	}
	return err
}

// Update overwrites the whole document. Elasticsearch index calls are
// upserts, so a missing key is recreated rather than reported.
func (s *CatalogStore) Update(ctx context.Context, key string, entry *model.CatalogEntry) error {
	if entry.StableKey != key {
		return fmt.Errorf("update key %q does not match entry key %q", key, entry.StableKey)
	}
	return s.client.IndexDocWithID(ctx, entry)
}

func (s *CatalogStore) Count(ctx context.Context) (int64, error) {
	return s.client.CountDocs(ctx)
}
