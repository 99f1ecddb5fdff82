package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
	"github.com/LouYuanbo1/catalogsync/internal/service/catalog"
)

// Store keeps the catalog in process memory. Records are copied on the way
// in and out so callers never share state with the store.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*model.CatalogEntry
}

var (
	_ catalog.Store   = (*Store)(nil)
	_ catalog.Counter = (*Store)(nil)
)

func New() *Store {
	return &Store{entries: make(map[string]*model.CatalogEntry)}
}

func (s *Store) FindByKey(ctx context.Context, key string) (*model.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key].Clone(), nil
}

func (s *Store) Insert(ctx context.Context, entry *model.CatalogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.StableKey]; ok {
		return catalog.ErrDuplicate
	}
	s.entries[entry.StableKey] = entry.Clone()
	return nil
}

func (s *Store) Update(ctx context.Context, key string, entry *model.CatalogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return catalog.ErrNotFound
	}
	s.entries[key] = entry.Clone()
	return nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(s.Len()), nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// All returns copies of every record ordered by key.
func (s *Store) All() []*model.CatalogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.CatalogEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StableKey < out[j].StableKey })
	return out
}
