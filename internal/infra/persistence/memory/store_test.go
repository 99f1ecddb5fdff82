package memory

import (
	"context"
	"testing"

	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
	"github.com/LouYuanbo1/catalogsync/internal/service/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	s := New()

	got, err := s.FindByKey(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	e := &model.CatalogEntry{StableKey: "k1", Name: "Aloe", Ingredients: []string{"aloe"}}
	require.NoError(t, s.Insert(ctx, e))
	assert.ErrorIs(t, s.Insert(ctx, e), catalog.ErrDuplicate)
	assert.ErrorIs(t, s.Update(ctx, "k2", e), catalog.ErrNotFound)

	e.Ingredients[0] = "mutated after insert"
	got, err = s.FindByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "aloe", got.Ingredients[0])

	got.Name = "Aloe Juice"
	require.NoError(t, s.Update(ctx, "k1", got))
	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, "Aloe Juice", all[0].Name)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New()
	assert.ErrorIs(t, s.Insert(ctx, &model.CatalogEntry{StableKey: "k"}), context.Canceled)
	assert.Equal(t, 0, s.Len())
}
