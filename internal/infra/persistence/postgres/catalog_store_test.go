package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
	"github.com/LouYuanbo1/catalogsync/internal/service/catalog"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*CatalogStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewCatalogStore(sqlx.NewDb(db, "postgres")), mock
}

var rowColumns = []string{
	"stable_key", "name", "category", "list_price", "business_price", "point_value",
	"description", "ingredients", "health_benefits", "dosage", "caution", "source_url", "image_url",
	"variant_index", "variant_label", "ai_tags", "content_hash", "embedding", "created_at", "updated_at",
}

func TestFindByKey(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	testCases := []struct {
		name      string
		setupMock func(sqlmock.Sqlmock)
		want      *model.CatalogEntry
		wantErr   bool
	}{
		{
			name: "maps row to entry",
			setupMock: func(m sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(rowColumns).AddRow(
					"k1", "Aloe Vera Juice", "Juices", 1250.0, 999.0, 12,
					"N/A", "{\"Aloe vera gel\",Honey}", "{}", "30ml daily", "N/A", "https://shop.example.com/p/aloe", "N/A",
					0, "", "{digestion}", "abc", "{0.5,0.25}", created, created,
				)
				m.ExpectQuery("FROM catalog_entries WHERE stable_key").
					WithArgs("k1").
					WillReturnRows(rows)
			},
			want: &model.CatalogEntry{
				StableKey: "k1", Name: "Aloe Vera Juice", Category: "Juices",
				ListPrice: 1250, BusinessPrice: 999, PointValue: 12,
				Description:    "N/A",
				Ingredients:    []string{"Aloe vera gel", "Honey"},
				HealthBenefits: []string{},
				Usage:          model.Usage{Dosage: "30ml daily", Caution: "N/A"},
				SourceURL:      "https://shop.example.com/p/aloe",
				ImageURL:       "N/A",
				AITags:         []string{"digestion"},
				ContentHash:    "abc",
				Embedding:      []float32{0.5, 0.25},
				CreatedAt:      created,
				UpdatedAt:      created,
			},
		},
		{
			name: "missing key is not an error",
			setupMock: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("FROM catalog_entries").WillReturnError(sql.ErrNoRows)
			},
		},
		{
			name: "database failure",
			setupMock: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("FROM catalog_entries").WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tc.setupMock(mock)

			got, err := s.FindByKey(ctx, "k1")
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestInsertConflictIsDuplicate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO catalog_entries").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO catalog_entries").WillReturnResult(sqlmock.NewResult(0, 0))

	e := &model.CatalogEntry{StableKey: "k1", Name: "Aloe"}
	require.NoError(t, s.Insert(context.Background(), e))
	assert.ErrorIs(t, s.Insert(context.Background(), e), catalog.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingRowIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("UPDATE catalog_entries SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Update(context.Background(), "k1", &model.CatalogEntry{StableKey: "k1"})
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRowMappingNormalisesNilLists(t *testing.T) {
	row := toRow(&model.CatalogEntry{StableKey: "k"})
	assert.NotNil(t, row.Ingredients)
	assert.NotNil(t, row.AITags)
	assert.Nil(t, row.Embedding)
	assert.Nil(t, row.toEntry().Embedding)
}

func TestCount(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("connection refused"))
	_, err = s.Count(context.Background())
	assert.ErrorContains(t, err, "count catalog entries")
	assert.NoError(t, mock.ExpectationsWereMet())
}
