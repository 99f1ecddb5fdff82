package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
	"github.com/LouYuanbo1/catalogsync/internal/service/catalog"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS catalog_entries (
	stable_key      TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	category        TEXT NOT NULL,
	list_price      DOUBLE PRECISION NOT NULL DEFAULT 0,
	business_price  DOUBLE PRECISION NOT NULL DEFAULT 0,
	point_value     INTEGER NOT NULL DEFAULT 0,
	description     TEXT NOT NULL,
	ingredients     TEXT[] NOT NULL DEFAULT '{}',
	health_benefits TEXT[] NOT NULL DEFAULT '{}',
	dosage          TEXT NOT NULL,
	caution         TEXT NOT NULL,
	source_url      TEXT NOT NULL,
	image_url       TEXT NOT NULL,
	variant_index   INTEGER NOT NULL DEFAULT 0,
	variant_label   TEXT NOT NULL DEFAULT '',
	ai_tags         TEXT[] NOT NULL DEFAULT '{}',
	content_hash    TEXT NOT NULL,
	embedding       DOUBLE PRECISION[],
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
)`

const columns = `stable_key, name, category, list_price, business_price, point_value,
	description, ingredients, health_benefits, dosage, caution, source_url, image_url,
	variant_index, variant_label, ai_tags, content_hash, embedding, created_at, updated_at`

const values = `:stable_key, :name, :category, :list_price, :business_price, :point_value,
	:description, :ingredients, :health_benefits, :dosage, :caution, :source_url, :image_url,
	:variant_index, :variant_label, :ai_tags, :content_hash, :embedding, :created_at, :updated_at`

type entryRow struct {
	StableKey      string          `db:"stable_key"`
	Name           string          `db:"name"`
	Category       string          `db:"category"`
	ListPrice      float64         `db:"list_price"`
	BusinessPrice  float64         `db:"business_price"`
	PointValue     int             `db:"point_value"`
	Description    string          `db:"description"`
	Ingredients    pq.StringArray  `db:"ingredients"`
	HealthBenefits pq.StringArray  `db:"health_benefits"`
	Dosage         string          `db:"dosage"`
	Caution        string          `db:"caution"`
	SourceURL      string          `db:"source_url"`
	ImageURL       string          `db:"image_url"`
	VariantIndex   int             `db:"variant_index"`
	VariantLabel   string          `db:"variant_label"`
	AITags         pq.StringArray  `db:"ai_tags"`
	ContentHash    string          `db:"content_hash"`
	Embedding      pq.Float64Array `db:"embedding"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func toRow(e *model.CatalogEntry) entryRow {
	var embedding pq.Float64Array
	if len(e.Embedding) > 0 {
		embedding = make(pq.Float64Array, len(e.Embedding))
		for i, f := range e.Embedding {
			embedding[i] = float64(f)
		}
	}
	return entryRow{
		StableKey:      e.StableKey,
		Name:           e.Name,
		Category:       e.Category,
		ListPrice:      e.ListPrice,
		BusinessPrice:  e.BusinessPrice,
		PointValue:     e.PointValue,
		Description:    e.Description,
		Ingredients:    nonNil(e.Ingredients),
		HealthBenefits: nonNil(e.HealthBenefits),
		Dosage:         e.Usage.Dosage,
		Caution:        e.Usage.Caution,
		SourceURL:      e.SourceURL,
		ImageURL:       e.ImageURL,
		VariantIndex:   e.VariantIndex,
		VariantLabel:   e.VariantLabel,
		AITags:         nonNil(e.AITags),
		ContentHash:    e.ContentHash,
		Embedding:      embedding,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func (r entryRow) toEntry() *model.CatalogEntry {
	var embedding []float32
	if len(r.Embedding) > 0 {
		embedding = make([]float32, len(r.Embedding))
		for i, f := range r.Embedding {
			embedding[i] = float32(f)
		}
	}
	return &model.CatalogEntry{
		StableKey:      r.StableKey,
		Name:           r.Name,
		Category:       r.Category,
		ListPrice:      r.ListPrice,
		BusinessPrice:  r.BusinessPrice,
		PointValue:     r.PointValue,
		Description:    r.Description,
		Ingredients:    orEmpty(r.Ingredients),
		HealthBenefits: orEmpty(r.HealthBenefits),
		Usage:          model.Usage{Dosage: r.Dosage, Caution: r.Caution},
		SourceURL:      r.SourceURL,
		ImageURL:       r.ImageURL,
		VariantIndex:   r.VariantIndex,
		VariantLabel:   r.VariantLabel,
		AITags:         orEmpty(r.AITags),
		ContentHash:    r.ContentHash,
		Embedding:      embedding,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func nonNil(s []string) pq.StringArray {
	if s == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(s)
}

// pq scans "{}" into a nil slice.
func orEmpty(a pq.StringArray) []string {
	if a == nil {
		return []string{}
	}
	return []string(a)
}

// CatalogStore keeps catalog entries in a single table keyed by stable_key.
type CatalogStore struct {
	db *sqlx.DB
}

var (
	_ catalog.Store   = (*CatalogStore)(nil)
	_ catalog.Counter = (*CatalogStore)(nil)
)

func NewCatalogStore(db *sqlx.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

func (s *CatalogStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create catalog_entries table: %w", err)
	}
	return nil
}

func (s *CatalogStore) FindByKey(ctx context.Context, key string) (*model.CatalogEntry, error) {
	var row entryRow
	err := s.db.GetContext(ctx, &row, `SELECT `+columns+` FROM catalog_entries WHERE stable_key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select catalog entry: %w", err)
	}
	return row.toEntry(), nil
}

func (s *CatalogStore) Insert(ctx context.Context, entry *model.CatalogEntry) error {
	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO catalog_entries (`+columns+`) VALUES (`+values+`) ON CONFLICT (stable_key) DO NOTHING`,
		toRow(entry))
	if err != nil {
		return fmt.Errorf("insert catalog entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return catalog.ErrDuplicate
	}
	return nil
}

func (s *CatalogStore) Update(ctx context.Context, key string, entry *model.CatalogEntry) error {
	row := toRow(entry)
	row.StableKey = key
	res, err := s.db.NamedExecContext(ctx, `UPDATE catalog_entries SET
		name = :name, category = :category, list_price = :list_price,
		business_price = :business_price, point_value = :point_value,
		description = :description, ingredients = :ingredients,
		health_benefits = :health_benefits, dosage = :dosage, caution = :caution,
		source_url = :source_url, image_url = :image_url,
		variant_index = :variant_index, variant_label = :variant_label,
		ai_tags = :ai_tags, content_hash = :content_hash, embedding = :embedding,
		created_at = :created_at, updated_at = :updated_at
		WHERE stable_key = :stable_key`, row)
	if err != nil {
		return fmt.Errorf("update catalog entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (s *CatalogStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM catalog_entries`); err != nil {
		return 0, fmt.Errorf("count catalog entries: %w", err)
	}
	return n, nil
}
