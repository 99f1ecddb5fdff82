package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
	"github.com/LouYuanbo1/catalogsync/internal/logger"
	"github.com/cenkalti/backoff/v4"
)

type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeRejected means the entry failed validation and nothing was written.
	OutcomeRejected Outcome = "rejected"
)

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = 500 * time.Millisecond
)

type Syncer struct {
	store          Store
	enrichers      []Enricher
	log            logger.Interface
	now            func() time.Time
	maxRetries     uint64
	retryBackoff   time.Duration
	requestTimeout time.Duration
}

type Option func(*Syncer)

func WithEnrichers(enrichers ...Enricher) Option {
	return func(s *Syncer) {
		s.enrichers = append(s.enrichers, enrichers...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

// WithRetry sets how often a failing store call is retried and the first
// backoff interval. maxRetries 0 disables retries.
func WithRetry(maxRetries uint64, initial time.Duration) Option {
	return func(s *Syncer) {
		s.maxRetries = maxRetries
		if initial > 0 {
			s.retryBackoff = initial
		}
	}
}

// WithRequestTimeout bounds each individual store call.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Syncer) {
		s.requestTimeout = d
	}
}

func NewSyncer(store Store, log logger.Interface, opts ...Option) *Syncer {
	s := &Syncer{
		store:        store,
		log:          log.WithComponent("catalog"),
		now:          time.Now,
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert inserts entry or overwrites the stored record with the same key.
// Entries without any price are rejected without touching the store.
// Re-submitting identical content only refreshes UpdatedAt.
func (s *Syncer) Upsert(ctx context.Context, entry *model.CatalogEntry) (Outcome, error) {
	if entry == nil || !entry.HasPrice() {
		if entry != nil {
			s.log.Warn("rejecting entry without price", "key", entry.StableKey, "url", entry.SourceURL, "variant", entry.VariantIndex)
		}
		return OutcomeRejected, nil
	}
	if entry.StableKey == "" {
		entry.StableKey = model.StableKey(entry.SourceURL, entry.VariantIndex)
	}
	key := entry.StableKey
	hash := entry.Fingerprint()
	now := s.now().UTC()

	existing, err := s.find(ctx, key)
	if err != nil {
		return "", err
	}

	if existing == nil {
		rec := entry.Clone()
		rec.ContentHash = hash
		rec.CreatedAt = now
		rec.UpdatedAt = now
		s.enrich(ctx, rec)

		err = s.withRetry(ctx, func(ctx context.Context) error { return s.store.Insert(ctx, rec) })
		if err == nil {
			s.log.Debug("catalog entry inserted", "key", key, "name", rec.Name)
			return OutcomeInserted, nil
		}
		if !errors.Is(err, ErrDuplicate) {
			return "", fmt.Errorf("insert %s: %w", key, err)
		}
		// Another writer inserted the key between our read and write.
		existing, err = s.find(ctx, key)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return "", fmt.Errorf("insert %s: %w", key, ErrDuplicate)
		}
	}

	if existing.Fingerprint() == hash {
		rec := existing.Clone()
		rec.ContentHash = hash
		rec.UpdatedAt = now
		if err := s.update(ctx, key, rec); err != nil {
			return "", err
		}
		return OutcomeUnchanged, nil
	}

	rec := entry.Clone()
	rec.ContentHash = hash
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = now
	if len(rec.AITags) == 0 {
		rec.AITags = append([]string(nil), existing.AITags...)
	}
	if len(rec.Embedding) == 0 {
		rec.Embedding = append([]float32(nil), existing.Embedding...)
	}
	s.enrich(ctx, rec)
	if err := s.update(ctx, key, rec); err != nil {
		return "", err
	}
	s.log.Debug("catalog entry updated", "key", key, "name", rec.Name)
	return OutcomeUpdated, nil
}

func (s *Syncer) find(ctx context.Context, key string) (*model.CatalogEntry, error) {
	var found *model.CatalogEntry
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		found, err = s.store.FindByKey(ctx, key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", key, err)
	}
	return found, nil
}

func (s *Syncer) update(ctx context.Context, key string, rec *model.CatalogEntry) error {
	err := s.withRetry(ctx, func(ctx context.Context) error { return s.store.Update(ctx, key, rec) })
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	return nil
}

// enrich runs every enricher; a failing one leaves its fields as they were.
func (s *Syncer) enrich(ctx context.Context, rec *model.CatalogEntry) {
	for _, e := range s.enrichers {
		if err := e.Enrich(ctx, rec); err != nil {
			s.log.Warn("enrichment failed", "enricher", e.Name(), "key", rec.StableKey, "error", err)
		}
	}
}

func (s *Syncer) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.retryBackoff
	eb.MaxInterval = 10 * s.retryBackoff
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, s.maxRetries), ctx)
	return backoff.Retry(func() error {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if s.requestTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		}
		defer cancel()

		err := op(callCtx)
		if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}
