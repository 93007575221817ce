// Package catalog maps detector labels to their spanish and quechua forms.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/example/yachay/internal/database"
	"github.com/example/yachay/pkg/models"
)

// ErrUnknownLabel is returned for a label with no translation
var ErrUnknownLabel = eris.New("catalog: unknown label")

// Catalog reads translations through a cache
type Catalog struct {
	repo  *database.TranslationRepository
	cache Cache
	log   *zap.Logger
}

// New creates a catalog over db. A nil cache disables caching.
func New(db *sqlx.DB, cache Cache, log *zap.Logger) *Catalog {
	if cache == nil {
		cache = noCache{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{
		repo:  database.NewTranslationRepository(db),
		cache: cache,
		log:   log.Named("catalog"),
	}
}

// NormalizeLabel folds detector output onto catalog keys
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}

// Lookup returns the translation of label or ErrUnknownLabel
func (c *Catalog) Lookup(ctx context.Context, label string) (*models.Translation, error) {
	key := NormalizeLabel(label)
	if key == "" {
		return nil, ErrUnknownLabel
	}

	if t, ok, err := c.cache.Get(ctx, key); err != nil {
		// a broken cache only costs a database read
		c.log.Warn("cache read failed", zap.String("label", key), zap.Error(err))
	} else if ok {
		return t, nil
	}

	t, err := c.repo.GetByLabel(ctx, key)
	if errors.Is(err, database.ErrNotFound) {
		return nil, eris.Wrapf(ErrUnknownLabel, "%q", key)
	}
	if err != nil {
		return nil, eris.Wrap(err, "catalog: lookup")
	}

	if err := c.cache.Set(ctx, t); err != nil {
		c.log.Warn("cache write failed", zap.String("label", key), zap.Error(err))
	}
	return t, nil
}

// Pool returns the whole catalog, used for exercise distractors
func (c *Catalog) Pool(ctx context.Context) ([]models.Translation, error) {
	ts, err := c.repo.GetAll(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: pool")
	}
	return ts, nil
}

// Save inserts or updates t and reports whether the label was new
func (c *Catalog) Save(ctx context.Context, t *models.Translation) (bool, error) {
	t.Label = NormalizeLabel(t.Label)
	t.Spanish = strings.TrimSpace(t.Spanish)
	t.Quechua = strings.TrimSpace(t.Quechua)
	if t.Label == "" || t.Spanish == "" || t.Quechua == "" {
		return false, eris.Errorf("catalog: incomplete translation %q", t.Label)
	}

	_, err := c.repo.GetByLabel(ctx, t.Label)
	created := errors.Is(err, database.ErrNotFound)
	if err != nil && !created {
		return false, eris.Wrap(err, "catalog: save")
	}
	if err := c.repo.Upsert(ctx, t); err != nil {
		return false, eris.Wrap(err, "catalog: save")
	}
	if err := c.cache.Delete(ctx, t.Label); err != nil {
		c.log.Warn("cache invalidation failed", zap.String("label", t.Label), zap.Error(err))
	}
	return created, nil
}
