package repository

import (
	"context"
	"strings"

	"conduit/internal/cache"
	"conduit/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagRepository defines persistence operations for tags.
type TagRepository interface {
	GetOrCreate(ctx context.Context, names []string) ([]models.Tag, error)
	All(ctx context.Context) ([]models.Tag, error)
	SearchPrefix(ctx context.Context, prefix string) ([]models.Tag, error)
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository returns a new TagRepository implementation.
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

// GetOrCreate returns a tag row for every name, inserting missing ones.
// Concurrent creators of the same name converge on one row.
func (r *tagRepository) GetOrCreate(ctx context.Context, names []string) ([]models.Tag, error) {
	if len(names) == 0 {
		return nil, nil
	}
	rows := make([]models.Tag, 0, len(names))
	for _, name := range names {
		rows = append(rows, models.Tag{Name: name})
	}

	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	var tags []models.Tag
	if err := db.Where("name IN ?", names).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return tags, nil
}

// All returns every tag by name, served from the tag cloud cache when possible.
func (r *tagRepository) All(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := cache.Aside(ctx, cache.TagCloudKey, &tags, cache.TagCloudTTL, func() error {
		return readDB(r.db).WithContext(ctx).Order("name ASC").Find(&tags).Error
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return tags, nil
}

// SearchPrefix matches names starting with prefix, ignoring case. An empty
// prefix matches nothing and skips the query.
func (r *tagRepository) SearchPrefix(ctx context.Context, prefix string) ([]models.Tag, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, nil
	}
	var tags []models.Tag
	err := readDB(r.db).WithContext(ctx).
		Distinct("id", "name").
		Where(`LOWER(name) LIKE ? ESCAPE '\'`, strings.ToLower(escapeLike(prefix))+"%").
		Order("name ASC").
		Find(&tags).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return tags, nil
}
