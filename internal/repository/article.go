package repository

import (
	"context"
	"errors"

	"conduit/internal/cache"
	"conduit/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArticleFilter narrows List. Zero values mean no filtering.
type ArticleFilter struct {
	// ViewerID annotates is_favorite; 0 is an anonymous viewer.
	ViewerID      uint
	Tag           string
	AuthorID      uint
	FavoritedOnly bool
}

// ArticleRepository defines the interface for article data operations
type ArticleRepository interface {
	List(ctx context.Context, filter ArticleFilter) ([]*models.Article, error)
	GetByID(ctx context.Context, id, viewerID uint) (*models.Article, error)
	GetOwned(ctx context.Context, id, authorID uint) (*models.Article, error)
	GetFavoritable(ctx context.Context, id, viewerID uint) (*models.Article, error)
	Create(ctx context.Context, article *models.Article) error
	Update(ctx context.Context, article *models.Article) error
	Delete(ctx context.Context, article *models.Article) error
	SetFavorite(ctx context.Context, articleID, userID uint, on bool) (int64, error)
}

type articleRepository struct {
	db *gorm.DB
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{db: db}
}

// withFavorites computes the favorite count and the viewer's favorite flag
// in the same SELECT. Anonymous viewers get a constant false.
func withFavorites(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "articles.*, " +
		"(SELECT COUNT(*) FROM article_favorites WHERE article_favorites.article_id = articles.id) AS num_favorites"

	if viewerID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM article_favorites WHERE article_favorites.article_id = articles.id AND article_favorites.user_id = ?) AS is_favorite", viewerID)
	}
	return db.Select(selectQuery + ", false AS is_favorite")
}

func preloadTags(db *gorm.DB) *gorm.DB {
	return db.Order("tags.name ASC")
}

func (r *articleRepository) List(ctx context.Context, filter ArticleFilter) ([]*models.Article, error) {
	q := withFavorites(readDB(r.db).WithContext(ctx).Model(&models.Article{}), filter.ViewerID).
		Preload("User").
		Preload("Tags", preloadTags)

	if filter.AuthorID != 0 {
		q = q.Where("articles.user_id = ?", filter.AuthorID)
	}
	if filter.Tag != "" {
		q = q.Where("articles.id IN (SELECT article_tags.article_id FROM article_tags JOIN tags ON tags.id = article_tags.tag_id WHERE tags.name = ?)", filter.Tag)
	}
	if filter.FavoritedOnly {
		q = q.Where("EXISTS (SELECT 1 FROM article_favorites WHERE article_favorites.article_id = articles.id)")
	}

	var articles []*models.Article
	if err := q.Order("articles.created_at DESC").Order("articles.id DESC").Find(&articles).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return articles, nil
}

func (r *articleRepository) first(ctx context.Context, viewerID uint, scope func(*gorm.DB) *gorm.DB, id uint) (*models.Article, error) {
	var article models.Article
	q := withFavorites(readDB(r.db).WithContext(ctx).Model(&models.Article{}), viewerID).
		Preload("User").
		Preload("Tags", preloadTags).
		Where("articles.id = ?", id)
	if scope != nil {
		q = scope(q)
	}
	if err := q.First(&article).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Article", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &article, nil
}

func (r *articleRepository) GetByID(ctx context.Context, id, viewerID uint) (*models.Article, error) {
	if viewerID != 0 {
		return r.first(ctx, viewerID, nil, id)
	}

	var article models.Article
	err := cache.Aside(ctx, cache.ArticleKey(id), &article, cache.ArticleTTL, func() error {
		found, err := r.first(ctx, 0, nil, id)
		if err != nil {
			return err
		}
		article = *found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// GetOwned finds the article only when authorID wrote it.
func (r *articleRepository) GetOwned(ctx context.Context, id, authorID uint) (*models.Article, error) {
	return r.first(ctx, authorID, func(db *gorm.DB) *gorm.DB {
		return db.Where("articles.user_id = ?", authorID)
	}, id)
}

// GetFavoritable finds the article only when viewerID did not write it.
func (r *articleRepository) GetFavoritable(ctx context.Context, id, viewerID uint) (*models.Article, error) {
	return r.first(ctx, viewerID, func(db *gorm.DB) *gorm.DB {
		return db.Where("articles.user_id <> ?", viewerID)
	}, id)
}

func (r *articleRepository) Create(ctx context.Context, article *models.Article) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(article).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.TagCloudKey)
	return nil
}

// Update saves the article columns and replaces its tag set.
func (r *articleRepository) Update(ctx context.Context, article *models.Article) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(article).Updates(map[string]interface{}{
			"title":   article.Title,
			"summary": article.Summary,
			"content": article.Content,
		}).Error; err != nil {
			return err
		}
		if len(article.Tags) == 0 {
			return tx.Model(article).Association("Tags").Clear()
		}
		return tx.Model(article).Association("Tags").Replace(article.Tags)
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateArticle(ctx, article.ID)
	return nil
}

// Delete removes the article; comments, favorites and tag links cascade.
func (r *articleRepository) Delete(ctx context.Context, article *models.Article) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// explicit deletes keep sqlite without foreign keys consistent too
		if err := tx.Where("article_id = ?", article.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("article_id = ?", article.ID).Delete(&models.ArticleFavorite{}).Error; err != nil {
			return err
		}
		if err := tx.Model(article).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(&models.Article{}, article.ID).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateArticle(ctx, article.ID)
	return nil
}

// SetFavorite adds or removes the favorite and returns the resulting count.
// Both directions are idempotent.
func (r *articleRepository) SetFavorite(ctx context.Context, articleID, userID uint, on bool) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if on {
			fav := models.ArticleFavorite{ArticleID: articleID, UserID: userID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit("Article", "User").Create(&fav).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Where("article_id = ? AND user_id = ?", articleID, userID).Delete(&models.ArticleFavorite{}).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.ArticleFavorite{}).Where("article_id = ?", articleID).Count(&count).Error
	})
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.ArticleKey(articleID))
	return count, nil
}
