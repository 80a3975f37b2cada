// Package service holds the application's use cases on top of the repositories.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"conduit/internal/models"
	"conduit/internal/notifications"
	"conduit/internal/observability"
	"conduit/internal/repository"
	"conduit/internal/tags"
)

const (
	maxTitleLen   = 120
	requiredField = "This field is required."
)

// ArticleService covers listing, authoring and favoriting articles.
type ArticleService struct {
	articleRepo repository.ArticleRepository
	tagRepo     repository.TagRepository
	notifier    *notifications.Notifier
}

// ArticleInput carries the raw article form values.
type ArticleInput struct {
	Title   string
	Summary string
	Content string
	Tags    string
}

// ListArticlesInput selects the home page feed.
type ListArticlesInput struct {
	ViewerID uint
	Tag      string
	// OwnOnly restricts the feed to the viewer's articles; ignored for anonymous viewers.
	OwnOnly bool
}

// FavoriteState is the result of a favorite toggle.
type FavoriteState struct {
	Article      *models.Article
	IsFavorite   bool
	NumFavorites int64
}

func NewArticleService(
	articleRepo repository.ArticleRepository,
	tagRepo repository.TagRepository,
	notifier *notifications.Notifier,
) *ArticleService {
	return &ArticleService{
		articleRepo: articleRepo,
		tagRepo:     tagRepo,
		notifier:    notifier,
	}
}

func maxLengthMessage(limit, got int) string {
	return fmt.Sprintf("Ensure this value has at most %d characters (it has %d).", limit, got)
}

func (in *ArticleInput) clean() models.FormErrors {
	in.Title = strings.TrimSpace(in.Title)
	in.Summary = strings.TrimSpace(in.Summary)

	errs := models.FormErrors{}
	if in.Title == "" {
		errs.Add("title", requiredField)
	} else if n := utf8.RuneCountInString(in.Title); n > maxTitleLen {
		errs.Add("title", maxLengthMessage(maxTitleLen, n))
	}
	return errs
}

// List returns the feed newest first, annotated for the viewer.
func (s *ArticleService) List(ctx context.Context, in ListArticlesInput) ([]*models.Article, error) {
	filter := repository.ArticleFilter{ViewerID: in.ViewerID, Tag: strings.TrimSpace(in.Tag)}
	if in.OwnOnly && in.ViewerID != 0 {
		filter.AuthorID = in.ViewerID
	}
	return s.articleRepo.List(ctx, filter)
}

func (s *ArticleService) Get(ctx context.Context, id, viewerID uint) (*models.Article, error) {
	return s.articleRepo.GetByID(ctx, id, viewerID)
}

func (s *ArticleService) Create(ctx context.Context, authorID uint, in ArticleInput) (article *models.Article, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ArticleService", "Create")
	defer func() { observability.EndSpan(span, err) }()

	if errs := in.clean(); errs.Any() {
		return nil, &models.FormError{Fields: errs}
	}

	article = &models.Article{
		Title:   in.Title,
		Summary: in.Summary,
		Content: in.Content,
		UserID:  authorID,
	}
	if article.Tags, err = s.tagRepo.GetOrCreate(ctx, tags.ParseTags(in.Tags)); err != nil {
		return nil, err
	}
	if err = s.articleRepo.Create(ctx, article); err != nil {
		return nil, err
	}

	observability.RecordEvent(ctx, observability.EventArticleCreated,
		slog.Uint64("article_id", uint64(article.ID)),
		slog.Int("tags", len(article.Tags)))
	return article, nil
}

// EditForm loads an article for its author. Anyone else gets not-found.
func (s *ArticleService) EditForm(ctx context.Context, id, authorID uint) (*models.Article, error) {
	return s.articleRepo.GetOwned(ctx, id, authorID)
}

// Update applies the form to an article owned by authorID. On validation
// failure the loaded article is returned with the error so the form can be
// re-rendered.
func (s *ArticleService) Update(ctx context.Context, id, authorID uint, in ArticleInput) (article *models.Article, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ArticleService", "Update")
	defer func() { observability.EndSpan(span, err) }()

	article, err = s.articleRepo.GetOwned(ctx, id, authorID)
	if err != nil {
		return nil, err
	}
	if errs := in.clean(); errs.Any() {
		return article, &models.FormError{Fields: errs}
	}

	article.Title = in.Title
	article.Summary = in.Summary
	article.Content = in.Content
	if article.Tags, err = s.tagRepo.GetOrCreate(ctx, tags.ParseTags(in.Tags)); err != nil {
		return nil, err
	}
	if err = s.articleRepo.Update(ctx, article); err != nil {
		return nil, err
	}

	observability.RecordEvent(ctx, observability.EventArticleUpdated, slog.Uint64("article_id", uint64(article.ID)))
	return article, nil
}

func (s *ArticleService) Delete(ctx context.Context, id, authorID uint) error {
	article, err := s.articleRepo.GetOwned(ctx, id, authorID)
	if err != nil {
		return err
	}
	if err := s.articleRepo.Delete(ctx, article); err != nil {
		return err
	}
	observability.RecordEvent(ctx, observability.EventArticleDeleted, slog.Uint64("article_id", uint64(id)))
	return nil
}

// ToggleFavorite adds (add=true) or removes the viewer's favorite. Authors
// cannot favorite their own articles; that lookup is a not-found.
func (s *ArticleService) ToggleFavorite(ctx context.Context, id, viewerID uint, add bool) (state *FavoriteState, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ArticleService", "ToggleFavorite")
	defer func() { observability.EndSpan(span, err) }()

	article, err := s.articleRepo.GetFavoritable(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	count, err := s.articleRepo.SetFavorite(ctx, article.ID, viewerID, add)
	if err != nil {
		return nil, err
	}
	article.IsFavorite = add
	article.NumFavorites = int(count)

	event := observability.EventFavoriteRemoved
	if add {
		event = observability.EventFavoriteAdded
		if err := s.notifier.PublishUser(ctx, article.UserID, notifications.Event{
			Type:      notifications.EventArticleFavorited,
			ActorID:   viewerID,
			ArticleID: article.ID,
		}); err != nil {
			slog.Default().WarnContext(ctx, "favorite notification failed", slog.String("error", err.Error()))
		}
	}
	observability.RecordEvent(ctx, event, slog.Uint64("article_id", uint64(article.ID)))

	return &FavoriteState{Article: article, IsFavorite: add, NumFavorites: count}, nil
}

// TagsAutocomplete suggests tags for the last token of raw.
func (s *ArticleService) TagsAutocomplete(ctx context.Context, raw string) ([]models.Tag, error) {
	search := tags.LastToken(raw)
	if search == "" {
		return nil, nil
	}
	return s.tagRepo.SearchPrefix(ctx, search)
}

// Tags returns the tag cloud.
func (s *ArticleService) Tags(ctx context.Context) ([]models.Tag, error) {
	return s.tagRepo.All(ctx)
}
