package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"conduit/internal/models"
	"conduit/internal/notifications"
	"conduit/internal/observability"
	"conduit/internal/repository"
)

const maxCommentLen = 10000

type CommentService struct {
	commentRepo repository.CommentRepository
	articleRepo repository.ArticleRepository
	notifier    *notifications.Notifier
}

// NewCommentService wires the comment repositories. A nil notifier
// disables comment notifications.
func NewCommentService(
	commentRepo repository.CommentRepository,
	articleRepo repository.ArticleRepository,
	notifier *notifications.Notifier,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		articleRepo: articleRepo,
		notifier:    notifier,
	}
}

func cleanComment(content string) (string, models.FormErrors) {
	content = strings.TrimSpace(content)
	errs := models.FormErrors{}
	if content == "" {
		errs.Add("content", requiredField)
	} else if n := utf8.RuneCountInString(content); n > maxCommentLen {
		errs.Add("content", maxLengthMessage(maxCommentLen, n))
	}
	return content, errs
}

// Add posts a comment under an existing article. The article is returned
// even when the content is invalid so the form can be re-rendered.
func (s *CommentService) Add(ctx context.Context, articleID, authorID uint, content string) (*models.Article, *models.Comment, error) {
	article, err := s.articleRepo.GetByID(ctx, articleID, 0)
	if err != nil {
		return nil, nil, err
	}

	content, errs := cleanComment(content)
	if errs.Any() {
		return article, nil, &models.FormError{Fields: errs}
	}

	comment := &models.Comment{
		Content:   content,
		UserID:    authorID,
		ArticleID: article.ID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, nil, err
	}

	if article.UserID != authorID {
		if err := s.notifier.PublishUser(ctx, article.UserID, notifications.Event{
			Type:      notifications.EventCommentAdded,
			ActorID:   authorID,
			ArticleID: article.ID,
			CommentID: comment.ID,
		}); err != nil {
			slog.Default().WarnContext(ctx, "comment notification failed", slog.String("error", err.Error()))
		}
	}

	observability.RecordEvent(ctx, observability.EventCommentAdded,
		slog.Uint64("article_id", uint64(article.ID)),
		slog.Uint64("comment_id", uint64(comment.ID)))
	return article, comment, nil
}

// GetOwned loads a comment for its author. Anyone else gets not-found.
func (s *CommentService) GetOwned(ctx context.Context, id, authorID uint) (*models.Comment, error) {
	return s.commentRepo.GetOwned(ctx, id, authorID)
}

// Update edits an owned comment. On validation failure the unchanged
// comment is returned with the error.
func (s *CommentService) Update(ctx context.Context, id, authorID uint, content string) (*models.Comment, error) {
	comment, err := s.commentRepo.GetOwned(ctx, id, authorID)
	if err != nil {
		return nil, err
	}

	content, errs := cleanComment(content)
	if errs.Any() {
		return comment, &models.FormError{Fields: errs}
	}

	comment.Content = content
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *CommentService) Delete(ctx context.Context, id, authorID uint) error {
	comment, err := s.commentRepo.GetOwned(ctx, id, authorID)
	if err != nil {
		return err
	}
	if err := s.commentRepo.Delete(ctx, comment); err != nil {
		return err
	}
	observability.RecordEvent(ctx, observability.EventCommentDeleted, slog.Uint64("comment_id", uint64(id)))
	return nil
}

// ListByArticle returns the comments of an article, newest first.
func (s *CommentService) ListByArticle(ctx context.Context, articleID uint) ([]*models.Comment, error) {
	return s.commentRepo.ListByArticle(ctx, articleID)
}
