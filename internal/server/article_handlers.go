package server

import (
	"fmt"
	"log/slog"

	"conduit/internal/featureflags"
	"conduit/internal/htmx"
	"conduit/internal/middleware"
	"conduit/internal/service"

	"github.com/gofiber/fiber/v2"
)

func articleInput(c *fiber.Ctx) service.ArticleInput {
	return service.ArticleInput{
		Title:   c.FormValue("title"),
		Summary: c.FormValue("summary"),
		Content: c.FormValue("content"),
		Tags:    c.FormValue("tags"),
	}
}

// Home lists articles, optionally filtered by ?tag= or ?own.
func (s *Server) Home(c *fiber.Ctx) error {
	ctx := c.UserContext()
	viewerID := middleware.CurrentUserID(c)
	in := service.ListArticlesInput{
		ViewerID: viewerID,
		Tag:      c.Query("tag"),
		OwnOnly:  hasQuery(c, "own"),
	}

	articles, err := s.articleService.List(ctx, in)
	if err != nil {
		return err
	}
	data := fiber.Map{
		"Articles": articles,
		"Tag":      in.Tag,
		"OwnOnly":  in.OwnOnly && viewerID != 0,
	}
	if htmx.IsRequest(c) {
		return partial(c, "articles/_articles", data)
	}

	if s.featureFlags.Enabled(featureflags.TagCloud, viewerID) {
		tags, err := s.articleService.Tags(ctx)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "tag cloud unavailable", slog.String("error", err.Error()))
		}
		data["Tags"] = tags
	}
	return page(c, "articles/home", data)
}

// NewArticle renders the empty article form.
func (s *Server) NewArticle(c *fiber.Ctx) error {
	return pageOrPartial(c, "articles/article_form", "articles/_article_form", fiber.Map{
		"Form":   service.ArticleInput{},
		"Action": "/new/",
	})
}

// CreateArticle handles the new article form.
func (s *Server) CreateArticle(c *fiber.Ctx) error {
	in := articleInput(c)
	article, err := s.articleService.Create(c.UserContext(), middleware.CurrentUserID(c), in)
	if err != nil {
		return formFailure(c, err, "articles/article_form", "articles/_article_form", fiber.Map{
			"Form":   in,
			"Action": "/new/",
		})
	}
	return htmx.Redirect(c, article.AbsoluteURL())
}

// ArticleDetail shows one article with its comments. The slug segment is
// cosmetic; only the id selects the row.
func (s *Server) ArticleDetail(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.UserContext()

	article, err := s.articleService.Get(ctx, id, middleware.CurrentUserID(c))
	if err != nil {
		return err
	}
	comments, err := s.commentService.ListByArticle(ctx, article.ID)
	if err != nil {
		return err
	}
	return page(c, "articles/article", fiber.Map{
		"Article":  article,
		"Comments": comments,
	})
}

// EditArticleForm renders the edit form. Articles of other authors are not found.
func (s *Server) EditArticleForm(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	article, err := s.articleService.EditForm(c.UserContext(), id, middleware.CurrentUserID(c))
	if err != nil {
		return err
	}
	return pageOrPartial(c, "articles/article_form", "articles/_article_form", fiber.Map{
		"Article": article,
		"Form": service.ArticleInput{
			Title:   article.Title,
			Summary: article.Summary,
			Content: article.Content,
			Tags:    article.TagString(),
		},
		"Action": editArticleURL(article.ID),
	})
}

// EditArticle handles the edit form.
func (s *Server) EditArticle(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	in := articleInput(c)
	article, err := s.articleService.Update(c.UserContext(), id, middleware.CurrentUserID(c), in)
	if err != nil {
		return formFailure(c, err, "articles/article_form", "articles/_article_form", fiber.Map{
			"Article": article,
			"Form":    in,
			"Action":  editArticleURL(id),
		})
	}
	return htmx.Redirect(c, article.AbsoluteURL())
}

// DeleteArticle removes an article of the current user and returns home.
func (s *Server) DeleteArticle(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.articleService.Delete(c.UserContext(), id, middleware.CurrentUserID(c)); err != nil {
		return err
	}
	return htmx.Redirect(c, "/")
}

// Favorite adds (POST) or removes (DELETE) the current user's favorite and
// renders the refreshed favorite control. The list renders the control as
// #favorite-<id>; any other target means the detail page.
func (s *Server) Favorite(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	add := c.Method() == fiber.MethodPost

	state, err := s.articleService.ToggleFavorite(c.UserContext(), id, middleware.CurrentUserID(c), add)
	if err != nil {
		return err
	}
	return partial(c, "articles/_favorite_action", fiber.Map{
		"Article":      state.Article,
		"IsFavorite":   state.IsFavorite,
		"NumFavorites": state.NumFavorites,
		"IsDetail":     htmx.Target(c) != fmt.Sprintf("favorite-%d", id),
	})
}

// TagsAutocomplete suggests tags for the last token of ?tags=.
func (s *Server) TagsAutocomplete(c *fiber.Ctx) error {
	tags, err := s.articleService.TagsAutocomplete(c.UserContext(), c.Query("tags"))
	if err != nil {
		return err
	}
	return partial(c, "articles/_tags", fiber.Map{"Tags": tags})
}

func editArticleURL(id uint) string {
	return fmt.Sprintf("/article/edit/%d/", id)
}
