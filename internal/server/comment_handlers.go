package server

import (
	"conduit/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// AddComment posts a comment on an article. On success the form comes back
// empty together with the new comment.
func (s *Server) AddComment(c *fiber.Ctx) error {
	articleID, err := parseID(c, "article_id")
	if err != nil {
		return err
	}
	content := c.FormValue("content")

	article, comment, err := s.commentService.Add(c.UserContext(), articleID, middleware.CurrentUserID(c), content)
	if err != nil {
		return formFailure(c, err, "comments/_comment_form", "comments/_comment_form", fiber.Map{
			"Article": article,
			"Content": content,
		})
	}
	return partial(c, "comments/_comment_form", fiber.Map{
		"Article":    article,
		"NewComment": comment,
	})
}

// EditCommentForm renders the inline edit form of the current user's comment.
func (s *Server) EditCommentForm(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	comment, err := s.commentService.GetOwned(c.UserContext(), id, middleware.CurrentUserID(c))
	if err != nil {
		return err
	}
	return partial(c, "comments/_comment_form", fiber.Map{
		"Comment": comment,
		"Content": comment.Content,
	})
}

// EditComment saves the inline edit form and renders the updated comment.
func (s *Server) EditComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	content := c.FormValue("content")

	comment, err := s.commentService.Update(c.UserContext(), id, middleware.CurrentUserID(c), content)
	if err != nil {
		return formFailure(c, err, "comments/_comment_form", "comments/_comment_form", fiber.Map{
			"Comment": comment,
			"Content": content,
		})
	}
	return partial(c, "comments/_comment", fiber.Map{"Comment": comment})
}

// DeleteComment removes the current user's comment. The empty body lets
// HTMX swap the comment out.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := s.commentService.Delete(c.UserContext(), id, middleware.CurrentUserID(c)); err != nil {
		return err
	}
	c.Status(fiber.StatusOK)
	return nil
}
