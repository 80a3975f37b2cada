package server

import (
	"net/url"
	"strings"

	"conduit/internal/htmx"
	"conduit/internal/models"

	"github.com/gofiber/fiber/v2"
)

// parseID reads a positive integer path parameter. Anything else is a 404,
// matching how a missing row is reported.
func parseID(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, fiber.ErrNotFound
	}
	return uint(id), nil
}

// hasQuery reports whether key is present in the query string, with or
// without a value, so "?own" and "?own=1" behave the same.
func hasQuery(c *fiber.Ctx, key string) bool {
	return c.Context().QueryArgs().Has(key)
}

// page renders a full page inside the base layout.
func page(c *fiber.Ctx, name string, data fiber.Map) error {
	return c.Render(name, data, baseLayout)
}

// partial renders a template fragment without the layout.
func partial(c *fiber.Ctx, name string, data fiber.Map) error {
	return c.Render(name, data)
}

// pageOrPartial renders the fragment for HTMX requests and the full page
// otherwise.
func pageOrPartial(c *fiber.Ctx, pageName, partialName string, data fiber.Map) error {
	if htmx.IsRequest(c) {
		return partial(c, partialName, data)
	}
	return page(c, pageName, data)
}

// formFailure renders the form again with status 200 when err carries field
// errors. Any other error is returned unchanged.
func formFailure(c *fiber.Ctx, err error, pageName, partialName string, data fiber.Map) error {
	fields, ok := models.AsFormErrors(err)
	if !ok {
		return err
	}
	data["Errors"] = fields
	c.Status(fiber.StatusOK)
	return pageOrPartial(c, pageName, partialName, data)
}

// safeNext only allows local absolute paths as a post-login destination.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return "/"
	}
	return next
}
