// Package htmx reads HTMX request headers and writes HTMX-aware responses.
package htmx

import (
	"github.com/gofiber/fiber/v2"
)

// Request and response header names.
const (
	HeaderRequest  = "HX-Request"
	HeaderTarget   = "HX-Target"
	HeaderTrigger  = "HX-Trigger"
	HeaderRedirect = "HX-Redirect"
)

// IsRequest reports whether the request was issued by HTMX.
func IsRequest(c *fiber.Ctx) bool {
	return c.Get(HeaderRequest) == "true"
}

// Target returns the id of the element HTMX will swap, if any.
func Target(c *fiber.Ctx) string {
	return c.Get(HeaderTarget)
}

// ClientRedirect tells HTMX to perform a full-page navigation to url.
func ClientRedirect(c *fiber.Ctx, url string) error {
	c.Set(HeaderRedirect, url)
	return c.SendStatus(fiber.StatusOK)
}

// Redirect uses ClientRedirect for HTMX requests and a 302 otherwise.
func Redirect(c *fiber.Ctx, url string) error {
	if IsRequest(c) {
		return ClientRedirect(c, url)
	}
	return c.Redirect(url, fiber.StatusFound)
}
