package handlers

import (
	_ "embed"

	"github.com/gofiber/fiber/v2"
)

//go:embed static/form.html
var formHTML []byte

// Form serves the upload page that posts to /api/split.
func Form(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(formHTML)
}
