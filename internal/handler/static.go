package handler

import (
	_ "embed"

	"github.com/gofiber/fiber/v3"
)

//go:embed static/style.css
var stylesheet []byte

// RegisterStatic serves the embedded stylesheet.
func RegisterStatic(app *fiber.App) {
	app.Get("/static/style.css", func(c fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/css; charset=utf-8")
		c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
		return c.Send(stylesheet)
	})
}
