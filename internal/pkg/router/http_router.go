package router

import (
	"github.com/TimoBecker/LingoPulse/internal/pkg/middleware"
	"github.com/TimoBecker/LingoPulse/internal/pkg/session"

	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"service": "lingopulse",
			"status":  "ok",
		})
	})
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
