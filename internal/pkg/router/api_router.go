package router

import (
	"github.com/TimoBecker/LingoPulse/app/controllers"
	"github.com/TimoBecker/LingoPulse/internal/pkg/constants"
	"github.com/TimoBecker/LingoPulse/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// Billing provider webhooks (no session, credential-verified per request)
	api.Post(constants.BillingWebhookRoute, middleware.WebhookAuthMiddleware(controllers.WebhookSource()), controllers.HandleBillingWebhook)

	// API v1 routes
	v1 := api.Group("/v1")

	v1.Post(constants.AuthRegisterRoute, controllers.HandleAuthRegister)
	v1.Get(constants.AuthActivateRoute, controllers.HandleAuthActivate)
	v1.Post(constants.AuthLoginRoute, controllers.HandleAuthLogin)
	v1.Post(constants.AuthLogoutRoute, middleware.RequireAuth, controllers.HandleAuthLogout)

	v1.Post(constants.SubscriptionSync, middleware.RequireAuth, controllers.HandleSubscriptionSync)
	v1.Get(constants.SubscriptionHistory, middleware.RequireAuth, controllers.HandleGetSubscriptionHistory)
	v1.Get(constants.UserEntitlement, middleware.RequireAuth, controllers.HandleGetEntitlement)

	admin := v1.Group("/admin", middleware.RequireAdmin)
	admin.Get("/webhook-stats", controllers.HandleAdminWebhookStats)
	admin.Post("/webhook-stats/reset", controllers.HandleAdminResetCounters)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
