package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Logan-Myn/dancehub-v3-sub000/handlers"
)

// PaymentRoutes is unauthenticated; webhooks are verified by signature.
func PaymentRoutes(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")

	payments := api.Group("/payments")
	payments.Post("/webhook", h.StripeWebhook)
}
