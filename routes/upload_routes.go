package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Logan-Myn/dancehub-v3-sub000/handlers"
	"github.com/Logan-Myn/dancehub-v3-sub000/middleware"
)

func UploadRoutes(app *fiber.App, h *handlers.Handler, secret string) {
	api := app.Group("/api/v1")

	api.Get("/communities/:slug/onboarding/documents/signature", middleware.Protected(secret), h.GenerateUploadSignature)
}
