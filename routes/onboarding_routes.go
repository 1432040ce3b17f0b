package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/Logan-Myn/dancehub-v3-sub000/handlers"
	"github.com/Logan-Myn/dancehub-v3-sub000/middleware"
)

func OnboardingRoutes(app *fiber.App, h *handlers.Handler, secret string) {
	api := app.Group("/api/v1")

	onboarding := api.Group("/communities/:slug/onboarding", middleware.Protected(secret))
	onboarding.Post("", h.OpenOnboarding)
	onboarding.Get("", h.GetOnboarding)
	onboarding.Delete("", h.CloseOnboarding)
	onboarding.Put("/steps/:step", h.SaveStep)
	onboarding.Post("/next", h.NextStep)
	onboarding.Post("/previous", h.PreviousStep)
	onboarding.Post("/jump/:step", h.JumpToStep)
	onboarding.Post("/finish", h.FinishOnboarding)
	onboarding.Post("/documents", h.UploadDocument)
	onboarding.Get("/status", h.AccountStatus)

	ws := api.Group("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	ws.Get("/communities/:slug/onboarding", websocket.New(h.ServeOnboardingWs))
}
