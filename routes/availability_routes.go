package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Logan-Myn/dancehub-v3-sub000/handlers"
	"github.com/Logan-Myn/dancehub-v3-sub000/middleware"
)

func AvailabilityRoutes(app *fiber.App, h *handlers.Handler, secret string) {
	api := app.Group("/api/v1")

	api.Get("/teachers/:teacherId/availability", h.GetTeacherAvailability)

	availability := api.Group("/teacher/availability", middleware.Protected(secret), middleware.TeacherRequired())
	availability.Get("/calendar", h.GetMyCalendar)
	availability.Post("", h.CreateAvailabilitySlot)
	availability.Delete("/:slotId", h.DeleteAvailabilitySlot)
}
