package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Logan-Myn/dancehub-v3-sub000/handlers"
	"github.com/Logan-Myn/dancehub-v3-sub000/middleware"
)

func BookingRoutes(app *fiber.App, h *handlers.Handler, secret string) {
	api := app.Group("/api/v1")

	lessons := api.Group("/lessons/:lessonId", middleware.OptionalAuth(secret))
	lessons.Get("/slots", h.GetLessonSlots)
	lessons.Post("/bookings", h.CreateBooking)

	bookings := api.Group("/bookings", middleware.Protected(secret))
	bookings.Post("/:bookingId/confirm-payment", h.ConfirmBookingPayment)
}
