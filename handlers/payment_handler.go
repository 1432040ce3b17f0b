package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Logan-Myn/dancehub-v3-sub000/services"
)

// StripeWebhook reconciles bookings with PaymentIntent events.
func (h *Handler) StripeWebhook(c *fiber.Ctx) error {
	err := h.bookings.HandleWebhook(c.UserContext(), c.Body(), c.Get("Stripe-Signature"))
	if errors.Is(err, services.ErrInvalidWebhook) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid webhook signature"})
	}
	if err != nil {
		h.log.WithError(err).Error("webhook processing failed", nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Webhook processing failed"})
	}
	return c.JSON(fiber.Map{"received": true})
}
