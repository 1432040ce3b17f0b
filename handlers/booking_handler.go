package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Logan-Myn/dancehub-v3-sub000/apperrors"
	"github.com/Logan-Myn/dancehub-v3-sub000/middleware"
	"github.com/Logan-Myn/dancehub-v3-sub000/scheduling"
)

// bookingHorizonDays bounds how far ahead slots are offered.
const bookingHorizonDays = 90

type CreateBookingRequest struct {
	AvailabilitySlotID string `json:"availability_slot_id"`
	scheduling.StudentContact
}

type ConfirmPaymentRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required"`
}

// actorFor resolves the caller and whether they belong to the lesson's
// community. A failed membership lookup charges the regular price.
func (h *Handler) actorFor(c *fiber.Ctx, lesson scheduling.Lesson) scheduling.Actor {
	actor := middleware.CurrentActor(c)
	if !actor.Authenticated || lesson.CommunityID == "" {
		return actor
	}
	member, err := h.bookings.IsMember(c.UserContext(), lesson.CommunityID, actor.UserID)
	if err != nil {
		h.log.WithError(err).Warn("membership lookup failed", map[string]interface{}{"community_id": lesson.CommunityID})
		return actor
	}
	actor.Member = member
	return actor
}

func (h *Handler) openSlots(c *fiber.Ctx, lesson scheduling.Lesson) ([]scheduling.Slot, error) {
	now := h.now()
	return h.bookings.OpenSlots(c.UserContext(), lesson, now, now.AddDate(0, 0, bookingHorizonDays))
}

// GetLessonSlots lists the slots a student can still book, with the price
// the caller would pay.
func (h *Handler) GetLessonSlots(c *fiber.Ctx) error {
	lesson, err := h.bookings.GetLesson(c.UserContext(), c.Params("lessonId"))
	if err != nil {
		return err
	}
	slots, err := h.openSlots(c, lesson)
	if err != nil {
		return err
	}
	actor := h.actorFor(c, lesson)
	return c.JSON(fiber.Map{
		"lesson_id": lesson.ID,
		"title":     lesson.Title,
		"duration":  lesson.DurationMinutes,
		"price":     scheduling.SelectPrice(lesson, actor),
		"currency":  lesson.Currency,
		"slots":     scheduling.Offerable(slots, h.today()),
	})
}

// CreateBooking runs the booking flow up to the provisional booking and
// keeps the flow until its payment is confirmed.
func (h *Handler) CreateBooking(c *fiber.Ctx) error {
	ctx := c.UserContext()
	lesson, err := h.bookings.GetLesson(ctx, c.Params("lessonId"))
	if err != nil {
		return err
	}

	var req CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}

	flow := scheduling.NewBookingFlow(scheduling.FlowConfig{
		Lesson:   lesson,
		Actor:    h.actorFor(c, lesson),
		Bookings: h.bookings,
		Payments: h.bookings,
		Location: h.loc,
		Now:      h.now,
		Logger:   h.log,
	})

	slots, err := h.openSlots(c, lesson)
	if err != nil {
		return err
	}
	if _, err := flow.Offer(slots); err != nil {
		return err
	}
	if req.AvailabilitySlotID == "" {
		return apperrors.NewNoSlotSelectedError()
	}
	if err := flow.Select(req.AvailabilitySlotID); err != nil {
		return err
	}
	intent, err := flow.Submit(ctx, req.StudentContact)
	if err != nil {
		return err
	}

	h.flows.Put(intent.BookingID, flow)
	return c.Status(fiber.StatusCreated).JSON(intent)
}

func (h *Handler) ConfirmBookingPayment(c *fiber.Ctx) error {
	bookingID := c.Params("bookingId")
	var req ConfirmPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	flow, ok := h.flows.Get(bookingID)
	if !ok {
		return apperrors.NewNotFoundError("Booking")
	}
	if flow.Actor().UserID != middleware.UserID(c) {
		return apperrors.NewForbiddenError("This booking belongs to another user")
	}
	if err := flow.ConfirmPayment(c.UserContext(), req.PaymentMethodID); err != nil {
		return err
	}

	state := flow.State()
	h.flows.Delete(bookingID)
	return c.JSON(fiber.Map{"booking_id": bookingID, "state": state})
}
