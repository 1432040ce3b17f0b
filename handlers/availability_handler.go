package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Logan-Myn/dancehub-v3-sub000/apperrors"
	"github.com/Logan-Myn/dancehub-v3-sub000/middleware"
	"github.com/Logan-Myn/dancehub-v3-sub000/scheduling"
)

const defaultAvailabilityDays = 30

type CreateAvailabilityRequest struct {
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// GetTeacherAvailability lists a teacher's slots grouped by day. start and
// end default to the next thirty days.
func (h *Handler) GetTeacherAvailability(c *fiber.Ctx) error {
	today := h.today()
	start := c.Query("start", scheduling.DateKey(today))
	end := c.Query("end", scheduling.DateKey(today.AddDate(0, 0, defaultAvailabilityDays)))
	if !scheduling.ValidDate(start) || !scheduling.ValidDate(end) {
		return apperrors.NewAvailabilityInputError("Dates must use the YYYY-MM-DD format")
	}
	if end < start {
		return apperrors.NewAvailabilityInputError("The end date must not be before the start date")
	}

	store := scheduling.NewSlotStore(c.Params("teacherId"), h.availability)
	days, err := store.Load(c.UserContext(), start, end)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"start": start, "end": end, "days": days})
}

// GetMyCalendar builds the month grid for the signed in teacher.
func (h *Handler) GetMyCalendar(c *fiber.Ctx) error {
	today := h.today()
	year, err := strconv.Atoi(c.Query("year", strconv.Itoa(today.Year())))
	if err != nil || year < 1970 || year > 9999 {
		return apperrors.NewAvailabilityInputError("Invalid year")
	}
	month, err := strconv.Atoi(c.Query("month", strconv.Itoa(int(today.Month()))))
	if err != nil || month < 1 || month > 12 {
		return apperrors.NewAvailabilityInputError("Invalid month")
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, h.loc)
	gridStart := first.AddDate(0, 0, -int(first.Weekday()))
	gridEnd := gridStart.AddDate(0, 0, scheduling.GridCells-1)

	store := scheduling.NewSlotStore(middleware.UserID(c), h.availability)
	if _, err := store.Load(c.UserContext(), scheduling.DateKey(gridStart), scheduling.DateKey(gridEnd)); err != nil {
		return err
	}
	grid := scheduling.BuildGrid(year, time.Month(month), today, store)
	return c.JSON(fiber.Map{
		"calendar":    grid,
		"days":        store.Days(),
		"timeOptions": scheduling.TimeOptions(),
	})
}

func (h *Handler) CreateAvailabilitySlot(c *fiber.Ctx) error {
	var req CreateAvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	store := scheduling.NewSlotStore(middleware.UserID(c), h.availability)
	slot, err := store.Add(c.UserContext(), req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(slot)
}

// DeleteAvailabilitySlot removes a slot once the caller confirms with
// ?confirm=true.
func (h *Handler) DeleteAvailabilitySlot(c *fiber.Ctx) error {
	slotID := c.Params("slotId")
	confirm := scheduling.Confirmed(c.QueryBool("confirm"))
	if !confirm.Confirm(c.UserContext(), "remove slot "+slotID) {
		return apperrors.NewConfirmationRequiredError("remove this availability slot")
	}
	if err := h.availability.DeleteSlot(c.UserContext(), middleware.UserID(c), slotID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
