package handlers_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Logan-Myn/dancehub-v3-sub000/scheduling"
)

func TestGetTeacherAvailability_DefaultsToNextThirtyDays(t *testing.T) {
	e := newEnv(t)
	e.availability.slots = []scheduling.Slot{
		{ID: "b", Date: "2024-06-03", StartTime: "11:00", EndTime: "12:00"},
		{ID: "a", Date: "2024-06-03", StartTime: "09:00", EndTime: "10:00"},
	}

	status, body := do(t, e.app, fiber.MethodGet, "/api/v1/teachers/"+teacherID+"/availability", nil, "")

	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, [2]string{"2024-06-01", "2024-07-01"}, e.availability.listed)
	days := body["days"].([]interface{})
	require.Len(t, days, 1)
	slots := days[0].(map[string]interface{})["slots"].([]interface{})
	assert.Equal(t, "a", slots[0].(map[string]interface{})["id"])
}

func TestGetTeacherAvailability_RejectsBadDates(t *testing.T) {
	e := newEnv(t)

	status, body := do(t, e.app, fiber.MethodGet, "/api/v1/teachers/"+teacherID+"/availability?start=06/01/2024", nil, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "AVAILABILITY_INPUT_INVALID", body["code"])

	status, _ = do(t, e.app, fiber.MethodGet, "/api/v1/teachers/"+teacherID+"/availability?start=2024-06-10&end=2024-06-01", nil, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestCreateAvailabilitySlot(t *testing.T) {
	e := newEnv(t)
	teacher := signToken(t, teacherID, "teacher")

	status, _ := do(t, e.app, fiber.MethodPost, "/api/v1/teacher/availability",
		map[string]string{"date": "2024-06-10", "start_time": "18:00", "end_time": "19:30"}, signToken(t, studentID, "student"))
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := do(t, e.app, fiber.MethodPost, "/api/v1/teacher/availability",
		map[string]string{"date": "2024-06-10", "start_time": "18:00", "end_time": "19:30"}, teacher)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "slot_new", body["id"])
	assert.Equal(t, []scheduling.Slot{{Date: "2024-06-10", StartTime: "18:00", EndTime: "19:30"}}, e.availability.added)
}

func TestCreateAvailabilitySlot_RangeCheckedLocally(t *testing.T) {
	e := newEnv(t)
	teacher := signToken(t, teacherID, "teacher")

	status, body := do(t, e.app, fiber.MethodPost, "/api/v1/teacher/availability",
		map[string]string{"date": "2024-06-10", "start_time": "10:00", "end_time": "09:30"}, teacher)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "AVAILABILITY_INPUT_INVALID", body["code"])

	status, _ = do(t, e.app, fiber.MethodPost, "/api/v1/teacher/availability", map[string]string{"date": "2024-06-10"}, teacher)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Empty(t, e.availability.added)
}

func TestDeleteAvailabilitySlot_RequiresConfirmation(t *testing.T) {
	e := newEnv(t)
	teacher := signToken(t, teacherID, "teacher")

	status, body := do(t, e.app, fiber.MethodDelete, "/api/v1/teacher/availability/slot_1", nil, teacher)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "CONFIRMATION_REQUIRED", body["code"])
	assert.Empty(t, e.availability.deleted)

	status, _ = do(t, e.app, fiber.MethodDelete, "/api/v1/teacher/availability/slot_1?confirm=true", nil, teacher)
	assert.Equal(t, fiber.StatusNoContent, status)
	assert.Equal(t, []string{"slot_1"}, e.availability.deleted)
}

func TestGetMyCalendar(t *testing.T) {
	e := newEnv(t)
	e.availability.slots = []scheduling.Slot{{ID: "a", Date: "2024-06-20", StartTime: "09:00", EndTime: "10:00"}}
	teacher := signToken(t, teacherID, "teacher")

	status, body := do(t, e.app, fiber.MethodGet, "/api/v1/teacher/availability/calendar?year=2024&month=6", nil, teacher)

	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, [2]string{"2024-05-26", "2024-07-06"}, e.availability.listed)
	cal := body["calendar"].(map[string]interface{})
	days := cal["days"].([]interface{})
	require.Len(t, days, scheduling.GridCells)
	for _, d := range days {
		day := d.(map[string]interface{})
		assert.Equal(t, day["date"] == "2024-06-20", day["hasAvailability"], day["date"])
	}
	assert.Len(t, body["timeOptions"], 48)

	status, _ = do(t, e.app, fiber.MethodGet, "/api/v1/teacher/availability/calendar?month=13", nil, teacher)
	assert.Equal(t, fiber.StatusBadRequest, status)
}
