package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Logan-Myn/dancehub-v3-sub000/apperrors"
	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
	"github.com/Logan-Myn/dancehub-v3-sub000/models"
	"github.com/Logan-Myn/dancehub-v3-sub000/scheduling"
)

// AvailabilityService is the server side of teacher availability.
type AvailabilityService struct {
	db  *gorm.DB
	log logger.Logger
}

func NewAvailabilityService(db *gorm.DB, log logger.Logger) *AvailabilityService {
	return &AvailabilityService{db: db, log: log}
}

func toSlot(m models.AvailabilitySlot) scheduling.Slot {
	return scheduling.Slot{ID: m.ID.String(), Date: m.Date, StartTime: m.StartTime, EndTime: m.EndTime}
}

func parseTeacher(teacherID string) (uuid.UUID, error) {
	id, err := uuid.Parse(teacherID)
	if err != nil {
		return uuid.Nil, apperrors.NewNotFoundError("Teacher")
	}
	return id, nil
}

// ListAvailability returns the teacher's slots between two dates, inclusive.
func (s *AvailabilityService) ListAvailability(ctx context.Context, teacherID, startDate, endDate string) ([]scheduling.Slot, error) {
	tid, err := parseTeacher(teacherID)
	if err != nil {
		return nil, err
	}
	if !scheduling.ValidDate(startDate) || !scheduling.ValidDate(endDate) {
		return nil, apperrors.NewAvailabilityInputError("Date must be in YYYY-MM-DD format")
	}

	var rows []models.AvailabilitySlot
	err = s.db.WithContext(ctx).
		Where("teacher_id = ? AND date >= ? AND date <= ?", tid, startDate, endDate).
		Order("date asc, start_time asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}

	out := make([]scheduling.Slot, 0, len(rows))
	for _, r := range rows {
		out = append(out, toSlot(r))
	}
	return out, nil
}

// AddSlot stores a slot unless it overlaps one the teacher already has that day.
func (s *AvailabilityService) AddSlot(ctx context.Context, teacherID string, slot scheduling.Slot) (scheduling.Slot, error) {
	tid, err := parseTeacher(teacherID)
	if err != nil {
		return scheduling.Slot{}, err
	}
	if err := scheduling.CheckRange(slot.Date, slot.StartTime, slot.EndTime); err != nil {
		return scheduling.Slot{}, err
	}

	row := models.AvailabilitySlot{TeacherID: tid, Date: slot.Date, StartTime: slot.StartTime, EndTime: slot.EndTime}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var overlapping int64
		// HH:MM strings compare in time order
		if err := tx.Model(&models.AvailabilitySlot{}).
			Where("teacher_id = ? AND date = ? AND start_time < ? AND end_time > ?", tid, slot.Date, slot.EndTime, slot.StartTime).
			Count(&overlapping).Error; err != nil {
			return err
		}
		if overlapping > 0 {
			return apperrors.NewAvailabilityConflictError("This slot overlaps one you already offer.")
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		var ae *apperrors.AppError
		if errors.As(err, &ae) {
			return scheduling.Slot{}, ae
		}
		return scheduling.Slot{}, fmt.Errorf("add availability: %w", err)
	}

	s.log.Info("availability slot added", map[string]interface{}{"teacher_id": teacherID, "slot_id": row.ID.String()})
	return toSlot(row), nil
}

// DeleteSlot removes a slot the teacher owns. Slots holding an active
// booking cannot be removed.
func (s *AvailabilityService) DeleteSlot(ctx context.Context, teacherID, slotID string) error {
	tid, err := parseTeacher(teacherID)
	if err != nil {
		return err
	}
	sid, err := uuid.Parse(slotID)
	if err != nil {
		return apperrors.NewNotFoundError("Availability slot")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot models.AvailabilitySlot
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", sid).First(&slot).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFoundError("Availability slot")
			}
			return err
		}
		if slot.TeacherID != tid {
			return apperrors.NewForbiddenError("You can only remove your own availability.")
		}

		var booked int64
		if err := tx.Model(&models.LessonBooking{}).
			Where("availability_slot_id = ? AND status IN ?", sid, models.ActiveBookingStatuses).
			Count(&booked).Error; err != nil {
			return err
		}
		if booked > 0 {
			return apperrors.NewAvailabilityConflictError("This slot has a booking and cannot be removed.")
		}
		return tx.Delete(&slot).Error
	})
	if err != nil {
		var ae *apperrors.AppError
		if errors.As(err, &ae) {
			return ae
		}
		return fmt.Errorf("delete availability: %w", err)
	}

	s.log.Info("availability slot removed", map[string]interface{}{"teacher_id": teacherID, "slot_id": slotID})
	return nil
}
