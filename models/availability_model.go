package models

import (
	"github.com/google/uuid"
)

// AvailabilitySlot keeps the wall-clock date and times as written by the
// teacher. Date is YYYY-MM-DD, times are HH:MM on the half hour.
type AvailabilitySlot struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TeacherID uuid.UUID `gorm:"type:uuid;not null;index:idx_teacher_date" json:"-"`
	Date      string    `gorm:"size:10;not null;index:idx_teacher_date" json:"date"`
	StartTime string    `gorm:"size:5;not null" json:"start_time"`
	EndTime   string    `gorm:"size:5;not null" json:"end_time"`
}
