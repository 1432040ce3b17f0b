package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	BookingPendingPayment = "pending_payment"
	BookingConfirmed      = "confirmed"
	BookingPaymentFailed  = "payment_failed"
)

// ActiveBookingStatuses hold their slot.
var ActiveBookingStatuses = []string{BookingPendingPayment, BookingConfirmed}

type LessonBooking struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	LessonID           uuid.UUID       `gorm:"type:uuid;not null"`
	StudentID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	AvailabilitySlotID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ScheduledAt        time.Time       `gorm:"not null"`
	StudentName        string          `gorm:"size:255;not null"`
	StudentEmail       string          `gorm:"size:255;not null"`
	StudentPhone       *string         `gorm:"size:32"`
	Notes              *string         `gorm:"type:text"`
	Price              decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Currency           string          `gorm:"size:3;not null"`
	PlatformFee        decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"`
	PaymentIntentID    *string         `gorm:"size:255;uniqueIndex"`
	StripeAccountID    string          `gorm:"size:255;not null"`
	Status             string          `gorm:"size:20;not null;default:'pending_payment'"`
	ReminderSentAt     *time.Time

	Lesson           PrivateLesson    `gorm:"foreignkey:LessonID"`
	AvailabilitySlot AvailabilitySlot `gorm:"foreignkey:AvailabilitySlotID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
