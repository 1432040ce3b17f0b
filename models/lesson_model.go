package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PrivateLesson struct {
	ID              uuid.UUID           `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CommunityID     uuid.UUID           `gorm:"type:uuid;not null;index" json:"community_id"`
	TeacherID       uuid.UUID           `gorm:"type:uuid;not null;index" json:"teacher_id"`
	Title           string              `gorm:"size:255;not null" json:"title"`
	Description     *string             `gorm:"type:text" json:"description"`
	DurationMinutes int                 `gorm:"not null;default:60" json:"duration_minutes"`
	RegularPrice    decimal.Decimal     `gorm:"type:numeric(10,2);not null" json:"regular_price"`
	MemberPrice     decimal.NullDecimal `gorm:"type:numeric(10,2)" json:"member_price"`
	Currency        string              `gorm:"size:3;not null;default:'usd'" json:"currency"`
	Active          bool                `gorm:"not null;default:true" json:"active"`

	Community Community `gorm:"foreignkey:CommunityID" json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
