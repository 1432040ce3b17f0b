package models

import (
	"time"

	"github.com/google/uuid"
)

type Community struct {
	ID                       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Slug                     string    `gorm:"size:100;not null;uniqueIndex" json:"slug"`
	Name                     string    `gorm:"size:255;not null" json:"name"`
	OwnerID                  uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	OwnerName                string    `gorm:"size:255" json:"-"`
	OwnerEmail               string    `gorm:"size:255" json:"-"`
	StripeAccountID          *string   `gorm:"size:255" json:"stripe_account_id"`
	StripeOnboardingComplete bool      `gorm:"not null;default:false" json:"stripe_onboarding_complete"`
	Status                   string    `gorm:"size:20;not null;default:'active'" json:"status"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"-"`
}

type CommunityMember struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CommunityID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_community_member" json:"community_id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_community_member" json:"user_id"`
	Status      string    `gorm:"size:20;not null;default:'active'" json:"status"`
	CreatedAt   time.Time `json:"created_at"`

	Community Community `gorm:"foreignkey:CommunityID" json:"-"`
}
