package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Logan-Myn/dancehub-v3-sub000/apperrors"
	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
	"github.com/Logan-Myn/dancehub-v3-sub000/models"
	"github.com/Logan-Myn/dancehub-v3-sub000/notifications"
	"github.com/Logan-Myn/dancehub-v3-sub000/onboarding"
)

// CommunityService reads and updates communities and their members. It is
// the wizard's community directory and completion notifier.
type CommunityService struct {
	db     *gorm.DB
	mailer notifications.Mailer
	log    logger.Logger
}

func NewCommunityService(db *gorm.DB, mailer notifications.Mailer, log logger.Logger) *CommunityService {
	return &CommunityService{db: db, mailer: mailer, log: log}
}

func (s *CommunityService) GetBySlug(ctx context.Context, slug string) (*models.Community, error) {
	var community models.Community
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&community).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Community")
		}
		return nil, fmt.Errorf("load community %s: %w", slug, err)
	}
	return &community, nil
}

func (s *CommunityService) GetByID(ctx context.Context, id string) (*models.Community, error) {
	communityID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.NewNotFoundError("Community")
	}
	var community models.Community
	if err := s.db.WithContext(ctx).Where("id = ?", communityID).First(&community).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Community")
		}
		return nil, fmt.Errorf("load community %s: %w", id, err)
	}
	return &community, nil
}

func (s *CommunityService) GetCommunity(ctx context.Context, slug string) (onboarding.Community, error) {
	c, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return onboarding.Community{}, err
	}
	return ToOnboardingCommunity(c), nil
}

func ToOnboardingCommunity(c *models.Community) onboarding.Community {
	out := onboarding.Community{ID: c.ID.String(), Slug: c.Slug, Status: c.Status}
	if c.StripeAccountID != nil {
		out.StripeAccountID = *c.StripeAccountID
	}
	return out
}

func (s *CommunityService) SetStripeAccount(ctx context.Context, communityID, accountID string) error {
	id, err := uuid.Parse(communityID)
	if err != nil {
		return apperrors.NewNotFoundError("Community")
	}
	// an empty id clears the column
	var value interface{} = accountID
	if accountID == "" {
		value = nil
	}
	res := s.db.WithContext(ctx).Model(&models.Community{}).Where("id = ?", id).Update("stripe_account_id", value)
	if res.Error != nil {
		return fmt.Errorf("store stripe account for community %s: %w", communityID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError("Community")
	}
	return nil
}

// OnboardingComplete flags the community as able to take payments and
// tells the owner.
func (s *CommunityService) OnboardingComplete(ctx context.Context, communityID, accountID string) error {
	id, err := uuid.Parse(communityID)
	if err != nil {
		return apperrors.NewNotFoundError("Community")
	}
	res := s.db.WithContext(ctx).Model(&models.Community{}).
		Where("id = ? AND stripe_account_id = ?", id, accountID).
		Update("stripe_onboarding_complete", true)
	if res.Error != nil {
		return fmt.Errorf("mark onboarding complete for %s: %w", communityID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError("Community")
	}

	community, err := s.GetByID(ctx, communityID)
	if err != nil {
		return err
	}
	if community.OwnerEmail == "" {
		return nil
	}
	email := notifications.OnboardingComplete(community.Name)
	if err := s.mailer.Send(ctx, community.OwnerName, community.OwnerEmail, email.Subject, email.HTML); err != nil {
		s.log.WithError(err).Warn("failed to send onboarding complete email", map[string]interface{}{"community_id": communityID})
	}
	return nil
}

func (s *CommunityService) IsMember(ctx context.Context, communityID, userID string) (bool, error) {
	cid, err := uuid.Parse(communityID)
	if err != nil {
		return false, nil
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return false, nil
	}
	var count int64
	err = s.db.WithContext(ctx).Model(&models.CommunityMember{}).
		Where("community_id = ? AND user_id = ? AND status = ?", cid, uid, "active").
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return count > 0, nil
}

func IsOwner(c *models.Community, userID string) bool {
	return c != nil && c.OwnerID.String() == userID
}
