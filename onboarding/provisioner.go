package onboarding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Logan-Myn/dancehub-v3-sub000/apperrors"
	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
	"github.com/Logan-Myn/dancehub-v3-sub000/metrics"
)

// ErrAccountExists is returned by CreateAccount when the community already
// holds a payment account.
var ErrAccountExists = errors.New("payment account already exists for community")

// DefaultStatusCheckTimeout bounds the live check of a stored account id.
const DefaultStatusCheckTimeout = 10 * time.Second

type CreateAccountRequest struct {
	CommunityID  string
	Country      string
	BusinessType BusinessType
	Email        string
}

type DocumentUpload struct {
	FileName     string
	ContentType  string
	Content      io.Reader
	DocumentType string
	Purpose      string
}

type UploadedDocument struct {
	FileRef string
	URL     string
}

// AccountGateway is the payment account backend.
type AccountGateway interface {
	CreateAccount(ctx context.Context, req CreateAccountRequest) (string, error)
	GetAccountStatus(ctx context.Context, accountID string) (AccountStatus, error)
	UpdateAccountStep(ctx context.Context, accountID string, step Step, data OnboardingData) error
	VerifyAccount(ctx context.Context, accountID string) error
	UploadDocument(ctx context.Context, accountID string, doc DocumentUpload) (UploadedDocument, error)
}

// CommunityDirectory reads and updates community records.
type CommunityDirectory interface {
	GetCommunity(ctx context.Context, slug string) (Community, error)
	SetStripeAccount(ctx context.Context, communityID, accountID string) error
}

type ProvisionOutcome string

const (
	OutcomeReused        ProvisionOutcome = "reused"
	OutcomeCreated       ProvisionOutcome = "created"
	OutcomeAlreadyExists ProvisionOutcome = "already_exists"
	OutcomeFailed        ProvisionOutcome = "failed"
)

type ProvisionResult struct {
	Outcome   ProvisionOutcome
	AccountID string
	Err       error
}

func (r ProvisionResult) OK() bool { return r.Outcome != OutcomeFailed && r.AccountID != "" }

// BusinessContext is what account creation needs from the first step.
type BusinessContext struct {
	Country      string
	BusinessType BusinessType
	Email        string
}

// AccountProvisioner lazily creates the payment account for a community and
// converges on an existing one when the backend reports it already exists.
type AccountProvisioner struct {
	gateway       AccountGateway
	directory     CommunityDirectory
	statusTimeout time.Duration
	log           logger.Logger

	mu    sync.Mutex
	known map[string]string
}

func NewAccountProvisioner(gateway AccountGateway, directory CommunityDirectory, statusTimeout time.Duration, log logger.Logger) *AccountProvisioner {
	if statusTimeout <= 0 {
		statusTimeout = DefaultStatusCheckTimeout
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &AccountProvisioner{
		gateway:       gateway,
		directory:     directory,
		statusTimeout: statusTimeout,
		log:           log,
		known:         map[string]string{},
	}
}

func (p *AccountProvisioner) remember(communityID, accountID string) {
	p.mu.Lock()
	p.known[communityID] = accountID
	p.mu.Unlock()
}

// Forget drops a cached account id, e.g. after it failed validation.
func (p *AccountProvisioner) Forget(communityID string) {
	p.mu.Lock()
	delete(p.known, communityID)
	p.mu.Unlock()
}

func (p *AccountProvisioner) cached(communityID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.known[communityID]
}

// Ensure returns the community's account id, creating it if needed.
func (p *AccountProvisioner) Ensure(ctx context.Context, community Community, knownAccountID string, bc BusinessContext) ProvisionResult {
	res := p.ensure(ctx, community, knownAccountID, bc)
	metrics.ProvisioningOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	return res
}

func (p *AccountProvisioner) ensure(ctx context.Context, community Community, knownAccountID string, bc BusinessContext) ProvisionResult {
	log := p.log.WithFields(map[string]interface{}{"community_id": community.ID})

	if knownAccountID != "" {
		p.remember(community.ID, knownAccountID)
		return ProvisionResult{Outcome: OutcomeReused, AccountID: knownAccountID}
	}
	if id := p.cached(community.ID); id != "" {
		return ProvisionResult{Outcome: OutcomeReused, AccountID: id}
	}

	id, err := p.gateway.CreateAccount(ctx, CreateAccountRequest{
		CommunityID:  community.ID,
		Country:      bc.Country,
		BusinessType: bc.BusinessType,
		Email:        bc.Email,
	})
	switch {
	case errors.Is(err, ErrAccountExists):
		existing, lookupErr := p.directory.GetCommunity(ctx, community.Slug)
		if lookupErr != nil || existing.StripeAccountID == "" {
			if lookupErr == nil {
				lookupErr = errors.New("community has no stored account id")
			}
			log.WithError(lookupErr).Error("account exists but could not be recovered", nil)
			return ProvisionResult{Outcome: OutcomeFailed, Err: apperrors.NewProvisioningError(lookupErr)}
		}
		p.remember(community.ID, existing.StripeAccountID)
		log.Info("adopted existing payment account", map[string]interface{}{"account_id": existing.StripeAccountID})
		return ProvisionResult{Outcome: OutcomeAlreadyExists, AccountID: existing.StripeAccountID}
	case err != nil:
		log.WithError(err).Error("payment account creation failed", nil)
		return ProvisionResult{Outcome: OutcomeFailed, Err: apperrors.NewProvisioningError(err)}
	case id == "":
		return ProvisionResult{Outcome: OutcomeFailed, Err: apperrors.NewProvisioningError(errors.New("empty account id"))}
	}

	p.remember(community.ID, id)
	if err := p.directory.SetStripeAccount(ctx, community.ID, id); err != nil {
		log.WithError(err).Warn("failed to record account on community", map[string]interface{}{"account_id": id})
	}
	log.Info("payment account created", map[string]interface{}{"account_id": id})
	return ProvisionResult{Outcome: OutcomeCreated, AccountID: id}
}

// ValidateExisting reports whether accountID is still live. Errors and
// timeouts count as invalid.
func (p *AccountProvisioner) ValidateExisting(ctx context.Context, accountID string) bool {
	if accountID == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, p.statusTimeout)
	defer cancel()

	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		_, err := p.gateway.GetAccountStatus(ctx, accountID)
		done <- result{err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			p.log.Warn("stored payment account is not valid", map[string]interface{}{
				"account_id": accountID,
				"error":      r.err.Error(),
			})
			return false
		}
		return true
	case <-ctx.Done():
		p.log.Warn("payment account status check timed out", map[string]interface{}{
			"account_id": accountID,
			"timeout":    fmt.Sprint(p.statusTimeout),
		})
		return false
	}
}
