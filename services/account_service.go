package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
	"github.com/Logan-Myn/dancehub-v3-sub000/models"
	"github.com/Logan-Myn/dancehub-v3-sub000/onboarding"
)

// MaxDocumentSize is the largest identity document Stripe accepts.
const MaxDocumentSize = 10 << 20

var allowedDocumentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

type AccountBackend interface {
	CreateAccount(ctx context.Context, req onboarding.CreateAccountRequest) (string, error)
	GetAccount(ctx context.Context, accountID string) (onboarding.AccountStatus, error)
	UpdateAccountStep(ctx context.Context, accountID string, step onboarding.Step, data onboarding.OnboardingData) error
	AcceptTerms(ctx context.Context, accountID, ip string) error
	UploadIdentityFile(ctx context.Context, accountID, fileName string, r io.Reader) (string, error)
}

type DocumentStore interface {
	Store(ctx context.Context, accountID, fileName string, r io.Reader) (string, error)
}

type CommunityLookup interface {
	GetByID(ctx context.Context, id string) (*models.Community, error)
}

// AccountService is the wizard's payment account gateway.
type AccountService struct {
	stripe      AccountBackend
	archive     DocumentStore
	communities CommunityLookup
	log         logger.Logger
}

// NewAccountService accepts a nil archive, in which case documents are only
// sent to Stripe.
func NewAccountService(stripe AccountBackend, archive DocumentStore, communities CommunityLookup, log logger.Logger) *AccountService {
	return &AccountService{stripe: stripe, archive: archive, communities: communities, log: log}
}

type clientIPKey struct{}

// WithClientIP carries the requester's address to the terms acceptance.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return "127.0.0.1"
}

// CreateAccount refuses to create a second account for a community.
func (s *AccountService) CreateAccount(ctx context.Context, req onboarding.CreateAccountRequest) (string, error) {
	community, err := s.communities.GetByID(ctx, req.CommunityID)
	if err != nil {
		return "", err
	}
	if community.StripeAccountID != nil && *community.StripeAccountID != "" {
		return "", onboarding.ErrAccountExists
	}
	if req.Email == "" {
		req.Email = community.OwnerEmail
	}
	return s.stripe.CreateAccount(ctx, req)
}

func (s *AccountService) GetAccountStatus(ctx context.Context, accountID string) (onboarding.AccountStatus, error) {
	return s.stripe.GetAccount(ctx, accountID)
}

func (s *AccountService) UpdateAccountStep(ctx context.Context, accountID string, step onboarding.Step, data onboarding.OnboardingData) error {
	return s.stripe.UpdateAccountStep(ctx, accountID, step, data)
}

func (s *AccountService) VerifyAccount(ctx context.Context, accountID string) error {
	return s.stripe.AcceptTerms(ctx, accountID, clientIP(ctx))
}

func (s *AccountService) UploadDocument(ctx context.Context, accountID string, doc onboarding.DocumentUpload) (onboarding.UploadedDocument, error) {
	if doc.Content == nil {
		return onboarding.UploadedDocument{}, fmt.Errorf("document has no content")
	}
	content, err := io.ReadAll(io.LimitReader(doc.Content, MaxDocumentSize+1))
	if err != nil {
		return onboarding.UploadedDocument{}, fmt.Errorf("read document: %w", err)
	}
	if len(content) == 0 {
		return onboarding.UploadedDocument{}, fmt.Errorf("document is empty")
	}
	if len(content) > MaxDocumentSize {
		return onboarding.UploadedDocument{}, fmt.Errorf("document exceeds %d bytes", MaxDocumentSize)
	}
	contentType := doc.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(content)
	}
	if !allowedDocumentTypes[contentType] {
		return onboarding.UploadedDocument{}, fmt.Errorf("unsupported document type %s", contentType)
	}

	fileID, err := s.stripe.UploadIdentityFile(ctx, accountID, doc.FileName, bytes.NewReader(content))
	if err != nil {
		return onboarding.UploadedDocument{}, err
	}
	out := onboarding.UploadedDocument{FileRef: fileID}

	if s.archive != nil {
		url, err := s.archive.Store(ctx, accountID, doc.FileName, bytes.NewReader(content))
		if err != nil {
			s.log.WithError(err).Warn("failed to archive identity document", map[string]interface{}{"account_id": accountID, "file_id": fileID})
		} else {
			out.URL = url
		}
	}
	return out, nil
}
