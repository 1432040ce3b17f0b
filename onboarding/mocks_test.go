package onboarding

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateAccount(ctx context.Context, req CreateAccountRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) GetAccountStatus(ctx context.Context, accountID string) (AccountStatus, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(AccountStatus), args.Error(1)
}

func (m *mockGateway) UpdateAccountStep(ctx context.Context, accountID string, step Step, data OnboardingData) error {
	return m.Called(ctx, accountID, step, data).Error(0)
}

func (m *mockGateway) VerifyAccount(ctx context.Context, accountID string) error {
	return m.Called(ctx, accountID).Error(0)
}

func (m *mockGateway) UploadDocument(ctx context.Context, accountID string, doc DocumentUpload) (UploadedDocument, error) {
	args := m.Called(ctx, accountID, doc)
	return args.Get(0).(UploadedDocument), args.Error(1)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) GetCommunity(ctx context.Context, slug string) (Community, error) {
	args := m.Called(ctx, slug)
	return args.Get(0).(Community), args.Error(1)
}

func (m *mockDirectory) SetStripeAccount(ctx context.Context, communityID, accountID string) error {
	return m.Called(ctx, communityID, accountID).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) OnboardingComplete(ctx context.Context, communityID, accountID string) error {
	return m.Called(ctx, communityID, accountID).Error(0)
}
