package services

import (
	"context"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Logan-Myn/dancehub-v3-sub000/models"
	"github.com/Logan-Myn/dancehub-v3-sub000/onboarding"
	"github.com/Logan-Myn/dancehub-v3-sub000/payments"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, toName, toEmail, subject, html string) error {
	return m.Called(ctx, toName, toEmail, subject, html).Error(0)
}

type mockCommunities struct {
	mock.Mock
}

func (m *mockCommunities) GetByID(ctx context.Context, id string) (*models.Community, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*models.Community)
	return c, args.Error(1)
}

func (m *mockCommunities) IsMember(ctx context.Context, communityID, userID string) (bool, error) {
	args := m.Called(ctx, communityID, userID)
	return args.Bool(0), args.Error(1)
}

type mockPaymentGateway struct {
	mock.Mock
}

func (m *mockPaymentGateway) CreatePaymentIntent(ctx context.Context, in payments.PaymentIntentInput) (payments.PaymentIntentResult, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(payments.PaymentIntentResult), args.Error(1)
}

func (m *mockPaymentGateway) ConfirmPaymentIntent(ctx context.Context, connectedAccount, intentID, paymentMethodID string) (payments.PaymentIntentResult, error) {
	args := m.Called(ctx, connectedAccount, intentID, paymentMethodID)
	return args.Get(0).(payments.PaymentIntentResult), args.Error(1)
}

func (m *mockPaymentGateway) ParseWebhook(payload []byte, signature string) (payments.WebhookEvent, error) {
	args := m.Called(payload, signature)
	return args.Get(0).(payments.WebhookEvent), args.Error(1)
}

type mockAccountBackend struct {
	mock.Mock
}

func (m *mockAccountBackend) CreateAccount(ctx context.Context, req onboarding.CreateAccountRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockAccountBackend) GetAccount(ctx context.Context, accountID string) (onboarding.AccountStatus, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(onboarding.AccountStatus), args.Error(1)
}

func (m *mockAccountBackend) UpdateAccountStep(ctx context.Context, accountID string, step onboarding.Step, data onboarding.OnboardingData) error {
	return m.Called(ctx, accountID, step, data).Error(0)
}

func (m *mockAccountBackend) AcceptTerms(ctx context.Context, accountID, ip string) error {
	return m.Called(ctx, accountID, ip).Error(0)
}

func (m *mockAccountBackend) UploadIdentityFile(ctx context.Context, accountID, fileName string, r io.Reader) (string, error) {
	b, _ := io.ReadAll(r)
	args := m.Called(ctx, accountID, fileName, string(b))
	return args.String(0), args.Error(1)
}

type mockDocumentStore struct {
	mock.Mock
}

func (m *mockDocumentStore) Store(ctx context.Context, accountID, fileName string, r io.Reader) (string, error) {
	b, _ := io.ReadAll(r)
	args := m.Called(ctx, accountID, fileName, string(b))
	return args.String(0), args.Error(1)
}
