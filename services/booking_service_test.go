package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Logan-Myn/dancehub-v3-sub000/apperrors"
	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
	"github.com/Logan-Myn/dancehub-v3-sub000/models"
	"github.com/Logan-Myn/dancehub-v3-sub000/payments"
	"github.com/Logan-Myn/dancehub-v3-sub000/scheduling"
)

var (
	lessonID  = uuid.MustParse("4c3b2a19-0f8e-4d7c-9b6a-5f4e3d2c1b0a")
	studentID = uuid.MustParse("7e6d5c4b-3a29-4180-9f7e-6d5c4b3a2918")
	bookingID = uuid.MustParse("2b3c4d5e-6f70-4182-93a4-b5c6d7e8f901")
	bookNow   = time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)
)

type bookingFixture struct {
	svc         *BookingService
	sm          sqlmock.Sqlmock
	gateway     *mockPaymentGateway
	communities *mockCommunities
	mailer      *mockMailer
}

func newBookingFixture(t *testing.T) *bookingFixture {
	db, sm := newMockDB(t)
	f := &bookingFixture{sm: sm, gateway: new(mockPaymentGateway), communities: new(mockCommunities), mailer: new(mockMailer)}
	f.svc = NewBookingService(BookingConfig{
		DB:                 db,
		Payments:           f.gateway,
		Communities:        f.communities,
		Mailer:             f.mailer,
		PlatformFeePercent: 5,
		Logger:             logger.NewTestLogger(t),
	})
	f.svc.now = func() time.Time { return bookNow }
	return f
}

func lessonRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "community_id", "teacher_id", "title", "duration_minutes", "regular_price", "member_price", "currency", "active"}).
		AddRow(lessonID.String(), communityID.String(), teacherID.String(), "Salsa On2", 60, "50.00", "40.00", "usd", true)
}

func payingCommunity() *models.Community {
	acct := "acct_1"
	return &models.Community{ID: communityID, Name: "Salsa Club", StripeAccountID: &acct, StripeOnboardingComplete: true}
}

var sam = scheduling.Actor{UserID: studentID.String(), Email: "sam@example.com", Name: "Sam", Authenticated: true}

func bookingRequest() scheduling.BookingRequest {
	return scheduling.BookingRequest{
		LessonID:           lessonID.String(),
		ScheduledAt:        time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC),
		AvailabilitySlotID: slotID.String(),
		Student:            scheduling.StudentContact{Name: "Sam", Email: "sam@example.com"},
		Price:              decimal.RequireFromString("40"),
	}
}

func TestBookingService_CreateBookingMemberPrice(t *testing.T) {
	f := newBookingFixture(t)
	f.sm.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "private_lessons" WHERE id = $1 AND active = $2`)).WillReturnRows(lessonRows())
	f.communities.On("GetByID", mock.Anything, communityID.String()).Return(payingCommunity(), nil)
	f.communities.On("IsMember", mock.Anything, communityID.String(), studentID.String()).Return(true, nil)
	f.sm.ExpectBegin()
	f.sm.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "availability_slots" WHERE id = $1`)).WillReturnRows(slotRow(teacherID))
	f.sm.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "lesson_bookings" WHERE availability_slot_id = $1 AND status IN ($2,$3)`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	f.sm.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "lesson_bookings"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "platform_fee"}).AddRow(bookingID.String(), "0"))
	f.sm.ExpectCommit()
	f.gateway.On("CreatePaymentIntent", mock.Anything, mock.MatchedBy(func(in payments.PaymentIntentInput) bool {
		return in.ConnectedAccount == "acct_1" && in.Amount == 4000 && in.ApplicationFee == 200 && in.Metadata["booking_id"] == bookingID.String()
	})).Return(payments.PaymentIntentResult{ID: "pi_1", ClientSecret: "pi_1_secret_x"}, nil)
	f.sm.ExpectExec(regexp.QuoteMeta(`UPDATE "lesson_bookings" SET "payment_intent_id"=$1,"platform_fee"=$2`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	intent, err := f.svc.CreateBooking(context.Background(), sam, bookingRequest())

	require.NoError(t, err)
	assert.Equal(t, bookingID.String(), intent.BookingID)
	assert.Equal(t, "pi_1_secret_x", intent.ClientSecret)
	assert.Equal(t, "acct_1", intent.StripeAccountID)
	assert.True(t, intent.Price.Equal(decimal.RequireFromString("40")))
	assert.NoError(t, f.sm.ExpectationsWereMet())
}

func TestBookingService_CreateBookingDoubleBookConflicts(t *testing.T) {
	f := newBookingFixture(t)
	f.sm.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "private_lessons"`)).WillReturnRows(lessonRows())
	f.communities.On("GetByID", mock.Anything, communityID.String()).Return(payingCommunity(), nil)
	f.communities.On("IsMember", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.sm.ExpectBegin()
	f.sm.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "availability_slots"`)).WillReturnRows(slotRow(teacherID))
	f.sm.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "lesson_bookings"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	f.sm.ExpectRollback()

	_, err := f.svc.CreateBooking(context.Background(), sam, bookingRequest())

	assert.True(t, apperrors.Is(err, apperrors.CodeAvailabilityTaken))
	f.gateway.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything)
}

func TestBookingService_CreateBookingRejectsChangedPrice(t *testing.T) {
	f := newBookingFixture(t)
	f.sm.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "private_lessons"`)).WillReturnRows(lessonRows())
	f.communities.On("GetByID", mock.Anything, communityID.String()).Return(payingCommunity(), nil)
	f.communities.On("IsMember", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	// shown the member price, no longer a member
	_, err := f.svc.CreateBooking(context.Background(), sam, bookingRequest())

	assert.True(t, apperrors.Is(err, apperrors.CodeBooking))
	f.gateway.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything)
	assert.NoError(t, f.sm.ExpectationsWereMet())
}

func TestBookingService_CreateBookingNeedsPayableCommunity(t *testing.T) {
	f := newBookingFixture(t)
	f.sm.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "private_lessons"`)).WillReturnRows(lessonRows())
	f.communities.On("GetByID", mock.Anything, communityID.String()).Return(&models.Community{ID: communityID}, nil)

	_, err := f.svc.CreateBooking(context.Background(), sam, bookingRequest())

	assert.True(t, apperrors.Is(err, apperrors.CodeBooking))
}

func TestBookingService_CreateBookingRequiresAuth(t *testing.T) {
	f := newBookingFixture(t)

	_, err := f.svc.CreateBooking(context.Background(), scheduling.Actor{}, bookingRequest())

	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthenticated))
	assert.NoError(t, f.sm.ExpectationsWereMet())
}

func TestBookingService_CreateBookingPaymentIntentFailureReleasesSlot(t *testing.T) {
	f := newBookingFixture(t)
	f.sm.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "private_lessons"`)).WillReturnRows(lessonRows())
	f.communities.On("GetByID", mock.Anything, communityID.String()).Return(payingCommunity(), nil)
	f.communities.On("IsMember", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.sm.ExpectBegin()
	f.sm.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "availability_slots"`)).WillReturnRows(slotRow(teacherID))
	f.sm.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "lesson_bookings"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	f.sm.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "lesson_bookings"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(bookingID.String()))
	f.sm.ExpectCommit()
	f.gateway.On("CreatePaymentIntent", mock.Anything, mock.Anything).Return(payments.PaymentIntentResult{}, errors.New("stripe down"))
	f.sm.ExpectExec(regexp.QuoteMeta(`UPDATE "lesson_bookings" SET "status"=$1`)).
		WithArgs("payment_failed", sqlmock.AnyArg(), bookingID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := f.svc.CreateBooking(context.Background(), sam, bookingRequest())

	assert.True(t, apperrors.Is(err, apperrors.CodeBooking))
	assert.NoError(t, f.sm.ExpectationsWereMet())
}

func pendingBookingRows(status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "lesson_id", "student_id", "availability_slot_id", "scheduled_at", "student_name", "student_email", "price", "currency", "payment_intent_id", "stripe_account_id", "status"}).
		AddRow(bookingID.String(), lessonID.String(), studentID.String(), slotID.String(), time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
			"Sam", "sam@example.com", "50.00", "usd", "pi_1", "acct_1", status)
}

func TestBookingService_WebhookSucceededConfirmsAndEmails(t *testing.T) {
	f := newBookingFixture(t)
	f.gateway.On("ParseWebhook", []byte("body"), "sig").Return(payments.WebhookEvent{ID: "evt_1", Type: "payment_intent.succeeded", PaymentIntentID: "pi_1"}, nil)
	f.sm.ExpectBegin()
	f.sm.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "lesson_bookings" WHERE payment_intent_id = $1`)).WillReturnRows(pendingBookingRows(models.BookingPendingPayment))
	f.sm.ExpectExec(regexp.QuoteMeta(`UPDATE "lesson_bookings" SET "status"=$1,"updated_at"=$2 WHERE "id" = $3`)).
		WithArgs("confirmed", sqlmock.AnyArg(), bookingID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.sm.ExpectCommit()
	f.sm.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "private_lessons" WHERE id = $1`)).WillReturnRows(lessonRows())
	f.mailer.On("Send", mock.Anything, "Sam", "sam@example.com", "Booking confirmed: Salsa On2", mock.Anything).Return(nil)
	f.communities.On("GetByID", mock.Anything, communityID.String()).Return(&models.Community{ID: communityID}, nil)

	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("body"), "sig"))

	f.mailer.AssertExpectations(t)
	assert.NoError(t, f.sm.ExpectationsWereMet())
}

func TestBookingService_WebhookIsIdempotent(t *testing.T) {
	f := newBookingFixture(t)
	f.gateway.On("ParseWebhook", mock.Anything, mock.Anything).Return(payments.WebhookEvent{Type: "payment_intent.succeeded", PaymentIntentID: "pi_1"}, nil)
	f.sm.ExpectBegin()
	f.sm.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "lesson_bookings"`)).WillReturnRows(pendingBookingRows(models.BookingConfirmed))
	f.sm.ExpectCommit()

	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("body"), "sig"))

	f.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, f.sm.ExpectationsWereMet())
}

func TestBookingService_WebhookPaymentFailed(t *testing.T) {
	f := newBookingFixture(t)
	f.gateway.On("ParseWebhook", mock.Anything, mock.Anything).Return(payments.WebhookEvent{Type: "payment_intent.payment_failed", PaymentIntentID: "pi_1"}, nil)
	f.sm.ExpectExec(regexp.QuoteMeta(`UPDATE "lesson_bookings" SET "status"=$1,"updated_at"=$2 WHERE payment_intent_id = $3 AND status = $4`)).
		WithArgs("payment_failed", sqlmock.AnyArg(), "pi_1", "pending_payment").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("body"), "sig"))
	assert.NoError(t, f.sm.ExpectationsWereMet())
}

func TestBookingService_WebhookRejectsBadSignature(t *testing.T) {
	f := newBookingFixture(t)
	f.gateway.On("ParseWebhook", mock.Anything, mock.Anything).Return(payments.WebhookEvent{}, errors.New("no signatures found"))

	err := f.svc.HandleWebhook(context.Background(), []byte("body"), "bad")

	assert.ErrorIs(t, err, ErrInvalidWebhook)
}

func TestBookingService_ConfirmPayment(t *testing.T) {
	f := newBookingFixture(t)
	intent := scheduling.BookingIntent{BookingID: bookingID.String(), ClientSecret: "pi_1_secret_x", StripeAccountID: "acct_1"}
	f.gateway.On("ConfirmPaymentIntent", mock.Anything, "acct_1", "pi_1", "pm_declined").
		Return(payments.PaymentIntentResult{}, errors.New("card_declined"))
	f.gateway.On("ConfirmPaymentIntent", mock.Anything, "acct_1", "pi_1", "pm_3ds").
		Return(payments.PaymentIntentResult{ID: "pi_1", Status: "requires_action"}, nil)
	f.gateway.On("ConfirmPaymentIntent", mock.Anything, "acct_1", "pi_1", "pm_slow").
		Return(payments.PaymentIntentResult{ID: "pi_1", Status: "processing"}, nil)

	assert.Error(t, f.svc.ConfirmPayment(context.Background(), intent, "pm_declined"))
	assert.Error(t, f.svc.ConfirmPayment(context.Background(), intent, "pm_3ds"))
	assert.NoError(t, f.svc.ConfirmPayment(context.Background(), intent, "pm_slow"))

	intent.ClientSecret = "garbage"
	assert.Error(t, f.svc.ConfirmPayment(context.Background(), intent, "pm_slow"))
}
