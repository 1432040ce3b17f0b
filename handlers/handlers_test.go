package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Logan-Myn/dancehub-v3-sub000/apperrors"
	"github.com/Logan-Myn/dancehub-v3-sub000/handlers"
	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
	"github.com/Logan-Myn/dancehub-v3-sub000/models"
	"github.com/Logan-Myn/dancehub-v3-sub000/onboarding"
	"github.com/Logan-Myn/dancehub-v3-sub000/routes"
	"github.com/Logan-Myn/dancehub-v3-sub000/scheduling"
	"github.com/Logan-Myn/dancehub-v3-sub000/services"
)

const secret = "test-secret"

var (
	ownerID     = uuid.MustParse("9b2f6c1e-4a55-4a9b-8e1c-3f5d2a7b6c01")
	communityID = uuid.MustParse("5d7c8e9f-1a2b-4c3d-9e8f-7a6b5c4d3e21")
	teacherID   = "2c4e6a8b-0d1f-4a3c-9b5d-7e9f1a3c5e70"
	studentID   = "7f1e3d5c-9b7a-4e2d-8c6b-1a3f5e7d9c42"
	testNow     = time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)
)

type fakeCommunities struct {
	mu        sync.Mutex
	bySlug    map[string]*models.Community
	completed []string
}

func newFakeCommunities() *fakeCommunities {
	return &fakeCommunities{bySlug: map[string]*models.Community{
		"salsa": {ID: communityID, Slug: "salsa", Name: "Salsa Club", OwnerID: ownerID, Status: "active"},
	}}
}

func (f *fakeCommunities) GetBySlug(_ context.Context, slug string) (*models.Community, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.bySlug[slug]
	if !ok {
		return nil, apperrors.NewNotFoundError("Community")
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCommunities) GetCommunity(ctx context.Context, slug string) (onboarding.Community, error) {
	c, err := f.GetBySlug(ctx, slug)
	if err != nil {
		return onboarding.Community{}, err
	}
	return services.ToOnboardingCommunity(c), nil
}

func (f *fakeCommunities) SetStripeAccount(_ context.Context, id, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.bySlug {
		if c.ID.String() == id {
			acct := accountID
			c.StripeAccountID = &acct
			return nil
		}
	}
	return apperrors.NewNotFoundError("Community")
}

func (f *fakeCommunities) OnboardingComplete(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeCommunities) accountOf(slug string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p := f.bySlug[slug].StripeAccountID; p != nil {
		return *p
	}
	return ""
}

type fakeGateway struct {
	mu       sync.Mutex
	created  int
	steps    []onboarding.Step
	verified int
	status   onboarding.AccountStatus
	uploaded []string
}

func (g *fakeGateway) CreateAccount(context.Context, onboarding.CreateAccountRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created++
	return "acct_test", nil
}

func (g *fakeGateway) GetAccountStatus(context.Context, string) (onboarding.AccountStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status, nil
}

func (g *fakeGateway) UpdateAccountStep(_ context.Context, _ string, step onboarding.Step, _ onboarding.OnboardingData) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.steps = append(g.steps, step)
	return nil
}

func (g *fakeGateway) VerifyAccount(context.Context, string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verified++
	return nil
}

func (g *fakeGateway) UploadDocument(_ context.Context, _ string, doc onboarding.DocumentUpload) (onboarding.UploadedDocument, error) {
	b, err := io.ReadAll(doc.Content)
	if err != nil {
		return onboarding.UploadedDocument{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.uploaded = append(g.uploaded, doc.FileName+":"+string(b))
	return onboarding.UploadedDocument{FileRef: "file_1"}, nil
}

type fakeAvailability struct {
	mu      sync.Mutex
	slots   []scheduling.Slot
	added   []scheduling.Slot
	deleted []string
	listed  [2]string
}

func (a *fakeAvailability) ListAvailability(_ context.Context, _ string, start, end string) ([]scheduling.Slot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listed = [2]string{start, end}
	return append([]scheduling.Slot(nil), a.slots...), nil
}

func (a *fakeAvailability) AddSlot(_ context.Context, _ string, slot scheduling.Slot) (scheduling.Slot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.added = append(a.added, slot)
	slot.ID = "slot_new"
	return slot, nil
}

func (a *fakeAvailability) DeleteSlot(_ context.Context, _ string, slotID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, slotID)
	return nil
}

type fakeBookings struct {
	mu         sync.Mutex
	lesson     scheduling.Lesson
	slots      []scheduling.Slot
	member     bool
	requests   []scheduling.BookingRequest
	actors     []scheduling.Actor
	confirmed  []string
	webhookErr error
}

func (b *fakeBookings) GetLesson(_ context.Context, id string) (scheduling.Lesson, error) {
	if id != b.lesson.ID {
		return scheduling.Lesson{}, apperrors.NewNotFoundError("Lesson")
	}
	return b.lesson, nil
}

func (b *fakeBookings) OpenSlots(context.Context, scheduling.Lesson, time.Time, time.Time) ([]scheduling.Slot, error) {
	return append([]scheduling.Slot(nil), b.slots...), nil
}

func (b *fakeBookings) IsMember(context.Context, string, string) (bool, error) {
	return b.member, nil
}

func (b *fakeBookings) CreateBooking(_ context.Context, actor scheduling.Actor, req scheduling.BookingRequest) (scheduling.BookingIntent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	b.actors = append(b.actors, actor)
	return scheduling.BookingIntent{
		BookingID:       "booking_1",
		ClientSecret:    "pi_1_secret_abc",
		StripeAccountID: "acct_test",
		Price:           req.Price,
		Currency:        "usd",
	}, nil
}

func (b *fakeBookings) ConfirmPayment(_ context.Context, intent scheduling.BookingIntent, pm string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmed = append(b.confirmed, intent.BookingID+":"+pm)
	return nil
}

func (b *fakeBookings) HandleWebhook(context.Context, []byte, string) error {
	return b.webhookErr
}

type env struct {
	app          *fiber.App
	communities  *fakeCommunities
	gateway      *fakeGateway
	availability *fakeAvailability
	bookings     *fakeBookings
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		communities:  newFakeCommunities(),
		gateway:      &fakeGateway{status: onboarding.AccountStatus{ChargesEnabled: true, PayoutsEnabled: true}},
		availability: &fakeAvailability{},
		bookings: &fakeBookings{
			lesson: scheduling.Lesson{
				ID:              "lesson_1",
				CommunityID:     communityID.String(),
				TeacherID:       teacherID,
				Title:           "Salsa On2",
				DurationMinutes: 60,
				RegularPrice:    decimal.RequireFromString("50"),
				MemberPrice:     decimal.NewNullDecimal(decimal.RequireFromString("40")),
				Currency:        "usd",
			},
			slots: []scheduling.Slot{
				{ID: "past", Date: "2024-06-01", StartTime: "09:00", EndTime: "10:00"},
				{ID: "open", Date: "2024-06-01", StartTime: "14:00", EndTime: "15:00"},
			},
		},
	}
	log := logger.NewNoOpLogger()
	h := handlers.New(handlers.Config{
		Communities:  e.communities,
		Gateway:      e.gateway,
		Progress:     onboarding.NewMemoryStore(),
		Availability: e.availability,
		Bookings:     e.bookings,
		JWTSecret:    secret,
		Logger:       log,
		Now:          func() time.Time { return testNow },
	})

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(log)})
	routes.PublicRoutes(app)
	routes.OnboardingRoutes(app, h, secret)
	routes.UploadRoutes(app, h, secret)
	routes.AvailabilityRoutes(app, h, secret)
	routes.BookingRoutes(app, h, secret)
	routes.PaymentRoutes(app, h)
	e.app = app
	return e
}

func signToken(t *testing.T, userID, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"email":   "sam@example.com",
		"name":    "Sam",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func do(t *testing.T, app *fiber.App, method, path string, body interface{}, token string) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}
