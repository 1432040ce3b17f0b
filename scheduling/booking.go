package scheduling

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Logan-Myn/dancehub-v3-sub000/apperrors"
	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
	"github.com/Logan-Myn/dancehub-v3-sub000/metrics"
)

// Actor is the person booking. Authentication comes from the session provider.
type Actor struct {
	UserID        string
	Email         string
	Name          string
	Authenticated bool
	Member        bool
}

type Lesson struct {
	ID              string
	CommunityID     string
	TeacherID       string
	Title           string
	DurationMinutes int
	RegularPrice    decimal.Decimal
	MemberPrice     decimal.NullDecimal
	Currency        string
}

// SelectPrice charges the member price only when the actor is a member and
// the member price is set and lower than the regular price.
func SelectPrice(l Lesson, a Actor) decimal.Decimal {
	if a.Member && l.MemberPrice.Valid && l.MemberPrice.Decimal.LessThan(l.RegularPrice) {
		return l.MemberPrice.Decimal
	}
	return l.RegularPrice
}

type StudentContact struct {
	Name  string `json:"student_name" validate:"required"`
	Email string `json:"student_email" validate:"required,email"`
	Phone string `json:"student_phone,omitempty" validate:"omitempty,max=32"`
	Notes string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type BookingRequest struct {
	LessonID           string          `json:"lesson_id"`
	ScheduledAt        time.Time       `json:"scheduled_at"`
	AvailabilitySlotID string          `json:"availability_slot_id"`
	Student            StudentContact  `json:"student"`
	Price              decimal.Decimal `json:"price"`
}

// BookingIntent is a provisional booking awaiting payment.
type BookingIntent struct {
	BookingID       string          `json:"booking_id"`
	ClientSecret    string          `json:"client_secret"`
	StripeAccountID string          `json:"stripe_account_id"`
	Price           decimal.Decimal `json:"price"`
	Currency        string          `json:"currency"`
}

type BookingAPI interface {
	CreateBooking(ctx context.Context, actor Actor, req BookingRequest) (BookingIntent, error)
}

type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, intent BookingIntent, paymentMethodID string) error
}

type FlowState string

const (
	FlowIdle            FlowState = "idle"
	FlowSelecting       FlowState = "selecting"
	FlowAwaitingPayment FlowState = "awaiting_payment"
	FlowCompleted       FlowState = "completed"
	FlowClosed          FlowState = "closed"
)

var contactValidate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	return v
}()

type FlowConfig struct {
	Lesson   Lesson
	Actor    Actor
	Bookings BookingAPI
	Payments PaymentConfirmer
	Location *time.Location
	Now      func() time.Time
	Logger   logger.Logger
}

// BookingFlow binds a student to an offerable slot, places a provisional
// booking and confirms its payment. Each step is gated on the previous.
type BookingFlow struct {
	mu       sync.Mutex
	lesson   Lesson
	actor    Actor
	price    decimal.Decimal
	bookings BookingAPI
	payments PaymentConfirmer
	loc      *time.Location
	now      func() time.Time
	log      logger.Logger

	state      FlowState
	offered    []Slot
	selected   *Slot
	intent     *BookingIntent
	submitting bool
}

// NewBookingFlow fixes the price for the whole flow.
func NewBookingFlow(cfg FlowConfig) *BookingFlow {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}
	return &BookingFlow{
		lesson:   cfg.Lesson,
		actor:    cfg.Actor,
		price:    SelectPrice(cfg.Lesson, cfg.Actor),
		bookings: cfg.Bookings,
		payments: cfg.Payments,
		loc:      cfg.Location,
		now:      cfg.Now,
		log:      cfg.Logger.WithFields(map[string]interface{}{"lesson_id": cfg.Lesson.ID, "user_id": cfg.Actor.UserID}),
		state:    FlowIdle,
	}
}

func (f *BookingFlow) Price() decimal.Decimal { return f.price }

func (f *BookingFlow) Actor() Actor { return f.actor }

func (f *BookingFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *BookingFlow) Intent() (BookingIntent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.intent == nil {
		return BookingIntent{}, false
	}
	return *f.intent, true
}

// Offer opens the booking surface with the slots still in the future.
func (f *BookingFlow) Offer(slots []Slot) ([]Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.actor.Authenticated {
		metrics.BookingStages.WithLabelValues("offer", "unauthenticated").Inc()
		return nil, apperrors.NewUnauthenticatedError()
	}
	if f.state == FlowClosed || f.state == FlowCompleted {
		return nil, apperrors.NewSessionClosedError()
	}
	f.offered = Offerable(slots, f.now().In(f.loc))
	f.state = FlowSelecting
	return append([]Slot(nil), f.offered...), nil
}

func (f *BookingFlow) Select(slotID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != FlowSelecting {
		return apperrors.NewNoSlotSelectedError()
	}
	for _, sl := range f.offered {
		if sl.ID != "" && sl.ID == slotID {
			s := sl
			f.selected = &s
			return nil
		}
	}
	return apperrors.NewNoSlotSelectedError()
}

// Submit places the provisional booking for the selected slot.
func (f *BookingFlow) Submit(ctx context.Context, contact StudentContact) (BookingIntent, error) {
	f.mu.Lock()
	if !f.actor.Authenticated {
		f.mu.Unlock()
		return BookingIntent{}, apperrors.NewUnauthenticatedError()
	}
	if f.state != FlowSelecting || f.selected == nil {
		f.mu.Unlock()
		return BookingIntent{}, apperrors.NewNoSlotSelectedError()
	}
	if f.submitting {
		f.mu.Unlock()
		return BookingIntent{}, apperrors.NewBookingError("Your booking is already being placed.", nil)
	}
	f.submitting = true
	slot := *f.selected
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()

	// the slot may have started since it was offered
	if len(Offerable([]Slot{slot}, f.now().In(f.loc))) == 0 {
		return BookingIntent{}, apperrors.NewNoSlotSelectedError()
	}
	if err := contactValidate.Struct(contact); err != nil {
		return BookingIntent{}, apperrors.NewValidationError(contactErrors(err))
	}

	scheduledAt, err := Combine(slot.Date, slot.StartTime, f.loc)
	if err != nil {
		return BookingIntent{}, apperrors.NewNoSlotSelectedError()
	}

	intent, err := f.bookings.CreateBooking(ctx, f.actor, BookingRequest{
		LessonID:           f.lesson.ID,
		ScheduledAt:        scheduledAt.UTC(),
		AvailabilitySlotID: slot.ID,
		Student:            contact,
		Price:              f.price,
	})
	if err != nil {
		metrics.BookingStages.WithLabelValues("create", "error").Inc()
		f.log.WithError(err).Error("booking creation failed", map[string]interface{}{"slot_id": slot.ID})
		var ae *apperrors.AppError
		if errors.As(err, &ae) {
			return BookingIntent{}, ae
		}
		return BookingIntent{}, apperrors.NewBookingError("We could not place your booking. Please try again.", err)
	}
	metrics.BookingStages.WithLabelValues("create", "ok").Inc()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FlowClosed {
		return intent, apperrors.NewSessionClosedError()
	}
	f.intent = &intent
	f.state = FlowAwaitingPayment
	return intent, nil
}

// ConfirmPayment collects payment. On failure the booking stays provisional
// and the call may be retried.
func (f *BookingFlow) ConfirmPayment(ctx context.Context, paymentMethodID string) error {
	f.mu.Lock()
	if f.state != FlowAwaitingPayment || f.intent == nil {
		f.mu.Unlock()
		return apperrors.NewInvalidTransitionError("There is no booking awaiting payment")
	}
	intent := *f.intent
	f.mu.Unlock()

	if err := f.payments.ConfirmPayment(ctx, intent, paymentMethodID); err != nil {
		metrics.BookingStages.WithLabelValues("payment", "error").Inc()
		f.log.WithError(err).Warn("payment confirmation failed", map[string]interface{}{"booking_id": intent.BookingID})
		return apperrors.NewPaymentError(err)
	}
	metrics.BookingStages.WithLabelValues("payment", "ok").Inc()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FlowAwaitingPayment {
		f.state = FlowCompleted
	}
	return nil
}

func (f *BookingFlow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != FlowCompleted {
		f.state = FlowClosed
	}
}

func (f *BookingFlow) Closed() bool {
	s := f.State()
	return s == FlowClosed || s == FlowCompleted
}

func contactErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = "This field is required"
		case "email":
			out[fe.Field()] = "Invalid email address"
		default:
			out[fe.Field()] = "Value is too long"
		}
	}
	return out
}
