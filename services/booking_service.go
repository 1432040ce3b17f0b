package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Logan-Myn/dancehub-v3-sub000/apperrors"
	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
	"github.com/Logan-Myn/dancehub-v3-sub000/models"
	"github.com/Logan-Myn/dancehub-v3-sub000/notifications"
	"github.com/Logan-Myn/dancehub-v3-sub000/payments"
	"github.com/Logan-Myn/dancehub-v3-sub000/scheduling"
)

// ErrInvalidWebhook marks a webhook whose signature or body was rejected.
var ErrInvalidWebhook = errors.New("invalid webhook")

type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, in payments.PaymentIntentInput) (payments.PaymentIntentResult, error)
	ConfirmPaymentIntent(ctx context.Context, connectedAccount, intentID, paymentMethodID string) (payments.PaymentIntentResult, error)
	ParseWebhook(payload []byte, signature string) (payments.WebhookEvent, error)
}

type MemberLookup interface {
	CommunityLookup
	IsMember(ctx context.Context, communityID, userID string) (bool, error)
}

type BookingConfig struct {
	DB                 *gorm.DB
	Payments           PaymentGateway
	Communities        MemberLookup
	Mailer             notifications.Mailer
	PlatformFeePercent float64
	Location           *time.Location
	Logger             logger.Logger
}

// BookingService places provisional lesson bookings and reconciles them
// with Stripe.
type BookingService struct {
	db          *gorm.DB
	payments    PaymentGateway
	communities MemberLookup
	mailer      notifications.Mailer
	feePercent  decimal.Decimal
	loc         *time.Location
	log         logger.Logger
	now         func() time.Time
}

func NewBookingService(cfg BookingConfig) *BookingService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &BookingService{
		db:          cfg.DB,
		payments:    cfg.Payments,
		communities: cfg.Communities,
		mailer:      cfg.Mailer,
		feePercent:  decimal.NewFromFloat(cfg.PlatformFeePercent),
		loc:         cfg.Location,
		log:         cfg.Logger,
		now:         time.Now,
	}
}

func toLesson(m models.PrivateLesson) scheduling.Lesson {
	return scheduling.Lesson{
		ID:              m.ID.String(),
		CommunityID:     m.CommunityID.String(),
		TeacherID:       m.TeacherID.String(),
		Title:           m.Title,
		DurationMinutes: m.DurationMinutes,
		RegularPrice:    m.RegularPrice,
		MemberPrice:     m.MemberPrice,
		Currency:        m.Currency,
	}
}

func (s *BookingService) loadLesson(ctx context.Context, lessonID string) (models.PrivateLesson, error) {
	var lesson models.PrivateLesson
	id, err := uuid.Parse(lessonID)
	if err != nil {
		return lesson, apperrors.NewNotFoundError("Lesson")
	}
	if err := s.db.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&lesson).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lesson, apperrors.NewNotFoundError("Lesson")
		}
		return lesson, fmt.Errorf("load lesson %s: %w", lessonID, err)
	}
	return lesson, nil
}

func (s *BookingService) GetLesson(ctx context.Context, lessonID string) (scheduling.Lesson, error) {
	lesson, err := s.loadLesson(ctx, lessonID)
	if err != nil {
		return scheduling.Lesson{}, err
	}
	return toLesson(lesson), nil
}

func (s *BookingService) IsMember(ctx context.Context, communityID, userID string) (bool, error) {
	return s.communities.IsMember(ctx, communityID, userID)
}

// OpenSlots lists the teacher's slots between from and to that no active
// booking holds. Past slots are filtered by the booking flow.
func (s *BookingService) OpenSlots(ctx context.Context, lesson scheduling.Lesson, from, to time.Time) ([]scheduling.Slot, error) {
	tid, err := parseTeacher(lesson.TeacherID)
	if err != nil {
		return nil, err
	}
	held := s.db.Model(&models.LessonBooking{}).
		Select("availability_slot_id").
		Where("status IN ?", models.ActiveBookingStatuses)

	var rows []models.AvailabilitySlot
	err = s.db.WithContext(ctx).
		Where("teacher_id = ? AND date >= ? AND date <= ?", tid, scheduling.DateKey(from.In(s.loc)), scheduling.DateKey(to.In(s.loc))).
		Where("id NOT IN (?)", held).
		Order("date asc, start_time asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list open slots: %w", err)
	}
	out := make([]scheduling.Slot, 0, len(rows))
	for _, r := range rows {
		out = append(out, toSlot(r))
	}
	return out, nil
}

// CreateBooking holds the slot with a pending_payment booking and opens a
// PaymentIntent on the community's connected account. A request whose price
// no longer matches the lesson's current price is refused.
func (s *BookingService) CreateBooking(ctx context.Context, actor scheduling.Actor, req scheduling.BookingRequest) (scheduling.BookingIntent, error) {
	if !actor.Authenticated {
		return scheduling.BookingIntent{}, apperrors.NewUnauthenticatedError()
	}
	studentID, err := uuid.Parse(actor.UserID)
	if err != nil {
		return scheduling.BookingIntent{}, apperrors.NewUnauthenticatedError()
	}
	slotID, err := uuid.Parse(req.AvailabilitySlotID)
	if err != nil {
		return scheduling.BookingIntent{}, apperrors.NewNoSlotSelectedError()
	}

	lessonRow, err := s.loadLesson(ctx, req.LessonID)
	if err != nil {
		return scheduling.BookingIntent{}, err
	}
	community, err := s.communities.GetByID(ctx, lessonRow.CommunityID.String())
	if err != nil {
		return scheduling.BookingIntent{}, err
	}
	if community.StripeAccountID == nil || *community.StripeAccountID == "" || !community.StripeOnboardingComplete {
		return scheduling.BookingIntent{}, apperrors.NewBookingError("This community is not accepting payments yet.", nil)
	}
	connected := *community.StripeAccountID

	member, err := s.communities.IsMember(ctx, community.ID.String(), actor.UserID)
	if err != nil {
		s.log.WithError(err).Warn("membership check failed, using the regular price", map[string]interface{}{"user_id": actor.UserID})
	}
	actor.Member = member
	lesson := toLesson(lessonRow)
	price := scheduling.SelectPrice(lesson, actor)
	if !req.Price.Equal(price) {
		s.log.Warn("client price differs from server price", map[string]interface{}{
			"lesson_id": lesson.ID, "client": req.Price.String(), "server": price.String(),
		})
		return scheduling.BookingIntent{}, apperrors.NewBookingError("The lesson price has changed. Please review it and book again.", nil)
	}

	booking := models.LessonBooking{
		LessonID:           lessonRow.ID,
		StudentID:          studentID,
		AvailabilitySlotID: slotID,
		StudentName:        req.Student.Name,
		StudentEmail:       req.Student.Email,
		Price:              price,
		Currency:           lesson.Currency,
		StripeAccountID:    connected,
		Status:             models.BookingPendingPayment,
	}
	if req.Student.Phone != "" {
		booking.StudentPhone = &req.Student.Phone
	}
	if req.Student.Notes != "" {
		booking.Notes = &req.Student.Notes
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot models.AvailabilitySlot
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", slotID).First(&slot).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNoSlotSelectedError()
			}
			return err
		}
		if slot.TeacherID != lessonRow.TeacherID {
			return apperrors.NewNoSlotSelectedError()
		}
		scheduledAt, err := scheduling.Combine(slot.Date, slot.StartTime, s.loc)
		if err != nil || !scheduledAt.After(s.now()) {
			return apperrors.NewNoSlotSelectedError()
		}
		if !req.ScheduledAt.IsZero() && !req.ScheduledAt.Equal(scheduledAt) {
			return apperrors.NewNoSlotSelectedError()
		}

		var held int64
		if err := tx.Model(&models.LessonBooking{}).
			Where("availability_slot_id = ? AND status IN ?", slotID, models.ActiveBookingStatuses).
			Count(&held).Error; err != nil {
			return err
		}
		if held > 0 {
			return apperrors.NewAvailabilityConflictError("This slot has just been booked. Please pick another time.")
		}

		booking.ScheduledAt = scheduledAt.UTC()
		return tx.Create(&booking).Error
	})
	if err != nil {
		var ae *apperrors.AppError
		if errors.As(err, &ae) {
			return scheduling.BookingIntent{}, ae
		}
		return scheduling.BookingIntent{}, fmt.Errorf("create booking: %w", err)
	}

	amount := payments.MinorUnits(price, lesson.Currency)
	fee := payments.PlatformFee(amount, s.feePercent)
	pi, err := s.payments.CreatePaymentIntent(ctx, payments.PaymentIntentInput{
		ConnectedAccount: connected,
		Amount:           amount,
		ApplicationFee:   fee,
		Currency:         lesson.Currency,
		Description:      lesson.Title,
		ReceiptEmail:     req.Student.Email,
		Metadata: map[string]string{
			"booking_id": booking.ID.String(),
			"lesson_id":  lesson.ID,
			"student_id": actor.UserID,
		},
	})
	if err != nil {
		if uerr := s.db.WithContext(ctx).Model(&booking).Update("status", models.BookingPaymentFailed).Error; uerr != nil {
			s.log.WithError(uerr).Error("failed to release booking after payment intent error", map[string]interface{}{"booking_id": booking.ID.String()})
		}
		return scheduling.BookingIntent{}, apperrors.NewBookingError("We could not start the payment for this booking. Please try again.", err)
	}

	feeAmount := decimal.New(fee, 0)
	if !payments.IsZeroDecimal(lesson.Currency) {
		feeAmount = decimal.New(fee, -2)
	}
	if err := s.db.WithContext(ctx).Model(&booking).Updates(map[string]interface{}{
		"payment_intent_id": pi.ID,
		"platform_fee":      feeAmount,
	}).Error; err != nil {
		return scheduling.BookingIntent{}, fmt.Errorf("store payment intent: %w", err)
	}

	s.log.Info("booking created", map[string]interface{}{"booking_id": booking.ID.String(), "payment_intent_id": pi.ID})
	return scheduling.BookingIntent{
		BookingID:       booking.ID.String(),
		ClientSecret:    pi.ClientSecret,
		StripeAccountID: connected,
		Price:           price,
		Currency:        lesson.Currency,
	}, nil
}

// ConfirmPayment confirms the booking's PaymentIntent with a payment method.
// A succeeded intent confirms the booking right away; the webhook would do
// the same a moment later.
func (s *BookingService) ConfirmPayment(ctx context.Context, intent scheduling.BookingIntent, paymentMethodID string) error {
	piID, ok := payments.IntentIDFromClientSecret(intent.ClientSecret)
	if !ok {
		return fmt.Errorf("malformed client secret for booking %s", intent.BookingID)
	}
	res, err := s.payments.ConfirmPaymentIntent(ctx, intent.StripeAccountID, piID, paymentMethodID)
	if err != nil {
		return err
	}
	switch res.Status {
	case "succeeded":
		return s.markConfirmed(ctx, piID)
	case "processing":
		return nil
	}
	return fmt.Errorf("payment not completed: %s", res.Status)
}

// HandleWebhook applies payment_intent.succeeded and
// payment_intent.payment_failed events. Other events are ignored.
func (s *BookingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.payments.ParseWebhook(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	log := s.log.WithFields(map[string]interface{}{"event_id": ev.ID, "type": ev.Type, "payment_intent_id": ev.PaymentIntentID})

	switch ev.Type {
	case "payment_intent.succeeded":
		return s.markConfirmed(ctx, ev.PaymentIntentID)
	case "payment_intent.payment_failed":
		res := s.db.WithContext(ctx).Model(&models.LessonBooking{}).
			Where("payment_intent_id = ? AND status = ?", ev.PaymentIntentID, models.BookingPendingPayment).
			Update("status", models.BookingPaymentFailed)
		if res.Error != nil {
			return fmt.Errorf("mark payment failed: %w", res.Error)
		}
		log.Info("booking payment failed", map[string]interface{}{"updated": res.RowsAffected})
	default:
		log.Debug("ignoring webhook event", nil)
	}
	return nil
}

// markConfirmed is idempotent. A booking whose payment failed earlier is
// only revived while no other booking holds its slot.
func (s *BookingService) markConfirmed(ctx context.Context, piID string) error {
	var booking models.LessonBooking
	confirmed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("payment_intent_id = ?", piID).First(&booking).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		switch booking.Status {
		case models.BookingConfirmed:
			return nil
		case models.BookingPaymentFailed:
			var held int64
			if err := tx.Model(&models.LessonBooking{}).
				Where("availability_slot_id = ? AND id <> ? AND status IN ?", booking.AvailabilitySlotID, booking.ID, models.ActiveBookingStatuses).
				Count(&held).Error; err != nil {
				return err
			}
			if held > 0 {
				s.log.Error("payment succeeded for a slot that was rebooked, refund required", map[string]interface{}{
					"booking_id": booking.ID.String(), "payment_intent_id": piID,
				})
				return nil
			}
		}
		if err := tx.Model(&booking).Update("status", models.BookingConfirmed).Error; err != nil {
			return err
		}
		confirmed = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("confirm booking: %w", err)
	}
	if confirmed {
		s.log.Info("booking confirmed", map[string]interface{}{"booking_id": booking.ID.String()})
		s.sendConfirmation(ctx, booking)
	}
	return nil
}

func (s *BookingService) sendConfirmation(ctx context.Context, booking models.LessonBooking) {
	lesson, err := s.loadLessonAny(ctx, booking.LessonID)
	if err != nil {
		s.log.WithError(err).Warn("cannot load lesson for confirmation email", map[string]interface{}{"booking_id": booking.ID.String()})
		return
	}
	at := booking.ScheduledAt.In(s.loc)
	email := notifications.BookingConfirmed(booking.StudentName, lesson.Title, at, booking.Price.StringFixed(2), booking.Currency)
	if err := s.mailer.Send(ctx, booking.StudentName, booking.StudentEmail, email.Subject, email.HTML); err != nil {
		s.log.WithError(err).Warn("failed to send booking confirmation", map[string]interface{}{"booking_id": booking.ID.String()})
	}

	community, err := s.communities.GetByID(ctx, lesson.CommunityID.String())
	if err != nil || community.OwnerEmail == "" {
		return
	}
	teacherEmail := notifications.NewBookingForTeacher(booking.StudentName, lesson.Title, at)
	if err := s.mailer.Send(ctx, community.OwnerName, community.OwnerEmail, teacherEmail.Subject, teacherEmail.HTML); err != nil {
		s.log.WithError(err).Warn("failed to notify community owner", map[string]interface{}{"booking_id": booking.ID.String()})
	}
}

func (s *BookingService) loadLessonAny(ctx context.Context, id uuid.UUID) (models.PrivateLesson, error) {
	var lesson models.PrivateLesson
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&lesson).Error
	return lesson, err
}

// SendReminders emails students whose confirmed lesson starts within
// [now+lead, now+lead+window) and records that a reminder went out.
func (s *BookingService) SendReminders(ctx context.Context, lead, window time.Duration) (int, error) {
	now := s.now()
	var due []models.LessonBooking
	err := s.db.WithContext(ctx).
		Preload("Lesson").
		Where("status = ? AND reminder_sent_at IS NULL AND scheduled_at >= ? AND scheduled_at < ?",
			models.BookingConfirmed, now.Add(lead), now.Add(lead+window)).
		Find(&due).Error
	if err != nil {
		return 0, fmt.Errorf("find due reminders: %w", err)
	}

	sent := 0
	for _, b := range due {
		email := notifications.LessonReminder(b.StudentName, b.Lesson.Title, b.ScheduledAt.In(s.loc))
		if err := s.mailer.Send(ctx, b.StudentName, b.StudentEmail, email.Subject, email.HTML); err != nil {
			s.log.WithError(err).Warn("failed to send lesson reminder", map[string]interface{}{"booking_id": b.ID.String()})
			continue
		}
		if err := s.db.WithContext(ctx).Model(&models.LessonBooking{}).Where("id = ?", b.ID).Update("reminder_sent_at", now).Error; err != nil {
			s.log.WithError(err).Warn("failed to record reminder", map[string]interface{}{"booking_id": b.ID.String()})
		}
		sent++
	}
	return sent, nil
}
