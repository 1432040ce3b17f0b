package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/Logan-Myn/dancehub-v3-sub000/apperrors"
	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
	"github.com/Logan-Myn/dancehub-v3-sub000/models"
	"github.com/Logan-Myn/dancehub-v3-sub000/onboarding"
	"github.com/Logan-Myn/dancehub-v3-sub000/scheduling"
	"github.com/Logan-Myn/dancehub-v3-sub000/services"
	"github.com/Logan-Myn/dancehub-v3-sub000/uploads"
	"github.com/Logan-Myn/dancehub-v3-sub000/websocket"
)

var validate = validator.New()

type Communities interface {
	onboarding.CommunityDirectory
	onboarding.CompletionNotifier
	GetBySlug(ctx context.Context, slug string) (*models.Community, error)
}

type Bookings interface {
	scheduling.BookingAPI
	scheduling.PaymentConfirmer
	GetLesson(ctx context.Context, lessonID string) (scheduling.Lesson, error)
	OpenSlots(ctx context.Context, lesson scheduling.Lesson, from, to time.Time) ([]scheduling.Slot, error)
	IsMember(ctx context.Context, communityID, userID string) (bool, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type UploadSigner interface {
	SignUpload(accountID string) (uploads.UploadSignature, error)
}

type Config struct {
	Communities   Communities
	Gateway       onboarding.AccountGateway
	Provisioner   *onboarding.AccountProvisioner
	Progress      onboarding.ProgressStore
	Availability  scheduling.AvailabilityAPI
	Bookings      Bookings
	Signer        UploadSigner
	Wizards       *services.Registry[*onboarding.Wizard]
	Flows         *services.Registry[*scheduling.BookingFlow]
	Hub           *websocket.Hub
	JWTSecret     string
	AutosaveDelay time.Duration
	Location      *time.Location
	Logger        logger.Logger
	Now           func() time.Time
}

// Handler serves the onboarding, availability and booking endpoints.
type Handler struct {
	communities   Communities
	gateway       onboarding.AccountGateway
	provisioner   *onboarding.AccountProvisioner
	progress      onboarding.ProgressStore
	availability  scheduling.AvailabilityAPI
	bookings      Bookings
	signer        UploadSigner
	wizards       *services.Registry[*onboarding.Wizard]
	flows         *services.Registry[*scheduling.BookingFlow]
	hub           *websocket.Hub
	jwtSecret     string
	autosaveDelay time.Duration
	loc           *time.Location
	log           logger.Logger
	now           func() time.Time
}

func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AutosaveDelay <= 0 {
		cfg.AutosaveDelay = onboarding.AutosaveDelay
	}
	if cfg.Wizards == nil {
		cfg.Wizards = services.NewRegistry[*onboarding.Wizard]("wizard")
	}
	if cfg.Flows == nil {
		cfg.Flows = services.NewRegistry[*scheduling.BookingFlow]("booking")
	}
	if cfg.Provisioner == nil {
		cfg.Provisioner = onboarding.NewAccountProvisioner(cfg.Gateway, cfg.Communities, 0, cfg.Logger)
	}
	return &Handler{
		communities:   cfg.Communities,
		gateway:       cfg.Gateway,
		provisioner:   cfg.Provisioner,
		progress:      cfg.Progress,
		availability:  cfg.Availability,
		bookings:      cfg.Bookings,
		signer:        cfg.Signer,
		wizards:       cfg.Wizards,
		flows:         cfg.Flows,
		hub:           cfg.Hub,
		jwtSecret:     cfg.JWTSecret,
		autosaveDelay: cfg.AutosaveDelay,
		loc:           cfg.Location,
		log:           cfg.Logger,
		now:           cfg.Now,
	}
}

// ErrorHandler renders AppErrors with their status and code, and any other
// error the way fiber does.
func ErrorHandler(log logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var ae *apperrors.AppError
		if errors.As(err, &ae) {
			status := apperrors.HTTPStatus(ae)
			fields := map[string]interface{}{"path": c.Path(), "method": c.Method(), "code": string(ae.Code)}
			if status >= fiber.StatusInternalServerError {
				log.WithError(err).Error("request failed", fields)
			} else {
				log.Debug("request rejected", fields)
			}
			body := fiber.Map{
				"status":  "error",
				"code":    ae.Code,
				"message": ae.Message,
			}
			if len(ae.Fields) > 0 {
				body["fields"] = ae.Fields
			}
			if ae.Retryable {
				body["retryable"] = true
			}
			return c.Status(status).JSON(body)
		}

		code := fiber.StatusInternalServerError
		message := "Internal server error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		}
		if code >= fiber.StatusInternalServerError {
			log.WithError(err).Error("request failed", map[string]interface{}{"path": c.Path(), "method": c.Method()})
		}
		return c.Status(code).JSON(fiber.Map{
			"status":  "error",
			"code":    code,
			"message": message,
		})
	}
}

func (h *Handler) today() time.Time {
	return h.now().In(h.loc)
}
