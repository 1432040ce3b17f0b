package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Logan-Myn/dancehub-v3-sub000/apperrors"
	"github.com/Logan-Myn/dancehub-v3-sub000/middleware"
	"github.com/Logan-Myn/dancehub-v3-sub000/models"
	"github.com/Logan-Myn/dancehub-v3-sub000/onboarding"
	"github.com/Logan-Myn/dancehub-v3-sub000/services"
	"github.com/Logan-Myn/dancehub-v3-sub000/websocket"
)

// ownedCommunity loads the :slug community and checks the caller owns it.
func (h *Handler) ownedCommunity(c *fiber.Ctx) (*models.Community, error) {
	community, err := h.communities.GetBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return nil, err
	}
	if !services.IsOwner(community, middleware.UserID(c)) {
		return nil, apperrors.NewForbiddenError("Only the community owner can set up payments")
	}
	return community, nil
}

func (h *Handler) currentWizard(c *fiber.Ctx) (*onboarding.Wizard, error) {
	community, err := h.ownedCommunity(c)
	if err != nil {
		return nil, err
	}
	w, ok := h.wizards.Get(community.ID.String())
	if !ok {
		return nil, apperrors.NewNotFoundError("Onboarding session")
	}
	return w, nil
}

// OpenOnboarding starts a wizard for the community, resuming saved progress.
// An open session is returned as is.
func (h *Handler) OpenOnboarding(c *fiber.Ctx) error {
	community, err := h.ownedCommunity(c)
	if err != nil {
		return err
	}
	key := community.ID.String()
	ctx := c.UserContext()

	w, err := h.wizards.GetOrCreate(key, func() (*onboarding.Wizard, error) {
		w := onboarding.NewWizard(onboarding.WizardConfig{
			Community:     services.ToOnboardingCommunity(community),
			Gateway:       h.gateway,
			Directory:     h.communities,
			Provisioner:   h.provisioner,
			Store:         h.progress,
			Notifier:      h.communities,
			AutosaveDelay: h.autosaveDelay,
			Logger:        h.log,
			Now:           h.now,
		})
		if h.hub != nil {
			topic := websocket.OnboardingTopic(key)
			w.Subscribe(func(s onboarding.State) { h.hub.Publish(topic, s) })
		}
		w.Open(ctx)
		return w, nil
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(w.Snapshot())
}

func (h *Handler) GetOnboarding(c *fiber.Ctx) error {
	w, err := h.currentWizard(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"state": w.Snapshot(), "errors": w.Errors()})
}

// SaveStep replaces one step's data. It does not advance the wizard.
func (h *Handler) SaveStep(c *fiber.Ctx) error {
	step, ok := onboarding.ParseStep(c.Params("step"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown onboarding step"})
	}
	w, err := h.currentWizard(c)
	if err != nil {
		return err
	}

	switch step {
	case onboarding.StepBusinessInfo:
		var info onboarding.BusinessInfo
		if err := c.BodyParser(&info); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
		}
		err = w.SetBusinessInfo(info)
	case onboarding.StepPersonalInfo:
		var info onboarding.PersonalInfo
		if err := c.BodyParser(&info); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
		}
		err = w.SetPersonalInfo(info)
	case onboarding.StepBankAccount:
		var account onboarding.BankAccount
		if err := c.BodyParser(&account); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
		}
		err = w.SetBankAccount(account)
	case onboarding.StepDocuments:
		var docs []onboarding.Document
		if err := c.BodyParser(&docs); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
		}
		err = w.SetDocuments(docs)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "The verification step has no data to save"})
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"state": w.Snapshot(), "errors": w.Errors()})
}

func (h *Handler) NextStep(c *fiber.Ctx) error {
	w, err := h.currentWizard(c)
	if err != nil {
		return err
	}
	if err := w.Next(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(w.Snapshot())
}

func (h *Handler) PreviousStep(c *fiber.Ctx) error {
	w, err := h.currentWizard(c)
	if err != nil {
		return err
	}
	if err := w.Previous(); err != nil {
		return err
	}
	return c.JSON(w.Snapshot())
}

func (h *Handler) JumpToStep(c *fiber.Ctx) error {
	step, ok := onboarding.ParseStep(c.Params("step"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown onboarding step"})
	}
	w, err := h.currentWizard(c)
	if err != nil {
		return err
	}
	if err := w.JumpTo(step); err != nil {
		return err
	}
	return c.JSON(w.Snapshot())
}

// FinishOnboarding accepts the terms of service from the caller's IP.
func (h *Handler) FinishOnboarding(c *fiber.Ctx) error {
	w, err := h.currentWizard(c)
	if err != nil {
		return err
	}
	ctx := services.WithClientIP(c.UserContext(), c.IP())
	if err := w.Finish(ctx); err != nil {
		return err
	}
	return c.JSON(w.Snapshot())
}

func (h *Handler) UploadDocument(c *fiber.Ctx) error {
	w, err := h.currentWizard(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "A document file is required"})
	}
	if fh.Size > services.MaxDocumentSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "Documents must be 10MB or smaller"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot read the uploaded file"})
	}
	defer f.Close()

	doc, err := w.UploadDocument(c.UserContext(), onboarding.DocumentUpload{
		FileName:     fh.Filename,
		ContentType:  fh.Header.Get(fiber.HeaderContentType),
		Content:      f,
		DocumentType: c.FormValue("document_type", onboarding.DocumentIdentity),
		Purpose:      c.FormValue("purpose", onboarding.DocumentIdentity),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

func (h *Handler) AccountStatus(c *fiber.Ctx) error {
	w, err := h.currentWizard(c)
	if err != nil {
		return err
	}
	status, err := w.Status(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":               status,
		"verificationRequired": status.VerificationRequired(),
	})
}

// CloseOnboarding drops the session. Saved progress is kept.
func (h *Handler) CloseOnboarding(c *fiber.Ctx) error {
	community, err := h.ownedCommunity(c)
	if err != nil {
		return err
	}
	h.wizards.Delete(community.ID.String())
	return c.SendStatus(fiber.StatusNoContent)
}
