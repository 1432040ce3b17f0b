package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Logan-Myn/dancehub-v3-sub000/apperrors"
)

// GenerateUploadSignature signs a direct browser upload into the account's
// document folder.
func (h *Handler) GenerateUploadSignature(c *fiber.Ctx) error {
	if h.signer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Document uploads are not configured"})
	}
	w, err := h.currentWizard(c)
	if err != nil {
		return err
	}
	accountID := w.Snapshot().Data.AccountID
	if accountID == "" {
		return apperrors.NewDocumentUploadError(errors.New("payment account is not set up yet"))
	}

	sig, err := h.signer.SignUpload(accountID)
	if err != nil {
		h.log.WithError(err).Error("failed to sign upload params", map[string]interface{}{"account_id": accountID})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to sign upload params"})
	}
	return c.JSON(sig)
}
