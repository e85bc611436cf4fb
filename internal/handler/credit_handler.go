package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sefazor/resumeforge-backend/internal/middleware"
	"github.com/sefazor/resumeforge-backend/internal/models"
	"github.com/sefazor/resumeforge-backend/internal/service"
)

type CreditHandler struct {
	creditService *service.CreditService
	logger        *zap.Logger
}

func NewCreditHandler(creditService *service.CreditService, logger *zap.Logger) *CreditHandler {
	return &CreditHandler{
		creditService: creditService,
		logger:        logger.Named("credit_handler"),
	}
}

// CheckCredits returns the caller's record, creating the free allotment on
// first sight. success is false only when the record has expired.
func (h *CreditHandler) CheckCredits(c *fiber.Ctx) error {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return unauthenticated(c)
	}

	rec, check, err := h.creditService.Check(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"success": check.Reason != models.ReasonExpired,
		"credit":  rec,
		"canUse":  check.OK,
		"reason":  check.Reason,
	})
}

func (h *CreditHandler) DeductCredit(c *fiber.Ctx) error {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return unauthenticated(c)
	}

	rec, err := h.creditService.Deduct(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"credit":  rec,
	})
}
