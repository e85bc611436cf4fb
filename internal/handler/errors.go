package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sefazor/resumeforge-backend/internal/models"
	"github.com/sefazor/resumeforge-backend/internal/service"
	"github.com/sefazor/resumeforge-backend/pkg/utils"
)

// respondError maps service errors to status codes. Business outcomes are
// answered without logging; only unexpected failures reach the error log.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	switch {
	case errors.Is(err, service.ErrExpired):
		return upgradeRequired(c, models.ReasonExpired, "Your credits have expired. Please upgrade your plan.")
	case errors.Is(err, service.ErrInsufficientCredits):
		return upgradeRequired(c, models.ReasonInsufficient, "You have no credits left. Please upgrade your plan.")
	case errors.Is(err, service.ErrInvalidPlan):
		return fieldError(c, "planType", "Invalid plan")
	case errors.Is(err, service.ErrInvalidDiscountCode):
		return fieldError(c, "discountCode", "Invalid or expired discount code")
	case errors.Is(err, service.ErrInvalidCampaign):
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse(err.Error()))
	case errors.Is(err, service.ErrUnsupportedKind):
		return fieldError(c, "kind", "Unsupported generation kind")
	case errors.Is(err, service.ErrInvalidIdentity):
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("Invalid identity"))
	case errors.Is(err, service.ErrSignatureInvalid):
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid signature"))
	case errors.Is(err, service.ErrOrderNotFound):
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse("Order not found"))
	case errors.Is(err, service.ErrWebhookUnsupported):
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse("Webhook not enabled"))
	case errors.Is(err, service.ErrDuplicateDiscountCode):
		return c.Status(fiber.StatusConflict).JSON(models.ErrorResponse(err.Error()))
	case errors.Is(err, service.ErrGatewayUnavailable):
		return retryable(c, fiber.StatusServiceUnavailable, "Payment provider is unavailable, nothing was charged. Please try again.")
	case errors.Is(err, service.ErrStoreUnavailable):
		return retryable(c, fiber.StatusServiceUnavailable, "Service temporarily unavailable. Please try again.")
	case errors.Is(err, service.ErrGenerationFailed):
		return retryable(c, fiber.StatusBadGateway, "Generation failed, no credit was used. Please try again.")
	}

	log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse("Internal server error"))
}

func upgradeRequired(c *fiber.Ctx, reason models.BalanceReason, message string) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"success":         false,
		"message":         message,
		"reason":          reason,
		"upgradeRequired": true,
	})
}

func fieldError(c *fiber.Ctx, field, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": message,
		"field":   field,
	})
}

func retryable(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success":   false,
		"message":   message,
		"retryable": true,
	})
}

func validationError(c *fiber.Ctx, err error) error {
	field := utils.FirstField(err)
	switch field {
	case "planType":
		return fieldError(c, field, "Invalid plan")
	case "discountCode":
		return fieldError(c, field, "Invalid or expired discount code")
	case "":
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid request"))
	}
	return fieldError(c, field, "Invalid value for "+field)
}

func unauthenticated(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("User not authenticated"))
}
