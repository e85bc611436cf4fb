package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sefazor/resumeforge-backend/internal/middleware"
	"github.com/sefazor/resumeforge-backend/internal/models"
	"github.com/sefazor/resumeforge-backend/internal/service"
	"github.com/sefazor/resumeforge-backend/pkg/utils"
)

type PaymentHandler struct {
	paymentService  *service.PaymentService
	discountService *service.DiscountService
	validator       *utils.Validator
	logger          *zap.Logger
}

func NewPaymentHandler(paymentService *service.PaymentService, discountService *service.DiscountService, validator *utils.Validator, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService:  paymentService,
		discountService: discountService,
		validator:       validator,
		logger:          logger.Named("payment_handler"),
	}
}

func (h *PaymentHandler) GetPlans(c *fiber.Ctx) error {
	return c.JSON(models.SuccessResponse(h.paymentService.Plans(), "Plans retrieved successfully"))
}

func (h *PaymentHandler) ValidateDiscount(c *fiber.Ctx) error {
	var req models.ValidateDiscountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return fieldError(c, "code", "Discount code is required")
	}

	result, err := h.discountService.Validate(c.UserContext(), req.Code)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if !result.Valid {
		return fieldError(c, "code", "Invalid or expired discount code")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"discount": fiber.Map{
			"discountPercentage": result.Percentage,
		},
	})
}

func (h *PaymentHandler) CreateOrder(c *fiber.Ctx) error {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return unauthenticated(c)
	}

	var req models.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return validationError(c, err)
	}

	order, err := h.paymentService.CreateOrder(c.UserContext(), id, req.PlanType, req.DiscountCode)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	resp := fiber.Map{
		"success":   true,
		"orderId":   order.OrderID,
		"amount":    order.Amount,
		"currency":  order.Currency,
		"keyId":     order.KeyID,
		"planName":  order.PlanName,
		"userEmail": order.UserEmail,
		"userName":  order.UserName,
	}
	if order.CheckoutURL != "" {
		resp["checkoutUrl"] = order.CheckoutURL
	}
	return c.JSON(resp)
}

func (h *PaymentHandler) VerifyPayment(c *fiber.Ctx) error {
	if _, ok := middleware.CurrentIdentity(c); !ok {
		return unauthenticated(c)
	}

	var req models.VerifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return validationError(c, err)
	}

	result, err := h.paymentService.Verify(c.UserContext(), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	message := "Payment verified successfully"
	if result.Replayed {
		message = "Payment already verified"
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"credit":  result.Credit,
	})
}

func (h *PaymentHandler) GetPaymentHistory(c *fiber.Ctx) error {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return unauthenticated(c)
	}

	payments, err := h.paymentService.History(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(models.SuccessResponse(payments, "Payment history retrieved successfully"))
}

// HandleStripeWebhook acknowledges every correctly signed event, including
// ones for orders this service does not know.
func (h *PaymentHandler) HandleStripeWebhook(c *fiber.Ctx) error {
	err := h.paymentService.HandleStripeWebhook(c.UserContext(), c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.SendStatus(fiber.StatusOK)
}
