package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sefazor/resumeforge-backend/internal/models"
	"github.com/sefazor/resumeforge-backend/internal/service"
	"github.com/sefazor/resumeforge-backend/pkg/utils"
)

type AdminHandler struct {
	discountService *service.DiscountService
	validator       *utils.Validator
	logger          *zap.Logger
}

func NewAdminHandler(discountService *service.DiscountService, validator *utils.Validator, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		discountService: discountService,
		validator:       validator,
		logger:          logger.Named("admin_handler"),
	}
}

func (h *AdminHandler) CreateCampaign(c *fiber.Ctx) error {
	var req models.CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return validationError(c, err)
	}

	campaign, err := h.discountService.CreateCampaign(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.SuccessResponse(campaign, "Campaign created successfully"))
}

func (h *AdminHandler) ListCampaigns(c *fiber.Ctx) error {
	campaigns, err := h.discountService.ListCampaigns(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(models.SuccessResponse(campaigns, "Campaigns retrieved successfully"))
}
