package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sefazor/resumeforge-backend/internal/middleware"
	"github.com/sefazor/resumeforge-backend/internal/models"
	"github.com/sefazor/resumeforge-backend/internal/service"
	"github.com/sefazor/resumeforge-backend/pkg/utils"
)

type GenerateRequest struct {
	Kind   string `json:"kind" validate:"required"`
	Prompt string `json:"prompt" validate:"required,max=4000"`
}

type AIHandler struct {
	generationService *service.GenerationService
	validator         *utils.Validator
	logger            *zap.Logger
}

func NewAIHandler(generationService *service.GenerationService, validator *utils.Validator, logger *zap.Logger) *AIHandler {
	return &AIHandler{
		generationService: generationService,
		validator:         validator,
		logger:            logger.Named("ai_handler"),
	}
}

// Generate runs one credit-gated completion.
func (h *AIHandler) Generate(c *fiber.Ctx) error {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return unauthenticated(c)
	}

	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return validationError(c, err)
	}

	out, rec, err := h.generationService.Generate(c.UserContext(), id, req.Kind, req.Prompt)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"text":    out.Text,
		"model":   out.Model,
		"credit":  rec,
	})
}
