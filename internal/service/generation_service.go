package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sefazor/resumeforge-backend/internal/models"
	"github.com/sefazor/resumeforge-backend/pkg/ai"
)

type GenerationService struct {
	credits   *CreditService
	completer ai.Completer
	logger    *zap.Logger
}

func NewGenerationService(credits *CreditService, completer ai.Completer, logger *zap.Logger) *GenerationService {
	return &GenerationService{
		credits:   credits,
		completer: completer,
		logger:    logger.Named("generation"),
	}
}

// Generate charges one credit for a successful completion. A failed
// completion hands the credit back.
func (s *GenerationService) Generate(ctx context.Context, id models.Identity, kind, prompt string) (*ai.Completion, *models.CreditRecord, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if !ai.SupportedKind(kind) {
		return nil, nil, ErrUnsupportedKind
	}

	var out *ai.Completion
	rec, err := s.credits.Spend(ctx, id, func(ctx context.Context) error {
		completion, err := s.completer.Complete(ctx, ai.Request{Kind: kind, Prompt: prompt})
		if err != nil {
			s.logger.Warn("completion failed, credit released", zap.String("kind", kind), zap.Error(err))
			return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
		out = completion
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, rec, nil
}
