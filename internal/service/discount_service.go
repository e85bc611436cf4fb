package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sefazor/resumeforge-backend/internal/models"
	"github.com/sefazor/resumeforge-backend/internal/repository"
	"github.com/sefazor/resumeforge-backend/pkg/clock"
)

type DiscountService struct {
	repo   *repository.DiscountRepository
	clock  clock.Clock
	logger *zap.Logger
}

func NewDiscountService(repo *repository.DiscountRepository, clk clock.Clock, logger *zap.Logger) *DiscountService {
	return &DiscountService{
		repo:   repo,
		clock:  clk,
		logger: logger.Named("discounts"),
	}
}

// Validate looks the code up as given. An unknown or out-of-window code is a
// normal negative result, not an error.
func (s *DiscountService) Validate(ctx context.Context, code string) (models.DiscountResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.DiscountResult{}, nil
	}

	dc, err := s.repo.FindActiveCode(ctx, code, s.clock.Now())
	if err != nil {
		if repository.IsNotFound(err) {
			return models.DiscountResult{}, nil
		}
		s.logger.Error("discount lookup failed", zap.Error(err))
		return models.DiscountResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return models.DiscountResult{Valid: true, Percentage: dc.Percentage}, nil
}

// MaxDiscountPercentage keeps every discounted order chargeable. Gateways
// refuse zero-amount orders.
const MaxDiscountPercentage = 99

// ApplyDiscount rounds half up to the nearest minor unit.
func ApplyDiscount(amount int64, percentage int) int64 {
	if percentage <= 0 {
		return amount
	}
	if percentage >= 100 {
		return 0
	}
	return (amount*int64(100-percentage) + 50) / 100
}

func (s *DiscountService) CreateCampaign(ctx context.Context, req models.CreateCampaignRequest) (*models.DiscountCampaign, error) {
	start, err := parseCampaignDate(req.StartDate, false)
	if err != nil {
		return nil, fmt.Errorf("%w: startDate: %v", ErrInvalidCampaign, err)
	}
	end, err := parseCampaignDate(req.EndDate, true)
	if err != nil {
		return nil, fmt.Errorf("%w: endDate: %v", ErrInvalidCampaign, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: endDate before startDate", ErrInvalidCampaign)
	}

	campaign := &models.DiscountCampaign{
		Name:      strings.TrimSpace(req.Name),
		StartDate: start,
		EndDate:   end,
	}
	seen := make(map[string]bool, len(req.Codes))
	for _, c := range req.Codes {
		code := strings.TrimSpace(c.Code)
		if c.Percentage < 1 || c.Percentage > MaxDiscountPercentage {
			return nil, fmt.Errorf("%w: %s: percentage must be between 1 and %d", ErrInvalidCampaign, code, MaxDiscountPercentage)
		}
		if seen[code] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDiscountCode, code)
		}
		seen[code] = true
		campaign.Codes = append(campaign.Codes, models.DiscountCode{Code: code, Percentage: c.Percentage})
	}

	if err := s.repo.CreateCampaign(ctx, campaign); err != nil {
		if repository.IsDuplicateKeyErr(err) {
			return nil, ErrDuplicateDiscountCode
		}
		s.logger.Error("create campaign failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.logger.Info("discount campaign created",
		zap.Uint("campaign_id", campaign.ID),
		zap.String("name", campaign.Name),
		zap.Int("codes", len(campaign.Codes)),
	)
	return campaign, nil
}

func (s *DiscountService) ListCampaigns(ctx context.Context) ([]models.DiscountCampaign, error) {
	campaigns, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return campaigns, nil
}

// A date-only end covers the whole day in UTC.
func parseCampaignDate(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC3339 or YYYY-MM-DD, got %q", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return t, nil
}
