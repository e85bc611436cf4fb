package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sefazor/resumeforge-backend/internal/models"
)

type DiscountRepository struct {
	db *gorm.DB
}

func NewDiscountRepository(db *gorm.DB) *DiscountRepository {
	return &DiscountRepository{
		db: db,
	}
}

// CreateCampaign stores the campaign and its codes together.
func (r *DiscountRepository) CreateCampaign(ctx context.Context, campaign *models.DiscountCampaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

// FindActiveCode matches code exactly within a campaign whose window
// contains now. Both window bounds are inclusive.
func (r *DiscountRepository) FindActiveCode(ctx context.Context, code string, now time.Time) (*models.DiscountCode, error) {
	var dc models.DiscountCode
	err := r.db.WithContext(ctx).
		Joins("JOIN discount_campaigns ON discount_campaigns.id = discount_codes.campaign_id").
		Where("discount_codes.code = ?", code).
		Where("discount_campaigns.start_date <= ? AND discount_campaigns.end_date >= ?", now, now).
		Take(&dc).Error
	if err != nil {
		return nil, err
	}
	return &dc, nil
}

func (r *DiscountRepository) GetAll(ctx context.Context) ([]models.DiscountCampaign, error) {
	var campaigns []models.DiscountCampaign
	err := r.db.WithContext(ctx).
		Preload("Codes").
		Order("start_date DESC").
		Find(&campaigns).Error
	return campaigns, err
}
