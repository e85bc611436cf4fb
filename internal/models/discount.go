package models

import "time"

// DiscountCampaign is an administrator-seeded window of codes.
type DiscountCampaign struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"size:128;not null"`
	StartDate time.Time      `json:"startDate" gorm:"not null;index"`
	EndDate   time.Time      `json:"endDate" gorm:"not null;index"`
	Codes     []DiscountCode `json:"codes" gorm:"foreignKey:CampaignID"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (DiscountCampaign) TableName() string { return "discount_campaigns" }

// Codes are globally unique across campaigns.
type DiscountCode struct {
	ID         uint   `json:"-" gorm:"primaryKey"`
	CampaignID uint   `json:"-" gorm:"not null;index"`
	Code       string `json:"code" gorm:"uniqueIndex;size:64;not null"`
	Percentage int    `json:"percentage" gorm:"not null"`
}

func (DiscountCode) TableName() string { return "discount_codes" }

type DiscountCodeRequest struct {
	Code       string `json:"code" validate:"required,discount_code"`
	Percentage int    `json:"percentage" validate:"required,min=1,max=99"`
}

type CreateCampaignRequest struct {
	Name      string                `json:"name" validate:"required"`
	StartDate string                `json:"startDate" validate:"required"`
	EndDate   string                `json:"endDate" validate:"required"`
	Codes     []DiscountCodeRequest `json:"codes" validate:"required,min=1,dive"`
}

type DiscountResult struct {
	Valid      bool
	Percentage int
}
