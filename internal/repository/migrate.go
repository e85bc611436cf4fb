package repository

import (
	"gorm.io/gorm"

	"github.com/sefazor/resumeforge-backend/internal/models"
)

func MigratePrimary(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.CreditRecord{},
		&models.PendingPayment{},
		&models.DiscountCampaign{},
		&models.DiscountCode{},
	)
}

// MigrateLegacy only adds what is missing; existing legacy columns are kept.
func MigrateLegacy(db *gorm.DB) error {
	return db.AutoMigrate(
		&LegacyCreditRow{},
		&models.PendingPayment{},
	)
}
