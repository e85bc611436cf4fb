package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sefazor/resumeforge-backend/internal/models"
)

// Store bundles the repositories of one backing database.
type Store struct {
	Source   models.IdentitySource
	db       *gorm.DB
	Credits  *CreditRepository
	Payments *PaymentRepository
}

func NewStore(source models.IdentitySource, db *gorm.DB, schema CreditSchema) *Store {
	return &Store{
		Source:   source,
		db:       db,
		Credits:  NewCreditRepository(db, schema),
		Payments: NewPaymentRepository(db),
	}
}

// Transaction runs fn with repositories bound to one database transaction.
func (s *Store) Transaction(ctx context.Context, fn func(credits *CreditRepository, payments *PaymentRepository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.Credits.WithTx(tx), s.Payments.WithTx(tx))
	})
}

// Stores routes by identity source. Legacy is nil when not configured.
type Stores struct {
	Primary *Store
	Legacy  *Store
}

func NewStores(primary, legacy *gorm.DB) *Stores {
	stores := &Stores{
		Primary: NewStore(models.SourcePrimary, primary, PrimaryCreditSchema),
	}
	if legacy != nil {
		stores.Legacy = NewStore(models.SourceLegacy, legacy, LegacyCreditSchema)
	}
	return stores
}

func (s *Stores) For(source models.IdentitySource) (*Store, bool) {
	switch source {
	case models.SourcePrimary:
		return s.Primary, true
	case models.SourceLegacy:
		return s.Legacy, s.Legacy != nil
	}
	return nil, false
}

// All returns the configured stores, primary first.
func (s *Stores) All() []*Store {
	if s.Legacy == nil {
		return []*Store{s.Primary}
	}
	return []*Store{s.Primary, s.Legacy}
}
