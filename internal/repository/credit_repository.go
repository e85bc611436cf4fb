package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sefazor/resumeforge-backend/internal/models"
)

// CreditSchema names the columns of a credit table. The primary and legacy
// stores keep the same facts under different names.
type CreditSchema struct {
	Table      string
	Key        string
	Plan       string
	Total      string
	Used       string
	ExpiresAt  string
	PaymentRef string
	Epoch      string
	newRow     func(models.CreditRecord) interface{}
}

var PrimaryCreditSchema = CreditSchema{
	Table:      "credit_records",
	Key:        "identity_key",
	Plan:       "plan_tier",
	Total:      "total_credits",
	Used:       "used_credits",
	ExpiresAt:  "expires_at",
	PaymentRef: "last_payment_ref",
	Epoch:      "epoch",
	newRow: func(r models.CreditRecord) interface{} {
		return &r
	},
}

var LegacyCreditSchema = CreditSchema{
	Table:      "user_credits",
	Key:        "user_id",
	Plan:       "plan",
	Total:      "credits_total",
	Used:       "credits_used",
	ExpiresAt:  "valid_until",
	PaymentRef: "last_order_ref",
	Epoch:      "grant_epoch",
	newRow: func(r models.CreditRecord) interface{} {
		return &LegacyCreditRow{
			UserID:       r.IdentityKey,
			Plan:         string(r.PlanTier),
			CreditsTotal: r.TotalCredits,
			CreditsUsed:  r.UsedCredits,
			ValidUntil:   r.ExpiresAt,
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
		}
	},
}

// LegacyCreditRow is the pre-migration table layout. Only migrations and
// inserts use it; reads go through the normalized CreditRecord.
type LegacyCreditRow struct {
	ID           uint      `gorm:"primaryKey"`
	UserID       string    `gorm:"uniqueIndex;size:64;not null"`
	Plan         string    `gorm:"size:16;not null;default:'Free'"`
	CreditsTotal int       `gorm:"not null;default:0"`
	CreditsUsed  int       `gorm:"not null;default:0"`
	ValidUntil   time.Time `gorm:"not null"`
	LastOrderRef string    `gorm:"size:64"`
	GrantEpoch   int       `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (LegacyCreditRow) TableName() string { return "user_credits" }

func (s CreditSchema) selectColumns() string {
	return strings.Join([]string{
		"id",
		s.Key + " AS identity_key",
		s.Plan + " AS plan_tier",
		s.Total + " AS total_credits",
		s.Used + " AS used_credits",
		s.ExpiresAt + " AS expires_at",
		s.PaymentRef + " AS last_payment_ref",
		s.Epoch + " AS epoch",
		"created_at",
		"updated_at",
	}, ", ")
}

// CreditRepository is the only writer of credit rows. Every mutation is a
// single conditional statement so concurrent callers cannot interleave a
// read and a write.
type CreditRepository struct {
	db     *gorm.DB
	schema CreditSchema
}

func NewCreditRepository(db *gorm.DB, schema CreditSchema) *CreditRepository {
	return &CreditRepository{
		db:     db,
		schema: schema,
	}
}

func (r *CreditRepository) WithTx(tx *gorm.DB) *CreditRepository {
	return &CreditRepository{db: tx, schema: r.schema}
}

func (r *CreditRepository) Get(ctx context.Context, key string) (*models.CreditRecord, error) {
	var rec models.CreditRecord
	err := r.db.WithContext(ctx).
		Table(r.schema.Table).
		Select(r.schema.selectColumns()).
		Where(r.schema.Key+" = ?", key).
		Take(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetOrCreate inserts seed when no row exists for key and returns the stored
// row. A concurrent insert of the same key is absorbed by the unique index.
func (r *CreditRepository) GetOrCreate(ctx context.Context, key string, seed models.CreditRecord) (*models.CreditRecord, bool, error) {
	rec, err := r.Get(ctx, key)
	if err == nil {
		return rec, false, nil
	}
	if !IsNotFound(err) {
		return nil, false, err
	}

	seed.IdentityKey = key
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: r.schema.Key}}, DoNothing: true}).
		Create(r.schema.newRow(seed))
	if res.Error != nil {
		return nil, false, fmt.Errorf("insert credit row: %w", res.Error)
	}

	rec, err = r.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return rec, res.RowsAffected == 1, nil
}

// Deduct consumes one credit if the row is still at epoch, unexpired at now
// and not exhausted. It reports whether a row changed.
func (r *CreditRepository) Deduct(ctx context.Context, key string, epoch int, now time.Time) (bool, error) {
	s := r.schema
	sql := fmt.Sprintf(
		"UPDATE %s SET %s = %s + 1, updated_at = ? WHERE %s = ? AND %s = ? AND %s < %s AND %s >= ?",
		s.Table, s.Used, s.Used, s.Key, s.Epoch, s.Used, s.Total, s.ExpiresAt,
	)
	res := r.db.WithContext(ctx).Exec(sql, now, key, epoch, now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release returns a reserved credit. If the row was re-granted since the
// reservation, used was already reset, so the unit is added to total instead.
func (r *CreditRepository) Release(ctx context.Context, key string, epoch int, now time.Time) error {
	s := r.schema
	sql := fmt.Sprintf(
		"UPDATE %s SET %s = %s - 1, updated_at = ? WHERE %s = ? AND %s = ? AND %s > 0",
		s.Table, s.Used, s.Used, s.Key, s.Epoch, s.Used,
	)
	res := r.db.WithContext(ctx).Exec(sql, now, key, epoch)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	sql = fmt.Sprintf("UPDATE %s SET %s = %s + 1, updated_at = ? WHERE %s = ?", s.Table, s.Total, s.Total, s.Key)
	res = r.db.WithContext(ctx).Exec(sql, now, key)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type Grant struct {
	Plan       models.PlanTier
	Credits    int
	ExpiresAt  time.Time
	PaymentRef string
}

// Grant rolls unused credits over and adds g.Credits in one statement. The
// total is assigned before used is reset; mysql evaluates SET left to right.
func (r *CreditRepository) Grant(ctx context.Context, key string, g Grant, now time.Time) error {
	s := r.schema
	sql := fmt.Sprintf(
		"UPDATE %s SET %s = (CASE WHEN %s > %s THEN %s - %s ELSE 0 END) + ?, %s = 0, %s = ?, %s = ?, %s = ?, %s = %s + 1, updated_at = ? WHERE %s = ?",
		s.Table,
		s.Total, s.Total, s.Used, s.Total, s.Used,
		s.Used,
		s.ExpiresAt,
		s.Plan,
		s.PaymentRef,
		s.Epoch, s.Epoch,
		s.Key,
	)
	res := r.db.WithContext(ctx).Exec(sql, g.Credits, g.ExpiresAt, string(g.Plan), g.PaymentRef, now, key)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
