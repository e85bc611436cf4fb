package models

import (
	"strings"
	"time"
)

type PlanTier string

const (
	PlanFree     PlanTier = "Free"
	PlanPro      PlanTier = "Pro"
	PlanUltimate PlanTier = "Ultimate"
)

// ParsePlanTier accepts any casing ("pro", "PRO", "Pro").
func ParsePlanTier(raw string) (PlanTier, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "free":
		return PlanFree, true
	case "pro":
		return PlanPro, true
	case "ultimate":
		return PlanUltimate, true
	}
	return "", false
}

// Free tier allotment for a newly seen identity.
const (
	FreeCredits        = 2
	FreeValidityMonths = 3
)

// CreditRecord is one identity's usage allowance. Legacy rows are read into the
// same shape, so field names here are the normalized ones.
type CreditRecord struct {
	ID             uint      `json:"-" gorm:"primaryKey"`
	IdentityKey    string    `json:"identityKey" gorm:"uniqueIndex;size:64;not null"`
	PlanTier       PlanTier  `json:"planTier" gorm:"size:16;not null;default:'Free'"`
	TotalCredits   int       `json:"totalCredits" gorm:"not null;default:0"`
	UsedCredits    int       `json:"usedCredits" gorm:"not null;default:0"`
	ExpiresAt      time.Time `json:"expiresAt" gorm:"not null"`
	LastPaymentRef string    `json:"lastPaymentRef,omitempty" gorm:"size:64"`
	Epoch          int       `json:"-" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (CreditRecord) TableName() string { return "credit_records" }

func (r CreditRecord) Remaining() int {
	if r.UsedCredits >= r.TotalCredits {
		return 0
	}
	return r.TotalCredits - r.UsedCredits
}

type BalanceReason string

const (
	ReasonExpired      BalanceReason = "Expired"
	ReasonInsufficient BalanceReason = "Insufficient"
)

type BalanceCheck struct {
	OK     bool          `json:"ok"`
	Reason BalanceReason `json:"reason,omitempty"`
}
