package models

import "time"

type PaymentStatus string

const (
	PaymentStatusCreated PaymentStatus = "created"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// PendingPayment tracks one gateway order. Status moves created -> paid or
// created -> failed, plus one extra edge: failed -> paid, so money captured
// after the order was expired locally still buys the plan. paid is terminal.
type PendingPayment struct {
	ID               uint          `json:"-" gorm:"primaryKey"`
	OrderID          string        `json:"orderId" gorm:"uniqueIndex;size:128;not null"`
	PaymentID        string        `json:"paymentId,omitempty" gorm:"size:128"`
	Signature        string        `json:"-" gorm:"size:256"`
	Provider         string        `json:"provider" gorm:"size:32;not null"`
	AmountMinorUnits int64         `json:"amount" gorm:"not null"`
	Currency         string        `json:"currency" gorm:"size:8;not null"`
	Status           PaymentStatus `json:"status" gorm:"size:16;not null;index"`
	IdentityKey      string        `json:"-" gorm:"size:64;not null;index"`
	IdentityEmail    string        `json:"-" gorm:"size:255"`
	PlanTier         PlanTier      `json:"planType" gorm:"size:16;not null"`
	DiscountCode     *string       `json:"discountCode,omitempty" gorm:"size:64"`
	DiscountedAmount *int64        `json:"discountedAmount,omitempty"`
	PaidAt           *time.Time    `json:"paidAt,omitempty"`
	CreatedAt        time.Time     `json:"createdAt" gorm:"index"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

func (PendingPayment) TableName() string { return "pending_payments" }

type CreateOrderRequest struct {
	PlanType     string `json:"planType" validate:"required,plan_tier"`
	DiscountCode string `json:"discountCode" validate:"omitempty,discount_code"`
}

type VerifyPaymentRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type ValidateDiscountRequest struct {
	Code string `json:"code" validate:"required"`
}

// OrderResult carries the gateway-facing parameters the client needs to open
// the payment flow. It never contains the gateway secret.
type OrderResult struct {
	OrderID     string `json:"orderId"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	KeyID       string `json:"keyId"`
	PlanName    string `json:"planName"`
	UserEmail   string `json:"userEmail"`
	UserName    string `json:"userName"`
	CheckoutURL string `json:"checkoutUrl,omitempty"`
}

// VerifyResult reports whether this call granted credits or replayed an
// already-paid order.
type VerifyResult struct {
	Replayed bool
	Payment  PendingPayment
	Credit   *CreditRecord
}
