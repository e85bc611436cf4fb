package service

import "errors"

// Business outcomes. Handlers answer these with 4xx and never log them as
// failures.
var (
	ErrExpired               = errors.New("credits expired")
	ErrInsufficientCredits   = errors.New("insufficient credits")
	ErrInvalidPlan           = errors.New("invalid plan")
	ErrInvalidDiscountCode   = errors.New("invalid or expired discount code")
	ErrDuplicateDiscountCode = errors.New("discount code already exists")
	ErrInvalidCampaign       = errors.New("invalid campaign")
	ErrInvalidIdentity       = errors.New("invalid identity")
	ErrUnsupportedKind       = errors.New("unsupported generation kind")
	ErrOrderNotFound         = errors.New("order not found")
	ErrWebhookUnsupported    = errors.New("webhook not supported by configured gateway")
)

// Integrity failure. Logged distinctly from validation errors.
var ErrSignatureInvalid = errors.New("invalid signature")

// Infrastructure failures. The operation did not commit and may be retried.
var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrGenerationFailed   = errors.New("generation failed")
)
