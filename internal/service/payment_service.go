package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sefazor/resumeforge-backend/internal/models"
	"github.com/sefazor/resumeforge-backend/internal/repository"
	"github.com/sefazor/resumeforge-backend/pkg/clock"
	"github.com/sefazor/resumeforge-backend/pkg/metrics"
	"github.com/sefazor/resumeforge-backend/pkg/payment"
)

// ReceiptNotifier receives first-time confirmations after commit. It must not
// block the caller.
type ReceiptNotifier interface {
	PaymentConfirmed(p models.PendingPayment, credit models.CreditRecord, plan models.PlanDefinition)
}

// WebhookParser is implemented by gateways that confirm over webhooks.
type WebhookParser interface {
	ParseWebhook(payload []byte, signatureHeader string) (*payment.CheckoutEvent, error)
}

type PaymentServiceParams struct {
	Stores          *repository.Stores
	Resolver        *IdentityResolver
	Credits         *CreditService
	Discounts       *DiscountService
	Gateway         payment.Gateway
	Plans           models.PlanCatalog
	Currency        string
	SignatureSecret string
	GatewayTimeout  time.Duration
	Clock           clock.Clock
	Metrics         *metrics.Metrics
	Notifier        ReceiptNotifier
	Logger          *zap.Logger
}

type PaymentService struct {
	stores          *repository.Stores
	resolver        *IdentityResolver
	credits         *CreditService
	discounts       *DiscountService
	gateway         payment.Gateway
	plans           models.PlanCatalog
	currency        string
	signatureSecret string
	gatewayTimeout  time.Duration
	clock           clock.Clock
	metrics         *metrics.Metrics
	notifier        ReceiptNotifier
	logger          *zap.Logger
}

func NewPaymentService(p PaymentServiceParams) *PaymentService {
	timeout := p.GatewayTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PaymentService{
		stores:          p.Stores,
		resolver:        p.Resolver,
		credits:         p.Credits,
		discounts:       p.Discounts,
		gateway:         p.Gateway,
		plans:           p.Plans,
		currency:        p.Currency,
		signatureSecret: p.SignatureSecret,
		gatewayTimeout:  timeout,
		clock:           p.Clock,
		metrics:         p.Metrics,
		notifier:        p.Notifier,
		logger:          p.Logger.Named("payments"),
	}
}

func (s *PaymentService) Plans() []models.PlanDefinition {
	return s.plans.List()
}

// CreateOrder prices the plan, opens a gateway order and records it locally.
// Nothing is persisted unless the gateway confirmed the order.
func (s *PaymentService) CreateOrder(ctx context.Context, id models.Identity, planType, discountCode string) (*models.OrderResult, error) {
	tier, ok := models.ParsePlanTier(planType)
	if !ok {
		return nil, ErrInvalidPlan
	}
	plan, ok := s.plans.Paid(tier)
	if !ok {
		return nil, ErrInvalidPlan
	}

	resolved, err := s.resolver.Resolve(id)
	if err != nil {
		return nil, err
	}
	store, ok := s.stores.For(resolved.Store)
	if !ok {
		return nil, fmt.Errorf("%w: %s store not configured", ErrStoreUnavailable, resolved.Store)
	}

	amount := plan.AmountMinorUnits
	var appliedCode *string
	var discounted *int64
	if code := strings.TrimSpace(discountCode); code != "" {
		result, err := s.discounts.Validate(ctx, code)
		if err != nil {
			return nil, err
		}
		if !result.Valid {
			return nil, ErrInvalidDiscountCode
		}
		amount = ApplyDiscount(amount, result.Percentage)
		if amount <= 0 {
			// A code that zeroes the price cannot be charged.
			return nil, ErrInvalidDiscountCode
		}
		appliedCode = &code
		discounted = &amount
	}

	notes := map[string]string{
		payment.NoteIdentityKey:    resolved.Key,
		payment.NoteIdentitySource: string(resolved.Store),
		payment.NoteEmail:          resolved.Email,
		payment.NotePlan:           string(plan.Tier),
	}
	if appliedCode != nil {
		notes[payment.NoteDiscountCode] = *appliedCode
	}

	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	began := time.Now()
	order, err := s.gateway.CreateOrder(gctx, payment.OrderRequest{
		Amount:        amount,
		Currency:      s.currency,
		Receipt:       "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Description:   plan.DisplayName,
		CustomerEmail: resolved.Email,
		Notes:         notes,
	})
	s.metrics.ObserveGateway(s.gateway.Name(), "create_order", time.Since(began).Seconds())
	if err != nil {
		s.metrics.OrderCreated(string(plan.Tier), "gateway_error")
		s.logger.Warn("gateway order creation failed", zap.String("plan", string(plan.Tier)), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	now := s.clock.Now()
	pending := &models.PendingPayment{
		OrderID:          order.ID,
		Provider:         s.gateway.Name(),
		AmountMinorUnits: amount,
		Currency:         s.currency,
		Status:           models.PaymentStatusCreated,
		IdentityKey:      resolved.Key,
		IdentityEmail:    resolved.Email,
		PlanTier:         plan.Tier,
		DiscountCode:     appliedCode,
		DiscountedAmount: discounted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := store.Payments.Create(ctx, pending); err != nil {
		s.metrics.OrderCreated(string(plan.Tier), "store_error")
		s.logger.Error("gateway order created but not recorded; reconciler will restore it",
			zap.String("order_id", order.ID),
			zap.String("store", string(store.Source)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.metrics.OrderCreated(string(plan.Tier), "ok")
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("plan", string(plan.Tier)),
		zap.Int64("amount", amount),
		zap.String("store", string(store.Source)),
	)

	return &models.OrderResult{
		OrderID:     order.ID,
		Amount:      amount,
		Currency:    s.currency,
		KeyID:       s.gateway.PublicKey(),
		PlanName:    plan.DisplayName,
		UserEmail:   resolved.Email,
		UserName:    resolved.Name,
		CheckoutURL: order.CheckoutURL,
	}, nil
}

// Verify checks the client-supplied signature before touching any state.
func (s *PaymentService) Verify(ctx context.Context, orderID, paymentID, signature string) (*models.VerifyResult, error) {
	if !payment.VerifySignature(s.signatureSecret, orderID, paymentID, signature) {
		s.metrics.Verification("signature_invalid")
		s.logger.Warn("payment signature mismatch",
			zap.Bool("integrity", true),
			zap.String("order_id", orderID),
			zap.String("payment_id", paymentID),
		)
		return nil, ErrSignatureInvalid
	}
	return s.ConfirmPaid(ctx, orderID, paymentID, signature)
}

// ConfirmPaid marks the order paid and grants the plan in one transaction of
// the store that holds the order. A replay finds the order already paid and
// returns success without granting again.
func (s *PaymentService) ConfirmPaid(ctx context.Context, orderID, paymentID, signature string) (*models.VerifyResult, error) {
	store, pending, err := s.findPayment(ctx, orderID)
	if err != nil {
		s.metrics.Verification("lookup_failed")
		return nil, err
	}

	plan, ok := s.plans[pending.PlanTier]
	if !ok {
		s.logger.Error("paid order references unknown plan", zap.String("order_id", orderID), zap.String("plan", string(pending.PlanTier)))
		return nil, ErrInvalidPlan
	}

	replayed := false
	now := s.clock.Now()
	err = store.Transaction(ctx, func(credits *repository.CreditRepository, payments *repository.PaymentRepository) error {
		flipped, err := payments.MarkPaid(ctx, orderID, paymentID, signature, now)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !flipped {
			replayed = true
			return nil
		}
		return s.credits.grant(ctx, credits, store.Source, pending.IdentityKey, plan, paymentID)
	})
	if err != nil {
		s.metrics.Verification("error")
		s.logger.Error("payment confirmation failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}

	pending, err = store.Payments.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	credit, err := store.Credits.Get(ctx, pending.IdentityKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if replayed {
		s.metrics.Verification("replayed")
		s.logger.Info("payment already confirmed", zap.String("order_id", orderID))
		return &models.VerifyResult{Replayed: true, Payment: *pending, Credit: credit}, nil
	}

	s.metrics.Verification("granted")
	s.logger.Info("payment confirmed",
		zap.String("order_id", orderID),
		zap.String("payment_id", paymentID),
		zap.String("plan", string(plan.Tier)),
		zap.String("store", string(store.Source)),
	)
	if s.notifier != nil {
		s.notifier.PaymentConfirmed(*pending, *credit, plan)
	}
	return &models.VerifyResult{Payment: *pending, Credit: credit}, nil
}

// findPayment looks in every configured store. An order id is unique to the
// gateway, so at most one store has it.
func (s *PaymentService) findPayment(ctx context.Context, orderID string) (*repository.Store, *models.PendingPayment, error) {
	var lookupErr error
	for _, store := range s.stores.All() {
		p, err := store.Payments.GetByOrderID(ctx, orderID)
		if err == nil {
			return store, p, nil
		}
		if repository.IsNotFound(err) {
			continue
		}
		s.logger.Error("pending payment lookup failed", zap.String("store", string(store.Source)), zap.Error(err))
		lookupErr = err
	}
	if lookupErr != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, lookupErr)
	}
	return nil, nil, ErrOrderNotFound
}

func (s *PaymentService) History(ctx context.Context, id models.Identity) ([]models.PendingPayment, error) {
	resolved, err := s.resolver.Resolve(id)
	if err != nil {
		return nil, err
	}
	store, ok := s.stores.For(resolved.Store)
	if !ok {
		return nil, fmt.Errorf("%w: %s store not configured", ErrStoreUnavailable, resolved.Store)
	}
	payments, err := store.Payments.GetPaymentHistory(ctx, resolved.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return payments, nil
}

// markFailed closes an order that will never be paid.
func (s *PaymentService) markFailed(ctx context.Context, orderID string) (bool, error) {
	store, _, err := s.findPayment(ctx, orderID)
	if err != nil {
		return false, err
	}
	ok, err := store.Payments.MarkFailed(ctx, orderID, s.clock.Now())
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}

// HandleStripeWebhook confirms or closes checkout sessions. Unknown orders are
// acknowledged; the reconciler restores them from the gateway.
func (s *PaymentService) HandleStripeWebhook(ctx context.Context, body []byte, signatureHeader string) error {
	parser, ok := s.gateway.(WebhookParser)
	if !ok {
		return ErrWebhookUnsupported
	}

	evt, err := parser.ParseWebhook(body, signatureHeader)
	if err != nil {
		s.logger.Warn("webhook signature rejected", zap.Bool("integrity", true), zap.Error(err))
		return ErrSignatureInvalid
	}

	switch evt.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		if !evt.Paid {
			return nil
		}
		_, err := s.ConfirmPaid(ctx, evt.OrderID, evt.PaymentID, "")
		if errors.Is(err, ErrOrderNotFound) {
			s.logger.Warn("webhook for unknown order", zap.String("order_id", evt.OrderID))
			return nil
		}
		return err
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		_, err := s.markFailed(ctx, evt.OrderID)
		if errors.Is(err, ErrOrderNotFound) {
			return nil
		}
		return err
	default:
		return nil
	}
}
