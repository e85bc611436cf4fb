package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sefazor/resumeforge-backend/internal/models"
	"github.com/sefazor/resumeforge-backend/internal/repository"
	"github.com/sefazor/resumeforge-backend/pkg/clock"
	"github.com/sefazor/resumeforge-backend/pkg/metrics"
)

// A failed conditional deduct means another writer got in between. Each retry
// re-reads, so the loop only spins while the row keeps changing underneath.
const maxDeductAttempts = 5

type CreditService struct {
	stores   *repository.Stores
	resolver *IdentityResolver
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewCreditService(stores *repository.Stores, resolver *IdentityResolver, clk clock.Clock, m *metrics.Metrics, logger *zap.Logger) *CreditService {
	return &CreditService{
		stores:   stores,
		resolver: resolver,
		clock:    clk,
		metrics:  m,
		logger:   logger.Named("credits"),
	}
}

func (s *CreditService) route(id models.Identity) (models.ResolvedIdentity, *repository.Store, error) {
	resolved, err := s.resolver.Resolve(id)
	if err != nil {
		return resolved, nil, err
	}
	store, ok := s.stores.For(resolved.Store)
	if !ok {
		return resolved, nil, fmt.Errorf("%w: %s store not configured", ErrStoreUnavailable, resolved.Store)
	}
	return resolved, store, nil
}

func (s *CreditService) freeSeed() models.CreditRecord {
	now := s.clock.Now()
	return models.CreditRecord{
		PlanTier:     models.PlanFree,
		TotalCredits: models.FreeCredits,
		ExpiresAt:    now.AddDate(0, models.FreeValidityMonths, 0),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// GetOrCreate returns the caller's record, creating the Free allotment in the
// caller's store on first sight.
func (s *CreditService) GetOrCreate(ctx context.Context, id models.Identity) (*models.CreditRecord, error) {
	resolved, store, err := s.route(id)
	if err != nil {
		return nil, err
	}
	return s.getOrCreate(ctx, store.Credits, store.Source, resolved.Key)
}

func (s *CreditService) getOrCreate(ctx context.Context, credits *repository.CreditRepository, source models.IdentitySource, key string) (*models.CreditRecord, error) {
	rec, created, err := credits.GetOrCreate(ctx, key, s.freeSeed())
	if err != nil {
		s.logger.Error("credit record lookup failed", zap.String("store", string(source)), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if created {
		s.logger.Info("free credit record created", zap.String("store", string(source)), zap.String("identity_key", key))
	}
	return rec, nil
}

// CheckBalance is pure: expired wins over exhausted.
func (s *CreditService) CheckBalance(rec *models.CreditRecord) models.BalanceCheck {
	if s.clock.Now().After(rec.ExpiresAt) {
		return models.BalanceCheck{OK: false, Reason: models.ReasonExpired}
	}
	if rec.UsedCredits >= rec.TotalCredits {
		return models.BalanceCheck{OK: false, Reason: models.ReasonInsufficient}
	}
	return models.BalanceCheck{OK: true}
}

func (s *CreditService) Check(ctx context.Context, id models.Identity) (*models.CreditRecord, models.BalanceCheck, error) {
	rec, err := s.GetOrCreate(ctx, id)
	if err != nil {
		return nil, models.BalanceCheck{}, err
	}
	return rec, s.CheckBalance(rec), nil
}

func reasonErr(reason models.BalanceReason) error {
	if reason == models.ReasonExpired {
		return ErrExpired
	}
	return ErrInsufficientCredits
}

// Reservation is one deducted credit that can still be handed back.
type Reservation struct {
	service *CreditService
	store   *repository.Store
	key     string
	epoch   int
	done    bool
}

// Reserve deducts one credit atomically. The gated action must only run
// after Reserve succeeds.
func (s *CreditService) Reserve(ctx context.Context, id models.Identity) (*Reservation, error) {
	resolved, store, err := s.route(id)
	if err != nil {
		return nil, err
	}
	source := string(store.Source)

	for attempt := 0; attempt < maxDeductAttempts; attempt++ {
		rec, err := s.getOrCreate(ctx, store.Credits, store.Source, resolved.Key)
		if err != nil {
			s.metrics.CreditOp("deduct", source, "error")
			return nil, err
		}
		if check := s.CheckBalance(rec); !check.OK {
			s.metrics.CreditOp("deduct", source, string(check.Reason))
			return nil, reasonErr(check.Reason)
		}

		applied, err := store.Credits.Deduct(ctx, resolved.Key, rec.Epoch, s.clock.Now())
		if err != nil {
			s.metrics.CreditOp("deduct", source, "error")
			s.logger.Error("deduct failed", zap.String("store", source), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if applied {
			s.metrics.CreditOp("deduct", source, "ok")
			return &Reservation{service: s, store: store, key: resolved.Key, epoch: rec.Epoch}, nil
		}
	}

	s.metrics.CreditOp("deduct", source, "contended")
	s.logger.Warn("deduct gave up under contention", zap.String("identity_key", resolved.Key))
	return nil, fmt.Errorf("%w: credit record busy", ErrStoreUnavailable)
}

// Release hands the credit back. Calling it twice is a no-op.
func (r *Reservation) Release(ctx context.Context) error {
	if r == nil || r.done {
		return nil
	}
	if err := r.store.Credits.Release(ctx, r.key, r.epoch, r.service.clock.Now()); err != nil {
		r.service.metrics.CreditOp("release", string(r.store.Source), "error")
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	r.done = true
	r.service.metrics.CreditOp("release", string(r.store.Source), "ok")
	return nil
}

// Deduct consumes one credit and returns the updated record.
func (s *CreditService) Deduct(ctx context.Context, id models.Identity) (*models.CreditRecord, error) {
	res, err := s.Reserve(ctx, id)
	if err != nil {
		return nil, err
	}
	rec, err := res.store.Credits.Get(ctx, res.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return rec, nil
}

// Spend reserves a credit, runs action and releases the credit if action
// fails, so a failed action is never charged.
func (s *CreditService) Spend(ctx context.Context, id models.Identity, action func(ctx context.Context) error) (*models.CreditRecord, error) {
	res, err := s.Reserve(ctx, id)
	if err != nil {
		return nil, err
	}

	if actionErr := action(ctx); actionErr != nil {
		// The request context may already be cancelled; the release must
		// still land.
		if err := res.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("credit release failed after action error",
				zap.String("identity_key", res.key),
				zap.NamedError("action_error", actionErr),
				zap.Error(err),
			)
		}
		return nil, actionErr
	}

	rec, err := res.store.Credits.Get(ctx, res.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return rec, nil
}

// grant applies a plan purchase inside the caller's transaction.
func (s *CreditService) grant(ctx context.Context, credits *repository.CreditRepository, source models.IdentitySource, key string, plan models.PlanDefinition, paymentRef string) error {
	if _, err := s.getOrCreate(ctx, credits, source, key); err != nil {
		return err
	}
	now := s.clock.Now()
	err := credits.Grant(ctx, key, repository.Grant{
		Plan:       plan.Tier,
		Credits:    plan.CreditsGranted,
		ExpiresAt:  now.AddDate(0, plan.ValidityMonths, 0),
		PaymentRef: paymentRef,
	}, now)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return err
		}
		return fmt.Errorf("%w: grant: %v", ErrStoreUnavailable, err)
	}
	s.metrics.CreditOp("grant", string(source), "ok")
	return nil
}
