package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sefazor/resumeforge-backend/internal/models"
	"github.com/sefazor/resumeforge-backend/internal/repository"
	"github.com/sefazor/resumeforge-backend/pkg/clock"
	"github.com/sefazor/resumeforge-backend/pkg/metrics"
	"github.com/sefazor/resumeforge-backend/pkg/payment"
)

const (
	reconcileLockKey  = "resumeforge:reconcile"
	reconcileBatch    = 100
	reconcileRunLimit = 2 * time.Minute
)

type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type ReconcileOptions struct {
	Interval   time.Duration
	StaleAfter time.Duration
	OrderTTL   time.Duration
	Lookback   time.Duration
}

type ReconcileSummary struct {
	Restored  int
	Completed int
	Expired   int
	Skipped   bool
}

// Reconciler repairs drift between the gateway and local pending payments:
// orders the gateway has but we failed to record, orders paid without a
// client verification, and orders abandoned past their TTL.
type Reconciler struct {
	stores   *repository.Stores
	gateway  payment.Gateway
	payments *PaymentService
	resolver *IdentityResolver
	locker   Locker
	opts     ReconcileOptions
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewReconciler(stores *repository.Stores, gateway payment.Gateway, payments *PaymentService, resolver *IdentityResolver, locker Locker, opts ReconcileOptions, clk clock.Clock, m *metrics.Metrics, logger *zap.Logger) *Reconciler {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 15 * time.Minute
	}
	if opts.OrderTTL <= 0 {
		opts.OrderTTL = 24 * time.Hour
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 2 * opts.OrderTTL
	}
	return &Reconciler{
		stores:   stores,
		gateway:  gateway,
		payments: payments,
		resolver: resolver,
		locker:   locker,
		opts:     opts,
		clock:    clk,
		metrics:  m,
		logger:   logger.Named("reconciler"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (r *Reconciler) Start() {
	go r.loop()
}

func (r *Reconciler) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stop) })
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reconciler) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), reconcileRunLimit)
			summary, err := r.RunOnce(ctx)
			cancel()
			if err != nil {
				r.logger.Error("reconcile run failed", zap.Error(err))
				continue
			}
			if summary.Restored+summary.Completed+summary.Expired > 0 {
				r.logger.Info("reconcile run repaired orders",
					zap.Int("restored", summary.Restored),
					zap.Int("completed", summary.Completed),
					zap.Int("expired", summary.Expired),
				)
			}
		}
	}
}

// RunOnce performs a single sweep. Only one instance sweeps at a time when a
// shared locker is configured.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileSummary, error) {
	var summary ReconcileSummary

	if r.locker != nil {
		token, ok, err := r.locker.TryLock(ctx, reconcileLockKey, r.opts.Interval)
		if err != nil {
			r.metrics.ReconcileRun("lock_error")
			return summary, fmt.Errorf("acquire reconcile lock: %w", err)
		}
		if !ok {
			r.metrics.ReconcileRun("skipped")
			summary.Skipped = true
			return summary, nil
		}
		defer func() {
			if err := r.locker.Release(context.WithoutCancel(ctx), reconcileLockKey, token); err != nil {
				r.logger.Warn("reconcile lock release failed", zap.Error(err))
			}
		}()
	}

	// Each phase keeps going past a failing store so an outage of one store
	// never holds back repairs in the other.
	err := errors.Join(
		r.restoreMissing(ctx, &summary),
		r.settleStale(ctx, &summary),
	)
	if err != nil {
		r.metrics.ReconcileRun("error")
		return summary, err
	}
	r.metrics.ReconcileRun("ok")
	return summary, nil
}

// restoreMissing re-creates pending payments for gateway orders that carry
// our identity notes but were never recorded locally.
func (r *Reconciler) restoreMissing(ctx context.Context, summary *ReconcileSummary) error {
	orders, err := r.gateway.ListOrders(ctx, r.clock.Now().Add(-r.opts.Lookback))
	if err != nil {
		return fmt.Errorf("%w: list orders: %v", ErrGatewayUnavailable, err)
	}

	var errs []error
	for _, order := range orders {
		_, _, err := r.payments.findPayment(ctx, order.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrOrderNotFound) {
			r.logger.Warn("order lookup failed, skipping restore", zap.String("order_id", order.ID), zap.Error(err))
			errs = append(errs, err)
			continue
		}

		restored, err := r.restore(ctx, order)
		if err != nil {
			r.logger.Warn("order restore failed", zap.String("order_id", order.ID), zap.Error(err))
			continue
		}
		if !restored {
			continue
		}
		summary.Restored++
		r.metrics.ReconcileRepair("restored")
	}
	return errors.Join(errs...)
}

func (r *Reconciler) restore(ctx context.Context, order payment.Order) (bool, error) {
	key := order.Notes[payment.NoteIdentityKey]
	tier, ok := models.ParsePlanTier(order.Notes[payment.NotePlan])
	if key == "" || !ok {
		// Not one of ours.
		return false, nil
	}

	resolved, err := r.resolver.Resolve(models.Identity{
		Key:    key,
		Email:  order.Notes[payment.NoteEmail],
		Source: models.IdentitySource(order.Notes[payment.NoteIdentitySource]),
	})
	if err != nil {
		return false, err
	}
	store, ok := r.stores.For(resolved.Store)
	if !ok {
		return false, fmt.Errorf("%w: %s store not configured", ErrStoreUnavailable, resolved.Store)
	}

	pending := &models.PendingPayment{
		OrderID:          order.ID,
		Provider:         r.gateway.Name(),
		AmountMinorUnits: order.Amount,
		Currency:         order.Currency,
		Status:           models.PaymentStatusCreated,
		IdentityKey:      resolved.Key,
		IdentityEmail:    resolved.Email,
		PlanTier:         tier,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        r.clock.Now(),
	}
	if code := order.Notes[payment.NoteDiscountCode]; code != "" {
		amount := order.Amount
		pending.DiscountCode = &code
		pending.DiscountedAmount = &amount
	}

	if err := store.Payments.Create(ctx, pending); err != nil {
		if repository.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	r.logger.Info("restored unrecorded gateway order", zap.String("order_id", order.ID), zap.String("store", string(store.Source)))
	return true, nil
}

// settleStale asks the gateway about orders that stayed created too long.
func (r *Reconciler) settleStale(ctx context.Context, summary *ReconcileSummary) error {
	now := r.clock.Now()
	var errs []error
	for _, store := range r.stores.All() {
		stale, err := store.Payments.ListStale(ctx, now.Add(-r.opts.StaleAfter), reconcileBatch)
		if err != nil {
			r.logger.Error("stale order listing failed", zap.String("store", string(store.Source)), zap.Error(err))
			errs = append(errs, fmt.Errorf("%w: %s: list stale: %v", ErrStoreUnavailable, store.Source, err))
			continue
		}

		for _, p := range stale {
			order, err := r.gateway.FetchOrder(ctx, p.OrderID)
			switch {
			case errors.Is(err, payment.ErrOrderNotFound):
				order = &payment.Order{ID: p.OrderID, Status: payment.OrderExpired}
			case err != nil:
				r.logger.Warn("gateway order fetch failed", zap.String("order_id", p.OrderID), zap.Error(err))
				continue
			}

			if order.Status == payment.OrderPaid && order.PaymentID != "" {
				res, err := r.payments.ConfirmPaid(ctx, p.OrderID, order.PaymentID, "")
				if err != nil {
					r.logger.Warn("confirm paid order failed", zap.String("order_id", p.OrderID), zap.Error(err))
					continue
				}
				if !res.Replayed {
					summary.Completed++
					r.metrics.ReconcileRepair("completed")
				}
				continue
			}

			if order.Status == payment.OrderExpired || now.Sub(p.CreatedAt) > r.opts.OrderTTL {
				ok, err := store.Payments.MarkFailed(ctx, p.OrderID, now)
				if err != nil {
					r.logger.Error("mark failed order failed", zap.String("order_id", p.OrderID), zap.Error(err))
					errs = append(errs, fmt.Errorf("%w: %s: mark failed: %v", ErrStoreUnavailable, store.Source, err))
					continue
				}
				if ok {
					summary.Expired++
					r.metrics.ReconcileRepair("expired")
				}
			}
		}
	}
	return errors.Join(errs...)
}
