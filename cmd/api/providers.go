package main

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sefazor/resumeforge-backend/internal/config"
	"github.com/sefazor/resumeforge-backend/internal/repository"
	"github.com/sefazor/resumeforge-backend/internal/service"
	"github.com/sefazor/resumeforge-backend/pkg/ai"
	"github.com/sefazor/resumeforge-backend/pkg/clock"
	"github.com/sefazor/resumeforge-backend/pkg/database"
	"github.com/sefazor/resumeforge-backend/pkg/email"
	"github.com/sefazor/resumeforge-backend/pkg/lock"
	"github.com/sefazor/resumeforge-backend/pkg/logger"
	"github.com/sefazor/resumeforge-backend/pkg/metrics"
	"github.com/sefazor/resumeforge-backend/pkg/payment"
	"github.com/sefazor/resumeforge-backend/pkg/storage"
)

const receiptTimeout = 15 * time.Second

func newLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg.Environment)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
	return log, nil
}

type databases struct {
	Primary *gorm.DB
	Legacy  *gorm.DB
}

// newDatabases opens and migrates both stores. The legacy store is optional;
// when it cannot be reached, legacy identities fail with store unavailable
// while everyone else keeps working.
func newDatabases(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*databases, error) {
	opts := database.DefaultOptions()

	primary, err := database.OpenPrimary(cfg.PrimaryDatabaseURL, opts)
	if err != nil {
		return nil, err
	}
	if err := repository.MigratePrimary(primary); err != nil {
		return nil, fmt.Errorf("migrate primary database: %w", err)
	}

	legacy, err := database.OpenLegacy(cfg.LegacyDatabaseURL, opts)
	if err != nil {
		log.Error("legacy database unavailable, continuing without it", zap.Error(err))
		legacy = nil
	}
	if legacy != nil {
		if err := repository.MigrateLegacy(legacy); err != nil {
			log.Error("legacy database migration failed, continuing without it", zap.Error(err))
			_ = database.Close(legacy)
			legacy = nil
		}
	}
	if legacy == nil {
		log.Warn("legacy store disabled")
	}

	dbs := &databases{Primary: primary, Legacy: legacy}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if dbs.Legacy != nil {
				_ = database.Close(dbs.Legacy)
			}
			return database.Close(dbs.Primary)
		},
	})
	return dbs, nil
}

func newStores(dbs *databases) *repository.Stores {
	return repository.NewStores(dbs.Primary, dbs.Legacy)
}

func newDiscountRepository(dbs *databases) *repository.DiscountRepository {
	return repository.NewDiscountRepository(dbs.Primary)
}

// newRedis returns nil when REDIS_ADDR is unset. The reconciler then runs
// without a shared lock, which is only safe with a single instance.
func newRedis(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) *redis.Client {
	if cfg.Redis.Addr == "" {
		log.Info("redis not configured, reconciler lock is process local")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis ping failed", zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

func newLocker(client *redis.Client) service.Locker {
	return lock.NewLocker(client)
}

func newGateway(cfg *config.Config) (payment.Gateway, error) {
	switch cfg.Payment.Provider {
	case "razorpay":
		return payment.NewRazorpayGateway(payment.RazorpayConfig{
			KeyID:     cfg.Payment.RazorpayKeyID,
			KeySecret: cfg.Payment.RazorpayKeySecret,
			BaseURL:   cfg.Payment.RazorpayBaseURL,
			Timeout:   cfg.Payment.GatewayTimeout,
		}), nil
	case "stripe":
		return payment.NewStripeGateway(payment.StripeConfig{
			SecretKey:      cfg.Payment.StripeSecretKey,
			PublishableKey: cfg.Payment.StripePublishableKey,
			WebhookSecret:  cfg.Payment.StripeWebhookSecret,
			SuccessURL:     cfg.Payment.SuccessURL,
			CancelURL:      cfg.Payment.CancelURL,
			Timeout:        cfg.Payment.GatewayTimeout,
		}), nil
	}
	return nil, fmt.Errorf("unsupported payment provider: %s", cfg.Payment.Provider)
}

func newReceiptDispatcher(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*service.ReceiptDispatcher, error) {
	var sender service.ReceiptSender
	emailService, err := email.NewEmailService(cfg.Email.ResendAPIKey, cfg.Email.From, cfg.Email.FromName, log)
	if err != nil {
		return nil, err
	}
	if emailService != nil {
		sender = emailService
	} else {
		log.Info("receipt e-mail disabled")
	}

	var archive service.ReceiptArchive
	if cfg.R2.Enabled() {
		r2, err := storage.NewCloudflareStorage(context.Background(), storage.R2Options{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			Bucket:          cfg.R2.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("init receipt archive: %w", err)
		}
		archive = r2
	} else {
		log.Info("receipt archive disabled")
	}

	d := service.NewReceiptDispatcher(sender, archive, receiptTimeout, log)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			done := make(chan struct{})
			go func() {
				d.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
	return d, nil
}

func newCompleter(cfg *config.Config, log *zap.Logger) ai.Completer {
	return ai.NewClient(ai.Config{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	}, log)
}

type paymentDeps struct {
	fx.In

	Config     *config.Config
	Stores     *repository.Stores
	Resolver   *service.IdentityResolver
	Credits    *service.CreditService
	Discounts  *service.DiscountService
	Gateway    payment.Gateway
	Clock      clock.Clock
	Metrics    *metrics.Metrics
	Dispatcher *service.ReceiptDispatcher
	Logger     *zap.Logger
}

func newPaymentService(d paymentDeps) *service.PaymentService {
	return service.NewPaymentService(service.PaymentServiceParams{
		Stores:          d.Stores,
		Resolver:        d.Resolver,
		Credits:         d.Credits,
		Discounts:       d.Discounts,
		Gateway:         d.Gateway,
		Plans:           d.Config.Plans,
		Currency:        d.Config.Payment.Currency,
		SignatureSecret: d.Config.Payment.SignatureSecret,
		GatewayTimeout:  d.Config.Payment.GatewayTimeout,
		Clock:           d.Clock,
		Metrics:         d.Metrics,
		Notifier:        d.Dispatcher,
		Logger:          d.Logger,
	})
}

type reconcilerDeps struct {
	fx.In

	Config   *config.Config
	Stores   *repository.Stores
	Gateway  payment.Gateway
	Payments *service.PaymentService
	Resolver *service.IdentityResolver
	Locker   service.Locker
	Clock    clock.Clock
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

func newReconciler(d reconcilerDeps) *service.Reconciler {
	return service.NewReconciler(d.Stores, d.Gateway, d.Payments, d.Resolver, d.Locker, service.ReconcileOptions{
		Interval:   d.Config.Reconcile.Interval,
		StaleAfter: d.Config.Reconcile.StaleAfter,
		OrderTTL:   d.Config.Reconcile.OrderTTL,
		Lookback:   d.Config.Reconcile.Lookback,
	}, d.Clock, d.Metrics, d.Logger)
}

func runReconciler(lc fx.Lifecycle, cfg *config.Config, r *service.Reconciler, log *zap.Logger) {
	if !cfg.Reconcile.Enabled {
		log.Info("reconciler disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			r.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return r.Stop(ctx)
		},
	})
}
