package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/sefazor/resumeforge-backend/internal/config"
	"github.com/sefazor/resumeforge-backend/internal/handler"
	"github.com/sefazor/resumeforge-backend/internal/service"
	"github.com/sefazor/resumeforge-backend/pkg/clock"
	"github.com/sefazor/resumeforge-backend/pkg/metrics"
	"github.com/sefazor/resumeforge-backend/pkg/utils"
)

func main() {
	fx.New(
		fx.Provide(
			config.LoadConfig,
			newLogger,
			newDatabases,
			newStores,
			newDiscountRepository,
			newRedis,
			newLocker,
			metrics.New,
			func() clock.Clock { return clock.New() },
			newGateway,
			newReceiptDispatcher,
			newCompleter,
			utils.NewValidator,

			service.NewIdentityResolver,
			service.NewCreditService,
			service.NewDiscountService,
			newPaymentService,
			service.NewGenerationService,
			newReconciler,

			handler.NewCreditHandler,
			handler.NewPaymentHandler,
			handler.NewAdminHandler,
			handler.NewAIHandler,
			newServer,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Invoke(registerRoutes, runServer, runReconciler),
	).Run()
}
