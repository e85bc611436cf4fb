package main

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sefazor/resumeforge-backend/internal/config"
	"github.com/sefazor/resumeforge-backend/internal/handler"
	"github.com/sefazor/resumeforge-backend/internal/middleware"
	"github.com/sefazor/resumeforge-backend/internal/models"
	"github.com/sefazor/resumeforge-backend/pkg/metrics"
)

func newServer(cfg *config.Config, m *metrics.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "resumeforge",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(models.ErrorResponse(err.Error()))
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST",
		AllowCredentials: true,
	}))
	app.Use(logger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	return app
}

type routeDeps struct {
	fx.In

	App      *fiber.App
	Config   *config.Config
	Logger   *zap.Logger
	Credits  *handler.CreditHandler
	Payments *handler.PaymentHandler
	Admin    *handler.AdminHandler
	AI       *handler.AIHandler
}

func registerRoutes(d routeDeps) {
	api := d.App.Group("/api")
	api.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			// Gateway callbacks arrive from a few shared IPs.
			return c.Path() == "/api/payment/webhook/stripe"
		},
	}))

	handler.Handlers{
		Credits:  d.Credits,
		Payments: d.Payments,
		Admin:    d.Admin,
		AI:       d.AI,
	}.Register(api,
		middleware.AuthMiddleware(d.Config.JWTSecret, d.Logger),
		middleware.AdminMiddleware(d.Config.Admin.Username, d.Config.Admin.PasswordHash),
	)
}

func runServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := app.Listen(":" + cfg.Port); err != nil {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("port", cfg.Port))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})
}
