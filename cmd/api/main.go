package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/renewal-engine/internal/config"
	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"github.com/kursadbilgin/renewal-engine/internal/handler"
	"github.com/kursadbilgin/renewal-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/renewal-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/renewal-engine/internal/infra/redis"
	"github.com/kursadbilgin/renewal-engine/internal/observability"
	"github.com/kursadbilgin/renewal-engine/internal/paypal"
	"github.com/kursadbilgin/renewal-engine/internal/provider"
	"github.com/kursadbilgin/renewal-engine/internal/repository"
	"github.com/kursadbilgin/renewal-engine/internal/service"
	"github.com/kursadbilgin/renewal-engine/internal/transport"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("invalid timezone", zap.Error(err))
	}

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, postgresql.PoolOptions{})
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec, map[domain.Channel]int{
		domain.ChannelWhatsApp: cfg.WhatsAppRatePerSec,
		domain.ChannelEmail:    cfg.EmailRatePerSec,
	})
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	whatsApp, email, err := newDispatchers(cfg, logger)
	if err != nil {
		logger.Fatal("provider initialization failed", zap.Error(err))
	}
	processor, err := newPaymentProcessor(cfg, logger)
	if err != nil {
		logger.Fatal("payment processor initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	attempts := repository.NewGormAttemptRepo(db)
	policy, err := domain.NewNotificationPolicy(cfg.NotifyMaxAttempts, cfg.NotifyCooldownDays, loc)
	if err != nil {
		logger.Fatal("invalid notification policy", zap.Error(err))
	}
	gate, err := service.NewEligibilityGate(attempts, policy)
	if err != nil {
		logger.Fatal("eligibility gate initialization failed", zap.Error(err))
	}

	receiptService, err := service.NewReceiptService(
		repository.NewGormReceiptRepo(db),
		attempts,
		gate,
		whatsApp,
		limiter,
		service.ReceiptServiceConfig{
			PendingStatus:      cfg.PendingReceiptStatus,
			ExcludedBranchCode: cfg.ExcludedBranchCode,
			AllowedCompanies:   cfg.AllowedCompanyList(),
			Window: domain.ExpiryWindow{
				DaysBefore: cfg.WindowDaysBefore,
				DaysAfter:  cfg.WindowDaysAfter,
				Location:   loc,
			},
			Concurrency: cfg.DispatchConcurrency,
		},
		logger.Named("receipts"),
	)
	if err != nil {
		logger.Fatal("receipt service initialization failed", zap.Error(err))
	}
	receiptService.SetMetrics(metrics)

	paymentService, err := service.NewPaymentService(
		repository.NewGormCreditRepo(db),
		repository.NewGormPaymentOrderRepo(db),
		processor,
		logger.Named("payments"),
	)
	if err != nil {
		logger.Fatal("payment service initialization failed", zap.Error(err))
	}
	paymentService.SetMetrics(metrics)

	outreachService, err := service.NewOutreachService(whatsApp, email, limiter, cfg.OutreachQuoteURL, cfg.DispatchConcurrency, logger.Named("outreach"))
	if err != nil {
		logger.Fatal("outreach service initialization failed", zap.Error(err))
	}
	outreachService.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(requestid.New())
	app.Use(observability.RequestContextMiddleware())
	app.Use(metrics.HTTPMiddleware())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, handler.PostgresCheck(sqlDB), handler.RedisCheck(rdb))
	if err := handler.RegisterReceiptRoutes(app, receiptService); err != nil {
		logger.Fatal("receipt routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterPaymentRoutes(app, paymentService); err != nil {
		logger.Fatal("payment routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterOutreachRoutes(app, outreachService); err != nil {
		logger.Fatal("outreach routes registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schedulerDone := make(chan struct{})
	if cfg.NotifyCron != "" {
		scheduler, err := service.NewScheduler(receiptService, cfg.NotifyCron, cfg.NotifyRunTimeout, loc, logger.Named("scheduler"))
		if err != nil {
			logger.Fatal("scheduler initialization failed", zap.Error(err))
		}
		go func() {
			defer close(schedulerDone)
			if err := scheduler.Start(ctx); err != nil {
				logger.Error("scheduler stopped with error", zap.Error(err))
			}
		}()
	} else {
		close(schedulerDone)
		logger.Info("scheduled notification batch disabled")
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("renewal-engine api started", zap.Int("port", cfg.APIPort))
		serverErr <- app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
	<-schedulerDone

	logger.Info("renewal-engine api stopped")
}

// newDispatchers falls back to a disabled dispatcher for any channel without credentials.
func newDispatchers(cfg *config.Config, logger *zap.Logger) (provider.Dispatcher, provider.Dispatcher, error) {
	var whatsApp provider.Dispatcher = provider.NewDisabled(domain.ChannelWhatsApp)
	if cfg.TwilioConfigured() {
		twilio, err := provider.NewTwilioWhatsApp(provider.TwilioConfig{
			BaseURL:    cfg.TwilioBaseURL,
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioFrom,
			Timeout:    cfg.TwilioTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		whatsApp = twilio
	} else {
		logger.Warn("twilio credentials missing, whatsapp sends are disabled")
	}

	var email provider.Dispatcher = provider.NewDisabled(domain.ChannelEmail)
	if cfg.SendGridConfigured() {
		sendGrid, err := provider.NewSendGridEmail(provider.SendGridConfig{
			BaseURL:  cfg.SendGridBaseURL,
			APIKey:   cfg.SendGridAPIKey,
			From:     cfg.SendGridFrom,
			FromName: cfg.SendGridFromName,
			Timeout:  cfg.SendGridTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		email = sendGrid
	} else {
		logger.Warn("sendgrid credentials missing, email sends are disabled")
	}

	return whatsApp, email, nil
}

func newPaymentProcessor(cfg *config.Config, logger *zap.Logger) (service.PaymentProcessor, error) {
	if !cfg.PayPalConfigured() {
		logger.Warn("paypal credentials missing, payment orders are disabled")
		return paypal.Disabled{}, nil
	}
	if cfg.PayPalWebhookID == "" {
		logger.Warn("PAYPAL_WEBHOOK_ID missing, webhooks cannot be verified")
	}

	return paypal.NewClient(paypal.Config{
		BaseURL:      cfg.PayPalBaseURL,
		ClientID:     cfg.PayPalClientID,
		ClientSecret: cfg.PayPalClientSecret,
		WebhookID:    cfg.PayPalWebhookID,
		BrandName:    cfg.PayPalBrandName,
		Timeout:      cfg.PayPalTimeout,
	})
}
