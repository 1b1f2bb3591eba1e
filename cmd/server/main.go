package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/adapter/cache"
	"github.com/seu-repo/parkflow/internal/adapter/external/notification"
	"github.com/seu-repo/parkflow/internal/adapter/external/payment"
	"github.com/seu-repo/parkflow/internal/adapter/grpc/server"
	"github.com/seu-repo/parkflow/internal/adapter/http/fiber/handlers"
	"github.com/seu-repo/parkflow/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/parkflow/internal/adapter/queue"
	"github.com/seu-repo/parkflow/internal/adapter/vault"
	wsAdapter "github.com/seu-repo/parkflow/internal/adapter/websocket"
	"github.com/seu-repo/parkflow/internal/observability/logging"
	"github.com/seu-repo/parkflow/internal/observability/telemetry"
	"github.com/seu-repo/parkflow/internal/ports"
	"github.com/seu-repo/parkflow/internal/service/analytics"
	"github.com/seu-repo/parkflow/internal/service/auth"
	"github.com/seu-repo/parkflow/internal/service/booking"
	"github.com/seu-repo/parkflow/internal/service/email"
	"github.com/seu-repo/parkflow/internal/service/expiry"
	"github.com/seu-repo/parkflow/internal/service/health"
	notifysvc "github.com/seu-repo/parkflow/internal/service/notification"
	paymentsvc "github.com/seu-repo/parkflow/internal/service/payment"
	"github.com/seu-repo/parkflow/internal/service/qrtoken"
	"github.com/seu-repo/parkflow/internal/service/slot"
	"github.com/seu-repo/parkflow/internal/service/subscription"
	"github.com/seu-repo/parkflow/pkg/config"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// 2. Initialize Logger
	logger, err := logging.New(cfg.App.Environment, cfg.Logging)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Starting ParkFlow",
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. Overlay secrets from Vault
	if cfg.Vault.Address != "" {
		secrets, err := vault.NewSecretManager(cfg.Vault.Address, cfg.Vault.Token, cfg.Vault.Mount, logger)
		if err != nil {
			logger.Fatal("Failed to create vault client", zap.Error(err))
		}
		if _, err := secrets.Apply(rootCtx, cfg.Vault.Path, cfg); err != nil {
			logger.Fatal("Failed to read vault secrets", zap.Error(err))
		}
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// 4. Initialize OpenTelemetry (Distributed Tracing)
	if cfg.OpenTelemetry.Enabled {
		tracerProvider, err := telemetry.InitTracer(cfg.OpenTelemetry.ServiceName, cfg.App.Version,
			cfg.OpenTelemetry.Jaeger.Endpoint, cfg.OpenTelemetry.Jaeger.SamplerParam)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	// 5. Initialize Storage
	repos, err := openRepositories(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer repos.Close()

	// 6. Initialize Cache; Redis also carries realtime events between instances
	var (
		analyticsCache ports.Cache
		redisClient    *redis.Client
	)
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.KeyPrefix, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		analyticsCache = redisCache
		redisClient = redisCache.Client()
	} else {
		analyticsCache = cache.NewLocalCache(cfg.Cache.LocalCleanupInterval, logger)
	}
	defer analyticsCache.Close()

	// 7. Initialize Message Queue and the outbound worker
	messageQueue, err := queue.New(cfg.Queue.Driver, cfg.Queue.URL, cfg.Queue.Group, logger)
	if err != nil {
		logger.Fatal("Failed to connect to message queue", zap.Error(err))
	}
	defer messageQueue.Close()

	emailService, err := email.NewService(&email.Config{
		Provider:       cfg.Notification.Email.Provider,
		FromEmail:      cfg.Notification.Email.From,
		FromName:       cfg.Notification.Email.FromName,
		SendGridAPIKey: cfg.Notification.Email.APIKey,
		SMTPHost:       cfg.Notification.Email.SMTP.Host,
		SMTPPort:       cfg.Notification.Email.SMTP.Port,
		SMTPUsername:   cfg.Notification.Email.SMTP.Username,
		SMTPPassword:   cfg.Notification.Email.SMTP.Password,
		SMTPUseTLS:     cfg.Notification.Email.SMTP.UseTLS,
		BaseURL:        cfg.Notification.Email.BaseURL,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize email service", zap.Error(err))
	}
	webhookSender := notification.NewWebhookSender(cfg.Notification.Webhook.URL, cfg.Notification.Webhook.Secret,
		cfg.Notification.Webhook.Timeout, logger)
	if err := notifysvc.NewWorker(messageQueue, emailService, webhookSender, logger).Start(); err != nil {
		logger.Fatal("Failed to start outbound worker", zap.Error(err))
	}
	dispatcher := notifysvc.NewDispatcher(messageQueue, logger)

	// 8. Initialize WebSocket Hub (for real-time updates)
	hub := wsAdapter.NewHub(logger)
	if redisClient != nil {
		hub.WithRedis(redisClient, cfg.Redis.RealtimeChannel)
	}
	go hub.Run(rootCtx)

	// 9. Initialize Services (Business Logic Layer)
	codec, err := qrtoken.NewCodec(cfg.QR.Secret)
	if err != nil {
		logger.Fatal("Failed to initialize QR codec", zap.Error(err))
	}
	gateway := payment.NewStripeGateway(cfg.Payment.Stripe.SecretKey, cfg.Payment.Stripe.WebhookSecret, logger)
	allocator := slot.NewAllocator(repos.slots, hub, logger)
	notificationService := notifysvc.NewService(repos.notifications, repos.users, hub, logger)

	bookingService := booking.NewService(booking.Deps{
		Bookings:      repos.bookings,
		Ledger:        repos.ledger,
		Subscriptions: repos.subscriptions,
		Vehicles:      repos.vehicles,
		Users:         repos.users,
		Slots:         allocator,
		Codec:         codec,
		Payments:      gateway,
		Notifier:      dispatcher,
		Alerts:        notificationService,
		Push:          hub,
	}, booking.Config{
		Currency:      cfg.Payment.Currency,
		MinimumAmount: cfg.Payment.MinimumAmount,
		RefundRate:    cfg.Payment.RefundRate,
	}, logger)

	subscriptionService := subscription.NewService(subscription.Deps{
		Subscriptions: repos.subscriptions,
		Vehicles:      repos.vehicles,
		Users:         repos.users,
		Slots:         repos.slots,
		Codec:         codec,
		Payments:      gateway,
		Notifier:      dispatcher,
		Alerts:        notificationService,
	}, subscription.Config{
		Fee:      cfg.Payment.SubscriptionFee,
		Currency: cfg.Payment.Currency,
		PlanName: cfg.Payment.SubscriptionPlan,
	}, logger)

	paymentService := paymentsvc.NewService(gateway, bookingService, subscriptionService, repos.ledger, logger)
	analyticsService := analytics.NewService(analytics.Repositories{
		Slots:         repos.slots,
		Bookings:      repos.bookings,
		Subscriptions: repos.subscriptions,
	}, analyticsCache, cfg.Cache.AnalyticsTTL, logger)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessTokenDuration, analyticsCache, logger)
	rbacService := auth.NewRBACService(logger)

	// 10. Start the Expiry Sweeper
	sweeper := expiry.NewSweeper(repos.bookings, repos.slots, repos.subscriptions, bookingService, allocator, expiry.Config{
		Interval:       cfg.Expiry.Interval,
		WarningWindow:  cfg.Expiry.WarningWindow,
		BatchSize:      cfg.Expiry.BatchSize,
		HoldTTL:        cfg.Expiry.HoldTTL,
		UnhealthyAfter: cfg.Expiry.UnhealthyAfter,
	}, logger)
	go sweeper.Start(rootCtx)

	// 11. Health checks
	healthService := health.NewService(&health.Config{
		Version: cfg.App.Version,
		DB:      repos.sqlDB,
		Redis:   redisClient,
	}, logger)
	healthService.RegisterChecker("sweeper", health.FlagChecker("sweeper", sweeper.Healthy))

	// 12. Initialize Fiber HTTP Server
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ServerHeader:          cfg.App.Name,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		BodyLimit:             cfg.HTTP.BodyLimit,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	// Global Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	if cfg.CORS.Enabled {
		app.Use(middleware.NewCORS(cfg.CORS))
	}
	if cfg.CircuitBreaker.Enabled {
		app.Use(middleware.CircuitBreaker("http-api", middleware.BreakerConfig{
			MaxRequests:  uint32(cfg.CircuitBreaker.MaxRequests),
			Interval:     cfg.CircuitBreaker.Interval,
			Timeout:      cfg.CircuitBreaker.Timeout,
			FailureRatio: cfg.CircuitBreaker.FailureThreshold,
		}, logger))
	}

	health.NewFiberHandler(healthService).RegisterRoutes(app)

	// Metrics endpoint for Prometheus
	if cfg.Prometheus.Enabled {
		metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		app.Get(cfg.Prometheus.Path, func(c *fiber.Ctx) error {
			metricsHandler(c.Context())
			return nil
		})
	}

	routes := handlers.Routes{
		Auth:          jwtService,
		RBAC:          rbacService,
		Session:       handlers.NewAuthHandler(jwtService, logger),
		Bookings:      handlers.NewBookingHandler(bookingService, logger),
		Payments:      handlers.NewPaymentHandler(paymentService, logger),
		Subscriptions: handlers.NewSubscriptionHandler(subscriptionService, logger),
		Slots:         handlers.NewSlotHandler(allocator, logger),
		Analytics:     handlers.NewAnalyticsHandler(analyticsService, logger),
		Notifications: handlers.NewNotificationHandler(notificationService, logger),
		Hub:           hub,
	}
	if cfg.RateLimiting.Enabled {
		routes.RateLimit = middleware.RateLimit(cfg.RateLimiting.MaxRequests, cfg.RateLimiting.Window)
	}
	routes.Register(app)

	// 13. Initialize gRPC Server (health and reflection for internal probes)
	grpcServer := server.NewGRPCServer(healthService, cfg.GRPC.HealthInterval, logger)
	go grpcServer.Watch(rootCtx)
	go func() {
		logger.Info("Starting gRPC Server", zap.Int("port", cfg.GRPC.Port))
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
		if err != nil {
			logger.Fatal("Failed to listen for gRPC", zap.Error(err))
		}
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("gRPC Server failed", zap.Error(err))
		}
	}()

	// 14. Start HTTP Server
	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP Server failed", zap.Error(err))
		}
	}()

	// 15. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	sweeper.Stop()
	grpcServer.Stop()
	stop()

	logger.Info("Server exited gracefully")
}
