package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/config"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/database"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/devicestore"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/logging"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/preferences"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/profileclient"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/routes"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/services"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/session"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/settings"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/web"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	removalPolicy, err := settings.ParseRemovalPolicy(cfg.AvatarRemovalPolicy)
	if err != nil {
		slog.Error("invalid AVATAR_REMOVAL_POLICY", "error", err)
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		logging.NewStdoutHandler(),
		pgLogHandler,
	)))

	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cfg.LogRetentionDays, cleanupDone)

	// Device store
	expiryDone := make(chan struct{})
	devices, err := openDeviceStore(cfg, expiryDone)
	if err != nil {
		slog.Error("device store unavailable", "backend", cfg.DeviceStoreBackend, "error", err)
		os.Exit(1)
	}
	slog.Info("device store ready", "backend", cfg.DeviceStoreBackend, "entry_ttl", cfg.DeviceEntryTTL.String())

	// Services
	authService := services.NewAuthService(database.DB, cfg)
	profileService := services.NewProfileService(database.DB)
	hub := preferences.NewHub()

	// Profile settings views, one per device
	local := profileclient.NewLocal(profileService)
	views := settings.NewRegistry(func(deviceID string) *settings.View {
		store := devices.ForDevice(deviceID)
		sessions := session.NewDeviceProvider(store, session.WithRenewal(authService.Renew))

		var profiles settings.ProfileService = local
		if cfg.ProfileAPIURL != "" {
			profiles = profileclient.New(cfg.ProfileAPIURL, cfg.ProfileAPITimeout, sessions)
		}
		return settings.NewView(
			sessions,
			profiles,
			store,
			preferences.NewLocationPreference(deviceID, store, hub),
			settings.WithRemovalPolicy(removalPolicy),
			settings.WithLogger(slog.Default().With("device_id", deviceID)),
		)
	}, cfg.ViewIdleTTL)
	sweeperDone := make(chan struct{})
	views.StartSweeper(time.Minute, sweeperDone)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	profileHandler := handlers.NewProfileHandler(profileService)
	healthHandler := handlers.NewHealthHandler(
		handlers.PingFunc(func(context.Context) error { return database.Ping() }),
		devices,
		views.Len,
	)
	pages := web.NewHandler(authService, devices, views, hub)

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		Views:        web.NewEngine(),
		ErrorHandler: pages.ErrorHandler(customErrorHandler),
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())

	routes.Setup(app, cfg, authHandler, profileHandler, healthHandler, pages)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	pages.Close()
	close(sweeperDone)
	close(expiryDone)
	close(cleanupDone)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := devices.Close(); err != nil {
		slog.Error("device store close error", "error", err)
	}
	if err := database.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}

// openDeviceStore builds the configured backend. Entries are kept until
// deleted unless DEVICE_ENTRY_TTL is set; expiry then slides on every access.
func openDeviceStore(cfg *config.Config, done chan struct{}) (devicestore.Backend, error) {
	var backend devicestore.Backend
	switch cfg.DeviceStoreBackend {
	case "postgres":
		gb := devicestore.NewGormBackend(database.DB, cfg.DeviceEntryTTL)
		gb.StartExpiry(time.Hour, done)
		backend = gb
	case "memory":
		backend = devicestore.NewMemoryBackend()
	default:
		backend = devicestore.NewRedisBackend(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.DeviceEntryTTL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := backend.Ping(ctx); err != nil {
		backend.Close()
		return nil, err
	}
	return backend, nil
}

// customErrorHandler answers API failures with the JSON error shape.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", c.Locals("requestid"),
			"error", err.Error(),
		)
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
