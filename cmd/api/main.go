package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"

	config "github.com/Logan-Myn/dancehub-v3-sub000/configs"
	"github.com/Logan-Myn/dancehub-v3-sub000/database"
	"github.com/Logan-Myn/dancehub-v3-sub000/handlers"
	"github.com/Logan-Myn/dancehub-v3-sub000/jobs"
	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
	"github.com/Logan-Myn/dancehub-v3-sub000/notifications"
	"github.com/Logan-Myn/dancehub-v3-sub000/onboarding"
	"github.com/Logan-Myn/dancehub-v3-sub000/payments"
	"github.com/Logan-Myn/dancehub-v3-sub000/routes"
	"github.com/Logan-Myn/dancehub-v3-sub000/scheduling"
	"github.com/Logan-Myn/dancehub-v3-sub000/services"
	"github.com/Logan-Myn/dancehub-v3-sub000/uploads"
	"github.com/Logan-Myn/dancehub-v3-sub000/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("🔥 Failed to load configuration: %v", err)
	}
	appLog := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		appLog.WithError(err).Warn("unknown timezone, falling back to UTC", map[string]interface{}{"timezone": cfg.App.Timezone})
		loc = time.UTC
	}

	db, err := database.Connect(cfg.Database, appLog)
	if err != nil {
		log.Fatalf("🔥 %v", err)
	}
	if err := database.Migrate(db, appLog); err != nil {
		log.Fatalf("🔥 %v", err)
	}

	progress := database.NewRedisStore(database.NewRedis(cfg.Redis), cfg.Onboarding.ProgressTTL)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := progress.Ping(pingCtx); err != nil {
		appLog.WithError(err).Warn("redis unavailable, onboarding progress will not be resumable until it recovers", nil)
	}
	cancelPing()

	mailer := notifications.NewBrevoService(cfg.Email, appLog)
	stripeClient := payments.NewStripeClient(cfg.Stripe)

	var archive services.DocumentStore
	var signer handlers.UploadSigner
	if cfg.Cloudinary.URL != "" {
		docs, err := uploads.NewDocumentArchive(cfg.Cloudinary)
		if err != nil {
			appLog.WithError(err).Warn("cloudinary disabled", nil)
		} else {
			archive, signer = docs, docs
		}
	}

	communities := services.NewCommunityService(db, mailer, appLog)
	accounts := services.NewAccountService(stripeClient, archive, communities, appLog)
	availability := services.NewAvailabilityService(db, appLog)
	bookings := services.NewBookingService(services.BookingConfig{
		DB:                 db,
		Payments:           stripeClient,
		Communities:        communities,
		Mailer:             mailer,
		PlatformFeePercent: cfg.Stripe.PlatformFeePercent,
		Location:           loc,
		Logger:             appLog,
	})

	wizards := services.NewRegistry[*onboarding.Wizard]("wizard")
	flows := services.NewRegistry[*scheduling.BookingFlow]("booking")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := websocket.NewHub(appLog)
	go hub.Run(ctx)

	c := cron.New()
	if err := jobs.Register(c, jobs.Config{
		Reminders: bookings,
		Sessions:  []jobs.Evictor{wizards, flows},
		IdleTTL:   cfg.Sessions.IdleTTL,
		Logger:    appLog,
	}); err != nil {
		log.Fatalf("🔥 %v", err)
	}
	c.Start()
	appLog.Info("cron jobs scheduled", nil)

	h := handlers.New(handlers.Config{
		Communities:   communities,
		Gateway:       accounts,
		Provisioner:   onboarding.NewAccountProvisioner(accounts, communities, cfg.Onboarding.StatusCheckTimeout, appLog),
		Progress:      progress,
		Availability:  availability,
		Bookings:      bookings,
		Signer:        signer,
		Wizards:       wizards,
		Flows:         flows,
		Hub:           hub,
		JWTSecret:     cfg.Auth.JWTSecret,
		AutosaveDelay: cfg.Onboarding.AutosaveDelay,
		Location:      loc,
		Logger:        appLog,
	})

	app := fiber.New(fiber.Config{
		Prefork:       false,
		AppName:       cfg.App.Name,
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		BodyLimit:     int(services.MaxDocumentSize) + 1<<20,
		ErrorHandler:  handlers.ErrorHandler(appLog),
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Stripe-Signature, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   cfg.App.Timezone,
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.PublicRoutes(app)
	routes.OnboardingRoutes(app, h, cfg.Auth.JWTSecret)
	routes.UploadRoutes(app, h, cfg.Auth.JWTSecret)
	routes.AvailabilityRoutes(app, h, cfg.Auth.JWTSecret)
	routes.BookingRoutes(app, h, cfg.Auth.JWTSecret)
	routes.PaymentRoutes(app, h)

	go func() {
		appLog.Info("server listening", map[string]interface{}{"port": cfg.App.Port})
		if err := app.Listen(":" + cfg.App.Port); err != nil {
			log.Fatalf("🔥 Server failed to start: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	appLog.Info("shutdown signal received", nil)
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		appLog.WithError(err).Error("error shutting down server", nil)
	}
	<-c.Stop().Done()
	stop()
	wizards.Evict(0)
	flows.Evict(0)
	if err := progress.Close(); err != nil {
		appLog.WithError(err).Warn("error closing redis", nil)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	appLog.Info("server stopped", nil)
}
