package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/cashly/journey-api/config"
	"github.com/cashly/journey-api/internal/database"
	"github.com/cashly/journey-api/internal/middleware"
	"github.com/cashly/journey-api/internal/rabbitmq"
	"github.com/cashly/journey-api/internal/routes"
	"github.com/cashly/journey-api/internal/services"
	workers "github.com/cashly/journey-api/internal/worker"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database (runs embedded migrations)
	if _, err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	log.Printf("Connected to database successfully")

	// Initialize services
	jwtService := services.NewJWTService(cfg.JWTSecret, 168) // 7 days
	cryptoService := services.NewCryptoService(cfg.AppSecret)
	authService := services.NewAuthService(jwtService)
	eventService := services.NewEventService()
	leadService := services.NewLeadService(cryptoService, cfg.CPFCacheTTL)
	journeyService := services.NewJourneyService(cfg.JourneyExpiry, cfg.OTPProofTTL)
	whatsappService := services.NewWhatsAppService(cfg.CallbellAPIURL, cfg.CallbellAPIKey, cfg.CallbellChannelUUID)
	smsService := services.NewSMSService(cfg.ClickSendAPIURL, cfg.ClickSendUsername, cfg.ClickSendAPIKey)
	otpService := services.NewOTPService(cfg.OTPCodeTTL, cfg.OTPMaxSends, cfg.OTPMaxAttempts, whatsappService, smsService, eventService, cfg.IsDevelopment())
	fingerprintService := services.NewFingerprintService(cfg.FingerprintAPIURL, cfg.FingerprintAPIKey)
	detectionService := services.NewDetectionService(fingerprintService)
	deviceService := services.NewDeviceService(eventService)
	incomeService := services.NewIncomeService(journeyService, eventService)
	funnelService := services.NewFunnelService(journeyService, eventService)
	cepService := services.NewCEPService(cfg.ViaCEPURL)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:       "Journey API",
		CaseSensitive: true,
		StrictRouting: false,
		ServerHeader:  "Journey",
		ErrorHandler:  customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf("PANIC RECOVERED: %v", e)
			log.Printf("Request: %s %s", c.Method(), c.Path())
			log.Printf("Stack Trace:\n%s", string(debug.Stack()))
		},
	}))
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${method} ${path} (${latency})\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	// Setup RabbitMQ + re-engagement worker. The API degrades gracefully
	// without it: abandonment beacons still land, reminders just don't fire.
	if cfg.RabbitMQURL != "" {
		if err := rabbitmq.SetupRabbitMQ(cfg.RabbitMQURL); err != nil {
			log.Printf("Failed to connect to RabbitMQ: %v", err)
		} else {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			go func() {
				reminderWorker := workers.NewReminderWorker(journeyService, leadService, whatsappService, eventService)
				if err := reminderWorker.StartWorker(ctx); err != nil {
					log.Printf("Reminder worker failed: %v", err)
				}
			}()

			defer rabbitmq.Close()
		}
	}

	// Setup routes
	routes.SetupRoutes(app, &routes.Services{
		JWT:       jwtService,
		Auth:      authService,
		Lead:      leadService,
		Journey:   journeyService,
		OTP:       otpService,
		Device:    deviceService,
		Detection: detectionService,
		Income:    incomeService,
		Funnel:    funnelService,
		CEP:       cepService,
		Event:     eventService,
	})

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down server...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Error shutting down: %v", err)
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Starting server on %s", addr)
	log.Printf("Environment: %s", cfg.Env)
	log.Printf("Allowed origins: %v", cfg.AllowedOrigins)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func customErrorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	kind := "internal_error"
	switch code {
	case fiber.StatusNotFound:
		kind = "not_found"
	case fiber.StatusBadRequest:
		kind = "validation_error"
	case fiber.StatusTooManyRequests:
		kind = "rate_limited"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   kind,
		"message": err.Error(),
	})
}
