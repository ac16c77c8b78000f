package routes

import (
	"github.com/cashly/journey-api/internal/handlers"
	"github.com/cashly/journey-api/internal/middleware"
	"github.com/cashly/journey-api/internal/services"
	"github.com/gofiber/fiber/v3"
)

// Services groups everything the route tree depends on. Built once in main.
type Services struct {
	JWT       *services.JWTService
	Auth      *services.AuthService
	Lead      *services.LeadService
	Journey   *services.JourneyService
	OTP       *services.OTPService
	Device    *services.DeviceService
	Detection *services.DetectionService
	Income    *services.IncomeService
	Funnel    *services.FunnelService
	CEP       *services.CEPService
	Event     *services.EventService
}

func SetupRoutes(app *fiber.App, svc *Services) {
	journeyHandler := handlers.NewJourneyHandler(svc.Journey, svc.Lead, svc.Detection, svc.Event)
	registrationHandler := handlers.NewRegistrationHandler(svc.Lead, svc.Journey, svc.Event, svc.CEP)
	otpHandler := handlers.NewOTPHandler(svc.OTP, svc.Journey, svc.Lead)
	deviceHandler := handlers.NewDeviceHandler(svc.Device, svc.Detection, svc.Journey)
	funnelHandler := handlers.NewFunnelHandler(svc.Income, svc.Funnel, svc.Journey)
	adminHandler := handlers.NewAdminHandler(svc.Auth, svc.JWT)

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "Journey API is running",
		})
	})

	// API group
	api := app.Group("/api")

	api.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "Journey API is running",
		})
	})

	// ==================
	// Public Funnel Routes
	// Rate limited per IP
	// ==================
	public := api.Group("", middleware.RateLimitMiddleware())

	public.Post("/journeys/start", journeyHandler.Start)
	public.Post("/journeys/validate", journeyHandler.Validate)
	public.Post("/leads/register", registrationHandler.Register)
	public.Get("/address/:cep", registrationHandler.LookupAddress)

	// Journey-scoped step endpoints (token is the bearer capability)
	public.Post("/journeys/:token/advance", journeyHandler.Advance)
	public.Post("/journeys/:token/otp/send", otpHandler.Send)
	public.Post("/journeys/:token/otp/verify", otpHandler.Verify)
	public.Post("/journeys/:token/device/detect", deviceHandler.Detect)
	public.Post("/journeys/:token/device/validate", deviceHandler.Validate)
	public.Post("/journeys/:token/income", funnelHandler.IncomeOutcome)
	public.Get("/journeys/:token/income", funnelHandler.IncomeStatus)
	public.Post("/journeys/:token/offer/accept", funnelHandler.AcceptOffer)
	public.Post("/journeys/:token/guard", funnelHandler.RegisterGuard)
	public.Post("/journeys/:token/contract/sign", funnelHandler.SignContract)

	// Beacon endpoints (text/plain bodies, fire-and-forget); not rate
	// limited so bursts at page unload are not dropped.
	api.Post("/journeys/:token/heartbeat", journeyHandler.Heartbeat)
	api.Post("/journeys/:token/abandon", journeyHandler.Abandon)
	api.Post("/journeys/:token/events", journeyHandler.LogEvent)

	// ==================
	// Admin Routes (JWT)
	// ==================
	api.Post("/admin/login", adminHandler.Login)

	admin := api.Group("/admin", middleware.AuthMiddleware(svc.JWT))
	admin.Get("/me", adminHandler.Me)
	admin.Get("/devices", adminHandler.ListDevices)
	admin.Post("/devices", adminHandler.CreateDevice)
	admin.Put("/devices/:id", adminHandler.UpdateDevice)
	admin.Delete("/devices/:id", adminHandler.DeleteDevice)
	admin.Get("/journeys/export", adminHandler.ExportJourneys)
	admin.Get("/journeys/:token/events", journeyHandler.ListEvents)
}
