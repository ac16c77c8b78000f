package handlers

import (
	"errors"
	"time"

	"github.com/cashly/journey-api/internal/services"
	"github.com/gofiber/fiber/v3"
)

type DeviceHandler struct {
	deviceService    *services.DeviceService
	detectionService *services.DetectionService
	journeyService   *services.JourneyService
}

func NewDeviceHandler(dvs *services.DeviceService, dts *services.DetectionService, js *services.JourneyService) *DeviceHandler {
	return &DeviceHandler{
		deviceService:    dvs,
		detectionService: dts,
		journeyService:   js,
	}
}

// Detect handles POST /api/journeys/:token/device/detect: server-side model
// detection from request headers, no allowlist decision yet.
func (h *DeviceHandler) Detect(c fiber.Ctx) error {
	journey, err := resolveJourney(c, h.journeyService)
	if journey == nil {
		return err
	}

	info := h.detectionService.Detect(c.Context(), detectionHeaders(c))
	return c.JSON(fiber.Map{"device": info})
}

// ValidateRequest optionally overrides the detected model (manual selection
// in the client when detection confidence is low).
type ValidateRequest struct {
	Model  string `json:"model,omitempty"`
	Vendor string `json:"vendor,omitempty"`
}

// Validate handles POST /api/journeys/:token/device/validate: the
// eligibility decision. Approval advances the journey; rejection leaves it
// parked on the device step for another try.
func (h *DeviceHandler) Validate(c fiber.Ctx) error {
	journey, err := resolveJourney(c, h.journeyService)
	if journey == nil {
		return err
	}

	var req ValidateRequest
	if err := parseOptionalJSON(c.Body(), &req); err != nil {
		return errValidation(c, "Invalid request body")
	}

	model := req.Model
	vendor := req.Vendor
	if model == "" {
		info := h.detectionService.Detect(c.Context(), detectionHeaders(c))
		model = info.Model
		vendor = info.Vendor
	}
	if model == "" || model == "unknown" {
		return errValidation(c, "Could not identify the device model")
	}

	result, err := h.deviceService.Validate(c.Context(), journey, model, vendor, c.Get("User-Agent"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrStepSkip):
			return errValidation(c, "Step is not reachable from the current position")
		case errors.Is(err, services.ErrJourneyClosed):
			return errExpired(c, "Journey is no longer in progress")
		default:
			return errInternal(c, "Failed to validate device")
		}
	}

	resp := fiber.Map{
		"eligible":       result.Eligible,
		"model":          result.Model,
		"attempts":       result.Attempts,
		"alreadyChecked": result.AlreadyChecked,
	}
	if result.Eligible {
		resp["approvedAmount"] = result.ApprovedAmount
		if result.DisplayName != "" {
			resp["displayName"] = result.DisplayName
		}
		updated, err := h.journeyService.GetByID(c.Context(), journey.ID)
		if err == nil {
			resp["journey"] = updated.ToResponse(time.Now(), h.journeyService.ProofTTL())
		}
	}
	return c.JSON(resp)
}
