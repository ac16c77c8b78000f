package handlers

import (
	"errors"
	"time"

	"github.com/cashly/journey-api/internal/services"
	"github.com/cashly/journey-api/internal/validators"
	"github.com/gofiber/fiber/v3"
)

type OTPHandler struct {
	otpService     *services.OTPService
	journeyService *services.JourneyService
	leadService    *services.LeadService
}

func NewOTPHandler(os *services.OTPService, js *services.JourneyService, ls *services.LeadService) *OTPHandler {
	return &OTPHandler{
		otpService:     os,
		journeyService: js,
		leadService:    ls,
	}
}

// Send handles POST /api/journeys/:token/otp/send.
func (h *OTPHandler) Send(c fiber.Ctx) error {
	journey, err := resolveJourney(c, h.journeyService)
	if journey == nil {
		return err
	}

	lead, err := h.leadService.GetByID(c.Context(), journey.LeadID)
	if err != nil {
		return errInternal(c, "Failed to load lead")
	}
	if lead.Phone == "" {
		return errInternal(c, "No phone on file")
	}

	result, err := h.otpService.Send(c.Context(), journey, lead.Phone)
	if err != nil {
		if errors.Is(err, services.ErrRateLimited) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   ErrKindRateLimited,
				"message": "Too many codes requested. Try again later.",
			})
		}
		return errInternal(c, "Failed to send code")
	}

	return c.JSON(fiber.Map{
		"sent":        true,
		"alreadySent": result.AlreadySent,
		"phone":       validators.MaskPhone(lead.Phone),
	})
}

// VerifyRequest carries the submitted code.
type VerifyRequest struct {
	Code string `json:"code"`
}

// Verify handles POST /api/journeys/:token/otp/verify.
func (h *OTPHandler) Verify(c fiber.Ctx) error {
	journey, err := resolveJourney(c, h.journeyService)
	if journey == nil {
		return err
	}

	var req VerifyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errValidation(c, "Invalid request body")
	}
	if len(validators.OnlyDigits(req.Code)) != 6 {
		return errValidation(c, "Code must be 6 digits")
	}

	result, err := h.otpService.Verify(c.Context(), journey, validators.OnlyDigits(req.Code))
	if err != nil {
		return errInternal(c, "Failed to verify code")
	}

	switch result.Outcome {
	case services.VerifySuccess:
		// Reload so the response reflects the post-verification step.
		updated, err := h.journeyService.GetByID(c.Context(), journey.ID)
		if err != nil {
			return errInternal(c, "Failed to load journey")
		}
		return c.JSON(fiber.Map{
			"verified": true,
			"journey":  updated.ToResponse(time.Now(), h.journeyService.ProofTTL()),
		})

	case services.VerifyNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   ErrKindNotFound,
			"message": "No active code. Request a new one.",
		})

	case services.VerifyTooManyAttempts:
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":    ErrKindRateLimited,
			"message":  "Too many attempts. Request a new code.",
			"attempts": result.Attempts,
		})

	default: // invalid_code
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":    ErrKindValidation,
			"message":  "Incorrect code",
			"attempts": result.Attempts,
		})
	}
}
