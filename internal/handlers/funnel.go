package handlers

import (
	"errors"
	"time"

	"github.com/cashly/journey-api/internal/services"
	"github.com/cashly/journey-api/internal/validators"
	"github.com/gofiber/fiber/v3"
)

// FunnelHandler serves the late funnel steps: income verification, offer
// acceptance, guard registration and contract signing.
type FunnelHandler struct {
	incomeService  *services.IncomeService
	funnelService  *services.FunnelService
	journeyService *services.JourneyService
}

func NewFunnelHandler(is *services.IncomeService, fs *services.FunnelService, js *services.JourneyService) *FunnelHandler {
	return &FunnelHandler{
		incomeService:  is,
		funnelService:  fs,
		journeyService: js,
	}
}

// IncomeOutcomeRequest is the verified-income callback from the widget.
type IncomeOutcomeRequest struct {
	Platform       string  `json:"platform"`
	Active         bool    `json:"active"`
	MonthlyTrips   int     `json:"monthly_trips"`
	MonthlyRevenue float64 `json:"monthly_revenue"`
	Rating         float64 `json:"rating"`
}

// IncomeOutcome handles POST /api/journeys/:token/income.
func (h *FunnelHandler) IncomeOutcome(c fiber.Ctx) error {
	journey, err := resolveJourney(c, h.journeyService)
	if journey == nil {
		return err
	}

	var req IncomeOutcomeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errValidation(c, "Invalid request body")
	}

	score, err := h.incomeService.RecordOutcome(c.Context(), journey, services.OutcomeInput{
		Platform:       req.Platform,
		Active:         req.Active,
		MonthlyTrips:   req.MonthlyTrips,
		MonthlyRevenue: req.MonthlyRevenue,
		Rating:         req.Rating,
	})
	if err != nil {
		if errors.Is(err, services.ErrUnknownPlatform) {
			return errValidation(c, "Unsupported income platform")
		}
		return h.stepError(c, journey.ID, err)
	}

	return c.JSON(fiber.Map{
		"recorded": true,
		"score":    score,
	})
}

// IncomeStatus handles GET /api/journeys/:token/income. The client polls
// this while the widget runs; the server just reports current truth.
func (h *FunnelHandler) IncomeStatus(c fiber.Ctx) error {
	journey, err := resolveJourney(c, h.journeyService)
	if journey == nil {
		return err
	}

	status, err := h.incomeService.Status(c.Context(), journey.ID)
	if err != nil {
		return errInternal(c, "Failed to load income status")
	}
	return c.JSON(status)
}

// AcceptOffer handles POST /api/journeys/:token/offer/accept.
func (h *FunnelHandler) AcceptOffer(c fiber.Ctx) error {
	journey, err := resolveJourney(c, h.journeyService)
	if journey == nil {
		return err
	}

	if err := h.funnelService.AcceptOffer(c.Context(), journey); err != nil {
		return h.stepError(c, journey.ID, err)
	}

	updated, err := h.journeyService.GetByID(c.Context(), journey.ID)
	if err != nil {
		return errInternal(c, "Failed to load journey")
	}
	return c.JSON(fiber.Map{
		"accepted": true,
		"journey":  updated.ToResponse(time.Now(), h.journeyService.ProofTTL()),
	})
}

// GuardRequest carries the IMEI collected by the anti-theft app flow.
type GuardRequest struct {
	IMEI string `json:"imei"`
}

// RegisterGuard handles POST /api/journeys/:token/guard.
func (h *FunnelHandler) RegisterGuard(c fiber.Ctx) error {
	journey, err := resolveJourney(c, h.journeyService)
	if journey == nil {
		return err
	}

	var req GuardRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errValidation(c, "Invalid request body")
	}
	if !validators.ValidateIMEI(req.IMEI) {
		return errValidation(c, "Invalid IMEI")
	}

	if err := h.funnelService.RegisterGuard(c.Context(), journey, validators.OnlyDigits(req.IMEI)); err != nil {
		return h.stepError(c, journey.ID, err)
	}

	updated, err := h.journeyService.GetByID(c.Context(), journey.ID)
	if err != nil {
		return errInternal(c, "Failed to load journey")
	}
	return c.JSON(fiber.Map{
		"registered": true,
		"journey":    updated.ToResponse(time.Now(), h.journeyService.ProofTTL()),
	})
}

// SignContract handles POST /api/journeys/:token/contract/sign. A replay
// returns the stored contract id with a conflict notice instead of failing.
func (h *FunnelHandler) SignContract(c fiber.Ctx) error {
	journey, err := resolveJourney(c, h.journeyService)
	if journey == nil {
		return err
	}

	contractID, err := h.funnelService.SignContract(c.Context(), journey)
	if err != nil && !errors.Is(err, services.ErrStepReplay) {
		return h.stepError(c, journey.ID, err)
	}

	resp := fiber.Map{
		"signed":     true,
		"contractId": contractID,
	}
	if errors.Is(err, services.ErrStepReplay) {
		resp["notice"] = ErrKindConflict
	}
	return c.JSON(resp)
}

// stepError maps sequencer errors to taxonomy responses. Replays answer 200
// with a conflict notice and the current journey state.
func (h *FunnelHandler) stepError(c fiber.Ctx, journeyID int64, err error) error {
	switch {
	case errors.Is(err, services.ErrStepReplay):
		updated, lerr := h.journeyService.GetByID(c.Context(), journeyID)
		if lerr != nil {
			return errInternal(c, "Failed to load journey")
		}
		return c.JSON(fiber.Map{
			"notice":  ErrKindConflict,
			"journey": updated.ToResponse(time.Now(), h.journeyService.ProofTTL()),
		})
	case errors.Is(err, services.ErrStepSkip):
		return errValidation(c, "Step is not reachable from the current position")
	case errors.Is(err, services.ErrJourneyClosed):
		return errExpired(c, "Journey is no longer in progress")
	default:
		return errInternal(c, "Failed to advance journey")
	}
}
