package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/cashly/journey-api/config"
	"github.com/cashly/journey-api/internal/middleware"
	"github.com/cashly/journey-api/internal/models"
	"github.com/cashly/journey-api/internal/rabbitmq"
	"github.com/cashly/journey-api/internal/services"
	"github.com/cashly/journey-api/internal/validators"
	"github.com/gofiber/fiber/v3"
)

type JourneyHandler struct {
	journeyService   *services.JourneyService
	leadService      *services.LeadService
	detectionService *services.DetectionService
	eventService     *services.EventService
}

func NewJourneyHandler(js *services.JourneyService, ls *services.LeadService, ds *services.DetectionService, es *services.EventService) *JourneyHandler {
	return &JourneyHandler{
		journeyService:   js,
		leadService:      ls,
		detectionService: ds,
		eventService:     es,
	}
}

// StartRequest is the CPF-lookup payload that opens (or reuses) a journey.
type StartRequest struct {
	CPF string `json:"cpf"`
}

// Start handles POST /api/journeys/start. A known CPF opens or reuses a
// journey; an unknown one tells the client to collect registration first.
func (h *JourneyHandler) Start(c fiber.Ctx) error {
	var req StartRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errValidation(c, "Invalid request body")
	}

	if !validators.ValidateCPF(req.CPF) {
		return errValidation(c, "Invalid CPF")
	}

	check, err := h.leadService.CheckCPF(c.Context(), req.CPF)
	if err != nil {
		return errInternal(c, "Failed to look up CPF")
	}

	if !check.Exists {
		return c.JSON(fiber.Map{
			"exists": false,
			"step":   models.StepRegistration,
		})
	}

	if check.Blacklisted {
		// Same shape as not-found so the response does not confirm the CPF
		// is on file.
		return c.JSON(fiber.Map{
			"exists": false,
			"step":   models.StepRegistration,
		})
	}

	info := h.detectionService.Detect(c.Context(), detectionHeaders(c))

	journey, err := h.journeyService.FindActive(c.Context(), check.LeadID, info.Model)
	if err != nil {
		return errInternal(c, "Failed to look up journey")
	}

	resumed := journey != nil
	if journey == nil {
		journey, err = h.journeyService.Create(c.Context(), check.LeadID, middleware.GetRealIP(c), c.Get("User-Agent"))
		if err != nil {
			return errInternal(c, "Failed to create journey")
		}
		h.eventService.Log(c.Context(), journey.ID, models.EventSessionStarted, models.StepCPF, models.EventMetadata{})
	} else {
		h.eventService.Log(c.Context(), journey.ID, models.EventSessionResumed, journey.CurrentStep, models.EventMetadata{})
	}

	return c.JSON(fiber.Map{
		"exists":  true,
		"resumed": resumed,
		"token":   journey.Token,
		"journey": journey.ToResponse(time.Now(), h.journeyService.ProofTTL()),
	})
}

// Validate handles POST /api/journeys/validate: the resume check for a
// returning client. The server state always wins over whatever the client
// cached.
func (h *JourneyHandler) Validate(c fiber.Ctx) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind().JSON(&req); err != nil {
		return errValidation(c, "Invalid request body")
	}

	token, err := parseToken(req.Token)
	if err != nil {
		return c.JSON(fiber.Map{
			"valid":  false,
			"reason": services.ResumeNotFound,
		})
	}

	result, err := h.journeyService.Resume(c.Context(), token)
	if err != nil {
		return errInternal(c, "Failed to validate journey")
	}

	resp := fiber.Map{
		"valid": result.Valid,
	}
	if result.Reason != services.ResumeOK {
		resp["reason"] = result.Reason
	}
	if result.Valid {
		resp["needsOtp"] = result.NeedsOTP
		resp["journey"] = result.Journey.ToResponse(time.Now(), h.journeyService.ProofTTL())
	}
	return c.JSON(resp)
}

// AdvanceRequest names the step the client claims to have completed next.
type AdvanceRequest struct {
	Step string `json:"step"`
}

// Advance handles POST /api/journeys/:token/advance, the generic sequencer
// endpoint for steps with no dedicated handler (registration confirmation,
// offer display and the like).
func (h *JourneyHandler) Advance(c fiber.Ctx) error {
	journey, err := resolveJourney(c, h.journeyService)
	if journey == nil {
		return err
	}

	var req AdvanceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errValidation(c, "Invalid request body")
	}

	step := models.Step(req.Step)
	if !models.IsValidStep(step) {
		return errValidation(c, "Unknown step")
	}

	err = h.journeyService.Advance(c.Context(), journey, step)
	switch {
	case err == nil:
		h.eventService.Log(c.Context(), journey.ID, models.EventStepCompleted, step, models.EventMetadata{})
	case errors.Is(err, services.ErrStepReplay):
		// Duplicate submission; report current truth with a notice.
		return c.JSON(fiber.Map{
			"notice":  ErrKindConflict,
			"journey": journey.ToResponse(time.Now(), h.journeyService.ProofTTL()),
		})
	case errors.Is(err, services.ErrStepSkip):
		return errValidation(c, "Step is not reachable from the current position")
	case errors.Is(err, services.ErrStepBlocked):
		return errValidation(c, "Current step is not complete")
	case errors.Is(err, services.ErrJourneyClosed):
		return errExpired(c, "Journey is no longer in progress")
	default:
		return errInternal(c, "Failed to advance journey")
	}

	return c.JSON(fiber.Map{
		"journey": journey.ToResponse(time.Now(), h.journeyService.ProofTTL()),
	})
}

// Heartbeat handles POST /api/journeys/:token/heartbeat. Beacon endpoint:
// best effort, always 204 on well-formed tokens.
func (h *JourneyHandler) Heartbeat(c fiber.Ctx) error {
	journey, err := resolveJourney(c, h.journeyService)
	if journey == nil {
		return err
	}

	if err := h.journeyService.Heartbeat(c.Context(), journey.ID); err != nil {
		log.Printf("[JourneyHandler] Heartbeat write failed for journey %d: %v", journey.ID, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// abandonBody is sent by navigator.sendBeacon, which posts text/plain, so it
// is decoded from the raw body rather than the JSON binder.
type abandonBody struct {
	Step string `json:"step"`
	At   string `json:"at"`
}

// Abandon handles POST /api/journeys/:token/abandon. Marks the journey
// abandoned and schedules the re-engagement reminder.
func (h *JourneyHandler) Abandon(c fiber.Ctx) error {
	journey, err := resolveJourney(c, h.journeyService)
	if journey == nil {
		return err
	}

	var body abandonBody
	_ = json.Unmarshal(c.Body(), &body)

	if journey.Status == models.JourneyInProgress {
		if err := h.journeyService.MarkAbandoned(c.Context(), journey.ID); err != nil {
			log.Printf("[JourneyHandler] Abandon write failed for journey %d: %v", journey.ID, err)
			return c.SendStatus(fiber.StatusNoContent)
		}

		h.eventService.Log(c.Context(), journey.ID, models.EventJourneyAbandoned, journey.CurrentStep, models.EventMetadata{
			AbandonedAt: body.At,
		})

		if err := rabbitmq.PublishReminder(journey.ID, config.AppConfig.ReminderDelay); err != nil {
			log.Printf("[JourneyHandler] Failed to schedule reminder for journey %d: %v", journey.ID, err)
		}
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// EventRequest is a client-side analytics event.
type EventRequest struct {
	EventType string               `json:"event_type"`
	Step      string               `json:"step"`
	Metadata  models.EventMetadata `json:"metadata"`
}

// LogEvent handles POST /api/journeys/:token/events. Accepts both JSON and
// the text/plain bodies the Beacon API produces.
func (h *JourneyHandler) LogEvent(c fiber.Ctx) error {
	journey, err := resolveJourney(c, h.journeyService)
	if journey == nil {
		return err
	}

	var req EventRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return errValidation(c, "Invalid event body")
	}
	if req.EventType == "" {
		return errValidation(c, "event_type is required")
	}

	h.eventService.Log(c.Context(), journey.ID, req.EventType, models.Step(req.Step), req.Metadata)
	return c.SendStatus(fiber.StatusNoContent)
}

// ListEvents handles GET /api/journeys/:token/events.
func (h *JourneyHandler) ListEvents(c fiber.Ctx) error {
	journey, err := resolveJourney(c, h.journeyService)
	if journey == nil {
		return err
	}

	events, err := h.eventService.List(c.Context(), journey.ID)
	if err != nil {
		return errInternal(c, "Failed to load events")
	}
	return c.JSON(fiber.Map{"events": events})
}

// detectionHeaders collects the headers the detection chain inspects.
func detectionHeaders(c fiber.Ctx) map[string]string {
	return map[string]string{
		"User-Agent":                  c.Get("User-Agent"),
		"Sec-CH-UA-Model":             c.Get("Sec-CH-UA-Model"),
		"Sec-CH-UA-Platform":          c.Get("Sec-CH-UA-Platform"),
		"Sec-CH-UA":                   c.Get("Sec-CH-UA"),
		"Sec-CH-UA-Mobile":            c.Get("Sec-CH-UA-Mobile"),
		"Sec-CH-UA-Full-Version-List": c.Get("Sec-CH-UA-Full-Version-List"),
	}
}
