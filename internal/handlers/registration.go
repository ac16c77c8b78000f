package handlers

import (
	"log"
	"strings"
	"time"

	"github.com/cashly/journey-api/internal/middleware"
	"github.com/cashly/journey-api/internal/models"
	"github.com/cashly/journey-api/internal/services"
	"github.com/cashly/journey-api/internal/validators"
	"github.com/gofiber/fiber/v3"
)

type RegistrationHandler struct {
	leadService    *services.LeadService
	journeyService *services.JourneyService
	eventService   *services.EventService
	cepService     *services.CEPService
}

func NewRegistrationHandler(ls *services.LeadService, js *services.JourneyService, es *services.EventService, cs *services.CEPService) *RegistrationHandler {
	return &RegistrationHandler{
		leadService:    ls,
		journeyService: js,
		eventService:   es,
		cepService:     cs,
	}
}

// cpfGate classifies a CPF lookup for the registration endpoint.
type cpfGate int

const (
	cpfGateOpen cpfGate = iota
	cpfGateRegistered
	cpfGateRefused
)

// classifyCPFForRegistration decides what registration may reveal about a
// CPF. A blocked CPF gets the same generic refusal the lookup endpoints give
// it, never the "already registered" answer that would confirm a record
// exists.
func classifyCPFForRegistration(check *services.CPFCheckResult) cpfGate {
	switch {
	case check.Blacklisted:
		return cpfGateRefused
	case check.Exists:
		return cpfGateRegistered
	default:
		return cpfGateOpen
	}
}

// RegisterRequest is the registration-step payload.
type RegisterRequest struct {
	CPF       string  `json:"cpf"`
	FullName  string  `json:"full_name"`
	Phone     string  `json:"phone"`
	Phone2    *string `json:"phone2,omitempty"`
	Email     *string `json:"email,omitempty"`
	BirthDate string  `json:"birth_date"` // DD/MM/YYYY
	CEP       *string `json:"cep,omitempty"`
	Street    *string `json:"street,omitempty"`
	District  *string `json:"district,omitempty"`
	City      *string `json:"city,omitempty"`
	State     *string `json:"state,omitempty"`
}

// Register handles POST /api/leads/register: creates the lead and opens its
// journey at the OTP step.
func (h *RegistrationHandler) Register(c fiber.Ctx) error {
	var req RegisterRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errValidation(c, "Invalid request body")
	}

	if !validators.ValidateCPF(req.CPF) {
		return errValidation(c, "Invalid CPF")
	}
	if len(strings.Fields(req.FullName)) < 2 {
		return errValidation(c, "Full name must include at least first and last name")
	}
	if !validators.ValidatePhone(req.Phone) {
		return errValidation(c, "Invalid phone number")
	}
	if req.Phone2 != nil && *req.Phone2 != "" && !validators.ValidatePhone(*req.Phone2) {
		return errValidation(c, "Invalid secondary phone number")
	}
	if req.Email != nil && *req.Email != "" && !validators.ValidateEmail(*req.Email) {
		return errValidation(c, "Invalid email address")
	}

	var birthDate *time.Time
	if req.BirthDate != "" {
		parsed, ok := validators.ParseBirthDate(req.BirthDate)
		if !ok {
			return errValidation(c, "Invalid birth date (use DD/MM/YYYY)")
		}
		if !validators.IsAdult(parsed, time.Now()) {
			return errValidation(c, "Applicant must be at least 18 years old")
		}
		birthDate = &parsed
	}

	if req.CEP != nil && *req.CEP != "" && !validators.ValidateCEP(*req.CEP) {
		return errValidation(c, "Invalid CEP")
	}

	existing, err := h.leadService.CheckCPF(c.Context(), req.CPF)
	if err != nil {
		return errInternal(c, "Failed to look up CPF")
	}
	switch classifyCPFForRegistration(existing) {
	case cpfGateRefused:
		// Same generic wording as any other refusal; the response must not
		// confirm the CPF is on file.
		return errValidation(c, "Unable to process a request for this CPF")
	case cpfGateRegistered:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   ErrKindConflict,
			"message": "CPF is already registered",
		})
	}

	lead, err := h.leadService.Register(c.Context(), services.RegisterInput{
		CPF:       req.CPF,
		FullName:  strings.TrimSpace(req.FullName),
		Phone:     req.Phone,
		Phone2:    req.Phone2,
		Email:     req.Email,
		BirthDate: birthDate,
		CEP:       req.CEP,
		Street:    req.Street,
		District:  req.District,
		City:      req.City,
		State:     req.State,
	})
	if err != nil {
		return errInternal(c, "Failed to register")
	}

	journey, err := h.journeyService.Create(c.Context(), lead.ID, middleware.GetRealIP(c), c.Get("User-Agent"))
	if err != nil {
		return errInternal(c, "Failed to create journey")
	}

	h.eventService.Log(c.Context(), journey.ID, models.EventSessionStarted, models.StepRegistration, models.EventMetadata{})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":   journey.Token,
		"journey": journey.ToResponse(time.Now(), h.journeyService.ProofTTL()),
		"phone":   validators.MaskPhone(req.Phone),
	})
}

// LookupAddress handles GET /api/address/:cep. Autofill only: lookup
// failures return empty, never block registration.
func (h *RegistrationHandler) LookupAddress(c fiber.Ctx) error {
	cep := c.Params("cep")
	if !validators.ValidateCEP(cep) {
		return errValidation(c, "Invalid CEP")
	}

	address, err := h.cepService.Lookup(c.Context(), cep)
	if err != nil {
		log.Printf("[RegistrationHandler] CEP lookup failed for %s: %v", cep, err)
		return c.JSON(fiber.Map{"found": false})
	}
	if address == nil {
		return c.JSON(fiber.Map{"found": false})
	}

	return c.JSON(fiber.Map{
		"found":   true,
		"address": address,
	})
}
