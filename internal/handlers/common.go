package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/cashly/journey-api/internal/models"
	"github.com/cashly/journey-api/internal/services"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// Error kinds of the response taxonomy. Handlers never leak internal error
// detail; everything maps to one of these.
const (
	ErrKindValidation  = "validation_error"
	ErrKindNotFound    = "not_found"
	ErrKindExpired     = "expired"
	ErrKindRateLimited = "rate_limited"
	ErrKindConflict    = "conflict"
	ErrKindUpstream    = "upstream_unavailable"
	ErrKindInternal    = "internal_error"
)

func errValidation(c fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   ErrKindValidation,
		"message": message,
	})
}

func errNotFound(c fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":   ErrKindNotFound,
		"message": message,
	})
}

func errExpired(c fiber.Ctx, message string) error {
	return c.Status(fiber.StatusGone).JSON(fiber.Map{
		"error":   ErrKindExpired,
		"message": message,
	})
}

func errInternal(c fiber.Ctx, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   ErrKindInternal,
		"message": message,
	})
}

// parseToken validates the bearer token format.
func parseToken(value string) (uuid.UUID, error) {
	return uuid.Parse(value)
}

// parseOptionalJSON decodes a JSON body into v when one is present. Used by
// endpoints whose payload is optional; an empty body is fine, a malformed
// one is still a client error.
func parseOptionalJSON(body []byte, v any) error {
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

// resolveJourney loads an in-progress journey by the token path parameter and
// writes the matching taxonomy error when it cannot. A nil journey with a nil
// error means the response has already been written.
func resolveJourney(c fiber.Ctx, journeyService *services.JourneyService) (*models.Journey, error) {
	token, err := uuid.Parse(c.Params("token"))
	if err != nil {
		return nil, errValidation(c, "Invalid journey token")
	}

	journey, err := journeyService.GetByToken(c.Context(), token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound(c, "Journey not found")
		}
		return nil, errInternal(c, "Failed to load journey")
	}

	if journey.IsExpired(time.Now()) || journey.Status == models.JourneyExpired {
		return nil, errExpired(c, "Journey has expired")
	}

	return journey, nil
}
