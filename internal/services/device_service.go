package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/cashly/journey-api/internal/database"
	"github.com/cashly/journey-api/internal/models"
)

// DeviceService decides device eligibility against the configured allowlist.
// Approval is sticky (a recorded approval is returned as-is); rejection is
// not, so the user can retry with another phone.
type DeviceService struct {
	events *EventService
}

func NewDeviceService(events *EventService) *DeviceService {
	return &DeviceService{events: events}
}

// EligibilityMatch is the outcome of matching a model string against the
// allowlist.
type EligibilityMatch struct {
	Eligible       bool
	ApprovedAmount float64
	DisplayName    string
}

// MatchEligibility checks the model string against each allowlist pattern,
// case-insensitively; the first match wins. Malformed stored patterns are
// skipped with a warning, not fatal.
func MatchEligibility(devices []models.EligibleDevice, model string) EligibilityMatch {
	for _, device := range devices {
		if !device.Active {
			continue
		}
		re, err := regexp.Compile("(?i)" + device.ModelPattern)
		if err != nil {
			log.Printf("[DeviceService] Skipping invalid pattern %q: %v", device.ModelPattern, err)
			continue
		}
		if re.MatchString(model) {
			match := EligibilityMatch{
				Eligible:       true,
				ApprovedAmount: device.ApprovedAmount,
			}
			if device.Description != nil {
				match.DisplayName = *device.Description
			}
			return match
		}
	}
	return EligibilityMatch{}
}

// ValidationResult is returned to the client after a device check.
type ValidationResult struct {
	Eligible       bool
	ApprovedAmount *float64
	DisplayName    string
	Model          string
	Attempts       int
	AlreadyChecked bool
}

// Validate runs the eligibility check for the submitted model.
//
// If a prior approval is recorded the cached result is returned without
// re-evaluation. Otherwise the allowlist is evaluated; approval is applied
// with a compare-and-swap (only one request can record it) and advances the
// journey to the income step, while rejection increments device_attempts and
// leaves step and status untouched.
func (s *DeviceService) Validate(ctx context.Context, journey *models.Journey, model, vendor, userAgent string) (*ValidationResult, error) {
	if journey.DeviceEligible {
		return &ValidationResult{
			Eligible:       true,
			ApprovedAmount: journey.ApprovedAmount,
			Model:          stringValue(journey.DeviceModel),
			Attempts:       journey.DeviceAttempts,
			AlreadyChecked: true,
		}, nil
	}
	if journey.Status != models.JourneyInProgress {
		return nil, ErrJourneyClosed
	}
	// Not approved yet, so the journey must be parked at the device step;
	// anything earlier means the client is trying to skip ahead.
	if journey.CurrentStep != models.StepDevice {
		return nil, ErrStepSkip
	}

	var devices []models.EligibleDevice
	err := database.DB.NewSelect().
		Model(&devices).
		Where("active = TRUE").
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load allowlist: %w", err)
	}

	match := MatchEligibility(devices, model)
	now := time.Now()

	if match.Eligible {
		res, err := database.DB.NewUpdate().
			Model((*models.Journey)(nil)).
			Set("device_model = ?", model).
			Set("device_vendor = ?", vendor).
			Set("user_agent = ?", userAgent).
			Set("device_eligible = TRUE").
			Set("device_attempts = 0").
			Set("device_checked_at = ?", now).
			Set("approved_amount = ?", match.ApprovedAmount).
			Set("current_step = ?", models.StepIncome).
			Set("updated_at = NOW()").
			Where("id = ?", journey.ID).
			Where("status = ?", models.JourneyInProgress).
			Where("current_step = ?", models.StepDevice).
			Where("device_eligible IS NOT TRUE").
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("record approval: %w", err)
		}

		// Zero rows means another request approved first; return its result.
		if n, _ := res.RowsAffected(); n == 0 {
			current, err := s.reload(ctx, journey.ID)
			if err != nil {
				return nil, err
			}
			return &ValidationResult{
				Eligible:       current.DeviceEligible,
				ApprovedAmount: current.ApprovedAmount,
				Model:          stringValue(current.DeviceModel),
				Attempts:       current.DeviceAttempts,
				AlreadyChecked: true,
			}, nil
		}

		eligible := true
		s.events.Log(ctx, journey.ID, models.EventDeviceEligible, models.StepDevice, models.EventMetadata{
			Model:    model,
			Vendor:   vendor,
			Eligible: &eligible,
			Amount:   &match.ApprovedAmount,
		})

		amount := match.ApprovedAmount
		return &ValidationResult{
			Eligible:       true,
			ApprovedAmount: &amount,
			DisplayName:    match.DisplayName,
			Model:          model,
		}, nil
	}

	// Rejection: record the attempted model and bump the counter, but keep
	// the journey parked at the device step for another try.
	var attempts int
	err = database.DB.NewUpdate().
		Model((*models.Journey)(nil)).
		Set("device_model = ?", model).
		Set("device_vendor = ?", vendor).
		Set("user_agent = ?", userAgent).
		Set("device_checked_at = ?", now).
		Set("device_attempts = device_attempts + 1").
		Set("updated_at = NOW()").
		Where("id = ?", journey.ID).
		Where("status = ?", models.JourneyInProgress).
		Where("device_eligible IS NOT TRUE").
		Returning("device_attempts").
		Scan(ctx, &attempts)
	if err != nil {
		// No matching row: a concurrent request recorded an approval after
		// our read. Return the sticky result.
		if errors.Is(err, sql.ErrNoRows) {
			current, rerr := s.reload(ctx, journey.ID)
			if rerr != nil {
				return nil, rerr
			}
			return &ValidationResult{
				Eligible:       current.DeviceEligible,
				ApprovedAmount: current.ApprovedAmount,
				Model:          stringValue(current.DeviceModel),
				Attempts:       current.DeviceAttempts,
				AlreadyChecked: true,
			}, nil
		}
		return nil, fmt.Errorf("record rejection: %w", err)
	}

	eligible := false
	s.events.Log(ctx, journey.ID, models.EventDeviceIneligible, models.StepDevice, models.EventMetadata{
		Model:    model,
		Vendor:   vendor,
		Eligible: &eligible,
		Attempts: &attempts,
	})

	return &ValidationResult{
		Eligible: false,
		Model:    model,
		Attempts: attempts,
	}, nil
}

func (s *DeviceService) reload(ctx context.Context, journeyID int64) (*models.Journey, error) {
	journey := new(models.Journey)
	err := database.DB.NewSelect().
		Model(journey).
		Where("id = ?", journeyID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload journey: %w", err)
	}
	return journey, nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
