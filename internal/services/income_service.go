package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cashly/journey-api/internal/database"
	"github.com/cashly/journey-api/internal/models"
)

// IncomeService records the outcome reported by the external income
// verification widget. The widget authenticates the user against a gig
// platform and reports asynchronously; the client polls Status until an
// outcome lands or its own retry ceiling is hit.
type IncomeService struct {
	journeys *JourneyService
	events   *EventService
}

func NewIncomeService(journeys *JourneyService, events *EventService) *IncomeService {
	return &IncomeService{journeys: journeys, events: events}
}

// Supported gig platforms.
var incomePlatforms = map[string]bool{
	"uber":  true,
	"99":    true,
	"ifood": true,
}

var ErrUnknownPlatform = errors.New("unknown income platform")

// OutcomeInput is the verified-income payload from the widget callback.
type OutcomeInput struct {
	Platform       string
	Active         bool
	MonthlyTrips   int
	MonthlyRevenue float64
	Rating         float64
}

// computeScore folds platform metrics into a 0-100 score. Thresholds mirror
// the offer policy: an active account with steady volume scores high.
func computeScore(input OutcomeInput) int {
	if !input.Active {
		return 0
	}
	score := 40
	if input.MonthlyTrips >= 50 {
		score += 25
	} else if input.MonthlyTrips >= 20 {
		score += 15
	}
	if input.MonthlyRevenue >= 2000 {
		score += 25
	} else if input.MonthlyRevenue >= 1000 {
		score += 15
	}
	if input.Rating >= 4.5 {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

// RecordOutcome stores the verification result, stamps income_checked_at and
// advances the journey to the offer step. Replays return the stored result.
func (s *IncomeService) RecordOutcome(ctx context.Context, journey *models.Journey, input OutcomeInput) (int, error) {
	if !incomePlatforms[input.Platform] {
		return 0, ErrUnknownPlatform
	}

	if journey.IncomeCheckedAt != nil {
		// Already recorded; idempotent replay.
		if journey.IncomeScore != nil {
			return *journey.IncomeScore, nil
		}
		return 0, nil
	}
	if journey.Status != models.JourneyInProgress {
		return 0, ErrJourneyClosed
	}
	if journey.CurrentStep != models.StepIncome {
		return 0, ErrStepSkip
	}

	score := computeScore(input)
	now := time.Now()

	res, err := database.DB.NewUpdate().
		Model((*models.Journey)(nil)).
		Set("income_platform = ?", input.Platform).
		Set("income_score = ?", score).
		Set("income_checked_at = ?", now).
		Set("current_step = ?", models.StepOffer).
		Set("updated_at = NOW()").
		Where("id = ?", journey.ID).
		Where("status = ?", models.JourneyInProgress).
		Where("current_step = ?", models.StepIncome).
		Where("income_checked_at IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("record income outcome: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		// A concurrent callback won; report its stored score.
		current, err := s.journeys.GetByID(ctx, journey.ID)
		if err != nil {
			return 0, err
		}
		if current.IncomeScore != nil {
			return *current.IncomeScore, nil
		}
		return 0, nil
	}

	s.events.Log(ctx, journey.ID, models.EventIncomeValidated, models.StepIncome, models.EventMetadata{
		Platform: input.Platform,
	})

	return score, nil
}

// StatusResult tells the polling client where the verification stands.
type StatusResult struct {
	Done     bool    `json:"done"`
	Platform *string `json:"platform,omitempty"`
	Score    *int    `json:"score,omitempty"`
}

// Status reports the current verification state for a journey. The bounded
// poll loop lives on the client; the server only answers with current truth.
func (s *IncomeService) Status(ctx context.Context, journeyID int64) (*StatusResult, error) {
	journey, err := s.journeys.GetByID(ctx, journeyID)
	if err != nil {
		return nil, err
	}

	if journey.IncomeCheckedAt == nil {
		return &StatusResult{Done: false}, nil
	}
	return &StatusResult{
		Done:     true,
		Platform: journey.IncomePlatform,
		Score:    journey.IncomeScore,
	}, nil
}
