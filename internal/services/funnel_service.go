package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cashly/journey-api/internal/database"
	"github.com/cashly/journey-api/internal/models"
)

// FunnelService handles the late funnel steps: offer acceptance, guard app
// registration and contract signing. Each transition is a guarded single
// UPDATE so duplicate submissions cannot double-apply.
type FunnelService struct {
	journeys *JourneyService
	events   *EventService
}

func NewFunnelService(journeys *JourneyService, events *EventService) *FunnelService {
	return &FunnelService{journeys: journeys, events: events}
}

// AcceptOffer stamps offer_accepted_at and advances offer -> guard.
// Replays return ErrStepReplay.
func (s *FunnelService) AcceptOffer(ctx context.Context, journey *models.Journey) error {
	if journey.Status != models.JourneyInProgress {
		return ErrJourneyClosed
	}
	if journey.OfferAcceptedAt != nil {
		return ErrStepReplay
	}
	if journey.CurrentStep != models.StepOffer {
		return ErrStepSkip
	}

	res, err := database.DB.NewUpdate().
		Model((*models.Journey)(nil)).
		Set("offer_accepted_at = ?", time.Now()).
		Set("current_step = ?", models.StepGuard).
		Set("updated_at = NOW()").
		Where("id = ?", journey.ID).
		Where("status = ?", models.JourneyInProgress).
		Where("current_step = ?", models.StepOffer).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("accept offer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStepReplay
	}

	s.events.Log(ctx, journey.ID, models.EventOfferAccepted, models.StepOffer, models.EventMetadata{
		Amount: journey.ApprovedAmount,
	})
	return nil
}

// RegisterGuard records the anti-theft app enrollment (IMEI already
// validated by the caller) and advances guard -> contract.
func (s *FunnelService) RegisterGuard(ctx context.Context, journey *models.Journey, imei string) error {
	if journey.Status != models.JourneyInProgress {
		return ErrJourneyClosed
	}
	if journey.GuardVerifiedAt != nil {
		return ErrStepReplay
	}
	if journey.CurrentStep != models.StepGuard {
		return ErrStepSkip
	}

	res, err := database.DB.NewUpdate().
		Model((*models.Journey)(nil)).
		Set("guard_imei = ?", imei).
		Set("guard_verified_at = ?", time.Now()).
		Set("current_step = ?", models.StepContract).
		Set("updated_at = NOW()").
		Where("id = ?", journey.ID).
		Where("status = ?", models.JourneyInProgress).
		Where("current_step = ?", models.StepGuard).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("register guard: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStepReplay
	}

	s.events.Log(ctx, journey.ID, models.EventGuardVerified, models.StepGuard, models.EventMetadata{})
	return nil
}

// SignContract generates the contract id, stamps the signature, advances
// contract -> success and closes the journey as completed. Returns the
// contract id (the stored one on replay).
func (s *FunnelService) SignContract(ctx context.Context, journey *models.Journey) (string, error) {
	if journey.ContractID != nil {
		return *journey.ContractID, ErrStepReplay
	}
	if journey.Status != models.JourneyInProgress {
		return "", ErrJourneyClosed
	}
	if journey.CurrentStep != models.StepContract {
		return "", ErrStepSkip
	}

	contractID := fmt.Sprintf("CTR-%d", time.Now().UnixMilli())
	now := time.Now()

	res, err := database.DB.NewUpdate().
		Model((*models.Journey)(nil)).
		Set("contract_id = ?", contractID).
		Set("contract_signed_at = ?", now).
		Set("current_step = ?", models.StepSuccess).
		Set("status = ?", models.JourneyCompleted).
		Set("updated_at = NOW()").
		Where("id = ?", journey.ID).
		Where("status = ?", models.JourneyInProgress).
		Where("current_step = ?", models.StepContract).
		Where("contract_id IS NULL").
		Exec(ctx)
	if err != nil {
		return "", fmt.Errorf("sign contract: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// A duplicate signed first; report the stored id.
		current, rerr := s.journeys.GetByID(ctx, journey.ID)
		if rerr != nil {
			return "", rerr
		}
		if current.ContractID != nil {
			return *current.ContractID, ErrStepReplay
		}
		return "", ErrStepReplay
	}

	s.events.Log(ctx, journey.ID, models.EventContractSigned, models.StepContract, models.EventMetadata{
		ContractID: contractID,
	})
	s.events.Log(ctx, journey.ID, models.EventJourneyCompleted, models.StepSuccess, models.EventMetadata{})

	return contractID, nil
}
