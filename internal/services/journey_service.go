package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cashly/journey-api/internal/database"
	"github.com/cashly/journey-api/internal/models"
	"github.com/google/uuid"
)

// JourneyService owns session lifecycle: creation and reuse, the step
// sequencer, resume classification, heartbeat and abandonment.
type JourneyService struct {
	expiry   time.Duration
	proofTTL time.Duration
}

func NewJourneyService(expiry, proofTTL time.Duration) *JourneyService {
	return &JourneyService{expiry: expiry, proofTTL: proofTTL}
}

// Sequencer errors
var (
	ErrStepSkip      = errors.New("target step is not the immediate successor")
	ErrStepReplay    = errors.New("step already completed")
	ErrStepBlocked   = errors.New("current step is not complete")
	ErrJourneyClosed = errors.New("journey is not in progress")
)

// FindActive returns the newest in_progress journey for the lead, optionally
// narrowed to one detected device model so a different phone starts fresh.
func (s *JourneyService) FindActive(ctx context.Context, leadID int64, deviceModel string) (*models.Journey, error) {
	journey := new(models.Journey)
	q := database.DB.NewSelect().
		Model(journey).
		Where("lead_id = ?", leadID).
		Where("status = ?", models.JourneyInProgress).
		Order("created_at DESC").
		Limit(1)

	if deviceModel != "" && deviceModel != "unknown" {
		q = q.Where("device_model IS NULL OR device_model = ?", deviceModel)
	}

	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return journey, nil
}

// Create opens a new journey at the OTP step (the CPF step is complete once
// the lead is identified).
func (s *JourneyService) Create(ctx context.Context, leadID int64, ipAddress, userAgent string) (*models.Journey, error) {
	journey := &models.Journey{
		LeadID:      leadID,
		Status:      models.JourneyInProgress,
		CurrentStep: models.StepOTP,
		ExpiresAt:   time.Now().Add(s.expiry),
	}
	if ipAddress != "" {
		journey.IPAddress = &ipAddress
	}
	if userAgent != "" {
		journey.UserAgent = &userAgent
	}

	if _, err := database.DB.NewInsert().Model(journey).Exec(ctx); err != nil {
		return nil, fmt.Errorf("create journey: %w", err)
	}
	return journey, nil
}

// GetByToken loads a journey (with its lead) by the bearer token.
func (s *JourneyService) GetByToken(ctx context.Context, token uuid.UUID) (*models.Journey, error) {
	journey := new(models.Journey)
	err := database.DB.NewSelect().
		Model(journey).
		Relation("Lead").
		Where("j.token = ?", token).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return journey, nil
}

// GetByID loads a journey by primary key.
func (s *JourneyService) GetByID(ctx context.Context, id int64) (*models.Journey, error) {
	journey := new(models.Journey)
	err := database.DB.NewSelect().
		Model(journey).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return journey, nil
}

// GateSatisfied reports whether the journey carries the proof required to
// enter targetStep. Each gated step is unlocked by the stamp its
// predecessor's endpoint writes; the early steps have no stamp and are open.
// Pure function of the record and the clock.
func GateSatisfied(journey *models.Journey, targetStep models.Step, now time.Time, proofTTL time.Duration) bool {
	switch targetStep {
	case models.StepDevice:
		return journey.OtpValid(now, proofTTL)
	case models.StepIncome:
		return journey.DeviceEligible
	case models.StepOffer:
		return journey.IncomeCheckedAt != nil
	case models.StepGuard:
		return journey.OfferAcceptedAt != nil
	case models.StepContract:
		return journey.GuardVerifiedAt != nil
	case models.StepSuccess:
		return journey.ContractID != nil
	default:
		return true
	}
}

// Advance moves the journey to targetStep, which must be the immediate
// successor of its current step, and only once the current step's completion
// stamp is in place. A replay of the current step returns ErrStepReplay
// (callers surface it as success-with-notice). The update is a guarded
// compare-and-swap so a concurrent duplicate cannot double-advance, and the
// gate condition is repeated in the WHERE clause so a stale read cannot slip
// past it.
func (s *JourneyService) Advance(ctx context.Context, journey *models.Journey, targetStep models.Step) error {
	if journey.Status != models.JourneyInProgress {
		return ErrJourneyClosed
	}
	if targetStep == journey.CurrentStep {
		return ErrStepReplay
	}
	if targetStep != models.NextStep(journey.CurrentStep) {
		return ErrStepSkip
	}

	now := time.Now()
	if !GateSatisfied(journey, targetStep, now, s.proofTTL) {
		return ErrStepBlocked
	}

	q := database.DB.NewUpdate().
		Model((*models.Journey)(nil)).
		Set("current_step = ?", targetStep).
		Set("updated_at = NOW()").
		Where("id = ?", journey.ID).
		Where("current_step = ?", journey.CurrentStep).
		Where("status = ?", models.JourneyInProgress)

	switch targetStep {
	case models.StepDevice:
		q = q.Where("otp_verified_at > ?", now.Add(-s.proofTTL))
	case models.StepIncome:
		q = q.Where("device_eligible = TRUE")
	case models.StepOffer:
		q = q.Where("income_checked_at IS NOT NULL")
	case models.StepGuard:
		q = q.Where("offer_accepted_at IS NOT NULL")
	case models.StepContract:
		q = q.Where("guard_verified_at IS NOT NULL")
	case models.StepSuccess:
		q = q.Set("status = ?", models.JourneyCompleted).
			Where("contract_id IS NOT NULL")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("advance step: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Lost the race to a duplicate submission; treat as replay.
		return ErrStepReplay
	}

	journey.CurrentStep = targetStep
	if targetStep == models.StepSuccess {
		journey.Status = models.JourneyCompleted
	}
	return nil
}

// ResumeReason classifies why a resume failed (or didn't).
type ResumeReason string

const (
	ResumeOK               ResumeReason = ""
	ResumeNotFound         ResumeReason = "not_found"
	ResumeJourneyExpired   ResumeReason = "journey_expired"
	ResumeJourneyCompleted ResumeReason = "journey_completed"
	ResumeJourneyAbandoned ResumeReason = "journey_abandoned"
)

// ResumeResult is the server-truth snapshot handed back to a returning
// client. The client's cached state never overrides it.
type ResumeResult struct {
	Valid    bool
	Reason   ResumeReason
	NeedsOTP bool
	Journey  *models.Journey
}

// ClassifyResume decides whether a journey can be resumed and whether the
// user must re-prove OTP possession first. Pure function of the record and
// the clock.
func ClassifyResume(journey *models.Journey, now time.Time, proofTTL time.Duration) ResumeResult {
	if journey == nil {
		return ResumeResult{Valid: false, Reason: ResumeNotFound}
	}

	// Device rejection does not change status, so an in_progress journey
	// stuck on the device step is still resumable.
	switch journey.Status {
	case models.JourneyInProgress:
		// fall through to expiry check
	case models.JourneyCompleted, models.JourneyRejected:
		return ResumeResult{Valid: false, Reason: ResumeJourneyCompleted, Journey: journey}
	case models.JourneyExpired:
		return ResumeResult{Valid: false, Reason: ResumeJourneyExpired, Journey: journey}
	case models.JourneyAbandoned:
		return ResumeResult{Valid: false, Reason: ResumeJourneyAbandoned, Journey: journey}
	default:
		return ResumeResult{Valid: false, Reason: ResumeJourneyCompleted, Journey: journey}
	}

	if journey.IsExpired(now) {
		return ResumeResult{Valid: false, Reason: ResumeJourneyExpired, Journey: journey}
	}

	needsOTP := models.StepIndex(journey.CurrentStep) > models.StepIndex(models.StepOTP) &&
		!journey.OtpValid(now, proofTTL)

	return ResumeResult{Valid: true, NeedsOTP: needsOTP, Journey: journey}
}

// Resume validates a bearer token and reconstructs server truth for the
// client, marking lapsed sessions as expired along the way.
func (s *JourneyService) Resume(ctx context.Context, token uuid.UUID) (ResumeResult, error) {
	journey, err := s.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ResumeResult{Valid: false, Reason: ResumeNotFound}, nil
		}
		return ResumeResult{}, err
	}

	result := ClassifyResume(journey, time.Now(), s.proofTTL)

	// Age out lapsed sessions so later lookups skip them.
	if result.Reason == ResumeJourneyExpired && journey.Status == models.JourneyInProgress {
		_, err := database.DB.NewUpdate().
			Model((*models.Journey)(nil)).
			Set("status = ?", models.JourneyExpired).
			Set("updated_at = NOW()").
			Where("id = ?", journey.ID).
			Where("status = ?", models.JourneyInProgress).
			Exec(ctx)
		if err != nil {
			return result, fmt.Errorf("expire journey: %w", err)
		}
	}

	return result, nil
}

// MarkAbandoned flips an in-progress journey to abandoned. Idempotent; a
// journey that already moved on is left alone.
func (s *JourneyService) MarkAbandoned(ctx context.Context, journeyID int64) error {
	_, err := database.DB.NewUpdate().
		Model((*models.Journey)(nil)).
		Set("status = ?", models.JourneyAbandoned).
		Set("updated_at = NOW()").
		Where("id = ?", journeyID).
		Where("status = ?", models.JourneyInProgress).
		Exec(ctx)
	return err
}

// Heartbeat stamps last_heartbeat_at for an in-progress journey. Best
// effort; a missed beat is expected under flaky mobile conditions.
func (s *JourneyService) Heartbeat(ctx context.Context, journeyID int64) error {
	_, err := database.DB.NewUpdate().
		Model((*models.Journey)(nil)).
		Set("last_heartbeat_at = NOW()").
		Where("id = ?", journeyID).
		Where("status = ?", models.JourneyInProgress).
		Exec(ctx)
	return err
}

// LastHeartbeat returns the most recent heartbeat, if any.
func (s *JourneyService) LastHeartbeat(ctx context.Context, journeyID int64) (*time.Time, error) {
	journey := new(models.Journey)
	err := database.DB.NewSelect().
		Model(journey).
		Column("last_heartbeat_at").
		Where("id = ?", journeyID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return journey.LastHeartbeatAt, nil
}

// ProofTTL exposes the configured OTP proof window for response building.
func (s *JourneyService) ProofTTL() time.Duration {
	return s.proofTTL
}
