package services

import (
	"testing"
	"time"

	"github.com/cashly/journey-api/internal/models"
	"github.com/stretchr/testify/assert"
)

const proofTTL = 20 * time.Minute

func activeJourney(now time.Time) *models.Journey {
	return &models.Journey{
		ID:          1,
		Status:      models.JourneyInProgress,
		CurrentStep: models.StepOTP,
		ExpiresAt:   now.Add(12 * time.Hour),
	}
}

func TestClassifyResumeNotFound(t *testing.T) {
	result := ClassifyResume(nil, time.Now(), proofTTL)
	assert.False(t, result.Valid)
	assert.Equal(t, ResumeNotFound, result.Reason)
}

func TestClassifyResumeActive(t *testing.T) {
	now := time.Now()
	journey := activeJourney(now)

	result := ClassifyResume(journey, now, proofTTL)
	assert.True(t, result.Valid)
	assert.Equal(t, ResumeOK, result.Reason)
	assert.False(t, result.NeedsOTP, "journey still at the OTP step never needs re-verification")
}

func TestClassifyResumeExpired(t *testing.T) {
	now := time.Now()

	t.Run("lapsed expires_at on in_progress", func(t *testing.T) {
		journey := activeJourney(now)
		journey.ExpiresAt = now.Add(-time.Minute)

		result := ClassifyResume(journey, now, proofTTL)
		assert.False(t, result.Valid)
		assert.Equal(t, ResumeJourneyExpired, result.Reason)
	})

	t.Run("already marked expired", func(t *testing.T) {
		journey := activeJourney(now)
		journey.Status = models.JourneyExpired

		result := ClassifyResume(journey, now, proofTTL)
		assert.False(t, result.Valid)
		assert.Equal(t, ResumeJourneyExpired, result.Reason)
	})
}

func TestClassifyResumeClosedStatuses(t *testing.T) {
	now := time.Now()

	for _, status := range []string{models.JourneyCompleted, models.JourneyRejected} {
		journey := activeJourney(now)
		journey.Status = status

		result := ClassifyResume(journey, now, proofTTL)
		assert.False(t, result.Valid, status)
		assert.Equal(t, ResumeJourneyCompleted, result.Reason, status)
	}

	journey := activeJourney(now)
	journey.Status = models.JourneyAbandoned
	result := ClassifyResume(journey, now, proofTTL)
	assert.False(t, result.Valid)
	assert.Equal(t, ResumeJourneyAbandoned, result.Reason)
}

func TestClassifyResumeOTPProof(t *testing.T) {
	now := time.Now()

	t.Run("fresh proof past the OTP step", func(t *testing.T) {
		journey := activeJourney(now)
		journey.CurrentStep = models.StepIncome
		verified := now.Add(-5 * time.Minute)
		journey.OtpVerifiedAt = &verified

		result := ClassifyResume(journey, now, proofTTL)
		assert.True(t, result.Valid)
		assert.False(t, result.NeedsOTP)
	})

	t.Run("lapsed proof requires re-verification without losing progress", func(t *testing.T) {
		journey := activeJourney(now)
		journey.CurrentStep = models.StepIncome
		verified := now.Add(-45 * time.Minute)
		journey.OtpVerifiedAt = &verified

		result := ClassifyResume(journey, now, proofTTL)
		assert.True(t, result.Valid)
		assert.True(t, result.NeedsOTP)
		assert.Equal(t, models.StepIncome, result.Journey.CurrentStep, "progress is preserved")
	})

	t.Run("never verified past the OTP step", func(t *testing.T) {
		journey := activeJourney(now)
		journey.CurrentStep = models.StepDevice

		result := ClassifyResume(journey, now, proofTTL)
		assert.True(t, result.Valid)
		assert.True(t, result.NeedsOTP)
	})
}

func TestGateSatisfied(t *testing.T) {
	now := time.Now()
	stamp := now.Add(-time.Minute)

	t.Run("early steps are open", func(t *testing.T) {
		journey := activeJourney(now)
		for _, step := range []models.Step{models.StepCPF, models.StepRegistration, models.StepOTP} {
			assert.True(t, GateSatisfied(journey, step, now, proofTTL), step)
		}
	})

	t.Run("every gated step is locked on a bare journey", func(t *testing.T) {
		journey := activeJourney(now)
		for _, step := range []models.Step{
			models.StepDevice, models.StepIncome, models.StepOffer,
			models.StepGuard, models.StepContract, models.StepSuccess,
		} {
			assert.False(t, GateSatisfied(journey, step, now, proofTTL),
				"%s must not be reachable without its predecessor's stamp", step)
		}
	})

	t.Run("device requires a fresh otp proof", func(t *testing.T) {
		journey := activeJourney(now)
		verified := now.Add(-5 * time.Minute)
		journey.OtpVerifiedAt = &verified
		assert.True(t, GateSatisfied(journey, models.StepDevice, now, proofTTL))

		lapsed := now.Add(-proofTTL)
		journey.OtpVerifiedAt = &lapsed
		assert.False(t, GateSatisfied(journey, models.StepDevice, now, proofTTL))
	})

	t.Run("each stamp unlocks exactly its successor", func(t *testing.T) {
		journey := activeJourney(now)
		journey.DeviceEligible = true
		assert.True(t, GateSatisfied(journey, models.StepIncome, now, proofTTL))
		assert.False(t, GateSatisfied(journey, models.StepOffer, now, proofTTL))

		journey.IncomeCheckedAt = &stamp
		assert.True(t, GateSatisfied(journey, models.StepOffer, now, proofTTL))
		assert.False(t, GateSatisfied(journey, models.StepGuard, now, proofTTL))

		journey.OfferAcceptedAt = &stamp
		assert.True(t, GateSatisfied(journey, models.StepGuard, now, proofTTL))
		assert.False(t, GateSatisfied(journey, models.StepContract, now, proofTTL))

		journey.GuardVerifiedAt = &stamp
		assert.True(t, GateSatisfied(journey, models.StepContract, now, proofTTL))
		assert.False(t, GateSatisfied(journey, models.StepSuccess, now, proofTTL),
			"completion requires a contract id")

		contractID := "CTR-1700000000000"
		journey.ContractID = &contractID
		assert.True(t, GateSatisfied(journey, models.StepSuccess, now, proofTTL))
	})
}

func TestJourneyOtpValid(t *testing.T) {
	now := time.Now()
	journey := &models.Journey{}

	assert.False(t, journey.OtpValid(now, proofTTL), "no proof at all")

	fresh := now.Add(-10 * time.Minute)
	journey.OtpVerifiedAt = &fresh
	assert.True(t, journey.OtpValid(now, proofTTL))

	stale := now.Add(-proofTTL)
	journey.OtpVerifiedAt = &stale
	assert.False(t, journey.OtpValid(now, proofTTL), "window is exclusive at the boundary")
}
