package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepIndex(t *testing.T) {
	assert.Equal(t, 0, StepIndex(StepCPF))
	assert.Equal(t, 0, StepIndex(StepRegistration), "registration shares the CPF position")
	assert.Equal(t, 1, StepIndex(StepOTP))
	assert.Equal(t, 7, StepIndex(StepSuccess))
	assert.Equal(t, -1, StepIndex(Step("bogus")))
}

func TestNextStep(t *testing.T) {
	assert.Equal(t, StepOTP, NextStep(StepCPF))
	assert.Equal(t, StepDevice, NextStep(StepOTP))
	assert.Equal(t, StepIncome, NextStep(StepDevice))
	assert.Equal(t, StepOffer, NextStep(StepIncome))
	assert.Equal(t, StepGuard, NextStep(StepOffer))
	assert.Equal(t, StepContract, NextStep(StepGuard))
	assert.Equal(t, StepSuccess, NextStep(StepContract))
	assert.Equal(t, Step(""), NextStep(StepSuccess))
	assert.Equal(t, Step(""), NextStep(Step("bogus")))
}

func TestCanAccess(t *testing.T) {
	// At or behind the current position is allowed.
	assert.True(t, CanAccess(StepDevice, StepDevice))
	assert.True(t, CanAccess(StepDevice, StepOTP))
	assert.True(t, CanAccess(StepSuccess, StepCPF))

	// Skipping ahead never is.
	assert.False(t, CanAccess(StepOTP, StepDevice))
	assert.False(t, CanAccess(StepCPF, StepContract))

	assert.False(t, CanAccess(Step("bogus"), StepOTP))
	assert.False(t, CanAccess(StepOTP, Step("bogus")))
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0, Progress(StepCPF))
	assert.Equal(t, 100, Progress(StepSuccess))
	assert.Equal(t, 0, Progress(Step("bogus")))

	// Strictly increasing along the funnel.
	prev := -1
	for _, step := range JourneySteps {
		p := Progress(step)
		assert.Greater(t, p, prev, "progress must increase at %s", step)
		prev = p
	}
}

func TestIsValidStep(t *testing.T) {
	for _, step := range JourneySteps {
		assert.True(t, IsValidStep(step))
	}
	assert.True(t, IsValidStep(StepRegistration))
	assert.False(t, IsValidStep(Step("unknown")))
	assert.False(t, IsValidStep(Step("")))
}
