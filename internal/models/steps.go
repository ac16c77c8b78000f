package models

// Step is a named stage in the fixed linear funnel sequence.
type Step string

const (
	StepCPF          Step = "cpf"
	StepRegistration Step = "registration"
	StepOTP          Step = "otp"
	StepDevice       Step = "device"
	StepIncome       Step = "income"
	StepOffer        Step = "offer"
	StepGuard        Step = "guard"
	StepContract     Step = "contract"
	StepSuccess      Step = "success"
)

// JourneySteps is the canonical order. Registration is a side branch of the
// CPF step (only new leads pass through it) and shares its position.
var JourneySteps = []Step{
	StepCPF,
	StepOTP,
	StepDevice,
	StepIncome,
	StepOffer,
	StepGuard,
	StepContract,
	StepSuccess,
}

// StepIndex returns the position of a step in the funnel, or -1 if unknown.
// Registration maps to the CPF position.
func StepIndex(step Step) int {
	if step == StepRegistration {
		step = StepCPF
	}
	for i, s := range JourneySteps {
		if s == step {
			return i
		}
	}
	return -1
}

// IsValidStep reports whether step names a known funnel stage.
func IsValidStep(step Step) bool {
	return StepIndex(step) != -1
}

// NextStep returns the immediate successor, or "" for the last step.
func NextStep(step Step) Step {
	idx := StepIndex(step)
	if idx == -1 || idx+1 >= len(JourneySteps) {
		return ""
	}
	return JourneySteps[idx+1]
}

// CanAccess reports whether a client positioned at currentStep may act on
// targetStep. Acting at or behind the current step is always allowed;
// skipping ahead never is.
func CanAccess(currentStep, targetStep Step) bool {
	ci := StepIndex(currentStep)
	ti := StepIndex(targetStep)
	if ci == -1 || ti == -1 {
		return false
	}
	return ci >= ti
}

// Progress returns funnel completion as a 0-100 percentage.
func Progress(step Step) int {
	idx := StepIndex(step)
	if idx <= 0 {
		return 0
	}
	return idx * 100 / (len(JourneySteps) - 1)
}
