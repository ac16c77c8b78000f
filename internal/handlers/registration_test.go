package handlers

import (
	"testing"

	"github.com/cashly/journey-api/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestClassifyCPFForRegistration(t *testing.T) {
	tests := []struct {
		name  string
		check *services.CPFCheckResult
		want  cpfGate
	}{
		{"unknown cpf registers normally", &services.CPFCheckResult{}, cpfGateOpen},
		{"existing cpf conflicts", &services.CPFCheckResult{Exists: true, LeadID: 7}, cpfGateRegistered},
		{
			"blocked cpf gets the generic refusal, not the registered answer",
			&services.CPFCheckResult{Exists: true, LeadID: 7, Blacklisted: true},
			cpfGateRefused,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyCPFForRegistration(tt.check))
		})
	}
}
