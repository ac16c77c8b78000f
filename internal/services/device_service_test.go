package services

import (
	"testing"

	"github.com/cashly/journey-api/internal/models"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func allowlist() []models.EligibleDevice {
	return []models.EligibleDevice{
		{Brand: "Samsung", ModelPattern: `SM-A5\d{2}[A-Z]?`, ApprovedAmount: 1800, Description: strPtr("Galaxy A5x"), Active: true},
		{Brand: "Samsung", ModelPattern: `SM-S9\d{2}`, ApprovedAmount: 3000, Active: true},
		{Brand: "Motorola", ModelPattern: `moto g\d{2}`, ApprovedAmount: 1500, Active: true},
		{Brand: "Xiaomi", ModelPattern: `Redmi Note \d+`, ApprovedAmount: 1500, Active: false},
	}
}

func TestMatchEligibility(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		eligible bool
		amount   float64
	}{
		{"exact pattern match", "SM-A546E", true, 1800},
		{"case-insensitive match", "sm-a546e", true, 1800},
		{"second row match", "SM-S918", true, 3000},
		{"motorola lowercase", "moto g84", true, 1500},
		{"inactive row ignored", "Redmi Note 12", false, 0},
		{"no match", "iPhone", false, 0},
		{"empty model", "", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := MatchEligibility(allowlist(), tt.model)
			assert.Equal(t, tt.eligible, match.Eligible)
			if tt.eligible {
				assert.Equal(t, tt.amount, match.ApprovedAmount)
			}
		})
	}
}

func TestMatchEligibilityFirstMatchWins(t *testing.T) {
	devices := []models.EligibleDevice{
		{Brand: "Samsung", ModelPattern: `SM-A\d+`, ApprovedAmount: 1000, Active: true},
		{Brand: "Samsung", ModelPattern: `SM-A546E`, ApprovedAmount: 2500, Active: true},
	}
	match := MatchEligibility(devices, "SM-A546E")
	assert.True(t, match.Eligible)
	assert.Equal(t, 1000.0, match.ApprovedAmount, "first matching row wins")
}

func TestMatchEligibilitySkipsMalformedPattern(t *testing.T) {
	devices := []models.EligibleDevice{
		{Brand: "Broken", ModelPattern: `SM-A(`, ApprovedAmount: 9999, Active: true},
		{Brand: "Samsung", ModelPattern: `SM-A546E`, ApprovedAmount: 1800, Active: true},
	}
	match := MatchEligibility(devices, "SM-A546E")
	assert.True(t, match.Eligible, "malformed pattern must not break the scan")
	assert.Equal(t, 1800.0, match.ApprovedAmount)
}

func TestMatchEligibilityDisplayName(t *testing.T) {
	match := MatchEligibility(allowlist(), "SM-A546E")
	assert.Equal(t, "Galaxy A5x", match.DisplayName)

	match = MatchEligibility(allowlist(), "SM-S918")
	assert.Equal(t, "", match.DisplayName)
}
