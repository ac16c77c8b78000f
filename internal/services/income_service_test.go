package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeScore(t *testing.T) {
	tests := []struct {
		name  string
		input OutcomeInput
		want  int
	}{
		{"inactive account scores zero", OutcomeInput{Active: false, MonthlyTrips: 100, MonthlyRevenue: 5000, Rating: 5}, 0},
		{"active baseline", OutcomeInput{Active: true}, 40},
		{"mid volume", OutcomeInput{Active: true, MonthlyTrips: 30, MonthlyRevenue: 1500}, 70},
		{"high volume high revenue", OutcomeInput{Active: true, MonthlyTrips: 80, MonthlyRevenue: 3000}, 90},
		{"top rating caps at 100", OutcomeInput{Active: true, MonthlyTrips: 80, MonthlyRevenue: 3000, Rating: 4.9}, 100},
		{"rating below threshold", OutcomeInput{Active: true, MonthlyTrips: 80, MonthlyRevenue: 3000, Rating: 4.4}, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, computeScore(tt.input))
		})
	}
}

func TestIncomePlatforms(t *testing.T) {
	assert.True(t, incomePlatforms["uber"])
	assert.True(t, incomePlatforms["99"])
	assert.True(t, incomePlatforms["ifood"])
	assert.False(t, incomePlatforms["rappi"])
}
