package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatInternational(t *testing.T) {
	assert.Equal(t, "+5511987654321", FormatInternational("11987654321"))
	assert.Equal(t, "+5511987654321", FormatInternational("(11) 98765-4321"))
	assert.Equal(t, "+5511987654321", FormatInternational("5511987654321"))
	assert.Equal(t, "+5511987654321", FormatInternational("+55 11 98765-4321"))
}
