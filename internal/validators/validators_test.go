package validators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateCPF(t *testing.T) {
	tests := []struct {
		name  string
		cpf   string
		valid bool
	}{
		{"valid raw", "12345678909", true},
		{"valid formatted", "123.456.789-09", true},
		{"wrong first check digit", "12345678919", false},
		{"wrong second check digit", "12345678908", false},
		{"repeated digits", "11111111111", false},
		{"too short", "1234567890", false},
		{"too long", "123456789090", false},
		{"empty", "", false},
		{"letters", "abcdefghijk", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateCPF(tt.cpf))
		})
	}
}

func TestFormatCPF(t *testing.T) {
	assert.Equal(t, "123.456.789-09", FormatCPF("12345678909"))
	assert.Equal(t, "123.456.789-09", FormatCPF("123.456.789-09"))
	assert.Equal(t, "123.4", FormatCPF("1234"))
	assert.Equal(t, "", FormatCPF(""))
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		valid bool
	}{
		{"mobile with DDD 11", "11987654321", true},
		{"mobile formatted", "(21) 98765-4321", true},
		{"landline", "1133334444", true},
		{"mobile without leading 9", "11887654321", false},
		{"invalid DDD", "10987654321", false},
		{"landline leading 9", "1193334444", false},
		{"too short", "119876543", false},
		{"too long", "119876543210", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidatePhone(tt.phone))
		})
	}
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "*****4321", MaskPhone("11987654321"))
	assert.Equal(t, "****", MaskPhone("12"))
}

func TestValidateIMEI(t *testing.T) {
	tests := []struct {
		name  string
		imei  string
		valid bool
	}{
		{"valid", "490154203237518", true},
		{"valid with separators", "49-015420-323751-8", true},
		{"bad check digit", "490154203237519", false},
		{"too short", "49015420323751", false},
		{"letters", "49015420323751A", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateIMEI(tt.imei))
		})
	}
}

func TestValidateCEP(t *testing.T) {
	assert.True(t, ValidateCEP("01310-100"))
	assert.True(t, ValidateCEP("01310100"))
	assert.False(t, ValidateCEP("0131010"))
	assert.False(t, ValidateCEP(""))
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("user@example.com"))
	assert.True(t, ValidateEmail("a.b+c@sub.domain.br"))
	assert.False(t, ValidateEmail("user@"))
	assert.False(t, ValidateEmail("user example.com"))
	assert.False(t, ValidateEmail(""))
}

func TestParseBirthDate(t *testing.T) {
	parsed, ok := ParseBirthDate("15/03/1990")
	assert.True(t, ok)
	assert.Equal(t, 1990, parsed.Year())
	assert.Equal(t, time.March, parsed.Month())
	assert.Equal(t, 15, parsed.Day())

	_, ok = ParseBirthDate("1990-03-15")
	assert.False(t, ok)

	_, ok = ParseBirthDate("31/02/1990")
	assert.False(t, ok)

	_, ok = ParseBirthDate("01/01/1850")
	assert.False(t, ok)

	future := time.Now().AddDate(1, 0, 0).Format("02/01/2006")
	_, ok = ParseBirthDate(future)
	assert.False(t, ok)
}

func TestIsAdult(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	assert.True(t, IsAdult(time.Date(2008, 6, 15, 0, 0, 0, 0, time.UTC), now), "18th birthday today")
	assert.False(t, IsAdult(time.Date(2008, 6, 16, 0, 0, 0, 0, time.UTC), now), "18th birthday tomorrow")
	assert.True(t, IsAdult(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), now))
	assert.False(t, IsAdult(time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC), now))
}

func TestOnlyDigits(t *testing.T) {
	assert.Equal(t, "12345678909", OnlyDigits("123.456.789-09"))
	assert.Equal(t, "11987654321", OnlyDigits("(11) 98765-4321"))
	assert.Equal(t, "", OnlyDigits("abc"))
}
