package services

import (
	"testing"
	"time"

	"github.com/cashly/journey-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "code %q must be numeric", code)
		}
		assert.NotEqual(t, '0', rune(code[0]), "codes never have a leading zero")
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1, "codes must not be constant")
}

func TestHashCode(t *testing.T) {
	hash := HashCode("123456")
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashCode("123456"), "hashing is deterministic")
	assert.NotEqual(t, hash, HashCode("123457"))
	// Known SHA-256 of "123456"
	assert.Equal(t, "8d969eef6ecad3c29a3a629280e686cf0c3f5d5a86aff3ca12020c923adc6c92", hash)
}

func TestEvaluateCode(t *testing.T) {
	now := time.Now()
	correctHash := HashCode("123456")
	wrongHash := HashCode("000000")

	active := func() *models.OTPCode {
		return &models.OTPCode{
			CodeHash:  correctHash,
			ExpiresAt: now.Add(10 * time.Minute),
		}
	}

	tests := []struct {
		name      string
		record    *models.OTPCode
		submitted string
		want      VerifyOutcome
	}{
		{"correct code", active(), correctHash, VerifySuccess},
		{"wrong code", active(), wrongHash, VerifyInvalidCode},
		{"nil record", nil, correctHash, VerifyNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluateCode(tt.record, tt.submitted, now, 3))
		})
	}

	t.Run("expired code", func(t *testing.T) {
		record := active()
		record.ExpiresAt = now.Add(-time.Minute)
		assert.Equal(t, VerifyNotFound, evaluateCode(record, correctHash, now, 3))
	})

	t.Run("consumed code", func(t *testing.T) {
		record := active()
		record.Used = true
		assert.Equal(t, VerifyNotFound, evaluateCode(record, correctHash, now, 3))
	})

	t.Run("attempt cap beats correctness", func(t *testing.T) {
		record := active()
		record.Attempts = 3
		assert.Equal(t, VerifyTooManyAttempts, evaluateCode(record, correctHash, now, 3))
		assert.Equal(t, VerifyTooManyAttempts, evaluateCode(record, wrongHash, now, 3))
	})

	t.Run("last allowed attempt still verifies", func(t *testing.T) {
		record := active()
		record.Attempts = 2
		assert.Equal(t, VerifySuccess, evaluateCode(record, correctHash, now, 3))
	})
}

func TestEvaluateSend(t *testing.T) {
	now := time.Now()

	fresh := func() *models.OTPCode {
		return &models.OTPCode{
			CodeHash:  HashCode("123456"),
			ExpiresAt: now.Add(10 * time.Minute),
		}
	}

	tests := []struct {
		name        string
		active      *models.OTPCode
		recentSends int
		want        SendDecision
	}{
		{"no prior code", nil, 0, SendIssue},
		{"active code within window", fresh(), 1, SendAlreadySent},
		{"rolling limit reached", nil, 3, SendRateLimited},
		{"active code wins over the limit", fresh(), 3, SendAlreadySent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluateSend(tt.active, tt.recentSends, now, 3, 3))
		})
	}

	t.Run("expired code does not block reissue", func(t *testing.T) {
		record := fresh()
		record.ExpiresAt = now.Add(-time.Minute)
		assert.Equal(t, SendIssue, evaluateSend(record, 1, now, 3, 3))
	})

	t.Run("attempt-capped code does not block reissue", func(t *testing.T) {
		record := fresh()
		record.Attempts = 3
		assert.Equal(t, SendIssue, evaluateSend(record, 1, now, 3, 3),
			"a locked-out code must not answer alreadySent; the user was told to request a new one")
	})

	t.Run("attempt-capped code still counts against the rolling limit", func(t *testing.T) {
		record := fresh()
		record.Attempts = 3
		assert.Equal(t, SendRateLimited, evaluateSend(record, 3, now, 3, 3))
	})
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.False(t, isUniqueViolation(assert.AnError))
}
