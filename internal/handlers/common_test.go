package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionalJSON(t *testing.T) {
	type payload struct {
		Model string `json:"model"`
	}

	t.Run("empty body leaves the target untouched", func(t *testing.T) {
		var p payload
		require.NoError(t, parseOptionalJSON(nil, &p))
		require.NoError(t, parseOptionalJSON([]byte{}, &p))
		assert.Empty(t, p.Model)
	})

	t.Run("well-formed body decodes", func(t *testing.T) {
		var p payload
		require.NoError(t, parseOptionalJSON([]byte(`{"model":"SM-A546E"}`), &p))
		assert.Equal(t, "SM-A546E", p.Model)
	})

	t.Run("malformed body is an error, not a silent default", func(t *testing.T) {
		var p payload
		assert.Error(t, parseOptionalJSON([]byte(`{"model":`), &p))
	})
}

func TestParseToken(t *testing.T) {
	_, err := parseToken("b3b1f8a0-6a0e-4f4c-9d2e-1f2a3b4c5d6e")
	assert.NoError(t, err)

	_, err = parseToken("not-a-token")
	assert.Error(t, err)
}
