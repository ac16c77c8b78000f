package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCryptoServiceRoundTrip(t *testing.T) {
	svc := NewCryptoService("test-secret")

	encrypted, err := svc.Encrypt("11987654321")
	require.NoError(t, err)
	assert.NotEqual(t, "11987654321", encrypted)

	decrypted, err := svc.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "11987654321", decrypted)
}

func TestCryptoServiceNonDeterministic(t *testing.T) {
	svc := NewCryptoService("test-secret")

	first, err := svc.Encrypt("same input")
	require.NoError(t, err)
	second, err := svc.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "GCM nonce must differ per encryption")
}

func TestCryptoServiceWrongKey(t *testing.T) {
	encrypted, err := NewCryptoService("key-one").Encrypt("secret value")
	require.NoError(t, err)

	_, err = NewCryptoService("key-two").Decrypt(encrypted)
	assert.Error(t, err)
}

func TestCryptoServicePtr(t *testing.T) {
	svc := NewCryptoService("test-secret")

	out, err := svc.EncryptPtr(nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	value := "user@example.com"
	encrypted, err := svc.EncryptPtr(&value)
	require.NoError(t, err)
	require.NotNil(t, encrypted)

	decrypted, err := svc.DecryptPtr(encrypted)
	require.NoError(t, err)
	require.NotNil(t, decrypted)
	assert.Equal(t, value, *decrypted)
}
