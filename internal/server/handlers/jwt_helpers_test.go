package handlers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceToken_RoundTrip(t *testing.T) {
	cfg := JWTConfig{Secret: []byte("test-secret"), TokenTTL: time.Hour}
	assert.True(t, cfg.Enabled())

	token, expiresAt, err := GenerateDeviceToken(cfg, "dev-a")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := ValidateDeviceToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "dev-a", claims.DeviceID)
	assert.Equal(t, "dev-a", claims.Subject)
	assert.Equal(t, "opsync", claims.Issuer)
}

func TestDeviceToken_Rejected(t *testing.T) {
	cfg := JWTConfig{Secret: []byte("test-secret"), TokenTTL: time.Hour}

	_, _, err := GenerateDeviceToken(cfg, "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, _, err := GenerateDeviceToken(JWTConfig{Secret: cfg.Secret, TokenTTL: -time.Minute}, "dev-a")
	require.NoError(t, err)

	foreign, _, err := GenerateDeviceToken(JWTConfig{Secret: []byte("other-secret"), TokenTTL: time.Hour}, "dev-a")
	require.NoError(t, err)

	// Подпись верна, но subject не совпадает с device_id
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, DeviceClaims{
		DeviceID: "dev-a",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "dev-b",
			Issuer:  tokenIssuer,
		},
	})
	forgedToken, err := forged.SignedString(cfg.Secret)
	require.NoError(t, err)

	// Алгоритм none не принимается
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, DeviceClaims{DeviceID: "dev-a"})
	noneToken, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":         "not-a-token",
		"expired":         expired,
		"wrong secret":    foreign,
		"subject differs": forgedToken,
		"none algorithm":  noneToken,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateDeviceToken(cfg, token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	assert.False(t, JWTConfig{}.Enabled())
}
