package jwtinfra

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, secret string) *Provider {
	t.Helper()
	p, err := NewProvider(secret, time.Hour)
	require.NoError(t, err)
	return p
}

func TestNewProvider_RejectsEmptySecret(t *testing.T) {
	_, err := NewProvider("", time.Hour)
	assert.Error(t, err)
	_, err = NewProvider("s", 0)
	assert.Error(t, err)
}

func TestSignVerify_RoundTrip(t *testing.T) {
	p := newTestProvider(t, "access-secret")

	signed, err := p.Sign("u1", "sess1", "user")
	require.NoError(t, err)

	claims, err := p.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "sess1", claims.SessionID)
	assert.Equal(t, "user", claims.Role)
}

func TestVerify_WrongSecret(t *testing.T) {
	access := newTestProvider(t, "access-secret")
	refresh := newTestProvider(t, "refresh-secret")

	signed, err := refresh.Sign("u1", "sess1", "")
	require.NoError(t, err)

	_, err = access.Verify(signed)
	assert.Error(t, err)
}

func TestVerify_Expired(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	p := newTestProvider(t, "s").WithClock(func() time.Time { return past })

	signed, err := p.Sign("u1", "sess1", "")
	require.NoError(t, err)

	_, err = newTestProvider(t, "s").Verify(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerify_RejectsNoneAlg(t *testing.T) {
	claims := &Claims{
		SessionID: "sess1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestProvider(t, "s").Verify(signed)
	assert.Error(t, err)
}

func TestVerify_MissingSession(t *testing.T) {
	p := newTestProvider(t, "s")
	signed, err := p.Sign("u1", "", "")
	require.NoError(t, err)
	_, err = p.Verify(signed)
	assert.ErrorContains(t, err, "missing subject or session")
}
