package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRefresh_ExpiryInvariant(t *testing.T) {
	t.Parallel()

	_, err := NewRefresh(Claims{
		Subject:   "user-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	require.ErrorIs(t, err, ErrInvalidToken)

	tok, err := NewRefresh(Claims{
		Subject:   "user-1",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, KindRefresh, tok.Kind)
	assert.Equal(t, "default", tok.Issuer)
	assert.False(t, tok.IssuedAt.IsZero())
}

func TestNewAccess_MissingSubject(t *testing.T) {
	t.Parallel()

	_, err := NewAccess(Claims{ExpiresAt: time.Now().Add(time.Hour)})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessToken_CopiesExtraClaims(t *testing.T) {
	t.Parallel()

	now := time.Now()

	refresh, err := NewRefresh(Claims{
		Subject:   "user-1",
		Issuer:    "svc",
		ID:        "refresh-jti",
		IssuedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
		Extra:     map[string]any{"role": "admin", "exp": "bogus", "type": "bogus"},
	})
	require.NoError(t, err)

	access, err := refresh.AccessToken(now, time.Hour, "access-jti")
	require.NoError(t, err)

	assert.Equal(t, KindAccess, access.Kind)
	assert.Equal(t, "user-1", access.Subject)
	assert.Equal(t, "svc", access.Issuer)
	assert.Equal(t, "access-jti", access.ID)
	assert.Equal(t, now.Add(time.Hour), access.ExpiresAt)
	assert.Equal(t, "admin", access.Extra["role"])

	// Mutating the copy must not touch the refresh token's claims.
	access.Extra["role"] = "user"
	assert.Equal(t, "admin", refresh.Extra["role"])
}

func TestAccessToken_OnlyFromRefresh(t *testing.T) {
	t.Parallel()

	access, err := NewAccess(Claims{
		Subject:   "user-1",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = access.AccessToken(time.Now(), time.Hour, "")
	require.ErrorIs(t, err, ErrInvalidToken)
}
