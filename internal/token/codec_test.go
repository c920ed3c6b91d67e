package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func testCodec(t *testing.T) *Codec {
	t.Helper()

	c, err := NewCodec(testSecret, "HS256")
	require.NoError(t, err)

	return c
}

func TestNewCodec_AlgorithmAllowList(t *testing.T) {
	t.Parallel()

	for _, alg := range []string{"HS256", "HS384", "HS512"} {
		_, err := NewCodec(testSecret, alg)
		require.NoError(t, err, alg)
	}

	for _, alg := range []string{"none", "RS256", "ES256", ""} {
		_, err := NewCodec(testSecret, alg)
		require.ErrorIs(t, err, ErrInvalidAlgorithm, alg)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	c := testCodec(t)
	now := time.Now().Truncate(time.Second)

	tok, err := NewAccess(Claims{
		Subject:   "user-1",
		Issuer:    "svc",
		ID:        "jti-1",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
		Extra:     map[string]any{"role": "admin"},
	})
	require.NoError(t, err)

	raw, err := c.Encode(tok)
	require.NoError(t, err)

	got, err := c.Decode(raw, true)
	require.NoError(t, err)

	assert.Equal(t, KindAccess, got.Kind)
	assert.Equal(t, "user-1", got.Subject)
	assert.Equal(t, "svc", got.Issuer)
	assert.Equal(t, "jti-1", got.ID)
	assert.Equal(t, now.Unix(), got.IssuedAt.Unix())
	assert.Equal(t, now.Add(time.Hour).Unix(), got.ExpiresAt.Unix())
	assert.Equal(t, "admin", got.Extra["role"])
}

func TestCodec_Decode_WrongSecret(t *testing.T) {
	t.Parallel()

	c := testCodec(t)

	tok, err := NewAccess(Claims{Subject: "user-1", ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	raw, err := c.Encode(tok)
	require.NoError(t, err)

	other, err := NewCodec("another-secret", "HS256")
	require.NoError(t, err)

	_, err = other.Decode(raw, true)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_Decode_ForeignAlgorithm(t *testing.T) {
	t.Parallel()

	c := testCodec(t)

	// Signed with the right secret but an algorithm the codec was not
	// configured with; must be rejected, never silently accepted.
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub":  "user-1",
		"type": "access",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = c.Decode(raw, true)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_Decode_Expired(t *testing.T) {
	t.Parallel()

	c := testCodec(t)

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "user-1",
		"type": "refresh",
		"iat":  time.Now().Add(-2 * time.Hour).Unix(),
		"exp":  time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = c.Decode(raw, true)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Without verification the expired token still decodes.
	got, err := c.Decode(raw, false)
	require.NoError(t, err)
	assert.Equal(t, KindRefresh, got.Kind)
	assert.Equal(t, "user-1", got.Subject)
}

func TestCodec_Decode_UnknownType(t *testing.T) {
	t.Parallel()

	c := testCodec(t)

	for _, typ := range []any{"session", 42, nil} {
		claims := jwt.MapClaims{
			"sub": "user-1",
			"exp": time.Now().Add(time.Hour).Unix(),
		}
		if typ != nil {
			claims["type"] = typ
		}

		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = c.Decode(raw, true)
		require.ErrorIs(t, err, ErrUnknownTokenType)
	}
}
