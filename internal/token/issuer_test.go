package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_Mint(t *testing.T) {
	t.Parallel()

	c := testCodec(t)
	issuer := NewIssuer(c, IssuerConfig{
		Issuer:     "svc",
		AccessTTL:  time.Hour,
		RefreshTTL: 720 * time.Hour,
	})

	pair, expiresAt, err := issuer.Mint("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	access, err := c.Decode(pair.AccessToken, true)
	require.NoError(t, err)
	assert.Equal(t, KindAccess, access.Kind)
	assert.Equal(t, "user-1", access.Subject)
	assert.Equal(t, "svc", access.Issuer)
	assert.NotEmpty(t, access.ID)

	refresh, err := c.Decode(pair.RefreshToken, true)
	require.NoError(t, err)
	assert.Equal(t, KindRefresh, refresh.Kind)
	assert.Equal(t, "user-1", refresh.Subject)
	assert.Equal(t, refresh.ExpiresAt.Unix(), expiresAt.Unix())

	assert.NotEqual(t, access.ID, refresh.ID)
	assert.True(t, access.ExpiresAt.Before(refresh.ExpiresAt))
}

func TestNewIssuer_Defaults(t *testing.T) {
	t.Parallel()

	issuer := NewIssuer(testCodec(t), IssuerConfig{})

	assert.Equal(t, "default", issuer.cfg.Issuer)
	assert.Equal(t, time.Hour, issuer.cfg.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, issuer.cfg.RefreshTTL)
}
