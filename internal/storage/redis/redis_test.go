package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDenylist(t *testing.T) (*Denylist, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	d, err := New(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(d.Close)

	return d, mr
}

func TestDenylist_DenyAndCheck(t *testing.T) {
	d, _ := testDenylist(t)
	ctx := context.Background()

	denied, err := d.IsDenied(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, denied)

	require.NoError(t, d.Deny(ctx, "jti-1", time.Now().Add(time.Hour)))

	denied, err = d.IsDenied(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, denied)
}

func TestDenylist_ExpiredTokenIsNoOp(t *testing.T) {
	d, _ := testDenylist(t)
	ctx := context.Background()

	require.NoError(t, d.Deny(ctx, "jti-past", time.Now().Add(-time.Minute)))

	denied, err := d.IsDenied(ctx, "jti-past")
	require.NoError(t, err)
	assert.False(t, denied)
}

func TestDenylist_EntryExpiresWithToken(t *testing.T) {
	d, mr := testDenylist(t)
	ctx := context.Background()

	require.NoError(t, d.Deny(ctx, "jti-2", time.Now().Add(time.Minute)))

	mr.FastForward(2 * time.Minute)

	denied, err := d.IsDenied(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, denied)
}
