package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStore_KV(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, ok, err := s.Get(ctx, "chat_u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "chat_u1", "[]"))
	v, ok, err := s.Get(ctx, "chat_u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", v)

	require.NoError(t, s.Delete(ctx, "chat_u1"))
	_, ok, err = s.Get(ctx, "chat_u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_TurnLock(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	tok, ok, err := s.AcquireTurn(ctx, "u1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, tok)

	_, ok, err = s.AcquireTurn(ctx, "u1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second turn must wait")

	_, ok, err = s.AcquireTurn(ctx, "u2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "locks are per user")

	require.NoError(t, s.ReleaseTurn(ctx, "u1", tok))
	_, ok, err = s.AcquireTurn(ctx, "u1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// an abandoned lock expires
	mr.FastForward(2 * time.Minute)
	_, ok, err = s.AcquireTurn(ctx, "u1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_ReleaseTurnKeepsNewerHolder(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	stale, ok, err := s.AcquireTurn(ctx, "u1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// the first turn overran its ttl and a second request took the lock
	mr.FastForward(2 * time.Minute)
	current, ok, err := s.AcquireTurn(ctx, "u1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEqual(t, stale, current)

	require.NoError(t, s.ReleaseTurn(ctx, "u1", stale))
	_, ok, err = s.AcquireTurn(ctx, "u1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "stale release must not free the current holder's lock")

	require.NoError(t, s.ReleaseTurn(ctx, "u1", current))
	_, ok, err = s.AcquireTurn(ctx, "u1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
