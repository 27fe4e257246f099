package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c := New(s.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

func TestClient_SetGetDelete(t *testing.T) {
	c, s := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	s.FastForward(2 * time.Minute)
	got, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))
	got, _ = c.Get(ctx, "k")
	assert.Nil(t, got)
}

func TestClient_SetNX(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "cooldown", []byte("1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "cooldown", []byte("1"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_FailsSafeWhenRedisIsDown(t *testing.T) {
	c, s := newTestClient(t)
	ctx := context.Background()
	s.Close()

	got, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	ok, err := c.SetNX(ctx, "k", []byte("v"), time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Error(t, c.Ping(ctx))
}

func TestClient_NilIsEmptyCache(t *testing.T) {
	var c *Client
	ctx := context.Background()

	got, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.NoError(t, c.Delete(ctx, "k"))
	assert.NoError(t, c.Close())
}
