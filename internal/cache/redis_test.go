package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestRedisRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedis(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	var got payload
	found, err := c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.Set(ctx, "k", payload{Name: "Ayran", Count: 3}, time.Minute))
	found, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, payload{Name: "Ayran", Count: 3}, got)

	mr.FastForward(2 * time.Minute)
	found, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.False(t, found)
}

func TestRedisDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedis(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", payload{Name: "a"}, time.Minute))
	require.NoError(t, c.Set(ctx, "b", payload{Name: "b"}, time.Minute))
	require.NoError(t, c.Delete(ctx, "a", "b", "never-set"))
	require.False(t, mr.Exists("a"))
	require.False(t, mr.Exists("b"))
	require.NoError(t, c.Delete(ctx))
}

func TestNoopNeverHits(t *testing.T) {
	var c Cache = Noop{}
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", payload{Name: "x"}, time.Minute))
	var got payload
	found, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, c.Delete(ctx, "k"))
}
