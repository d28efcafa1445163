package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (IRedis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewWithClient(client), mr
}

func TestNextFrameIndex(t *testing.T) {
	r, mr := newTestClient(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := r.NextFrameIndex(ctx, "session-a")
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	other, err := r.NextFrameIndex(ctx, "session-b")
	require.NoError(t, err)
	require.Equal(t, 1, other)

	require.Equal(t, 24*time.Hour, mr.TTL("posture:frames:session-a"))
}

func TestCurrentFrameIndexAndReset(t *testing.T) {
	r, mr := newTestClient(t)
	ctx := context.Background()

	current, err := r.CurrentFrameIndex(ctx, "s")
	require.NoError(t, err)
	require.Zero(t, current)

	_, err = r.NextFrameIndex(ctx, "s")
	require.NoError(t, err)
	current, err = r.CurrentFrameIndex(ctx, "s")
	require.NoError(t, err)
	require.Equal(t, 1, current)

	require.NoError(t, r.ResetSession(ctx, "s"))
	require.False(t, mr.Exists("posture:frames:s"))
	require.NoError(t, r.ResetSession(ctx, "s"))
}

func TestFrameCounterExpires(t *testing.T) {
	r, mr := newTestClient(t)
	ctx := context.Background()

	_, err := r.NextFrameIndex(ctx, "s")
	require.NoError(t, err)

	mr.FastForward(25 * time.Hour)

	next, err := r.NextFrameIndex(ctx, "s")
	require.NoError(t, err)
	require.Equal(t, 1, next)
}
