/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, opts RedisStoreOpts) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStoreWithOpts(client, opts), mr
}

func TestRedisStore_Increment(t *testing.T) {
	store, mr := newTestRedisStore(t, RedisStoreOpts{})
	ctx := context.Background()
	now := time.Now()

	w, err := store.Increment(ctx, "user-1", "geocode", time.Minute, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, w.Count)
	require.Equal(t, "user-1", w.Identity)
	require.Equal(t, "geocode", w.Action)
	require.WithinDuration(t, now, w.WindowStart, 10*time.Millisecond)

	w, err = store.Increment(ctx, "user-1", "geocode", time.Minute, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, w.Count)

	require.True(t, mr.Exists(DefaultRedisKeyPrefix+"user-1|geocode"))
	require.Equal(t, time.Minute, mr.TTL(DefaultRedisKeyPrefix+"user-1|geocode"))

	mr.FastForward(time.Minute)
	w, err = store.Increment(ctx, "user-1", "geocode", time.Minute, now.Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, w.Count)

	require.NoError(t, store.Ping(ctx))
}

func TestRedisStore_SharedBetweenInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newStore := func() *RedisStore {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedisStoreWithOpts(client, RedisStoreOpts{KeyPrefix: "test:"})
	}
	clock := newFakeClock()
	first := NewControllerWithOpts(newStore(), ControllerOpts{Now: clock.Now})
	second := NewControllerWithOpts(newStore(), ControllerOpts{Now: clock.Now})
	ctx := context.Background()

	decision, err := first.Check(ctx, "user", "geocode", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	decision, err = second.Check(ctx, "user", "geocode", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = first.Check(ctx, "user", "geocode", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, 60, decision.RetryAfterSeconds)
	require.True(t, mr.Exists("test:user|geocode"))

	mr.FastForward(time.Minute)
	decision, err = second.Check(ctx, "user", "geocode", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newTestRedisStore(t, RedisStoreOpts{})
	mr.Close()

	_, err := store.Increment(context.Background(), "user", "geocode", time.Minute, time.Now())
	require.Error(t, err)
	require.Error(t, store.Ping(context.Background()))

	ctrl := NewController(store)
	decision, err := ctrl.Check(context.Background(), "user", "geocode", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}
