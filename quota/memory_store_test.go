/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Increment(t *testing.T) {
	clock := newFakeClock()
	store, err := NewMemoryStoreWithOpts(MemoryStoreOpts{MaxKeys: 2, Now: clock.Now})
	require.NoError(t, err)
	ctx := context.Background()

	start := clock.Now()
	w, err := store.Increment(ctx, "a", "geocode", time.Minute, clock.Now())
	require.NoError(t, err)
	require.Equal(t, Window{Identity: "a", Action: "geocode", Count: 1, WindowStart: start}, w)

	clock.Advance(30 * time.Second)
	w, err = store.Increment(ctx, "a", "geocode", time.Minute, clock.Now())
	require.NoError(t, err)
	require.EqualValues(t, 2, w.Count)
	require.Equal(t, start, w.WindowStart)

	// The window is over as soon as its full size has elapsed.
	clock.Advance(30 * time.Second)
	w, err = store.Increment(ctx, "a", "geocode", time.Minute, clock.Now())
	require.NoError(t, err)
	require.EqualValues(t, 1, w.Count)
	require.Equal(t, clock.Now(), w.WindowStart)

	t.Run("least recently used window is dropped", func(t *testing.T) {
		_, err = store.Increment(ctx, "b", "geocode", time.Minute, clock.Now())
		require.NoError(t, err)
		_, err = store.Increment(ctx, "c", "geocode", time.Minute, clock.Now())
		require.NoError(t, err)
		require.Equal(t, 2, store.Len())

		w, err = store.Increment(ctx, "a", "geocode", time.Minute, clock.Now())
		require.NoError(t, err)
		require.EqualValues(t, 1, w.Count)
	})

	require.NoError(t, store.Ping(ctx))
}

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)

	const goroutines = 20
	const perGoroutine = 50
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				_, incErr := store.Increment(context.Background(), "user", "geocode", time.Hour, time.Now())
				require.NoError(t, incErr)
			}
		}()
	}
	wg.Wait()

	w, err := store.Increment(context.Background(), "user", "geocode", time.Hour, time.Now())
	require.NoError(t, err)
	require.EqualValues(t, goroutines*perGoroutine+1, w.Count)
}
