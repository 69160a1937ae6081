/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"context"
	"sync"
	"time"

	"github.com/acronis/go-geogate/lrucache"
)

// DefaultMemoryStoreMaxKeys is the default number of windows kept by MemoryStore.
const DefaultMemoryStoreMaxKeys = 100000

// MemoryStoreOpts represents options for MemoryStore.
type MemoryStoreOpts struct {
	// MaxKeys bounds the number of tracked (identity, action) pairs.
	// When exceeded, the least recently used window is dropped.
	MaxKeys int

	MetricsCollector lrucache.MetricsCollector
	Now              func() time.Time
}

// MemoryStore keeps windows in process memory.
// Idle windows expire together with their window, so memory is not held by callers that went away.
type MemoryStore struct {
	mu      sync.Mutex
	windows *lrucache.LRUCache[string, *Window]
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new MemoryStore with default options.
func NewMemoryStore() (*MemoryStore, error) {
	return NewMemoryStoreWithOpts(MemoryStoreOpts{})
}

// NewMemoryStoreWithOpts creates a new MemoryStore with the given options.
func NewMemoryStoreWithOpts(opts MemoryStoreOpts) (*MemoryStore, error) {
	if opts.MaxKeys == 0 {
		opts.MaxKeys = DefaultMemoryStoreMaxKeys
	}
	windows, err := lrucache.NewWithOpts[string, *Window](opts.MaxKeys, opts.MetricsCollector, lrucache.Options{Now: opts.Now})
	if err != nil {
		return nil, err
	}
	return &MemoryStore{windows: windows}, nil
}

// Increment implements Store.
func (s *MemoryStore) Increment(
	_ context.Context, identity, action string, windowSize time.Duration, now time.Time,
) (Window, error) {
	key := makeKey(identity, action)

	s.mu.Lock()
	defer s.mu.Unlock()

	// A window ends once elapsed time reaches its size.
	w, ok := s.windows.Get(key)
	if !ok || now.Sub(w.WindowStart) >= windowSize {
		w = &Window{Identity: identity, Action: action, WindowStart: now}
		s.windows.AddWithTTL(key, w, windowSize)
	}
	w.Count++
	return *w, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// RunPeriodicCleanup drops expired windows every cleanupInterval until ctx is done.
func (s *MemoryStore) RunPeriodicCleanup(ctx context.Context, cleanupInterval time.Duration) {
	s.windows.RunPeriodicCleanup(ctx, cleanupInterval)
}

// Len returns the number of tracked windows.
func (s *MemoryStore) Len() int {
	return s.windows.Len()
}

func makeKey(identity, action string) string {
	return identity + "|" + action
}
