package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z-wentao/voicedub/pkg/models"
	"github.com/z-wentao/voicedub/pkg/storage"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(window time.Duration) (*Cache, *storage.MemoryStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := storage.NewMemoryStore()
	return New(store, window, WithClock(clock.Now)), store, clock
}

func TestCacheRoundTripWithinWindow(t *testing.T) {
	ctx := context.Background()
	c, _, clock := newTestCache(24 * time.Hour)

	c.Put(ctx, "F", &models.CacheEntry{Translation: "[00:01] Hola", VideoURL: "data:video/mp4;base64,AQID"})
	clock.Advance(23*time.Hour + 59*time.Minute)

	got, ok := c.Get(ctx, "F")
	require.True(t, ok)
	assert.Equal(t, "[00:01] Hola", got.Translation)
	assert.Equal(t, "data:video/mp4;base64,AQID", got.VideoURL)
}

func TestCacheExpiryEvictsLazily(t *testing.T) {
	ctx := context.Background()
	c, store, clock := newTestCache(24 * time.Hour)

	c.Put(ctx, "F", &models.CacheEntry{Translation: "t", VideoURL: "v"})
	assert.Equal(t, 1, store.Len())

	clock.Advance(24*time.Hour + time.Millisecond)

	_, ok := c.Get(ctx, "F")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestCachePutOverwrites(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(time.Hour)

	c.Put(ctx, "F", &models.CacheEntry{Translation: "first"})
	c.Put(ctx, "F", &models.CacheEntry{Translation: "second"})

	got, ok := c.Get(ctx, "F")
	require.True(t, ok)
	assert.Equal(t, "second", got.Translation)
}

func TestCacheSweep(t *testing.T) {
	ctx := context.Background()
	c, store, clock := newTestCache(time.Hour)

	c.Put(ctx, "old", &models.CacheEntry{Translation: "old"})
	clock.Advance(50 * time.Minute)
	c.Put(ctx, "new", &models.CacheEntry{Translation: "new"})
	clock.Advance(20 * time.Minute)

	removed, err := c.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())

	_, ok := c.Get(ctx, "new")
	assert.True(t, ok)
}

type brokenStore struct{ *storage.MemoryStore }

func (b brokenStore) Get(context.Context, string) (*models.CacheEntry, error) {
	return nil, errors.New("redis: connection refused")
}

func TestCacheStoreErrorIsMiss(t *testing.T) {
	c := New(brokenStore{storage.NewMemoryStore()}, time.Hour)
	_, ok := c.Get(context.Background(), "F")
	assert.False(t, ok)
}

func TestNewDefaultsWindow(t *testing.T) {
	c := New(storage.NewMemoryStore(), 0)
	assert.Equal(t, DefaultWindow, c.Window())
}
