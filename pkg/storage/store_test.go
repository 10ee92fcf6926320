package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z-wentao/voicedub/pkg/models"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	entry := &models.CacheEntry{Translation: "[00:01] Hola", VideoURL: "data:video/mp4;base64,AAAA", CreatedAt: time.Now()}
	require.NoError(t, store.Put(ctx, "k", entry))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, entry.Translation, got.Translation)
	assert.Equal(t, entry.VideoURL, got.VideoURL)

	// 返回的是副本
	got.Translation = "mutated"
	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "[00:01] Hola", again.Translation)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)

	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Put(ctx, "same", &models.CacheEntry{Translation: "x", CreatedAt: time.Now()})
			_, _ = store.Get(ctx, "same")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, store.Len())
}

// failingStore 模拟不可用的热层
type failingStore struct{ *MemoryStore }

func (f *failingStore) Get(context.Context, string) (*models.CacheEntry, error) {
	return nil, errors.New("connection refused")
}

func (f *failingStore) Put(context.Context, string, *models.CacheEntry) error {
	return errors.New("connection refused")
}

func TestHybridStoreFlushesColdOnClose(t *testing.T) {
	ctx := context.Background()
	hot := NewMemoryStore()
	cold := NewMemoryStore()
	store := NewHybridStore(hot, cold)

	entry := &models.CacheEntry{Translation: "t", VideoURL: "v", CreatedAt: time.Now()}
	require.NoError(t, store.Put(ctx, "k", entry))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "t", got.Translation)

	require.NoError(t, store.Close())

	coldEntry, err := cold.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", coldEntry.VideoURL)
}

func TestHybridStoreFallsBackToCold(t *testing.T) {
	ctx := context.Background()
	cold := NewMemoryStore()
	require.NoError(t, cold.Put(ctx, "k", &models.CacheEntry{Translation: "cold", CreatedAt: time.Now()}))

	store := NewHybridStore(&failingStore{MemoryStore: NewMemoryStore()}, cold)
	defer store.Close()

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "cold", got.Translation)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMinIOObjectNameRoundTrip(t *testing.T) {
	keys := []string{
		"translation-clip.mp4-2097152-es",
		"translation-https://example.com/v.mp4?x=1&y=2-fr",
	}
	for _, key := range keys {
		name := objectName(key)
		assert.NotContains(t, name[len(minioObjectPrefix):], "/")

		back, ok := keyFromObject(name)
		require.True(t, ok)
		assert.Equal(t, key, back)
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisStore(ctx, "127.0.0.1:1", "", 0, time.Hour)
	assert.Error(t, err)
}

func TestRedisDataKey(t *testing.T) {
	rs := &RedisStore{}
	assert.Equal(t, "voicedub:cache:translation-clip.mp4-10-es", rs.dataKey("translation-clip.mp4-10-es"))
}
