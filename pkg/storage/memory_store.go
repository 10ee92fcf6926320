package storage

import (
	"context"
	"sync"

	"github.com/z-wentao/voicedub/pkg/models"
)

// MemoryStore 进程内缓存（无容量上限，进程重启即丢失）
type MemoryStore struct {
	entries map[string]models.CacheEntry
	mu      sync.RWMutex
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]models.CacheEntry),
	}
}

func (ms *MemoryStore) Get(_ context.Context, key string) (*models.CacheEntry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	entry, exists := ms.entries[key]
	if !exists {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (ms *MemoryStore) Put(_ context.Context, key string, entry *models.CacheEntry) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.entries[key] = *entry
	return nil
}

func (ms *MemoryStore) Delete(_ context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.entries, key)
	return nil
}

func (ms *MemoryStore) Keys(_ context.Context) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	keys := make([]string, 0, len(ms.entries))
	for key := range ms.entries {
		keys = append(keys, key)
	}
	return keys, nil
}

// Len 当前条目数
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.entries)
}

// Close 内存存储无需关闭
func (ms *MemoryStore) Close() error {
	return nil
}
