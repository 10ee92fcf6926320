package storage

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/z-wentao/voicedub/pkg/models"
)

type pendingWrite struct {
	key   string
	entry models.CacheEntry
}

// HybridStore 双层存储：Redis（热数据） + PostgreSQL（冷数据）
// 写：立即写热层，异步批量写冷层；读：优先热层，未命中查冷层并回写
type HybridStore struct {
	hot       Store
	cold      Store
	syncQueue chan pendingWrite
	done      chan struct{}
	mu        sync.RWMutex
	closed    bool
}

// NewHybridStore 创建混合存储并启动后台同步
func NewHybridStore(hot, cold Store) *HybridStore {
	store := &HybridStore{
		hot:       hot,
		cold:      cold,
		syncQueue: make(chan pendingWrite, 100),
		done:      make(chan struct{}),
	}

	go store.syncWorker()

	log.Println("✓ 混合缓存存储初始化成功")
	return store
}

func (s *HybridStore) Put(ctx context.Context, key string, entry *models.CacheEntry) error {
	if err := s.hot.Put(ctx, key, entry); err != nil {
		// 热层失败不影响业务，继续写冷层
		log.Printf("⚠️ 热层写入失败: %v", err)
	}

	s.asyncSyncToCold(ctx, pendingWrite{key: key, entry: *entry})
	return nil
}

func (s *HybridStore) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	entry, err := s.hot.Get(ctx, key)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, ErrNotFound) {
		log.Printf("⚠️ 热层读取失败: %v, 降级到冷层", err)
	}

	entry, err = s.cold.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	// 回写热层
	go func(e models.CacheEntry) {
		if err := s.hot.Put(context.Background(), key, &e); err != nil {
			log.Printf("⚠️ 回写热层失败: %v", err)
		}
	}(*entry)

	return entry, nil
}

func (s *HybridStore) Delete(ctx context.Context, key string) error {
	if err := s.hot.Delete(ctx, key); err != nil {
		log.Printf("⚠️ 热层删除失败: %v", err)
	}
	return s.cold.Delete(ctx, key)
}

// Keys 以冷层为准（热层是冷层的子集）
func (s *HybridStore) Keys(ctx context.Context) ([]string, error) {
	return s.cold.Keys(ctx)
}

// Close 等待同步队列写完（最多 5 秒）后关闭两层存储
func (s *HybridStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.syncQueue)
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		log.Printf("⚠️ 同步队列清空超时，剩余 %d 个条目", len(s.syncQueue))
	}

	hotErr := s.hot.Close()
	coldErr := s.cold.Close()

	log.Println("✓ 混合缓存存储已关闭")
	return errors.Join(hotErr, coldErr)
}

func (s *HybridStore) asyncSyncToCold(ctx context.Context, w pendingWrite) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		if err := s.cold.Put(ctx, w.key, &w.entry); err != nil {
			log.Printf("❌ 写入冷层失败: %v", err)
		}
		return
	}

	select {
	case s.syncQueue <- w:
	default:
		// 队列满，同步写入
		log.Printf("⚠️ 同步队列已满，同步写入冷层")
		if err := s.cold.Put(ctx, w.key, &w.entry); err != nil {
			log.Printf("❌ 同步写入冷层失败: %v", err)
		}
	}
}

// syncWorker 后台同步：批量写入（50 条或 5 秒）
func (s *HybridStore) syncWorker() {
	defer close(s.done)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	batch := make([]pendingWrite, 0, 50)

	for {
		select {
		case w, ok := <-s.syncQueue:
			if !ok {
				s.batchSave(batch)
				return
			}

			batch = append(batch, w)
			if len(batch) >= 50 {
				s.batchSave(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.batchSave(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *HybridStore) batchSave(batch []pendingWrite) {
	if len(batch) == 0 {
		return
	}

	log.Printf("🔄 批量同步 %d 个缓存条目到冷层", len(batch))

	successCount := 0
	for i := range batch {
		if err := s.cold.Put(context.Background(), batch[i].key, &batch[i].entry); err != nil {
			log.Printf("❌ 同步缓存失败: %s, 错误: %v", batch[i].key, err)
		} else {
			successCount++
		}
	}

	log.Printf("✓ 成功同步 %d/%d 个缓存条目", successCount, len(batch))
}
