package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/z-wentao/voicedub/pkg/models"
	"github.com/z-wentao/voicedub/pkg/storage"
)

// DefaultWindow 默认有效期
const DefaultWindow = 24 * time.Hour

// Cache 翻译结果缓存
// 过期条目视为不存在，读取时惰性删除；后端错误一律降级为未命中
type Cache struct {
	store  storage.Store
	window time.Duration
	now    func() time.Time
}

// Option 可选配置
type Option func(*Cache)

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New 创建缓存
func New(store storage.Store, window time.Duration, opts ...Option) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	c := &Cache{store: store, window: window, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Window 有效期
func (c *Cache) Window() time.Duration {
	return c.window
}

// Get 获取有效条目
func (c *Cache) Get(ctx context.Context, fingerprint string) (*models.CacheEntry, bool) {
	entry, err := c.store.Get(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("⚠️ 读取缓存失败 %s: %v", fingerprint, err)
		}
		return nil, false
	}

	if entry.Expired(c.now(), c.window) {
		c.Evict(ctx, fingerprint)
		return nil, false
	}
	return entry, true
}

// Put 写入条目（无条件覆盖）；CreatedAt 为空时取当前时间
func (c *Cache) Put(ctx context.Context, fingerprint string, entry *models.CacheEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = c.now()
	}
	if err := c.store.Put(ctx, fingerprint, entry); err != nil {
		log.Printf("⚠️ 写入缓存失败 %s: %v", fingerprint, err)
	}
}

// Evict 删除条目
func (c *Cache) Evict(ctx context.Context, fingerprint string) {
	if err := c.store.Delete(ctx, fingerprint); err != nil {
		log.Printf("⚠️ 删除缓存失败 %s: %v", fingerprint, err)
	}
}

// Sweep 清理所有过期条目，返回删除数量
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	now := c.now()
	for _, key := range keys {
		entry, err := c.store.Get(ctx, key)
		if err != nil {
			continue
		}
		if entry.Expired(now, c.window) {
			if err := c.store.Delete(ctx, key); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Close 关闭后端
func (c *Cache) Close() error {
	return c.store.Close()
}
