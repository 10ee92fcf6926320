package storage

import (
	"context"
	"errors"

	"github.com/z-wentao/voicedub/pkg/models"
)

// ErrNotFound 条目不存在
var ErrNotFound = errors.New("缓存条目不存在")

// Store 缓存后端接口（只负责存取，有效期由 cache 包判断）
type Store interface {
	// Get 获取条目，不存在时返回 ErrNotFound
	Get(ctx context.Context, key string) (*models.CacheEntry, error)

	// Put 写入条目（无条件覆盖）
	Put(ctx context.Context, key string, entry *models.CacheEntry) error

	// Delete 删除条目，不存在不算错误
	Delete(ctx context.Context, key string) error

	// Keys 列出所有 key（用于定时清理）
	Keys(ctx context.Context) ([]string, error)

	// Close 关闭连接
	Close() error
}
