package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/z-wentao/voicedub/pkg/models"
)

const createCacheTable = `
CREATE TABLE IF NOT EXISTS translation_cache (
    cache_key   TEXT PRIMARY KEY,
    translation TEXT NOT NULL,
    video_url   TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL
)`

// PostgresStore PostgreSQL 缓存存储（冷数据，进程重启后仍可命中）
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore 创建 PostgreSQL 存储并确保表存在
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if _, err := db.ExecContext(ctx, createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("创建缓存表失败: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, entry *models.CacheEntry) error {
	query := `
    INSERT INTO translation_cache (cache_key, translation, video_url, created_at)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (cache_key)
    DO UPDATE SET
    translation = EXCLUDED.translation,
    video_url = EXCLUDED.video_url,
    created_at = EXCLUDED.created_at
    `

	if _, err := s.db.ExecContext(ctx, query, key, entry.Translation, entry.VideoURL, entry.CreatedAt); err != nil {
		return fmt.Errorf("保存到数据库失败: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	query := `
    SELECT translation, video_url, created_at
    FROM translation_cache
    WHERE cache_key = $1
    `

	var entry models.CacheEntry
	err := s.db.QueryRowContext(ctx, query, key).Scan(&entry.Translation, &entry.VideoURL, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询数据库失败: %w", err)
	}
	return &entry, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM translation_cache WHERE cache_key = $1`, key); err != nil {
		return fmt.Errorf("删除缓存失败: %w", err)
	}
	return nil
}

func (s *PostgresStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cache_key FROM translation_cache ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("查询数据库失败: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close 关闭数据库连接
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
