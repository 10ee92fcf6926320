package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/z-wentao/voicedub/pkg/models"
)

const minioObjectPrefix = "cache/"

// MinIOStore 对象存储缓存：每个条目一个 JSON 对象
// 配音视频的 data URI 体积大，放对象存储比放 Redis 更合适
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore 创建 MinIO 存储，bucket 不存在时自动创建
func NewMinIOStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinIOStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("检查 bucket 失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: "us-east-1"}); err != nil {
			return nil, fmt.Errorf("创建 bucket 失败: %w", err)
		}
	}

	return &MinIOStore{client: client, bucket: bucket}, nil
}

// objectName 指纹里可能包含 URL，转义后作为对象名
func objectName(key string) string {
	return minioObjectPrefix + url.PathEscape(key) + ".json"
}

func keyFromObject(name string) (string, bool) {
	name = strings.TrimPrefix(name, minioObjectPrefix)
	name = strings.TrimSuffix(name, ".json")
	key, err := url.PathUnescape(name)
	return key, err == nil
}

func (s *MinIOStore) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("读取对象失败: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("读取对象失败: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("反序列化缓存失败: %w", err)
	}
	return &entry, nil
}

func (s *MinIOStore) Put(ctx context.Context, key string, entry *models.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("序列化缓存失败: %w", err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, objectName(key), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("上传对象失败: %w", err)
	}
	return nil
}

func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectName(key), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象失败: %w", err)
	}
	return nil
}

func (s *MinIOStore) Keys(ctx context.Context) ([]string, error) {
	keys := make([]string, 0)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: minioObjectPrefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("列出对象失败: %w", obj.Err)
		}
		if key, ok := keyFromObject(obj.Key); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Close minio 客户端无需关闭
func (s *MinIOStore) Close() error {
	return nil
}
