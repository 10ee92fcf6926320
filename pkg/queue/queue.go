package queue

import (
	"context"
	"errors"

	"github.com/z-wentao/voicedub/pkg/models"
)

// ErrClosed 队列已关闭
var ErrClosed = errors.New("队列已关闭")

// Queue 翻译事件队列
// 每个 POST 请求结束后发布一条事件，由后台消费者记录
type Queue interface {
	// Publish 发布事件，不阻塞请求处理
	Publish(ctx context.Context, event *models.TranslationEvent) error

	// Dequeue 取出一条事件（阻塞，直到 ctx 结束或队列关闭）
	Dequeue(ctx context.Context) (*models.TranslationEvent, error)

	// Close 关闭队列
	Close() error
}

// Discard 不记录事件（queue.type = none）
type Discard struct{}

func (Discard) Publish(context.Context, *models.TranslationEvent) error { return nil }

func (Discard) Dequeue(ctx context.Context) (*models.TranslationEvent, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (Discard) Close() error { return nil }
