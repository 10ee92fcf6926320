package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/z-wentao/voicedub/pkg/models"
)

// MemoryQueue 基于 Channel 的内存队列
type MemoryQueue struct {
	queue  chan *models.TranslationEvent
	closed chan struct{}
	once   sync.Once
}

// NewMemoryQueue 创建内存队列
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &MemoryQueue{
		queue:  make(chan *models.TranslationEvent, bufferSize),
		closed: make(chan struct{}),
	}
}

// Publish 队列满时直接丢弃并返回错误
func (mq *MemoryQueue) Publish(_ context.Context, event *models.TranslationEvent) error {
	select {
	case <-mq.closed:
		return ErrClosed
	default:
	}

	select {
	case mq.queue <- event:
		return nil
	default:
		return fmt.Errorf("队列已满")
	}
}

// Dequeue 从队列取出事件（阻塞等待）
func (mq *MemoryQueue) Dequeue(ctx context.Context) (*models.TranslationEvent, error) {
	select {
	case event := <-mq.queue:
		return event, nil
	case <-mq.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len 当前积压数量
func (mq *MemoryQueue) Len() int {
	return len(mq.queue)
}

// Close 关闭队列；不关闭数据 channel，避免并发 Publish 时 panic
func (mq *MemoryQueue) Close() error {
	mq.once.Do(func() { close(mq.closed) })
	return nil
}
