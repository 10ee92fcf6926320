package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/z-wentao/voicedub/pkg/models"
	"github.com/z-wentao/voicedub/pkg/queue"
)

// EventHandler 处理一条翻译事件
type EventHandler func(event *models.TranslationEvent)

// EventWorker 消费翻译事件
type EventWorker struct {
	queue   queue.Queue
	handle  EventHandler
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewEventWorker 创建事件消费者；handle 为 nil 时只记录日志
func NewEventWorker(q queue.Queue, handle EventHandler) *EventWorker {
	ctx, cancel := context.WithCancel(context.Background())
	if handle == nil {
		handle = LogEvent
	}
	return &EventWorker{
		queue:   q,
		handle:  handle,
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
}

// Start 在独立的 Goroutine 中运行
func (w *EventWorker) Start() {
	go w.run()
}

// Stop 停止并等待主循环退出
func (w *EventWorker) Stop() {
	log.Println("正在停止事件 Worker...")
	w.cancel()
	<-w.stopped
}

func (w *EventWorker) run() {
	defer close(w.stopped)
	log.Println("事件 Worker 已启动，等待事件...")

	for {
		event, err := w.queue.Dequeue(w.ctx)
		if err != nil {
			if w.ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				log.Println("事件 Worker 已停止")
				return
			}
			log.Printf("从队列获取事件失败: %v", err)
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		w.handle(event)
	}
}

// LogEvent 默认处理：写日志
func LogEvent(event *models.TranslationEvent) {
	switch event.Status {
	case models.EventFailed:
		log.Printf("📊 [%s] %s → %s 失败 (%s, %dms): %s",
			event.Source, event.FileName, event.TargetLanguage, event.ErrorType, event.DurationMillis, event.Error)
	default:
		log.Printf("📊 [%s] %s → %s %s (%dms)",
			event.Source, event.FileName, event.TargetLanguage, event.Status, event.DurationMillis)
	}
}
