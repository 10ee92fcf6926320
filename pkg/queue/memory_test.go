package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z-wentao/voicedub/pkg/models"
)

func TestMemoryQueuePublishDequeue(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, &models.TranslationEvent{EventID: "a"}))
	require.NoError(t, q.Publish(ctx, &models.TranslationEvent{EventID: "b"}))

	// 队列满时不阻塞
	assert.Error(t, q.Publish(ctx, &models.TranslationEvent{EventID: "c"}))
	assert.Equal(t, 2, q.Len())

	e, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", e.EventID)
}

func TestMemoryQueueDequeueHonoursContext(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Publish(context.Background(), &models.TranslationEvent{}), ErrClosed)
	_, err := q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDiscard(t *testing.T) {
	var q Queue = Discard{}
	assert.NoError(t, q.Publish(context.Background(), &models.TranslationEvent{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
