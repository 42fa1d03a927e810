package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/courierkit/dispatch/model"
	"github.com/stretchr/testify/assert"
)

func TestQueue(t *testing.T) {
	config := DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[model.Envelope](config)

	ctx := context.Background()
	envelope := model.Envelope{
		From:  "w1",
		To:    "coordinator",
		Kind:  model.KindRequestTask,
		Load:  3,
		Items: 1,
	}

	err := queue.Publish(ctx, &envelope)
	assert.NoError(t, err)
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.Equal(t, 0, queue.Size())

	received := message.T()
	assert.Equal(t, envelope.From, received.From)
	assert.Equal(t, envelope.Kind, received.Kind)
	assert.Equal(t, envelope.Load, received.Load)

	err = message.Ack()
	assert.NoError(t, err)

	// Double ack should error
	err = message.Ack()
	assert.Error(t, err)
}

func TestQueueRetries(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[model.Envelope](config)

	ctx := context.Background()
	envelope := model.Envelope{From: "w2", To: "coordinator", Kind: model.KindBid, Score: 40}

	err := queue.Publish(ctx, &envelope)
	assert.NoError(t, err)

	for attempt := 0; attempt < 3; attempt++ {
		message, err := queue.Consume(ctx)
		assert.NoError(t, err)
		assert.NotNil(t, message)

		err = message.Nack(nil)
		assert.NoError(t, err)
		time.Sleep(20 * time.Millisecond)
	}

	// Retry budget exhausted
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, 1, queue.DLQSize())
}

func TestQueueConcurrency(t *testing.T) {
	config := DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[model.Envelope](config)

	ctx := context.Background()
	senders := 10
	messagesPerSender := 10

	var wg sync.WaitGroup
	wg.Add(senders * 2)

	var consumedCount int
	var consumedMu sync.Mutex

	for i := 0; i < senders; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < messagesPerSender; j++ {
				message, err := queue.Consume(ctx)
				if err != nil {
					t.Errorf("Error consuming: %v", err)
					continue
				}
				if message == nil {
					time.Sleep(10 * time.Millisecond)
					j--
					continue
				}
				err = message.Ack()
				assert.NoError(t, err)

				consumedMu.Lock()
				consumedCount++
				consumedMu.Unlock()
			}
		}()
	}

	for i := 0; i < senders; i++ {
		go func(senderID int) {
			defer wg.Done()
			for j := 0; j < messagesPerSender; j++ {
				envelope := model.Envelope{
					From:   fmt.Sprintf("w%d", senderID),
					To:     "coordinator",
					Kind:   model.KindBid,
					TaskID: fmt.Sprintf("P%d", j),
					Score:  j,
				}
				if err := queue.Publish(ctx, &envelope); err != nil {
					t.Errorf("Error publishing: %v", err)
				}
				time.Sleep(time.Millisecond)
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Test timed out")
	}

	assert.Equal(t, senders*messagesPerSender, consumedCount)
	assert.Equal(t, 0, queue.Size())
}

func TestQueueContextCancellation(t *testing.T) {
	queue := NewQueue[model.Envelope](DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	envelope := model.Envelope{Kind: model.KindTick}
	err := queue.Publish(ctx, &envelope)
	assert.Error(t, err)

	ctxWithTimeout, cancelTimeout := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelTimeout()

	_, err = queue.Consume(ctxWithTimeout)
	assert.Error(t, err)

	// Queue stays usable after cancellation
	emptyCtx := context.Background()
	err = queue.Publish(emptyCtx, &envelope)
	assert.NoError(t, err)

	message, err := queue.Consume(emptyCtx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
}
