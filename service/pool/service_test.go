package pool

import (
	"fmt"
	"sync"
	"testing"

	"github.com/courierkit/dispatch/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestSelection(t *testing.T) {
	service := New()
	service.Submit(&model.Task{ID: "P1", Weight: 8})
	service.Submit(&model.Task{ID: "P2", Weight: 4})
	service.Submit(&model.Task{ID: "P3", Weight: 6, Priority: true})
	service.Submit(&model.Task{ID: "P4", Weight: 4})

	// Priority-flagged first
	task, reason := service.Request("w1", 0, 0, 20, 5)
	require.Empty(t, reason)
	assert.Equal(t, "P3", task.ID)

	// Then smallest weight, insertion order on ties
	task, reason = service.Request("w1", 0, 0, 20, 5)
	require.Empty(t, reason)
	assert.Equal(t, "P2", task.ID)

	task, reason = service.Request("w1", 0, 0, 20, 5)
	require.Empty(t, reason)
	assert.Equal(t, "P4", task.ID)
}

func TestRequestRefusals(t *testing.T) {
	service := New()

	_, reason := service.Request("w1", 0, 0, 15, 3)
	assert.Equal(t, model.ReasonNoTasks, reason)

	service.Submit(&model.Task{ID: "P1", Weight: 12})

	// Slot count exhausted
	_, reason = service.Request("w1", 0, 3, 15, 3)
	assert.Equal(t, model.ReasonOvercount, reason)
	assert.Equal(t, 1, service.Size())

	// Weight exceeded
	_, reason = service.Request("w1", 8, 0, 15, 3)
	assert.Equal(t, model.ReasonOverweight, reason)
	assert.Equal(t, 1, service.Size())
}

func TestOfferRemovesFromPool(t *testing.T) {
	service := New()
	service.Submit(&model.Task{ID: "A", Weight: 5})
	service.Submit(&model.Task{ID: "B", Weight: 12})

	// W1 with capacity 15 gets B once A is gone; B must never show up for
	// W2 while offered or held by W1.
	taskA, reason := service.Request("w1", 0, 0, 15, 3)
	require.Empty(t, reason)
	assert.Equal(t, "A", taskA.ID)

	taskB, reason := service.Request("w1", taskA.Weight, 1, 15, 3)
	require.Empty(t, reason)
	assert.Equal(t, "B", taskB.ID)

	_, reason = service.Request("w2", 0, 0, 15, 3)
	assert.Equal(t, model.ReasonNoTasks, reason)

	require.NoError(t, service.ConfirmPickup("w1", "B"))
	_, reason = service.Request("w2", 0, 0, 15, 3)
	assert.Equal(t, model.ReasonNoTasks, reason)
}

func TestConfirmPickupIdempotent(t *testing.T) {
	service := New()
	service.Submit(&model.Task{ID: "P1", Weight: 5})

	_, reason := service.Request("w1", 0, 0, 10, 3)
	require.Empty(t, reason)

	require.NoError(t, service.ConfirmPickup("w1", "P1"))
	holder, ok := service.Holder("P1")
	require.True(t, ok)
	assert.Equal(t, "w1", holder)

	// Duplicate confirm is a warning, not a state change
	require.NoError(t, service.ConfirmPickup("w1", "P1"))
	holder, ok = service.Holder("P1")
	require.True(t, ok)
	assert.Equal(t, "w1", holder)
	assert.Equal(t, 1, service.InFlight())

	// Pickup by another worker is a consistency error
	err := service.ConfirmPickup("w2", "P1")
	assert.ErrorIs(t, err, ErrNotOffered)
}

func TestRejectOfferReturnsTask(t *testing.T) {
	service := New()
	service.Submit(&model.Task{ID: "P1", Weight: 5})

	_, reason := service.Request("w1", 0, 0, 10, 3)
	require.Empty(t, reason)
	assert.Equal(t, 0, service.Size())

	require.NoError(t, service.RejectOffer("w1", "P1"))
	assert.Equal(t, 1, service.Size())

	task, reason := service.Request("w2", 0, 0, 10, 3)
	require.Empty(t, reason)
	assert.Equal(t, "P1", task.ID)
}

func TestRejectOfferKeepsInsertionOrder(t *testing.T) {
	service := New()
	service.Submit(&model.Task{ID: "P1", Weight: 5})

	task, reason := service.Request("w1", 0, 0, 10, 3)
	require.Empty(t, reason)
	require.Equal(t, "P1", task.ID)

	service.Submit(&model.Task{ID: "P2", Weight: 5})
	service.Submit(&model.Task{ID: "P3", Weight: 5})
	require.NoError(t, service.RejectOffer("w1", "P1"))

	// The earliest submission still wins the weight tie after re-insertion
	task, reason = service.Request("w2", 0, 0, 10, 3)
	require.Empty(t, reason)
	assert.Equal(t, "P1", task.ID)
}

func TestReturnKeepsInsertionOrder(t *testing.T) {
	service := New()
	service.Submit(&model.Task{ID: "P1", Weight: 5})
	service.Submit(&model.Task{ID: "P2", Weight: 5})

	task := service.TakeHead()
	require.NotNil(t, task)
	require.Equal(t, "P1", task.ID)

	service.Submit(&model.Task{ID: "P3", Weight: 5})
	service.Return(task)

	task = service.TakeHead()
	require.NotNil(t, task)
	assert.Equal(t, "P1", task.ID)
}

func TestCompleteDelivery(t *testing.T) {
	service := New()
	service.Submit(&model.Task{ID: "P1", Weight: 5, Category: model.CategoryUrgent})

	_, reason := service.Request("w1", 0, 0, 10, 3)
	require.Empty(t, reason)
	require.NoError(t, service.ConfirmPickup("w1", "P1"))

	category, err := service.CompleteDelivery("w1", "P1")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryUrgent, category)

	// Duplicate completion never double-counts
	_, err = service.CompleteDelivery("w1", "P1")
	assert.ErrorIs(t, err, ErrNotHeld)
}

func TestTransfer(t *testing.T) {
	service := New()
	service.Submit(&model.Task{ID: "P1", Weight: 5})
	_, reason := service.Request("w1", 0, 0, 10, 3)
	require.Empty(t, reason)
	require.NoError(t, service.ConfirmPickup("w1", "P1"))

	_, err := service.LockNegotiation("P1", "w2")
	require.NoError(t, err)

	require.NoError(t, service.Transfer("P1", "w1", "w2"))
	holder, ok := service.Holder("P1")
	require.True(t, ok)
	assert.Equal(t, "w2", holder)
	assert.False(t, service.Negotiating("P1"))

	err = service.Transfer("P1", "w1", "w3")
	assert.ErrorIs(t, err, ErrNotHeld)
}

func TestNegotiationLocks(t *testing.T) {
	service := New()
	service.Submit(&model.Task{ID: "P1", Weight: 5})
	service.Submit(&model.Task{ID: "P2", Weight: 5})

	for _, taskID := range []string{"P1", "P2"} {
		_, reason := service.Request("w1", 0, 0, 20, 5)
		require.Empty(t, reason)
		require.NoError(t, service.ConfirmPickup("w1", taskID))
	}

	negotiation, err := service.LockNegotiation("P1", "w2")
	require.NoError(t, err)
	assert.Equal(t, "w1", negotiation.Holder)
	assert.True(t, service.HolderNegotiating("w1"))

	// Same task cannot be promised twice
	_, err = service.LockNegotiation("P1", "w3")
	assert.Error(t, err)

	// Holder cannot be in two negotiations
	_, err = service.LockNegotiation("P2", "w3")
	assert.Error(t, err)

	service.ReleaseNegotiation("P1")
	_, err = service.LockNegotiation("P2", "w3")
	assert.NoError(t, err)
}

func TestExactlyOnceAssignment(t *testing.T) {
	service := New()
	const tasks = 8
	const requesters = 32

	for i := 0; i < tasks; i++ {
		service.Submit(&model.Task{ID: fmt.Sprintf("P%d", i), Weight: 1})
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := map[string]string{}
	refused := 0

	for i := 0; i < requesters; i++ {
		wg.Add(1)
		go func(workerID string) {
			defer wg.Done()
			task, reason := service.Request(workerID, 0, 0, 10, 3)
			mu.Lock()
			defer mu.Unlock()
			if task != nil {
				previous, dup := granted[task.ID]
				assert.False(t, dup, "task %s offered to both %s and %s", task.ID, previous, workerID)
				granted[task.ID] = workerID
			} else {
				assert.Equal(t, model.ReasonNoTasks, reason)
				refused++
			}
		}(fmt.Sprintf("w%d", i))
	}
	wg.Wait()

	assert.Equal(t, tasks, len(granted))
	assert.Equal(t, requesters-tasks, refused)
	assert.Equal(t, 0, service.Size())
}
