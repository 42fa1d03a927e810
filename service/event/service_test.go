package event

import (
	"context"
	"testing"
	"time"

	"github.com/courierkit/dispatch/model"
	"github.com/courierkit/dispatch/service/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedPublishAndListen(t *testing.T) {
	service, err := New(messaging.VendorMemory)
	require.NoError(t, err)

	received := make(chan *Event[TaskCreated], 1)
	err = SetListenerOf[TaskCreated](service, func(e *Event[TaskCreated]) {
		received <- e
	})
	require.NoError(t, err)

	publisher, err := PublisherOf[TaskCreated](service)
	require.NoError(t, err)

	task := &model.Task{ID: "P1", Duration: 7, Weight: 8, Category: model.CategoryStandard}
	err = publisher.Publish(context.Background(), NewEvent(&Context{TaskID: "P1", EventType: "taskCreated"}, TaskCreated{Task: task}))
	require.NoError(t, err)

	select {
	case e := <-received:
		assert.Equal(t, "P1", e.Context.TaskID)
		assert.Equal(t, "P1", e.Data.Task.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnsupportedVendor(t *testing.T) {
	_, err := New(messaging.Vendor("nats"))
	assert.Error(t, err)
}
