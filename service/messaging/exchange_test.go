package messaging_test

import (
	"context"
	"testing"

	"github.com/courierkit/dispatch/model"
	"github.com/courierkit/dispatch/service/messaging"
	"github.com/courierkit/dispatch/service/messaging/memory"
	"github.com/stretchr/testify/assert"
)

func TestExchange(t *testing.T) {
	exchange := messaging.NewExchange[model.Envelope]()
	ctx := context.Background()

	coordinatorInbox := memory.NewQueue[model.Envelope](memory.DefaultConfig())
	workerInbox := memory.NewQueue[model.Envelope](memory.DefaultConfig())
	exchange.Register("coordinator", coordinatorInbox)
	exchange.Register("w1", workerInbox)

	assert.Equal(t, []string{"coordinator", "w1"}, exchange.Addresses())

	err := exchange.Send(ctx, "coordinator", &model.Envelope{From: "w1", Kind: model.KindRequestTask})
	assert.NoError(t, err)
	assert.Equal(t, 1, coordinatorInbox.Size())
	assert.Equal(t, 0, workerInbox.Size())

	message, err := coordinatorInbox.Consume(ctx)
	assert.NoError(t, err)
	assert.Equal(t, model.KindRequestTask, message.T().Kind)
	assert.NoError(t, message.Ack())

	err = exchange.Send(ctx, "unknown", &model.Envelope{Kind: model.KindTick})
	assert.Error(t, err)
}
