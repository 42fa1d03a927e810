package rescue

import (
	"testing"
	"time"

	"github.com/courierkit/dispatch/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDistress(workerID string) *model.DistressCall {
	return &model.DistressCall{
		WorkerID:  workerID,
		Task:      &model.Task{ID: "P1", Duration: 10},
		Elapsed:   4,
		Remaining: 6,
	}
}

func TestLowestBidWins(t *testing.T) {
	manager := New(Config{WindowTicks: 2})
	require.NoError(t, manager.Open(newDistress("w1")))

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	// W2 idle bids pure travel; W3 delivering bids availability + travel
	assert.True(t, manager.Bid("w1", model.RescueBid{WorkerID: "w2", Time: 4, At: base}))
	assert.True(t, manager.Bid("w1", model.RescueBid{WorkerID: "w3", Time: 7, At: base.Add(time.Millisecond)}))

	assert.Empty(t, manager.Tick())
	closed := manager.Tick()
	require.Equal(t, []string{"w1"}, closed)

	winner, distress, err := manager.Resolve("w1")
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, "w2", winner.WorkerID)
	assert.Equal(t, "w1", distress.WorkerID)
	assert.False(t, manager.Pending("w1"))
}

func TestTieBrokenByEarlierBid(t *testing.T) {
	manager := New(Config{WindowTicks: 1})
	require.NoError(t, manager.Open(newDistress("w1")))

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	manager.Bid("w1", model.RescueBid{WorkerID: "w3", Time: 5, At: base.Add(time.Millisecond)})
	manager.Bid("w1", model.RescueBid{WorkerID: "w2", Time: 5, At: base})

	require.Equal(t, []string{"w1"}, manager.Tick())
	winner, _, err := manager.Resolve("w1")
	require.NoError(t, err)
	assert.Equal(t, "w2", winner.WorkerID)
}

func TestZeroBidsKeepsCallOpen(t *testing.T) {
	manager := New(Config{WindowTicks: 1})
	require.NoError(t, manager.Open(newDistress("w1")))

	require.Equal(t, []string{"w1"}, manager.Tick())
	winner, distress, err := manager.Resolve("w1")
	require.NoError(t, err)
	assert.Nil(t, winner)
	assert.NotNil(t, distress)

	// Window restarted; a bid in the next window still wins
	assert.True(t, manager.Pending("w1"))
	manager.Bid("w1", model.RescueBid{WorkerID: "w2", Time: 3})
	require.Equal(t, []string{"w1"}, manager.Tick())
	winner, _, err = manager.Resolve("w1")
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, "w2", winner.WorkerID)
}

func TestDuplicateOpenRejected(t *testing.T) {
	manager := New(DefaultConfig())
	require.NoError(t, manager.Open(newDistress("w1")))
	assert.Error(t, manager.Open(newDistress("w1")))

	// Bids for unknown calls are dropped
	assert.False(t, manager.Bid("w9", model.RescueBid{WorkerID: "w2", Time: 1}))
}
