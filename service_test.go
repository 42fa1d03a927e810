package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/courierkit/dispatch/model"
	"github.com/courierkit/dispatch/service/coordinator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(mode coordinator.Mode) *Config {
	config := DefaultConfig()
	config.Coordinator.Mode = mode
	config.Coordinator.Regeneration = coordinator.Regeneration{}
	config.Workers = []model.WorkerSpec{
		{ID: "w1", CapacityWeight: 20, CapacitySlots: 3, PriorityRank: 3, SpeedFactor: 1},
		{ID: "w2", CapacityWeight: 20, CapacitySlots: 3, PriorityRank: 5, SpeedFactor: 1},
	}
	config.InitialTasks = 3
	config.TickInterval = 5 * time.Millisecond
	return config
}

func TestGreedyRunDrainsPool(t *testing.T) {
	ctx := context.Background()
	srv := New(WithConfig(testConfig(coordinator.ModeGreedy)))
	rt := srv.Runtime()
	require.NoError(t, rt.Start(ctx))
	defer rt.Shutdown(ctx)

	require.Eventually(t, func() bool {
		return rt.PoolSize() == 0 && rt.InFlight() == 0
	}, 10*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, workerID := range []string{"w1", "w2"} {
			state, ok := rt.WorkerState(workerID)
			if !ok || state != model.StateIdle {
				return false
			}
		}
		return true
	}, 10*time.Second, 20*time.Millisecond)
}

func TestAuctionRunDrainsPool(t *testing.T) {
	ctx := context.Background()
	srv := New(WithConfig(testConfig(coordinator.ModeAuction)))
	rt := srv.Runtime()
	require.NoError(t, rt.Start(ctx))
	defer rt.Shutdown(ctx)

	require.Eventually(t, func() bool {
		return rt.PoolSize() == 0 && rt.InFlight() == 0
	}, 20*time.Second, 20*time.Millisecond)
}

func TestSubmittedTaskIsDelivered(t *testing.T) {
	ctx := context.Background()
	config := testConfig(coordinator.ModeGreedy)
	config.InitialTasks = 0
	srv := New(WithConfig(config))
	rt := srv.Runtime()
	require.NoError(t, rt.Start(ctx))
	defer rt.Shutdown(ctx)

	require.NoError(t, rt.SubmitTask(ctx, &model.Task{ID: "T1", Duration: 2, Weight: 4, Urgency: 7}))
	require.Eventually(t, func() bool {
		return rt.PoolSize() == 0 && rt.InFlight() == 0
	}, 10*time.Second, 20*time.Millisecond)
}

func TestFailWorkerUnknown(t *testing.T) {
	srv := New(WithConfig(testConfig(coordinator.ModeGreedy)))
	err := srv.Runtime().FailWorker(context.Background(), "nobody")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())

	config.Workers[1].ID = config.Workers[0].ID
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.Workers[0].SpeedFactor = 0
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.Workers = nil
	assert.Error(t, config.Validate())
}

func TestLoadConfig(t *testing.T) {
	location := filepath.Join(t.TempDir(), "dispatch.yaml")
	data := []byte(`
coordinator:
  mode: greedy
workers:
  - id: alpha
    capacityWeight: 18
    capacitySlots: 2
    priorityRank: 4
    speedFactor: 1.2
initialTasks: 2
`)
	require.NoError(t, os.WriteFile(location, data, 0o644))

	config, err := LoadConfig(context.Background(), location)
	require.NoError(t, err)
	assert.Equal(t, coordinator.ModeGreedy, config.Coordinator.Mode)
	require.Len(t, config.Workers, 1)
	assert.Equal(t, "alpha", config.Workers[0].ID)
	assert.Equal(t, 18, config.Workers[0].CapacityWeight)
	assert.Equal(t, 2, config.InitialTasks)
	// Untouched sections keep their defaults
	assert.Equal(t, coordinator.DefaultConfig().Rescue, config.Coordinator.Rescue)
}
