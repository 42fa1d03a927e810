package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/courierkit/dispatch/model"
	"github.com/courierkit/dispatch/service/coordinator"
	"github.com/courierkit/dispatch/service/worker"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the simulation configuration. It
// can be populated from JSON or YAML; the zero-value inherits the package
// defaults for all nested fields.
type Config struct {
	Coordinator coordinator.Config `json:"coordinator" yaml:"coordinator"`
	Worker      worker.Config      `json:"worker" yaml:"worker"`

	Workers []model.WorkerSpec `json:"workers" yaml:"workers"`

	// InitialTasks seeds the pool with generated tasks at startup.
	InitialTasks int `json:"initialTasks" yaml:"initialTasks"`

	// TickInterval drives the shared tick source; zero disables the ticker
	// so that time only advances through explicit Tick calls.
	TickInterval time.Duration `json:"tickInterval" yaml:"tickInterval"`
}

// DefaultConfig returns a Config with a three-worker roster and the standard
// tuning of every sub-service.
func DefaultConfig() *Config {
	return &Config{
		Coordinator: coordinator.DefaultConfig(),
		Worker:      worker.DefaultConfig(),
		Workers: []model.WorkerSpec{
			{ID: "w1", CapacityWeight: 20, CapacitySlots: 3, PriorityRank: 3, SpeedFactor: 1},
			{ID: "w2", CapacityWeight: 15, CapacitySlots: 2, PriorityRank: 5, SpeedFactor: 1.5},
			{ID: "w3", CapacityWeight: 30, CapacitySlots: 4, PriorityRank: 2, SpeedFactor: 0.8},
		},
		InitialTasks: 6,
		TickInterval: 500 * time.Millisecond,
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if err := c.Coordinator.Validate(); err != nil {
		return err
	}
	if len(c.Workers) == 0 {
		return fmt.Errorf("at least one worker is required")
	}
	seen := make(map[string]bool, len(c.Workers))
	for _, spec := range c.Workers {
		if spec.ID == "" {
			return fmt.Errorf("worker id must not be empty")
		}
		if spec.ID == model.CoordinatorAddress {
			return fmt.Errorf("worker id %q collides with the coordinator address", spec.ID)
		}
		if seen[spec.ID] {
			return fmt.Errorf("duplicate worker id %q", spec.ID)
		}
		seen[spec.ID] = true
		if spec.CapacityWeight <= 0 || spec.CapacitySlots <= 0 {
			return fmt.Errorf("worker %s capacity must be positive", spec.ID)
		}
		if spec.SpeedFactor <= 0 {
			return fmt.Errorf("worker %s speed factor must be positive", spec.ID)
		}
	}
	if c.InitialTasks < 0 {
		return fmt.Errorf("initialTasks must not be negative, got %d", c.InitialTasks)
	}
	if c.TickInterval < 0 {
		return fmt.Errorf("tickInterval must not be negative, got %v", c.TickInterval)
	}
	return nil
}

// LoadConfig reads a YAML configuration from the given URL on top of the
// package defaults.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", URL, err)
	}
	ret := DefaultConfig()
	if err := yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", URL, err)
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}
