package coordinator

import (
	"fmt"

	"github.com/courierkit/dispatch/service/auction"
	"github.com/courierkit/dispatch/service/rescue"
)

// Mode selects how unassigned tasks reach workers.
type Mode string

const (
	// ModeGreedy answers each task request directly with the best fitting
	// task.
	ModeGreedy Mode = "greedy"

	// ModeAuction runs timed call-for-bids rounds instead of direct offers.
	ModeAuction Mode = "auction"
)

// Regeneration controls how delivered tasks are replaced.
type Regeneration struct {
	// DelayTicks is the countdown between a delivery and the replacement
	// entering the pool; zero disables regeneration.
	DelayTicks int `json:"delayTicks" yaml:"delayTicks"`

	// Count is the number of replacement tasks per delivery.
	Count int `json:"count" yaml:"count"`
}

// Config tunes the coordinator. All durations are ticks.
type Config struct {
	Mode Mode `json:"mode" yaml:"mode"`

	Auction      auction.Config `json:"auction" yaml:"auction"`
	Rescue       rescue.Config  `json:"rescue" yaml:"rescue"`
	Regeneration Regeneration   `json:"regeneration" yaml:"regeneration"`

	// Trade scan thresholds; a (holder, task) pair is proposed when the
	// requester outranks the holder by the priority gap or the holder
	// carries more by the load gap.
	TradeMinPriorityDiff int `json:"tradeMinPriorityDiff" yaml:"tradeMinPriorityDiff"`
	TradeMinLoadDiff     int `json:"tradeMinLoadDiff" yaml:"tradeMinLoadDiff"`

	// NegotiationTTL bounds how long a trade lock survives without an
	// acceptance before it is released.
	NegotiationTTL int `json:"negotiationTTL" yaml:"negotiationTTL"`

	// Seed drives the task generator; runs with the same seed produce the
	// same regenerated tasks.
	Seed int64 `json:"seed" yaml:"seed"`
}

// DefaultConfig returns the standard coordinator tuning.
func DefaultConfig() Config {
	return Config{
		Mode:                 ModeAuction,
		Auction:              auction.DefaultConfig(),
		Rescue:               rescue.DefaultConfig(),
		Regeneration:         Regeneration{DelayTicks: 8, Count: 1},
		TradeMinPriorityDiff: 2,
		TradeMinLoadDiff:     2,
		NegotiationTTL:       5,
		Seed:                 1,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeGreedy, ModeAuction:
	case "":
		c.Mode = ModeAuction
	default:
		return fmt.Errorf("unknown dispatch mode %q", c.Mode)
	}
	if c.Regeneration.DelayTicks < 0 {
		return fmt.Errorf("regeneration delay must not be negative, got %d", c.Regeneration.DelayTicks)
	}
	if c.Regeneration.Count < 0 {
		return fmt.Errorf("regeneration count must not be negative, got %d", c.Regeneration.Count)
	}
	return nil
}
