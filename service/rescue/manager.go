// Package rescue collects bids on distress calls over a fixed window and
// awards the lowest bidder.
package rescue

import (
	"fmt"

	"github.com/courierkit/dispatch/model"
)

// Config holds the rescue bidding window length in ticks.
type Config struct {
	WindowTicks int `json:"windowTicks" yaml:"windowTicks"`
}

// DefaultConfig returns the standard rescue timing.
func DefaultConfig() Config {
	return Config{WindowTicks: 3}
}

type call struct {
	distress  *model.DistressCall
	remaining int
}

// Manager tracks one open call per stranded worker. It is owned by the
// coordinator's sequential message loop; no internal locking.
type Manager struct {
	config Config
	calls  map[string]*call
}

// New creates a manager with no open calls.
func New(config Config) *Manager {
	if config.WindowTicks <= 0 {
		config.WindowTicks = DefaultConfig().WindowTicks
	}
	return &Manager{config: config, calls: make(map[string]*call)}
}

// Open starts a bidding window for the stranded worker.
func (m *Manager) Open(distress *model.DistressCall) error {
	if _, ok := m.calls[distress.WorkerID]; ok {
		return fmt.Errorf("distress call for %s already open", distress.WorkerID)
	}
	m.calls[distress.WorkerID] = &call{
		distress:  distress,
		remaining: m.config.WindowTicks,
	}
	return nil
}

// Pending reports whether a call is open for the worker.
func (m *Manager) Pending(strandedID string) bool {
	_, ok := m.calls[strandedID]
	return ok
}

// Bid records a rescue bid; bids for unknown calls are dropped.
func (m *Manager) Bid(strandedID string, bid model.RescueBid) bool {
	c, ok := m.calls[strandedID]
	if !ok {
		return false
	}
	c.distress.Bids = append(c.distress.Bids, bid)
	return true
}

// Tick advances all open windows and returns the stranded workers whose
// window closed on this tick.
func (m *Manager) Tick() []string {
	var closed []string
	for strandedID, c := range m.calls {
		c.remaining--
		if c.remaining <= 0 {
			closed = append(closed, strandedID)
		}
	}
	return closed
}

// Resolve picks the lowest bid, ties broken by the earlier bid. A window
// with no bids stays open for another full window instead of abandoning the
// stranded worker.
func (m *Manager) Resolve(strandedID string) (*model.RescueBid, *model.DistressCall, error) {
	c, ok := m.calls[strandedID]
	if !ok {
		return nil, nil, fmt.Errorf("no distress call open for %s", strandedID)
	}
	if len(c.distress.Bids) == 0 {
		c.remaining = m.config.WindowTicks
		return nil, c.distress, nil
	}

	best := c.distress.Bids[0]
	for _, bid := range c.distress.Bids[1:] {
		if bid.Time < best.Time || (bid.Time == best.Time && bid.At.Before(best.At)) {
			best = bid
		}
	}
	delete(m.calls, strandedID)
	return &best, c.distress, nil
}
