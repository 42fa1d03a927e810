// Package auction runs timed call-for-bids rounds over one task at a time.
package auction

import (
	"fmt"
	"sort"

	"github.com/courierkit/dispatch/model"
)

// State of the auction round.
type State string

const (
	StateIdle   State = "idle"
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// Config holds auction timing, both measured in ticks.
type Config struct {
	WindowTicks  int `json:"windowTicks" yaml:"windowTicks"`
	BackoffTicks int `json:"backoffTicks" yaml:"backoffTicks"`
}

// DefaultConfig returns the standard auction timing.
func DefaultConfig() Config {
	return Config{
		WindowTicks:  2,
		BackoffTicks: 2,
	}
}

// Result of a closed auction. Winner is nil when no bids arrived.
type Result struct {
	Task   *model.Task
	Winner *model.Bid
	Bids   []model.Bid
}

type timedBid struct {
	bid model.Bid
	seq int
}

// Manager is owned by the coordinator's sequential message loop; it needs no
// internal locking.
type Manager struct {
	config    Config
	state     State
	task      *model.Task
	bids      []timedBid
	remaining int
	backoff   int
	seq       int
}

// New creates an idle auction manager.
func New(config Config) *Manager {
	if config.WindowTicks <= 0 {
		config.WindowTicks = DefaultConfig().WindowTicks
	}
	if config.BackoffTicks <= 0 {
		config.BackoffTicks = DefaultConfig().BackoffTicks
	}
	return &Manager{config: config, state: StateIdle}
}

// State returns the current round state.
func (m *Manager) State() State { return m.state }

// Task returns the task under auction, nil when idle.
func (m *Manager) Task() *model.Task { return m.task }

// CoolingDown reports whether the no-bid backoff is still running.
func (m *Manager) CoolingDown() bool { return m.backoff > 0 }

// Open starts a round over the task. Only one round may be open at a time.
func (m *Manager) Open(task *model.Task) error {
	if m.state != StateIdle {
		return fmt.Errorf("auction already %s for task %s", m.state, m.task.ID)
	}
	if m.backoff > 0 {
		return fmt.Errorf("auction backing off for %d more ticks", m.backoff)
	}
	m.state = StateOpen
	m.task = task
	m.bids = nil
	m.remaining = m.config.WindowTicks
	return nil
}

// Bid records a bid while the round is open. Late or stray bids are dropped
// and reported as such, never processed.
func (m *Manager) Bid(bid model.Bid) bool {
	if m.state != StateOpen || bid.WorkerID == "" {
		return false
	}
	m.seq++
	m.bids = append(m.bids, timedBid{bid: bid, seq: m.seq})
	return true
}

// Tick advances the bid window and the backoff counter. It returns true on
// the single tick that closes the window; that close is the only authoritative
// end of the round.
func (m *Manager) Tick() bool {
	if m.backoff > 0 {
		m.backoff--
	}
	if m.state != StateOpen {
		return false
	}
	m.remaining--
	if m.remaining > 0 {
		return false
	}
	m.state = StateClosed
	return true
}

// Resolve selects the winner of a closed round and resets the manager to
// idle. Ordering: score descending, then priorityRank descending, then
// earlier bid. No bids starts the backoff so the retry never tight-loops.
func (m *Manager) Resolve() (*Result, error) {
	if m.state != StateClosed {
		return nil, fmt.Errorf("auction not closed, state %s", m.state)
	}

	result := &Result{Task: m.task}
	if len(m.bids) > 0 {
		sort.SliceStable(m.bids, func(i, j int) bool {
			a, b := m.bids[i], m.bids[j]
			if a.bid.Score != b.bid.Score {
				return a.bid.Score > b.bid.Score
			}
			if a.bid.PriorityRank != b.bid.PriorityRank {
				return a.bid.PriorityRank > b.bid.PriorityRank
			}
			if !a.bid.At.Equal(b.bid.At) {
				return a.bid.At.Before(b.bid.At)
			}
			return a.seq < b.seq
		})
		result.Bids = make([]model.Bid, 0, len(m.bids))
		for _, tb := range m.bids {
			result.Bids = append(result.Bids, tb.bid)
		}
		winner := result.Bids[0]
		result.Winner = &winner
	} else {
		m.backoff = m.config.BackoffTicks
	}

	m.state = StateIdle
	m.task = nil
	m.bids = nil
	return result, nil
}
