// Package worker implements the per-worker actor: bidding, delivery
// countdowns, trading, distress and rescue missions. Each worker owns its
// own state and carried list exclusively; all cross-actor effects happen via
// envelopes.
package worker

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/courierkit/dispatch/internal/idgen"
	"github.com/courierkit/dispatch/model"
	"github.com/courierkit/dispatch/service/event"
	"github.com/courierkit/dispatch/service/messaging"
)

// delivery is one carried task with its countdown. travel is the
// speed-scaled trip time used as the reported elapsed on completion.
type delivery struct {
	task      *model.Task
	remaining int
	travel    int
}

type handler func(ctx context.Context, env *model.Envelope)

// Service is a worker actor. Handle is serialized behind one mutex so the
// run loop and tests mutate state from a single logical thread.
type Service struct {
	spec     model.WorkerSpec
	config   Config
	exchange *messaging.Exchange[model.Envelope]
	inbox    messaging.Queue[model.Envelope]
	events   *event.Service
	peers    []string
	rng      *rand.Rand

	mux   sync.Mutex
	state model.WorkerState

	carried     []*delivery
	load        int
	elapsedTrip int
	tripMax     int

	returnRemaining int
	consecutive     int
	cooldown        int

	requestPending bool
	retryWait      int
	paused         bool

	bidTaskID string

	// requester-side negotiation
	negotiating     bool
	negotiationWait int
	priorState      model.WorkerState

	// holder-side negotiation guard, cleared each tick
	tradingTaskID string

	// rescue
	pendingRescue  *model.Envelope
	rescueTravel   int
	rescueStranded string
	rescueTask     *model.Task
	rescueRemain   int
	strandedAt     int

	handlers map[model.Kind]handler
	stopped  atomic.Bool
}

// Option customizes a worker.
type Option func(*Service)

// WithEventService wires the display/log event stream.
func WithEventService(events *event.Service) Option {
	return func(s *Service) { s.events = events }
}

// WithPeers sets the other worker addresses used for distress broadcasts.
func WithPeers(peers ...string) Option {
	return func(s *Service) { s.peers = peers }
}

// New creates a worker actor in the Idle state.
func New(spec model.WorkerSpec, config Config, exchange *messaging.Exchange[model.Envelope], inbox messaging.Queue[model.Envelope], opts ...Option) *Service {
	ret := &Service{
		spec:     spec,
		config:   config,
		exchange: exchange,
		inbox:    inbox,
		state:    model.StateIdle,
		rng:      rand.New(rand.NewSource(config.Seed)),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.handlers = map[model.Kind]handler{
		model.KindTick:               ret.handleTick,
		model.KindOffer:              ret.handleOffer,
		model.KindRefuse:             ret.handleRefuse,
		model.KindCFP:                ret.handleCFP,
		model.KindAward:              ret.handleAward,
		model.KindDeny:               ret.handleDeny,
		model.KindDistress:           ret.handleDistress,
		model.KindRescueAward:        ret.handleRescueAward,
		model.KindRescued:            ret.handleRescued,
		model.KindTradeRequest:       ret.handleTradeRequest,
		model.KindTradeAccept:        ret.handleTradeAccept,
		model.KindTradeRefuse:        ret.handleTradeRefuse,
		model.KindTradeOpportunities: ret.handleTradeOpportunities,
		model.KindPause:              ret.handlePause,
		model.KindResume:             ret.handleResume,
		model.KindTriggerFailure:     ret.handleTriggerFailure,
	}
	return ret
}

// ID returns the worker address.
func (s *Service) ID() string { return s.spec.ID }

// Start consumes the inbox until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	for {
		if s.stopped.Load() {
			return
		}
		msg, err := s.inbox.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("worker %s: consume: %v", s.spec.ID, err)
			continue
		}
		if msg == nil {
			continue
		}
		s.Handle(ctx, msg.T())
		_ = msg.Ack()
	}
}

// Shutdown stops the run loop after the in-flight message.
func (s *Service) Shutdown() {
	s.stopped.Store(true)
}

// Handle dispatches one envelope through the handler table.
func (s *Service) Handle(ctx context.Context, env *model.Envelope) {
	s.mux.Lock()
	defer s.mux.Unlock()
	h, ok := s.handlers[env.Kind]
	if !ok {
		log.Printf("worker %s: unhandled message kind %s from %s", s.spec.ID, env.Kind, env.From)
		return
	}
	h(ctx, env)
}

// State returns the current worker state.
func (s *Service) State() model.WorkerState {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.state
}

// Load returns the carried weight.
func (s *Service) Load() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.load
}

// Carried returns the number of carried tasks.
func (s *Service) Carried() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return len(s.carried)
}

// ConsecutiveDeliveries returns the fatigue counter.
func (s *Service) ConsecutiveDeliveries() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.consecutive
}

// ReturnRemaining returns the ticks left on the current return leg.
func (s *Service) ReturnRemaining() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.returnRemaining
}

func (s *Service) send(ctx context.Context, to string, env model.Envelope) {
	env.ID = idgen.New()
	env.From = s.spec.ID
	env.To = to
	if err := s.exchange.Send(ctx, to, &env); err != nil {
		log.Printf("worker %s: send %s to %s: %v", s.spec.ID, env.Kind, to, err)
	}
}

func (s *Service) setState(ctx context.Context, state model.WorkerState) {
	if s.state == state {
		return
	}
	s.state = state
	s.publishState(ctx)
}

func (s *Service) publishState(ctx context.Context) {
	if s.events == nil {
		return
	}
	publisher, err := event.PublisherOf[event.WorkerStateChanged](s.events)
	if err != nil {
		return
	}
	_ = publisher.Publish(ctx, event.NewEvent(
		&event.Context{WorkerID: s.spec.ID, EventType: "workerStateChanged"},
		event.WorkerStateChanged{WorkerID: s.spec.ID, State: s.state}))
}

func (s *Service) publishLoad(ctx context.Context) {
	if s.events == nil {
		return
	}
	publisher, err := event.PublisherOf[event.WorkerLoadChanged](s.events)
	if err != nil {
		return
	}
	_ = publisher.Publish(ctx, event.NewEvent(
		&event.Context{WorkerID: s.spec.ID, EventType: "workerLoadChanged"},
		event.WorkerLoadChanged{WorkerID: s.spec.ID, Load: s.load, Capacity: s.spec.CapacityWeight}))
}
