// Package coordinator implements the dispatch actor: it owns the task pool,
// runs auctions and rescue windows, scans trade opportunities and regenerates
// delivered tasks. All state mutates inside a single serialized handler.
package coordinator

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/courierkit/dispatch/internal/idgen"
	"github.com/courierkit/dispatch/model"
	"github.com/courierkit/dispatch/service/auction"
	"github.com/courierkit/dispatch/service/event"
	"github.com/courierkit/dispatch/service/messaging"
	"github.com/courierkit/dispatch/service/pool"
	"github.com/courierkit/dispatch/service/rescue"
	"github.com/courierkit/dispatch/tracing"
)

type handler func(ctx context.Context, env *model.Envelope)

type regenEntry struct {
	remaining int
	category  model.Category
}

// Service is the coordinator actor.
type Service struct {
	config   Config
	exchange *messaging.Exchange[model.Envelope]
	inbox    messaging.Queue[model.Envelope]
	events   *event.Service

	pool    *pool.Service
	auction *auction.Manager
	rescue  *rescue.Manager
	tasks   *generator

	mux     sync.Mutex
	workers map[string]model.WorkerSpec
	order   []string

	waiting        map[string]bool
	rescuerFlags   map[string]model.Category
	regen          []*regenEntry
	negotiationTTL map[string]int
	paused         bool

	auctionSpan *tracing.Span
	rescueSpans map[string]*tracing.Span

	handlers map[model.Kind]handler
	stopped  atomic.Bool
}

// Option customizes the coordinator.
type Option func(*Service)

// WithEventService wires the display/log event stream.
func WithEventService(events *event.Service) Option {
	return func(s *Service) { s.events = events }
}

// New creates a coordinator over the given worker roster.
func New(config Config, workers []model.WorkerSpec, exchange *messaging.Exchange[model.Envelope], inbox messaging.Queue[model.Envelope], opts ...Option) *Service {
	ret := &Service{
		config:         config,
		exchange:       exchange,
		inbox:          inbox,
		pool:           pool.New(),
		auction:        auction.New(config.Auction),
		rescue:         rescue.New(config.Rescue),
		tasks:          newGenerator(config.Seed),
		workers:        make(map[string]model.WorkerSpec, len(workers)),
		waiting:        make(map[string]bool),
		rescuerFlags:   make(map[string]model.Category),
		negotiationTTL: make(map[string]int),
		rescueSpans:    make(map[string]*tracing.Span),
	}
	for _, spec := range workers {
		ret.workers[spec.ID] = spec
		ret.order = append(ret.order, spec.ID)
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.handlers = map[model.Kind]handler{
		model.KindTick:               ret.handleTick,
		model.KindSubmitTask:         ret.handleSubmitTask,
		model.KindRequestTask:        ret.handleRequestTask,
		model.KindConfirmPickup:      ret.handleConfirmPickup,
		model.KindRefuse:             ret.handleRefuse,
		model.KindBid:                ret.handleBid,
		model.KindDelivered:          ret.handleDelivered,
		model.KindDistress:           ret.handleDistress,
		model.KindRescueBid:          ret.handleRescueBid,
		model.KindTradeAccept:        ret.handleTradeAccept,
		model.KindTradeOpportunities: ret.handleTradeQuery,
		model.KindPause:              ret.handlePause,
		model.KindResume:             ret.handleResume,
	}
	return ret
}

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
			log.Printf("coordinator: consume: %v", err)
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
		log.Printf("coordinator: unhandled message kind %s from %s", env.Kind, env.From)
		return
	}
	h(ctx, env)
}

// PoolSize returns the number of unassigned tasks.
func (s *Service) PoolSize() int { return s.pool.Size() }

// InFlight returns the number of tasks held by workers.
func (s *Service) InFlight() int { return s.pool.InFlight() }

// Waiting returns the number of workers waiting for an auction.
func (s *Service) Waiting() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return len(s.waiting)
}

func (s *Service) send(ctx context.Context, to string, env model.Envelope) {
	env.ID = idgen.New()
	env.From = model.CoordinatorAddress
	env.To = to
	if err := s.exchange.Send(ctx, to, &env); err != nil {
		log.Printf("coordinator: send %s to %s: %v", env.Kind, to, err)
	}
}

func publish[T any](ctx context.Context, events *event.Service, evCtx *event.Context, payload T) {
	if events == nil {
		return
	}
	publisher, err := event.PublisherOf[T](events)
	if err != nil {
		return
	}
	_ = publisher.Publish(ctx, event.NewEvent(evCtx, payload))
}
