package dispatch

import (
	"github.com/courierkit/dispatch/model"
	"github.com/courierkit/dispatch/service/coordinator"
	"github.com/courierkit/dispatch/service/event"
	"github.com/courierkit/dispatch/service/messaging"
	mmemory "github.com/courierkit/dispatch/service/messaging/memory"
	"github.com/courierkit/dispatch/service/worker"
)

// Service wires the coordinator and the worker actors over one in-memory
// exchange. End-users interact with the running simulation through the
// Runtime facade.
type Service struct {
	config       *Config
	eventService *event.Service
	exchange     *messaging.Exchange[model.Envelope]
	runtime      *Runtime
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.exchange = messaging.NewExchange[model.Envelope]()

	inbox := mmemory.NewQueue[model.Envelope](mmemory.DefaultConfig())
	s.exchange.Register(model.CoordinatorAddress, inbox)

	var coordinatorOptions []coordinator.Option
	if s.eventService != nil {
		coordinatorOptions = append(coordinatorOptions, coordinator.WithEventService(s.eventService))
	}
	s.runtime.coordinator = coordinator.New(s.config.Coordinator, s.config.Workers, s.exchange, inbox, coordinatorOptions...)

	roster := make([]string, 0, len(s.config.Workers))
	for _, spec := range s.config.Workers {
		roster = append(roster, spec.ID)
	}
	s.runtime.workers = make(map[string]*worker.Service, len(s.config.Workers))
	for _, spec := range s.config.Workers {
		peers := make([]string, 0, len(roster)-1)
		for _, id := range roster {
			if id != spec.ID {
				peers = append(peers, id)
			}
		}
		workerInbox := mmemory.NewQueue[model.Envelope](mmemory.DefaultConfig())
		s.exchange.Register(spec.ID, workerInbox)
		workerOptions := []worker.Option{worker.WithPeers(peers...)}
		if s.eventService != nil {
			workerOptions = append(workerOptions, worker.WithEventService(s.eventService))
		}
		s.runtime.workers[spec.ID] = worker.New(spec, s.config.Worker, s.exchange, workerInbox, workerOptions...)
	}

	s.runtime.exchange = s.exchange
	s.runtime.tickInterval = s.config.TickInterval
	s.runtime.initialTasks = s.config.InitialTasks
}

// Runtime returns the control facade of the simulation.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// New creates a simulation service. Options are applied over DefaultConfig.
func New(options ...Option) *Service {
	ret := &Service{config: DefaultConfig(), runtime: &Runtime{}}
	ret.init(options)
	return ret
}
