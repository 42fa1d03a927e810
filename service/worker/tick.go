package worker

import (
	"context"
	"sort"

	"github.com/courierkit/dispatch/model"
)

// handleTick advances every countdown. All simulated time flows through
// here; nothing else decrements a counter.
func (s *Service) handleTick(ctx context.Context, env *model.Envelope) {
	if s.paused {
		return
	}
	s.tradingTaskID = ""
	if s.cooldown > 0 {
		s.cooldown--
	}

	switch s.state {
	case model.StateDelivering:
		s.tickDelivery(ctx)
	case model.StateReturning:
		s.returnRemaining--
		if s.returnRemaining <= 0 {
			s.arriveAtBase(ctx)
		}
	case model.StateRescueMission:
		s.rescueTravel--
		if s.rescueTravel <= 0 {
			s.arriveAtStranded(ctx)
		}
	case model.StateNegotiating:
		s.negotiationWait--
		if s.negotiationWait <= 0 {
			s.abortNegotiation(ctx)
		}
	case model.StateIdle:
		if s.retryWait > 0 {
			s.retryWait--
		}
		s.maybeRequest(ctx)
	case model.StateStranded, model.StateBidding:
		// Waiting on another actor; nothing counts down.
	}
}

// tickDelivery advances the active task, the one with the shortest
// remaining time.
func (s *Service) tickDelivery(ctx context.Context) {
	if len(s.carried) == 0 {
		s.beginReturn(ctx)
		return
	}
	active := s.carried[0]
	active.remaining--
	s.elapsedTrip++
	if active.remaining > 0 {
		return
	}

	s.send(ctx, model.CoordinatorAddress, model.Envelope{
		Kind:    model.KindDelivered,
		TaskID:  active.task.ID,
		Elapsed: active.travel,
	})
	s.consecutive++
	s.load -= active.task.Weight
	if s.load < 0 {
		s.load = 0
	}
	s.carried = s.carried[1:]
	s.publishLoad(ctx)

	if len(s.carried) == 0 {
		if s.pendingRescue != nil {
			// Queued rescue runs before the return leg.
			award := s.pendingRescue
			s.pendingRescue = nil
			s.beginRescue(ctx, award)
			return
		}
		s.beginReturn(ctx)
	}
}

func (s *Service) beginReturn(ctx context.Context) {
	s.returnRemaining = s.tripMax
	if s.returnRemaining <= 0 {
		s.arriveAtBase(ctx)
		return
	}
	s.setState(ctx, model.StateReturning)
}

func (s *Service) arriveAtBase(ctx context.Context) {
	s.returnRemaining = 0
	s.elapsedTrip = 0
	s.tripMax = 0
	s.setState(ctx, model.StateIdle)

	if s.config.OverloadThreshold > 0 && s.consecutive >= s.config.OverloadThreshold {
		s.send(ctx, model.CoordinatorAddress, model.Envelope{
			Kind:   model.KindRefuse,
			Reason: model.ReasonOverloaded,
		})
		s.cooldown = s.config.OverloadCooldown
		s.consecutive = 0
		return
	}
	s.maybeRequest(ctx)
}

func (s *Service) maybeRequest(ctx context.Context) {
	if s.requestPending || s.retryWait > 0 || s.cooldown > 0 || s.paused {
		return
	}
	s.requestPending = true
	s.send(ctx, model.CoordinatorAddress, model.Envelope{
		Kind:  model.KindRequestTask,
		Load:  s.load,
		Items: len(s.carried),
	})
}

// startDelivery departs from base with the carried tasks in
// shortest-remaining-time order.
func (s *Service) startDelivery(ctx context.Context) {
	if len(s.carried) == 0 {
		return
	}
	sort.SliceStable(s.carried, func(i, j int) bool {
		return s.carried[i].remaining < s.carried[j].remaining
	})
	s.tripMax = 0
	for _, d := range s.carried {
		if d.travel > s.tripMax {
			s.tripMax = d.travel
		}
	}
	s.elapsedTrip = 0
	s.setState(ctx, model.StateDelivering)
}

func (s *Service) handlePause(ctx context.Context, env *model.Envelope) {
	s.paused = true
}

func (s *Service) handleResume(ctx context.Context, env *model.Envelope) {
	s.paused = false
}
