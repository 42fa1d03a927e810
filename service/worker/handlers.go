package worker

import (
	"context"

	"github.com/courierkit/dispatch/internal/clock"
	"github.com/courierkit/dispatch/model"
	"github.com/courierkit/dispatch/service/event"
)

// handleOffer answers a direct offer. The worker re-checks fit against its
// own capacity; the pool's view of the load may lag a confirm in flight.
func (s *Service) handleOffer(ctx context.Context, env *model.Envelope) {
	s.requestPending = false
	task := env.Task
	if task == nil {
		return
	}
	if s.state != model.StateIdle {
		s.refuseOffer(ctx, task, model.ReasonOvercount)
		return
	}

	if len(s.carried)+1 > s.spec.CapacitySlots {
		s.refuseOffer(ctx, task, model.ReasonOvercount)
		return
	}
	if s.load+task.Weight > s.spec.CapacityWeight {
		s.refuseOffer(ctx, task, model.ReasonOverweight)
		return
	}

	s.accept(ctx, task, s.spec.ScaledDuration(task.Duration))

	// Keep filling until capacity runs out, then depart.
	if s.load < s.spec.CapacityWeight && len(s.carried) < s.spec.CapacitySlots {
		s.maybeRequest(ctx)
		return
	}
	s.startDelivery(ctx)
}

func (s *Service) refuseOffer(ctx context.Context, task *model.Task, reason model.RefuseReason) {
	s.send(ctx, model.CoordinatorAddress, model.Envelope{
		Kind:   model.KindRefuse,
		TaskID: task.ID,
		Reason: reason,
	})
	if s.config.TradeEnabled && s.state == model.StateIdle {
		s.queryTrades(ctx)
	}
}

// accept takes the task on board and confirms the pickup.
func (s *Service) accept(ctx context.Context, task *model.Task, travel int) {
	s.carried = append(s.carried, &delivery{task: task, remaining: travel, travel: travel})
	s.load += task.Weight
	s.send(ctx, model.CoordinatorAddress, model.Envelope{
		Kind:   model.KindConfirmPickup,
		TaskID: task.ID,
	})
	s.publishLoad(ctx)
	if s.events != nil {
		if publisher, err := event.PublisherOf[event.TaskPickedUp](s.events); err == nil {
			_ = publisher.Publish(ctx, event.NewEvent(
				&event.Context{WorkerID: s.spec.ID, TaskID: task.ID, EventType: "taskPickedUp"},
				event.TaskPickedUp{WorkerID: s.spec.ID, Task: task}))
		}
	}
}

// handleRefuse reacts to the coordinator declining a task request. With
// cargo on board any refusal means the fill-up is over and the trip starts.
func (s *Service) handleRefuse(ctx context.Context, env *model.Envelope) {
	s.requestPending = false
	if len(s.carried) > 0 {
		s.startDelivery(ctx)
		return
	}
	s.retryWait = s.config.RetryBackoff
}

// handleCFP answers a call-for-bids when eligible: idle at base, not cooling
// down, with a free slot.
func (s *Service) handleCFP(ctx context.Context, env *model.Envelope) {
	task := env.Task
	if task == nil {
		return
	}
	if !s.state.CanBid() || s.cooldown > 0 {
		return
	}
	if len(s.carried) >= s.spec.CapacitySlots || s.load+task.Weight > s.spec.CapacityWeight {
		return
	}

	score := s.spec.PriorityRank*s.config.Bid.Priority +
		(s.spec.CapacitySlots-len(s.carried))*s.config.Bid.Capacity -
		s.distanceToBase()*s.config.Bid.Distance +
		task.Urgency*s.config.Bid.Urgency
	if score < 0 {
		score = 0
	}

	s.bidTaskID = task.ID
	s.setState(ctx, model.StateBidding)
	s.send(ctx, model.CoordinatorAddress, model.Envelope{
		Kind:         model.KindBid,
		TaskID:       task.ID,
		Score:        score,
		PriorityRank: s.spec.PriorityRank,
		At:           clock.Now(),
	})
}

// distanceToBase is zero at base; while away it equals the trip progress or
// the remaining return leg.
func (s *Service) distanceToBase() int {
	switch s.state {
	case model.StateDelivering:
		return s.elapsedTrip
	case model.StateReturning:
		return s.returnRemaining
	}
	return 0
}

func (s *Service) handleAward(ctx context.Context, env *model.Envelope) {
	task := env.Task
	if task == nil {
		return
	}
	if s.state != model.StateBidding || task.ID != s.bidTaskID {
		// The bid was preempted, e.g. by a rescue award. Hand the task
		// back so the pool can reassign it.
		s.send(ctx, model.CoordinatorAddress, model.Envelope{
			Kind:   model.KindRefuse,
			TaskID: task.ID,
			Reason: model.ReasonOvercount,
		})
		return
	}
	s.bidTaskID = ""
	s.requestPending = false
	s.accept(ctx, task, s.spec.ScaledDuration(task.Duration))
	s.startDelivery(ctx)
}

func (s *Service) handleDeny(ctx context.Context, env *model.Envelope) {
	if s.state != model.StateBidding {
		return
	}
	s.bidTaskID = ""
	s.requestPending = false
	s.setState(ctx, model.StateIdle)

	// Spare capacity after a denial is the proactive trade trigger.
	if s.config.TradeEnabled && len(s.carried) < s.spec.CapacitySlots {
		s.queryTrades(ctx)
	}
}
