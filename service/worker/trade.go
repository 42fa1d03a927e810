package worker

import (
	"context"

	"github.com/courierkit/dispatch/model"
)

// queryTrades enters Negotiating and asks the coordinator for (holder, task)
// opportunities.
func (s *Service) queryTrades(ctx context.Context) {
	if s.negotiating {
		return
	}
	s.negotiating = true
	s.priorState = s.state
	s.negotiationWait = s.config.NegotiationTimeout
	s.setState(ctx, model.StateNegotiating)
	s.send(ctx, model.CoordinatorAddress, model.Envelope{
		Kind:  model.KindTradeOpportunities,
		Load:  len(s.carried),
		Items: len(s.carried),
	})
}

func (s *Service) abortNegotiation(ctx context.Context) {
	s.negotiating = false
	s.negotiationWait = 0
	state := s.priorState
	if state == "" {
		state = model.StateIdle
	}
	s.setState(ctx, state)
	if state == model.StateIdle {
		s.retryWait = s.config.RetryBackoff
	}
}

// handleTradeOpportunities picks the first proposed task that fits and
// proposes directly to its holder.
func (s *Service) handleTradeOpportunities(ctx context.Context, env *model.Envelope) {
	if s.state != model.StateNegotiating || !s.negotiating {
		return
	}
	for _, opportunity := range env.Opportunities {
		if opportunity.Holder == s.spec.ID || opportunity.Task == nil {
			continue
		}
		if s.load+opportunity.Task.Weight > s.spec.CapacityWeight {
			continue
		}
		if len(s.carried)+1 > s.spec.CapacitySlots {
			continue
		}
		s.negotiationWait = s.config.NegotiationTimeout
		s.send(ctx, opportunity.Holder, model.Envelope{
			Kind:         model.KindTradeRequest,
			TaskID:       opportunity.TaskID,
			PriorityRank: s.spec.PriorityRank,
			Load:         len(s.carried),
		})
		return
	}
	s.abortNegotiation(ctx)
}

// handleTradeRequest is the holder side. The four guards are mandatory: the
// task may have vanished or finished during the negotiation window.
func (s *Service) handleTradeRequest(ctx context.Context, env *model.Envelope) {
	if s.negotiating {
		s.refuseTrade(ctx, env.From, env.TaskID, model.ReasonAlreadyNegotiating)
		return
	}
	if s.tradingTaskID == env.TaskID && env.TaskID != "" {
		// Promised to another requester within the current tick.
		s.refuseTrade(ctx, env.From, env.TaskID, model.ReasonTaskUnderNegotiation)
		return
	}

	var held *delivery
	for _, d := range s.carried {
		if d.task.ID == env.TaskID {
			held = d
			break
		}
	}
	if held == nil {
		s.refuseTrade(ctx, env.From, env.TaskID, model.ReasonTaskGone)
		return
	}
	if held.remaining <= 0 {
		s.refuseTrade(ctx, env.From, env.TaskID, model.ReasonTaskDelivered)
		return
	}

	priorityGap := env.PriorityRank - s.spec.PriorityRank
	loadGap := len(s.carried) - env.Load
	if priorityGap < s.config.TradeMinPriorityDiff && loadGap < s.config.TradeMinLoadDiff {
		s.refuseTrade(ctx, env.From, env.TaskID, model.ReasonNoAdvantage)
		return
	}

	s.giveUp(ctx, held, env.From)
}

// giveUp commits the holder side of a trade: drop the task, hand over its
// current remaining duration and notify the coordinator of the new owner.
func (s *Service) giveUp(ctx context.Context, held *delivery, requester string) {
	kept := s.carried[:0]
	for _, d := range s.carried {
		if d != held {
			kept = append(kept, d)
		}
	}
	s.carried = kept
	s.tradingTaskID = held.task.ID
	s.load -= held.task.Weight
	if s.load < 0 {
		s.load = 0
	}
	s.publishLoad(ctx)

	accept := model.Envelope{
		Kind:      model.KindTradeAccept,
		TaskID:    held.task.ID,
		Task:      held.task,
		Remaining: held.remaining,
		Holder:    s.spec.ID,
		Requester: requester,
	}
	s.send(ctx, requester, accept)
	s.send(ctx, model.CoordinatorAddress, accept)

	if len(s.carried) == 0 && s.state == model.StateDelivering {
		s.returnRemaining = s.elapsedTrip
		if s.returnRemaining <= 0 {
			s.arriveAtBase(ctx)
			return
		}
		s.setState(ctx, model.StateReturning)
	}
}

func (s *Service) refuseTrade(ctx context.Context, to, taskID string, reason model.RefuseReason) {
	s.send(ctx, to, model.Envelope{
		Kind:   model.KindTradeRefuse,
		TaskID: taskID,
		Reason: reason,
	})
}

// handleTradeAccept is the requester side. A late accept after the local
// timeout is still honored; the coordinator has already moved ownership.
func (s *Service) handleTradeAccept(ctx context.Context, env *model.Envelope) {
	if env.Task == nil {
		return
	}
	s.negotiating = false
	s.negotiationWait = 0
	s.carried = append(s.carried, &delivery{
		task:      env.Task,
		remaining: env.Remaining,
		travel:    env.Remaining,
	})
	s.load += env.Task.Weight
	s.publishLoad(ctx)
	s.startDelivery(ctx)
}

func (s *Service) handleTradeRefuse(ctx context.Context, env *model.Envelope) {
	if s.state != model.StateNegotiating {
		return
	}
	s.abortNegotiation(ctx)
}
