package coordinator

import (
	"context"
	"log"

	"github.com/courierkit/dispatch/model"
	"github.com/courierkit/dispatch/service/event"
)

// handleSubmitTask admits a task into the pool. A submission without a task
// draws one from the generator.
func (s *Service) handleSubmitTask(ctx context.Context, env *model.Envelope) {
	task := env.Task
	if task == nil {
		task = s.tasks.Generate("")
	}
	s.admit(ctx, task)
}

func (s *Service) admit(ctx context.Context, task *model.Task) {
	s.pool.Submit(task)
	publish(ctx, s.events, &event.Context{TaskID: task.ID, EventType: "taskCreated"},
		event.TaskCreated{Task: task})
}

// handleRequestTask answers a worker pulling for work. Greedy mode offers the
// best fitting task directly; auction mode parks the worker until the next
// call-for-bids round.
func (s *Service) handleRequestTask(ctx context.Context, env *model.Envelope) {
	spec, ok := s.workers[env.From]
	if !ok {
		log.Printf("coordinator: task request from unknown worker %s", env.From)
		return
	}

	if s.config.Mode == ModeAuction {
		s.waiting[env.From] = true
		if s.pool.Size() == 0 && s.auction.Task() == nil {
			s.send(ctx, env.From, model.Envelope{Kind: model.KindRefuse, Reason: model.ReasonNoTasks})
		}
		return
	}

	task, reason := s.pool.Request(env.From, env.Load, env.Items, spec.CapacityWeight, spec.CapacitySlots)
	if task == nil {
		s.send(ctx, env.From, model.Envelope{Kind: model.KindRefuse, Reason: reason})
		return
	}
	s.send(ctx, env.From, model.Envelope{Kind: model.KindOffer, Task: task, TaskID: task.ID})
	publish(ctx, s.events, &event.Context{WorkerID: env.From, TaskID: task.ID, EventType: "taskOffered"},
		event.TaskOffered{WorkerID: env.From, Task: task})
}

func (s *Service) handleConfirmPickup(ctx context.Context, env *model.Envelope) {
	if err := s.pool.ConfirmPickup(env.From, env.TaskID); err != nil {
		log.Printf("coordinator: pickup of %s by %s: %v", env.TaskID, env.From, err)
		return
	}
	delete(s.waiting, env.From)
}

// handleRefuse processes worker-side refusals: a refused offer returns the
// task to the pool; an overload notice only parks the worker.
func (s *Service) handleRefuse(ctx context.Context, env *model.Envelope) {
	if env.Reason == model.ReasonOverloaded {
		delete(s.waiting, env.From)
		log.Printf("coordinator: worker %s overloaded, cooling down", env.From)
		return
	}
	if env.TaskID == "" {
		return
	}
	if err := s.pool.RejectOffer(env.From, env.TaskID); err != nil {
		log.Printf("coordinator: refusal of %s by %s: %v", env.TaskID, env.From, err)
	}
}

func (s *Service) handleBid(ctx context.Context, env *model.Envelope) {
	bid := model.Bid{
		WorkerID:     env.From,
		Score:        env.Score,
		PriorityRank: env.PriorityRank,
		At:           env.At,
	}
	if !s.auction.Bid(bid) {
		log.Printf("coordinator: late bid from %s on %s dropped", env.From, env.TaskID)
	}
}

// handleDelivered retires the task and schedules its replacement. A rescuer's
// first delivery regenerates the original task's category.
func (s *Service) handleDelivered(ctx context.Context, env *model.Envelope) {
	if _, err := s.pool.CompleteDelivery(env.From, env.TaskID); err != nil {
		log.Printf("coordinator: completion of %s by %s: %v", env.TaskID, env.From, err)
		return
	}

	if s.config.Regeneration.DelayTicks <= 0 || s.config.Regeneration.Count <= 0 {
		return
	}
	replacement := model.Category("")
	if flagged, ok := s.rescuerFlags[env.From]; ok {
		replacement = flagged
		delete(s.rescuerFlags, env.From)
	}
	for i := 0; i < s.config.Regeneration.Count; i++ {
		s.regen = append(s.regen, &regenEntry{
			remaining: s.config.Regeneration.DelayTicks,
			category:  replacement,
		})
	}
}

func (s *Service) handleDistress(ctx context.Context, env *model.Envelope) {
	call := &model.DistressCall{
		WorkerID:  env.From,
		Task:      env.Task,
		Elapsed:   env.Elapsed,
		Remaining: env.Remaining,
	}
	if err := s.rescue.Open(call); err != nil {
		log.Printf("coordinator: distress from %s: %v", env.From, err)
		return
	}
	_, span := s.startSpan(ctx, "rescue.mission", map[string]string{
		"stranded": env.From,
		"task":     env.TaskID,
	})
	s.rescueSpans[env.From] = span
	publish(ctx, s.events, &event.Context{WorkerID: env.From, TaskID: env.TaskID, EventType: "distressRaised"},
		event.DistressRaised{WorkerID: env.From, Task: env.Task, Elapsed: env.Elapsed, Remaining: env.Remaining})
}

func (s *Service) handleRescueBid(ctx context.Context, env *model.Envelope) {
	bid := model.RescueBid{WorkerID: env.From, Time: env.TravelTime, At: env.At}
	if !s.rescue.Bid(env.StrandedID, bid) {
		log.Printf("coordinator: stray rescue bid from %s for %s dropped", env.From, env.StrandedID)
	}
}

// handleTradeAccept records the ownership change the holder already
// committed to. A late accept after the lock expired is still recorded; the
// workers traded regardless.
func (s *Service) handleTradeAccept(ctx context.Context, env *model.Envelope) {
	if _, locked := s.negotiationTTL[env.TaskID]; !locked {
		log.Printf("coordinator: trade accept for %s arrived after lock expiry", env.TaskID)
	}
	if err := s.pool.Transfer(env.TaskID, env.Holder, env.Requester); err != nil {
		log.Printf("coordinator: trade of %s from %s to %s: %v", env.TaskID, env.Holder, env.Requester, err)
		return
	}
	delete(s.negotiationTTL, env.TaskID)
	publish(ctx, s.events, &event.Context{WorkerID: env.Requester, TaskID: env.TaskID, EventType: "tradeCompleted"},
		event.TradeCompleted{Task: env.Task, FromWorker: env.Holder, ToWorker: env.Requester})
}

// handleTradeQuery scans in-flight holdings for a task the requester should
// take over and locks the first advantageous pair. The reply carries at most
// one opportunity; an empty reply ends the requester's negotiation.
func (s *Service) handleTradeQuery(ctx context.Context, env *model.Envelope) {
	requester, ok := s.workers[env.From]
	if !ok {
		log.Printf("coordinator: trade query from unknown worker %s", env.From)
		return
	}

	holdings := s.pool.Holdings()
	counts := make(map[string]int, len(holdings))
	for _, h := range holdings {
		counts[h.WorkerID]++
	}

	for _, h := range holdings {
		if h.WorkerID == env.From || h.Task == nil {
			continue
		}
		if s.pool.Negotiating(h.TaskID) || s.pool.HolderNegotiating(h.WorkerID) {
			continue
		}
		holder, ok := s.workers[h.WorkerID]
		if !ok {
			continue
		}
		priorityGap := requester.PriorityRank - holder.PriorityRank
		loadGap := counts[h.WorkerID] - env.Items
		if priorityGap < s.config.TradeMinPriorityDiff && loadGap < s.config.TradeMinLoadDiff {
			continue
		}
		if _, err := s.pool.LockNegotiation(h.TaskID, env.From); err != nil {
			continue
		}
		s.negotiationTTL[h.TaskID] = s.config.NegotiationTTL
		s.send(ctx, env.From, model.Envelope{
			Kind: model.KindTradeOpportunities,
			Opportunities: []model.Opportunity{
				{Holder: h.WorkerID, TaskID: h.TaskID, Task: h.Task},
			},
		})
		return
	}
	s.send(ctx, env.From, model.Envelope{Kind: model.KindTradeOpportunities})
}

func (s *Service) handlePause(ctx context.Context, env *model.Envelope) {
	s.paused = true
}

func (s *Service) handleResume(ctx context.Context, env *model.Envelope) {
	s.paused = false
}
