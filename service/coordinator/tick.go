package coordinator

import (
	"context"
	"fmt"
	"log"

	"github.com/courierkit/dispatch/model"
	"github.com/courierkit/dispatch/service/auction"
	"github.com/courierkit/dispatch/service/event"
	"github.com/courierkit/dispatch/tracing"
)

// handleTick advances every coordinator-side countdown: regeneration delays,
// negotiation locks, rescue windows and the auction round, then opens the
// next round if one is due.
func (s *Service) handleTick(ctx context.Context, env *model.Envelope) {
	if s.paused {
		return
	}
	s.tickRegeneration(ctx)
	s.tickNegotiations(ctx)
	s.tickRescues(ctx)
	if s.auction.Tick() {
		s.resolveAuction(ctx)
	}
	s.maybeOpenAuction(ctx)
}

func (s *Service) tickRegeneration(ctx context.Context) {
	kept := s.regen[:0]
	for _, entry := range s.regen {
		entry.remaining--
		if entry.remaining > 0 {
			kept = append(kept, entry)
			continue
		}
		task := s.tasks.Generate(entry.category)
		log.Printf("coordinator: regenerated task %s (%s)", task.ID, task.Category)
		publish(ctx, s.events, &event.Context{TaskID: task.ID, EventType: "logLine"},
			event.LogLine{Text: fmt.Sprintf("regenerated %s task %s", task.Category, task.ID)})
		s.admit(ctx, task)
	}
	s.regen = kept
}

func (s *Service) tickNegotiations(ctx context.Context) {
	for taskID, remaining := range s.negotiationTTL {
		remaining--
		if remaining > 0 {
			s.negotiationTTL[taskID] = remaining
			continue
		}
		delete(s.negotiationTTL, taskID)
		s.pool.ReleaseNegotiation(taskID)
		log.Printf("coordinator: negotiation lock on %s expired", taskID)
	}
}

func (s *Service) tickRescues(ctx context.Context) {
	for _, strandedID := range s.rescue.Tick() {
		s.resolveRescue(ctx, strandedID)
	}
}

// resolveRescue awards a closed rescue window to the lowest bidder. Without
// bids the window restarts; the stranded worker is never abandoned.
func (s *Service) resolveRescue(ctx context.Context, strandedID string) {
	winner, call, err := s.rescue.Resolve(strandedID)
	if err != nil {
		log.Printf("coordinator: rescue for %s: %v", strandedID, err)
		return
	}
	if winner == nil {
		log.Printf("coordinator: no rescue bids for %s, window restarted", strandedID)
		s.solicitRescue(ctx, strandedID, call)
		return
	}

	if err := s.pool.Transfer(call.Task.ID, strandedID, winner.WorkerID); err != nil {
		log.Printf("coordinator: rescue transfer of %s to %s: %v", call.Task.ID, winner.WorkerID, err)
	}
	s.rescuerFlags[winner.WorkerID] = call.Task.Category
	s.send(ctx, winner.WorkerID, model.Envelope{
		Kind:       model.KindRescueAward,
		Task:       call.Task,
		TaskID:     call.Task.ID,
		Remaining:  call.Remaining,
		TravelTime: winner.Time,
		StrandedID: strandedID,
	})

	if span, ok := s.rescueSpans[strandedID]; ok {
		span.WithAttributes(map[string]string{"rescuer": winner.WorkerID})
		tracing.EndSpan(span, nil)
		delete(s.rescueSpans, strandedID)
	}
	publish(ctx, s.events, &event.Context{WorkerID: winner.WorkerID, TaskID: call.Task.ID, EventType: "rescueAwarded"},
		event.RescueAwarded{Rescuer: winner.WorkerID, Stranded: strandedID})
}

// solicitRescue re-broadcasts an unanswered distress call so the restarted
// window can collect fresh bids. Workers only bid when asked; a silent
// restart would close empty again.
func (s *Service) solicitRescue(ctx context.Context, strandedID string, call *model.DistressCall) {
	for _, workerID := range s.order {
		if workerID == strandedID {
			continue
		}
		s.send(ctx, workerID, model.Envelope{
			Kind:       model.KindDistress,
			Task:       call.Task,
			TaskID:     call.Task.ID,
			StrandedID: strandedID,
			Elapsed:    call.Elapsed,
			Remaining:  call.Remaining,
		})
	}
}

// resolveAuction closes the current round: award to the winner, deny the
// rest, or return the task to the pool when nobody bid.
func (s *Service) resolveAuction(ctx context.Context) {
	result, err := s.auction.Resolve()
	if err != nil {
		log.Printf("coordinator: auction resolve: %v", err)
		return
	}
	defer func() {
		tracing.EndSpan(s.auctionSpan, nil)
		s.auctionSpan = nil
	}()

	if result.Winner == nil {
		log.Printf("coordinator: no bids for %s, returned to pool", result.Task.ID)
		s.pool.Return(result.Task)
		return
	}

	winner := *result.Winner
	if err := s.pool.OfferTo(result.Task, winner.WorkerID); err != nil {
		log.Printf("coordinator: award of %s to %s: %v", result.Task.ID, winner.WorkerID, err)
		s.pool.Return(result.Task)
		return
	}
	delete(s.waiting, winner.WorkerID)
	s.send(ctx, winner.WorkerID, model.Envelope{
		Kind:   model.KindAward,
		Task:   result.Task,
		TaskID: result.Task.ID,
	})
	for _, bid := range result.Bids[1:] {
		s.send(ctx, bid.WorkerID, model.Envelope{
			Kind:   model.KindDeny,
			TaskID: result.Task.ID,
			Winner: winner.WorkerID,
			Gap:    winner.Score - bid.Score,
		})
	}
	if s.auctionSpan != nil {
		s.auctionSpan.WithAttributes(map[string]string{"winner": winner.WorkerID})
	}
	publish(ctx, s.events, &event.Context{WorkerID: winner.WorkerID, TaskID: result.Task.ID, EventType: "auctionResult"},
		event.AuctionResult{Task: result.Task, Winner: winner.WorkerID, Bids: result.Bids})
}

// maybeOpenAuction starts a round when workers are waiting, tasks are
// available and the previous round is fully settled.
func (s *Service) maybeOpenAuction(ctx context.Context) {
	if s.config.Mode != ModeAuction {
		return
	}
	if s.auction.State() != auction.StateIdle || s.auction.CoolingDown() {
		return
	}
	if len(s.waiting) == 0 || s.pool.Size() == 0 {
		return
	}

	task := s.pool.TakeHead()
	if task == nil {
		return
	}
	if err := s.auction.Open(task); err != nil {
		log.Printf("coordinator: auction open for %s: %v", task.ID, err)
		s.pool.Return(task)
		return
	}
	_, s.auctionSpan = s.startSpan(ctx, "auction.round", map[string]string{"task": task.ID})
	for _, workerID := range s.order {
		s.send(ctx, workerID, model.Envelope{
			Kind:   model.KindCFP,
			Task:   task,
			TaskID: task.ID,
		})
	}
}

func (s *Service) startSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, *tracing.Span) {
	ctx, span := tracing.StartSpan(ctx, name, "INTERNAL")
	span.WithAttributes(attrs)
	return ctx, span
}
