package worker

import (
	"context"
	"log"

	"github.com/courierkit/dispatch/internal/clock"
	"github.com/courierkit/dispatch/model"
)

// handleTriggerFailure strands the worker mid-delivery. The injection only
// applies while delivering a single task; the rescue protocol hands over
// exactly one task.
func (s *Service) handleTriggerFailure(ctx context.Context, env *model.Envelope) {
	if s.state != model.StateDelivering || len(s.carried) != 1 {
		log.Printf("worker %s: failure injection ignored in state %s with %d carried", s.spec.ID, s.state, len(s.carried))
		return
	}
	active := s.carried[0]
	elapsed := active.travel - active.remaining
	s.strandedAt = elapsed
	s.carried = nil
	s.load = 0
	s.publishLoad(ctx)
	s.setState(ctx, model.StateStranded)

	distress := model.Envelope{
		Kind:      model.KindDistress,
		Task:      active.task,
		TaskID:    active.task.ID,
		Elapsed:   elapsed,
		Remaining: active.remaining,
	}
	s.send(ctx, model.CoordinatorAddress, distress)
	for _, peer := range s.peers {
		if peer == s.spec.ID {
			continue
		}
		s.send(ctx, peer, distress)
	}
}

// handleDistress computes a rescue bid from the current state: idle bids
// pure travel, delivering bids time-until-available plus travel, returning
// bids a randomized interpolation, anything else stays out with an
// artificially high bid. Fatigue adds consecutive deliveries times the
// penalty.
func (s *Service) handleDistress(ctx context.Context, env *model.Envelope) {
	// A relayed call names the stranded worker explicitly; a direct one is
	// identified by its sender.
	stranded := env.From
	if env.StrandedID != "" {
		stranded = env.StrandedID
	}
	if stranded == s.spec.ID || !s.state.CanRescue() {
		return
	}

	travel := env.Elapsed
	if travel < 1 {
		travel = 1
	}
	var bid int
	switch s.state {
	case model.StateIdle, model.StateBidding:
		bid = travel
	case model.StateDelivering:
		bid = s.timeUntilAvailable() + travel
	case model.StateReturning:
		bid = s.returnRemaining + s.rng.Intn(travel+1)
	default:
		bid = 9999
	}
	bid += s.consecutive * s.config.FatiguePenalty

	s.send(ctx, model.CoordinatorAddress, model.Envelope{
		Kind:       model.KindRescueBid,
		StrandedID: stranded,
		TravelTime: bid,
		At:         clock.Now(),
	})
}

func (s *Service) timeUntilAvailable() int {
	total := 0
	for _, d := range s.carried {
		total += d.remaining
	}
	return total
}

// handleRescueAward starts or queues the mission. Mid-delivery the rescue
// waits for the current delivery; a return leg is preempted immediately and
// its progress discarded.
func (s *Service) handleRescueAward(ctx context.Context, env *model.Envelope) {
	if env.Task == nil {
		return
	}
	if s.state == model.StateDelivering {
		award := *env
		s.pendingRescue = &award
		return
	}
	s.beginRescue(ctx, env)
}

func (s *Service) beginRescue(ctx context.Context, award *model.Envelope) {
	s.returnRemaining = 0
	s.rescueTravel = award.TravelTime
	s.rescueStranded = award.StrandedID
	s.rescueTask = award.Task
	s.rescueRemain = award.Remaining
	if s.rescueTravel <= 0 {
		s.rescueTravel = 1
	}
	s.setState(ctx, model.StateRescueMission)
}

// arriveAtStranded hands the worker its rescued cargo: notify the stranded
// peer, then carry the remaining duration as a normal delivery. Rescue and
// delivery form one continuous timer chain.
func (s *Service) arriveAtStranded(ctx context.Context) {
	s.send(ctx, s.rescueStranded, model.Envelope{Kind: model.KindRescued})

	remaining := s.rescueRemain
	if remaining < 1 {
		remaining = 1
	}
	s.carried = append(s.carried, &delivery{
		task:      s.rescueTask,
		remaining: remaining,
		travel:    remaining,
	})
	s.load += s.rescueTask.Weight
	s.publishLoad(ctx)

	s.rescueStranded = ""
	s.rescueTask = nil
	s.rescueRemain = 0
	s.startDelivery(ctx)
}

// handleRescued releases a stranded worker: it walks back with the distance
// it had covered when it failed.
func (s *Service) handleRescued(ctx context.Context, env *model.Envelope) {
	if s.state != model.StateStranded {
		return
	}
	s.consecutive = 0
	s.returnRemaining = s.strandedAt
	s.strandedAt = 0
	if s.returnRemaining <= 0 {
		s.arriveAtBase(ctx)
		return
	}
	s.setState(ctx, model.StateReturning)
}
