// Package pool holds the unassigned task pool and the in-flight ownership
// map. Every task is in exactly one of {pool, offered-to-one-worker,
// held-by-one-worker}; an offer removes the task from the pool so that a
// concurrent request can never double-claim it.
package pool

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/courierkit/dispatch/model"
)

var (
	// ErrNotOffered indicates a pickup or rejection for a task that was
	// never offered to the caller.
	ErrNotOffered = errors.New("task not offered")

	// ErrNotHeld indicates a completion or transfer for a task the caller
	// does not hold.
	ErrNotHeld = errors.New("task not held")
)

type entry struct {
	task *model.Task
	seq  int
}

type offer struct {
	task     *model.Task
	workerID string
	seq      int
}

type holding struct {
	task     *model.Task
	workerID string
}

// Holding is a read-only snapshot of one in-flight task.
type Holding struct {
	TaskID   string
	WorkerID string
	Task     *model.Task
}

// Service serializes all pool and ownership mutation behind one mutex; each
// operation is a single critical section.
type Service struct {
	mux          sync.Mutex
	seq          int
	queue        []*entry
	offered      map[string]*offer
	taken        map[string]int
	inFlight     map[string]*holding
	negotiations map[string]*model.TradeNegotiation
}

// New creates an empty pool.
func New() *Service {
	return &Service{
		offered:      make(map[string]*offer),
		taken:        make(map[string]int),
		inFlight:     make(map[string]*holding),
		negotiations: make(map[string]*model.TradeNegotiation),
	}
}

// Submit inserts a task preserving insertion order.
func (s *Service) Submit(task *model.Task) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.seq++
	s.queue = append(s.queue, &entry{task: task, seq: s.seq})
}

// Size returns the number of unassigned tasks.
func (s *Service) Size() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return len(s.queue)
}

// InFlight returns the number of tasks currently held by workers.
func (s *Service) InFlight() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return len(s.inFlight)
}

// Request answers a worker's task request with the best fitting task or a
// refusal reason. Priority-flagged tasks win, then smallest weight, ties by
// insertion order. The offered task leaves the pool immediately; refusals
// remove nothing.
func (s *Service) Request(workerID string, load, items, capWeight, capSlots int) (*model.Task, model.RefuseReason) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if len(s.queue) == 0 {
		return nil, model.ReasonNoTasks
	}
	if items+1 > capSlots {
		return nil, model.ReasonOvercount
	}

	bestIdx := -1
	for i, e := range s.queue {
		if load+e.task.Weight > capWeight {
			continue
		}
		if bestIdx < 0 || better(e, s.queue[bestIdx]) {
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return nil, model.ReasonOverweight
	}

	e := s.queue[bestIdx]
	s.queue = append(s.queue[:bestIdx], s.queue[bestIdx+1:]...)
	s.offered[e.task.ID] = &offer{task: e.task, workerID: workerID, seq: e.seq}
	return e.task, ""
}

func better(a, b *entry) bool {
	if a.task.Priority != b.task.Priority {
		return a.task.Priority
	}
	if a.task.Weight != b.task.Weight {
		return a.task.Weight < b.task.Weight
	}
	return a.seq < b.seq
}

// OfferTo registers an offer made outside Request, e.g. an auction award.
func (s *Service) OfferTo(task *model.Task, workerID string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if existing, ok := s.offered[task.ID]; ok {
		return fmt.Errorf("task %s already offered to %s", task.ID, existing.workerID)
	}
	if existing, ok := s.inFlight[task.ID]; ok {
		return fmt.Errorf("task %s already held by %s", task.ID, existing.workerID)
	}
	s.offered[task.ID] = &offer{task: task, workerID: workerID, seq: s.takenSeq(task.ID)}
	return nil
}

// takenSeq recovers the sequence number recorded by TakeHead, or mints a
// fresh one for a task the pool has never queued.
func (s *Service) takenSeq(taskID string) int {
	if seq, ok := s.taken[taskID]; ok {
		delete(s.taken, taskID)
		return seq
	}
	s.seq++
	return s.seq
}

// ConfirmPickup moves a task from offered to in-delivery. A duplicate confirm
// by the same worker is ignored with a warning, never double-counted.
func (s *Service) ConfirmPickup(workerID, taskID string) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	if h, ok := s.inFlight[taskID]; ok {
		if h.workerID == workerID {
			log.Printf("pool: duplicate pickup confirmation of %s by %s ignored", taskID, workerID)
			return nil
		}
		return fmt.Errorf("task %s held by %s, pickup by %s: %w", taskID, h.workerID, workerID, ErrNotOffered)
	}
	o, ok := s.offered[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, ErrNotOffered)
	}
	if o.workerID != workerID {
		return fmt.Errorf("task %s offered to %s, pickup by %s: %w", taskID, o.workerID, workerID, ErrNotOffered)
	}
	delete(s.offered, taskID)
	s.inFlight[taskID] = &holding{task: o.task, workerID: workerID}
	return nil
}

// RejectOffer returns an offered task to the pool head. The task keeps its
// original sequence number so insertion-order tie-breaks still hold.
func (s *Service) RejectOffer(workerID, taskID string) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	o, ok := s.offered[taskID]
	if !ok || o.workerID != workerID {
		return fmt.Errorf("task %s: %w", taskID, ErrNotOffered)
	}
	delete(s.offered, taskID)
	s.queue = append([]*entry{{task: o.task, seq: o.seq}}, s.queue...)
	return nil
}

// CompleteDelivery removes a delivered task permanently and returns its
// category for the regeneration policy. A duplicate completion returns
// ErrNotHeld and changes nothing.
func (s *Service) CompleteDelivery(workerID, taskID string) (model.Category, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	h, ok := s.inFlight[taskID]
	if !ok {
		return "", fmt.Errorf("task %s: %w", taskID, ErrNotHeld)
	}
	if h.workerID != workerID {
		return "", fmt.Errorf("task %s held by %s, completion by %s: %w", taskID, h.workerID, workerID, ErrNotHeld)
	}
	delete(s.inFlight, taskID)
	delete(s.negotiations, taskID)
	return h.task.Category, nil
}

// Transfer moves in-flight ownership between workers and releases any
// negotiation lock on the task.
func (s *Service) Transfer(taskID, from, to string) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	h, ok := s.inFlight[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, ErrNotHeld)
	}
	if h.workerID != from {
		return fmt.Errorf("task %s held by %s, transfer from %s: %w", taskID, h.workerID, from, ErrNotHeld)
	}
	h.workerID = to
	delete(s.negotiations, taskID)
	return nil
}

// TakeHead removes and returns the best unassigned task for an auction, or
// nil when the pool is empty. The caller owns the task until it is offered
// back via OfferTo or returned via Return.
func (s *Service) TakeHead() *model.Task {
	s.mux.Lock()
	defer s.mux.Unlock()

	if len(s.queue) == 0 {
		return nil
	}
	bestIdx := 0
	for i := 1; i < len(s.queue); i++ {
		if better(s.queue[i], s.queue[bestIdx]) {
			bestIdx = i
		}
	}
	e := s.queue[bestIdx]
	s.queue = append(s.queue[:bestIdx], s.queue[bestIdx+1:]...)
	s.taken[e.task.ID] = e.seq
	return e.task
}

// Return puts a task back at the pool head, e.g. after an auction with no
// bids, keeping its original sequence number.
func (s *Service) Return(task *model.Task) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.queue = append([]*entry{{task: task, seq: s.takenSeq(task.ID)}}, s.queue...)
}

// Holder reports which worker currently holds the task.
func (s *Service) Holder(taskID string) (string, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	h, ok := s.inFlight[taskID]
	if !ok {
		return "", false
	}
	return h.workerID, true
}

// Holdings snapshots all in-flight tasks for the trade opportunity scan.
func (s *Service) Holdings() []Holding {
	s.mux.Lock()
	defer s.mux.Unlock()
	ret := make([]Holding, 0, len(s.inFlight))
	for taskID, h := range s.inFlight {
		ret = append(ret, Holding{TaskID: taskID, WorkerID: h.workerID, Task: h.task})
	}
	return ret
}

// LockNegotiation marks a task as the subject of one active negotiation. A
// second lock attempt on the same task, or on any task of a holder already
// negotiating, fails.
func (s *Service) LockNegotiation(taskID, requester string) (*model.TradeNegotiation, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	h, ok := s.inFlight[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotHeld)
	}
	if _, ok := s.negotiations[taskID]; ok {
		return nil, fmt.Errorf("task %s already under negotiation", taskID)
	}
	for _, n := range s.negotiations {
		if n.Holder == h.workerID {
			return nil, fmt.Errorf("holder %s already negotiating", h.workerID)
		}
	}
	negotiation := &model.TradeNegotiation{
		Requester: requester,
		Holder:    h.workerID,
		TaskID:    taskID,
		Locked:    true,
	}
	s.negotiations[taskID] = negotiation
	return negotiation, nil
}

// ReleaseNegotiation drops the lock, if any.
func (s *Service) ReleaseNegotiation(taskID string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	delete(s.negotiations, taskID)
}

// Negotiating reports whether the task is locked by an active negotiation.
func (s *Service) Negotiating(taskID string) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	_, ok := s.negotiations[taskID]
	return ok
}

// HolderNegotiating reports whether the worker is the holder side of an
// active negotiation.
func (s *Service) HolderNegotiating(workerID string) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	for _, n := range s.negotiations {
		if n.Holder == workerID {
			return true
		}
	}
	return false
}
