package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/courierkit/dispatch/internal/idgen"
	"github.com/courierkit/dispatch/model"
	"github.com/courierkit/dispatch/service/coordinator"
	"github.com/courierkit/dispatch/service/messaging"
	"github.com/courierkit/dispatch/service/worker"
	"github.com/courierkit/dispatch/tracing"
)

// runtimeAddress marks control envelopes injected from outside the actors.
const runtimeAddress = "runtime"

// Runtime controls a running simulation: the shared tick source, task
// submission, pause/resume and failure injection.
type Runtime struct {
	coordinator *coordinator.Service
	workers     map[string]*worker.Service
	exchange    *messaging.Exchange[model.Envelope]

	tickInterval time.Duration
	initialTasks int

	started atomic.Bool
	paused  atomic.Bool
	cancel  context.CancelFunc
	span    *tracing.Span
}

// Start seeds the pool and launches every actor plus the tick source. It is
// idempotent; only the first call has an effect.
func (r *Runtime) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return nil
	}
	ctx, r.cancel = context.WithCancel(ctx)
	ctx, r.span = tracing.StartSpan(ctx, "simulation.run", "SERVER")

	for i := 0; i < r.initialTasks; i++ {
		if err := r.SubmitTask(ctx, nil); err != nil {
			return err
		}
	}

	go r.coordinator.Start(ctx)
	for _, w := range r.workers {
		go w.Start(ctx)
	}
	if r.tickInterval > 0 {
		go r.runTicker(ctx)
	}
	return nil
}

func (r *Runtime) runTicker(ctx context.Context) {
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.paused.Load() {
				continue
			}
			r.Tick(ctx)
		}
	}
}

// Tick advances simulated time by one step for every actor.
func (r *Runtime) Tick(ctx context.Context) {
	r.broadcast(ctx, model.Envelope{Kind: model.KindTick})
}

// Pause freezes all countdowns; in-flight messages still drain.
func (r *Runtime) Pause(ctx context.Context) {
	r.paused.Store(true)
	r.broadcast(ctx, model.Envelope{Kind: model.KindPause})
}

// Resume restarts the countdowns where they stopped.
func (r *Runtime) Resume(ctx context.Context) {
	r.paused.Store(false)
	r.broadcast(ctx, model.Envelope{Kind: model.KindResume})
}

// SubmitTask admits a task into the pool; a nil task draws a generated one.
func (r *Runtime) SubmitTask(ctx context.Context, task *model.Task) error {
	return r.send(ctx, model.CoordinatorAddress, model.Envelope{
		Kind: model.KindSubmitTask,
		Task: task,
	})
}

// FailWorker injects a breakdown into the worker, stranding it when it is
// mid-delivery.
func (r *Runtime) FailWorker(ctx context.Context, workerID string) error {
	if _, ok := r.workers[workerID]; !ok {
		return fmt.Errorf("unknown worker %q", workerID)
	}
	return r.send(ctx, workerID, model.Envelope{Kind: model.KindTriggerFailure})
}

// PoolSize returns the number of unassigned tasks.
func (r *Runtime) PoolSize() int {
	return r.coordinator.PoolSize()
}

// InFlight returns the number of tasks currently held by workers.
func (r *Runtime) InFlight() int {
	return r.coordinator.InFlight()
}

// WorkerState reports the state of one worker.
func (r *Runtime) WorkerState(workerID string) (model.WorkerState, bool) {
	w, ok := r.workers[workerID]
	if !ok {
		return "", false
	}
	return w.State(), true
}

// Shutdown stops the tick source and every actor.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	r.coordinator.Shutdown()
	for _, w := range r.workers {
		w.Shutdown()
	}
	tracing.EndSpan(r.span, nil)
	r.span = nil
	return nil
}

func (r *Runtime) broadcast(ctx context.Context, env model.Envelope) {
	_ = r.send(ctx, model.CoordinatorAddress, env)
	for workerID := range r.workers {
		_ = r.send(ctx, workerID, env)
	}
}

func (r *Runtime) send(ctx context.Context, to string, env model.Envelope) error {
	env.ID = idgen.New()
	env.From = runtimeAddress
	env.To = to
	return r.exchange.Send(ctx, to, &env)
}
