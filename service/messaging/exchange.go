package messaging

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Exchange routes payloads to per-address queues. Each actor registers its
// inbox once at startup; delivery is in-order per sender, unordered across
// senders.
type Exchange[T any] struct {
	mux    sync.RWMutex
	queues map[string]Queue[T]
}

// NewExchange creates an empty exchange.
func NewExchange[T any]() *Exchange[T] {
	return &Exchange[T]{queues: make(map[string]Queue[T])}
}

// Register binds an address to a queue; a later registration for the same
// address replaces the earlier one.
func (e *Exchange[T]) Register(address string, queue Queue[T]) {
	e.mux.Lock()
	defer e.mux.Unlock()
	e.queues[address] = queue
}

// Send publishes the payload to the queue registered under address.
func (e *Exchange[T]) Send(ctx context.Context, address string, t *T) error {
	e.mux.RLock()
	queue, ok := e.queues[address]
	e.mux.RUnlock()
	if !ok {
		return fmt.Errorf("no queue registered for address %q", address)
	}
	return queue.Publish(ctx, t)
}

// Addresses returns all registered addresses in stable order.
func (e *Exchange[T]) Addresses() []string {
	e.mux.RLock()
	defer e.mux.RUnlock()
	ret := make([]string, 0, len(e.queues))
	for address := range e.queues {
		ret = append(ret, address)
	}
	sort.Strings(ret)
	return ret
}
