// internal/actor/latest.go
package actor

import (
	"context"
	"sync"
)

// Latest is a mailbox that keeps only the newest pending message per key.
// Put never blocks, so an actor acknowledging through it can not be held up
// by a busy receiver. Forward delivers pending messages in the order their
// keys first became pending.
type Latest[K comparable, T any] struct {
	key  func(T) K
	wake chan struct{}

	mu      sync.Mutex
	pending map[K]T
	order   []K
}

func NewLatest[K comparable, T any](key func(T) K) *Latest[K, T] {
	return &Latest[K, T]{
		key:     key,
		wake:    make(chan struct{}, 1),
		pending: map[K]T{},
	}
}

// Put replaces any pending message with the same key.
func (l *Latest[K, T]) Put(msg T) error {
	k := l.key(msg)
	l.mu.Lock()
	if _, ok := l.pending[k]; !ok {
		l.order = append(l.order, k)
	}
	l.pending[k] = msg
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Len reports how many messages are waiting.
func (l *Latest[K, T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

func (l *Latest[K, T]) next() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.order) == 0 {
		var zero T
		return zero, false
	}
	k := l.order[0]
	l.order = l.order[1:]
	msg := l.pending[k]
	delete(l.pending, k)
	return msg, true
}

// Forward sends pending messages to dst until ctx ends.
func (l *Latest[K, T]) Forward(ctx context.Context, dst chan<- T) {
	for {
		msg, ok := l.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-l.wake:
			}
			continue
		}
		if err := Send(ctx, dst, msg); err != nil {
			return
		}
	}
}
