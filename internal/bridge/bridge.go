// internal/bridge/bridge.go

// Package bridge relays messages between the network-facing goroutines and
// the actor channels.
package bridge

import (
	"context"

	"github.com/AlverezYari/skyframe/internal/actor"
)

// Forward relays every message from src to dst in order until src is closed
// or ctx ends. dst is left open since it may have other senders.
func Forward[T any](ctx context.Context, src <-chan T, dst chan<- T) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-src:
			if !ok {
				return
			}
			if err := actor.Send(ctx, dst, msg); err != nil {
				return
			}
		}
	}
}

// ForwardAndClose relays like Forward and closes dst once src is drained.
// The caller must be dst's only sender.
func ForwardAndClose[T any](ctx context.Context, src <-chan T, dst chan<- T) {
	defer close(dst)
	Forward(ctx, src, dst)
}
