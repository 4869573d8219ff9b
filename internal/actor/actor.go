// internal/actor/actor.go

// Package actor runs the long-lived control-plane workers. Each worker owns
// its state privately and is driven from a single goroutine that waits on
// its inbound channel with a timeout.
package actor

import (
	"context"
	"errors"
	"time"

	"github.com/AlverezYari/skyframe/internal/logging"
	"go.uber.org/zap"
)

// ErrClosed is returned by Send when the context ends before delivery.
var ErrClosed = errors.New("actor: receiver gone")

// Actor handles one message at a time and runs Periodic whenever no message
// arrived within its tick period.
type Actor[T any] interface {
	Process(msg T) error
	Periodic() error
}

// Run drives a until rx is closed or ctx ends. A period of zero or less
// blocks on rx without ever calling Periodic. Errors from the actor are
// logged and do not stop the loop.
func Run[T any](ctx context.Context, logger *zap.Logger, rx <-chan T, period time.Duration, a Actor[T]) {
	logger.Debug("actor started", zap.Duration("period", period))
	defer logger.Debug("actor stopped")

	var timer *time.Timer
	var tick <-chan time.Time
	if period > 0 {
		timer = time.NewTimer(period)
		defer timer.Stop()
		tick = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-rx:
			if !ok {
				return
			}
			logging.LogErr(logger, "process", a.Process(msg))
		case <-tick:
			logging.LogErr(logger, "periodic", a.Periodic())
		}

		if timer != nil {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(period)
		}
	}
}

// Send delivers msg on ch, giving up once ctx is done.
func Send[T any](ctx context.Context, ch chan<- T, msg T) error {
	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ErrClosed
	}
}

// Sender binds Send to a channel for components that only emit messages.
func Sender[T any](ctx context.Context, ch chan<- T) func(T) error {
	return func(msg T) error {
		return Send(ctx, ch, msg)
	}
}

// ErrFull is returned by an Offer func when the receiver is not keeping up.
var ErrFull = errors.New("actor: receiver busy")

// Offer binds a non-blocking send to a channel. Messages are dropped with
// ErrFull while the channel buffer is full.
func Offer[T any](ch chan<- T) func(T) error {
	return func(msg T) error {
		select {
		case ch <- msg:
			return nil
		default:
			return ErrFull
		}
	}
}
