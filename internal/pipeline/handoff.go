// Package pipeline connects a scan producer, the line pattern calculator and
// a pattern consumer through single-slot handoff channels.
package pipeline

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Send and Receive once a Handoff has been closed
// and drained.
var ErrClosed = errors.New("pipeline: handoff closed")

// Handoff is a bounded channel holding at most one in-flight item. Send
// blocks while the previous item has not been received, so a slow receiver
// applies backpressure to the sender.
type Handoff[T any] struct {
	ch        chan T
	done      chan struct{}
	closeOnce sync.Once
}

// NewHandoff returns an open Handoff.
func NewHandoff[T any]() *Handoff[T] {
	return &Handoff[T]{
		ch:   make(chan T, 1),
		done: make(chan struct{}),
	}
}

// Send hands v to the receiver, blocking until the slot is free, the context
// is cancelled or the handoff is closed.
func (h *Handoff[T]) Send(ctx context.Context, v T) error {
	select {
	case <-h.done:
		return ErrClosed
	default:
	}
	select {
	case h.ch <- v:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until an item is available. After Close, an item already
// in the slot is still delivered before ErrClosed is returned.
func (h *Handoff[T]) Receive(ctx context.Context) (T, error) {
	select {
	case v := <-h.ch:
		return v, nil
	case <-h.done:
		select {
		case v := <-h.ch:
			return v, nil
		default:
		}
		var zero T
		return zero, ErrClosed
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Close marks the handoff closed. It is safe to call more than once and
// concurrently with Send.
func (h *Handoff[T]) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
