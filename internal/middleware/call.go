package middleware

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrContinuationReused is the panic value raised when a handler advances the chain twice.
var ErrContinuationReused = errors.New("middleware: continuation invoked more than once")

// run is one traversal of a chain. reached is the highest position already dispatched.
type run[T any] struct {
	chain     []Middleware[T]
	eventName string
	reached   int
}

func (r *run[T]) dispatch(ctx context.Context, i int, state T, status Status) (Result[T], error) {
	if i <= r.reached {
		panic(errors.Wrapf(ErrContinuationReused, "event %q position %d", r.eventName, i))
	}
	r.reached = i

	if status != "" {
		return Result[T]{State: state, Status: status}, nil
	}

	for ; i < len(r.chain); i++ {
		handler, ok := r.chain[i].Handlers[r.eventName]
		if !ok {
			r.reached = i
			continue
		}

		r.reached = i
		c := &Call[T]{
			ctx:   ctx,
			run:   r,
			index: i,
			state: state,
		}

		return handler(ctx, c)
	}

	return Result[T]{State: state}, nil
}

// Call is the handle a handler uses to continue the chain.
type Call[T any] struct {
	ctx   context.Context
	run   *run[T]
	index int
	state T
}

// State returns the state this handler was invoked with.
func (c *Call[T]) State() T {
	return c.state
}

// Middleware returns the id of the middleware being run.
func (c *Call[T]) Middleware() string {
	return c.run.chain[c.index].ID
}

// Next continues with state replaced.
func (c *Call[T]) Next(state T) (Result[T], error) {
	return c.run.dispatch(c.ctx, c.index+1, state, "")
}

// Complete stops the chain with state replaced and status complete.
func (c *Call[T]) Complete(state T) (Result[T], error) {
	return c.run.dispatch(c.ctx, c.index+1, state, StatusComplete)
}

// Discard stops the chain keeping the state this handler received.
func (c *Call[T]) Discard() (Result[T], error) {
	return c.run.dispatch(c.ctx, c.index+1, c.state, StatusDiscard)
}

// Forward continues with the state unchanged.
func (c *Call[T]) Forward() (Result[T], error) {
	return c.Next(c.state)
}
