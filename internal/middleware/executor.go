// Package middleware implements an ordered, reorderable chain of named handlers run per event.
package middleware

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ras0q/lazycompose/internal/cancelscope"
)

// Status is the terminal status of an execution. The zero value means the chain ran to its end.
type Status string

const (
	StatusComplete Status = "complete"
	StatusDiscard  Status = "discard"
)

// Result is what an execution resolves to.
type Result[T any] struct {
	State  T
	Status Status
}

// Discarded reports whether the execution was discarded or superseded.
func (r Result[T]) Discarded() bool {
	return r.Status == StatusDiscard
}

// Mode selects how overlapping executions of the same event interact.
type Mode int

const (
	// ModeCancelable lets only the latest execution per event resolve with a real result.
	ModeCancelable Mode = iota
	// ModeConcurrent runs overlapping executions independently.
	ModeConcurrent
)

// Handler processes one event for one middleware. It must return the result of exactly one
// continuation of c, or its own result to stop the chain.
type Handler[T any] func(ctx context.Context, c *Call[T]) (Result[T], error)

// Middleware is a named set of handlers keyed by event name.
type Middleware[T any] struct {
	ID       string
	Handlers map[string]Handler[T]
}

// Position anchors an insertion relative to an existing middleware id.
type Position struct {
	After  string
	Before string
}

type InsertParams[T any] struct {
	Middleware []Middleware[T]
	Position   Position
	// Unique removes existing middleware with the same ids before inserting.
	Unique bool
}

type ExecuteParams[T any] struct {
	EventName    string
	InitialValue T
	Mode         Mode
}

type options struct {
	id     string
	logger *zap.Logger
	scope  *cancelscope.Scope
}

type Option func(*options)

func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithScope(scope *cancelscope.Scope) Option {
	return func(o *options) { o.scope = scope }
}

// Executor runs middleware in order for a given event.
type Executor[T any] struct {
	id     string
	logger *zap.Logger
	scope  *cancelscope.Scope

	mu         sync.RWMutex
	middleware []Middleware[T]
}

func New[T any](opts ...Option) *Executor[T] {
	o := options{
		id:     uuid.NewString(),
		logger: zap.NewNop(),
		scope:  cancelscope.Default,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Executor[T]{
		id:     o.id,
		logger: o.logger.With(zap.String("executor", o.id)),
		scope:  o.scope,
	}
}

func (e *Executor[T]) ID() string {
	return e.id
}

// IDs returns the middleware ids in execution order.
func (e *Executor[T]) IDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]string, 0, len(e.middleware))
	for _, mw := range e.middleware {
		ids = append(ids, mw.ID)
	}

	return ids
}

// Use appends middleware to the end of the chain.
func (e *Executor[T]) Use(mw ...Middleware[T]) *Executor[T] {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.middleware = append(e.middleware, mw...)

	return e
}

// Replace swaps middleware with matching ids in place and appends the rest.
func (e *Executor[T]) Replace(mw ...Middleware[T]) *Executor[T] {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, m := range mw {
		i := e.indexOf(m.ID)
		if i < 0 {
			e.middleware = append(e.middleware, m)
			continue
		}

		e.middleware[i] = m
	}

	return e
}

// Insert places middleware right after or right before the anchor. A missing anchor makes
// the call a no-op.
func (e *Executor[T]) Insert(p InsertParams[T]) *Executor[T] {
	e.mu.Lock()
	defer e.mu.Unlock()

	target := p.Position.After
	after := target != ""
	if !after {
		target = p.Position.Before
	}

	if e.indexOf(target) < 0 {
		e.logger.Debug("insert anchor not found", zap.String("anchor", target))
		return e
	}

	if p.Unique {
		for _, m := range p.Middleware {
			if m.ID == target {
				continue
			}

			if i := e.indexOf(m.ID); i >= 0 {
				e.middleware = slices.Delete(e.middleware, i, i+1)
			}
		}
	}

	at := e.indexOf(target)
	if after {
		at++
	}
	e.middleware = slices.Insert(e.middleware, at, p.Middleware...)

	return e
}

// SetOrder rearranges the chain to follow ids. Middleware not named in ids is dropped and
// ids without middleware are ignored.
func (e *Executor[T]) SetOrder(ids ...string) *Executor[T] {
	e.mu.Lock()
	defer e.mu.Unlock()

	ordered := make([]Middleware[T], 0, len(ids))
	for _, id := range ids {
		if i := e.indexOf(id); i >= 0 {
			ordered = append(ordered, e.middleware[i])
		}
	}
	e.middleware = ordered

	return e
}

// Remove drops middleware by id.
func (e *Executor[T]) Remove(ids ...string) *Executor[T] {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.middleware = slices.DeleteFunc(e.middleware, func(m Middleware[T]) bool {
		return slices.Contains(ids, m.ID)
	})

	return e
}

func (e *Executor[T]) indexOf(id string) int {
	return slices.IndexFunc(e.middleware, func(m Middleware[T]) bool {
		return m.ID == id
	})
}

func (e *Executor[T]) snapshot() []Middleware[T] {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return slices.Clone(e.middleware)
}

// Execute runs the chain for p.EventName starting from p.InitialValue. Handler errors and
// panics are not recovered.
func (e *Executor[T]) Execute(ctx context.Context, p ExecuteParams[T]) (Result[T], error) {
	chain := e.snapshot()
	start := time.Now()

	if p.Mode == ModeConcurrent {
		res, err := e.run(ctx, chain, p)
		e.logExecution(p.EventName, res.Status, start, err)

		return res, err
	}

	ctx, ticket := e.scope.Begin(ctx, e.id+":"+p.EventName)
	defer ticket.Release()

	res, err := e.run(ctx, chain, p)
	if !ticket.Current() {
		if err != nil && !errors.Is(err, context.Canceled) {
			return res, err
		}

		e.logger.Debug("execution superseded", zap.String("event", p.EventName))

		return Result[T]{State: p.InitialValue, Status: StatusDiscard}, nil
	}
	e.logExecution(p.EventName, res.Status, start, err)

	return res, err
}

func (e *Executor[T]) run(ctx context.Context, chain []Middleware[T], p ExecuteParams[T]) (Result[T], error) {
	r := &run[T]{
		chain:     chain,
		eventName: p.EventName,
		reached:   -1,
	}

	return r.dispatch(ctx, 0, p.InitialValue, "")
}

func (e *Executor[T]) logExecution(eventName string, status Status, start time.Time, err error) {
	if err != nil {
		e.logger.Debug("execution failed",
			zap.String("event", eventName),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}

	e.logger.Debug("execution finished",
		zap.String("event", eventName),
		zap.String("status", string(status)),
		zap.Duration("duration", time.Since(start)),
	)
}
