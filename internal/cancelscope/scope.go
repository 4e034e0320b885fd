// Package cancelscope coordinates keyed asynchronous calls where the most recent call wins.
package cancelscope

import (
	"context"
	"sync"
)

// Default is the process-wide scope used when no scope is configured.
var Default = New()

type entry struct {
	gen    uint64
	cancel context.CancelFunc
}

// Scope tracks the latest call per key.
type Scope struct {
	mu      sync.Mutex
	gens    map[string]uint64
	current map[string]entry
}

func New() *Scope {
	return &Scope{
		gens:    make(map[string]uint64),
		current: make(map[string]entry),
	}
}

// Ticket identifies one call started under a key.
type Ticket struct {
	scope  *Scope
	key    string
	gen    uint64
	cancel context.CancelFunc
}

// Begin starts a call under key. Any earlier call still holding a ticket for the same key
// becomes superseded and its context is canceled.
func (s *Scope) Begin(ctx context.Context, key string) (context.Context, *Ticket) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if prev, ok := s.current[key]; ok {
		prev.cancel()
	}
	s.gens[key]++
	gen := s.gens[key]
	s.current[key] = entry{gen: gen, cancel: cancel}
	s.mu.Unlock()

	return ctx, &Ticket{
		scope:  s,
		key:    key,
		gen:    gen,
		cancel: cancel,
	}
}

// Current reports whether no newer call has begun under the ticket's key.
func (t *Ticket) Current() bool {
	t.scope.mu.Lock()
	defer t.scope.mu.Unlock()

	return t.scope.gens[t.key] == t.gen
}

// Release ends the call. It must be called exactly once per ticket.
func (t *Ticket) Release() {
	t.cancel()

	t.scope.mu.Lock()
	defer t.scope.mu.Unlock()

	if e, ok := t.scope.current[t.key]; ok && e.gen == t.gen {
		delete(t.scope.current, t.key)
	}
}
