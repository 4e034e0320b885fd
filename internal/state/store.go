// Package state provides a reactive value container shared by the composers.
package state

import (
	"slices"
	"sync"
)

// Listener receives the value after a change together with the value it replaced.
type Listener[T any] func(next, prev T)

type subscription[T any] struct {
	id       uint64
	listener Listener[T]
}

// Store holds one value that is replaced as a whole on every change.
type Store[T any] struct {
	mu        sync.RWMutex
	value     T
	listeners []subscription[T]
	nextID    uint64
}

func New[T any](initial T) *Store[T] {
	return &Store[T]{
		value: initial,
	}
}

// LatestValue returns a snapshot of the current value.
func (s *Store[T]) LatestValue() T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.value
}

// Next replaces the current value and notifies listeners.
func (s *Store[T]) Next(value T) {
	s.mu.Lock()
	prev := s.value
	s.value = value
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, sub := range listeners {
		sub.listener(value, prev)
	}
}

// PartialNext applies patch to a shallow copy of the current value and stores the result.
func (s *Store[T]) PartialNext(patch func(v *T)) {
	s.mu.Lock()
	prev := s.value
	next := prev
	patch(&next)
	s.value = next
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, sub := range listeners {
		sub.listener(next, prev)
	}
}

// Subscribe registers listener and returns a function that removes it.
// The listener is not called with the current value.
func (s *Store[T]) Subscribe(listener Listener[T]) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription[T]{id: id, listener: listener})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			s.listeners = slices.DeleteFunc(s.listeners, func(sub subscription[T]) bool {
				return sub.id == id
			})
		})
	}
}

// SubscribeWithSelector calls listener only when the selected part of the value changes
// according to equal.
func SubscribeWithSelector[T, S any](
	s *Store[T],
	selector func(T) S,
	equal func(a, b S) bool,
	listener Listener[S],
) (unsubscribe func()) {
	return s.Subscribe(func(next, prev T) {
		nextSelected, prevSelected := selector(next), selector(prev)
		if equal(nextSelected, prevSelected) {
			return
		}

		listener(nextSelected, prevSelected)
	})
}

// ListenerCount reports how many listeners are registered.
func (s *Store[T]) ListenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.listeners)
}
