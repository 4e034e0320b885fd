// Package customdata keeps integrator-defined fields for the message and for the composer itself.
package customdata

import (
	"maps"

	"github.com/google/go-cmp/cmp"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/state"
)

type State struct {
	// Message is merged into the composed message.
	Message map[string]any
	// Custom is composer-only data that never leaves the process.
	Custom map[string]any
}

// Equal reports whether two custom data maps hold the same values.
type Equal func(a, b map[string]any) bool

type Options struct {
	Equal Equal
}

type Manager struct {
	state *state.Store[State]
	equal Equal
}

func New(opts Options) *Manager {
	equal := opts.Equal
	if equal == nil {
		equal = func(a, b map[string]any) bool {
			return cmp.Equal(a, b)
		}
	}

	return &Manager{
		state: state.New(State{}),
		equal: equal,
	}
}

func (m *Manager) State() *state.Store[State] {
	return m.state
}

func (m *Manager) MessageData() map[string]any {
	return m.state.LatestValue().Message
}

func (m *Manager) CustomData() map[string]any {
	return m.state.LatestValue().Custom
}

// IsMessageDataEqual compares data with the current message data.
func (m *Manager) IsMessageDataEqual(data map[string]any) bool {
	return m.equal(m.MessageData(), data)
}

// SetMessageData replaces the message data. Equal data leaves the state untouched so
// subscribers are not notified.
func (m *Manager) SetMessageData(data map[string]any) {
	if m.IsMessageDataEqual(data) {
		return
	}

	data = maps.Clone(data)
	m.state.PartialNext(func(s *State) {
		s.Message = data
	})
}

func (m *Manager) SetCustomData(data map[string]any) {
	if m.equal(m.CustomData(), data) {
		return
	}

	data = maps.Clone(data)
	m.state.PartialNext(func(s *State) {
		s.Custom = data
	})
}

// InitState seeds the message data from message, or clears it when message is nil.
func (m *Manager) InitState(message *chat.LocalMessage) {
	if message == nil {
		m.state.Next(State{})
		return
	}

	m.state.Next(State{Message: maps.Clone(message.Custom)})
}
