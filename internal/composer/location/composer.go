// Package location attaches a static or live shared location to a message.
package location

import (
	"time"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/config"
	"github.com/ras0q/lazycompose/internal/state"
)

type State struct {
	Location *chat.SharedLocation
}

type Options struct {
	Config config.LocationConfig
	// Now defaults to time.Now.
	Now func() time.Time
}

type Composer struct {
	config config.LocationConfig
	now    func() time.Time
	state  *state.Store[State]
}

func New(opts Options) *Composer {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Composer{
		config: opts.Config,
		now:    now,
		state:  state.New(State{}),
	}
}

func (c *Composer) State() *state.Store[State] {
	return c.state
}

func (c *Composer) Enabled() bool {
	return c.config.Enabled
}

func (c *Composer) DeviceID() string {
	return c.config.DeviceID
}

func (c *Composer) Location() *chat.SharedLocation {
	return c.state.LatestValue().Location
}

// SetData shares a location. A positive duration makes it live until now+duration.
func (c *Composer) SetData(latitude, longitude float64, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	loc := &chat.SharedLocation{
		Latitude:          latitude,
		Longitude:         longitude,
		CreatedByDeviceID: c.config.DeviceID,
	}
	if duration > 0 {
		endAt := c.now().Add(duration)
		loc.EndAt = &endAt
	}

	c.state.Next(State{Location: loc})
}

func (c *Composer) Clear() {
	c.state.Next(State{})
}

// InitState seeds the location from message, or clears it when message is nil.
func (c *Composer) InitState(message *chat.LocalMessage) {
	if message == nil || message.SharedLocation == nil {
		c.Clear()
		return
	}

	loc := *message.SharedLocation
	c.state.Next(State{Location: &loc})
}
