package composer

import (
	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/composer/textcomposer"
	"github.com/ras0q/lazycompose/internal/state"
)

// RegisterSubscriptions wires the composer to channel events and to its sub-composers. Calling
// it again while registered does nothing. The returned function releases everything.
func (c *Composer) RegisterSubscriptions() (release func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	if len(c.subs) > 0 {
		return c.UnregisterSubscriptions
	}

	if c.channel != nil {
		c.subs = append(c.subs,
			c.channel.On(chat.EventMessageUpdated, c.onMessageUpdated).Unsubscribe,
			c.channel.On(chat.EventMessageDeleted, c.onMessageDeleted).Unsubscribe,
			c.channel.On(chat.EventDraftUpdated, c.onDraftUpdated).Unsubscribe,
			c.channel.On(chat.EventDraftDeleted, c.onDraftDeleted).Unsubscribe,
		)
	}

	c.subs = append(c.subs,
		state.SubscribeWithSelector(c.text.State(),
			func(s textcomposer.State) string { return s.Text },
			func(a, b string) bool { return a == b },
			func(text, _ string) {
				if c.linkPreviews.Enabled() {
					c.linkPreviews.FindAndEnrichURLs(text)
				}
			},
		),
		c.attachments.Uploads().State().Subscribe(c.attachments.SyncUploads),
		onChange(c.text.State(), c.logStateUpdate),
		onChange(c.attachments.State(), c.logStateUpdate),
		onChange(c.linkPreviews.State(), c.logStateUpdate),
		onChange(c.poll.State(), c.logStateUpdate),
		onChange(c.customData.State(), c.logStateUpdate),
		onChange(c.location.State(), c.logStateUpdate),
	)

	return c.UnregisterSubscriptions
}

// UnregisterSubscriptions releases everything RegisterSubscriptions acquired.
func (c *Composer) UnregisterSubscriptions() {
	c.subsMu.Lock()
	subs := c.subs
	c.subs = nil
	c.subsMu.Unlock()

	for _, unsubscribe := range subs {
		unsubscribe()
	}
}

func onChange[T any](s *state.Store[T], fn func()) func() {
	return s.Subscribe(func(T, T) { fn() })
}

func (c *Composer) onMessageUpdated(e chat.Event) {
	if e.Message == nil {
		return
	}

	if edited := c.EditedMessage(); edited != nil && edited.ID == e.Message.ID {
		c.InitState(Seed{Message: e.Message})
		return
	}

	if q := c.QuotedMessage(); q != nil && q.ID == e.Message.ID {
		message := e.Message
		c.state.PartialNext(func(s *State) {
			s.QuotedMessage = message
		})
	}
}

func (c *Composer) onMessageDeleted(e chat.Event) {
	if e.Message == nil {
		return
	}

	if e.Message.ID == c.ID() {
		c.Clear()
		return
	}

	if q := c.QuotedMessage(); q != nil && q.ID == e.Message.ID {
		c.state.PartialNext(func(s *State) {
			s.QuotedMessage = nil
		})
	}
}

func (c *Composer) draftInScope(d *chat.Draft) bool {
	return d != nil &&
		c.channel != nil &&
		d.ChannelCID == c.channel.CID() &&
		d.ParentID == c.threadID &&
		c.EditedMessage() == nil
}

func (c *Composer) onDraftUpdated(e chat.Event) {
	if !c.draftInScope(e.Draft) {
		return
	}

	if c.isOwnDraftEcho(e.Draft) {
		return
	}

	c.InitState(Seed{Draft: e.Draft})
	c.logDraftUpdate(e.Draft.CreatedAt)
}

// isOwnDraftEcho reports whether d is the draft this composer just saved coming back.
func (c *Composer) isOwnDraftEcho(d *chat.Draft) bool {
	text := c.text.Text()
	if cmd := c.text.Command(); cmd != nil {
		text = "/" + cmd.Name + " " + text
	}

	return d.Message.ID == c.ID() && d.Message.Text == text
}

func (c *Composer) onDraftDeleted(e chat.Event) {
	if !c.draftInScope(e.Draft) {
		return
	}

	c.Clear()
}
