package composer

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/ras0q/lazycompose/internal/chat"
)

var ErrNoChannel = errors.New("composer: no channel")

func (c *Composer) reportError(msgType, message string, err error, ctx map[string]any) {
	c.notifier.AddError(chat.Notification{
		Severity: chat.SeverityError,
		Message:  message,
		Origin: chat.NotificationOrigin{
			Emitter: "MessageComposer",
			Context: ctx,
		},
		Type:   msgType,
		Reason: err.Error(),
		Err:    err,
	})
}

// SendMessage composes and sends the message, then clears the composer. It returns nil
// without sending when the composition was discarded.
func (c *Composer) SendMessage(ctx context.Context) (*MessageComposition, error) {
	if c.channel == nil {
		return nil, ErrNoChannel
	}

	comp, err := c.Compose(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "compose message")
	}
	if comp == nil {
		return nil, nil
	}

	if err := c.channel.SendMessage(ctx, comp.LocalMessage, comp.Message, comp.SendOptions); err != nil {
		c.reportError("api:message:send:failed", "Failed to send the message", err, map[string]any{"messageID": comp.Message.ID})
		return comp, errors.Wrap(err, "send message")
	}

	c.logger.Debug("message sent", zap.String("id", comp.Message.ID))
	c.Clear()

	return comp, nil
}

// CreatePoll creates the poll being edited and attaches it to the composition.
func (c *Composer) CreatePoll(ctx context.Context) error {
	if c.channel == nil {
		return ErrNoChannel
	}

	data, err := c.poll.Compose(ctx)
	if err != nil {
		return errors.Wrap(err, "compose poll")
	}
	if data == nil {
		return nil
	}

	p, err := c.channel.CreatePoll(ctx, *data)
	if err != nil {
		c.reportError("api:poll:create:failed", "Failed to create the poll", err, map[string]any{"pollName": data.Name})
		return errors.Wrap(err, "create poll")
	}

	c.state.PartialNext(func(s *State) {
		s.PollID = p.ID
	})
	c.logStateUpdate()

	return nil
}

// CreateDraft stores the current composition as a draft. It does nothing when drafts are
// disabled or the composition is not worth saving.
func (c *Composer) CreateDraft(ctx context.Context) error {
	if c.channel == nil {
		return ErrNoChannel
	}
	if !c.config.Drafts.Enabled || c.EditedMessage() != nil {
		return nil
	}

	comp, err := c.ComposeDraft(ctx)
	if err != nil {
		return errors.Wrap(err, "compose draft")
	}
	if comp == nil {
		return nil
	}

	if err := c.channel.CreateDraft(ctx, comp.Draft); err != nil {
		c.reportError("api:draft:create:failed", "Failed to save the draft", err, map[string]any{"draftID": comp.Draft.ID})
		return errors.Wrap(err, "create draft")
	}

	return nil
}

// DeleteDraft removes the stored draft of this composer's thread.
func (c *Composer) DeleteDraft(ctx context.Context) error {
	if c.channel == nil {
		return ErrNoChannel
	}
	if !c.config.Drafts.Enabled || c.EditedMessage() != nil {
		return nil
	}

	if err := c.channel.DeleteDraft(ctx, c.threadID); err != nil {
		c.reportError("api:draft:delete:failed", "Failed to delete the draft", err, map[string]any{"parentID": c.threadID})
		return errors.Wrap(err, "delete draft")
	}

	return nil
}
