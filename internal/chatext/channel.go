package chatext

import (
	"context"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/logging"
	"github.com/ras0q/lazycompose/internal/state"
	"github.com/ras0q/lazycompose/internal/wire"
)

var ErrNotFound = errors.New("not found")

type ChannelOptions struct {
	CID      string
	User     chat.User
	Members  []chat.User
	Commands []chat.Command

	// UploadBaseURL prefixes the urls handed out for uploads.
	UploadBaseURL string
	Clock         func() time.Time
	Logger        *zap.Logger
}

// Channel is an in-process channel. Requests go through the wire encoding and their effects are
// announced on the bus the way a server would.
type Channel struct {
	cid           string
	user          chat.User
	members       []chat.User
	commands      []chat.Command
	uploadBaseURL string
	clock         func() time.Time
	logger        *zap.Logger

	bus           *Bus
	notifications *Notifications
	messages      *state.Store[[]chat.LocalMessage]

	mu     sync.Mutex
	drafts map[string]chat.Draft
	polls  map[string]chat.CreatePollData
}

func NewChannel(opts ChannelOptions) *Channel {
	logger := logging.OrNop(opts.Logger).Named("channel")

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	baseURL := opts.UploadBaseURL
	if baseURL == "" {
		baseURL = "memory://uploads"
	}

	return &Channel{
		cid:           opts.CID,
		user:          opts.User,
		members:       opts.Members,
		commands:      opts.Commands,
		uploadBaseURL: baseURL,
		clock:         clock,
		logger:        logger,
		bus:           NewBus(),
		notifications: NewNotifications(logger),
		messages:      state.New[[]chat.LocalMessage](nil),
		drafts:        make(map[string]chat.Draft),
		polls:         make(map[string]chat.CreatePollData),
	}
}

func (c *Channel) CID() string {
	return c.cid
}

func (c *Channel) CurrentUser() *chat.User {
	u := c.user
	return &u
}

func (c *Channel) Members() []chat.User {
	return c.members
}

func (c *Channel) Commands() []chat.Command {
	return c.commands
}

func (c *Channel) Notifications() chat.Notifier {
	return c.notifications
}

// NotificationStore is the concrete notification sink, for rendering and dismissing.
func (c *Channel) NotificationStore() *Notifications {
	return c.notifications
}

func (c *Channel) Bus() *Bus {
	return c.bus
}

func (c *Channel) On(eventType chat.EventType, handler func(chat.Event)) chat.Subscription {
	return c.bus.On(eventType, handler)
}

// Messages holds the channel's message list, oldest first.
func (c *Channel) Messages() *state.Store[[]chat.LocalMessage] {
	return c.messages
}

// SendMessage stores message. Sending an existing id updates that message and announces it.
func (c *Channel) SendMessage(ctx context.Context, local chat.LocalMessage, message chat.Message, opts chat.SendOptions) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "send message")
	}

	body := wire.SendMessageRequest(message, opts)
	c.logger.Debug("send message", zap.String("id", message.ID), zap.ByteString("body", body))

	local.Status = chat.MessageStatusReceived
	local.UpdatedAt = c.clock()

	var updated bool
	c.messages.PartialNext(func(list *[]chat.LocalMessage) {
		next := slices.Clone(*list)
		if i := slices.IndexFunc(next, func(m chat.LocalMessage) bool { return m.ID == local.ID }); i >= 0 {
			next[i] = local
			updated = true
		} else {
			next = append(next, local)
		}
		*list = next
	})

	if updated {
		c.bus.Emit(chat.Event{Type: chat.EventMessageUpdated, ChannelCID: c.cid, Message: &local})
	}

	return nil
}

// DeleteMessage removes the message with id and announces it.
func (c *Channel) DeleteMessage(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "delete message")
	}

	var deleted *chat.LocalMessage
	c.messages.PartialNext(func(list *[]chat.LocalMessage) {
		i := slices.IndexFunc(*list, func(m chat.LocalMessage) bool { return m.ID == id })
		if i < 0 {
			return
		}
		m := (*list)[i]
		deleted = &m
		*list = slices.Delete(slices.Clone(*list), i, i+1)
	})
	if deleted == nil {
		return errors.Wrapf(ErrNotFound, "delete message %s", id)
	}

	now := c.clock()
	deleted.DeletedAt = &now
	c.bus.Emit(chat.Event{Type: chat.EventMessageDeleted, ChannelCID: c.cid, Message: deleted})

	return nil
}

// CreateDraft stores draft for its thread and announces the stored version.
func (c *Channel) CreateDraft(ctx context.Context, draft chat.DraftMessage) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "create draft")
	}

	c.logger.Debug("create draft", zap.ByteString("body", wire.CreateDraftRequest(draft)))

	stored, err := wire.DecodeDraft(wire.EncodeDraft(chat.Draft{
		ChannelCID: c.cid,
		ParentID:   draft.ParentID,
		CreatedAt:  c.clock(),
		Message:    draft,
	}))
	if err != nil {
		return errors.Wrap(err, "store draft")
	}
	if stored.Message.QuotedMessageID != "" {
		stored.QuotedMessage = c.message(stored.Message.QuotedMessageID)
	}

	c.mu.Lock()
	c.drafts[stored.ParentID] = stored
	c.mu.Unlock()

	c.bus.Emit(chat.Event{Type: chat.EventDraftUpdated, ChannelCID: c.cid, Draft: &stored})

	return nil
}

func (c *Channel) DeleteDraft(ctx context.Context, parentID string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "delete draft")
	}

	c.mu.Lock()
	d, ok := c.drafts[parentID]
	delete(c.drafts, parentID)
	c.mu.Unlock()

	if ok {
		c.bus.Emit(chat.Event{Type: chat.EventDraftDeleted, ChannelCID: c.cid, Draft: &d})
	}

	return nil
}

// Draft returns the stored draft of the thread rooted at parentID ("" for the channel).
func (c *Channel) Draft(parentID string) (chat.Draft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.drafts[parentID]
	return d, ok
}

func (c *Channel) CreatePoll(ctx context.Context, data chat.CreatePollData) (chat.Poll, error) {
	if err := ctx.Err(); err != nil {
		return chat.Poll{}, errors.Wrap(err, "create poll")
	}

	if data.ID == "" {
		data.ID = uuid.NewString()
	}

	c.mu.Lock()
	c.polls[data.ID] = data
	c.mu.Unlock()

	return chat.Poll{ID: data.ID, Name: data.Name}, nil
}

// Upload accepts file and returns where it would be served from.
func (c *Channel) Upload(ctx context.Context, file chat.File) (chat.UploadResponse, error) {
	if err := ctx.Err(); err != nil {
		return chat.UploadResponse{}, errors.Wrapf(err, "upload %s", file.Name)
	}

	url := c.uploadBaseURL + "/" + path.Join(uuid.NewString(), path.Base(file.Name))
	res := chat.UploadResponse{File: url}
	if file.IsImage() {
		res.ThumbURL = url + "?thumb=1"
	}

	return res, nil
}

func (c *Channel) message(id string) *chat.LocalMessage {
	for _, m := range c.messages.LatestValue() {
		if m.ID == id {
			return &m
		}
	}

	return nil
}
