// Package composer assembles sub-composer state into outbound messages and drafts.
package composer

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/composer/attachments"
	"github.com/ras0q/lazycompose/internal/composer/customdata"
	"github.com/ras0q/lazycompose/internal/composer/linkpreview"
	"github.com/ras0q/lazycompose/internal/composer/location"
	"github.com/ras0q/lazycompose/internal/composer/poll"
	"github.com/ras0q/lazycompose/internal/composer/textcomposer"
	"github.com/ras0q/lazycompose/internal/composer/uploads"
	"github.com/ras0q/lazycompose/internal/config"
	"github.com/ras0q/lazycompose/internal/logging"
	"github.com/ras0q/lazycompose/internal/middleware"
	"github.com/ras0q/lazycompose/internal/state"
)

// Notifier receives user-facing warnings and errors.
type Notifier = chat.Notifier

// Channel is the conversation the composer writes into.
type Channel interface {
	CID() string
	CurrentUser() *chat.User
	Members() []chat.User
	Commands() []chat.Command
	Notifications() Notifier
	On(eventType chat.EventType, handler func(chat.Event)) chat.Subscription
	SendMessage(ctx context.Context, local chat.LocalMessage, message chat.Message, opts chat.SendOptions) error
	CreateDraft(ctx context.Context, draft chat.DraftMessage) error
	DeleteDraft(ctx context.Context, parentID string) error
	CreatePoll(ctx context.Context, data chat.CreatePollData) (chat.Poll, error)
}

// LastChange records when the composition last changed locally and when a remote draft
// last replaced it.
type LastChange struct {
	StateUpdate time.Time
	DraftUpdate *time.Time
}

// IsLocal reports whether the latest change came from local input.
func (lc LastChange) IsLocal() bool {
	return lc.DraftUpdate == nil || lc.StateUpdate.After(*lc.DraftUpdate)
}

type State struct {
	ID            string
	LastChange    LastChange
	QuotedMessage *chat.LocalMessage
	PollID        string
}

// Seed is what a composer starts from: nothing, a stored draft or an existing message.
type Seed struct {
	Draft   *chat.Draft
	Message *chat.LocalMessage
}

type Options struct {
	Channel  Channel
	Config   config.Config
	ThreadID string
	Seed     Seed

	Enricher      linkpreview.Enricher
	UploadChecker attachments.UploadChecker
	Uploader      uploads.Uploader

	// Clock defaults to time.Now.
	Clock  func() time.Time
	Logger *zap.Logger
}

type Composer struct {
	channel  Channel
	config   config.Config
	threadID string
	notifier Notifier
	logger   *zap.Logger

	state         *state.Store[State]
	editedMessage atomic.Pointer[chat.LocalMessage]

	text         *textcomposer.Composer
	attachments  *attachments.Manager
	linkPreviews *linkpreview.Manager
	poll         *poll.Composer
	customData   *customdata.Manager
	location     *location.Composer

	compositionMW *middleware.Executor[CompositionState]
	draftMW       *middleware.Executor[DraftState]

	clock    func() time.Time
	clockMu  sync.Mutex
	lastTick time.Time

	subsMu sync.Mutex
	subs   []func()
}

func New(opts Options) *Composer {
	logger := logging.OrNop(opts.Logger).Named("message_composer")

	var notifier Notifier = chat.NopNotifier{}
	if opts.Channel != nil {
		if n := opts.Channel.Notifications(); n != nil {
			notifier = n
		}
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	var source textcomposer.Source
	if opts.Channel != nil {
		source = opts.Channel
	}

	c := &Composer{
		channel:  opts.Channel,
		config:   opts.Config,
		threadID: opts.ThreadID,
		notifier: notifier,
		logger:   logger,
		state:    state.New(State{ID: uuid.NewString()}),
		clock:    clock,
		text: textcomposer.New(textcomposer.Options{
			Config: opts.Config.Text,
			Source: source,
			Logger: logger,
		}),
		attachments: attachments.New(attachments.Options{
			Config:  opts.Config.Attachments,
			Checker: opts.UploadChecker,
			Uploads: uploads.New(uploads.Options{
				Uploader:      opts.Uploader,
				MaxConcurrent: opts.Config.Attachments.MaxConcurrentUploads,
				Logger:        logger,
			}),
			Notifier: notifier,
			Logger:   logger,
		}),
		linkPreviews: linkpreview.New(linkpreview.Options{
			Config:   opts.Config.LinkPreviews,
			Enricher: opts.Enricher,
			Notifier: notifier,
			Logger:   logger,
		}),
		poll: poll.New(poll.Options{
			Config: opts.Config.Poll,
			Logger: logger,
		}),
		customData: customdata.New(customdata.Options{}),
		location: location.New(location.Options{
			Config: opts.Config.Location,
			Now:    clock,
		}),
	}

	c.compositionMW = middleware.New[CompositionState](middleware.WithLogger(logger))
	c.compositionMW.Use(c.compositionMiddleware()...)
	c.draftMW = middleware.New[DraftState](middleware.WithLogger(logger))
	c.draftMW.Use(c.draftMiddleware()...)

	c.InitState(opts.Seed)

	return c
}

func (c *Composer) State() *state.Store[State] {
	return c.state
}

func (c *Composer) ID() string {
	return c.state.LatestValue().ID
}

func (c *Composer) Channel() Channel {
	return c.channel
}

func (c *Composer) ThreadID() string {
	return c.threadID
}

// EditedMessage is the message being edited, or nil for a new message.
func (c *Composer) EditedMessage() *chat.LocalMessage {
	return c.editedMessage.Load()
}

func (c *Composer) QuotedMessage() *chat.LocalMessage {
	return c.state.LatestValue().QuotedMessage
}

func (c *Composer) PollID() string {
	return c.state.LatestValue().PollID
}

func (c *Composer) LastChangeOriginIsLocal() bool {
	return c.state.LatestValue().LastChange.IsLocal()
}

func (c *Composer) TextComposer() *textcomposer.Composer {
	return c.text
}

func (c *Composer) AttachmentManager() *attachments.Manager {
	return c.attachments
}

func (c *Composer) LinkPreviewsManager() *linkpreview.Manager {
	return c.linkPreviews
}

func (c *Composer) PollComposer() *poll.Composer {
	return c.poll
}

func (c *Composer) CustomDataManager() *customdata.Manager {
	return c.customData
}

func (c *Composer) LocationComposer() *location.Composer {
	return c.location
}

// CompositionMiddleware exposes the message pipeline so stages can be inserted or replaced.
func (c *Composer) CompositionMiddleware() *middleware.Executor[CompositionState] {
	return c.compositionMW
}

func (c *Composer) DraftCompositionMiddleware() *middleware.Executor[DraftState] {
	return c.draftMW
}

// CompositionIsEmpty reports whether there is nothing to send or save.
func (c *Composer) CompositionIsEmpty() bool {
	s := c.state.LatestValue()

	return c.text.IsEmpty() &&
		len(c.attachments.Attachments()) == 0 &&
		len(c.linkPreviews.LoadedPreviews()) == 0 &&
		s.PollID == "" &&
		s.QuotedMessage == nil &&
		c.location.Location() == nil
}

// HasSendableData reports whether a composition would carry a payload.
func (c *Composer) HasSendableData() bool {
	return !c.text.IsEmpty() ||
		len(c.attachments.SuccessfulUploads()) > 0 ||
		c.PollID() != "" ||
		c.location.Location() != nil
}

// tick returns a timestamp strictly after every timestamp handed out or observed before.
func (c *Composer) tick() time.Time {
	c.clockMu.Lock()
	defer c.clockMu.Unlock()

	now := c.clock()
	if !now.After(c.lastTick) {
		now = c.lastTick.Add(time.Nanosecond)
	}
	c.lastTick = now

	return now
}

func (c *Composer) observe(t time.Time) {
	c.clockMu.Lock()
	defer c.clockMu.Unlock()

	if t.After(c.lastTick) {
		c.lastTick = t
	}
}

func (c *Composer) logStateUpdate() {
	t := c.tick()
	c.state.PartialNext(func(s *State) {
		s.LastChange.StateUpdate = t
	})
}

func (c *Composer) logDraftUpdate(t time.Time) {
	c.observe(t)
	c.state.PartialNext(func(s *State) {
		s.LastChange.DraftUpdate = &t
	})
}

// SetQuotedMessage sets or clears (nil) the quoted message.
func (c *Composer) SetQuotedMessage(message *chat.LocalMessage) {
	c.state.PartialNext(func(s *State) {
		s.QuotedMessage = message
	})
	c.logStateUpdate()
}

// InitState re-seeds the composer and every sub-composer at once.
func (c *Composer) InitState(seed Seed) {
	var (
		message    *chat.LocalMessage
		id         = uuid.NewString()
		lastChange LastChange
	)

	switch {
	case seed.Message != nil:
		message = seed.Message
		id = message.ID
		c.editedMessage.Store(message)
		lastChange.StateUpdate = c.tick()
	case seed.Draft != nil:
		message = draftToLocalMessage(seed.Draft)
		if message.ID != "" {
			id = message.ID
		}
		c.editedMessage.Store(nil)
		t := seed.Draft.CreatedAt
		c.observe(t)
		lastChange = LastChange{StateUpdate: t, DraftUpdate: &t}
	default:
		c.editedMessage.Store(nil)
	}

	c.text.InitState(message)
	c.linkPreviews.InitState(message)
	c.attachments.InitState(message)
	c.poll.InitState()
	c.customData.InitState(message)
	c.location.InitState(message)

	next := State{ID: id, LastChange: lastChange}
	if message != nil {
		next.QuotedMessage = message.QuotedMessage
		next.PollID = message.PollID
	}
	c.state.Next(next)

	c.logger.Debug("state initialized",
		zap.String("id", id),
		zap.Bool("editing", seed.Message != nil),
		zap.Bool("draft", seed.Draft != nil),
	)
}

// Clear resets the composer to an empty new message.
func (c *Composer) Clear() {
	c.InitState(Seed{})
}

func draftToLocalMessage(d *chat.Draft) *chat.LocalMessage {
	var users []chat.User
	for _, id := range d.Message.MentionedUsers {
		users = append(users, chat.User{ID: id})
	}

	return &chat.LocalMessage{
		ID:              d.Message.ID,
		ParentID:        d.ParentID,
		Text:            d.Message.Text,
		Attachments:     d.Message.Attachments,
		MentionedUsers:  users,
		PollID:          d.Message.PollID,
		QuotedMessageID: d.Message.QuotedMessageID,
		QuotedMessage:   d.QuotedMessage,
		ShowInChannel:   d.Message.ShowInChannel,
		Custom:          d.Message.Custom,
		CreatedAt:       d.CreatedAt,
	}
}

// mentionedUsersInText keeps the users whose mention token is still in text.
// The result is never nil so it can replace an edited message's mentions.
func mentionedUsersInText(users []chat.User, text string) []chat.User {
	res := make([]chat.User, 0, len(users))
	for _, u := range users {
		if strings.Contains(text, "@"+u.ID) || (u.Name != "" && strings.Contains(text, "@"+u.Name)) {
			res = append(res, u)
		}
	}

	return res
}
