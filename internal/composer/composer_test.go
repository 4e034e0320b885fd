package composer

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/composer/linkpreview"
	"github.com/ras0q/lazycompose/internal/composer/poll"
	"github.com/ras0q/lazycompose/internal/config"
	"github.com/ras0q/lazycompose/internal/middleware"
	"github.com/ras0q/lazycompose/internal/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingNotifier struct {
	mu       sync.Mutex
	warnings []chat.Notification
	errors   []chat.Notification
}

func (n *recordingNotifier) AddWarning(x chat.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, x)
}

func (n *recordingNotifier) AddError(x chat.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, x)
}

type sentMessage struct {
	local   chat.LocalMessage
	message chat.Message
	opts    chat.SendOptions
}

type fakeChannel struct {
	notifier *recordingNotifier
	user     *chat.User

	mu       sync.Mutex
	handlers map[chat.EventType][]*func(chat.Event)
	sent     []sentMessage
	drafts   []chat.DraftMessage
	deleted  []string
	sendErr  error
}

var _ Channel = (*fakeChannel)(nil)

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		notifier: &recordingNotifier{},
		user: &chat.User{
			ID:      "me",
			Name:    "Me",
			Mutes:   []chat.Mute{{TargetID: "spam"}},
			Devices: []chat.Device{{ID: "phone"}},
		},
		handlers: make(map[chat.EventType][]*func(chat.Event)),
	}
}

func (f *fakeChannel) CID() string             { return "messaging:general" }
func (f *fakeChannel) CurrentUser() *chat.User { return f.user }
func (f *fakeChannel) Members() []chat.User    { return []chat.User{{ID: "user1"}, {ID: "user2"}} }
func (f *fakeChannel) Commands() []chat.Command {
	return []chat.Command{{Name: "giphy"}}
}
func (f *fakeChannel) Notifications() Notifier { return f.notifier }

func (f *fakeChannel) On(eventType chat.EventType, handler func(chat.Event)) chat.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	h := &handler
	f.handlers[eventType] = append(f.handlers[eventType], h)

	return chat.SubscriptionFunc(func() {
		f.mu.Lock()
		defer f.mu.Unlock()

		handlers := f.handlers[eventType]
		for i, x := range handlers {
			if x == h {
				f.handlers[eventType] = append(handlers[:i:i], handlers[i+1:]...)
				return
			}
		}
	})
}

func (f *fakeChannel) handlerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, hs := range f.handlers {
		n += len(hs)
	}

	return n
}

func (f *fakeChannel) emit(e chat.Event) {
	f.mu.Lock()
	handlers := append([]*func(chat.Event){}, f.handlers[e.Type]...)
	f.mu.Unlock()

	for _, h := range handlers {
		(*h)(e)
	}
}

func (f *fakeChannel) SendMessage(_ context.Context, local chat.LocalMessage, message chat.Message, opts chat.SendOptions) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{local: local, message: message, opts: opts})
	return nil
}

func (f *fakeChannel) CreateDraft(_ context.Context, draft chat.DraftMessage) error {
	f.drafts = append(f.drafts, draft)
	return nil
}

func (f *fakeChannel) DeleteDraft(_ context.Context, parentID string) error {
	f.deleted = append(f.deleted, parentID)
	return nil
}

func (f *fakeChannel) CreatePoll(_ context.Context, data chat.CreatePollData) (chat.Poll, error) {
	return chat.Poll{ID: "poll-1", Name: data.Name}, nil
}

type staticEnricher struct{}

func (staticEnricher) EnrichURL(_ context.Context, url string) (chat.EnrichedURL, error) {
	return chat.EnrichedURL{Title: "title of " + url}, nil
}

func newComposer(t *testing.T, ch *fakeChannel, mutate ...func(o *Options)) *Composer {
	t.Helper()

	cfg := config.Default()
	cfg.Drafts.Enabled = true
	cfg.Location.Enabled = true
	opts := Options{Channel: ch, Config: cfg}
	for _, m := range mutate {
		m(&opts)
	}

	return New(opts)
}

func compose(t *testing.T, c *Composer) *MessageComposition {
	t.Helper()

	comp, err := c.Compose(context.Background())
	require.NoError(t, err)

	return comp
}

func TestCompose_Text(t *testing.T) {
	c := newComposer(t, newFakeChannel())
	c.TextComposer().SetText("hello")

	comp := compose(t, c)
	require.NotNil(t, comp)
	assert.Equal(t, "hello", comp.Message.Text)
	assert.Equal(t, "hello", comp.LocalMessage.Text)
	assert.Equal(t, c.ID(), comp.Message.ID)
	assert.Equal(t, chat.MessageStatusSending, comp.LocalMessage.Status)
	assert.Nil(t, comp.Message.Attachments)
}

func TestCompose_Command(t *testing.T) {
	c := newComposer(t, newFakeChannel())
	c.TextComposer().SetText("haha")
	c.TextComposer().SetCommand(&chat.Command{Name: "giphy"})

	comp := compose(t, c)
	require.NotNil(t, comp)
	assert.Equal(t, "/giphy haha", comp.Message.Text)
	assert.Equal(t, "/giphy haha", comp.LocalMessage.Text)
	assert.Equal(t, "giphy", comp.LocalMessage.Command)
}

func TestCompose_DropsStaleMentions(t *testing.T) {
	c := newComposer(t, newFakeChannel())
	c.TextComposer().UpsertMentionedUser(chat.User{ID: "user1"})
	c.TextComposer().UpsertMentionedUser(chat.User{ID: "user2"})
	c.TextComposer().SetText("@user1")

	comp := compose(t, c)
	require.NotNil(t, comp)
	assert.Equal(t, []string{"user1"}, comp.Message.MentionedUsers)
	require.Len(t, comp.LocalMessage.MentionedUsers, 1)
	assert.Equal(t, "user1", comp.LocalMessage.MentionedUsers[0].ID)
}

func TestCompose_EmptyIsDiscarded(t *testing.T) {
	c := newComposer(t, newFakeChannel())
	c.TextComposer().SetText("   ")

	assert.Nil(t, compose(t, c))
	assert.True(t, c.CompositionIsEmpty())
	assert.False(t, c.HasSendableData())
}

func TestCompose_PollOnly(t *testing.T) {
	ch := newFakeChannel()
	c := newComposer(t, ch)
	ctx := context.Background()

	name := "Lunch?"
	pc := c.PollComposer()
	require.NoError(t, pc.UpdateFields(ctx, poll.Patch{Name: &name}, nil))
	require.NoError(t, pc.UpdateFields(ctx, poll.Patch{Option: &poll.OptionEdit{Index: 0, Text: "pizza"}}, nil))
	require.NoError(t, pc.UpdateFields(ctx, poll.Patch{Option: &poll.OptionEdit{Index: 1, Text: "sushi"}}, nil))
	require.NoError(t, c.CreatePoll(ctx))
	require.Equal(t, "poll-1", c.PollID())

	c.TextComposer().SetText("dropped")
	c.TextComposer().UpsertMentionedUser(chat.User{ID: "user1"})
	c.SetQuotedMessage(&chat.LocalMessage{ID: "quoted"})

	var ranAfter bool
	c.CompositionMiddleware().Insert(middleware.InsertParams[CompositionState]{
		Middleware: []middleware.Middleware[CompositionState]{{
			ID: "test/after-poll",
			Handlers: map[string]middleware.Handler[CompositionState]{
				EventCompose: func(_ context.Context, call *middleware.Call[CompositionState]) (middleware.Result[CompositionState], error) {
					ranAfter = true
					return call.Forward()
				},
			},
		}},
		Position: middleware.Position{After: PollOnlyStageID},
	})

	comp := compose(t, c)
	require.NotNil(t, comp)
	assert.Equal(t, chat.Message{ID: c.ID(), PollID: "poll-1"}, comp.Message)
	assert.Equal(t, "poll-1", comp.LocalMessage.PollID)
	assert.Empty(t, comp.LocalMessage.Text)
	assert.Nil(t, comp.LocalMessage.Attachments)
	assert.Nil(t, comp.LocalMessage.MentionedUsers)
	assert.Nil(t, comp.LocalMessage.QuotedMessage)
	assert.Empty(t, comp.LocalMessage.ParentID)
	assert.False(t, ranAfter)
}

func TestCompose_PollInThreadIsNotShortCircuited(t *testing.T) {
	c := newComposer(t, newFakeChannel(), func(o *Options) { o.ThreadID = "parent-1" })
	c.State().PartialNext(func(s *State) { s.PollID = "poll-1" })
	c.TextComposer().SetText("with text")

	comp := compose(t, c)
	require.NotNil(t, comp)
	assert.Equal(t, "with text", comp.Message.Text)
	assert.Equal(t, "poll-1", comp.Message.PollID)
	assert.Equal(t, "parent-1", comp.Message.ParentID)
}

func TestCompose_LinkPreviews(t *testing.T) {
	c := newComposer(t, newFakeChannel(), func(o *Options) {
		o.Config.LinkPreviews.Enabled = true
		o.Enricher = staticEnricher{}
	})
	text := "see https://a.example and https://b.example"
	c.TextComposer().SetText(text)
	require.NoError(t, c.LinkPreviewsManager().EnrichURLs(context.Background(), text))
	c.LinkPreviewsManager().Dismiss("https://b.example")

	comp := compose(t, c)
	require.NotNil(t, comp)
	require.Len(t, comp.Message.Attachments, 1)
	assert.Equal(t, "https://a.example", comp.Message.Attachments[0].OGScrapeURL)
	assert.True(t, comp.SendOptions.SkipEnrichURL)
}

func TestCompose_LinkPreviewsStillLoading(t *testing.T) {
	c := newComposer(t, newFakeChannel(), func(o *Options) {
		o.Config.LinkPreviews.Enabled = true
		o.Enricher = staticEnricher{}
	})
	c.TextComposer().SetText("https://a.example")
	c.LinkPreviewsManager().State().Next(linkpreview.State{Previews: []linkpreview.Preview{
		{URL: "https://a.example", Status: linkpreview.StatusLoading},
	}})

	comp := compose(t, c)
	require.NotNil(t, comp)
	assert.Nil(t, comp.Message.Attachments)
	assert.False(t, comp.SendOptions.SkipEnrichURL)
}

func TestCompose_UploadsInProgressBlock(t *testing.T) {
	ch := newFakeChannel()
	c := newComposer(t, ch)
	c.TextComposer().SetText("photo incoming")
	c.AttachmentManager().UpsertAttachments(chat.LocalAttachment{
		LocalMetadata: chat.LocalMetadata{ID: "a1", UploadState: chat.UploadStateUploading},
	})

	assert.Nil(t, compose(t, c))
	require.Len(t, ch.notifier.warnings, 1)
}

func TestCompose_SuccessfulAttachmentsOnly(t *testing.T) {
	c := newComposer(t, newFakeChannel())
	c.AttachmentManager().UpsertAttachments(
		chat.LocalAttachment{
			Attachment:    chat.Attachment{Type: chat.AttachmentTypeImage, ImageURL: "https://cdn/ok.png"},
			LocalMetadata: chat.LocalMetadata{ID: "ok", UploadState: chat.UploadStateFinished},
		},
		chat.LocalAttachment{
			Attachment:    chat.Attachment{Type: chat.AttachmentTypeFile},
			LocalMetadata: chat.LocalMetadata{ID: "bad", UploadState: chat.UploadStateFailed},
		},
	)

	comp := compose(t, c)
	require.NotNil(t, comp)
	assert.Equal(t, []chat.Attachment{{Type: chat.AttachmentTypeImage, ImageURL: "https://cdn/ok.png"}}, comp.Message.Attachments)
}

func TestCompose_UserDataIsTrimmed(t *testing.T) {
	c := newComposer(t, newFakeChannel())
	c.TextComposer().SetText("hi")

	comp := compose(t, c)
	require.NotNil(t, comp)
	require.NotNil(t, comp.LocalMessage.User)
	assert.Equal(t, "me", comp.LocalMessage.UserID)
	assert.Nil(t, comp.LocalMessage.User.Mutes)
	assert.Nil(t, comp.LocalMessage.User.Devices)
}

func TestCompose_QuotedMessage(t *testing.T) {
	c := newComposer(t, newFakeChannel())
	quoted := &chat.LocalMessage{ID: "q1", Text: "original"}
	c.SetQuotedMessage(quoted)
	c.TextComposer().SetText("reply")

	comp := compose(t, c)
	require.NotNil(t, comp)
	assert.Equal(t, "q1", comp.Message.QuotedMessageID)
	assert.Same(t, quoted, comp.LocalMessage.QuotedMessage)
}

func TestCompose_CustomData(t *testing.T) {
	c := newComposer(t, newFakeChannel())
	c.TextComposer().SetText("hi")
	c.CustomDataManager().SetMessageData(map[string]any{"priority": "high"})

	comp := compose(t, c)
	require.NotNil(t, comp)
	assert.Equal(t, map[string]any{"priority": "high"}, comp.Message.Custom)
}

func TestCompose_SharedLocationIsSendable(t *testing.T) {
	c := newComposer(t, newFakeChannel())
	c.LocationComposer().SetData(35.6, 139.7, 0)

	comp := compose(t, c)
	require.NotNil(t, comp)
	require.NotNil(t, comp.Message.SharedLocation)
	assert.Equal(t, 35.6, comp.Message.SharedLocation.Latitude)
	assert.True(t, c.HasSendableData())
}

func TestCompose_MaxLengthOnSend(t *testing.T) {
	c := newComposer(t, newFakeChannel(), func(o *Options) { o.Config.Text.MaxLengthOnSend = 5 })

	c.TextComposer().SetText("héllo")
	assert.NotNil(t, compose(t, c))

	c.TextComposer().SetText("héllo!")
	assert.Nil(t, compose(t, c))
}

func TestCompose_InsertedStage(t *testing.T) {
	c := newComposer(t, newFakeChannel())
	c.CompositionMiddleware().Insert(middleware.InsertParams[CompositionState]{
		Middleware: []middleware.Middleware[CompositionState]{{
			ID: "test/shout",
			Handlers: map[string]middleware.Handler[CompositionState]{
				EventCompose: func(_ context.Context, call *middleware.Call[CompositionState]) (middleware.Result[CompositionState], error) {
					s := call.State()
					s.Message.Text = strings.ToUpper(s.Message.Text)
					s.LocalMessage.Text = s.Message.Text
					return call.Next(s)
				},
			},
		}},
		Position: middleware.Position{After: TextStageID},
	})
	c.TextComposer().SetText("hello")

	ids := c.CompositionMiddleware().IDs()
	assert.Equal(t, []string{TextStageID, "test/shout", AttachmentsStageID}, ids[:3])

	comp := compose(t, c)
	require.NotNil(t, comp)
	assert.Equal(t, "HELLO", comp.Message.Text)
}

func TestCompose_EditingMergesPreviousFields(t *testing.T) {
	createdAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	edited := &chat.LocalMessage{
		ID:             "m1",
		Type:           chat.MessageTypeReply,
		Text:           "old",
		Attachments:    []chat.Attachment{{Type: chat.AttachmentTypeImage, ImageURL: "https://cdn/x.png"}},
		MentionedUsers: []chat.User{{ID: "user2"}},
		ShowInChannel:  true,
		Custom:         map[string]any{"a": 1},
		CreatedAt:      createdAt,
	}
	c := newComposer(t, newFakeChannel(), func(o *Options) { o.Seed = Seed{Message: edited} })

	assert.Equal(t, "m1", c.ID())
	assert.Equal(t, "old", c.TextComposer().Text())
	c.TextComposer().SetText("new")

	comp := compose(t, c)
	require.NotNil(t, comp)
	assert.Equal(t, "m1", comp.Message.ID)
	assert.Equal(t, "new", comp.Message.Text)
	assert.Equal(t, chat.MessageTypeReply, comp.Message.Type)
	assert.Equal(t, edited.Attachments, comp.Message.Attachments)
	assert.Equal(t, []string{}, comp.Message.MentionedUsers, "the mention left the text")
	assert.True(t, comp.Message.ShowInChannel)
	assert.Equal(t, map[string]any{"a": 1}, comp.Message.Custom)
	assert.Equal(t, createdAt, comp.LocalMessage.CreatedAt)
}

func TestCompose_EditingClearsRemovedMentions(t *testing.T) {
	c := newComposer(t, newFakeChannel(), func(o *Options) {
		o.Seed = Seed{Message: &chat.LocalMessage{
			ID:             "m1",
			Text:           "hi @user2",
			MentionedUsers: []chat.User{{ID: "user2"}},
		}}
	})
	c.TextComposer().SetText("hi")

	comp := compose(t, c)
	require.NotNil(t, comp)
	assert.Equal(t, "hi", comp.Message.Text)
	assert.Equal(t, []string{}, comp.Message.MentionedUsers)
	assert.NotNil(t, comp.LocalMessage.MentionedUsers)
	assert.Empty(t, comp.LocalMessage.MentionedUsers)
	assert.Contains(t, string(wire.SendMessageRequest(comp.Message, comp.SendOptions)), `"mentioned_users":[]`)
}

func TestCompose_EditingKeepsOneAttachmentPerLink(t *testing.T) {
	c := newComposer(t, newFakeChannel(), func(o *Options) {
		o.Config.LinkPreviews.Enabled = true
		o.Enricher = staticEnricher{}
		o.Seed = Seed{Message: &chat.LocalMessage{
			ID:   "m1",
			Text: "see https://a.example",
			Attachments: []chat.Attachment{
				{Type: chat.AttachmentTypeImage, ImageURL: "https://cdn/x.png"},
				{Title: "A", OGScrapeURL: "https://a.example"},
			},
		}}
	})
	require.Len(t, c.AttachmentManager().Attachments(), 1)
	require.Len(t, c.LinkPreviewsManager().LoadedPreviews(), 1)
	c.TextComposer().SetText("see https://a.example again")

	comp := compose(t, c)
	require.NotNil(t, comp)
	require.Len(t, comp.Message.Attachments, 2)
	assert.Equal(t, "https://cdn/x.png", comp.Message.Attachments[0].ImageURL)
	assert.Equal(t, "https://a.example", comp.Message.Attachments[1].OGScrapeURL)
}

func TestComposeDraft(t *testing.T) {
	c := newComposer(t, newFakeChannel())
	ctx := context.Background()

	d, err := c.ComposeDraft(ctx)
	require.NoError(t, err)
	assert.Nil(t, d)

	c.SetQuotedMessage(&chat.LocalMessage{ID: "q1"})
	d, err = c.ComposeDraft(ctx)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "q1", d.Draft.QuotedMessageID)

	c.SetQuotedMessage(nil)
	c.TextComposer().SetText("draft text")
	c.AttachmentManager().UpsertAttachments(chat.LocalAttachment{
		LocalMetadata: chat.LocalMetadata{ID: "a1", UploadState: chat.UploadStateUploading},
	})

	d, err = c.ComposeDraft(ctx)
	require.NoError(t, err)
	require.NotNil(t, d, "uploads in progress never block a draft")
	assert.Equal(t, "draft text", d.Draft.Text)
	assert.Empty(t, d.Draft.Attachments)
}

func TestRemoteDraftUpdateRequiresLocalChange(t *testing.T) {
	ch := newFakeChannel()
	c := newComposer(t, ch)
	release := c.RegisterSubscriptions()
	defer release()

	c.TextComposer().SetText("local")
	require.NotNil(t, compose(t, c))

	ch.emit(chat.Event{
		Type: chat.EventDraftUpdated,
		Draft: &chat.Draft{
			ChannelCID: ch.CID(),
			CreatedAt:  time.Now().Add(time.Minute),
			Message:    chat.DraftMessage{ID: "draft-1", Text: "from another device"},
		},
	})

	assert.Equal(t, "from another device", c.TextComposer().Text())
	assert.Equal(t, "draft-1", c.ID())
	assert.False(t, c.LastChangeOriginIsLocal())
	assert.Nil(t, compose(t, c))

	d, err := c.ComposeDraft(context.Background())
	require.NoError(t, err)
	assert.Nil(t, d)

	c.TextComposer().SetText("from another device, edited")
	assert.True(t, c.LastChangeOriginIsLocal())
	assert.NotNil(t, compose(t, c))
}

func TestDraftEventsOutOfScopeAreIgnored(t *testing.T) {
	ch := newFakeChannel()
	c := newComposer(t, ch)
	release := c.RegisterSubscriptions()
	defer release()

	c.TextComposer().SetText("mine")
	ch.emit(chat.Event{Type: chat.EventDraftUpdated, Draft: &chat.Draft{
		ChannelCID: "messaging:other",
		Message:    chat.DraftMessage{Text: "theirs"},
	}})
	ch.emit(chat.Event{Type: chat.EventDraftUpdated, Draft: &chat.Draft{
		ChannelCID: ch.CID(),
		ParentID:   "some-thread",
		Message:    chat.DraftMessage{Text: "thread"},
	}})

	assert.Equal(t, "mine", c.TextComposer().Text())

	ch.emit(chat.Event{Type: chat.EventDraftDeleted, Draft: &chat.Draft{ChannelCID: ch.CID()}})
	assert.Empty(t, c.TextComposer().Text())
}

func TestSubscriptions(t *testing.T) {
	ch := newFakeChannel()
	c := newComposer(t, ch)

	release := c.RegisterSubscriptions()
	n := ch.handlerCount()
	listeners := c.TextComposer().State().ListenerCount()
	assert.Equal(t, 4, n)

	c.RegisterSubscriptions()
	assert.Equal(t, n, ch.handlerCount())
	assert.Equal(t, listeners, c.TextComposer().State().ListenerCount())

	release()
	assert.Zero(t, ch.handlerCount())
	assert.Zero(t, c.TextComposer().State().ListenerCount())

	c.UnregisterSubscriptions()
}

func TestMessageEvents(t *testing.T) {
	ch := newFakeChannel()
	c := newComposer(t, ch, func(o *Options) {
		o.Seed = Seed{Message: &chat.LocalMessage{ID: "m1", Text: "v1"}}
	})
	release := c.RegisterSubscriptions()
	defer release()

	c.SetQuotedMessage(&chat.LocalMessage{ID: "q1", Text: "quote v1"})

	ch.emit(chat.Event{Type: chat.EventMessageUpdated, Message: &chat.LocalMessage{ID: "q1", Text: "quote v2"}})
	require.NotNil(t, c.QuotedMessage())
	assert.Equal(t, "quote v2", c.QuotedMessage().Text)

	ch.emit(chat.Event{Type: chat.EventMessageDeleted, Message: &chat.LocalMessage{ID: "q1"}})
	assert.Nil(t, c.QuotedMessage())

	ch.emit(chat.Event{Type: chat.EventMessageUpdated, Message: &chat.LocalMessage{ID: "m1", Text: "v2"}})
	assert.Equal(t, "v2", c.TextComposer().Text())

	ch.emit(chat.Event{Type: chat.EventMessageDeleted, Message: &chat.LocalMessage{ID: "m1"}})
	assert.Nil(t, c.EditedMessage())
	assert.Empty(t, c.TextComposer().Text())
	assert.NotEqual(t, "m1", c.ID())
}

func TestSendMessage(t *testing.T) {
	ch := newFakeChannel()
	c := newComposer(t, ch)
	ctx := context.Background()

	comp, err := c.SendMessage(ctx)
	require.NoError(t, err)
	assert.Nil(t, comp)
	assert.Empty(t, ch.sent)

	c.TextComposer().SetText("hello")
	id := c.ID()
	comp, err = c.SendMessage(ctx)
	require.NoError(t, err)
	require.NotNil(t, comp)

	require.Len(t, ch.sent, 1)
	assert.Equal(t, "hello", ch.sent[0].message.Text)
	assert.Equal(t, id, ch.sent[0].message.ID)
	assert.Empty(t, c.TextComposer().Text())
	assert.NotEqual(t, id, c.ID())
}

func TestSendMessageFailure(t *testing.T) {
	ch := newFakeChannel()
	ch.sendErr = errors.New("offline")
	c := newComposer(t, ch)
	c.TextComposer().SetText("hello")

	_, err := c.SendMessage(context.Background())
	require.ErrorIs(t, err, ch.sendErr)

	require.Len(t, ch.notifier.errors, 1)
	assert.Equal(t, "api:message:send:failed", ch.notifier.errors[0].Type)
	assert.Equal(t, "hello", c.TextComposer().Text())
}

func TestDrafts(t *testing.T) {
	ch := newFakeChannel()
	c := newComposer(t, ch)
	ctx := context.Background()

	require.NoError(t, c.CreateDraft(ctx))
	assert.Empty(t, ch.drafts)

	c.TextComposer().SetText("later")
	require.NoError(t, c.CreateDraft(ctx))
	require.Len(t, ch.drafts, 1)
	assert.Equal(t, "later", ch.drafts[0].Text)

	require.NoError(t, c.DeleteDraft(ctx))
	assert.Equal(t, []string{""}, ch.deleted)
}

func TestDraftsDisabled(t *testing.T) {
	ch := newFakeChannel()
	c := newComposer(t, ch, func(o *Options) { o.Config.Drafts.Enabled = false })
	c.TextComposer().SetText("later")

	require.NoError(t, c.CreateDraft(context.Background()))
	assert.Empty(t, ch.drafts)
}

func TestInitStateFromDraft(t *testing.T) {
	ch := newFakeChannel()
	quoted := &chat.LocalMessage{ID: "q1"}
	c := newComposer(t, ch, func(o *Options) {
		o.Seed = Seed{Draft: &chat.Draft{
			ChannelCID:    ch.CID(),
			CreatedAt:     time.Now(),
			Message:       chat.DraftMessage{ID: "d1", Text: "@user1 hi", MentionedUsers: []string{"user1"}, PollID: "p1"},
			QuotedMessage: quoted,
		}}
	})

	assert.Equal(t, "d1", c.ID())
	assert.Equal(t, "@user1 hi", c.TextComposer().Text())
	assert.Equal(t, []chat.User{{ID: "user1"}}, c.TextComposer().MentionedUsers())
	assert.Equal(t, "p1", c.PollID())
	assert.Same(t, quoted, c.QuotedMessage())
	assert.False(t, c.LastChangeOriginIsLocal())

	c.Clear()
	assert.True(t, c.CompositionIsEmpty())
	assert.True(t, c.LastChangeOriginIsLocal())
}

func TestComposeDraft_SeededLinkIsSavedOnce(t *testing.T) {
	ch := newFakeChannel()
	c := newComposer(t, ch, func(o *Options) {
		o.Config.LinkPreviews.Enabled = true
		o.Enricher = staticEnricher{}
		o.Seed = Seed{Draft: &chat.Draft{
			ChannelCID: ch.CID(),
			CreatedAt:  time.Now(),
			Message: chat.DraftMessage{
				ID:          "d1",
				Text:        "see https://a.example",
				Attachments: []chat.Attachment{{Title: "A", OGScrapeURL: "https://a.example"}},
			},
		}}
	})
	assert.Empty(t, c.AttachmentManager().Attachments())
	c.SetQuotedMessage(&chat.LocalMessage{ID: "q1"})

	d, err := c.ComposeDraft(context.Background())
	require.NoError(t, err)
	require.NotNil(t, d)
	require.Len(t, d.Draft.Attachments, 1)
	assert.Equal(t, "https://a.example", d.Draft.Attachments[0].OGScrapeURL)
}

func TestLastChangeIsLocal(t *testing.T) {
	draft := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, LastChange{}.IsLocal())
	assert.False(t, LastChange{StateUpdate: draft, DraftUpdate: &draft}.IsLocal())
	assert.True(t, LastChange{StateUpdate: draft.Add(time.Nanosecond), DraftUpdate: &draft}.IsLocal())
}

func TestTickIsStrictlyMonotonic(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newComposer(t, newFakeChannel(), func(o *Options) {
		o.Clock = func() time.Time { return fixed }
	})

	a := c.tick()
	b := c.tick()
	assert.True(t, b.After(a))

	c.observe(fixed.Add(time.Hour))
	assert.True(t, c.tick().After(fixed.Add(time.Hour)))
}
