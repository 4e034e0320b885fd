package composer

import (
	"context"
	"maps"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/middleware"
)

const EventCompose = "compose"

// Stage ids of the message pipeline in execution order.
const (
	TextStageID         = "messageComposer/text"
	AttachmentsStageID  = "messageComposer/attachments"
	LinkPreviewsStageID = "messageComposer/linkPreviews"
	LocationStageID     = "messageComposer/sharedLocation"
	OwnStateStageID     = "messageComposer/ownState"
	PollOnlyStageID     = "messageComposer/pollOnly"
	UserDataStageID     = "messageComposer/userData"
	CommandStageID      = "messageComposer/command"
	CustomDataStageID   = "messageComposer/customData"
	ValidationStageID   = "messageComposer/validation"
	CleanupStageID      = "messageComposer/cleanup"
)

// CompositionState flows through the message pipeline.
type CompositionState struct {
	Message      chat.Message
	LocalMessage chat.LocalMessage
	SendOptions  chat.SendOptions
}

// MessageComposition is a composed message ready to be sent.
type MessageComposition struct {
	Message      chat.Message
	LocalMessage chat.LocalMessage
	SendOptions  chat.SendOptions
}

// Compose runs the message pipeline over the current state. It returns nil when the
// composition was discarded or superseded by a newer call.
func (c *Composer) Compose(ctx context.Context) (*MessageComposition, error) {
	s := c.state.LatestValue()
	now := c.clock()

	createdAt := now
	msgType := chat.MessageTypeRegular
	if edited := c.EditedMessage(); edited != nil {
		createdAt = edited.CreatedAt
	}

	initial := CompositionState{
		Message: chat.Message{
			ID:       s.ID,
			ParentID: c.threadID,
			Type:     msgType,
		},
		LocalMessage: chat.LocalMessage{
			ID:        s.ID,
			ParentID:  c.threadID,
			Type:      msgType,
			Status:    chat.MessageStatusSending,
			CreatedAt: createdAt,
			UpdatedAt: now,
		},
	}

	res, err := c.compositionMW.Execute(ctx, middleware.ExecuteParams[CompositionState]{
		EventName:    EventCompose,
		InitialValue: initial,
	})
	if err != nil {
		return nil, err
	}
	if res.Discarded() {
		c.logger.Debug("composition discarded", zap.String("id", s.ID))
		return nil, nil
	}

	return &MessageComposition{
		Message:      res.State.Message,
		LocalMessage: res.State.LocalMessage,
		SendOptions:  res.State.SendOptions,
	}, nil
}

func stage(id string, handler middleware.Handler[CompositionState]) middleware.Middleware[CompositionState] {
	return middleware.Middleware[CompositionState]{
		ID:       id,
		Handlers: map[string]middleware.Handler[CompositionState]{EventCompose: handler},
	}
}

type compositionCall = middleware.Call[CompositionState]
type compositionResult = middleware.Result[CompositionState]

func (c *Composer) compositionMiddleware() []middleware.Middleware[CompositionState] {
	return []middleware.Middleware[CompositionState]{
		stage(TextStageID, c.composeText),
		stage(AttachmentsStageID, c.composeAttachments),
		stage(LinkPreviewsStageID, c.composeLinkPreviews),
		stage(LocationStageID, c.composeLocation),
		stage(OwnStateStageID, c.composeOwnState),
		stage(PollOnlyStageID, c.composePollOnly),
		stage(UserDataStageID, c.composeUserData),
		stage(CommandStageID, c.composeCommand),
		stage(CustomDataStageID, c.composeCustomData),
		stage(ValidationStageID, c.validateComposition),
		stage(CleanupStageID, c.cleanupComposition),
	}
}

func (c *Composer) composeText(_ context.Context, call *compositionCall) (compositionResult, error) {
	if !c.text.Enabled() {
		return call.Forward()
	}

	s := call.State()
	text := c.text.Text()
	users := mentionedUsersInText(c.text.MentionedUsers(), text)

	s.Message.Text = text
	s.LocalMessage.Text = text
	s.LocalMessage.MentionedUsers = users
	s.Message.MentionedUsers = s.LocalMessage.MentionedUserIDs()

	return call.Next(s)
}

func (c *Composer) composeAttachments(_ context.Context, call *compositionCall) (compositionResult, error) {
	if n := c.attachments.UploadsInProgressCount(); n > 0 {
		c.notifier.AddWarning(chat.Notification{
			Severity: chat.SeverityWarning,
			Message:  "Wait until all attachments have uploaded",
			Origin: chat.NotificationOrigin{
				Emitter: "MessageComposer",
				Context: map[string]any{"uploadsInProgress": n},
			},
			Type: "validation:attachment:upload:in-progress",
		})
		return call.Discard()
	}

	s := call.State()
	attachments := s.LocalMessage.Attachments
	for _, a := range c.attachments.SuccessfulUploads() {
		attachments = append(attachments, a.ToAttachment())
	}
	if len(attachments) == 0 {
		return call.Forward()
	}

	s.Message.Attachments = attachments
	s.LocalMessage.Attachments = attachments

	return call.Next(s)
}

func (c *Composer) composeLinkPreviews(_ context.Context, call *compositionCall) (compositionResult, error) {
	if !c.linkPreviews.Enabled() {
		return call.Forward()
	}

	c.linkPreviews.CancelURLEnrichment()
	if c.linkPreviews.SomeLoading() {
		return call.Forward()
	}

	s := call.State()
	loaded := c.linkPreviews.LoadedPreviews()
	if len(loaded) == 0 && !c.linkPreviews.SomeDismissed() {
		return call.Forward()
	}

	attachments := s.LocalMessage.Attachments
	for _, p := range loaded {
		attachments = append(attachments, p.ToAttachment())
	}
	if len(attachments) > 0 {
		s.Message.Attachments = attachments
		s.LocalMessage.Attachments = attachments
	}
	s.SendOptions.SkipEnrichURL = true

	return call.Next(s)
}

func (c *Composer) composeLocation(_ context.Context, call *compositionCall) (compositionResult, error) {
	loc := c.location.Location()
	if loc == nil {
		return call.Forward()
	}

	s := call.State()
	s.Message.SharedLocation = loc
	s.LocalMessage.SharedLocation = loc

	return call.Next(s)
}

func (c *Composer) composeOwnState(_ context.Context, call *compositionCall) (compositionResult, error) {
	own := c.state.LatestValue()
	s := call.State()

	if q := own.QuotedMessage; q != nil {
		s.Message.QuotedMessageID = q.ID
		s.LocalMessage.QuotedMessageID = q.ID
		s.LocalMessage.QuotedMessage = q
	}
	if own.PollID != "" {
		s.Message.PollID = own.PollID
		s.LocalMessage.PollID = own.PollID
	}

	return call.Next(s)
}

// composePollOnly sends a new top-level poll as a bare poll message.
func (c *Composer) composePollOnly(_ context.Context, call *compositionCall) (compositionResult, error) {
	s := call.State()
	pollID := s.Message.PollID
	if pollID == "" || c.EditedMessage() != nil || c.threadID != "" {
		return call.Forward()
	}

	local := s.LocalMessage
	local.Text = ""
	local.Attachments = nil
	local.MentionedUsers = nil
	local.QuotedMessage = nil
	local.QuotedMessageID = ""
	local.ParentID = ""

	return call.Complete(CompositionState{
		Message:      chat.Message{ID: s.Message.ID, PollID: pollID},
		LocalMessage: local,
		SendOptions:  s.SendOptions,
	})
}

func (c *Composer) composeUserData(_ context.Context, call *compositionCall) (compositionResult, error) {
	if c.channel == nil {
		return call.Forward()
	}
	user := c.channel.CurrentUser()
	if user == nil {
		return call.Forward()
	}

	s := call.State()
	trimmed := user.Trimmed()
	s.LocalMessage.User = &trimmed
	s.LocalMessage.UserID = user.ID

	return call.Next(s)
}

func (c *Composer) composeCommand(_ context.Context, call *compositionCall) (compositionResult, error) {
	cmd := c.text.Command()
	if cmd == nil {
		return call.Forward()
	}

	s := call.State()
	text := "/" + cmd.Name + " " + s.LocalMessage.Text
	s.Message.Text = text
	s.LocalMessage.Text = text
	s.LocalMessage.Command = cmd.Name

	return call.Next(s)
}

func (c *Composer) composeCustomData(_ context.Context, call *compositionCall) (compositionResult, error) {
	data := c.customData.MessageData()
	if len(data) == 0 {
		return call.Forward()
	}

	s := call.State()
	s.Message.Custom = mergeCustom(s.Message.Custom, data)
	s.LocalMessage.Custom = mergeCustom(s.LocalMessage.Custom, data)

	return call.Next(s)
}

func mergeCustom(base, overlay map[string]any) map[string]any {
	merged := maps.Clone(base)
	if merged == nil {
		merged = make(map[string]any, len(overlay))
	}
	maps.Copy(merged, overlay)

	return merged
}

func (c *Composer) validateComposition(_ context.Context, call *compositionCall) (compositionResult, error) {
	s := call.State()

	empty := strings.TrimSpace(s.LocalMessage.Text) == "" &&
		len(s.LocalMessage.Attachments) == 0 &&
		s.LocalMessage.PollID == "" &&
		s.LocalMessage.SharedLocation == nil
	if empty {
		return call.Discard()
	}

	if !c.LastChangeOriginIsLocal() {
		c.logger.Debug("latest change is remote")
		return call.Discard()
	}

	if limit := c.text.MaxLengthOnSend(); limit > 0 && utf8.RuneCountInString(s.LocalMessage.Text) > limit {
		c.logger.Debug("text too long", zap.Int("limit", limit))
		return call.Discard()
	}

	return call.Forward()
}

// cleanupComposition folds the edited message into the composition. Fields the composition
// left unset keep the edited message's values.
func (c *Composer) cleanupComposition(_ context.Context, call *compositionCall) (compositionResult, error) {
	edited := c.EditedMessage()
	if edited == nil {
		return call.Forward()
	}

	s := call.State()
	s.Message = mergeMessage(edited.ToMessage(), s.Message)
	s.LocalMessage = mergeLocalMessage(*edited, s.LocalMessage)
	if edited.Type != "" {
		s.Message.Type = edited.Type
		s.LocalMessage.Type = edited.Type
	}
	s.SendOptions = chat.SendOptions{SkipEnrichURL: s.SendOptions.SkipEnrichURL}

	return call.Next(s)
}

func mergeMessage(prev, next chat.Message) chat.Message {
	merged := prev
	merged.ID = next.ID
	merged.Text = next.Text
	merged.Type = next.Type
	if next.ParentID != "" {
		merged.ParentID = next.ParentID
	}
	if next.Attachments != nil {
		merged.Attachments = next.Attachments
	}
	if next.MentionedUsers != nil {
		merged.MentionedUsers = next.MentionedUsers
	}
	if next.PollID != "" {
		merged.PollID = next.PollID
	}
	if next.QuotedMessageID != "" {
		merged.QuotedMessageID = next.QuotedMessageID
	}
	if next.SharedLocation != nil {
		merged.SharedLocation = next.SharedLocation
	}
	merged.ShowInChannel = prev.ShowInChannel || next.ShowInChannel
	if next.Custom != nil {
		merged.Custom = mergeCustom(prev.Custom, next.Custom)
	}

	return merged
}

func mergeLocalMessage(prev, next chat.LocalMessage) chat.LocalMessage {
	wire := mergeMessage(prev.ToMessage(), next.ToMessage())

	merged := prev
	merged.ID = wire.ID
	merged.ParentID = wire.ParentID
	merged.Type = wire.Type
	merged.Text = wire.Text
	merged.Attachments = wire.Attachments
	merged.PollID = wire.PollID
	merged.QuotedMessageID = wire.QuotedMessageID
	merged.SharedLocation = wire.SharedLocation
	merged.ShowInChannel = wire.ShowInChannel
	merged.Custom = wire.Custom
	if next.MentionedUsers != nil {
		merged.MentionedUsers = next.MentionedUsers
	}
	if next.QuotedMessage != nil {
		merged.QuotedMessage = next.QuotedMessage
	}
	if next.User != nil {
		merged.User = next.User
		merged.UserID = next.UserID
	}
	merged.Status = next.Status
	merged.Command = next.Command
	merged.CreatedAt = next.CreatedAt
	merged.UpdatedAt = next.UpdatedAt

	return merged
}
