package composer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/middleware"
)

const EventComposeDraft = "compose"

// Stage ids of the draft pipeline in execution order.
const (
	DraftTextStageID         = "draftComposer/text"
	DraftAttachmentsStageID  = "draftComposer/attachments"
	DraftLinkPreviewsStageID = "draftComposer/linkPreviews"
	DraftOwnStateStageID     = "draftComposer/ownState"
	DraftCommandStageID      = "draftComposer/command"
	DraftCustomDataStageID   = "draftComposer/customData"
	DraftValidationStageID   = "draftComposer/validation"
)

// DraftState flows through the draft pipeline.
type DraftState struct {
	Draft chat.DraftMessage
}

// DraftComposition is a draft ready to be stored.
type DraftComposition struct {
	Draft chat.DraftMessage
}

type draftCall = middleware.Call[DraftState]
type draftResult = middleware.Result[DraftState]

func draftStage(id string, handler middleware.Handler[DraftState]) middleware.Middleware[DraftState] {
	return middleware.Middleware[DraftState]{
		ID:       id,
		Handlers: map[string]middleware.Handler[DraftState]{EventComposeDraft: handler},
	}
}

func (c *Composer) draftMiddleware() []middleware.Middleware[DraftState] {
	return []middleware.Middleware[DraftState]{
		draftStage(DraftTextStageID, c.draftText),
		draftStage(DraftAttachmentsStageID, c.draftAttachments),
		draftStage(DraftLinkPreviewsStageID, c.draftLinkPreviews),
		draftStage(DraftOwnStateStageID, c.draftOwnState),
		draftStage(DraftCommandStageID, c.draftCommand),
		draftStage(DraftCustomDataStageID, c.draftCustomData),
		draftStage(DraftValidationStageID, c.validateDraft),
	}
}

// ComposeDraft runs the draft pipeline. It returns nil when there is nothing worth saving.
func (c *Composer) ComposeDraft(ctx context.Context) (*DraftComposition, error) {
	res, err := c.draftMW.Execute(ctx, middleware.ExecuteParams[DraftState]{
		EventName: EventComposeDraft,
		InitialValue: DraftState{Draft: chat.DraftMessage{
			ID:       c.ID(),
			ParentID: c.threadID,
		}},
	})
	if err != nil {
		return nil, err
	}
	if res.Discarded() {
		c.logger.Debug("draft composition discarded", zap.String("id", c.ID()))
		return nil, nil
	}

	return &DraftComposition{Draft: res.State.Draft}, nil
}

func (c *Composer) draftText(_ context.Context, call *draftCall) (draftResult, error) {
	if !c.text.Enabled() {
		return call.Forward()
	}

	s := call.State()
	text := c.text.Text()
	s.Draft.Text = text
	for _, u := range mentionedUsersInText(c.text.MentionedUsers(), text) {
		s.Draft.MentionedUsers = append(s.Draft.MentionedUsers, u.ID)
	}

	return call.Next(s)
}

// draftAttachments saves finished uploads only. Uploads in progress never block a draft.
func (c *Composer) draftAttachments(_ context.Context, call *draftCall) (draftResult, error) {
	uploaded := c.attachments.SuccessfulUploads()
	if len(uploaded) == 0 {
		return call.Forward()
	}

	s := call.State()
	for _, a := range uploaded {
		s.Draft.Attachments = append(s.Draft.Attachments, a.ToAttachment())
	}

	return call.Next(s)
}

func (c *Composer) draftLinkPreviews(_ context.Context, call *draftCall) (draftResult, error) {
	if !c.linkPreviews.Enabled() || c.linkPreviews.SomeLoading() {
		return call.Forward()
	}

	loaded := c.linkPreviews.LoadedPreviews()
	if len(loaded) == 0 {
		return call.Forward()
	}

	s := call.State()
	for _, p := range loaded {
		s.Draft.Attachments = append(s.Draft.Attachments, p.ToAttachment())
	}

	return call.Next(s)
}

func (c *Composer) draftOwnState(_ context.Context, call *draftCall) (draftResult, error) {
	own := c.state.LatestValue()
	s := call.State()

	if own.QuotedMessage != nil {
		s.Draft.QuotedMessageID = own.QuotedMessage.ID
	}
	s.Draft.PollID = own.PollID

	return call.Next(s)
}

func (c *Composer) draftCommand(_ context.Context, call *draftCall) (draftResult, error) {
	cmd := c.text.Command()
	if cmd == nil {
		return call.Forward()
	}

	s := call.State()
	s.Draft.Text = "/" + cmd.Name + " " + s.Draft.Text

	return call.Next(s)
}

func (c *Composer) draftCustomData(_ context.Context, call *draftCall) (draftResult, error) {
	data := c.customData.MessageData()
	if len(data) == 0 {
		return call.Forward()
	}

	s := call.State()
	s.Draft.Custom = mergeCustom(s.Draft.Custom, data)

	return call.Next(s)
}

func (c *Composer) validateDraft(_ context.Context, call *draftCall) (draftResult, error) {
	d := call.State().Draft

	hasData := strings.TrimSpace(d.Text) != "" ||
		len(d.Attachments) > 0 ||
		d.PollID != "" ||
		d.QuotedMessageID != ""
	if !hasData || !c.LastChangeOriginIsLocal() {
		return call.Discard()
	}

	return call.Forward()
}
