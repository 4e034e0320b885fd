// Package textcomposer owns the text part of a composition: text, cursor selection,
// mentioned users, a staged slash command and trigger suggestions.
package textcomposer

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/config"
	"github.com/ras0q/lazycompose/internal/logging"
	"github.com/ras0q/lazycompose/internal/middleware"
	"github.com/ras0q/lazycompose/internal/state"
)

// Selection is a byte range in the text. Start == End is a cursor.
type Selection struct {
	Start int
	End   int
}

type State struct {
	Text           string
	Selection      Selection
	MentionedUsers []chat.User
	Command        *chat.Command
	Suggestions    *Suggestions
}

// Source supplies the candidates for suggestions.
type Source interface {
	Members() []chat.User
	Commands() []chat.Command
}

type Options struct {
	Config config.TextConfig
	Source Source
	Logger *zap.Logger
}

type Composer struct {
	config config.TextConfig
	logger *zap.Logger

	state    *state.Store[State]
	executor *middleware.Executor[ChangeState]
}

func New(opts Options) *Composer {
	logger := logging.OrNop(opts.Logger).Named("text_composer")

	executor := middleware.New[ChangeState](middleware.WithLogger(logger))
	executor.Use(
		NewCommandsMiddleware(opts.Source),
		NewMentionsMiddleware(opts.Source),
	)

	return &Composer{
		config:   opts.Config,
		logger:   logger,
		state:    state.New(State{}),
		executor: executor,
	}
}

func (c *Composer) State() *state.Store[State] {
	return c.state
}

// Middleware exposes the suggestion pipeline for customization.
func (c *Composer) Middleware() *middleware.Executor[ChangeState] {
	return c.executor
}

func (c *Composer) Enabled() bool {
	return c.config.Enabled
}

func (c *Composer) Text() string {
	return c.state.LatestValue().Text
}

func (c *Composer) MentionedUsers() []chat.User {
	return c.state.LatestValue().MentionedUsers
}

func (c *Composer) Command() *chat.Command {
	return c.state.LatestValue().Command
}

func (c *Composer) MaxLengthOnSend() int {
	return c.config.MaxLengthOnSend
}

// IsEmpty reports whether the text has nothing but whitespace.
func (c *Composer) IsEmpty() bool {
	return strings.TrimSpace(c.Text()) == ""
}

// InitState seeds the composer from a message, or resets it when message is nil.
func (c *Composer) InitState(message *chat.LocalMessage) {
	if message == nil {
		c.state.Next(State{})
		return
	}

	c.state.Next(State{
		Text:           message.Text,
		Selection:      Selection{Start: len(message.Text), End: len(message.Text)},
		MentionedUsers: slices.Clone(message.MentionedUsers),
	})
}

func (c *Composer) truncate(text string) string {
	limit := c.config.MaxLengthOnEdit
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}

	return string([]rune(text)[:limit])
}

// SetText replaces the text and moves the cursor to its end.
func (c *Composer) SetText(text string) {
	if !c.config.Enabled {
		return
	}

	text = c.truncate(text)
	c.state.PartialNext(func(s *State) {
		s.Text = text
		s.Selection = Selection{Start: len(text), End: len(text)}
	})
}

// InsertText replaces the selection (the current selection when sel is nil) with text.
func (c *Composer) InsertText(text string, sel *Selection) {
	if !c.config.Enabled {
		return
	}

	current := c.state.LatestValue()
	selection := current.Selection
	if sel != nil {
		selection = *sel
	}
	selection = clampSelection(selection, len(current.Text))

	newText := c.truncate(current.Text[:selection.Start] + text + current.Text[selection.End:])
	cursor := min(selection.Start+len(text), len(newText))

	c.state.PartialNext(func(s *State) {
		s.Text = newText
		s.Selection = Selection{Start: cursor, End: cursor}
	})
}

// WrapSelection surrounds the selection with head and tail, keeping the wrapped text selected.
func (c *Composer) WrapSelection(head, tail string, sel *Selection) {
	if !c.config.Enabled {
		return
	}

	current := c.state.LatestValue()
	selection := current.Selection
	if sel != nil {
		selection = *sel
	}
	selection = clampSelection(selection, len(current.Text))

	newText := current.Text[:selection.Start] + head + current.Text[selection.Start:selection.End] + tail + current.Text[selection.End:]

	c.state.PartialNext(func(s *State) {
		s.Text = c.truncate(newText)
		s.Selection = Selection{Start: selection.Start + len(head), End: selection.End + len(head)}
	})
}

func (c *Composer) SetSelection(sel Selection) {
	c.state.PartialNext(func(s *State) {
		s.Selection = clampSelection(sel, len(s.Text))
	})
}

// UpsertMentionedUser records user as mentioned, replacing an entry with the same id.
func (c *Composer) UpsertMentionedUser(user chat.User) {
	c.state.PartialNext(func(s *State) {
		users := slices.Clone(s.MentionedUsers)
		if i := slices.IndexFunc(users, func(u chat.User) bool { return u.ID == user.ID }); i >= 0 {
			users[i] = user
		} else {
			users = append(users, user)
		}
		s.MentionedUsers = users
	})
}

func (c *Composer) RemoveMentionedUser(userID string) {
	c.state.PartialNext(func(s *State) {
		s.MentionedUsers = slices.DeleteFunc(slices.Clone(s.MentionedUsers), func(u chat.User) bool {
			return u.ID == userID
		})
	})
}

func (c *Composer) SetCommand(cmd *chat.Command) {
	c.state.PartialNext(func(s *State) {
		s.Command = cmd
	})
}

func (c *Composer) ClearCommand() {
	c.SetCommand(nil)
}

func (c *Composer) CloseSuggestions() {
	c.state.PartialNext(func(s *State) {
		s.Suggestions = nil
	})
}

// HandleChange applies user input and runs the suggestion pipeline over it. Only the latest
// change is applied when calls overlap.
func (c *Composer) HandleChange(ctx context.Context, text string, sel Selection) error {
	if !c.config.Enabled {
		return nil
	}

	current := c.state.LatestValue()
	text = c.truncate(text)
	next := current
	next.Text = text
	next.Selection = clampSelection(sel, len(text))
	next.Suggestions = nil

	res, err := c.executor.Execute(ctx, middleware.ExecuteParams[ChangeState]{
		EventName:    EventChange,
		InitialValue: ChangeState{State: next},
	})
	if err != nil {
		return err
	}
	if res.Discarded() {
		return nil
	}

	c.state.Next(res.State.State)

	return nil
}

// HandleSelect applies a picked suggestion.
func (c *Composer) HandleSelect(ctx context.Context, item SuggestionItem) error {
	current := c.state.LatestValue()

	res, err := c.executor.Execute(ctx, middleware.ExecuteParams[ChangeState]{
		EventName:    EventSelect,
		InitialValue: ChangeState{State: current, Selected: &item},
	})
	if err != nil {
		return err
	}
	if res.Discarded() {
		return nil
	}

	s := res.State.State
	s.Suggestions = nil
	c.state.Next(s)

	return nil
}

func clampSelection(sel Selection, length int) Selection {
	sel.Start = max(0, min(sel.Start, length))
	sel.End = max(sel.Start, min(sel.End, length))

	return sel
}
