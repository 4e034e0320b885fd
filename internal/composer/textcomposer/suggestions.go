package textcomposer

import (
	"context"
	"slices"
	"strings"
	"unicode"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/middleware"
)

const (
	EventChange = "onChange"
	EventSelect = "onSuggestionItemSelect"

	MentionsMiddlewareID = "textComposer/mentions"
	CommandsMiddlewareID = "textComposer/commands"

	mentionTrigger = "@"
	commandTrigger = "/"
)

// Suggestions are the candidates offered for the token under the cursor.
type Suggestions struct {
	Trigger string
	Query   string
	Items   []SuggestionItem
}

// SuggestionItem is exactly one of a user or a command.
type SuggestionItem struct {
	User    *chat.User
	Command *chat.Command
}

// ChangeState flows through the text pipeline.
type ChangeState struct {
	State    State
	Selected *SuggestionItem
}

// tokenBeforeCursor returns the whitespace-delimited token ending at the cursor.
func tokenBeforeCursor(text string, cursor int) (token string, start int) {
	cursor = max(0, min(cursor, len(text)))
	start = strings.LastIndexFunc(text[:cursor], unicode.IsSpace) + 1

	return text[start:cursor], start
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// NewMentionsMiddleware suggests channel members for an "@" token and records the picked user.
func NewMentionsMiddleware(source Source) middleware.Middleware[ChangeState] {
	return middleware.Middleware[ChangeState]{
		ID: MentionsMiddlewareID,
		Handlers: map[string]middleware.Handler[ChangeState]{
			EventChange: func(_ context.Context, c *middleware.Call[ChangeState]) (middleware.Result[ChangeState], error) {
				s := c.State()
				token, _ := tokenBeforeCursor(s.State.Text, s.State.Selection.End)
				if source == nil || !strings.HasPrefix(token, mentionTrigger) {
					return c.Forward()
				}

				query := strings.TrimPrefix(token, mentionTrigger)
				var items []SuggestionItem
				for _, member := range source.Members() {
					if hasFoldPrefix(member.Name, query) || hasFoldPrefix(member.ID, query) {
						items = append(items, SuggestionItem{User: &member})
					}
				}
				if len(items) == 0 {
					return c.Forward()
				}

				s.State.Suggestions = &Suggestions{Trigger: mentionTrigger, Query: query, Items: items}

				return c.Complete(s)
			},
			EventSelect: func(_ context.Context, c *middleware.Call[ChangeState]) (middleware.Result[ChangeState], error) {
				s := c.State()
				if s.Selected == nil || s.Selected.User == nil {
					return c.Forward()
				}

				user := *s.Selected.User
				handle := user.Name
				if handle == "" {
					handle = user.ID
				}

				text := s.State.Text
				token, start := tokenBeforeCursor(text, s.State.Selection.End)
				if !strings.HasPrefix(token, mentionTrigger) {
					start = s.State.Selection.End
					token = ""
				}
				insertion := mentionTrigger + handle + " "
				s.State.Text = text[:start] + insertion + text[start+len(token):]
				cursor := start + len(insertion)
				s.State.Selection = Selection{Start: cursor, End: cursor}

				users := slices.Clone(s.State.MentionedUsers)
				if i := slices.IndexFunc(users, func(u chat.User) bool { return u.ID == user.ID }); i >= 0 {
					users[i] = user
				} else {
					users = append(users, user)
				}
				s.State.MentionedUsers = users

				return c.Complete(s)
			},
		},
	}
}

// NewCommandsMiddleware suggests commands for a leading "/" token and stages the picked command.
func NewCommandsMiddleware(source Source) middleware.Middleware[ChangeState] {
	return middleware.Middleware[ChangeState]{
		ID: CommandsMiddlewareID,
		Handlers: map[string]middleware.Handler[ChangeState]{
			EventChange: func(_ context.Context, c *middleware.Call[ChangeState]) (middleware.Result[ChangeState], error) {
				s := c.State()
				token, start := tokenBeforeCursor(s.State.Text, s.State.Selection.End)
				if source == nil || start != 0 || !strings.HasPrefix(token, commandTrigger) {
					return c.Forward()
				}

				query := strings.TrimPrefix(token, commandTrigger)
				var items []SuggestionItem
				for _, cmd := range source.Commands() {
					if hasFoldPrefix(cmd.Name, query) {
						items = append(items, SuggestionItem{Command: &cmd})
					}
				}
				if len(items) == 0 {
					return c.Forward()
				}

				s.State.Suggestions = &Suggestions{Trigger: commandTrigger, Query: query, Items: items}

				return c.Complete(s)
			},
			EventSelect: func(_ context.Context, c *middleware.Call[ChangeState]) (middleware.Result[ChangeState], error) {
				s := c.State()
				if s.Selected == nil || s.Selected.Command == nil {
					return c.Forward()
				}

				cmd := *s.Selected.Command
				text := s.State.Text
				if token, start := tokenBeforeCursor(text, s.State.Selection.End); start == 0 && strings.HasPrefix(token, commandTrigger) {
					text = strings.TrimLeftFunc(text[len(token):], unicode.IsSpace)
				}
				s.State.Text = text
				s.State.Selection = Selection{Start: len(text), End: len(text)}
				s.State.Command = &cmd

				return c.Complete(s)
			},
		},
	}
}
