package messageinput

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-faster/errors"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/composer"
	"github.com/ras0q/lazycompose/internal/composer/poll"
	"github.com/ras0q/lazycompose/internal/composer/textcomposer"
	"github.com/ras0q/lazycompose/internal/state"
	"github.com/ras0q/lazycompose/internal/tui/shared"
)

const helpText = "enter send • alt+enter newline • tab complete • ctrl+s save draft • ctrl+e edit last • ctrl+r quote last • esc cancel"

type Model struct {
	w, h     int
	composer *composer.Composer
	messages *state.Store[[]chat.LocalMessage]
	textarea textarea.Model
	theme    shared.Theme

	status string
}

var _ tea.Model = (*Model)(nil)

// New creates a new message input model.
func New(w, h int, c *composer.Composer, messages *state.Store[[]chat.LocalMessage], theme shared.Theme) *Model {
	ta := textarea.New()
	ta.Placeholder = "Write a message, or :attach, :poll, :location"
	ta.ShowLineNumbers = false
	ta.SetWidth(w)
	ta.SetHeight(max(1, h-3))
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	m := &Model{
		w:        w,
		h:        h,
		composer: c,
		messages: messages,
		textarea: ta,
		theme:    theme,
	}
	m.syncFromComposer()

	return m
}

func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m *Model) Focus() tea.Cmd {
	return m.textarea.Focus()
}

func (m *Model) Blur() {
	m.textarea.Blur()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case shared.ComposerChangedMsg:
		m.syncFromComposer()
		return m, nil

	case tea.KeyMsg:
		m.status = ""

		switch msg.String() {
		case "enter":
			return m, m.submit()
		case "tab":
			if m.selectSuggestion() {
				return m, nil
			}
		case "esc":
			m.cancel()
			return m, nil
		case "ctrl+s":
			return m, m.saveDraft()
		case "ctrl+e":
			m.editLast()
			return m, nil
		case "ctrl+r":
			m.quoteLast()
			return m, nil
		}
	}

	before := m.textarea.Value()

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)

	if after := m.textarea.Value(); after != before {
		sel := textcomposer.Selection{Start: len(after), End: len(after)}
		if err := m.composer.TextComposer().HandleChange(context.Background(), after, sel); err != nil {
			return m, tea.Batch(cmd, errorCmd(errors.Wrap(err, "handle text change")))
		}
	}

	return m, cmd
}

func (m *Model) syncFromComposer() {
	if text := m.composer.TextComposer().Text(); text != m.textarea.Value() {
		m.textarea.SetValue(text)
	}
}

func errorCmd(err error) tea.Cmd {
	return func() tea.Msg {
		return shared.ErrorMsg(err)
	}
}

func (m *Model) submit() tea.Cmd {
	d, ok, err := parseDirective(m.textarea.Value())
	if err != nil {
		m.status = err.Error()
		return nil
	}
	if ok {
		m.textarea.Reset()
		m.composer.TextComposer().SetText("")
		return m.runDirective(d)
	}

	c := m.composer
	if !c.HasSendableData() {
		m.status = "nothing to send"
		return nil
	}

	return func() tea.Msg {
		ctx := context.Background()

		comp, err := c.SendMessage(ctx)
		if err != nil {
			return shared.ErrorMsg(errors.Wrap(err, "send message"))
		}
		if comp == nil {
			return nil
		}

		if err := c.DeleteDraft(ctx); err != nil {
			return shared.ErrorMsg(errors.Wrap(err, "delete draft"))
		}

		return shared.SentMsg{ID: comp.Message.ID}
	}
}

func (m *Model) runDirective(d directive) tea.Cmd {
	c := m.composer

	switch d.kind {
	case directiveAttach:
		return func() tea.Msg {
			files := make([]chat.File, 0, len(d.paths))
			for _, path := range d.paths {
				f, err := readFile(path)
				if err != nil {
					return shared.ErrorMsg(err)
				}
				files = append(files, f)
			}

			if _, err := c.AttachmentManager().UploadFiles(context.Background(), files...); err != nil {
				return shared.ErrorMsg(errors.Wrap(err, "upload files"))
			}

			return nil
		}

	case directivePoll:
		return func() tea.Msg {
			ctx := context.Background()
			pc := c.PollComposer()
			pc.InitState()

			name := d.pollName
			if err := pc.UpdateFields(ctx, poll.Patch{Name: &name}, nil); err != nil {
				return shared.ErrorMsg(errors.Wrap(err, "set poll name"))
			}
			for i, text := range d.pollOptions {
				edit := &poll.OptionEdit{Index: i, Text: text}
				if err := pc.UpdateFields(ctx, poll.Patch{Option: edit}, nil); err != nil {
					return shared.ErrorMsg(errors.Wrap(err, "set poll option"))
				}
			}

			if err := c.CreatePoll(ctx); err != nil {
				return shared.ErrorMsg(err)
			}
			if c.PollID() == "" {
				return shared.ErrorMsg(errors.Errorf("invalid poll: %v", pc.Errors()))
			}

			return nil
		}

	case directiveLocation:
		if !c.LocationComposer().Enabled() {
			m.status = "location sharing is disabled"
			return nil
		}
		c.LocationComposer().SetData(d.latitude, d.longitude, d.duration)
		return nil
	}

	return nil
}

func (m *Model) selectSuggestion() bool {
	s := m.composer.TextComposer().State().LatestValue().Suggestions
	if s == nil || len(s.Items) == 0 {
		return false
	}

	if err := m.composer.TextComposer().HandleSelect(context.Background(), s.Items[0]); err != nil {
		m.status = err.Error()
		return true
	}
	m.syncFromComposer()

	return true
}

func (m *Model) cancel() {
	tc := m.composer.TextComposer()
	switch {
	case tc.State().LatestValue().Suggestions != nil:
		tc.CloseSuggestions()
	case m.composer.EditedMessage() != nil:
		m.composer.Clear()
	case m.composer.QuotedMessage() != nil:
		m.composer.SetQuotedMessage(nil)
	case tc.Command() != nil:
		tc.ClearCommand()
	}
	m.syncFromComposer()
}

func (m *Model) saveDraft() tea.Cmd {
	c := m.composer
	m.status = "draft saved"

	return func() tea.Msg {
		if err := c.CreateDraft(context.Background()); err != nil {
			return shared.ErrorMsg(errors.Wrap(err, "save draft"))
		}
		return nil
	}
}

func (m *Model) lastMessage(own bool) (chat.LocalMessage, bool) {
	var me string
	if ch := m.composer.Channel(); ch != nil {
		if u := ch.CurrentUser(); u != nil {
			me = u.ID
		}
	}

	messages := m.messages.LatestValue()
	for i := len(messages) - 1; i >= 0; i-- {
		if !own || messages[i].UserID == me {
			return messages[i], true
		}
	}

	return chat.LocalMessage{}, false
}

func (m *Model) editLast() {
	msg, ok := m.lastMessage(true)
	if !ok {
		m.status = "nothing to edit"
		return
	}

	m.composer.InitState(composer.Seed{Message: &msg})
	m.syncFromComposer()
}

func (m *Model) quoteLast() {
	msg, ok := m.lastMessage(false)
	if !ok {
		m.status = "nothing to quote"
		return
	}

	m.composer.SetQuotedMessage(&msg)
}

func (m *Model) contextLine() string {
	style := m.theme.Composer.Quote
	if edited := m.composer.EditedMessage(); edited != nil {
		return style.Render("editing: " + firstLine(edited.Text))
	}
	if q := m.composer.QuotedMessage(); q != nil {
		return style.Render("replying to: " + firstLine(q.Text))
	}
	if cmd := m.composer.TextComposer().Command(); cmd != nil {
		return style.Render("/" + cmd.Name)
	}

	return ""
}

func (m *Model) suggestionLine() string {
	if m.status != "" {
		return m.theme.Composer.Warning.Render(m.status)
	}

	s := m.composer.TextComposer().State().LatestValue().Suggestions
	if s == nil || len(s.Items) == 0 {
		return ""
	}

	labels := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		switch {
		case item.User != nil:
			labels = append(labels, "@"+item.User.Name)
		case item.Command != nil:
			labels = append(labels, "/"+item.Command.Name)
		}
	}

	return m.theme.Composer.Suggestion.Render(strings.Join(labels, "  "))
}

func (m *Model) View() string {
	return lipgloss.NewStyle().
		Width(m.w).
		Height(m.h).
		Render(lipgloss.JoinVertical(
			lipgloss.Left,
			m.contextLine(),
			m.textarea.View(),
			m.suggestionLine(),
			m.theme.Composer.Help.MaxWidth(m.w).Render(helpText),
		))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
