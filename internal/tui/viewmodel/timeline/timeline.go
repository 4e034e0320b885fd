package timeline

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/state"
	"github.com/ras0q/lazycompose/internal/tui/shared"
)

type Model struct {
	w, h     int
	messages *state.Store[[]chat.LocalMessage]
	viewport viewport.Model
	theme    shared.Theme
}

var _ tea.Model = (*Model)(nil)

func New(w, h int, messages *state.Store[[]chat.LocalMessage], theme shared.Theme) *Model {
	vp := viewport.New(w, h)
	vp.SetContent("No messages yet.")

	return &Model{
		w:        w,
		h:        h,
		messages: messages,
		viewport: vp,
		theme:    theme,
	}
}

func (m *Model) Init() tea.Cmd {
	m.renderTimeline()
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmds := make([]tea.Cmd, 0, 2)

	switch msg := msg.(type) {
	case shared.MessagesChangedMsg:
		m.renderTimeline()

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			cmds = append(cmds, func() tea.Msg {
				return shared.ReturnToInputMsg{}
			})
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	return lipgloss.NewStyle().
		Width(m.w).
		Height(m.h).
		Render(m.viewport.View())
}

func (m *Model) renderTimeline() {
	messages := m.messages.LatestValue()
	if len(messages) == 0 {
		m.viewport.SetContent("No messages yet.")
		return
	}

	var sb strings.Builder
	separator := m.theme.Timeline.Separator.Render(" │ ")
	indent := strings.Repeat(" ", 5)

	for _, message := range messages {
		username := "unknown"
		if message.User != nil {
			username = message.User.Name
		}
		timestamp := message.CreatedAt.Format("15:04")

		lines := strings.Split(strings.TrimSpace(message.Text), "\n")
		if message.PollID != "" {
			lines = append(lines, m.theme.Timeline.Attachment.Render("[poll "+message.PollID+"]"))
		}
		if message.SharedLocation != nil {
			lines = append(lines, m.theme.Timeline.Attachment.Render("[location]"))
		}
		for _, a := range message.Attachments {
			lines = append(lines, m.theme.Timeline.Attachment.Render(attachmentLabel(a)))
		}
		lines = append(lines, "")

		for j, line := range lines {
			if j == 0 {
				sb.WriteString(m.theme.Timeline.Time.Render(timestamp))
				sb.WriteString(separator)
				sb.WriteString(m.theme.Timeline.Username.Render("@" + username))
				sb.WriteString("\n")
			}
			sb.WriteString(indent)
			sb.WriteString(separator)
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func attachmentLabel(a chat.Attachment) string {
	switch {
	case a.IsScrapedLink():
		return "[link] " + a.Title + " " + a.OGScrapeURL
	case a.Type == chat.AttachmentTypeImage:
		return "[image] " + a.ImageURL
	default:
		return "[" + string(a.Type) + "] " + a.AssetURL
	}
}
