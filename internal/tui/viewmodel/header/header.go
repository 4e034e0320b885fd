package header

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ras0q/lazycompose/internal/composer"
	"github.com/ras0q/lazycompose/internal/tui/shared"
)

type Model struct {
	w, h     int
	cid      string
	composer *composer.Composer
	theme    shared.Theme
}

var _ tea.Model = (*Model)(nil)

func New(w, h int, cid string, c *composer.Composer, theme shared.Theme) *Model {
	return &Model{
		w:        w,
		h:        h,
		cid:      cid,
		composer: c,
		theme:    theme,
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m, nil
}

func (m *Model) mode() string {
	switch {
	case m.composer.EditedMessage() != nil:
		return "editing"
	case !m.composer.LastChangeOriginIsLocal():
		return "draft from another device"
	case m.composer.QuotedMessage() != nil:
		return "replying"
	default:
		return ""
	}
}

func (m *Model) View() string {
	leftPart := lipgloss.JoinHorizontal(
		lipgloss.Center,
		m.theme.Header.Title.Render("lazycompose"),
		" in ",
		m.theme.Header.Channel.Render(m.cid),
	)
	if mode := m.mode(); mode != "" {
		leftPart = lipgloss.JoinHorizontal(lipgloss.Center, leftPart, "  ", m.theme.Header.Mode.Render("["+mode+"]"))
	}

	username := "@unknown"
	if ch := m.composer.Channel(); ch != nil {
		if me := ch.CurrentUser(); me != nil {
			username = fmt.Sprintf("@%s", me.Name)
		}
	}
	rightPart := m.theme.Header.Username.
		Width(max(0, m.w-lipgloss.Width(leftPart)-1)).
		Align(lipgloss.Right).
		Render(username)

	return lipgloss.NewStyle().Height(m.h).Width(m.w).Render(
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			leftPart,
			rightPart,
		),
	)
}
