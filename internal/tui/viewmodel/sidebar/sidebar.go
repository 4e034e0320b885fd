package sidebar

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/composer"
	"github.com/ras0q/lazycompose/internal/composer/linkpreview"
	"github.com/ras0q/lazycompose/internal/state"
	"github.com/ras0q/lazycompose/internal/tui/shared"
)

type itemKind int

const (
	itemAttachment itemKind = iota + 1
	itemPreview
)

// item is a selectable row of the panel.
type item struct {
	kind  itemKind
	key   string
	label string
}

// Model lists what the composition carries besides its text. Attachments can be removed and
// link previews dismissed from here.
type Model struct {
	w, h          int
	composer      *composer.Composer
	notifications *state.Store[[]chat.Notification]
	theme         shared.Theme

	items  []item
	cursor int
}

var _ tea.Model = (*Model)(nil)

func New(w, h int, c *composer.Composer, notifications *state.Store[[]chat.Notification], theme shared.Theme) *Model {
	m := &Model{
		w:             w,
		h:             h,
		composer:      c,
		notifications: notifications,
		theme:         theme,
	}
	m.refresh()

	return m
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case shared.ComposerChangedMsg:
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			m.cursor = max(0, m.cursor-1)
		case "down", "j":
			m.cursor = min(max(0, len(m.items)-1), m.cursor+1)
		case "x", "d", "delete", "backspace":
			m.removeSelected()
		case "esc":
			return m, func() tea.Msg {
				return shared.ReturnToInputMsg{}
			}
		}
	}

	return m, nil
}

func (m *Model) refresh() {
	items := make([]item, 0)

	for _, a := range m.composer.AttachmentManager().Attachments() {
		items = append(items, item{
			kind:  itemAttachment,
			key:   a.LocalMetadata.ID,
			label: attachmentLabel(a),
		})
	}
	for _, p := range m.composer.LinkPreviewsManager().Previews() {
		items = append(items, item{
			kind:  itemPreview,
			key:   p.URL,
			label: previewLabel(p),
		})
	}

	m.items = items
	m.cursor = min(m.cursor, max(0, len(items)-1))
}

func (m *Model) removeSelected() {
	if m.cursor >= len(m.items) {
		return
	}

	it := m.items[m.cursor]
	switch it.kind {
	case itemAttachment:
		m.composer.AttachmentManager().RemoveAttachments(it.key)
	case itemPreview:
		m.composer.LinkPreviewsManager().Dismiss(it.key)
	}
	m.refresh()
}

func attachmentLabel(a chat.LocalAttachment) string {
	name := a.Title
	if f := a.LocalMetadata.File; f != nil {
		name = f.Name
	}
	if name == "" {
		name = string(a.Type)
	}

	switch s := a.LocalMetadata.UploadState; s {
	case chat.UploadStateUploading:
		return fmt.Sprintf("%s (%d%%)", name, int(a.LocalMetadata.Progress*100))
	case chat.UploadStateFinished, "":
		return name
	default:
		return fmt.Sprintf("%s (%s)", name, s)
	}
}

// uploadSummary counts the attachments that are not ready to be sent.
func uploadSummary(c *composer.Composer) string {
	am := c.AttachmentManager()

	var parts []string
	for _, n := range []struct {
		count int
		label string
	}{
		{am.PendingUploadsCount(), "pending"},
		{am.UploadsInProgressCount(), "uploading"},
		{am.FailedUploadsCount(), "failed"},
		{am.BlockedUploadsCount(), "blocked"},
	} {
		if n.count > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n.count, n.label))
		}
	}

	return strings.Join(parts, ", ")
}

func previewLabel(p linkpreview.Preview) string {
	title := p.Data.Title
	if title == "" {
		title = p.URL
	}

	return fmt.Sprintf("%s (%s)", title, p.Status)
}

func (m *Model) View() string {
	var sb strings.Builder
	styles := m.theme.Composer

	sb.WriteString(styles.Section.Render("Composition"))
	sb.WriteString("\n")
	if len(m.items) == 0 {
		sb.WriteString(styles.Item.Render("(nothing attached)"))
		sb.WriteString("\n")
	}
	for i, it := range m.items {
		style := styles.Item
		if i == m.cursor {
			style = styles.Selected
		}
		sb.WriteString(style.Render(it.label))
		sb.WriteString("\n")
	}

	if summary := uploadSummary(m.composer); summary != "" {
		sb.WriteString(styles.Warning.Render(summary))
		sb.WriteString("\n")
	}

	if id := m.composer.PollID(); id != "" {
		sb.WriteString(styles.Item.Render("poll " + id))
		sb.WriteString("\n")
	}
	if loc := m.composer.LocationComposer().Location(); loc != nil {
		sb.WriteString(styles.Item.Render(fmt.Sprintf("location %.4f, %.4f", loc.Latitude, loc.Longitude)))
		sb.WriteString("\n")
	}

	if ns := m.notifications.LatestValue(); len(ns) > 0 {
		sb.WriteString("\n")
		sb.WriteString(styles.Section.Render("Notifications"))
		sb.WriteString("\n")
		for _, n := range ns[max(0, len(ns)-5):] {
			style := styles.Warning
			if n.Severity == chat.SeverityError {
				style = styles.Error
			}
			text := n.Message
			if n.Reason != "" {
				text += ": " + n.Reason
			}
			sb.WriteString(style.Render(text))
			sb.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Width(m.w).
		Height(m.h).
		MaxHeight(m.h).
		Render(sb.String())
}
