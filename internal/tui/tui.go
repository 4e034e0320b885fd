package tui

import (
	"fmt"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/ras0q/lazycompose/internal/chatext"
	"github.com/ras0q/lazycompose/internal/composer"
	"github.com/ras0q/lazycompose/internal/logging"
	"github.com/ras0q/lazycompose/internal/state"
	"github.com/ras0q/lazycompose/internal/tui/shared"
	"github.com/ras0q/lazycompose/internal/tui/viewmodel/header"
	"github.com/ras0q/lazycompose/internal/tui/viewmodel/messageinput"
	"github.com/ras0q/lazycompose/internal/tui/viewmodel/sidebar"
	"github.com/ras0q/lazycompose/internal/tui/viewmodel/timeline"
)

const updateBuffer = 16

type Options struct {
	Channel  *chatext.Channel
	Composer *composer.Composer
	Logger   *zap.Logger
}

type AppModel struct {
	theme        shared.Theme
	header       *header.Model
	sidebar      *sidebar.Model
	timeline     *timeline.Model
	messageInput *messageinput.Model
	Errors       []error

	focus   focusArea
	logger  *zap.Logger
	updates chan tea.Msg

	closeOnce sync.Once
	unsubs    []func()
}

type focusArea int

const (
	focusAreaMessageInput focusArea = iota + 1
	focusAreaTimeline
	focusAreaSidebar
)

func NewAppModel(w, h int, opts Options) *AppModel {
	if os.Getenv("DEBUG") != "" {
		h -= 2
	}

	// Layout calculation
	// -------------------------
	// |         header        |
	// |-----------------------|
	// |         |  timeline   |
	// | sidebar |             |
	// |         |-------------|
	// |         |messageInput |
	// -------------------------

	headerHeight := 3
	statusHeight := 1
	mainHeight := h - headerHeight - statusHeight
	sidebarHeight := mainHeight
	timelineHeight := mainHeight * 6 / 10
	messageInputHeight := mainHeight - timelineHeight

	headerWidth := w
	sidebarWidth := w * 3 / 10
	mainWidth := w - sidebarWidth
	padding := 2

	theme := shared.DefaultTheme()
	c := opts.Composer
	messages := opts.Channel.Messages()
	notifications := opts.Channel.NotificationStore().State()

	m := &AppModel{
		theme: theme,
		header: header.New(
			headerWidth-padding,
			headerHeight-padding,
			opts.Channel.CID(),
			c,
			theme,
		),
		sidebar: sidebar.New(
			sidebarWidth-padding,
			sidebarHeight-padding,
			c,
			notifications,
			theme,
		),
		timeline: timeline.New(
			mainWidth-padding,
			timelineHeight-padding,
			messages,
			theme,
		),
		messageInput: messageinput.New(
			mainWidth-padding,
			messageInputHeight-padding,
			c,
			messages,
			theme,
		),
		Errors:  make([]error, 0, 10),
		focus:   focusAreaMessageInput,
		logger:  logging.OrNop(opts.Logger).Named("tui"),
		updates: make(chan tea.Msg, updateBuffer),
	}

	composerChanged := func() { m.push(shared.ComposerChangedMsg{}) }
	m.unsubs = append(m.unsubs,
		notify(c.State(), composerChanged),
		notify(c.TextComposer().State(), composerChanged),
		notify(c.AttachmentManager().State(), composerChanged),
		notify(c.LinkPreviewsManager().State(), composerChanged),
		notify(c.PollComposer().State(), composerChanged),
		notify(c.LocationComposer().State(), composerChanged),
		notify(messages, func() { m.push(shared.MessagesChangedMsg{}) }),
		notify(notifications, func() { m.push(shared.NotificationsChangedMsg{}) }),
	)

	return m
}

func notify[T any](s *state.Store[T], fn func()) func() {
	return s.Subscribe(func(T, T) { fn() })
}

// push never blocks.
func (m *AppModel) push(msg tea.Msg) {
	select {
	case m.updates <- msg:
	default:
		m.logger.Debug("update dropped", zap.String("msg", fmt.Sprintf("%T", msg)))
	}
}

func (m *AppModel) waitForUpdate() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		msg, ok := <-updates
		if !ok {
			return nil
		}
		return updateMsg{msg}
	}
}

// updateMsg wraps a store notification so the listener is re-armed exactly once per delivery.
type updateMsg struct {
	msg tea.Msg
}

// Close releases the store subscriptions.
func (m *AppModel) Close() {
	m.closeOnce.Do(func() {
		for _, unsubscribe := range m.unsubs {
			unsubscribe()
		}
		m.unsubs = nil
	})
}

var _ tea.Model = (*AppModel)(nil)

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(
		m.header.Init(),
		m.sidebar.Init(),
		m.timeline.Init(),
		m.messageInput.Init(),
		m.waitForUpdate(),
	)
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmds := make([]tea.Cmd, 0, 10)

	if os.Getenv("DEBUG") != "" {
		t := fmt.Sprintf("%T", msg)
		if msg, ok := msg.(fmt.Stringer); ok {
			t = fmt.Sprintf("%s (%s)", t, msg.String())
		}
		if t != "tea.printLineMessage" {
			cmds = append(cmds, tea.Printf("%s", t))
		}
	}

	switch msg := msg.(type) {
	case updateMsg:
		cmds = append(cmds, m.broadcast(msg.msg)...)
		cmds = append(cmds, m.waitForUpdate())

	case shared.ErrorMsg:
		m.logger.Error("command failed", zap.Error(msg))
		m.Errors = append(m.Errors, msg)

	case shared.ReturnToInputMsg:
		cmds = append(cmds, m.setFocus(focusAreaMessageInput))

	case shared.SentMsg:
		m.logger.Debug("message sent", zap.String("id", msg.ID))

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+t":
			cmds = append(cmds, m.setFocus(m.focus%focusAreaSidebar+1))
		default:
			cmds = append(cmds, m.updateFocused(msg))
		}

	default:
		cmds = append(cmds, m.broadcast(msg)...)
	}

	return m, tea.Batch(cmds...)
}

func (m *AppModel) setFocus(focus focusArea) tea.Cmd {
	m.focus = focus
	if focus == focusAreaMessageInput {
		return m.messageInput.Focus()
	}
	m.messageInput.Blur()

	return nil
}

func (m *AppModel) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd

	switch m.focus {
	case focusAreaMessageInput:
		_messageInput, c := m.messageInput.Update(msg)
		m.messageInput = _messageInput.(*messageinput.Model)
		cmd = c

	case focusAreaTimeline:
		_timeline, c := m.timeline.Update(msg)
		m.timeline = _timeline.(*timeline.Model)
		cmd = c

	case focusAreaSidebar:
		_sidebar, c := m.sidebar.Update(msg)
		m.sidebar = _sidebar.(*sidebar.Model)
		cmd = c
	}

	return cmd
}

func (m *AppModel) broadcast(msg tea.Msg) []tea.Cmd {
	cmds := make([]tea.Cmd, 0, 4)

	_header, cmd := m.header.Update(msg)
	m.header = _header.(*header.Model)
	cmds = append(cmds, cmd)

	_sidebar, cmd := m.sidebar.Update(msg)
	m.sidebar = _sidebar.(*sidebar.Model)
	cmds = append(cmds, cmd)

	_timeline, cmd := m.timeline.Update(msg)
	m.timeline = _timeline.(*timeline.Model)
	cmds = append(cmds, cmd)

	_messageInput, cmd := m.messageInput.Update(msg)
	m.messageInput = _messageInput.(*messageinput.Model)
	cmds = append(cmds, cmd)

	return cmds
}

func (m *AppModel) statusLine() string {
	if len(m.Errors) == 0 {
		return ""
	}

	return m.theme.Composer.Error.Render("error: " + m.Errors[len(m.Errors)-1].Error())
}

func (m *AppModel) View() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.theme.WithBorder(m.header.View(), false),
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			m.theme.WithBorder(m.sidebar.View(), m.focus == focusAreaSidebar),
			lipgloss.JoinVertical(
				lipgloss.Left,
				m.theme.WithBorder(m.timeline.View(), m.focus == focusAreaTimeline),
				m.theme.WithBorder(m.messageInput.View(), m.focus == focusAreaMessageInput),
			),
		),
		m.statusLine(),
	)
}
