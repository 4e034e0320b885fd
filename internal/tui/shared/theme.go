package shared

import "github.com/charmbracelet/lipgloss"

// Colors defines the color palette
type Colors struct {
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Muted   lipgloss.Color
	Border  lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
}

type BorderStyles struct {
	Normal  lipgloss.Style
	Focused lipgloss.Style
}

type HeaderStyles struct {
	Title    lipgloss.Style
	Channel  lipgloss.Style
	Username lipgloss.Style
	Mode     lipgloss.Style
}

type TimelineStyles struct {
	Time       lipgloss.Style
	Username   lipgloss.Style
	Separator  lipgloss.Style
	Attachment lipgloss.Style
}

// ComposerStyles style the message input and the composition panel.
type ComposerStyles struct {
	Section    lipgloss.Style
	Item       lipgloss.Style
	Selected   lipgloss.Style
	Suggestion lipgloss.Style
	Quote      lipgloss.Style
	Warning    lipgloss.Style
	Error      lipgloss.Style
	Help       lipgloss.Style
}

type Theme struct {
	Colors   Colors
	Border   BorderStyles
	Header   HeaderStyles
	Timeline TimelineStyles
	Composer ComposerStyles
}

func DefaultTheme() Theme {
	colors := Colors{
		Primary: lipgloss.Color("205"),
		Accent:  lipgloss.Color("240"),
		Muted:   lipgloss.Color("240"),
		Border:  lipgloss.Color("205"),
		Warning: lipgloss.Color("214"),
		Error:   lipgloss.Color("196"),
	}

	return Theme{
		Colors: colors,
		Border: BorderStyles{
			Normal:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()),
			Focused: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colors.Border),
		},
		Header: HeaderStyles{
			Title:    lipgloss.NewStyle().Bold(true).Italic(true),
			Channel:  lipgloss.NewStyle().Bold(true),
			Username: lipgloss.NewStyle().Bold(true),
			Mode:     lipgloss.NewStyle().Foreground(colors.Warning),
		},
		Timeline: TimelineStyles{
			Time:       lipgloss.NewStyle().Foreground(colors.Accent).PaddingRight(1),
			Username:   lipgloss.NewStyle().Foreground(colors.Primary).Bold(true),
			Separator:  lipgloss.NewStyle().Foreground(colors.Muted),
			Attachment: lipgloss.NewStyle().Foreground(colors.Accent).Italic(true),
		},
		Composer: ComposerStyles{
			Section:    lipgloss.NewStyle().Bold(true).Underline(true),
			Item:       lipgloss.NewStyle().PaddingLeft(1),
			Selected:   lipgloss.NewStyle().PaddingLeft(1).Foreground(colors.Primary).Bold(true),
			Suggestion: lipgloss.NewStyle().Foreground(colors.Primary),
			Quote: lipgloss.NewStyle().
				BorderStyle(lipgloss.Border{Left: "│"}).
				BorderLeft(true).
				BorderForeground(colors.Muted).
				PaddingLeft(1).
				Foreground(colors.Muted),
			Warning: lipgloss.NewStyle().Foreground(colors.Warning),
			Error:   lipgloss.NewStyle().Foreground(colors.Error),
			Help:    lipgloss.NewStyle().Foreground(colors.Muted),
		},
	}
}

// WithBorder applies border style based on focus state
func (t Theme) WithBorder(content string, focused bool) string {
	if focused {
		return t.Border.Focused.Render(content)
	}
	return t.Border.Normal.Render(content)
}
