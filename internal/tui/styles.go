package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/brck/brckctl/internal/version"
)

const AppName = "BRCKCTL"

// Layout limits
const (
	MinTerminalWidth = 72
	MaxContentWidth  = 120
)

var (
	PrimaryColor   = lipgloss.Color("#E4701E")
	SecondaryColor = lipgloss.Color("#43BF6D")
	WarningColor   = lipgloss.Color("#FFA500")
	ErrorColor     = lipgloss.Color("#FF5555")
	TextColor      = lipgloss.Color("#FFFFFF")
	SubtleColor    = lipgloss.Color("#626262")
	BorderColor    = PrimaryColor
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Italic(true)

	TabStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Padding(0, 1)

	ActiveTabStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Underline(true).
			Padding(0, 1)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SubtleColor).
			Padding(0, 1)

	SelectedCardStyle = CardStyle.
				BorderForeground(PrimaryColor)

	ErrorBoxStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ErrorColor).
			Padding(0, 1)

	InfoBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Width(16)

	FieldErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Italic(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	OKStyle = lipgloss.NewStyle().
		Foreground(SecondaryColor)

	WarnStyle = lipgloss.NewStyle().
			Foreground(WarningColor)
)

// RenderTitle renders a view title.
func RenderTitle(text string) string {
	return TitleStyle.Render(text)
}

// CalculateBoxWidth returns the usable content width for a terminal width.
func CalculateBoxWidth(terminalWidth int) int {
	w := terminalWidth - 4
	if w < MinTerminalWidth-4 {
		w = MinTerminalWidth - 4
	}
	if w > MaxContentWidth {
		w = MaxContentWidth
	}
	return w
}

// RenderApplicationContainer wraps a view with the header, tab bar and
// footer. Every view renders through it.
func RenderApplicationContainer(tabs, content, footer string, width, height int) string {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	if height < 10 {
		height = 10
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true).Render(AppName),
		SubtitleStyle.Render("  "+version.Version),
	)
	if tabs != "" {
		header = lipgloss.JoinVertical(lipgloss.Left, header, tabs)
	}

	section := func(border lipgloss.Border) lipgloss.Style {
		return lipgloss.NewStyle().
			BorderStyle(border).
			BorderForeground(BorderColor).
			Width(width-4).
			Padding(0, 1)
	}

	inner := lipgloss.JoinVertical(lipgloss.Left,
		section(lipgloss.Border{Bottom: "─"}).Render(header),
		lipgloss.NewStyle().Width(width-4).Render(content),
		section(lipgloss.Border{Top: "─"}).Render(footer),
	)

	bordered := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(BorderColor).
		Width(width - 2).
		Height(height - 2).
		AlignVertical(lipgloss.Top).
		Render(inner)

	return lipgloss.Place(width, height, lipgloss.Left, lipgloss.Top, bordered)
}

// indent prefixes every line of s.
func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
