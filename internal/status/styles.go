package status

import "github.com/charmbracelet/lipgloss"

var (
	Primary = lipgloss.Color("#FF6B35")
	Success = lipgloss.Color("#4CAF50")
	Warning = lipgloss.Color("#FFB74D")
	Error   = lipgloss.Color("#F44336")
	Text    = lipgloss.Color("#E0E0E0")
	Muted   = lipgloss.Color("#90A4AE")
)

var (
	PanelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Primary).
		Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
		Foreground(Primary).
		Bold(true)

	SectionStyle = lipgloss.NewStyle().
		Foreground(Text).
		Bold(true)

	LabelStyle = lipgloss.NewStyle().
		Foreground(Muted).
		Width(12)

	ValueStyle = lipgloss.NewStyle().
		Foreground(Text)

	SuccessStyle = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	WarningStyle = lipgloss.NewStyle().
		Foreground(Warning).
		Bold(true)

	ErrorStyle = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)
)
