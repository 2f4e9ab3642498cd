package render

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#A78BFA") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#F87171") // Red
	mutedColor   = lipgloss.Color("#9CA3AF") // Gray
	borderColor  = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)
	passStyle  = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(warningColor)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(borderColor).Padding(0, 1)
)

// userStyle colors text with a participant's display color.
func userStyle(color string) lipgloss.Style {
	if color == "" {
		return lipgloss.NewStyle().Bold(true)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
}
