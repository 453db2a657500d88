package agenda

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title      lipgloss.Style
	header     lipgloss.Style
	day        lipgloss.Style
	time       lipgloss.Style
	subject    lipgloss.Style
	detail     lipgloss.Style
	info       lipgloss.Style
	cancelled  lipgloss.Style
	done       lipgloss.Style
	unread     lipgloss.Style
	warning    lipgloss.Style
	section    lipgloss.Style
	empty      lipgloss.Style
	barBracket lipgloss.Style
	barFill    lipgloss.Style
	barEmpty   lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:      lipgloss.NewStyle().Bold(true),
		header:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		day:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		time:       lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		subject:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("159")),
		detail:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		info:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		cancelled:  lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("245")),
		done:       lipgloss.NewStyle().Faint(true),
		unread:     lipgloss.NewStyle().Bold(true),
		warning:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:    lipgloss.NewStyle().MarginTop(1),
		empty:      lipgloss.NewStyle().Faint(true),
		barBracket: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		barFill:    lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		barEmpty:   lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
	}
}
