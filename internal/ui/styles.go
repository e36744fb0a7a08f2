package ui

import (
	"github.com/charmbracelet/lipgloss"

	"smarttodo/internal/task"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	activeTabStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")).Underline(true)
	tabStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	bannerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	fieldErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	drawerStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	editStyle      = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).PaddingLeft(1)

	statusStyles = map[task.Category]lipgloss.Style{
		task.CategoryCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		task.CategoryOverdue:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		task.CategoryDue:       lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	}
)

func renderStatus(s task.Status) string {
	return statusStyles[s.Category].Render(s.Label)
}
