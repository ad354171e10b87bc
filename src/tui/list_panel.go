package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// renderListPanel renders the left panel with the bucket list
func (m MainModel) renderListPanel(width, height int) string {
	// Note: list size is set in resizeComponents(), not here during render

	listPanel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.BorderColor).
		Width(width - 2).
		Height(height).
		Render(m.listView.Render())

	delegate := m.listView.GetDelegate()
	rankHeader := fmt.Sprintf("%*s", delegate.RankWidth, "Rk")
	countHeader := fmt.Sprintf("%*s", delegate.CountWidth, "N")

	// Truncate to width-4 to account for padding (2 chars)
	headerText := fmt.Sprintf("%s │ Tr │ %s │ Kind │ Signature", rankHeader, countHeader)
	headerRow := lipgloss.NewStyle().
		Foreground(m.styles.PrimaryBlue).
		Bold(true).
		Width(width-2).
		Padding(0, 1).
		Render(Truncate(headerText, width-4, true))

	return lipgloss.JoinVertical(lipgloss.Left, headerRow, listPanel)
}
