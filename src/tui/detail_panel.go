package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"diaglog/src/ranking"
)

// renderDetail renders the detail content for a bucket item
func (m MainModel) renderDetail(item Item, maxWidth int) string {
	content := strings.Builder{}
	b := item.Bucket
	secondary := lipgloss.NewStyle().Foreground(m.styles.TextSecondary)

	header := fmt.Sprintf("Bucket: %s | %s | %d occurrences | lines %d-%d",
		b.ID, b.Kind, b.Count, b.FirstLine, b.LastLine)
	fmt.Fprintf(&content, "%s\n\n", lipgloss.NewStyle().
		Foreground(m.styles.PrimaryBlue).
		Bold(true).
		Render(Wrap(header, maxWidth)))

	if item.Tier == ranking.TierEvidence && m.report != nil {
		fmt.Fprintln(&content, secondary.Bold(true).Render("Cited by conclusion:"))
		fmt.Fprintln(&content, Wrap(m.report.Conclusion.RootCause, maxWidth))
		fmt.Fprintln(&content)
	}

	if b.NRC != nil {
		fmt.Fprintln(&content, secondary.Bold(true).Render("Negative response:"))
		nrc := fmt.Sprintf("0x%s %s (%s)", b.NRC.Code, b.NRC.Name, b.NRC.Category)
		if b.NRC.Benign {
			nrc += " benign"
		}
		fmt.Fprintln(&content, Wrap(nrc, maxWidth))
		if b.NRC.Meaning != "" {
			fmt.Fprintln(&content, secondary.Render(Wrap(b.NRC.Meaning, maxWidth)))
		}
		fmt.Fprintln(&content)
	}

	if len(b.Modules) > 0 {
		fmt.Fprintln(&content, secondary.Bold(true).Render("Modules:"))
		fmt.Fprintln(&content, Wrap(strings.Join(m.moduleLabels(b.Modules), ", "), maxWidth))
		fmt.Fprintln(&content)
	}

	if b.Resolved {
		fmt.Fprintln(&content, secondary.Faint(true).Render("Resolved by a later success."))
		fmt.Fprintln(&content)
	}

	// Signature - wrap before styling
	fmt.Fprintln(&content, lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true).Render("SIGNATURE:"))
	fmt.Fprintln(&content, lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF0000")).
		Background(lipgloss.Color("#2D0000")).
		Render(Wrap(CleanLogText(b.Signature), maxWidth)))
	fmt.Fprintln(&content)

	if len(b.Samples) > 0 {
		fmt.Fprintln(&content, secondary.Bold(true).Render("Samples:"))
		for _, s := range b.Samples {
			line := fmt.Sprintf("%d: %s", s.LineNumber, CleanLogText(s.RawText))
			fmt.Fprintln(&content, secondary.Faint(true).Render(Wrap(line, maxWidth)))
		}
	}

	return content.String()
}

func (m MainModel) moduleLabels(addrs []string) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a
		if m.report == nil {
			continue
		}
		if mod, ok := m.report.Modules.Modules[a]; ok {
			out[i] = mod.Label()
		}
	}
	return out
}

// updateDetailContent updates the viewport with content from the selected item
func (m *MainModel) updateDetailContent(item Item) {
	maxWidth := m.detailViewport.Width - 2 // 1 char padding on each side
	m.detailViewport.SetContent(m.renderDetail(item, maxWidth))
	m.detailViewport.GotoTop()
}

// renderDetailPanel renders the right panel with detail viewport
func (m MainModel) renderDetailPanel(width, height int) string {
	borderColor := m.styles.BorderColor
	if m.detailFocused {
		borderColor = m.styles.AccentBlue
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(width - 2).
		Height(height)

	if selectedItem, ok := m.listView.GetSelectedItem(); ok {
		headerRow := lipgloss.NewStyle().
			Foreground(m.styles.TierColor(selectedItem.Tier)).
			Bold(true).
			Padding(0, 1).
			Render(Truncate(fmt.Sprintf("Tier %d · %s", selectedItem.Tier, selectedItem.Bucket.Kind), width-2, true))

		return lipgloss.JoinVertical(lipgloss.Left, headerRow, box.Render(m.detailViewport.View()))
	}

	placeholderRow := lipgloss.NewStyle().
		Foreground(m.styles.TextSecondary).
		Padding(0, 1).
		Render(" ")

	empty := box.
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(m.styles.TextSecondary).
		Faint(true).
		Render("No bucket selected")

	return lipgloss.JoinVertical(lipgloss.Left, placeholderRow, empty)
}
