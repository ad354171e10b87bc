package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Tier filter labels, indexed by tier number (0 is all tiers).
var tierFilters = []string{"ALL", "EVIDENCE", "ERRORS", "NOISE"}

// Header represents the top status bar component.
type Header struct {
	sessionStatus  string
	selectedKind   string
	availableKinds []string
	tierFilter     int
	searchQuery    string
	searchMode     bool
	styles         *StyleConfig
}

// NewHeader creates a new header with default styles
func NewHeader(sessionStatus string, availableKinds []string) Header {
	return NewHeaderWithStyles(sessionStatus, availableKinds, DefaultStyles())
}

// NewHeaderWithStyles creates a new header with custom styles
func NewHeaderWithStyles(sessionStatus string, availableKinds []string, styles *StyleConfig) Header {
	return Header{
		sessionStatus:  sessionStatus,
		selectedKind:   "ALL",
		availableKinds: availableKinds,
		styles:         styles,
	}
}

// SetStatus replaces the session status text.
func (h *Header) SetStatus(status string, availableKinds []string) {
	h.sessionStatus = status
	h.availableKinds = availableKinds
	h.selectedKind = "ALL"
}

// SetFilter sets the current kind filter
func (h *Header) SetFilter(filter string) {
	h.selectedKind = filter
}

// GetFilter returns the current kind filter
func (h Header) GetFilter() string {
	return h.selectedKind
}

// CycleFilter cycles to the next bucket kind
func (h *Header) CycleFilter() {
	filters := append([]string{"ALL"}, h.availableKinds...)
	currentIndex := 0
	for i, f := range filters {
		if f == h.selectedKind {
			currentIndex = i
			break
		}
	}
	h.selectedKind = filters[(currentIndex+1)%len(filters)]
}

// SetTierFilter selects a tier; 0 shows all tiers.
func (h *Header) SetTierFilter(tier int) {
	if tier < 0 || tier >= len(tierFilters) {
		tier = 0
	}
	h.tierFilter = tier
}

// GetTierFilter returns the selected tier, 0 for all.
func (h Header) GetTierFilter() int {
	return h.tierFilter
}

// SetSearch updates the search state
func (h *Header) SetSearch(query string, mode bool) {
	h.searchQuery = query
	h.searchMode = mode
}

// Render renders the header
func (h Header) Render(width int) string {
	sectionStyle := lipgloss.NewStyle().
		Foreground(h.styles.PrimaryBlue).
		Bold(true).
		Padding(0, 2)

	status := sectionStyle.Render(Truncate(h.sessionStatus, max(10, width/2), true))
	filter := sectionStyle.Render(fmt.Sprintf("Kind: %s  Tier: %s", h.selectedKind, tierFilters[h.tierFilter]))

	var searchText string
	if h.searchMode {
		searchText = fmt.Sprintf("Search: %s█", h.searchQuery)
	} else if h.searchQuery != "" {
		searchText = fmt.Sprintf("Search: %s", h.searchQuery)
	} else {
		searchText = "[/] to search"
	}

	searchStyle := lipgloss.NewStyle().
		Foreground(h.styles.TextSecondary).
		Padding(0, 2)
	if h.searchMode {
		searchStyle = searchStyle.Foreground(h.styles.PrimaryBlue)
	}
	search := searchStyle.Render(searchText)

	leftSection := lipgloss.JoinHorizontal(lipgloss.Left, status, filter, search)
	if lipgloss.Width(leftSection) > width {
		leftSection = lipgloss.JoinVertical(lipgloss.Left, status, lipgloss.JoinHorizontal(lipgloss.Left, filter, search))
	}

	headerStyle := lipgloss.NewStyle().
		Background(h.styles.DarkBackground).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(h.styles.BorderColor).
		MaxWidth(width).
		Width(width)

	return headerStyle.Render(leftSection)
}
