package tui

import (
	"github.com/charmbracelet/lipgloss"

	"diaglog/src/contracts"
	"diaglog/src/ranking"
)

// StyleConfig holds all customizable style colors for the report UI.
type StyleConfig struct {
	// Primary colors
	PrimaryBlue    lipgloss.Color
	AccentBlue     lipgloss.Color
	DarkBackground lipgloss.Color
	CardBackground lipgloss.Color
	TextPrimary    lipgloss.Color
	TextSecondary  lipgloss.Color
	BorderColor    lipgloss.Color
	SelectedColor  lipgloss.Color

	// Risk level colors, LOW to CRITICAL
	RiskColors []lipgloss.Color
}

// DefaultStyles returns the default color palette
func DefaultStyles() *StyleConfig {
	return &StyleConfig{
		PrimaryBlue:    lipgloss.Color("#8AB4F8"),
		AccentBlue:     lipgloss.Color("#4285F4"),
		DarkBackground: lipgloss.Color("#1E1E1E"),
		CardBackground: lipgloss.Color("#2D2D2D"),
		TextPrimary:    lipgloss.Color("#E8EAED"),
		TextSecondary:  lipgloss.Color("#9AA0A6"),
		BorderColor:    lipgloss.Color("#5F6368"),
		SelectedColor:  lipgloss.Color("#303134"),
		RiskColors: []lipgloss.Color{
			lipgloss.Color("#34A853"), // Green
			lipgloss.Color("#FBBC04"), // Yellow
			lipgloss.Color("#FA7B17"), // Orange
			lipgloss.Color("#EA4335"), // Red
		},
	}
}

// RiskColor returns the color of a risk level.
func (s *StyleConfig) RiskColor(level contracts.RiskLevel) lipgloss.Color {
	return s.RiskColors[level.Rank()%len(s.RiskColors)]
}

// TierColor returns the color used for a bucket tier.
func (s *StyleConfig) TierColor(tier int) lipgloss.Color {
	switch tier {
	case ranking.TierEvidence:
		return s.RiskColors[len(s.RiskColors)-1]
	case ranking.TierError:
		return s.RiskColors[1]
	default:
		return s.TextSecondary
	}
}

// TitleStyle returns a title lipgloss style using this config
func (s *StyleConfig) TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.PrimaryBlue).
		Bold(true).
		Padding(0, 1)
}

// HelpStyle returns a help text lipgloss style using this config
func (s *StyleConfig) HelpStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.TextSecondary).
		Padding(0, 2)
}

// SectionStyle returns the bordered box used by the static report view.
func (s *StyleConfig) SectionStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(s.BorderColor).
		Padding(0, 1)
}
