package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"diaglog/src/contracts"
)

const (
	// listRenderingOverhead accounts for padding added by bubbles/list and panel borders.
	// Breakdown: panel border (2) + list internal padding/margins (8) = 10 chars total.
	listRenderingOverhead = 10

	kindWidth = 4
)

// kindLabels are the fixed-width kind column labels.
var kindLabels = map[contracts.BucketKind]string{
	contracts.BucketCritical:       "CRIT",
	contracts.BucketFailure:        "FAIL",
	contracts.BucketException:      "EXC",
	contracts.BucketNRCNegative:    "NRC",
	contracts.BucketXMLValidation:  "XML",
	contracts.BucketGenericError:   "ERR",
	contracts.BucketWarning:        "WARN",
	contracts.BucketMissingCatalog: "CAT",
}

// KindLabel returns the short label of a bucket kind.
func KindLabel(kind contracts.BucketKind) string {
	if l, ok := kindLabels[kind]; ok {
		return l
	}
	return Truncate(string(kind), kindWidth, false)
}

// Delegate renders bucket items as table rows.
type Delegate struct {
	RankWidth  int
	CountWidth int
	styles     *StyleConfig
}

// NewDelegate creates a new bucket table delegate with default styles
func NewDelegate() Delegate {
	return NewDelegateWithStyles(DefaultStyles())
}

// NewDelegateWithStyles creates a new delegate with custom styles
func NewDelegateWithStyles(styles *StyleConfig) Delegate {
	return Delegate{
		RankWidth:  2,
		CountWidth: 2,
		styles:     styles,
	}
}

// SetColumnWidths sets the widths for rank and count columns
func (d *Delegate) SetColumnWidths(maxRank, maxCount int) {
	d.RankWidth = max(2, len(fmt.Sprintf("%d", maxRank)))
	d.CountWidth = max(2, len(fmt.Sprintf("%d", maxCount)))
}

// Height returns the height of a list item
func (d Delegate) Height() int {
	return 1
}

// Spacing returns spacing between items
func (d Delegate) Spacing() int {
	return 0
}

// Update handles item updates
func (d Delegate) Update(msg tea.Msg, m *list.Model) tea.Cmd {
	return nil
}

// getSnippetText returns the best text to show in the list snippet.
// It prefers the signature and falls back to the first sample.
func getSnippetText(entry Item) string {
	if sig := CleanLogText(entry.Bucket.Signature); strings.TrimSpace(sig) != "" {
		return sig
	}
	for _, line := range entry.GetSamples() {
		if clean := CleanLogText(line); strings.TrimSpace(clean) != "" {
			return clean
		}
	}
	return ""
}

// Render renders a list item
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	entry, ok := item.(Item)
	if !ok {
		return
	}

	isSelected := index == m.Index()

	rankCol := fmt.Sprintf("%*d", d.RankWidth, entry.Rank)
	tierCol := fmt.Sprintf("T%d", entry.Tier)
	countCol := fmt.Sprintf("%*d", d.CountWidth, entry.GetCount())
	kindCol := TruncateAndPad(KindLabel(entry.Bucket.Kind), kindWidth, false)

	// Fixed columns: rank + tier (2) + count + kind + separators (12)
	fixedWidth := d.RankWidth + 2 + d.CountWidth + kindWidth + 12
	availableWidth := m.Width() - fixedWidth - listRenderingOverhead

	var snippet string
	if availableWidth > 0 {
		snippet = TruncateAndPad(getSnippetText(entry), availableWidth, true)
	}

	line := fmt.Sprintf("%s │ %s │ %s │ %s │ %s",
		rankCol, tierCol, countCol, kindCol, snippet)

	style := lipgloss.NewStyle().Foreground(d.styles.TextSecondary)
	if isSelected {
		style = style.Bold(true).Foreground(d.styles.PrimaryBlue).Background(d.styles.SelectedColor)
	}

	fmt.Fprint(w, style.Render(line))
}
