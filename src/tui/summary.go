// Package tui renders diagnostic reports in the terminal: a static summary for
// the CLI and an interactive bucket viewer built on Bubble Tea.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"diaglog/src/contracts"
)

// MaxSummaryBuckets limits the bucket table of the static summary.
const MaxSummaryBuckets = 20

// RenderReport renders report as static, bordered sections no wider than width.
func RenderReport(report *contracts.Report, width int) string {
	return renderReport(report, width, DefaultStyles())
}

func renderReport(r *contracts.Report, width int, styles *StyleConfig) string {
	width = max(40, width)
	inner := width - 4 // border (2) + padding (2)
	box := styles.SectionStyle().Width(width - 2)

	title := styles.TitleStyle().Render(Truncate("Diagnostic report: "+r.Source, width-2, true))
	sections := []string{
		title,
		box.Render(renderSession(r, inner, styles)),
		box.BorderForeground(styles.RiskColor(r.Conclusion.RiskLevel)).
			Render(RenderConclusion(r.Conclusion, inner, styles)),
	}
	if len(r.Buckets) > 0 {
		sections = append(sections, box.Render(renderBuckets(r, inner, styles)))
	}
	if mods := renderModules(r, inner, styles); mods != "" {
		sections = append(sections, box.Render(mods))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func label(styles *StyleConfig, s string) string {
	return lipgloss.NewStyle().Foreground(styles.TextSecondary).Bold(true).Render(s)
}

func renderSession(r *contracts.Report, width int, styles *StyleConfig) string {
	md := r.Metadata
	var b strings.Builder

	outcome := string(md.Outcome)
	if r.Partial {
		outcome += " (partial analysis)"
	}
	rows := [][2]string{
		{"Outcome", outcome},
		{"VIN", md.VIN},
		{"Tool", md.ToolVersion},
		{"Procedure", md.Procedure},
		{"Target ECU", md.TargetECU},
	}
	if md.StartTime != nil && md.EndTime != nil {
		rows = append(rows, [2]string{"Duration", md.EndTime.Sub(*md.StartTime).Round(time.Second).String()})
	}
	rows = append(rows, [2]string{"Records", fmt.Sprintf("%d (%d matched, %d success)", r.Stats.Records, r.Stats.Matched, r.Stats.Success)})

	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		fmt.Fprintf(&b, "%s %s\n", label(styles, fmt.Sprintf("%-11s", row[0]+":")), Truncate(row[1], width-12, true))
	}
	for _, a := range md.Ambiguities {
		fmt.Fprintln(&b, lipgloss.NewStyle().Foreground(styles.RiskColors[1]).Render(Wrap("! "+a.Error(), width)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderConclusion renders a conclusion block of the given width.
func RenderConclusion(c contracts.Conclusion, width int, styles *StyleConfig) string {
	var b strings.Builder

	risk := lipgloss.NewStyle().Bold(true).Foreground(styles.RiskColor(c.RiskLevel)).Render(string(c.RiskLevel))
	fmt.Fprintf(&b, "%s %s  %s %.2f  %s %s\n",
		label(styles, "Risk:"), risk,
		label(styles, "Confidence:"), c.Confidence,
		label(styles, "Category:"), c.Category)
	fmt.Fprintln(&b, Wrap(c.RootCause, width))

	if len(c.Recommendations) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, label(styles, "Recommendations:"))
		for _, rec := range c.Recommendations {
			fmt.Fprintln(&b, Wrap("- "+rec, width))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderBuckets(r *contracts.Report, width int, styles *StyleConfig) string {
	items := BuildItems(r)
	var b strings.Builder

	fmt.Fprintln(&b, label(styles, "Buckets:"))
	for i, it := range items {
		if i == MaxSummaryBuckets {
			fmt.Fprintf(&b, "... %d more\n", len(items)-i)
			break
		}
		prefix := fmt.Sprintf("%3d │ T%d │ %5d │ %-4s │ ", it.Rank, it.Tier, it.GetCount(), KindLabel(it.Bucket.Kind))
		row := prefix + Truncate(CleanLogText(it.Bucket.Signature), width-VisualWidth(prefix), true)
		fmt.Fprintln(&b, lipgloss.NewStyle().Foreground(styles.TierColor(it.Tier)).Render(row))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderModules(r *contracts.Report, width int, styles *StyleConfig) string {
	addrs := make([]string, 0, len(r.Modules.Modules))
	for addr := range r.Modules.Modules {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	var b strings.Builder
	if len(addrs) > 0 {
		fmt.Fprintln(&b, label(styles, "Modules:"))
	}
	for _, addr := range addrs {
		m := r.Modules.Modules[addr]
		row := fmt.Sprintf("%-12s %-8s ok=%d fail=%d timeout=%d", m.Label(), m.Category, m.Successes, m.Failures, m.Timeouts)
		if m.Intermittent != nil {
			row += fmt.Sprintf(" intermittent(%d)", m.Intermittent.Timeouts)
		}
		fmt.Fprintln(&b, Truncate(row, width, true))
	}

	deps := make([]string, 0, len(r.Dependencies))
	for mod := range r.Dependencies {
		deps = append(deps, mod)
	}
	sort.Strings(deps)
	for _, mod := range deps {
		line := fmt.Sprintf("! %s has no traffic through gateway %s", mod, strings.Join(r.Dependencies[mod], ", "))
		fmt.Fprintln(&b, lipgloss.NewStyle().Foreground(styles.RiskColors[2]).Render(Wrap(line, width)))
	}
	return strings.TrimRight(b.String(), "\n")
}
