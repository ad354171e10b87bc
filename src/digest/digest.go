// Package digest renders a compact, budget-bounded text summary of a report
// for an AI collaborator. Nothing is ever parsed back from the collaborator.
package digest

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"diaglog/src/contracts"
	"diaglog/src/patterns"
	"diaglog/src/ranking"
)

// CharsPerToken is the token estimate used to convert a token budget.
const CharsPerToken = 4

// DefaultMaxChars applies when a budget sets neither limit.
const DefaultMaxChars = 4000

// maxSampleChars caps one sample line.
const maxSampleChars = 160

const truncatedMarker = "[truncated]"

// Budget bounds the digest size. Zero fields are unset; when both are set the
// stricter one wins.
type Budget struct {
	MaxChars  int
	MaxTokens int
}

// Limit returns the effective character limit.
func (b Budget) Limit() int {
	limit := 0
	if b.MaxChars > 0 {
		limit = b.MaxChars
	}
	if b.MaxTokens > 0 {
		if byTokens := b.MaxTokens * CharsPerToken; limit == 0 || byTokens < limit {
			limit = byTokens
		}
	}
	if limit == 0 {
		limit = DefaultMaxChars
	}
	return limit
}

// EstimateTokens estimates the token count of s.
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + CharsPerToken - 1) / CharsPerToken
}

// Build renders the digest of report within budget. Lines are emitted in
// priority order (conclusion, session, dependencies, buckets, modules,
// recommendations) and the digest stops at the first line that does not fit.
// The result never exceeds Budget.Limit() characters.
func Build(report *contracts.Report, budget Budget) string {
	w := &writer{limit: budget.Limit()}

	for _, line := range lines(report) {
		if !w.add(line) {
			w.add(truncatedMarker)
			break
		}
	}
	return w.String()
}

type writer struct {
	b     strings.Builder
	chars int
	limit int
}

// add appends line if it fits. A first line that does not fit is cut.
func (w *writer) add(line string) bool {
	n := utf8.RuneCountInString(line)
	if w.chars > 0 {
		n++
	}
	if w.chars+n > w.limit {
		if w.chars == 0 {
			w.b.WriteString(cut(line, w.limit))
			w.chars = w.limit
		}
		return false
	}
	if w.chars > 0 {
		w.b.WriteByte('\n')
	}
	w.b.WriteString(line)
	w.chars += n
	return true
}

func (w *writer) String() string {
	return w.b.String()
}

// cut truncates s to at most n runes.
func cut(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-3]) + "..."
}

func lines(r *contracts.Report) []string {
	var out []string

	header := fmt.Sprintf("DIAGNOSTIC DIGEST source=%s records=%d matched=%d success=%d buckets=%d",
		orNone(r.Source), r.Stats.Records, r.Stats.Matched, r.Stats.Success, len(r.Buckets))
	if r.Partial {
		header += " PARTIAL"
	}
	out = append(out, header)

	c := r.Conclusion
	out = append(out,
		fmt.Sprintf("CONCLUSION risk=%s confidence=%.2f category=%s", c.RiskLevel, c.Confidence, orNone(c.Category)),
		"ROOT CAUSE: "+c.RootCause,
	)

	md := r.Metadata
	out = append(out, fmt.Sprintf("SESSION outcome=%s vin=%s tool=%s procedure=%s target=%s",
		md.Outcome, orNone(md.VIN), orNone(md.ToolVersion), orNone(md.Procedure), orNone(md.TargetECU)))
	for _, a := range md.Ambiguities {
		out = append(out, "AMBIGUOUS "+a.Error())
	}

	if len(r.Dependencies) > 0 {
		mods := make([]string, 0, len(r.Dependencies))
		for m := range r.Dependencies {
			mods = append(mods, m)
		}
		sort.Strings(mods)
		for _, m := range mods {
			out = append(out, fmt.Sprintf("MISSING DEPENDENCY %s -> %s",
				moduleLabel(r.Modules, m), strings.Join(labels(r.Modules, r.Dependencies[m]), ", ")))
		}
	}

	ranked := ranking.TierBuckets(r.Buckets, c).FlattenByTier()
	if len(ranked) > 0 {
		out = append(out, "BUCKETS:")
	}
	for _, rb := range ranked {
		b := rb.Bucket
		line := fmt.Sprintf("- T%d %s x%d lines %d-%d: %s", rb.Tier, b.Kind, b.Count, b.FirstLine, b.LastLine, b.Signature)
		if b.NRC != nil {
			line += fmt.Sprintf(" (%s, %s)", b.NRC.Name, b.NRC.Category)
		}
		if len(b.Modules) > 0 {
			line += " modules=" + strings.Join(b.Modules, ",")
		}
		if b.Resolved {
			line += " resolved"
		}
		out = append(out, line)
		if len(b.Samples) > 0 {
			sample := patterns.Normalize(b.Samples[0].RawText, patterns.MaskPresentation)
			out = append(out, "  sample: "+cut(sample, maxSampleChars))
		}
	}

	addrs := make([]string, 0, len(r.Modules.Modules))
	for addr, m := range r.Modules.Modules {
		if m.Failures+m.Timeouts > 0 || m.Intermittent != nil {
			addrs = append(addrs, addr)
		}
	}
	sort.Strings(addrs)
	if len(addrs) > 0 {
		out = append(out, "MODULES:")
	}
	for _, addr := range addrs {
		m := r.Modules.Modules[addr]
		line := fmt.Sprintf("- %s %s ok=%d fail=%d timeout=%d", m.Label(), m.Category, m.Successes, m.Failures, m.Timeouts)
		if m.Intermittent != nil {
			line += fmt.Sprintf(" intermittent=%d", m.Intermittent.Timeouts)
		}
		out = append(out, line)
	}

	if len(c.Recommendations) > 0 {
		out = append(out, "RECOMMENDATIONS:")
		for _, rec := range c.Recommendations {
			out = append(out, "- "+rec)
		}
	}
	return out
}

func moduleLabel(t contracts.ModuleTable, addr string) string {
	if m, ok := t.Modules[addr]; ok {
		return m.Label()
	}
	return addr
}

func labels(t contracts.ModuleTable, addrs []string) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = moduleLabel(t, a)
	}
	return out
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
