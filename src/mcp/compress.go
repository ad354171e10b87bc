package mcp

import (
	"diaglog/src/contracts"
	"diaglog/src/patterns"
	"diaglog/src/sanitize"
)

// maxLineLength caps a compressed sample line.
const maxLineLength = 240

// CompressLine strips terminal escapes and presentation-masks one line.
func CompressLine(line string) string {
	return truncate(patterns.Normalize(sanitize.StripANSI(line), patterns.MaskPresentation), maxLineLength)
}

// CompressSamples compresses at most limit sample records. A shared prefix
// across the kept lines is replaced with "... ". A limit <= 0 keeps all.
func CompressSamples(samples []contracts.LogRecord, limit int) []string {
	if limit > 0 && len(samples) > limit {
		samples = samples[:limit]
	}
	lines := make([]string, len(samples))
	for i, rec := range samples {
		lines[i] = sanitize.StripANSI(rec.RawText)
	}
	lines = patterns.NormalizeLines(lines, patterns.MaskPresentation)
	for i := range lines {
		lines[i] = truncate(lines[i], maxLineLength)
	}
	return lines
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
