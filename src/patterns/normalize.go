// Package patterns provides log line normalization and evidence extraction
// for diagnostic session logs.
//
// Normalization runs at two masking levels:
//   - MaskRecurrence: aggressive, used to build exception signatures so that
//     textually different but identical stack traces collapse into one bucket
//   - MaskPresentation: conservative, used for digests and UI display
package patterns

import (
	"regexp"
	"strings"
)

// MaskingLevel controls how aggressively log lines are normalized.
type MaskingLevel int

const (
	// MaskPresentation preserves diagnostic details like line numbers.
	// Example: C:\Tool\Session\Runner.cs:line 42 → ...\Runner.cs:line 42
	MaskPresentation MaskingLevel = iota

	// MaskRecurrence normalizes every variable token for signature comparison.
	// Example: Object #4711 at 0x1F00 → Object #[ID] at [HEX]
	MaskRecurrence
)

// Shared regex patterns - compiled once at package init.
var (
	// timestampPattern matches ISO8601 and common tool log timestamps.
	// Matches: 2024-05-21T10:00:05.123Z, 2024-05-21 10:00:05,123, 05/21/2024 10:00:05
	timestampPattern = regexp.MustCompile(`(?:\d{4}-\d{2}-\d{2}|\d{2}/\d{2}/\d{4})[T ]\d{2}:\d{2}:\d{2}([.,]\d+)?(Z|[+-]\d{2}:?\d{2})?`)

	// clockPattern matches a bare time of day, e.g. 10:00:05.123
	clockPattern = regexp.MustCompile(`\b\d{2}:\d{2}:\d{2}(?:[.,]\d+)?\b`)

	// uuidPattern matches UUIDs and brace-wrapped GUIDs.
	uuidPattern = regexp.MustCompile(`\{?\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b\}?`)

	// longHashPattern matches long lowercase hex strings (session ids, hashes).
	longHashPattern = regexp.MustCompile(`\b[a-f0-9]{12,}\b`)

	// hexAddressPattern matches 0x-prefixed values (memory addresses, handles).
	hexAddressPattern = regexp.MustCompile(`\b0x[0-9a-fA-F]+\b`)

	// objectIDPattern matches identity suffixes such as Foo@1b6d3586 or Object #4711.
	objectIDPattern = regexp.MustCompile(`(@[0-9a-fA-F]{4,}\b|#\d+\b)`)

	// numberPattern matches standalone numbers.
	numberPattern = regexp.MustCompile(`\b\d+\b`)

	// longPathPattern matches absolute Unix paths with 3+ directories.
	longPathPattern = regexp.MustCompile(`/(?:[^/\s]+/){3,}([^/\s:]+(?::\d+)?)`)

	// windowsPathPattern matches drive-letter paths, which most service tools write.
	windowsPathPattern = regexp.MustCompile(`[A-Za-z]:\\(?:[^\\\s]+\\)+([^\\\s:]+)`)

	// whitespacePattern matches multiple consecutive whitespace.
	whitespacePattern = regexp.MustCompile(`\s+`)

	// leadingNoisePattern matches placeholders and level tags at the start of
	// an already masked line.
	leadingNoisePattern = regexp.MustCompile(`(?i)^(?:\[(?:TIMESTAMP|NUM|UUID|ID)\]\s*|\[?(?:ERROR|ERR|WARN(?:ING)?|INFO|DEBUG|TRACE|FATAL)\]?:?\s+)+`)
)

// minPrefixLength is the minimum common prefix length worth removing.
const minPrefixLength = 20

// Normalize applies pattern normalization to a single line.
func Normalize(line string, level MaskingLevel) string {
	line = stripTimestamps(line, level)
	line = maskUUIDs(line, level)
	line = maskHexAddresses(line, level)

	switch level {
	case MaskPresentation:
		line = compressPath(line)
		line = maskLongHashes(line)
	case MaskRecurrence:
		line = maskAllPaths(line)
		line = maskLongHashes(line)
		line = maskObjectIDs(line)
		line = maskNumbers(line)
	}

	return normalizeWhitespace(line)
}

// Signature returns the comparison key for exception-like records: the line
// masked at MaskRecurrence with leading timestamps and level tags removed.
// Two records with equal signatures always land in the same bucket.
func Signature(line string) string {
	sig := Normalize(line, MaskRecurrence)
	return strings.TrimSpace(leadingNoisePattern.ReplaceAllString(sig, ""))
}

// NormalizeLines applies normalization to multiple lines and, in
// presentation mode, removes a shared prefix.
func NormalizeLines(lines []string, level MaskingLevel) []string {
	if len(lines) == 0 {
		return lines
	}

	result := make([]string, len(lines))
	for i, line := range lines {
		result[i] = Normalize(line, level)
	}

	if level == MaskPresentation {
		result = removeCommonPrefix(result)
	}

	return result
}

// --- Core transforms (always applied) ---

func stripTimestamps(line string, level MaskingLevel) string {
	switch level {
	case MaskPresentation:
		// Strip leading timestamps entirely for cleaner display
		if loc := timestampPattern.FindStringIndex(line); loc != nil && loc[0] < 5 {
			line = strings.TrimSpace(line[loc[1]:])
		}
		return line
	case MaskRecurrence:
		line = timestampPattern.ReplaceAllString(line, "[TIMESTAMP]")
		return clockPattern.ReplaceAllString(line, "[TIMESTAMP]")
	}
	return line
}

func maskUUIDs(line string, level MaskingLevel) string {
	switch level {
	case MaskPresentation:
		return uuidPattern.ReplaceAllString(line, "<UUID>")
	case MaskRecurrence:
		return uuidPattern.ReplaceAllString(line, "[UUID]")
	}
	return line
}

func maskHexAddresses(line string, level MaskingLevel) string {
	switch level {
	case MaskPresentation:
		return hexAddressPattern.ReplaceAllString(line, "<HEX>")
	case MaskRecurrence:
		return hexAddressPattern.ReplaceAllString(line, "[HEX]")
	}
	return line
}

// --- Presentation-only transforms ---

// compressPath shortens long paths while preserving the file name.
func compressPath(line string) string {
	line = longPathPattern.ReplaceAllString(line, ".../$1")
	return windowsPathPattern.ReplaceAllString(line, `...\$1`)
}

func maskLongHashes(line string) string {
	return longHashPattern.ReplaceAllString(line, "<HASH>")
}

// --- Recurrence-only transforms ---

func maskAllPaths(line string) string {
	line = longPathPattern.ReplaceAllString(line, "[PATH]")
	return windowsPathPattern.ReplaceAllString(line, "[PATH]")
}

func maskObjectIDs(line string) string {
	return objectIDPattern.ReplaceAllStringFunc(line, func(m string) string {
		return m[:1] + "[ID]"
	})
}

// maskNumbers replaces standalone numbers, including embedded line numbers.
func maskNumbers(line string) string {
	return numberPattern.ReplaceAllString(line, "[NUM]")
}

// --- Shared cleanup ---

func normalizeWhitespace(line string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(line, " "))
}

func removeCommonPrefix(lines []string) []string {
	prefix := findCommonPrefix(lines)
	if prefix == "" {
		return lines
	}

	result := make([]string, len(lines))
	for i, line := range lines {
		result[i] = "... " + line[len(prefix):]
	}
	return result
}

func findCommonPrefix(lines []string) string {
	if len(lines) < 2 {
		return ""
	}

	prefix := lines[0]
	for _, line := range lines[1:] {
		for len(prefix) > 0 && (len(line) < len(prefix) || line[:len(prefix)] != prefix) {
			prefix = prefix[:len(prefix)-1]
		}
		if len(prefix) == 0 {
			break
		}
	}

	if len(prefix) < minPrefixLength {
		return ""
	}

	return prefix
}
