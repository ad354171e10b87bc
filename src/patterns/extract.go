package patterns

import (
	"regexp"
	"sort"
	"strings"

	"diaglog/src/contracts"
	"diaglog/src/reference"
)

// MinHexRun is the shortest hex payload, in hex characters, reported as HEX.
// Shorter runs are indistinguishable from ordinary numeric tokens.
const MinHexRun = 8

var (
	vinPattern     = regexp.MustCompile(`\b[A-HJ-NPR-Z0-9]{17}\b`)
	vinKeyword     = regexp.MustCompile(`(?i)\bVIN\b`)
	hexRunPattern  = regexp.MustCompile(`\b(?:0[xX])?[0-9A-Fa-f]{8,}\b`)
	hexBytePattern = regexp.MustCompile(`\b[0-9A-Fa-f]{2}(?:[ :-][0-9A-Fa-f]{2}){3,}\b`)
	hexLetter      = regexp.MustCompile(`[A-Fa-f]`)

	nrcTokenPattern    = regexp.MustCompile(`(?i)\bNRC\s*(?:[:=#]\s*|\s+)(?:0x)?([0-9A-F]{2})\b`)
	nrcPhrasePattern   = regexp.MustCompile(`(?i)\bnegative\s+response\s+(?:code\s*)?[:=]?\s*(?:0x)?([0-9A-F]{2})\b`)
	negativeRspPattern = regexp.MustCompile(`(?i)\b7F[ :-]?([0-9A-F]{2})[ :-]?([0-9A-F]{2})\b`)

	knownAddrPattern   = regexp.MustCompile(`\b[0-9A-F]{3}\b`)
	contextAddrPattern = regexp.MustCompile(`(?i)(?:\b(?:ecu|module|addr(?:ess)?|tx|rx|target|node|can\s*id|via|gateway|gw)\s*[:=#]?\s*(?:0x)?|\b0x)([0-9A-F]{3})\b`)

	// A bare all-digit token is an address only when a frame payload follows it.
	payloadAfter = regexp.MustCompile(`^\s*:?\s*[0-9A-Fa-f]{2}(?:[ :-][0-9A-Fa-f]{2})+\b`)

	didPattern = regexp.MustCompile(`(?i)\b(?:DID|DataByIdentifier|data\s+identifier)\s*[:=#]?\s*(?:0x)?([0-9A-F]{4})\b`)

	versionPattern     = regexp.MustCompile(`(?i)\b(?:version|ver\.?|v)\s*[:=]?\s*(\d+(?:\.\d+){1,3}(?:[-_][0-9A-Za-z]+)?)\b`)
	toolVersionPattern = regexp.MustCompile(`(?i)\b(?:FDRS|IDS|ODIS|Xentry|Techstream|GDS2)\s+(\d+(?:\.\d+){1,3})\b`)
)

// rule is one independent extraction pass.
type rule struct {
	kind contracts.MatchKind
	find func(e *Extractor, raw, masked string) []found
}

type found struct {
	start, end int
	value      string
	category   contracts.ModuleCategory
}

// Extractor runs the ordered extraction rules against records.
// It holds only immutable state and is safe for concurrent use.
type Extractor struct {
	refs  *reference.Tables
	rules []rule
}

// NewExtractor builds an extractor that resolves ECU addresses against refs.
func NewExtractor(refs *reference.Tables) *Extractor {
	return &Extractor{
		refs: refs,
		rules: []rule{
			{contracts.MatchVIN, findVINs},
			{contracts.MatchHex, findHexRuns},
			{contracts.MatchNRC, findNRCs},
			{contracts.MatchECUAddress, findAddresses},
			{contracts.MatchDID, findDIDs},
			{contracts.MatchVersion, findVersions},
		},
	}
}

// Extract returns all evidence in the record. Every rule runs; a line can
// carry an address and an NRC at once. Matches are grouped by rule in rule
// order and sorted by position within a rule.
func (e *Extractor) Extract(rec contracts.LogRecord) []contracts.PatternMatch {
	if strings.TrimSpace(rec.RawText) == "" {
		return nil
	}

	masked := blankVariableSpans(rec.RawText)

	var matches []contracts.PatternMatch
	for _, r := range e.rules {
		for _, f := range r.find(e, rec.RawText, masked) {
			matches = append(matches, contracts.PatternMatch{
				Line:     rec.LineNumber,
				Kind:     r.kind,
				Span:     contracts.Span{Start: f.start, End: f.end},
				Value:    f.value,
				Category: f.category,
			})
		}
	}
	return matches
}

// blankVariableSpans replaces timestamps and UUIDs with spaces of equal
// length so that date digits are never read as hex bytes while spans keep
// pointing into the original text.
func blankVariableSpans(s string) string {
	b := []byte(s)
	for _, p := range []*regexp.Regexp{timestampPattern, uuidPattern, clockPattern} {
		for _, loc := range p.FindAllStringIndex(s, -1) {
			for i := loc[0]; i < loc[1]; i++ {
				b[i] = ' '
			}
		}
	}
	return string(b)
}

func findVINs(_ *Extractor, raw, masked string) []found {
	var out []found
	keyword := vinKeyword.MatchString(raw)
	for _, loc := range vinPattern.FindAllStringIndex(masked, -1) {
		v := masked[loc[0]:loc[1]]
		if !hasLetterAndDigit(v) {
			continue
		}
		if isAllHex(v) && !keyword {
			continue
		}
		out = append(out, found{start: loc[0], end: loc[1], value: v})
	}
	return out
}

func findHexRuns(_ *Extractor, _ string, masked string) []found {
	var out []found
	for _, loc := range hexRunPattern.FindAllStringIndex(masked, -1) {
		v := masked[loc[0]:loc[1]]
		prefixed := strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X")
		if !prefixed && !hexLetter.MatchString(v) {
			continue
		}
		if prefixed {
			v = v[2:]
		}
		if len(v) < MinHexRun {
			continue
		}
		out = append(out, found{start: loc[0], end: loc[1], value: strings.ToUpper(v)})
	}
	for _, loc := range hexBytePattern.FindAllStringIndex(masked, -1) {
		v := stripSeparators(masked[loc[0]:loc[1]])
		out = append(out, found{start: loc[0], end: loc[1], value: strings.ToUpper(v)})
	}
	sortFound(out)
	return out
}

func findNRCs(_ *Extractor, _ string, masked string) []found {
	var out []found
	for _, p := range []*regexp.Regexp{nrcTokenPattern, nrcPhrasePattern} {
		for _, m := range p.FindAllStringSubmatchIndex(masked, -1) {
			out = append(out, found{start: m[0], end: m[1], value: strings.ToUpper(masked[m[2]:m[3]])})
		}
	}
	for _, m := range negativeRspPattern.FindAllStringSubmatchIndex(masked, -1) {
		out = append(out, found{start: m[0], end: m[1], value: strings.ToUpper(masked[m[4]:m[5]])})
	}
	sortFound(out)
	return out
}

func findAddresses(e *Extractor, _ string, masked string) []found {
	seen := make(map[int]bool)
	var out []found

	add := func(start, end int, token string) {
		if seen[start] {
			return
		}
		seen[start] = true
		addr, entry, known := e.refs.Canonical(token)
		category := contracts.CategoryUnknown
		if known {
			category = entry.Category
		}
		out = append(out, found{start: start, end: end, value: addr, category: category})
	}

	for _, loc := range knownAddrPattern.FindAllStringIndex(masked, -1) {
		token := masked[loc[0]:loc[1]]
		if !hexLetter.MatchString(token) && !payloadAfter.MatchString(masked[loc[1]:]) {
			continue
		}
		if _, _, known := e.refs.Canonical(token); known {
			add(loc[0], loc[1], token)
		}
	}
	for _, m := range contextAddrPattern.FindAllStringSubmatchIndex(masked, -1) {
		add(m[2], m[3], masked[m[2]:m[3]])
	}

	sortFound(out)
	return out
}

func findDIDs(_ *Extractor, _ string, masked string) []found {
	var out []found
	for _, m := range didPattern.FindAllStringSubmatchIndex(masked, -1) {
		out = append(out, found{start: m[0], end: m[1], value: strings.ToUpper(masked[m[2]:m[3]])})
	}
	return out
}

func findVersions(_ *Extractor, _ string, masked string) []found {
	var out []found
	seen := make(map[int]bool)
	for _, p := range []*regexp.Regexp{toolVersionPattern, versionPattern} {
		for _, m := range p.FindAllStringSubmatchIndex(masked, -1) {
			if seen[m[2]] {
				continue
			}
			seen[m[2]] = true
			out = append(out, found{start: m[0], end: m[1], value: masked[m[2]:m[3]]})
		}
	}
	sortFound(out)
	return out
}

func sortFound(fs []found) {
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].start < fs[j].start })
}

func hasLetterAndDigit(s string) bool {
	letter, digit := false, false
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			digit = true
		case c >= 'A' && c <= 'Z':
			letter = true
		}
	}
	return letter && digit
}

func isAllHex(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'F' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == ':' || r == '-' {
			return -1
		}
		return r
	}, s)
}

// MatchesOfKind filters matches by kind, preserving order.
func MatchesOfKind(matches []contracts.PatternMatch, kind contracts.MatchKind) []contracts.PatternMatch {
	var out []contracts.PatternMatch
	for _, m := range matches {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// Addresses returns the distinct ECU addresses in the matches, in order of
// first appearance.
func Addresses(matches []contracts.PatternMatch) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range matches {
		if m.Kind != contracts.MatchECUAddress || seen[m.Value] {
			continue
		}
		seen[m.Value] = true
		out = append(out, m.Value)
	}
	return out
}
