// Package metadata derives session-level facts (VIN, tool version, target
// module, procedure, time range and outcome) from a stream of records.
package metadata

import (
	"regexp"
	"strings"
	"time"

	"diaglog/src/contracts"
	"diaglog/src/diagerr"
	"diaglog/src/patterns"
	"diaglog/src/reference"
)

// Field names used in ambiguity warnings.
const (
	FieldVIN         = "vin"
	FieldToolVersion = "tool_version"
	FieldProcedure   = "procedure"
	FieldTargetECU   = "target_ecu"
)

var (
	toolContext = regexp.MustCompile(`(?i)\b(tool|fdrs|ids|odis|xentry|techstream|gds2|application|client|launcher)\b`)

	procedurePattern = regexp.MustCompile(`(?i)\b(?:procedure|routine name|operation|job)\s*[:=]\s*['"]?([A-Za-z][\w .\-/]*?)['"]?\s*$`)
	startingPattern  = regexp.MustCompile(`(?i)\b(?:starting|running|executing|launching)\s+(?:procedure|application|job)\s+['"]?([A-Za-z][\w .\-/]*?)['"]?\s*$`)

	targetPattern = regexp.MustCompile(`(?i)\btarget(?:\s*(?:ecu|module|address))?\s*[:=]\s*(?:0x)?([0-9A-F]{3})\b`)

	sessionWords = `(?:session|procedure|programming|reprogramming|flash(?:ing)?|software update|update|operation|job|download)`

	successMarker = regexp.MustCompile(`(?i)(?:\b` + sessionWords + `\b[^.;]*\b(?:completed? successfully|successful(?:ly)?|succeeded|finished successfully|passed)\b` +
		`|^\s*(?:result|status|outcome)\s*[:=]\s*(?:success(?:ful)?|pass(?:ed)?|ok)\b)`)
	failureMarker = regexp.MustCompile(`(?i)(?:\b` + sessionWords + `\b[^.;]*\b(?:failed|failure|aborted|unsuccessful|terminated)\b` +
		`|^\s*(?:result|status|outcome)\s*[:=]\s*(?:fail(?:ed|ure)?|error|abort(?:ed)?)\b)`)
)

// field tracks the first value of a metadata field and any conflicts.
type field struct {
	name   string
	values []string
}

func (f *field) observe(v string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	for _, seen := range f.values {
		if seen == v {
			return
		}
	}
	f.values = append(f.values, v)
}

// value is the field's only value, or empty when it saw none or several.
func (f *field) value() string {
	if len(f.values) == 1 {
		return f.values[0]
	}
	return ""
}

func (f *field) warning() (diagerr.AmbiguousMetadataWarning, bool) {
	if len(f.values) < 2 {
		return diagerr.AmbiguousMetadataWarning{}, false
	}
	return diagerr.AmbiguousMetadataWarning{Field: f.name, Values: append([]string(nil), f.values...)}, true
}

// Collector observes records in document order. It is private to one
// pipeline run.
type Collector struct {
	vin       field
	tool      field
	procedure field
	target    field

	start, end *time.Time

	successMarkers int
	failureMarkers int
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		vin:       field{name: FieldVIN},
		tool:      field{name: FieldToolVersion},
		procedure: field{name: FieldProcedure},
		target:    field{name: FieldTargetECU},
	}
}

// Observe folds one record and its pattern matches into the collector.
func (c *Collector) Observe(rec contracts.LogRecord, matches []contracts.PatternMatch) {
	if rec.Timestamp != nil {
		if c.start == nil {
			ts := *rec.Timestamp
			c.start = &ts
		}
		ts := *rec.Timestamp
		c.end = &ts
	}

	text := rec.RawText

	for _, m := range patterns.MatchesOfKind(matches, contracts.MatchVIN) {
		c.vin.observe(m.Value)
	}

	addrs := patterns.MatchesOfKind(matches, contracts.MatchECUAddress)
	if len(addrs) == 0 && toolContext.MatchString(text) {
		if versions := patterns.MatchesOfKind(matches, contracts.MatchVersion); len(versions) > 0 {
			c.tool.observe(versions[0].Value)
		}
	}

	c.observeProcedure(rec)
	c.observeTarget(rec, addrs)

	if successMarker.MatchString(text) || attrIn(rec, []string{"result", "status", "outcome"}, "success", "passed", "pass", "ok") {
		c.successMarkers++
	}
	if failureMarker.MatchString(text) || attrIn(rec, []string{"result", "status", "outcome"}, "failed", "failure", "fail", "error", "aborted") {
		c.failureMarkers++
	}
}

func (c *Collector) observeProcedure(rec contracts.LogRecord) {
	if v := attr(rec, "procedure"); v != "" {
		c.procedure.observe(v)
		return
	}
	if v := tagText(rec, "procedure", "procedurename"); v != "" {
		c.procedure.observe(v)
		return
	}
	for _, p := range []*regexp.Regexp{procedurePattern, startingPattern} {
		if m := p.FindStringSubmatch(rec.RawText); m != nil {
			c.procedure.observe(m[1])
			return
		}
	}
}

// observeTarget reads "target: 7E0" style declarations, including rendered
// XML attributes such as target=7E0.
func (c *Collector) observeTarget(rec contracts.LogRecord, addrs []contracts.PatternMatch) {
	loc := targetPattern.FindStringSubmatchIndex(rec.RawText)
	if loc == nil {
		if v := tagText(rec, "target", "targetecu", "targetmodule"); v != "" {
			if norm, err := reference.NormalizeAddress(v); err == nil {
				c.target.observe(norm)
			}
		}
		return
	}
	// Prefer the canonical address the extractor resolved at that position.
	for _, a := range addrs {
		if a.Span.Start == loc[2] {
			c.target.observe(a.Value)
			return
		}
	}
	c.target.observe(strings.ToUpper(rec.RawText[loc[2]:loc[3]]))
}

func attr(rec contracts.LogRecord, key string) string {
	for k, v := range rec.Attributes {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// tagText is the text of an attribute-less XML element named one of names.
func tagText(rec contracts.LogRecord, names ...string) string {
	if len(rec.TagPath) == 0 || len(rec.Attributes) > 0 {
		return ""
	}
	tag := rec.TagPath[len(rec.TagPath)-1]
	for _, n := range names {
		if strings.EqualFold(tag, n) {
			return rec.RawText
		}
	}
	return ""
}

func attrIn(rec contracts.LogRecord, keys []string, values ...string) bool {
	for _, k := range keys {
		v := strings.ToLower(strings.TrimSpace(attr(rec, k)))
		if v == "" {
			continue
		}
		for _, want := range values {
			if v == want {
				return true
			}
		}
	}
	return false
}

// Finish derives the session metadata. CRITICAL buckets must already carry
// their Resolved flag (see ResolveCritical).
func (c *Collector) Finish(buckets []contracts.ErrorBucket) contracts.SessionMetadata {
	md := contracts.SessionMetadata{
		VIN:         c.vin.value(),
		ToolVersion: c.tool.value(),
		Procedure:   c.procedure.value(),
		TargetECU:   c.target.value(),
		StartTime:   c.start,
		EndTime:     c.end,
		Outcome:     c.outcome(buckets),
	}
	for _, f := range []*field{&c.vin, &c.tool, &c.procedure, &c.target} {
		if w, ok := f.warning(); ok {
			md.Ambiguities = append(md.Ambiguities, w)
		}
	}
	return md
}

func (c *Collector) outcome(buckets []contracts.ErrorBucket) contracts.Outcome {
	for _, b := range buckets {
		if b.Kind == contracts.BucketCritical && !b.Resolved {
			return contracts.OutcomeFailure
		}
	}
	switch {
	case c.successMarkers == 0 && c.failureMarkers == 0:
		return contracts.OutcomeUnknown
	case c.failureMarkers == 0:
		return contracts.OutcomeSuccess
	case c.successMarkers == 0:
		return contracts.OutcomeFailure
	default:
		return contracts.OutcomePartial
	}
}

// ResolveCritical returns copies of buckets with Resolved set on every
// CRITICAL bucket whose modules all communicated successfully after the
// bucket's last line. A CRITICAL bucket naming no module stays unresolved.
func ResolveCritical(buckets []contracts.ErrorBucket, modules contracts.ModuleTable) []contracts.ErrorBucket {
	out := make([]contracts.ErrorBucket, len(buckets))
	copy(out, buckets)
	for i := range out {
		b := &out[i]
		if b.Kind != contracts.BucketCritical || len(b.Modules) == 0 {
			continue
		}
		resolved := true
		for _, addr := range b.Modules {
			if !succeededAfter(modules.Modules[addr], b.LastLine) {
				resolved = false
				break
			}
		}
		b.Resolved = resolved
	}
	return out
}

func succeededAfter(m *contracts.ECUModule, line int) bool {
	if m == nil {
		return false
	}
	for _, c := range m.Communications {
		if c.Line > line && c.Outcome == contracts.CommSuccess {
			return true
		}
	}
	return false
}

// Extract runs a collector over records.
func Extract(records []contracts.LogRecord, extractor *patterns.Extractor, buckets []contracts.ErrorBucket) contracts.SessionMetadata {
	c := NewCollector()
	for _, rec := range records {
		c.Observe(rec, extractor.Extract(rec))
	}
	return c.Finish(buckets)
}
