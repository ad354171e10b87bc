// Package analyze classifies log records into semantic buckets and
// deduplicates repeated events into counted buckets.
package analyze

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"diaglog/src/contracts"
	"diaglog/src/hexnrc"
	"diaglog/src/patterns"
	"diaglog/src/reference"
)

// MaxSamples is the default number of representative records kept per bucket.
const MaxSamples = 5

var (
	// Stack-frame continuation lines belong to the exception header above them.
	stackFramePattern = regexp.MustCompile(`^\s*(?:at\s+\S+\(|at\s+\S+\s+in\s+|File\s+"[^"]+",\s+line\s+\d+|---\s+End of (?:inner exception )?stack trace|\.\.\.\s*\d+\s+more\b)`)

	exceptionPattern = regexp.MustCompile(`\b(?:[A-Za-z_]\w*\.)*[A-Z]\w*Exception\b|(?i:\bunhandled exception\b)|\bTraceback \(most recent call last\)`)

	xmlValidationPattern = regexp.MustCompile(`(?i)\b(?:xml|xsd)\b.*\b(?:validat\w*|schema|not well-formed|pars(?:e|ing) error|persist\w*|serializ\w*|could not (?:save|write))\b|\bschema validation\b`)

	missingCatalogPattern = regexp.MustCompile(`(?i)\b(?:catalogu?e?|odx|pdx|vbf|calibration file)\b.*\b(?:missing|not found|unavailable|absent|not installed)\b|\b(?:missing|no)\s+(?:\w+\s+)?(?:catalogu?e?|odx|pdx|vbf)\b`)
)

// Classifier assigns bucket kinds to records. It holds only immutable state
// and is safe for concurrent use.
type Classifier struct {
	decoder *hexnrc.Decoder
}

// NewClassifier creates a classifier resolving NRC codes against refs.
func NewClassifier(refs *reference.Tables) *Classifier {
	return &Classifier{decoder: hexnrc.NewDecoder(refs)}
}

// IsStackFrame reports whether text is a stack-frame continuation line.
func IsStackFrame(text string) bool {
	return stackFramePattern.MatchString(text)
}

// Classify returns the bucket assignments for one record. At most one
// assignment is primary; secondary assignments annotate it. A record with
// no assignment is informational and not counted as matched.
func (c *Classifier) Classify(rec contracts.LogRecord, matches []contracts.PatternMatch) []contracts.BucketAssignment {
	text := strings.TrimSpace(rec.RawText)
	if text == "" || IsStackFrame(text) {
		return nil
	}

	programming := patterns.IsProgrammingContext(text)
	failureWords := patterns.HasFailureWords(text) || patterns.HasTimeoutWords(text) || patterns.HasFatalWords(text)

	var out []contracts.BucketAssignment
	primary := c.primary(text, matches, failureWords)
	if primary != nil {
		primary.Programming = programming
		out = append(out, *primary)
	}

	benign := primary != nil && primary.NRC != nil && primary.NRC.Benign
	primaryKind := contracts.BucketKind("")
	if primary != nil {
		primaryKind = primary.Kind
	}

	secondary := func(kind contracts.BucketKind) {
		out = append(out, contracts.BucketAssignment{
			Kind:        kind,
			Signature:   patterns.Signature(text),
			Programming: programming,
		})
	}

	if primaryKind != "" && primaryKind != contracts.BucketFailure && primaryKind != contracts.BucketSuccess && failureWords && !benign {
		secondary(contracts.BucketGenericError)
	}

	if !benign && c.isCritical(text, primary, programming) {
		secondary(contracts.BucketCritical)
	}

	if patterns.HasWarningWords(text) {
		secondary(contracts.BucketWarning)
	}

	if missingCatalogPattern.MatchString(text) {
		secondary(contracts.BucketMissingCatalog)
	}

	return out
}

// primary evaluates the primary rules in priority order.
func (c *Classifier) primary(text string, matches []contracts.PatternMatch, failureWords bool) *contracts.BucketAssignment {
	switch {
	case exceptionPattern.MatchString(text):
		return &contracts.BucketAssignment{Kind: contracts.BucketException, Signature: patterns.Signature(text), Primary: true}
	case xmlValidationPattern.MatchString(text):
		return &contracts.BucketAssignment{Kind: contracts.BucketXMLValidation, Signature: patterns.Signature(text), Primary: true}
	}

	if nrc := c.selectNRC(matches); nrc != nil {
		return &contracts.BucketAssignment{
			Kind:      contracts.BucketNRCNegative,
			Signature: NRCSignature(nrc.Code),
			Primary:   true,
			NRC:       nrc,
		}
	}

	if failureWords {
		return &contracts.BucketAssignment{Kind: contracts.BucketFailure, Signature: patterns.Signature(text), Primary: true}
	}
	if patterns.HasSuccessWords(text) {
		return &contracts.BucketAssignment{Kind: contracts.BucketSuccess, Primary: true}
	}
	return nil
}

// selectNRC picks the record's most significant code: the first non-benign
// code, else the first code.
func (c *Classifier) selectNRC(matches []contracts.PatternMatch) *contracts.NRCDetail {
	var first *contracts.NRCDetail
	for _, m := range patterns.MatchesOfKind(matches, contracts.MatchNRC) {
		d := c.describeNRC(m.Value)
		if !d.Benign {
			return d
		}
		if first == nil {
			first = d
		}
	}
	return first
}

func (c *Classifier) describeNRC(value string) *contracts.NRCDetail {
	code, err := hexnrc.ParseCode(value)
	if err != nil {
		return &contracts.NRCDetail{Code: strings.ToUpper(value), Name: "unknown"}
	}
	x := c.decoder.ExplainNRC(code)
	return &contracts.NRCDetail{
		Code:     x.Code,
		Name:     x.Name,
		Meaning:  x.Meaning,
		Category: x.Category,
		Benign:   x.Benign,
	}
}

// isCritical escalates fatal vocabulary, failures during programming or
// security access, and security or programming NRCs.
func (c *Classifier) isCritical(text string, primary *contracts.BucketAssignment, programming bool) bool {
	if patterns.HasFatalWords(text) {
		return true
	}
	if primary == nil {
		return false
	}
	if nrc := primary.NRC; nrc != nil {
		if nrc.Category == reference.NRCSecurity || nrc.Category == reference.NRCProgramming {
			return true
		}
	}
	switch primary.Kind {
	case contracts.BucketFailure, contracts.BucketException, contracts.BucketNRCNegative:
		return programming
	}
	return false
}

// NRCSignature is the dedup key of an NRC bucket.
func NRCSignature(code string) string {
	return "NRC 0x" + strings.ToUpper(code)
}

// CalculateMessageHash creates a hash of a bucket key for stable IDs.
func CalculateMessageHash(normalized string) string {
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:])
}

// BucketID derives the stable ID of the bucket holding (kind, signature).
func BucketID(kind contracts.BucketKind, signature string) string {
	return strings.ToLower(string(kind)) + "-" + CalculateMessageHash(string(kind)+"\x00"+signature)[:12]
}
