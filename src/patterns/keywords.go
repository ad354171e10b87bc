package patterns

import "regexp"

// Outcome and severity vocabulary shared by classification, module tracking
// and metadata extraction.
var (
	fatalWords   = regexp.MustCompile(`(?i)\b(fatal|panic|abort(?:ed|ing)?|critical\s+(?:error|failure|fault)s?|unrecoverable|bricked)\b`)
	failureWords = regexp.MustCompile(`(?i)\b(fail(?:s|ed|ure|ing)?|errors?|unsuccessful|unable to|could not|cannot|denied|rejected)\b`)
	timeoutWords = regexp.MustCompile(`(?i)\b(timed?\s?out|timeout|no\s+response|not\s+respond(?:ing)?|did\s+not\s+respond|unreachable)\b`)
	successWords = regexp.MustCompile(`(?i)\b(success(?:ful(?:ly)?)?|succeeded|passed|completed?|positive\s+response|ok)\b`)
	warningWords = regexp.MustCompile(`(?i)\bwarn(?:ing)?s?\b`)

	// "no errors", "0 failures" and "errors: 0" report the absence of a fault.
	noFailurePhrases = regexp.MustCompile(`(?i)\b(?:no|0|zero|without(?:\s+any)?)\s+(?:errors?|failures?)\b|\b(?:errors?|failures?)\s*[:=]\s*0\b`)

	programmingWords = regexp.MustCompile(`(?i)\b(programm?(?:ing|ed)?|re-?flash(?:ing|ed)?|flash(?:ing|ed)?|download(?:ing)?|transfer\s?data|eras(?:e|ing)|security\s?access|seed|vbf|software\s+update|calibration)\b`)
	programmingSIDs  = regexp.MustCompile(`(?i)\b7F[ :-]?(?:27|34|36|37)\b`)
)

// HasFatalWords reports fatal or abort vocabulary.
func HasFatalWords(s string) bool { return fatalWords.MatchString(s) }

// HasFailureWords reports error or failure vocabulary.
// Negated or zero counts do not count.
func HasFailureWords(s string) bool {
	return failureWords.MatchString(noFailurePhrases.ReplaceAllString(s, " "))
}

// HasTimeoutWords reports timeout or no-response vocabulary.
func HasTimeoutWords(s string) bool { return timeoutWords.MatchString(s) }

// HasSuccessWords reports success vocabulary.
func HasSuccessWords(s string) bool { return successWords.MatchString(s) }

// HasWarningWords reports warning vocabulary.
func HasWarningWords(s string) bool { return warningWords.MatchString(s) }

// IsProgrammingContext reports whether the text belongs to a programming or
// security-access step, either by vocabulary or by a negative response to
// SecurityAccess, RequestDownload, TransferData or RequestTransferExit.
func IsProgrammingContext(s string) bool {
	return programmingWords.MatchString(s) || programmingSIDs.MatchString(s)
}
