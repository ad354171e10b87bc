// Package synthesis turns the buckets, module table and session metadata of
// one run into a root-cause conclusion, and merges conclusions of several
// runs into one.
package synthesis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"diaglog/src/contracts"
	"diaglog/src/ranking"
	"diaglog/src/reference"
)

// Conclusion categories.
const (
	CategoryMissingDependency = "missing-dependency"
	CategoryCriticalFailure   = "critical-failure"
	CategoryIntermittent      = "intermittent-communication"
	CategoryProtocolNoise     = "protocol-noise"
	CategorySecurityAccess    = "security-access"
	CategoryProgramming       = "programming-failure"
	CategoryNegativeResponse  = "negative-response"
	CategoryProcedureFailure  = "procedure-failure"
	CategoryException         = "software-exception"
	CategoryGenericError      = "generic-error"
	CategoryXMLValidation     = "xml-validation"
	CategoryWarnings          = "warnings"
	CategoryMissingCatalog    = "missing-catalog"
	CategorySessionOutcome    = "session-outcome"
)

// Base confidences per rule.
const (
	baseMissingDependency = 0.60
	baseCriticalFailure   = 0.65
	baseIntermittent      = 0.50
	baseDominantBucket    = 0.55
	baseOutcomeKnown      = 0.40
	baseOutcomeUnknown    = 0.25

	repeatedBonus     = 0.20
	singlePenalty     = 0.15
	ambiguousPenalty  = 0.10
	corroborationStep = 0.05
)

var recommendations = map[string][]string{
	CategoryMissingDependency: {
		"Verify the gateway module is powered and reachable before retrying the session",
		"Check the CAN wiring and connector between the gateway and the failing module",
		"Re-run the procedure once the gateway answers a tester-present request",
	},
	CategoryCriticalFailure: {
		"Do not power-cycle the vehicle until the module state is confirmed",
		"Restart the procedure from the last completed step with a stable battery supply",
		"Escalate to engineering with the full log if the failure repeats",
	},
	CategoryIntermittent: {
		"Check battery voltage and connect a charger for the duration of the session",
		"Inspect the diagnostic cable and adapter for loose contacts",
		"Retry the procedure; intermittent timeouts are often transient",
	},
	CategoryProtocolNoise: {
		"No action required for the repeated negative response; it is part of normal protocol flow",
		"Review the remaining buckets for the actual session result",
	},
	CategorySecurityAccess: {
		"Wait for the security access delay to expire before requesting a new seed",
		"Confirm the tool has valid credentials for this module",
	},
	CategoryProgramming: {
		"Confirm the software part number matches the vehicle configuration",
		"Keep a stable power supply and retry the programming step",
		"Check whether the module requires an erase before download",
	},
	CategoryNegativeResponse: {
		"Check the preconditions of the rejected service (session, ignition state, vehicle speed)",
		"Retry the request in the required diagnostic session",
	},
	CategoryProcedureFailure: {
		"Review the failing step and the module it addressed",
		"Retry the procedure after clearing the reported condition",
	},
	CategoryException: {
		"Update the diagnostic tool to the latest release",
		"Report the exception with the log to the tool vendor",
	},
	CategoryGenericError: {
		"Review the reported errors around the first occurrence",
	},
	CategoryXMLValidation: {
		"Regenerate the session file; the tool wrote malformed or unexpected XML",
	},
	CategoryWarnings: {
		"No action required; only warnings were recorded",
	},
	CategoryMissingCatalog: {
		"Synchronize the tool's calibration catalog and retry",
	},
	CategorySessionOutcome: {
		"No error evidence was found; confirm the result on the vehicle",
	},
}

// Recommendations returns the fixed recommendation list of a category.
func Recommendations(category string) []string {
	return append([]string(nil), recommendations[category]...)
}

type candidate struct {
	rootCause string
	category  string
	base      float64
	risk      contracts.RiskLevel
	evidence  []contracts.EvidenceRef
	volume    int
}

type rule func(buckets []contracts.ErrorBucket, table contracts.ModuleTable, md contracts.SessionMetadata) (candidate, bool)

var rules = []rule{
	missingDependency,
	criticalFailure,
	intermittent,
	dominantBucket,
	sessionOutcome,
}

// Synthesize evaluates the rules in priority order; the first one that holds
// determines the conclusion. Inputs are not modified.
func Synthesize(buckets []contracts.ErrorBucket, table contracts.ModuleTable, md contracts.SessionMetadata) contracts.Conclusion {
	for _, r := range rules {
		c, ok := r(buckets, table, md)
		if !ok {
			continue
		}
		return contracts.Conclusion{
			RootCause:       c.rootCause,
			Category:        c.category,
			Confidence:      confidence(c.base, c.volume, len(md.Ambiguities) > 0),
			RiskLevel:       c.risk,
			Evidence:        c.evidence,
			Recommendations: Recommendations(c.category),
		}
	}
	// sessionOutcome always holds.
	return contracts.Conclusion{RiskLevel: contracts.RiskLow}
}

func confidence(base float64, volume int, ambiguous bool) float64 {
	c := base
	switch {
	case volume >= 3:
		c += repeatedBonus
	case volume == 1:
		c -= singlePenalty
	}
	if ambiguous {
		c -= ambiguousPenalty
	}
	return clamp(c)
}

func clamp(c float64) float64 {
	c = math.Round(c*100) / 100
	return math.Max(0, math.Min(1, c))
}

func missingDependency(buckets []contracts.ErrorBucket, table contracts.ModuleTable, _ contracts.SessionMetadata) (candidate, bool) {
	if len(table.DependencyFlags) == 0 {
		return candidate{}, false
	}

	var (
		modules, gateways []string
		flagged           = map[string]bool{}
		seenGateway       = map[string]bool{}
		volume            int
		programming       bool
		evidence          []contracts.EvidenceRef
	)
	for _, f := range table.DependencyFlags {
		if !flagged[f.Module] {
			flagged[f.Module] = true
			modules = append(modules, f.Module)
			m := table.Modules[f.Module]
			n := 0
			if m != nil {
				n = m.Failures + m.Timeouts
				for _, c := range m.Communications {
					if c.Outcome != contracts.CommSuccess && c.IsProgramming {
						programming = true
					}
				}
			}
			volume += n
			evidence = append(evidence, contracts.EvidenceRef{Kind: contracts.EvidenceModule, ID: f.Module, Count: n})
		}
		if !seenGateway[f.Gateway] {
			seenGateway[f.Gateway] = true
			gateways = append(gateways, f.Gateway)
		}
	}
	for _, gw := range gateways {
		evidence = append(evidence, contracts.EvidenceRef{Kind: contracts.EvidenceModule, ID: gw, Count: 0})
	}
	evidence = append(evidence, bucketsNaming(buckets, flagged)...)

	risk := contracts.RiskHigh
	if programming {
		risk = contracts.RiskCritical
	}

	return candidate{
		rootCause: fmt.Sprintf("%s failed without any prior successful communication with gateway %s; the gateway dependency is likely missing",
			labels(table, modules), labels(table, gateways)),
		category: CategoryMissingDependency,
		base:     baseMissingDependency,
		risk:     risk,
		evidence: evidence,
		volume:   volume,
	}, true
}

// bucketsNaming returns evidence for error buckets that reference any of the
// given modules, in bucket order.
func bucketsNaming(buckets []contracts.ErrorBucket, modules map[string]bool) []contracts.EvidenceRef {
	var out []contracts.EvidenceRef
	for _, b := range buckets {
		if ranking.IsNoise(b) {
			continue
		}
		for _, addr := range b.Modules {
			if modules[addr] {
				out = append(out, bucketRef(b))
				break
			}
		}
	}
	return out
}

func criticalFailure(buckets []contracts.ErrorBucket, table contracts.ModuleTable, _ contracts.SessionMetadata) (candidate, bool) {
	var (
		critical []contracts.ErrorBucket
		volume   int
	)
	for _, b := range buckets {
		if b.Kind == contracts.BucketCritical && !b.Resolved {
			critical = append(critical, b)
			volume += b.Count
		}
	}
	if len(critical) == 0 {
		return candidate{}, false
	}

	top := dominant(critical)
	evidence := make([]contracts.EvidenceRef, 0, len(critical))
	for _, b := range critical {
		evidence = append(evidence, bucketRef(b))
	}

	cause := fmt.Sprintf("Critical failure: %s (%s)", top.Signature, occurrences(top.Count))
	if len(top.Modules) > 0 {
		cause += " on " + labels(table, top.Modules)
	}
	return candidate{
		rootCause: cause,
		category:  CategoryCriticalFailure,
		base:      baseCriticalFailure,
		risk:      contracts.RiskCritical,
		evidence:  evidence,
		volume:    volume,
	}, true
}

func intermittent(_ []contracts.ErrorBucket, table contracts.ModuleTable, _ contracts.SessionMetadata) (candidate, bool) {
	var (
		addrs  []string
		volume int
	)
	for addr, m := range table.Modules {
		if m.Intermittent != nil {
			addrs = append(addrs, addr)
		}
	}
	if len(addrs) == 0 {
		return candidate{}, false
	}
	sort.Strings(addrs)

	evidence := make([]contracts.EvidenceRef, 0, len(addrs))
	var parts []string
	for _, addr := range addrs {
		sig := table.Modules[addr].Intermittent
		volume += sig.Timeouts
		evidence = append(evidence, contracts.EvidenceRef{Kind: contracts.EvidenceModule, ID: addr, Count: sig.Timeouts})
		parts = append(parts, fmt.Sprintf("%s: %d timeouts between lines %d and %d",
			table.Modules[addr].Label(), sig.Timeouts, sig.FirstLine, sig.LastLine))
	}

	return candidate{
		rootCause: "Intermittent communication with " + strings.Join(parts, "; "),
		category:  CategoryIntermittent,
		base:      baseIntermittent,
		risk:      contracts.RiskMedium,
		evidence:  evidence,
		volume:    volume,
	}, true
}

// dominantBucket picks the bucket with the highest count. Resolved critical
// buckets do not compete. When noise dominates, the remaining error buckets
// are cited after it so they stay visible as evidence.
func dominantBucket(buckets []contracts.ErrorBucket, table contracts.ModuleTable, _ contracts.SessionMetadata) (candidate, bool) {
	var open []contracts.ErrorBucket
	for _, b := range buckets {
		if b.Kind == contracts.BucketCritical && b.Resolved {
			continue
		}
		open = append(open, b)
	}
	if len(open) == 0 {
		return candidate{}, false
	}

	top := dominant(open)
	category, risk := classify(top)

	evidence := []contracts.EvidenceRef{bucketRef(top)}
	for _, addr := range top.Modules {
		n := 0
		if m := table.Modules[addr]; m != nil {
			n = m.Failures + m.Timeouts
		}
		evidence = append(evidence, contracts.EvidenceRef{Kind: contracts.EvidenceModule, ID: addr, Count: n})
	}
	if ranking.IsNoise(top) {
		for _, b := range open {
			if b.ID != top.ID && !ranking.IsNoise(b) {
				evidence = append(evidence, bucketRef(b))
			}
		}
	}

	return candidate{
		rootCause: describe(top, category, table),
		category:  category,
		base:      baseDominantBucket,
		risk:      risk,
		evidence:  evidence,
		volume:    top.Count,
	}, true
}

// dominant returns the bucket with the highest count, breaking ties by
// severity, then first line, then ID.
func dominant(buckets []contracts.ErrorBucket) contracts.ErrorBucket {
	best := buckets[0]
	for _, b := range buckets[1:] {
		switch {
		case b.Count != best.Count:
			if b.Count > best.Count {
				best = b
			}
		case ranking.Severity(b.Kind) != ranking.Severity(best.Kind):
			if ranking.Severity(b.Kind) < ranking.Severity(best.Kind) {
				best = b
			}
		case b.FirstLine != best.FirstLine:
			if b.FirstLine < best.FirstLine {
				best = b
			}
		case b.ID < best.ID:
			best = b
		}
	}
	return best
}

// classify maps a bucket to its conclusion category and risk level.
func classify(b contracts.ErrorBucket) (string, contracts.RiskLevel) {
	switch b.Kind {
	case contracts.BucketNRCNegative:
		if b.NRC == nil {
			return CategoryNegativeResponse, contracts.RiskMedium
		}
		switch {
		case b.NRC.Benign:
			return CategoryProtocolNoise, contracts.RiskLow
		case b.NRC.Category == reference.NRCSecurity:
			return CategorySecurityAccess, contracts.RiskCritical
		case b.NRC.Category == reference.NRCProgramming:
			return CategoryProgramming, contracts.RiskHigh
		}
		return CategoryNegativeResponse, contracts.RiskMedium
	case contracts.BucketCritical:
		return CategoryCriticalFailure, contracts.RiskCritical
	case contracts.BucketFailure:
		if b.Programming {
			return CategoryProgramming, contracts.RiskHigh
		}
		return CategoryProcedureFailure, contracts.RiskMedium
	case contracts.BucketException:
		return CategoryException, contracts.RiskMedium
	case contracts.BucketGenericError:
		return CategoryGenericError, contracts.RiskMedium
	case contracts.BucketXMLValidation:
		return CategoryXMLValidation, contracts.RiskLow
	case contracts.BucketWarning:
		return CategoryWarnings, contracts.RiskLow
	case contracts.BucketMissingCatalog:
		return CategoryMissingCatalog, contracts.RiskMedium
	}
	return CategoryGenericError, contracts.RiskMedium
}

func describe(b contracts.ErrorBucket, category string, table contracts.ModuleTable) string {
	where := ""
	if len(b.Modules) > 0 {
		where = " from " + labels(table, b.Modules)
	}

	if b.Kind == contracts.BucketNRCNegative && b.NRC != nil {
		cause := fmt.Sprintf("Negative response NRC 0x%s (%s)%s, %s: %s",
			b.NRC.Code, b.NRC.Name, where, occurrences(b.Count), b.NRC.Meaning)
		if category == CategoryProtocolNoise {
			cause += "; this is expected protocol traffic, not a hardware fault"
		}
		return cause
	}

	return fmt.Sprintf("%s%s, %s: %s", kindTitle(b.Kind), where, occurrences(b.Count), b.Signature)
}

func kindTitle(k contracts.BucketKind) string {
	switch k {
	case contracts.BucketFailure:
		return "Procedure failure"
	case contracts.BucketException:
		return "Unhandled exception"
	case contracts.BucketXMLValidation:
		return "XML validation error"
	case contracts.BucketGenericError:
		return "Error"
	case contracts.BucketWarning:
		return "Warning"
	case contracts.BucketMissingCatalog:
		return "Missing catalog entry"
	case contracts.BucketCritical:
		return "Critical failure"
	}
	return string(k)
}

func sessionOutcome(_ []contracts.ErrorBucket, _ contracts.ModuleTable, md contracts.SessionMetadata) (candidate, bool) {
	c := candidate{
		category: CategorySessionOutcome,
		base:     baseOutcomeKnown,
		risk:     contracts.RiskLow,
		evidence: []contracts.EvidenceRef{{Kind: contracts.EvidenceMetadata, ID: "outcome"}},
	}
	switch md.Outcome {
	case contracts.OutcomeSuccess:
		c.rootCause = "No error evidence found; the session reported success"
	case contracts.OutcomeFailure:
		c.rootCause = "The session reported failure without any classified error evidence"
		c.risk = contracts.RiskMedium
	case contracts.OutcomePartial:
		c.rootCause = "The session reported both success and failure without any classified error evidence"
		c.risk = contracts.RiskMedium
	default:
		c.rootCause = "No error evidence and no session result found"
		c.base = baseOutcomeUnknown
	}
	return c, true
}

func bucketRef(b contracts.ErrorBucket) contracts.EvidenceRef {
	return contracts.EvidenceRef{Kind: contracts.EvidenceBucket, ID: b.ID, Count: b.Count}
}

func labels(table contracts.ModuleTable, addrs []string) string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		if m := table.Modules[a]; m != nil {
			out[i] = m.Label()
		} else {
			out[i] = a
		}
	}
	return strings.Join(out, ", ")
}

func occurrences(n int) string {
	if n == 1 {
		return "1 occurrence"
	}
	return fmt.Sprintf("%d occurrences", n)
}
