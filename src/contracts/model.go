// Package contracts defines the data structures produced by the engine and
// consumed by the presentation layers (CLI, TUI, MCP digest, broker agents).
// Everything here is plain serializable data.
package contracts

import (
	"time"

	"diaglog/src/diagerr"
)

// LogRecord is one ingested line or XML element. Immutable once created.
type LogRecord struct {
	LineNumber int               `json:"line_number"`
	Timestamp  *time.Time        `json:"timestamp,omitempty"`
	RawText    string            `json:"raw_text"`
	TagPath    []string          `json:"tag_path,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// MatchKind identifies the evidence type of a pattern match.
type MatchKind string

const (
	MatchHex        MatchKind = "HEX"
	MatchNRC        MatchKind = "NRC"
	MatchECUAddress MatchKind = "ECU_ADDRESS"
	MatchDID        MatchKind = "DID"
	MatchVIN        MatchKind = "VIN"
	MatchVersion    MatchKind = "VERSION"
)

// Span is a half-open byte range into LogRecord.RawText.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// PatternMatch is a single piece of evidence found in a record.
// Line references the record it was extracted from.
type PatternMatch struct {
	Line     int            `json:"line"`
	Kind     MatchKind      `json:"kind"`
	Span     Span           `json:"span"`
	Value    string         `json:"value"`
	Category ModuleCategory `json:"category,omitempty"`
}

// BucketKind is the semantic category of an error bucket.
type BucketKind string

const (
	BucketCritical       BucketKind = "CRITICAL"
	BucketFailure        BucketKind = "FAILURE"
	BucketException      BucketKind = "EXCEPTION"
	BucketNRCNegative    BucketKind = "NRC_NEGATIVE"
	BucketXMLValidation  BucketKind = "XML_VALIDATION"
	BucketGenericError   BucketKind = "GENERIC_ERROR"
	BucketWarning        BucketKind = "WARNING"
	BucketMissingCatalog BucketKind = "MISSING_CATALOG"

	// BucketSuccess marks a success record. It is counted in BucketStats,
	// never bucketed.
	BucketSuccess BucketKind = "SUCCESS"
)

// IsPrimary reports whether records of this kind count towards the matched
// record total. Secondary kinds annotate a record that already has a primary.
func (k BucketKind) IsPrimary() bool {
	switch k {
	case BucketFailure, BucketException, BucketNRCNegative, BucketXMLValidation:
		return true
	}
	return false
}

// BucketAssignment is the classifier's verdict for one record.
type BucketAssignment struct {
	Kind      BucketKind `json:"kind"`
	Signature string     `json:"signature"`
	Primary   bool       `json:"primary"`
	NRC       *NRCDetail `json:"nrc,omitempty"`
	// Programming is set when the record belongs to a programming or
	// security-access step.
	Programming bool `json:"programming,omitempty"`
}

// NRCDetail is carried only by NRC_NEGATIVE buckets.
type NRCDetail struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Meaning  string `json:"meaning"`
	Category string `json:"category"`
	Benign   bool   `json:"benign"`
}

// ErrorBucket is a counted, deduplicated group of records sharing a kind and
// a normalized signature.
type ErrorBucket struct {
	ID        string      `json:"id"`
	Kind      BucketKind  `json:"kind"`
	Signature string      `json:"signature"`
	Count     int         `json:"count"`
	Samples   []LogRecord `json:"representative_samples"`
	FirstLine int         `json:"first_line"`
	LastLine  int         `json:"last_line"`
	Modules   []string    `json:"modules,omitempty"`
	NRC       *NRCDetail  `json:"nrc,omitempty"`
	// Programming is set when any contributing record was part of a
	// programming or security-access step.
	Programming bool `json:"programming,omitempty"`
	Resolved    bool `json:"resolved,omitempty"`
}

// IsBenign reports whether the bucket holds only protocol noise.
func (b ErrorBucket) IsBenign() bool {
	return b.NRC != nil && b.NRC.Benign
}

// BucketStats are the classification totals of one run.
type BucketStats struct {
	Records int `json:"records"`
	Matched int `json:"matched"`
	Success int `json:"success"`
}

// ModuleCategory classifies an ECU by how much a failure matters.
type ModuleCategory string

const (
	CategoryCritical ModuleCategory = "CRITICAL"
	CategoryStandard ModuleCategory = "STANDARD"
	CategoryUnknown  ModuleCategory = "UNKNOWN"
)

// CommOutcome is the result of one module communication.
type CommOutcome string

const (
	CommSuccess CommOutcome = "SUCCESS"
	CommFailure CommOutcome = "FAILURE"
	CommTimeout CommOutcome = "TIMEOUT"
)

// Communication is one observed exchange with a module.
type Communication struct {
	Peer          string      `json:"peer_address,omitempty"`
	Outcome       CommOutcome `json:"outcome"`
	IsProgramming bool        `json:"is_programming"`
	Line          int         `json:"line"`
}

// IntermittentSignal folds repeated timeouts against one module.
type IntermittentSignal struct {
	Timeouts  int `json:"timeouts"`
	FirstLine int `json:"first_line"`
	LastLine  int `json:"last_line"`
}

// ECUModule is the per-address communication state of one run.
type ECUModule struct {
	Address                     string              `json:"address"`
	Name                        string              `json:"name,omitempty"`
	Category                    ModuleCategory      `json:"category"`
	Gateway                     bool                `json:"gateway,omitempty"`
	Communications              []Communication     `json:"communications"`
	Successes                   int                 `json:"successes"`
	Failures                    int                 `json:"failures"`
	Timeouts                    int                 `json:"timeouts"`
	FirstSeen                   int                 `json:"first_seen"`
	InferredMissingDependencies []string            `json:"inferred_missing_dependencies,omitempty"`
	Intermittent                *IntermittentSignal `json:"intermittent,omitempty"`
}

// Label is the display name of a module, e.g. "PCM (7E0)".
func (m ECUModule) Label() string {
	if m.Name == "" {
		return m.Address
	}
	return m.Name + " (" + m.Address + ")"
}

// ModuleEdge links two modules referenced in causally adjacent records.
type ModuleEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// RiskLevel orders conclusions by how urgently they need attention.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Rank returns an ordinal for comparisons, LOW being 0.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	}
	return 0
}

// DependencyFlag is one inferred missing gateway dependency.
type DependencyFlag struct {
	Module   string    `json:"module"`
	Gateway  string    `json:"gateway"`
	Severity RiskLevel `json:"severity"`
	Line     int       `json:"line"`
}

// ModuleTable is the serializable module state of a run.
type ModuleTable struct {
	Modules         map[string]*ECUModule `json:"modules"`
	Edges           []ModuleEdge          `json:"edges,omitempty"`
	DependencyFlags []DependencyFlag      `json:"dependency_flags,omitempty"`
}

// Outcome is the overall session result.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
	OutcomePartial Outcome = "PARTIAL"
	OutcomeUnknown Outcome = "UNKNOWN"
)

// SessionMetadata is derived once per log and immutable afterwards.
type SessionMetadata struct {
	VIN         string                             `json:"vin,omitempty"`
	ToolVersion string                             `json:"tool_version,omitempty"`
	TargetECU   string                             `json:"target_ecu,omitempty"`
	Procedure   string                             `json:"procedure,omitempty"`
	StartTime   *time.Time                         `json:"start_time,omitempty"`
	EndTime     *time.Time                         `json:"end_time,omitempty"`
	Outcome     Outcome                            `json:"outcome"`
	Ambiguities []diagerr.AmbiguousMetadataWarning `json:"ambiguities,omitempty"`
}

// IsAmbiguous reports whether the named field saw conflicting values.
func (m SessionMetadata) IsAmbiguous(field string) bool {
	for _, a := range m.Ambiguities {
		if a.Field == field {
			return true
		}
	}
	return false
}

// EvidenceKind names what an evidence reference points at.
type EvidenceKind string

const (
	EvidenceBucket   EvidenceKind = "bucket"
	EvidenceModule   EvidenceKind = "module"
	EvidenceMetadata EvidenceKind = "metadata"
)

// EvidenceRef points at a bucket, module or metadata field of the same run.
type EvidenceRef struct {
	Kind   EvidenceKind `json:"kind"`
	ID     string       `json:"id"`
	Count  int          `json:"count"`
	Source string       `json:"source,omitempty"`
}

// Conclusion is the synthesized root-cause assessment.
type Conclusion struct {
	RootCause       string        `json:"root_cause"`
	Category        string        `json:"category"`
	Confidence      float64       `json:"confidence"`
	RiskLevel       RiskLevel     `json:"risk_level"`
	Evidence        []EvidenceRef `json:"evidence"`
	Recommendations []string      `json:"recommendations"`
}

// Report bundles everything one analysis run produced.
type Report struct {
	RequestID    string              `json:"request_id"`
	Source       string              `json:"source"`
	Format       string              `json:"format"`
	Stats        BucketStats         `json:"stats"`
	Metadata     SessionMetadata     `json:"metadata"`
	Buckets      []ErrorBucket       `json:"buckets"`
	Modules      ModuleTable         `json:"modules"`
	Dependencies map[string][]string `json:"dependencies,omitempty"`
	Conclusion   Conclusion          `json:"conclusion"`
	Partial      bool                `json:"partial,omitempty"`
	GeneratedAt  string              `json:"generated_at"`
}

// FindBucket returns the bucket with the given ID.
func (r *Report) FindBucket(id string) (ErrorBucket, bool) {
	for _, b := range r.Buckets {
		if b.ID == id {
			return b, true
		}
	}
	return ErrorBucket{}, false
}
