// Package mcp provides the MCP server that exposes diagnostic log analysis to
// an AI collaborator.
package mcp

import "diaglog/src/contracts"

// Manifest is the analyze_log response. Tier 1 findings are fully expanded;
// tier 2 and 3 findings are summarized and can be drilled into with
// get_bucket_details.
type Manifest struct {
	RequestID     string              `json:"request_id"`
	Source        string              `json:"source"`
	Partial       bool                `json:"partial,omitempty"`
	Session       SessionInfo         `json:"session"`
	Conclusion    ConclusionInfo      `json:"conclusion"`
	Tier1Findings []Finding           `json:"tier_1_evidence"`
	OtherFindings []FindingSummary    `json:"other_findings,omitempty"`
	Omitted       int                 `json:"omitted_findings,omitempty"`
	Dependencies  map[string][]string `json:"missing_dependencies,omitempty"`
	Digest        string              `json:"digest"`
}

// SessionInfo contains session metadata.
type SessionInfo struct {
	VIN         string   `json:"vin,omitempty"`
	ToolVersion string   `json:"tool_version,omitempty"`
	Procedure   string   `json:"procedure,omitempty"`
	TargetECU   string   `json:"target_ecu,omitempty"`
	Outcome     string   `json:"outcome"`
	Records     int      `json:"records"`
	Matched     int      `json:"matched"`
	Ambiguities []string `json:"ambiguities,omitempty"`
}

// ConclusionInfo is the synthesized root cause.
type ConclusionInfo struct {
	RootCause       string   `json:"root_cause"`
	Category        string   `json:"category"`
	Confidence      float64  `json:"confidence"`
	RiskLevel       string   `json:"risk_level"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Finding is a sanitized, LLM-ready error bucket.
type Finding struct {
	ID        string               `json:"id"`
	Tier      int                  `json:"tier"`
	Kind      string               `json:"kind"`
	Signature string               `json:"signature"`
	Count     int                  `json:"count"`
	FirstLine int                  `json:"first_line"`
	LastLine  int                  `json:"last_line"`
	Modules   []string             `json:"modules,omitempty"`
	NRC       *contracts.NRCDetail `json:"nrc,omitempty"`
	Resolved  bool                 `json:"resolved,omitempty"`
	Samples   []string             `json:"samples"`
}

// FindingSummary is a lightweight finding reference.
type FindingSummary struct {
	ID        string `json:"id"`
	Tier      int    `json:"tier"`
	Kind      string `json:"kind"`
	Signature string `json:"signature"`
	Count     int    `json:"count"`
}
