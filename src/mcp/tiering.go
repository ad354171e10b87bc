package mcp

import (
	"diaglog/src/contracts"
	"diaglog/src/digest"
	"diaglog/src/ranking"
)

// Sample line limits per tier.
// Tier 1 (conclusion evidence) gets the most samples for root cause analysis.
const (
	Tier1Samples = 3
	Tier2Samples = 2
	Tier3Samples = 1
)

// Default finding limits per tier.
const (
	DefaultTier1Limit = 15
	DefaultTier2Limit = 5
	DefaultTier3Limit = 3
)

// tierLimits scales the per-tier finding limits from the tier 1 limit.
func tierLimits(limit int) (tier1, tier2, tier3 int) {
	if limit <= 0 || limit == DefaultTier1Limit {
		return DefaultTier1Limit, DefaultTier2Limit, DefaultTier3Limit
	}
	return limit, max(1, limit/3), max(1, limit/5)
}

// getSampleLimit returns the sample line limit for a tier.
func getSampleLimit(tier int) int {
	switch tier {
	case ranking.TierEvidence:
		return Tier1Samples
	case ranking.TierError:
		return Tier2Samples
	default:
		return Tier3Samples
	}
}

// convertToFinding converts a bucket to an LLM-ready Finding with at most
// sampleLimit compressed samples. A sampleLimit <= 0 keeps all samples.
func convertToFinding(b contracts.ErrorBucket, tier, sampleLimit int) Finding {
	return Finding{
		ID:        b.ID,
		Tier:      tier,
		Kind:      string(b.Kind),
		Signature: CompressLine(b.Signature),
		Count:     b.Count,
		FirstLine: b.FirstLine,
		LastLine:  b.LastLine,
		Modules:   b.Modules,
		NRC:       b.NRC,
		Resolved:  b.Resolved,
		Samples:   CompressSamples(b.Samples, sampleLimit),
	}
}

// toSummary converts a Finding to a FindingSummary.
func toSummary(f Finding) FindingSummary {
	return FindingSummary{
		ID:        f.ID,
		Tier:      f.Tier,
		Kind:      f.Kind,
		Signature: truncate(f.Signature, 100),
		Count:     f.Count,
	}
}

// BuildManifest tiers the report's buckets and renders the manifest.
// limit is the tier 1 finding limit; tier 2 and 3 are scaled from it.
// Findings beyond the limits are counted in Omitted.
func BuildManifest(report *contracts.Report, limit int, budget digest.Budget) Manifest {
	tier1Limit, tier2Limit, tier3Limit := tierLimits(limit)
	tiers := ranking.TierBuckets(report.Buckets, report.Conclusion)

	m := Manifest{
		RequestID:     report.RequestID,
		Source:        report.Source,
		Partial:       report.Partial,
		Session:       sessionInfo(report),
		Conclusion:    conclusionInfo(report.Conclusion),
		Tier1Findings: []Finding{},
		Dependencies:  report.Dependencies,
		Digest:        digest.Build(report, budget),
	}

	for i, rb := range tiers.Evidence {
		if i >= tier1Limit {
			m.Omitted++
			continue
		}
		m.Tier1Findings = append(m.Tier1Findings, convertToFinding(rb.Bucket, rb.Tier, getSampleLimit(rb.Tier)))
	}
	for _, group := range []struct {
		buckets []ranking.RankedBucket
		limit   int
	}{
		{tiers.Errors, tier2Limit},
		{tiers.Noise, tier3Limit},
	} {
		for i, rb := range group.buckets {
			if i >= group.limit {
				m.Omitted++
				continue
			}
			m.OtherFindings = append(m.OtherFindings, toSummary(convertToFinding(rb.Bucket, rb.Tier, 0)))
		}
	}
	return m
}

// BucketDetails returns one bucket with every stored sample.
func BucketDetails(report *contracts.Report, b contracts.ErrorBucket) Finding {
	tier := ranking.ClassifyTier(b, ranking.CitedBuckets(report.Conclusion))
	return convertToFinding(b, tier, 0)
}

func sessionInfo(r *contracts.Report) SessionInfo {
	md := r.Metadata
	info := SessionInfo{
		VIN:         md.VIN,
		ToolVersion: md.ToolVersion,
		Procedure:   md.Procedure,
		TargetECU:   md.TargetECU,
		Outcome:     string(md.Outcome),
		Records:     r.Stats.Records,
		Matched:     r.Stats.Matched,
	}
	for _, a := range md.Ambiguities {
		info.Ambiguities = append(info.Ambiguities, a.Error())
	}
	return info
}

func conclusionInfo(c contracts.Conclusion) ConclusionInfo {
	return ConclusionInfo{
		RootCause:       c.RootCause,
		Category:        c.Category,
		Confidence:      c.Confidence,
		RiskLevel:       string(c.RiskLevel),
		Recommendations: c.Recommendations,
	}
}
