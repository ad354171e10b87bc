// Package ranking provides shared severity ordering and tier classification
// for error buckets. The CLI, the TUI and the MCP server all consume this
// package so buckets are prioritized the same way everywhere.
package ranking

import (
	"sort"

	"diaglog/src/contracts"
)

// Tier constants for bucket classification.
const (
	TierEvidence = 1 // Buckets cited by the conclusion
	TierError    = 2 // Other error buckets
	TierNoise    = 3 // Warnings, catalog gaps and benign protocol noise
)

// severityOrder lists bucket kinds from most to least severe.
var severityOrder = []contracts.BucketKind{
	contracts.BucketCritical,
	contracts.BucketFailure,
	contracts.BucketException,
	contracts.BucketNRCNegative,
	contracts.BucketXMLValidation,
	contracts.BucketGenericError,
	contracts.BucketWarning,
	contracts.BucketMissingCatalog,
}

// Severity returns the display rank of a kind, 0 being most severe.
// Unknown kinds sort last.
func Severity(kind contracts.BucketKind) int {
	for i, k := range severityOrder {
		if k == kind {
			return i
		}
	}
	return len(severityOrder)
}

// RankedBucket wraps an ErrorBucket with tier and rank information.
type RankedBucket struct {
	Bucket contracts.ErrorBucket
	Tier   int // TierEvidence, TierError or TierNoise
	Rank   int // Position within the flattened list (1-indexed)
}

// TieredBuckets groups buckets by tier, each tier in severity order.
type TieredBuckets struct {
	Evidence []RankedBucket // Cited by the conclusion (highest signal)
	Errors   []RankedBucket // Other errors
	Noise    []RankedBucket // Lowest signal
}

// RankBuckets returns a copy of buckets ordered by severity, then count
// descending, then first line ascending, then ID.
func RankBuckets(buckets []contracts.ErrorBucket) []contracts.ErrorBucket {
	sorted := make([]contracts.ErrorBucket, len(buckets))
	copy(sorted, buckets)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if sa, sb := Severity(a.Kind), Severity(b.Kind); sa != sb {
			return sa < sb
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.FirstLine != b.FirstLine {
			return a.FirstLine < b.FirstLine
		}
		return a.ID < b.ID
	})
	return sorted
}

// TierBuckets ranks buckets and splits them into tiers using the
// conclusion's evidence list.
func TierBuckets(buckets []contracts.ErrorBucket, conclusion contracts.Conclusion) TieredBuckets {
	if len(buckets) == 0 {
		return TieredBuckets{}
	}

	cited := CitedBuckets(conclusion)

	var tiers TieredBuckets
	for _, b := range RankBuckets(buckets) {
		ranked := RankedBucket{Bucket: b, Tier: ClassifyTier(b, cited)}
		switch ranked.Tier {
		case TierEvidence:
			tiers.Evidence = append(tiers.Evidence, ranked)
		case TierError:
			tiers.Errors = append(tiers.Errors, ranked)
		default:
			tiers.Noise = append(tiers.Noise, ranked)
		}
	}
	return tiers
}

// CitedBuckets returns the ids of buckets the conclusion cites as evidence.
func CitedBuckets(conclusion contracts.Conclusion) map[string]bool {
	cited := make(map[string]bool)
	for _, ev := range conclusion.Evidence {
		if ev.Kind == contracts.EvidenceBucket {
			cited[ev.ID] = true
		}
	}
	return cited
}

// ClassifyTier determines which tier a bucket belongs to.
func ClassifyTier(b contracts.ErrorBucket, cited map[string]bool) int {
	if cited[b.ID] {
		return TierEvidence
	}
	if IsNoise(b) {
		return TierNoise
	}
	return TierError
}

// IsNoise reports buckets that never indicate a real fault on their own.
func IsNoise(b contracts.ErrorBucket) bool {
	switch b.Kind {
	case contracts.BucketWarning, contracts.BucketMissingCatalog:
		return true
	case contracts.BucketCritical:
		return b.Resolved
	}
	return b.IsBenign()
}

// FlattenByTier returns all buckets in tier order, assigning a global
// 1-indexed rank.
func (tb TieredBuckets) FlattenByTier() []RankedBucket {
	total := len(tb.Evidence) + len(tb.Errors) + len(tb.Noise)
	if total == 0 {
		return nil
	}

	result := make([]RankedBucket, 0, total)
	result = append(result, tb.Evidence...)
	result = append(result, tb.Errors...)
	result = append(result, tb.Noise...)

	for i := range result {
		result[i].Rank = i + 1
	}
	return result
}

// Counts returns the number of buckets in each tier.
func (tb TieredBuckets) Counts() (evidence, errors, noise int) {
	return len(tb.Evidence), len(tb.Errors), len(tb.Noise)
}
