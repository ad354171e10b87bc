package ranking

import (
	"testing"

	"diaglog/src/contracts"
)

func bucket(id string, kind contracts.BucketKind, count, firstLine int) contracts.ErrorBucket {
	return contracts.ErrorBucket{ID: id, Kind: kind, Count: count, FirstLine: firstLine}
}

func ids(buckets []contracts.ErrorBucket) []string {
	out := make([]string, len(buckets))
	for i, b := range buckets {
		out[i] = b.ID
	}
	return out
}

func TestSeverity(t *testing.T) {
	order := []contracts.BucketKind{
		contracts.BucketCritical,
		contracts.BucketFailure,
		contracts.BucketException,
		contracts.BucketNRCNegative,
		contracts.BucketXMLValidation,
		contracts.BucketGenericError,
		contracts.BucketWarning,
		contracts.BucketMissingCatalog,
	}

	for i := 1; i < len(order); i++ {
		if Severity(order[i-1]) >= Severity(order[i]) {
			t.Errorf("Severity(%s) should rank before Severity(%s)", order[i-1], order[i])
		}
	}

	if Severity("UNKNOWN_KIND") != len(order) {
		t.Errorf("unknown kinds should sort last")
	}
}

func TestRankBuckets(t *testing.T) {
	buckets := []contracts.ErrorBucket{
		bucket("warn", contracts.BucketWarning, 50, 1),
		bucket("nrc-a", contracts.BucketNRCNegative, 116, 10),
		bucket("crit", contracts.BucketCritical, 1, 90),
		bucket("nrc-b", contracts.BucketNRCNegative, 3, 5),
		bucket("fail", contracts.BucketFailure, 2, 40),
		bucket("catalog", contracts.BucketMissingCatalog, 1, 2),
	}

	got := ids(RankBuckets(buckets))
	expected := []string{"crit", "fail", "nrc-a", "nrc-b", "warn", "catalog"}

	if len(got) != len(expected) {
		t.Fatalf("len = %d, expected %d", len(got), len(expected))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("rank[%d] = %s, expected %s (full order %v)", i, got[i], expected[i], got)
		}
	}

	if buckets[0].ID != "warn" {
		t.Error("RankBuckets must not reorder its input")
	}
}

func TestRankBuckets_TieBreaks(t *testing.T) {
	buckets := []contracts.ErrorBucket{
		bucket("b", contracts.BucketFailure, 4, 20),
		bucket("c", contracts.BucketFailure, 4, 10),
		bucket("a", contracts.BucketFailure, 4, 10),
	}

	got := ids(RankBuckets(buckets))
	expected := []string{"a", "c", "b"}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("rank[%d] = %s, expected %s", i, got[i], expected[i])
		}
	}
}

func TestClassifyTier(t *testing.T) {
	cited := map[string]bool{"cited": true}

	tests := []struct {
		name     string
		bucket   contracts.ErrorBucket
		expected int
	}{
		{"cited bucket", bucket("cited", contracts.BucketWarning, 1, 1), TierEvidence},
		{"failure", bucket("f", contracts.BucketFailure, 1, 1), TierError},
		{"warning", bucket("w", contracts.BucketWarning, 1, 1), TierNoise},
		{"catalog", bucket("m", contracts.BucketMissingCatalog, 1, 1), TierNoise},
		{
			"benign nrc",
			contracts.ErrorBucket{ID: "p", Kind: contracts.BucketNRCNegative, NRC: &contracts.NRCDetail{Code: "78", Benign: true}},
			TierNoise,
		},
		{
			"security nrc",
			contracts.ErrorBucket{ID: "s", Kind: contracts.BucketNRCNegative, NRC: &contracts.NRCDetail{Code: "33"}},
			TierError,
		},
		{
			"resolved critical",
			contracts.ErrorBucket{ID: "r", Kind: contracts.BucketCritical, Resolved: true},
			TierNoise,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyTier(tt.bucket, cited); got != tt.expected {
				t.Errorf("ClassifyTier() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestTierBuckets(t *testing.T) {
	buckets := []contracts.ErrorBucket{
		bucket("warn", contracts.BucketWarning, 5, 1),
		bucket("fail", contracts.BucketFailure, 2, 40),
		bucket("exc", contracts.BucketException, 3, 12),
	}
	conclusion := contracts.Conclusion{
		Evidence: []contracts.EvidenceRef{
			{Kind: contracts.EvidenceBucket, ID: "exc", Count: 3},
			{Kind: contracts.EvidenceModule, ID: "fail", Count: 1},
		},
	}

	tiers := TierBuckets(buckets, conclusion)
	evidence, errs, noise := tiers.Counts()
	if evidence != 1 || errs != 1 || noise != 1 {
		t.Fatalf("Counts() = %d/%d/%d, expected 1/1/1", evidence, errs, noise)
	}
	if tiers.Evidence[0].Bucket.ID != "exc" {
		t.Errorf("evidence tier = %s, expected exc", tiers.Evidence[0].Bucket.ID)
	}
	if tiers.Errors[0].Bucket.ID != "fail" {
		t.Errorf("module evidence with a bucket-like ID must not promote a bucket")
	}
}

func TestTieredBuckets_FlattenByTier(t *testing.T) {
	tiers := TieredBuckets{
		Evidence: []RankedBucket{{Bucket: bucket("e", contracts.BucketFailure, 1, 1), Tier: TierEvidence}},
		Errors:   []RankedBucket{{Bucket: bucket("x", contracts.BucketFailure, 1, 1), Tier: TierError}},
		Noise:    []RankedBucket{{Bucket: bucket("n", contracts.BucketWarning, 1, 1), Tier: TierNoise}},
	}

	flat := tiers.FlattenByTier()
	if len(flat) != 3 {
		t.Fatalf("len = %d, expected 3", len(flat))
	}
	for i, rb := range flat {
		if rb.Rank != i+1 {
			t.Errorf("flat[%d].Rank = %d, expected %d", i, rb.Rank, i+1)
		}
	}
	if flat[0].Bucket.ID != "e" || flat[2].Bucket.ID != "n" {
		t.Errorf("unexpected order: %s, %s, %s", flat[0].Bucket.ID, flat[1].Bucket.ID, flat[2].Bucket.ID)
	}
}

func TestTierBuckets_Empty(t *testing.T) {
	tiers := TierBuckets(nil, contracts.Conclusion{})
	if flat := tiers.FlattenByTier(); flat != nil {
		t.Errorf("expected nil for empty input, got %v", flat)
	}
}
