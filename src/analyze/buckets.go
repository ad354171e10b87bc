package analyze

import (
	"sort"

	"diaglog/src/contracts"
	"diaglog/src/patterns"
)

type bucketKey struct {
	kind      contracts.BucketKind
	signature string
}

// BucketSet accumulates classified records into deduplicated buckets. It is
// private to one pipeline run and is not safe for concurrent use.
type BucketSet struct {
	maxSamples int
	buckets    map[bucketKey]*contracts.ErrorBucket
	modules    map[bucketKey]map[string]bool
	order      []bucketKey
	stats      contracts.BucketStats
}

// NewBucketSet creates an empty set keeping at most maxSamples samples per
// bucket. Non-positive values use MaxSamples.
func NewBucketSet(maxSamples int) *BucketSet {
	if maxSamples <= 0 {
		maxSamples = MaxSamples
	}
	return &BucketSet{
		maxSamples: maxSamples,
		buckets:    make(map[bucketKey]*contracts.ErrorBucket),
		modules:    make(map[bucketKey]map[string]bool),
	}
}

// Add folds one record and its assignments into the set. It must be called
// for every ingested record, including those without assignments, so that
// Stats().Records is the ingested total.
func (s *BucketSet) Add(rec contracts.LogRecord, matches []contracts.PatternMatch, assignments []contracts.BucketAssignment) {
	s.stats.Records++

	addrs := patterns.Addresses(matches)
	for _, a := range assignments {
		if a.Primary {
			s.stats.Matched++
		}
		if a.Kind == contracts.BucketSuccess {
			s.stats.Success++
			continue
		}

		key := bucketKey{kind: a.Kind, signature: a.Signature}
		b, ok := s.buckets[key]
		if !ok {
			b = &contracts.ErrorBucket{
				ID:        BucketID(a.Kind, a.Signature),
				Kind:      a.Kind,
				Signature: a.Signature,
				FirstLine: rec.LineNumber,
				NRC:       a.NRC,
			}
			s.buckets[key] = b
			s.modules[key] = make(map[string]bool)
			s.order = append(s.order, key)
		}

		b.Count++
		b.LastLine = rec.LineNumber
		if a.Programming {
			b.Programming = true
		}
		if len(b.Samples) < s.maxSamples {
			b.Samples = append(b.Samples, rec)
		}

		seen := s.modules[key]
		for _, addr := range addrs {
			if !seen[addr] {
				seen[addr] = true
				b.Modules = append(b.Modules, addr)
			}
		}
	}
}

// Buckets returns copies of the buckets in first-seen order. Each bucket's
// module addresses are sorted.
func (s *BucketSet) Buckets() []contracts.ErrorBucket {
	out := make([]contracts.ErrorBucket, 0, len(s.order))
	for _, key := range s.order {
		b := *s.buckets[key]
		b.Samples = append([]contracts.LogRecord(nil), b.Samples...)
		b.Modules = append([]string(nil), b.Modules...)
		sort.Strings(b.Modules)
		out = append(out, b)
	}
	return out
}

// Stats returns the classification totals so far.
func (s *BucketSet) Stats() contracts.BucketStats {
	return s.stats
}

// Len returns the number of distinct buckets.
func (s *BucketSet) Len() int {
	return len(s.order)
}

// Bucketize classifies records in order and returns the resulting set.
func Bucketize(records []contracts.LogRecord, extractor *patterns.Extractor, classifier *Classifier, maxSamples int) *BucketSet {
	set := NewBucketSet(maxSamples)
	for _, rec := range records {
		matches := extractor.Extract(rec)
		set.Add(rec, matches, classifier.Classify(rec, matches))
	}
	return set
}
