package tui

import "diaglog/src/contracts"

// Item represents an error bucket displayed in the bucket list.
// It wraps the domain ErrorBucket and implements bubbles/list.Item.
type Item struct {
	Bucket contracts.ErrorBucket
	Tier   int
	Rank   int
}

// FilterValue is the value used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Bucket.Signature }

// Title returns the primary text for the item (required by list.Item).
func (i Item) Title() string { return i.Bucket.Signature }

// Description returns the secondary text for the item (required by list.Item).
func (i Item) Description() string { return string(i.Bucket.Kind) }

// GetCount returns the number of records folded into this bucket.
func (i Item) GetCount() int {
	return i.Bucket.Count
}

// GetSamples returns the raw text of the representative samples.
func (i Item) GetSamples() []string {
	lines := make([]string, len(i.Bucket.Samples))
	for idx, s := range i.Bucket.Samples {
		lines[idx] = s.RawText
	}
	return lines
}
