package tui

import (
	"strings"
)

// applyFilter filters items by tier, bucket kind and search query
func (m *MainModel) applyFilter() {
	kind := m.header.GetFilter()
	tier := m.header.GetTierFilter()

	// 1. Filter by tier and kind
	var filtered []Item
	for _, item := range m.items {
		if tier != 0 && item.Tier != tier {
			continue
		}
		if kind != "ALL" && string(item.Bucket.Kind) != kind {
			continue
		}
		filtered = append(filtered, item)
	}

	// 2. Filter by search query
	if m.searchQuery != "" {
		query := strings.ToLower(m.searchQuery)
		var searchFiltered []Item
		for _, item := range filtered {
			if matchesQuery(item, query) {
				searchFiltered = append(searchFiltered, item)
			}
		}
		filtered = searchFiltered
	}

	m.listView.SetItems(filtered)
	if selectedItem, ok := m.listView.GetSelectedItem(); ok {
		m.updateDetailContent(selectedItem)
	} else {
		m.detailViewport.SetContent("")
	}
}

// matchesQuery searches signature, kind, id, modules, NRC and samples.
func matchesQuery(item Item, query string) bool {
	b := item.Bucket
	fields := []string{b.Signature, string(b.Kind), b.ID}
	fields = append(fields, b.Modules...)
	if b.NRC != nil {
		fields = append(fields, b.NRC.Code, b.NRC.Name, b.NRC.Category)
	}
	fields = append(fields, item.GetSamples()...)

	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}
