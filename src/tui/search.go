package tui

import (
	"strings"
)

// applyFilter rebuilds the list from the latest snapshot and the search query
func (m *MainModel) applyFilter() {
	var filtered []Item
	query := strings.ToLower(strings.TrimSpace(m.searchQuery))
	for _, b := range m.snap.Builds {
		item := Item{Build: b}
		if query == "" || strings.Contains(strings.ToLower(item.FilterValue()), query) {
			filtered = append(filtered, item)
		}
	}

	m.listView.SetItems(filtered)
	// Update detail content for new selection
	if selectedItem, ok := m.listView.GetSelectedItem(); ok {
		m.updateDetailContent(selectedItem)
	} else {
		m.detailViewport.SetContent("")
	}
}
