package tui

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// View manages the list of tracked builds.
type View struct {
	list     list.Model
	items    []Item
	delegate *Delegate
}

// NewView creates a new build list view
func NewView(styles *StyleConfig) View {
	delegate := NewDelegateWithStyles(styles)
	l := list.New([]list.Item{}, &delegate, 0, 0)
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowPagination(false)

	return View{
		list:     l,
		items:    []Item{},
		delegate: &delegate,
	}
}

// Update handles list navigation
func (v View) Update(msg tea.Msg) (View, tea.Cmd) {
	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

// SetSize sets the list dimensions
func (v *View) SetSize(width, height int) {
	v.list.SetSize(width, height)
}

// SetItems replaces the list items, keeping the selection on the same
// build when it is still present.
func (v *View) SetItems(items []Item) {
	selectedID := ""
	if sel, ok := v.GetSelectedItem(); ok {
		selectedID = sel.Build.ID
	}
	v.items = items

	maxTitle := 0
	for _, item := range items {
		if w := VisualWidth(item.Title()); w > maxTitle {
			maxTitle = w
		}
	}
	v.delegate.SetColumnWidths(maxTitle)

	listItems := make([]list.Item, len(items))
	selected := 0
	for i, item := range items {
		listItems[i] = item
		if item.Build.ID == selectedID {
			selected = i
		}
	}
	v.list.SetItems(listItems)
	if len(listItems) > 0 {
		v.list.Select(selected)
	}
}

// Items returns the items currently shown.
func (v View) Items() []Item {
	return v.items
}

// GetSelectedItem returns the currently selected build
func (v View) GetSelectedItem() (Item, bool) {
	if len(v.list.Items()) == 0 {
		return Item{}, false
	}
	item, ok := v.list.SelectedItem().(Item)
	return item, ok
}

// Render returns the string representation of the view
func (v View) Render() string {
	return v.list.View()
}

// GetDelegate returns the delegate for accessing column widths
func (v View) GetDelegate() *Delegate {
	return v.delegate
}
