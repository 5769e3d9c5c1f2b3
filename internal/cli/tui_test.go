package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestColormapListNavigation(t *testing.T) {
	m := NewColormapListModel([]string{"grey", "inferno", "viridis"})

	next, _ := m.Update(keyMsg("j"))
	m = next.(ColormapListModel)
	if m.Cursor != 1 {
		t.Errorf("cursor = %d after j, want 1", m.Cursor)
	}

	next, _ = m.Update(keyMsg("k"))
	m = next.(ColormapListModel)
	if m.Cursor != 0 {
		t.Errorf("cursor = %d after k, want 0", m.Cursor)
	}

	// Does not walk off the top.
	next, _ = m.Update(keyMsg("k"))
	m = next.(ColormapListModel)
	if m.Cursor != 0 {
		t.Errorf("cursor = %d, want clamp at 0", m.Cursor)
	}
}

func TestColormapListSelection(t *testing.T) {
	m := NewColormapListModel([]string{"grey", "viridis"})

	next, _ := m.Update(keyMsg("j"))
	m = next.(ColormapListModel)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(ColormapListModel)

	if m.Selected != "viridis" {
		t.Errorf("Selected = %q, want viridis", m.Selected)
	}
	if cmd == nil {
		t.Error("enter should quit the program")
	}
}

func TestColormapListView(t *testing.T) {
	m := NewColormapListModel([]string{"grey", "viridis"})
	view := m.View()
	if !strings.Contains(view, "grey") || !strings.Contains(view, "viridis") {
		t.Errorf("view missing colormap names:\n%s", view)
	}
	if !strings.Contains(view, "Select Colormap") {
		t.Error("view missing title")
	}
}
