package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tyrasd/datashader/pkg/shade"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// swatch renders a colormap as a horizontal gradient strip of the given
// width using background-colored spaces.
func swatch(cm shade.Colormap, width int) string {
	var b strings.Builder
	for i := 0; i < width; i++ {
		t := float64(i) / float64(width-1)
		c := cm.At(t)
		style := lipgloss.NewStyle().Background(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)))
		b.WriteString(style.Render(" "))
	}
	return b.String()
}

// =============================================================================
// ColormapListModel - Interactive colormap selection
// =============================================================================

// ColormapListModel is the bubbletea model for interactive colormap
// selection. Each entry shows the map's name next to a gradient preview.
type ColormapListModel struct {
	Names    []string
	Cursor   int
	Selected string
}

// NewColormapListModel creates a new colormap list model.
func NewColormapListModel(names []string) ColormapListModel {
	return ColormapListModel{Names: names}
}

func (m ColormapListModel) Init() tea.Cmd {
	return nil
}

func (m ColormapListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.Names)-1 {
				m.Cursor++
			}
		case "enter":
			m.Selected = m.Names[m.Cursor]
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m ColormapListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Colormap"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	for i, name := range m.Names {
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		preview := ""
		if cm, err := shade.Lookup(name); err == nil {
			preview = swatch(cm, 32)
		}

		label := fmt.Sprintf("%s%-10s", cursor, name)
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(label))
		} else {
			b.WriteString(listNormalStyle.Render(label))
		}
		b.WriteString(" ")
		b.WriteString(preview)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Names))))

	return b.String()
}
