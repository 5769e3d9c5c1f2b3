package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tyrasd/datashader/pkg/shade"
)

// newColormapsCmd creates the colormaps command for listing the built-in
// colormaps. With --pick, an interactive browser lets the user preview
// each map and prints the selected name.
func newColormapsCmd() *cobra.Command {
	var pick bool

	cmd := &cobra.Command{
		Use:   "colormaps",
		Short: "List or interactively browse the built-in colormaps",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !pick {
				for _, name := range shade.Names() {
					cm, err := shade.Lookup(name)
					if err != nil {
						return err
					}
					fmt.Println(StyleValue.Render(fmt.Sprintf("%-10s", name)) + " " + swatch(cm, 32))
				}
				return nil
			}

			model := NewColormapListModel(shade.Names())
			final, err := tea.NewProgram(model).Run()
			if err != nil {
				return err
			}
			m, ok := final.(ColormapListModel)
			if !ok || m.Selected == "" {
				return nil
			}
			fmt.Println(m.Selected)
			printNextStep("Use it", "datashader render data.csv --colormap "+m.Selected)
			return nil
		},
	}

	cmd.Flags().BoolVar(&pick, "pick", false, "browse interactively and print the selection")

	return cmd
}
