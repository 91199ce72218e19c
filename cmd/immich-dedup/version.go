package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yourusername/immich-dedup/pkg/ui"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, ui.StyleTitle.Render("immich-dedup"))
			fmt.Fprintln(w)
			fmt.Fprintln(w, ui.RenderKeyValue("Version", version))
			fmt.Fprintln(w, ui.RenderKeyValue("Commit", commit))
			fmt.Fprintln(w, ui.RenderKeyValue("Build Date", date))
		},
	}
}
