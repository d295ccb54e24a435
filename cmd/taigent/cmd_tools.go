package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// toolsCmd lists the registered operations
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the operations the model can call",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCATEGORY\tDESCRIPTION")
		for _, tool := range a.registry.All() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", tool.Name, tool.Category, firstLine(tool.Description))
		}
		return w.Flush()
	},
}
