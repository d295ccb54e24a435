package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"taigent/internal/usage"
)

var usageReset bool

// usageCmd prints model call and token counters
var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show model calls and token usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := usage.NewTracker(usagePath(cfg))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if usageReset {
			tracker.Reset()
			if err := tracker.Save(); err != nil {
				return err
			}
			fmt.Fprintln(out, "Usage counters reset.")
			return nil
		}

		printUsage(out, tracker.Since(), tracker.Stats())
		return nil
	},
}

func init() {
	usageCmd.Flags().BoolVar(&usageReset, "reset", false, "Clear all counters")
	rootCmd.AddCommand(usageCmd)
}

func printUsage(out io.Writer, since time.Time, stats usage.AggregatedStats) {
	fmt.Fprintf(out, "Since %s: %d calls (%d failed), %d tokens (%d in, %d out)\n",
		since.Format(time.DateTime), stats.Total.Calls, stats.Total.Failed,
		stats.Total.Total, stats.Total.Input, stats.Total.Output)
	if stats.Total.Calls == 0 {
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, section := range []struct {
		title string
		rows  map[string]usage.TokenCounts
	}{
		{"PROVIDER", stats.ByProvider},
		{"MODEL", stats.ByModel},
		{"OPERATION", stats.ByOperation},
	} {
		fmt.Fprintf(w, "\n%s\tCALLS\tINPUT\tOUTPUT\tTOTAL\n", section.title)
		keys := make([]string, 0, len(section.rows))
		for k := range section.rows {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			c := section.rows[k]
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", k, c.Calls, c.Input, c.Output, c.Total)
		}
	}
	w.Flush()
}
