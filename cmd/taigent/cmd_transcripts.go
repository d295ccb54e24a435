package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"taigent/internal/store"
	"taigent/internal/types"
)

var transcriptsLimit int

// transcriptsCmd lists stored runs or prints one
var transcriptsCmd = &cobra.Command{
	Use:   "transcripts [run-id]",
	Short: "List recent conversation runs, or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			t, err := st.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			printTranscript(out, t)
			return nil
		}

		runs, err := st.ListRuns(ctx, transcriptsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No transcripts yet.")
			return nil
		}
		printRuns(out, runs)
		return nil
	},
}

func init() {
	transcriptsCmd.Flags().IntVarP(&transcriptsLimit, "limit", "n", 20, "Number of runs to list")
}

func printRuns(out io.Writer, runs []store.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATE\tROUNDS\tTOOLS\tINPUT")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.RunID, r.StartedAt.Format(time.DateTime), r.State, r.RoundTrips, r.ToolCalls, truncate(firstLine(r.Input), 60))
	}
	w.Flush()
}

func printTranscript(out io.Writer, t *types.Transcript) {
	fmt.Fprintf(out, "Run %s\n", t.RunID)
	fmt.Fprintf(out, "Started %s, took %v, %s after %d round trips\n",
		t.StartedAt.Format(time.DateTime), t.Duration().Round(time.Millisecond), t.State, t.RoundTrips)
	if t.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", t.Error)
	}
	fmt.Fprintln(out)

	for _, msg := range t.Messages {
		switch msg.Role {
		case types.RoleAssistant:
			if msg.Content != "" {
				fmt.Fprintf(out, "[assistant] %s\n", msg.Content)
			}
			for _, call := range msg.ToolCalls {
				fmt.Fprintf(out, "[call %s] %s %s\n", call.ID, call.Name, call.Arguments)
			}
		case types.RoleTool:
			fmt.Fprintf(out, "[result %s] %s\n", msg.ToolCallID, msg.Content)
		default:
			fmt.Fprintf(out, "[%s] %s\n", msg.Role, msg.Content)
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
