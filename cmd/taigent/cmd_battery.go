package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taigent/internal/regression"
)

// batteryCmd runs a regression battery of chat scenarios
var batteryCmd = &cobra.Command{
	Use:   "battery [file]",
	Short: "Run a YAML battery of chat scenarios and check the results",
	Long: `Runs each task's message through the conversation loop and checks the
operations called and the answer text. The scenarios act on the configured
Taiga instance, so point it at a disposable one.

Example battery:

  version: 1
  tasks:
    - id: list
      message: list my projects
      expect_tools: [list_projects]
      forbid_tools: [delete_project]`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := regression.DefaultBatteryPath(configPath)
		if len(args) == 1 {
			path = args[0]
		}
		b, err := regression.LoadBattery(path)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg, appOptions{requireModel: true, withExecutor: true})
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		failed := 0
		for _, res := range regression.RunBattery(ctx, b, a.executor) {
			status := "PASS"
			if !res.Success {
				status = "FAIL"
				failed++
			}
			fmt.Fprintf(out, "%s  %s (%dms) tools=%v\n", status, res.TaskID, res.DurationMs, res.Tools)
			if !res.Success {
				fmt.Fprintf(out, "      %s\n", res.Error())
			}
		}
		if failed > 0 {
			fmt.Fprintf(out, "%d of %d tasks failed\n", failed, len(b.Tasks))
			return errReported
		}
		fmt.Fprintf(out, "all %d tasks passed\n", len(b.Tasks))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batteryCmd)
}
