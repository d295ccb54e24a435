package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"taigent/internal/server"
)

// askCmd runs a single conversation
var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send one message and print the answer",
	Example: `  taigent ask "list my projects"
  taigent ask "break epic 12 in project 3 into user stories"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg, appOptions{requireModel: true, withExecutor: true})
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.executor.Process(ctx, server.WithProjectContext(strings.Join(args, " "), cfg.Agent.DefaultProjectID))
		fmt.Fprintln(cmd.OutOrStdout(), res.Text())
		if err != nil {
			return errReported
		}
		return nil
	},
}
