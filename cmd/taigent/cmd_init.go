package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taigent/internal/config"
	"taigent/internal/taiga"
)

var initSave bool

// initCmd verifies Taiga access and ensures the default project exists
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Verify Taiga credentials and create the default project",
	Long: `Checks the configured Taiga credentials and makes sure a project named
"` + config.DefaultProjectName + `" exists, creating it if needed.

With --save the project id is written to the config file as
agent.default_project_id.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		client := newTrackerClient(cfg)
		out := cmd.OutOrStdout()

		me, err := client.Me(ctx)
		if err != nil {
			return fmt.Errorf("could not authenticate with Taiga at %s: %w", cfg.Taiga.APIURL, err)
		}
		fmt.Fprintf(out, "Authenticated as %s (id %d)\n", me.Username, me.ID)

		project, err := client.FindProjectByName(ctx, config.DefaultProjectName)
		if err != nil {
			return err
		}
		if project != nil {
			fmt.Fprintf(out, "Project %q already exists (id %d)\n", project.Name, project.ID)
		} else {
			project, err = client.CreateProject(ctx, taiga.NewProject{
				Name:        config.DefaultProjectName,
				Description: "Project for analyzing and breaking down requirements",
			})
			if err != nil {
				return fmt.Errorf("could not create project: %w", err)
			}
			fmt.Fprintf(out, "Created project %q (id %d)\n", project.Name, project.ID)
		}

		if initSave {
			cfg.Agent.DefaultProjectID = int(project.ID)
			if err := cfg.Save(configPath); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved default project to %s\n", configPath)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initSave, "save", false, "Write the project id to the config file")
}
