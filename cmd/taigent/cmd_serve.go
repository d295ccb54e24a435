package main

import (
	"github.com/spf13/cobra"

	"taigent/internal/server"
)

var serveListen string

// serveCmd runs the HTTP chat front-end
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web chat and JSON API",
	Long: `Starts the HTTP front-end:

  GET  /             minimal web chat
  POST /api/chat     {"message": "...", "project_id": 3} -> {"response": "..."}
  GET  /api/health   liveness and tool count
  GET  /api/tools    registered operations`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg, appOptions{requireModel: true, withExecutor: true})
		if err != nil {
			return err
		}
		defer a.Close()

		addr := cfg.Server.Listen
		if serveListen != "" {
			addr = serveListen
		}
		srv := server.New(a.executor, a.registry, server.Options{
			MaxConcurrentRuns: cfg.Server.MaxConcurrentRuns,
			DefaultProjectID:  cfg.Agent.DefaultProjectID,
		})
		cmd.Printf("taigent listening on %s\n", addr)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Listen address (default from config, :5000)")
}
