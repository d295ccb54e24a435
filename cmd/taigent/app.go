package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"taigent/internal/breakdown"
	"taigent/internal/config"
	"taigent/internal/logging"
	"taigent/internal/perception"
	"taigent/internal/session"
	"taigent/internal/store"
	"taigent/internal/taiga"
	"taigent/internal/tools"
	"taigent/internal/tools/tracker"
	"taigent/internal/types"
	"taigent/internal/usage"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg      *config.Config
	tracker  *taiga.Client
	llm      types.LLMClient
	registry *tools.Registry
	executor *session.Executor
	store    *store.TranscriptStore
	usage    *usage.Tracker
}

// appOptions selects which parts a command needs.
type appOptions struct {
	// requireModel fails when no model is configured. Otherwise the
	// registry is built without breakdown_epic.
	requireModel bool

	// withExecutor builds the conversation loop and, if enabled, the
	// transcript store.
	withExecutor bool
}

func newTrackerClient(cfg *config.Config) *taiga.Client {
	return taiga.NewClient(cfg.Taiga.APIURL,
		taiga.Credentials{Username: cfg.Taiga.Username, Password: cfg.Taiga.Password},
		taiga.WithTimeout(cfg.GetTaigaTimeout()),
	)
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, tracker: newTrackerClient(cfg)}

	if opts.requireModel {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	llm, err := perception.NewClientFromConfig(ctx, cfg)
	switch {
	case err == nil:
		a.llm = llm
		a.attachUsage(llm)
	case errors.Is(err, perception.ErrNoAPIKey) && !opts.requireModel:
		logging.BootWarn("No model configured; breakdown_epic is unavailable")
	default:
		return nil, fmt.Errorf("model client: %w", err)
	}

	a.registry = tools.NewRegistry()
	a.registry.SetTimeout(cfg.GetToolTimeout())
	var planner tracker.Planner
	if a.llm != nil {
		planner = breakdown.NewService(a.tracker, a.llm)
	}
	if err := tracker.RegisterAll(a.registry, a.tracker, planner); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	logging.Boot("Registered %d tools", a.registry.Count())

	if opts.withExecutor {
		a.executor = session.NewExecutor(a.llm, a.registry, session.ExecutorConfig{
			MaxRoundTrips: cfg.Agent.MaxRoundTrips,
			ModelTimeout:  cfg.GetModelTimeout(),
			SystemPrompt:  cfg.Agent.SystemPrompt,
		})
		if cfg.Store.Enabled {
			st, err := store.Open(cfg.Store.Path)
			if err != nil {
				// Runs still work without persistence.
				logging.BootWarn("Transcript store disabled: %v", err)
			} else {
				a.store = st
				a.executor.SetRecorder(st)
			}
		}
	}
	return a, nil
}

// usagePath keeps usage counters next to the transcript database.
func usagePath(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.Store.Path), "usage.json")
}

func (a *app) attachUsage(llm types.LLMClient) {
	tc, ok := llm.(*perception.TracingLLMClient)
	if !ok {
		return
	}
	tracker, err := usage.NewTracker(usagePath(a.cfg))
	if err != nil {
		logging.BootWarn("Usage tracking disabled: %v", err)
		return
	}
	a.usage = tracker
	tc.SetUsageTracker(tracker, a.cfg.LLM.Provider)
}

func (a *app) Close() {
	if a.usage != nil {
		if err := a.usage.Save(); err != nil {
			logging.BootWarn("Failed to save usage: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logging.StoreWarn("Failed to close transcript store: %v", err)
		}
	}
}
