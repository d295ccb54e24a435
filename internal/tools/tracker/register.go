package tracker

import (
	"context"

	"taigent/internal/breakdown"
	"taigent/internal/taiga"
	"taigent/internal/tools"
)

// Planner decomposes an epic into created user stories.
type Planner interface {
	Breakdown(ctx context.Context, projectID, epicID int64) (*breakdown.Outcome, error)
}

// RegisterAll registers every tracker tool with the given registry.
// breakdown_epic is only registered when planner is non-nil.
func RegisterAll(registry *tools.Registry, client *taiga.Client, planner Planner) error {
	allTools := []*tools.Tool{
		// Projects
		ListProjectsTool(client),
		GetProjectTool(client),
		CreateProjectTool(client),
		DeleteProjectTool(client),

		// Epics
		ListEpicsTool(client),
		GetEpicTool(client),
		CreateEpicTool(client),
		UpdateEpicTool(client),
		DeleteEpicTool(client),

		// User stories
		ListUserStoriesTool(client),
		GetUserStoryTool(client),
		CreateUserStoryTool(client),
		UpdateUserStoryTool(client),
		DeleteUserStoryTool(client),
		LinkUserStoryTool(client),
	}
	if planner != nil {
		allTools = append(allTools, BreakdownEpicTool(planner))
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	return nil
}
