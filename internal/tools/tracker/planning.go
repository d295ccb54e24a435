package tracker

import (
	"context"
	"time"

	"taigent/internal/tools"
)

// BreakdownTimeout bounds breakdown_epic, which makes a model call and
// several tracker writes.
const BreakdownTimeout = 3 * time.Minute

// BreakdownEpicTool returns a tool that drafts user stories for an epic
// with the model and creates them linked to the epic.
func BreakdownEpicTool(planner Planner) *tools.Tool {
	return &tools.Tool{
		Name: "breakdown_epic",
		Description: "Break an epic down into 3-7 user stories with acceptance criteria, " +
			"story points and priority, then create them in the project linked to the epic",
		Category: tools.CategoryPlanning,
		Priority: 80,
		Timeout:  BreakdownTimeout,
		Schema: tools.ToolSchema{
			Required: []string{"epic_id", "project_id"},
			Properties: map[string]tools.Property{
				"epic_id":    idProperty("The epic to break down"),
				"project_id": idProperty("The project the stories are created in"),
			},
		},
		Execute: func(ctx context.Context, args tools.Args) (map[string]any, error) {
			out, err := planner.Breakdown(ctx, args.Int("project_id"), args.Int("epic_id"))
			if err != nil {
				return nil, err
			}
			stories := make([]map[string]any, 0, len(out.Stories))
			for _, s := range out.Stories {
				stories = append(stories, map[string]any{"id": s.ID, "subject": s.Subject, "url": s.URL})
			}
			failed := make([]map[string]any, 0, len(out.Failed))
			for _, f := range out.Failed {
				failed = append(failed, map[string]any{"subject": f.Subject, "message": f.Message})
			}
			return map[string]any{
				"epic_id":      out.EpicID,
				"user_stories": stories,
				"count":        len(stories),
				"failed":       failed,
			}, nil
		},
	}
}
