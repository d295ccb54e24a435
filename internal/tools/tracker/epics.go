package tracker

import (
	"context"

	"taigent/internal/logging"
	"taigent/internal/taiga"
	"taigent/internal/tools"
)

// ListEpicsTool returns a tool listing the epics of a project.
func ListEpicsTool(client *taiga.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "list_epics",
		Description: "List the epics of a project",
		Category:    tools.CategoryEpics,
		Priority:    90,
		Schema: tools.ToolSchema{
			Required: []string{"project_id"},
			Properties: map[string]tools.Property{
				"project_id": idProperty("The project id"),
			},
		},
		Execute: func(ctx context.Context, args tools.Args) (map[string]any, error) {
			epics, err := client.ListEpics(ctx, args.Int("project_id"))
			if err != nil {
				return nil, err
			}
			out := make([]map[string]any, 0, len(epics))
			for _, e := range epics {
				out = append(out, map[string]any{"id": e.ID, "ref": e.Ref, "subject": e.Subject})
			}
			return map[string]any{"epics": out, "count": len(out)}, nil
		},
	}
}

// GetEpicTool returns a tool fetching one epic.
func GetEpicTool(client *taiga.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "get_epic",
		Description: "Get the details of an epic, including its description",
		Category:    tools.CategoryEpics,
		Priority:    80,
		Schema: tools.ToolSchema{
			Required: []string{"epic_id"},
			Properties: map[string]tools.Property{
				"epic_id": idProperty("The epic id"),
			},
		},
		Execute: func(ctx context.Context, args tools.Args) (map[string]any, error) {
			e, err := client.GetEpic(ctx, args.Int("epic_id"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"epic": map[string]any{
				"id":          e.ID,
				"ref":         e.Ref,
				"subject":     e.Subject,
				"description": e.Description,
				"url":         e.Permalink,
			}}, nil
		},
	}
}

// CreateEpicTool returns a tool creating an epic.
func CreateEpicTool(client *taiga.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "create_epic",
		Description: "Create a new epic in a project",
		Category:    tools.CategoryEpics,
		Priority:    70,
		Schema: tools.ToolSchema{
			Required: []string{"project_id", "subject"},
			Properties: map[string]tools.Property{
				"project_id":  idProperty("The project to create the epic in"),
				"subject":     {Type: tools.TypeString, Description: "Epic title"},
				"description": {Type: tools.TypeString, Description: "Epic description", Default: ""},
				"tags":        tagsProperty(),
			},
		},
		Execute: func(ctx context.Context, args tools.Args) (map[string]any, error) {
			e, err := client.CreateEpic(ctx, taiga.NewEpic{
				Project:     args.Int("project_id"),
				Subject:     args.String("subject"),
				Description: args.String("description"),
				Tags:        args.Strings("tags"),
			})
			if err != nil {
				return nil, err
			}
			logging.Tools("create_epic: #%d %q", e.ID, e.Subject)
			return map[string]any{"epic": epicSummary(e)}, nil
		},
	}
}

// UpdateEpicTool returns a tool changing fields of an epic.
func UpdateEpicTool(client *taiga.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "update_epic",
		Description: "Update fields of an epic, for example subject or description",
		Category:    tools.CategoryEpics,
		Priority:    50,
		Schema: tools.ToolSchema{
			Required: []string{"epic_id", "updates"},
			Properties: map[string]tools.Property{
				"epic_id": idProperty("The epic id"),
				"updates": {
					Type:        tools.TypeObject,
					Description: "Fields to change",
					Properties: map[string]tools.Property{
						"subject":     {Type: tools.TypeString, Description: "New title"},
						"description": {Type: tools.TypeString, Description: "New description"},
					},
				},
			},
		},
		Execute: func(ctx context.Context, args tools.Args) (map[string]any, error) {
			updates := args.Object("updates")
			if err := checkUpdates(updates); err != nil {
				return nil, err
			}
			e, err := client.UpdateEpic(ctx, args.Int("epic_id"), updates)
			if err != nil {
				return nil, err
			}
			return map[string]any{"epic": epicSummary(e)}, nil
		},
	}
}

// DeleteEpicTool returns a tool deleting an epic.
func DeleteEpicTool(client *taiga.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "delete_epic",
		Description: "Delete an epic. Only use when the user explicitly asks",
		Category:    tools.CategoryEpics,
		Priority:    10,
		Schema: tools.ToolSchema{
			Required: []string{"epic_id"},
			Properties: map[string]tools.Property{
				"epic_id": idProperty("The epic id"),
			},
		},
		Execute: func(ctx context.Context, args tools.Args) (map[string]any, error) {
			id := args.Int("epic_id")
			if err := client.DeleteEpic(ctx, id); err != nil {
				return nil, err
			}
			logging.Tools("delete_epic: #%d", id)
			return deleted("epic", id), nil
		},
	}
}
