package tracker

import (
	"context"

	"taigent/internal/logging"
	"taigent/internal/taiga"
	"taigent/internal/tools"
)

// ListProjectsTool returns a tool listing the projects visible to the account.
func ListProjectsTool(client *taiga.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "list_projects",
		Description: "List all Taiga projects the assistant can access, with their ids",
		Category:    tools.CategoryProjects,
		Priority:    90,
		Schema:      tools.ToolSchema{Properties: map[string]tools.Property{}},
		Execute: func(ctx context.Context, _ tools.Args) (map[string]any, error) {
			projects, err := client.ListProjects(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]map[string]any, 0, len(projects))
			for i := range projects {
				out = append(out, projectSummary(&projects[i]))
			}
			return map[string]any{"projects": out, "count": len(out)}, nil
		},
	}
}

// GetProjectTool returns a tool fetching one project.
func GetProjectTool(client *taiga.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "get_project",
		Description: "Get the details of a Taiga project",
		Category:    tools.CategoryProjects,
		Priority:    70,
		Schema: tools.ToolSchema{
			Required: []string{"project_id"},
			Properties: map[string]tools.Property{
				"project_id": idProperty("The project id"),
			},
		},
		Execute: func(ctx context.Context, args tools.Args) (map[string]any, error) {
			p, err := client.GetProject(ctx, args.Int("project_id"))
			if err != nil {
				return nil, err
			}
			summary := projectSummary(p)
			summary["description"] = p.Description
			return map[string]any{"project": summary}, nil
		},
	}
}

// CreateProjectTool returns a tool creating a project.
func CreateProjectTool(client *taiga.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "create_project",
		Description: "Create a new Taiga project",
		Category:    tools.CategoryProjects,
		Priority:    60,
		Schema: tools.ToolSchema{
			Required: []string{"name"},
			Properties: map[string]tools.Property{
				"name":        {Type: tools.TypeString, Description: "Project name"},
				"description": {Type: tools.TypeString, Description: "Project description", Default: ""},
			},
		},
		Execute: func(ctx context.Context, args tools.Args) (map[string]any, error) {
			p, err := client.CreateProject(ctx, taiga.NewProject{
				Name:        args.String("name"),
				Description: args.String("description"),
			})
			if err != nil {
				return nil, err
			}
			logging.Tools("create_project: #%d %s", p.ID, p.Name)
			return map[string]any{"project": projectSummary(p)}, nil
		},
	}
}

// DeleteProjectTool returns a tool deleting a project.
func DeleteProjectTool(client *taiga.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "delete_project",
		Description: "Delete a Taiga project and everything in it. Only use when the user explicitly asks",
		Category:    tools.CategoryProjects,
		Priority:    10,
		Schema: tools.ToolSchema{
			Required: []string{"project_id"},
			Properties: map[string]tools.Property{
				"project_id": idProperty("The project id"),
			},
		},
		Execute: func(ctx context.Context, args tools.Args) (map[string]any, error) {
			id := args.Int("project_id")
			if err := client.DeleteProject(ctx, id); err != nil {
				return nil, err
			}
			logging.Tools("delete_project: #%d", id)
			return deleted("project", id), nil
		},
	}
}
