package tracker

import (
	"context"

	"taigent/internal/logging"
	"taigent/internal/taiga"
	"taigent/internal/tools"
)

// ListUserStoriesTool returns a tool listing the stories of a project,
// optionally only those linked to one epic.
func ListUserStoriesTool(client *taiga.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "list_user_stories",
		Description: "List the user stories of a project, optionally filtered to one epic",
		Category:    tools.CategoryStories,
		Priority:    90,
		Schema: tools.ToolSchema{
			Required: []string{"project_id"},
			Properties: map[string]tools.Property{
				"project_id": idProperty("The project id"),
				"epic_id":    idProperty("Only list stories linked to this epic"),
			},
		},
		Execute: func(ctx context.Context, args tools.Args) (map[string]any, error) {
			stories, err := client.ListUserStories(ctx, args.Int("project_id"), args.Int("epic_id"))
			if err != nil {
				return nil, err
			}
			out := make([]map[string]any, 0, len(stories))
			for i := range stories {
				s := &stories[i]
				out = append(out, map[string]any{
					"id":          s.ID,
					"ref":         s.Ref,
					"subject":     s.Subject,
					"description": summarize(s.Description),
					"status":      s.StatusName(),
				})
			}
			return map[string]any{"user_stories": out, "count": len(out)}, nil
		},
	}
}

// GetUserStoryTool returns a tool fetching one user story.
func GetUserStoryTool(client *taiga.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "get_user_story",
		Description: "Get the details of a user story",
		Category:    tools.CategoryStories,
		Priority:    80,
		Schema: tools.ToolSchema{
			Required: []string{"user_story_id"},
			Properties: map[string]tools.Property{
				"user_story_id": idProperty("The user story id"),
			},
		},
		Execute: func(ctx context.Context, args tools.Args) (map[string]any, error) {
			s, err := client.GetUserStory(ctx, args.Int("user_story_id"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"user_story": map[string]any{
				"id":          s.ID,
				"ref":         s.Ref,
				"subject":     s.Subject,
				"description": s.Description,
				"status":      s.StatusName(),
				"url":         s.Permalink,
			}}, nil
		},
	}
}

// CreateUserStoryTool returns a tool creating a user story, linked to an
// epic when epic_id is given.
func CreateUserStoryTool(client *taiga.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "create_user_story",
		Description: "Create a user story in a project, optionally linked to an epic",
		Category:    tools.CategoryStories,
		Priority:    70,
		Schema: tools.ToolSchema{
			Required: []string{"project_id", "subject"},
			Properties: map[string]tools.Property{
				"project_id":  idProperty("The project to create the story in"),
				"subject":     {Type: tools.TypeString, Description: "Story title"},
				"description": {Type: tools.TypeString, Description: "Story description", Default: ""},
				"epic_id":     idProperty("Epic to link the new story to"),
				"tags":        tagsProperty(),
			},
		},
		Execute: func(ctx context.Context, args tools.Args) (map[string]any, error) {
			s, err := client.CreateUserStory(ctx, taiga.NewUserStory{
				Project:     args.Int("project_id"),
				Subject:     args.String("subject"),
				Description: args.String("description"),
				Tags:        args.Strings("tags"),
			})
			if err != nil {
				return nil, err
			}
			logging.Tools("create_user_story: #%d %q", s.ID, s.Subject)

			payload := map[string]any{"user_story": storySummary(s)}
			if epicID, ok := args.OptionalInt("epic_id"); ok {
				if _, err := client.LinkUserStory(ctx, epicID, s.ID); err != nil {
					logging.ToolsWarn("create_user_story: story #%d created but link to epic #%d failed: %v", s.ID, epicID, err)
					payload["link_error"] = err.Error()
				} else {
					payload["linked_epic_id"] = epicID
				}
			}
			return payload, nil
		},
	}
}

// UpdateUserStoryTool returns a tool changing fields of a user story.
func UpdateUserStoryTool(client *taiga.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "update_user_story",
		Description: "Update fields of a user story, for example subject or description",
		Category:    tools.CategoryStories,
		Priority:    50,
		Schema: tools.ToolSchema{
			Required: []string{"user_story_id", "updates"},
			Properties: map[string]tools.Property{
				"user_story_id": idProperty("The user story id"),
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
			s, err := client.UpdateUserStory(ctx, args.Int("user_story_id"), updates)
			if err != nil {
				return nil, err
			}
			return map[string]any{"user_story": storySummary(s)}, nil
		},
	}
}

// DeleteUserStoryTool returns a tool deleting a user story.
func DeleteUserStoryTool(client *taiga.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "delete_user_story",
		Description: "Delete a user story. Only use when the user explicitly asks",
		Category:    tools.CategoryStories,
		Priority:    10,
		Schema: tools.ToolSchema{
			Required: []string{"user_story_id"},
			Properties: map[string]tools.Property{
				"user_story_id": idProperty("The user story id"),
			},
		},
		Execute: func(ctx context.Context, args tools.Args) (map[string]any, error) {
			id := args.Int("user_story_id")
			if err := client.DeleteUserStory(ctx, id); err != nil {
				return nil, err
			}
			logging.Tools("delete_user_story: #%d", id)
			return deleted("user_story", id), nil
		},
	}
}

// LinkUserStoryTool returns a tool linking an existing story to an epic.
// Linking an already linked pair succeeds.
func LinkUserStoryTool(client *taiga.Client) *tools.Tool {
	return &tools.Tool{
		Name:        "link_user_story_to_epic",
		Description: "Link an existing user story to an epic",
		Category:    tools.CategoryStories,
		Priority:    60,
		Schema: tools.ToolSchema{
			Required: []string{"user_story_id", "epic_id"},
			Properties: map[string]tools.Property{
				"user_story_id": idProperty("The user story id"),
				"epic_id":       idProperty("The epic id"),
			},
		},
		Execute: func(ctx context.Context, args tools.Args) (map[string]any, error) {
			storyID, epicID := args.Int("user_story_id"), args.Int("epic_id")
			already, err := client.LinkUserStory(ctx, epicID, storyID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"link": map[string]any{
				"epic_id":        epicID,
				"user_story_id":  storyID,
				"already_linked": already,
			}}, nil
		},
	}
}
