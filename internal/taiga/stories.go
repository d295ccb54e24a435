package taiga

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"taigent/internal/logging"
)

// ListUserStories returns the user stories of a project, restricted to one
// epic when epicID is non-zero.
func (c *Client) ListUserStories(ctx context.Context, projectID, epicID int64) ([]UserStory, error) {
	q := url.Values{"project": {strconv.FormatInt(projectID, 10)}}
	if epicID != 0 {
		q.Set("epic", strconv.FormatInt(epicID, 10))
	}
	var stories []UserStory
	if err := c.do(ctx, request{method: http.MethodGet, path: "/userstories", query: q, out: &stories, list: true}); err != nil {
		return nil, err
	}
	logging.TrackerDebug("Found %d user stories (project=%d epic=%d)", len(stories), projectID, epicID)
	return stories, nil
}

// GetUserStory returns one user story.
func (c *Client) GetUserStory(ctx context.Context, id int64) (*UserStory, error) {
	var s UserStory
	if err := c.do(ctx, request{method: http.MethodGet, path: idPath("/userstories", id), out: &s}); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateUserStory creates a user story.
func (c *Client) CreateUserStory(ctx context.Context, in NewUserStory) (*UserStory, error) {
	var s UserStory
	if err := c.do(ctx, request{method: http.MethodPost, path: "/userstories", body: in, out: &s}); err != nil {
		return nil, err
	}
	logging.Tracker("Created user story #%d %q", s.ID, s.Subject)
	return &s, nil
}

// UpdateUserStory applies updates to a user story. id, version and project
// in updates are ignored; the current version is fetched and sent.
func (c *Client) UpdateUserStory(ctx context.Context, id int64, updates map[string]any) (*UserStory, error) {
	current, err := c.GetUserStory(ctx, id)
	if err != nil {
		return nil, err
	}
	var s UserStory
	if err := c.patchWithVersion(ctx, idPath("/userstories", id), current.Version, updates, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteUserStory deletes a user story.
func (c *Client) DeleteUserStory(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: idPath("/userstories", id)})
}
