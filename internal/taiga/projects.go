package taiga

import (
	"context"
	"net/http"
	"strings"

	"taigent/internal/logging"
)

// ListProjects returns every project visible to the account.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	err := c.do(ctx, request{method: http.MethodGet, path: "/projects", out: &projects, list: true})
	if err != nil {
		return nil, err
	}
	logging.TrackerDebug("Found %d projects", len(projects))
	return projects, nil
}

// GetProject returns one project.
func (c *Client) GetProject(ctx context.Context, id int64) (*Project, error) {
	var p Project
	if err := c.do(ctx, request{method: http.MethodGet, path: idPath("/projects", id), out: &p}); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, in NewProject) (*Project, error) {
	var p Project
	if err := c.do(ctx, request{method: http.MethodPost, path: "/projects", body: in, out: &p}); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProject deletes a project and everything in it.
func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: idPath("/projects", id)})
}

// FindProjectByName returns the first project whose name matches
// case-insensitively, or nil.
func (c *Client) FindProjectByName(ctx context.Context, name string) (*Project, error) {
	projects, err := c.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if strings.EqualFold(projects[i].Name, name) {
			return &projects[i], nil
		}
	}
	return nil, nil
}
