package taiga

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"taigent/internal/logging"
)

// ListEpics returns the epics of a project.
func (c *Client) ListEpics(ctx context.Context, projectID int64) ([]Epic, error) {
	var epics []Epic
	q := url.Values{"project": {strconv.FormatInt(projectID, 10)}}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/epics", query: q, out: &epics, list: true}); err != nil {
		return nil, err
	}
	logging.TrackerDebug("Found %d epics for project %d", len(epics), projectID)
	return epics, nil
}

// GetEpic returns one epic.
func (c *Client) GetEpic(ctx context.Context, id int64) (*Epic, error) {
	var e Epic
	if err := c.do(ctx, request{method: http.MethodGet, path: idPath("/epics", id), out: &e}); err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateEpic creates an epic.
func (c *Client) CreateEpic(ctx context.Context, in NewEpic) (*Epic, error) {
	if in.Tags == nil {
		in.Tags = []string{}
	}
	var e Epic
	if err := c.do(ctx, request{method: http.MethodPost, path: "/epics", body: in, out: &e}); err != nil {
		return nil, err
	}
	logging.Tracker("Created epic #%d %q", e.ID, e.Subject)
	return &e, nil
}

// UpdateEpic applies updates to an epic. id, version and project in
// updates are ignored; the current version is fetched and sent.
func (c *Client) UpdateEpic(ctx context.Context, id int64, updates map[string]any) (*Epic, error) {
	current, err := c.GetEpic(ctx, id)
	if err != nil {
		return nil, err
	}
	var e Epic
	if err := c.patchWithVersion(ctx, idPath("/epics", id), current.Version, updates, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteEpic deletes an epic. Its user stories are kept.
func (c *Client) DeleteEpic(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: idPath("/epics", id)})
}

// RelatedUserStories lists the links of an epic.
func (c *Client) RelatedUserStories(ctx context.Context, epicID int64) ([]RelatedUserStory, error) {
	var links []RelatedUserStory
	path := idPath("/epics", epicID) + "/related_userstories"
	if err := c.do(ctx, request{method: http.MethodGet, path: path, out: &links, list: true}); err != nil {
		return nil, err
	}
	return links, nil
}

// LinkUserStory links a user story to an epic. Linking an already linked
// story is a no-op and reports alreadyLinked.
func (c *Client) LinkUserStory(ctx context.Context, epicID, userStoryID int64) (alreadyLinked bool, err error) {
	links, err := c.RelatedUserStories(ctx, epicID)
	if err != nil {
		return false, err
	}
	for _, l := range links {
		if l.UserStory == userStoryID {
			logging.TrackerDebug("User story %d already linked to epic %d", userStoryID, epicID)
			return true, nil
		}
	}

	path := idPath("/epics", epicID) + "/related_userstories"
	body := RelatedUserStory{Epic: epicID, UserStory: userStoryID}
	if err := c.do(ctx, request{method: http.MethodPost, path: path, body: body}); err != nil {
		return false, err
	}
	logging.Tracker("Linked user story %d to epic %d", userStoryID, epicID)
	return false, nil
}
