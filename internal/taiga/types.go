package taiga

// Project is the subset of a Taiga project taigent reads.
type Project struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

// Epic is the subset of a Taiga epic taigent reads.
type Epic struct {
	ID          int64  `json:"id"`
	Ref         int64  `json:"ref"`
	Project     int64  `json:"project"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Permalink   string `json:"permalink"`
	Version     int64  `json:"version"`
}

// StatusInfo is the expanded status Taiga attaches to list responses.
type StatusInfo struct {
	Name     string `json:"name"`
	IsClosed bool   `json:"is_closed"`
}

// EpicSummary is the short epic reference embedded in a user story.
type EpicSummary struct {
	ID      int64  `json:"id"`
	Ref     int64  `json:"ref"`
	Subject string `json:"subject"`
}

// UserStory is the subset of a Taiga user story taigent reads.
type UserStory struct {
	ID              int64         `json:"id"`
	Ref             int64         `json:"ref"`
	Project         int64         `json:"project"`
	Subject         string        `json:"subject"`
	Description     string        `json:"description"`
	Permalink       string        `json:"permalink"`
	Version         int64         `json:"version"`
	StatusExtraInfo *StatusInfo   `json:"status_extra_info"`
	Epics           []EpicSummary `json:"epics"`
}

// StatusName returns the story's status name, or "Unknown".
func (s *UserStory) StatusName() string {
	if s.StatusExtraInfo == nil || s.StatusExtraInfo.Name == "" {
		return "Unknown"
	}
	return s.StatusExtraInfo.Name
}

// RelatedUserStory links a user story to an epic.
type RelatedUserStory struct {
	Epic      int64 `json:"epic"`
	UserStory int64 `json:"user_story"`
	Order     int64 `json:"order,omitempty"`
}

// User is the authenticated account returned by /users/me.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// NewEpic is the create payload of an epic.
type NewEpic struct {
	Project     int64    `json:"project"`
	Subject     string   `json:"subject"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// NewUserStory is the create payload of a user story.
type NewUserStory struct {
	Project     int64    `json:"project"`
	Subject     string   `json:"subject"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// NewProject is the create payload of a project.
type NewProject struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type authRequest struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type authResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	AuthToken string `json:"auth_token"`
	Refresh   string `json:"refresh"`
}
