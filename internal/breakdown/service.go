// Package breakdown expands an epic into user stories with one model call
// and creates and links the stories in Taiga.
package breakdown

import (
	"context"
	"fmt"

	"taigent/internal/logging"
	"taigent/internal/taiga"
)

// MaxStories caps how many drafts are created from one model answer.
const MaxStories = 10

const systemPrompt = `You are an expert Agile product manager that breaks down epics into clear, actionable user stories.
For each user story, provide:
1. A clear subject line (the user story)
2. A detailed description
3. Acceptance criteria (3-5 items)
4. Estimated story points (1, 2, 3, 5, 8, 13)
5. Priority (High, Medium, Low)

Respond with JSON only, in exactly this shape:
{"user_stories": [{"subject": "...", "description": "...", "acceptance_criteria": ["..."], "story_points": 3, "priority": "Medium"}]}`

// Tracker is the part of the Taiga client the service needs.
type Tracker interface {
	GetEpic(ctx context.Context, id int64) (*taiga.Epic, error)
	CreateUserStory(ctx context.Context, in taiga.NewUserStory) (*taiga.UserStory, error)
	LinkUserStory(ctx context.Context, epicID, userStoryID int64) (bool, error)
}

// Completer is the single-shot model call used to draft stories.
type Completer interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// CreatedStory is a story created from a draft.
type CreatedStory struct {
	ID      int64
	Subject string
	URL     string
	Linked  bool
}

// Failure records a draft that could not be created or linked.
type Failure struct {
	Subject string
	Message string
}

// Outcome is the result of one breakdown.
type Outcome struct {
	EpicID  int64
	Stories []CreatedStory
	Failed  []Failure
}

// Service drafts and creates stories for epics.
type Service struct {
	tracker Tracker
	llm     Completer
}

// NewService creates a breakdown service.
func NewService(tracker Tracker, llm Completer) *Service {
	return &Service{tracker: tracker, llm: llm}
}

// Breakdown drafts stories for the epic and creates each one in projectID,
// linked to the epic. Unparseable model output creates nothing and returns
// an error wrapping ErrNoStories. Individual create or link failures are
// reported in Outcome.Failed; if no story could be created at all the
// first failure is returned as an error.
func (s *Service) Breakdown(ctx context.Context, projectID, epicID int64) (*Outcome, error) {
	epic, err := s.tracker.GetEpic(ctx, epicID)
	if err != nil {
		return nil, err
	}
	logging.Breakdown("Breaking down epic #%d %q", epic.ID, epic.Subject)

	userPrompt := fmt.Sprintf("Epic: %s\n\nDescription: %s\n\nBreak this epic down into 3-7 user stories.", epic.Subject, epic.Description)
	text, err := s.llm.CompleteWithSystem(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("story drafting failed: %w", err)
	}
	logging.BreakdownDebug("Model answer for epic #%d: %s", epicID, text)

	drafts, err := ParseDrafts(text)
	if err != nil {
		logging.BreakdownWarn("Could not parse stories for epic #%d: %v", epicID, err)
		return nil, err
	}
	if len(drafts) > MaxStories {
		logging.BreakdownWarn("Model proposed %d stories, keeping the first %d", len(drafts), MaxStories)
		drafts = drafts[:MaxStories]
	}

	out := &Outcome{EpicID: epicID}
	for _, d := range drafts {
		story, err := s.tracker.CreateUserStory(ctx, taiga.NewUserStory{
			Project:     projectID,
			Subject:     d.Subject,
			Description: FormatDescription(d),
		})
		if err != nil {
			out.Failed = append(out.Failed, Failure{Subject: d.Subject, Message: err.Error()})
			continue
		}

		created := CreatedStory{ID: story.ID, Subject: story.Subject, URL: story.Permalink}
		if _, err := s.tracker.LinkUserStory(ctx, epicID, story.ID); err != nil {
			out.Failed = append(out.Failed, Failure{
				Subject: d.Subject,
				Message: fmt.Sprintf("created as #%d but not linked to epic: %v", story.ID, err),
			})
		} else {
			created.Linked = true
		}
		out.Stories = append(out.Stories, created)
	}

	if len(out.Stories) == 0 {
		return nil, fmt.Errorf("no user stories could be created: %s", out.Failed[0].Message)
	}
	logging.Breakdown("Created %d user stories for epic #%d (%d failed)", len(out.Stories), epicID, len(out.Failed))
	return out, nil
}
