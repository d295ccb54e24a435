package breakdown

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoStories is returned when the model output holds no usable stories.
var ErrNoStories = errors.New("no user stories in model output")

// StoryDraft is one story proposed by the model.
type StoryDraft struct {
	Subject            string   `json:"subject"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	StoryPoints        any      `json:"story_points"`
	Priority           string   `json:"priority"`
}

type draftEnvelope struct {
	UserStories []StoryDraft `json:"user_stories"`
}

// ParseDrafts extracts story drafts from model text. It accepts a bare JSON
// object {"user_stories":[...]} or array, optionally inside a Markdown code
// fence or surrounded by prose. Drafts without a subject are dropped.
func ParseDrafts(text string) ([]StoryDraft, error) {
	body := stripFence(text)

	var drafts []StoryDraft
	var parseErr error

	if obj, ok := slice(body, '{', '}'); ok {
		var env draftEnvelope
		if err := json.Unmarshal([]byte(obj), &env); err == nil {
			drafts = env.UserStories
		} else {
			parseErr = err
		}
	}
	if drafts == nil {
		if arr, ok := slice(body, '[', ']'); ok {
			if err := json.Unmarshal([]byte(arr), &drafts); err != nil && parseErr == nil {
				parseErr = err
			}
		}
	}

	kept := drafts[:0]
	for _, d := range drafts {
		d.Subject = strings.TrimSpace(d.Subject)
		if d.Subject == "" {
			continue
		}
		kept = append(kept, d)
	}
	if len(kept) == 0 {
		if parseErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoStories, parseErr)
		}
		return nil, ErrNoStories
	}
	return kept, nil
}

// stripFence returns the contents of the first ``` fenced block, or text
// unchanged when there is none.
func stripFence(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return text
	}
	rest := text[start+3:]
	// Drop the language tag line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		return rest[:end]
	}
	return rest
}

// slice returns text from the first open to the last close delimiter.
func slice(text string, open, close byte) (string, bool) {
	i := strings.IndexByte(text, open)
	j := strings.LastIndexByte(text, close)
	if i < 0 || j <= i {
		return "", false
	}
	return text[i : j+1], true
}

// FormatDescription renders a draft into the Markdown description stored
// on the created story.
func FormatDescription(d StoryDraft) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(d.Description))

	if len(d.AcceptanceCriteria) > 0 {
		b.WriteString("\n\n### Acceptance Criteria\n")
		for i, item := range d.AcceptanceCriteria {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("- ")
			b.WriteString(strings.TrimSpace(item))
		}
	}
	if points := formatPoints(d.StoryPoints); points != "" {
		b.WriteString("\n\n### Story Points\n")
		b.WriteString(points)
	}
	if p := strings.TrimSpace(d.Priority); p != "" {
		b.WriteString("\n\n### Priority\n")
		b.WriteString(p)
	}
	return strings.TrimSpace(b.String())
}

func formatPoints(v any) string {
	switch p := v.(type) {
	case nil:
		return ""
	case float64:
		if p == 0 {
			return ""
		}
		return fmt.Sprintf("%g", p)
	case string:
		return strings.TrimSpace(p)
	}
	return fmt.Sprint(v)
}
