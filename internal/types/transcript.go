package types

import "time"

// Transcript is the persisted record of one conversation run.
type Transcript struct {
	RunID      string    `json:"run_id"`
	Input      string    `json:"input"`
	Response   string    `json:"response"`
	State      string    `json:"state"`
	RoundTrips int       `json:"round_trips"`
	ToolCalls  int       `json:"tool_calls"`
	Error      string    `json:"error,omitempty"`
	Messages   []Message `json:"messages"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration is how long the run took.
func (t *Transcript) Duration() time.Duration {
	return t.FinishedAt.Sub(t.StartedAt)
}
