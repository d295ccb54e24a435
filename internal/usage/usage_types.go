package usage

import "time"

// UsageData is the root structure stored on disk.
type UsageData struct {
	Version   string          `json:"version"`
	Since     time.Time       `json:"since"`
	Aggregate AggregatedStats `json:"aggregate"`
}

// Event is one model call.
type Event struct {
	Model        string
	Provider     string
	Operation    string // conversation, breakdown
	InputTokens  int
	OutputTokens int
	Failed       bool
}

// AggregatedStats holds counters broken down by various dimensions.
type AggregatedStats struct {
	Total       TokenCounts            `json:"total"`
	ByProvider  map[string]TokenCounts `json:"by_provider"`
	ByModel     map[string]TokenCounts `json:"by_model"`
	ByOperation map[string]TokenCounts `json:"by_operation"`
}

// TokenCounts holds call and token sums.
type TokenCounts struct {
	Calls  int64 `json:"calls"`
	Failed int64 `json:"failed,omitempty"`
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
	Total  int64 `json:"total"`
}

// Add counts one event.
func (tc *TokenCounts) Add(e Event) {
	tc.Calls++
	if e.Failed {
		tc.Failed++
	}
	tc.Input += int64(e.InputTokens)
	tc.Output += int64(e.OutputTokens)
	tc.Total += int64(e.InputTokens + e.OutputTokens)
}
