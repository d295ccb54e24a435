// Package usage accumulates model call and token counts and persists them
// as JSON next to the transcript database.
package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"taigent/internal/logging"
)

const dataVersion = "1"

// Tracker records usage events. It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	data     UsageData
	filePath string
	dirty    bool
}

// NewTracker creates a tracker persisted at path, loading existing data.
// A corrupt file is logged and replaced on the next save.
func NewTracker(path string) (*Tracker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create usage dir: %w", err)
	}

	t := &Tracker{filePath: path, data: emptyData()}
	if err := t.Load(); err != nil {
		logging.BootWarn("Ignoring unreadable usage file %s: %v", path, err)
		t.data = emptyData()
	}
	return t, nil
}

func emptyData() UsageData {
	return UsageData{
		Version: dataVersion,
		Since:   time.Now(),
		Aggregate: AggregatedStats{
			ByProvider:  make(map[string]TokenCounts),
			ByModel:     make(map[string]TokenCounts),
			ByOperation: make(map[string]TokenCounts),
		},
	}
}

// Load reads the usage data from disk. A missing file is not an error.
func (t *Tracker) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	loaded := emptyData()
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}
	// Files written by older versions may lack some maps.
	if loaded.Aggregate.ByProvider == nil {
		loaded.Aggregate.ByProvider = make(map[string]TokenCounts)
	}
	if loaded.Aggregate.ByModel == nil {
		loaded.Aggregate.ByModel = make(map[string]TokenCounts)
	}
	if loaded.Aggregate.ByOperation == nil {
		loaded.Aggregate.ByOperation = make(map[string]TokenCounts)
	}
	t.data = loaded
	return nil
}

// Save writes the usage data to disk if anything changed.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty {
		return nil
	}
	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(t.filePath, data, 0644); err != nil {
		return err
	}
	t.dirty = false
	return nil
}

// Track records one model call.
func (t *Tracker) Track(e Event) {
	if e.Operation == "" {
		e.Operation = "unknown"
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Aggregate.Total.Add(e)
	addToMap(t.data.Aggregate.ByProvider, e.Provider, e)
	addToMap(t.data.Aggregate.ByModel, e.Model, e)
	addToMap(t.data.Aggregate.ByOperation, e.Operation, e)
	t.dirty = true
}

// Stats returns a copy of the aggregated stats.
func (t *Tracker) Stats() AggregatedStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.data.Aggregate
	stats.ByProvider = copyTokenCountsMap(stats.ByProvider)
	stats.ByModel = copyTokenCountsMap(stats.ByModel)
	stats.ByOperation = copyTokenCountsMap(stats.ByOperation)
	return stats
}

// Since returns when counting started.
func (t *Tracker) Since() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data.Since
}

// Reset clears all counters.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data = emptyData()
	t.dirty = true
}

func copyTokenCountsMap(src map[string]TokenCounts) map[string]TokenCounts {
	if src == nil {
		return nil
	}
	dst := make(map[string]TokenCounts, len(src))
	for key, counts := range src {
		dst[key] = counts
	}
	return dst
}

func addToMap(m map[string]TokenCounts, key string, e Event) {
	entry := m[key]
	entry.Add(e)
	m[key] = entry
}
