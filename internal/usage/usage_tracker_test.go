package usage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestTracker_TrackAggregatesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "usage.json")
	tracker, err := NewTracker(path)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	tracker.Track(Event{Model: "gpt-4o", Provider: "azure", Operation: "conversation", InputTokens: 10, OutputTokens: 5})
	tracker.Track(Event{Model: "gpt-4o", Provider: "azure", Operation: "conversation", InputTokens: 2, OutputTokens: 3})
	tracker.Track(Event{Model: "gpt-4o", Provider: "azure", Operation: "breakdown", Failed: true})

	stats := tracker.Stats()
	if stats.Total.Input != 12 || stats.Total.Output != 8 || stats.Total.Total != 20 {
		t.Fatalf("Total=%+v, want input=12 output=8 total=20", stats.Total)
	}
	if stats.Total.Calls != 3 || stats.Total.Failed != 1 {
		t.Fatalf("Total calls=%d failed=%d, want 3 and 1", stats.Total.Calls, stats.Total.Failed)
	}
	if got := stats.ByProvider["azure"]; got.Total != 20 {
		t.Fatalf("ByProvider[azure]=%+v, want total=20", got)
	}
	if got := stats.ByModel["gpt-4o"]; got.Calls != 3 {
		t.Fatalf("ByModel[gpt-4o]=%+v, want calls=3", got)
	}
	if got := stats.ByOperation["conversation"]; got.Total != 20 {
		t.Fatalf("ByOperation[conversation]=%+v, want total=20", got)
	}
	if got := stats.ByOperation["breakdown"]; got.Calls != 1 || got.Total != 0 {
		t.Fatalf("ByOperation[breakdown]=%+v, want calls=1 total=0", got)
	}

	if err := tracker.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read usage.json: %v", err)
	}
	var persisted UsageData
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("unmarshal usage.json: %v", err)
	}
	if persisted.Aggregate.Total.Total != 20 {
		t.Fatalf("persisted total=%d, want 20", persisted.Aggregate.Total.Total)
	}

	reloaded, err := NewTracker(path)
	if err != nil {
		t.Fatalf("NewTracker reload: %v", err)
	}
	if got := reloaded.Stats().Total.Calls; got != 3 {
		t.Fatalf("reloaded calls=%d, want 3", got)
	}
}

func TestTracker_StatsIsACopy(t *testing.T) {
	tracker, err := NewTracker(filepath.Join(t.TempDir(), "usage.json"))
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	tracker.Track(Event{Model: "m", Provider: "p", InputTokens: 1})

	stats := tracker.Stats()
	stats.ByModel["m"] = TokenCounts{}
	if tracker.Stats().ByModel["m"].Input != 1 {
		t.Fatal("mutating Stats() result changed the tracker")
	}
}

func TestTracker_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	tracker, err := NewTracker(path)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if got := tracker.Stats().Total.Calls; got != 0 {
		t.Fatalf("calls=%d, want 0", got)
	}
	if tracker.Stats().ByOperation == nil {
		t.Fatal("maps not initialized")
	}
}

func TestTracker_SaveWithoutChangesIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	tracker, err := NewTracker(path)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	if err := tracker.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file, stat err=%v", err)
	}

	tracker.Reset()
	if err := tracker.Save(); err != nil {
		t.Fatalf("Save after Reset: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file after Reset+Save: %v", err)
	}
}
