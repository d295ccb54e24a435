package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taigent/internal/types"
)

func openTest(t *testing.T) *TranscriptStore {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTranscript(id string, started time.Time) *types.Transcript {
	call := types.ToolCall{ID: "c1", Name: "list_projects", Arguments: "{}"}
	return &types.Transcript{
		RunID:      id,
		Input:      "list my projects",
		Response:   "You have one project.",
		State:      "done",
		RoundTrips: 2,
		ToolCalls:  1,
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Messages: []types.Message{
			types.UserMessage("list my projects"),
			{Role: types.RoleAssistant, ToolCalls: []types.ToolCall{call}},
			types.ToolResultMessage(call, `{"count":1,"status":"success"}`),
			{Role: types.RoleAssistant, Content: "You have one project."},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	started := time.Unix(1700000000, 0)
	want := sampleTranscript("run-1", started)

	require.NoError(t, s.SaveRun(ctx, want))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1500*time.Millisecond, got.Duration())
}

func TestSaveRunReplaces(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	tr := sampleTranscript("run-1", time.Unix(1700000000, 0))
	require.NoError(t, s.SaveRun(ctx, tr))

	tr.State = "failed"
	tr.Error = "conversation limit exceeded"
	tr.Messages = tr.Messages[:2]
	require.NoError(t, s.SaveRun(ctx, tr))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "failed", got.State)
	assert.Len(t, got.Messages, 2)
}

func TestGetRunNotFound(t *testing.T) {
	s := openTest(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestSaveRunRequiresID(t *testing.T) {
	s := openTest(t)
	assert.Error(t, s.SaveRun(context.Background(), &types.Transcript{}))
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveRun(ctx, sampleTranscript(id, base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].RunID)
	assert.Equal(t, "b", runs[1].RunID)
	assert.Equal(t, 2, runs[0].RoundTrips)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(context.Background(), sampleTranscript("keep", time.Unix(1700000000, 0))))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	version, err := GetSchemaVersion(s.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	_, err = s.GetRun(context.Background(), "keep")
	assert.NoError(t, err)
}
