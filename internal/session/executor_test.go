package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"taigent/internal/tools"
	"taigent/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newRegistry builds a registry with a story tool and a link tool. order
// records dispatched tool names in sequence.
func newRegistry(t *testing.T, order *[]string) *tools.Registry {
	t.Helper()
	var mu sync.Mutex
	note := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		*order = append(*order, name)
	}

	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&tools.Tool{
		Name:        "create_user_story",
		Description: "Create a story",
		Category:    tools.CategoryStories,
		Execute: func(ctx context.Context, args tools.Args) (map[string]any, error) {
			note("create_user_story")
			return map[string]any{"user_story": map[string]any{"id": 42, "subject": args.String("subject")}}, nil
		},
		Schema: tools.ToolSchema{
			Required: []string{"project_id", "subject"},
			Properties: map[string]tools.Property{
				"project_id": {Type: tools.TypeInteger, Description: "Project id"},
				"subject":    {Type: tools.TypeString, Description: "Subject"},
			},
		},
	}))
	require.NoError(t, reg.Register(&tools.Tool{
		Name:        "link_user_story_to_epic",
		Description: "Link a story",
		Category:    tools.CategoryStories,
		Execute: func(ctx context.Context, args tools.Args) (map[string]any, error) {
			note("link_user_story_to_epic")
			if args.Int("epic_id") == 404 {
				return nil, errors.New("No Epic matches the given query.")
			}
			return map[string]any{"link": map[string]any{"epic_id": args.Int("epic_id"), "user_story_id": args.Int("user_story_id")}}, nil
		},
		Schema: tools.ToolSchema{
			Required: []string{"epic_id", "user_story_id"},
			Properties: map[string]tools.Property{
				"epic_id":       {Type: tools.TypeInteger, Description: "Epic id"},
				"user_story_id": {Type: tools.TypeInteger, Description: "Story id"},
			},
		},
	}))
	return reg
}

func newExecutor(t *testing.T, llm *MockLLMClient, maxRounds int) (*Executor, *[]string) {
	t.Helper()
	var order []string
	cfg := DefaultExecutorConfig()
	cfg.MaxRoundTrips = maxRounds
	return NewExecutor(llm, newRegistry(t, &order), cfg), &order
}

func TestExecutor_PlainAnswer(t *testing.T) {
	llm := &MockLLMClient{turns: []*types.LLMToolResponse{text("You have 2 projects.")}}
	exec, order := newExecutor(t, llm, 10)

	res, err := exec.Process(context.Background(), "how many projects?")
	require.NoError(t, err)

	assert.Equal(t, "You have 2 projects.", res.Response)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, res.RoundTrips)
	assert.Zero(t, res.ToolCallsExecuted)
	assert.Empty(t, *order)
	assert.NotEmpty(t, res.RunID)
	assert.Len(t, llm.toolsSeen, 2)

	want := []types.Message{
		{Role: types.RoleUser, Content: "how many projects?"},
		{Role: types.RoleAssistant, Content: "You have 2 projects."},
	}
	if diff := cmp.Diff(want, res.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestExecutor_ToolRoundTrip(t *testing.T) {
	llm := &MockLLMClient{turns: []*types.LLMToolResponse{
		toolTurn(
			call("c1", "create_user_story", `{"project_id": 1, "subject": "Login"}`),
			call("c2", "link_user_story_to_epic", `{"epic_id": 7, "user_story_id": 42}`),
		),
		text("Created story #42 and linked it to epic #7."),
	}}
	exec, order := newExecutor(t, llm, 10)

	res, err := exec.Process(context.Background(), "create a login story under epic 7")
	require.NoError(t, err)

	assert.Equal(t, []string{"create_user_story", "link_user_story_to_epic"}, *order)
	assert.Equal(t, 2, res.RoundTrips)
	assert.Equal(t, 2, res.ToolCallsExecuted)
	assert.Equal(t, "Created story #42 and linked it to epic #7.", res.Response)
	require.NoError(t, types.ValidateConversation(res.Messages))

	// user, assistant(calls), tool, tool, assistant(text)
	require.Len(t, res.Messages, 5)
	assert.Equal(t, "c1", res.Messages[2].ToolCallID)
	assert.Equal(t, "c2", res.Messages[3].ToolCallID)

	first, err := tools.ParseResult(res.Messages[2].Content)
	require.NoError(t, err)
	assert.True(t, first.IsSuccess())

	// The second model call saw the full conversation so far.
	if diff := cmp.Diff(res.Messages[:4], llm.seen[1]); diff != "" {
		t.Errorf("second model call conversation mismatch (-want +got):\n%s", diff)
	}
}

func TestExecutor_ToolErrorsAreFedBack(t *testing.T) {
	tests := []struct {
		name     string
		call     types.ToolCall
		wantCode tools.Code
	}{
		{"unknown operation", call("c1", "delete_everything", `{}`), tools.CodeUnknownOperation},
		{"malformed arguments", call("c1", "create_user_story", `{"project_id": 1,`), tools.CodeMalformedArguments},
		{"missing argument", call("c1", "create_user_story", `{"subject": "x"}`), tools.CodeInvalidArguments},
		{"handler failure", call("c1", "link_user_story_to_epic", `{"epic_id": 404, "user_story_id": 1}`), tools.CodeOperationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &MockLLMClient{turns: []*types.LLMToolResponse{
				toolTurn(tt.call),
				text("That did not work."),
			}}
			exec, _ := newExecutor(t, llm, 10)

			res, err := exec.Process(context.Background(), "do it")
			require.NoError(t, err)
			assert.Equal(t, StateDone, res.State)

			got, err := tools.ParseResult(res.Messages[2].Content)
			require.NoError(t, err)
			assert.False(t, got.IsSuccess())
			assert.Equal(t, tt.wantCode, got.Code)
		})
	}
}

func TestExecutor_RoundTripLimit(t *testing.T) {
	loop := toolTurn(call("c1", "create_user_story", `{"project_id": 1, "subject": "Again"}`))
	llm := &MockLLMClient{turns: []*types.LLMToolResponse{loop, loop, loop, loop}}
	exec, order := newExecutor(t, llm, 3)

	res, err := exec.Process(context.Background(), "loop forever")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConversationLimitExceeded))
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, 3, llm.Calls())
	assert.Equal(t, 3, res.RoundTrips)
	// The tool calls of the final turn are not dispatched.
	assert.Len(t, *order, 2)
	assert.Empty(t, res.Response)
	assert.Contains(t, res.Text(), "3 round trips")
	assert.True(t, strings.HasPrefix(res.Text(), "Error: "))
}

func TestExecutor_AnswerOnLastAllowedRound(t *testing.T) {
	llm := &MockLLMClient{turns: []*types.LLMToolResponse{
		toolTurn(call("c1", "create_user_story", `{"project_id": 1, "subject": "A"}`)),
		text("done"),
	}}
	exec, _ := newExecutor(t, llm, 2)

	res, err := exec.Process(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "done", res.Response)
}

func TestExecutor_ModelError(t *testing.T) {
	llm := &MockLLMClient{err: errors.New("503 service unavailable")}
	exec, order := newExecutor(t, llm, 10)

	out := exec.Run(context.Background(), "hello")
	assert.True(t, strings.HasPrefix(out, "Error: "))
	assert.Contains(t, out, "503")
	assert.Empty(t, *order)

	res, err := exec.Process(context.Background(), "hello")
	assert.True(t, errors.Is(err, ErrModelTransport))
	assert.Equal(t, StateFailed, res.State)
}

func TestExecutor_ModelTimeout(t *testing.T) {
	llm := &MockLLMClient{
		CompleteWithToolsFunc: func(ctx context.Context, _ string, _ []types.Message, _ []types.ToolDefinition) (*types.LLMToolResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	exec, _ := newExecutor(t, llm, 10)
	exec.SetConfig(ExecutorConfig{MaxRoundTrips: 10, ModelTimeout: 20 * time.Millisecond})

	_, err := exec.Process(context.Background(), "slow")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelTransport))
	assert.Contains(t, err.Error(), "timed out")
}

func TestExecutor_RecordsTranscript(t *testing.T) {
	llm := &MockLLMClient{turns: []*types.LLMToolResponse{
		toolTurn(call("c1", "create_user_story", `{"project_id": 1, "subject": "A"}`)),
		text("Created."),
	}}
	exec, _ := newExecutor(t, llm, 10)
	rec := &memoryRecorder{}
	exec.SetRecorder(rec)

	res, err := exec.Process(context.Background(), "create A")
	require.NoError(t, err)

	require.Len(t, rec.runs, 1)
	got := rec.runs[0]
	assert.Equal(t, res.RunID, got.RunID)
	assert.Equal(t, "create A", got.Input)
	assert.Equal(t, "Created.", got.Response)
	assert.Equal(t, string(StateDone), got.State)
	assert.Equal(t, 1, got.ToolCalls)
	assert.Len(t, got.Messages, 4)
	assert.False(t, got.FinishedAt.Before(got.StartedAt))
}

func TestExecutor_RecorderFailureDoesNotFailRun(t *testing.T) {
	llm := &MockLLMClient{turns: []*types.LLMToolResponse{text("ok")}}
	exec, _ := newExecutor(t, llm, 10)
	exec.SetRecorder(&memoryRecorder{err: errors.New("disk full")})

	assert.Equal(t, "ok", exec.Run(context.Background(), "hi"))
}

func TestExecutor_ConcurrentRunsAreIsolated(t *testing.T) {
	llm := &MockLLMClient{
		CompleteWithToolsFunc: func(_ context.Context, _ string, msgs []types.Message, _ []types.ToolDefinition) (*types.LLMToolResponse, error) {
			if len(msgs) == 1 {
				return toolTurn(call("c1", "create_user_story", fmt.Sprintf(`{"project_id": 1, "subject": %q}`, msgs[0].Content))), nil
			}
			return text("echo " + msgs[0].Content), nil
		},
	}
	exec, _ := newExecutor(t, llm, 10)

	const n = 8
	results := make([]*ExecutionResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = exec.Process(context.Background(), fmt.Sprintf("run-%d", i))
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, res := range results {
		require.NoError(t, res.Error)
		assert.Equal(t, fmt.Sprintf("echo run-%d", i), res.Response)
		assert.Len(t, res.Messages, 4)
		assert.False(t, seen[res.RunID], "run ids must be unique")
		seen[res.RunID] = true
	}
}

func TestNormalizeConfig(t *testing.T) {
	cfg := normalizeConfig(ExecutorConfig{})
	assert.Equal(t, 10, cfg.MaxRoundTrips)
	assert.Equal(t, DefaultSystemPrompt, cfg.SystemPrompt)

	cfg = normalizeConfig(ExecutorConfig{MaxRoundTrips: 3, SystemPrompt: "x"})
	assert.Equal(t, 3, cfg.MaxRoundTrips)
	assert.Equal(t, "x", cfg.SystemPrompt)
}
