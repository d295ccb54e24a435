package perception

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"taigent/internal/types"
)

func TestMapMessagesToGemini(t *testing.T) {
	messages := []types.Message{
		types.UserMessage("break down epic 7"),
		{Role: types.RoleAssistant, Content: "Looking it up.", ToolCalls: []types.ToolCall{
			{ID: "c1", Name: "get_epic", Arguments: `{"epic_id": 7}`},
			{ID: "c2", Name: "list_epics", Arguments: `oops`},
		}},
		{Role: types.RoleTool, ToolCallID: "c1", Name: "get_epic", Content: `{"status":"success","epic":{"id":7}}`},
		{Role: types.RoleTool, ToolCallID: "c2", Name: "list_epics", Content: `{"status":"error","message":"bad","code":"malformed_arguments"}`},
	}

	contents := MapMessagesToGemini(messages)
	require.Len(t, contents, 3)

	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, "break down epic 7", contents[0].Parts[0].Text)

	model := contents[1]
	assert.Equal(t, genai.RoleModel, model.Role)
	require.Len(t, model.Parts, 3)
	assert.Equal(t, "Looking it up.", model.Parts[0].Text)
	assert.Equal(t, "c1", model.Parts[1].FunctionCall.ID)
	assert.EqualValues(t, 7, model.Parts[1].FunctionCall.Args["epic_id"])
	assert.Equal(t, map[string]any{"raw": "oops"}, model.Parts[2].FunctionCall.Args)

	results := contents[2]
	assert.Equal(t, genai.RoleUser, results.Role)
	require.Len(t, results.Parts, 2)
	assert.Equal(t, "c1", results.Parts[0].FunctionResponse.ID)
	assert.Equal(t, "success", results.Parts[0].FunctionResponse.Response["status"])
	assert.Equal(t, "list_epics", results.Parts[1].FunctionResponse.Name)
}

func TestMapToolDefinitionsToGemini(t *testing.T) {
	schema := map[string]any{"type": "object", "properties": map[string]any{}}
	tools := MapToolDefinitionsToGemini([]ToolDefinition{{Name: "list_projects", Description: "List", InputSchema: schema}})
	require.Len(t, tools, 1)
	require.Len(t, tools[0].FunctionDeclarations, 1)
	assert.Equal(t, "list_projects", tools[0].FunctionDeclarations[0].Name)
	assert.Equal(t, schema, tools[0].FunctionDeclarations[0].ParametersJsonSchema)
}

func TestMapGeminiResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "Creating it."},
				{FunctionCall: &genai.FunctionCall{Name: "create_epic", Args: map[string]any{"project_id": 3.0, "subject": "Cart"}}},
				{FunctionCall: &genai.FunctionCall{ID: "given", Name: "list_projects"}},
			}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 4, CandidatesTokenCount: 2, TotalTokenCount: 6},
	}

	out, err := mapGeminiResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "Creating it.", out.Text)
	require.Len(t, out.ToolCalls, 2)
	assert.True(t, strings.HasPrefix(out.ToolCalls[0].ID, "call_"))
	assert.JSONEq(t, `{"project_id":3,"subject":"Cart"}`, out.ToolCalls[0].Arguments)
	assert.Equal(t, "given", out.ToolCalls[1].ID)
	assert.Equal(t, "{}", out.ToolCalls[1].Arguments)
	assert.Equal(t, 6, out.Usage.TotalTokens)

	_, err = mapGeminiResponse(&genai.GenerateContentResponse{})
	assert.ErrorIs(t, err, ErrNoCompletion)
}

func TestGeminiClient_CompleteWithTools(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.5-flash:generateContent"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"list_projects","args":{}}}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	c, err := NewGeminiClient(context.Background(), GeminiConfig{APIKey: "g-key", BaseURL: srv.URL, Model: "gemini-2.5-flash", Timeout: 5 * time.Second})
	require.NoError(t, err)

	defs := []ToolDefinition{{Name: "list_projects", Description: "List", InputSchema: map[string]any{"type": "object"}}}
	resp, err := c.CompleteWithTools(context.Background(), "system", []types.Message{types.UserMessage("what projects?")}, defs)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "list_projects", resp.ToolCalls[0].Name)

	assert.Contains(t, body, "systemInstruction")
	assert.Contains(t, body, "tools")
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), GeminiConfig{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
