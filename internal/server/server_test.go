package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taigent/internal/types"
)

type runnerFunc func(ctx context.Context, input string) string

func (f runnerFunc) Run(ctx context.Context, input string) string { return f(ctx, input) }

type staticTools []types.ToolDefinition

func (s staticTools) Definitions() []types.ToolDefinition { return s }

var testTools = staticTools{
	{Name: "list_projects", Description: "List projects"},
	{Name: "get_epic", Description: "Get an epic"},
}

func post(t *testing.T, h http.Handler, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp.Response
}

func TestChat(t *testing.T) {
	var got string
	s := New(runnerFunc(func(_ context.Context, input string) string {
		got = input
		return "You have 2 projects."
	}), testTools, Options{MaxConcurrentRuns: 2})

	code, reply := post(t, s.Handler(), `{"message": "  how many projects?  "}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "You have 2 projects.", reply)
	assert.Equal(t, "how many projects?", got)
}

func TestChatBlankMessage(t *testing.T) {
	called := false
	s := New(runnerFunc(func(context.Context, string) string {
		called = true
		return ""
	}), testTools, Options{})

	for _, body := range []string{`{"message": "   "}`, `{}`, ``} {
		code, reply := post(t, s.Handler(), body)
		assert.Equal(t, http.StatusOK, code, body)
		assert.Equal(t, emptyMessageReply, reply, body)
	}
	assert.False(t, called)
}

func TestChatBadJSON(t *testing.T) {
	s := New(runnerFunc(func(context.Context, string) string { return "" }), testTools, Options{})

	code, reply := post(t, s.Handler(), `{"message": `)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, badRequestReply, reply)
}

func TestChatProjectContext(t *testing.T) {
	var got string
	s := New(runnerFunc(func(_ context.Context, input string) string {
		got = input
		return "ok"
	}), testTools, Options{DefaultProjectID: 3})

	post(t, s.Handler(), `{"message": "list epics"}`)
	assert.True(t, strings.HasPrefix(got, "[Context:"))
	assert.Contains(t, got, "project_id 3")
	assert.True(t, strings.HasSuffix(got, "\n\nlist epics"))

	post(t, s.Handler(), `{"message": "list epics", "project_id": 9}`)
	assert.Contains(t, got, "project_id 9")

	assert.Equal(t, "hi", WithProjectContext("hi", 0))
}

func TestChatBusy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	s := New(runnerFunc(func(context.Context, string) string {
		close(entered)
		<-release
		return "first"
	}), testTools, Options{MaxConcurrentRuns: 1})

	var wg sync.WaitGroup
	wg.Add(1)
	var firstReply string
	go func() {
		defer wg.Done()
		_, firstReply = post(t, s.Handler(), `{"message": "slow"}`)
	}()
	<-entered

	code, reply := post(t, s.Handler(), `{"message": "second"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, busyReply, reply)

	close(release)
	wg.Wait()
	assert.Equal(t, "first", firstReply)
}

func TestHealthAndTools(t *testing.T) {
	s := New(runnerFunc(func(context.Context, string) string { return "" }), testTools, Options{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 2, health["tools"])

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tools", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Tools []toolInfo `json:"tools"`
		Count int        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "list_projects", list.Tools[0].Name)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "Taiga Assistant")
}

func TestChatRejectsGet(t *testing.T) {
	s := New(runnerFunc(func(context.Context, string) string { return "" }), testTools, Options{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
