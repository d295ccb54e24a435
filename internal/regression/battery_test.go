package regression

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"taigent/internal/session"
	"taigent/internal/types"
)

type runnerFunc func(ctx context.Context, input string) (*session.ExecutionResult, error)

func (f runnerFunc) Process(ctx context.Context, input string) (*session.ExecutionResult, error) {
	return f(ctx, input)
}

// scripted answers every message with one list_projects call and the
// given text.
func scripted(text string) runnerFunc {
	return func(_ context.Context, input string) (*session.ExecutionResult, error) {
		call := types.ToolCall{ID: "c1", Name: "list_projects", Arguments: "{}"}
		return &session.ExecutionResult{
			Response: text,
			State:    session.StateDone,
			Messages: []types.Message{
				types.UserMessage(input),
				{Role: types.RoleAssistant, ToolCalls: []types.ToolCall{call}},
				types.ToolResultMessage(call, `{"status":"success"}`),
				{Role: types.RoleAssistant, Content: text},
			},
		}, nil
	}
}

func TestLoadBattery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "battery.yaml")
	content := `version: 1
fail_fast: true
tasks:
  - id: list
    message: list my projects
    expect_tools: [list_projects]
    expect_contains: [project]
  - message: delete nothing
    forbid_tools: [delete_project]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write battery: %v", err)
	}

	b, err := LoadBattery(path)
	if err != nil {
		t.Fatalf("LoadBattery failed: %v", err)
	}
	if b.Version != 1 || !b.FailFast {
		t.Fatalf("unexpected header: %+v", b)
	}
	if len(b.Tasks) != 2 || b.Tasks[0].ID != "list" || b.Tasks[1].ID != "task-2" {
		t.Fatalf("unexpected tasks: %+v", b.Tasks)
	}
	if b.Tasks[0].ExpectTools[0] != "list_projects" {
		t.Fatalf("expect_tools not parsed: %+v", b.Tasks[0])
	}
}

func TestLoadBatteryRequiresMessage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battery.yaml")
	if err := os.WriteFile(path, []byte("version: 1\ntasks:\n  - id: empty\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadBattery(path); err == nil {
		t.Fatal("expected error for task without message")
	}
}

func TestRunBatterySuccess(t *testing.T) {
	b := &Battery{Version: 1, Tasks: []Task{{
		ID:             "list",
		Message:        "list my projects",
		ExpectTools:    []string{"list_projects"},
		ForbidTools:    []string{"delete_project"},
		ExpectContains: []string{"TWO PROJECTS"},
	}}}

	results := RunBattery(context.Background(), b, scripted("You have two projects."))
	if len(results) != 1 {
		t.Fatalf("results len = %d, want 1", len(results))
	}
	if !results[0].Success {
		t.Fatalf("expected success, got: %s", results[0].Error())
	}
	if len(results[0].Tools) != 1 || results[0].Tools[0] != "list_projects" {
		t.Fatalf("tools = %v", results[0].Tools)
	}
}

func TestRunBatteryFailures(t *testing.T) {
	b := &Battery{Version: 1, Tasks: []Task{{
		ID:             "wrong",
		Message:        "make an epic",
		ExpectTools:    []string{"create_epic"},
		ForbidTools:    []string{"list_projects"},
		ExpectContains: []string{"created"},
	}}}

	res := RunBattery(context.Background(), b, scripted("Nothing to do."))[0]
	if res.Success {
		t.Fatal("expected failure")
	}
	if len(res.Failures) != 3 {
		t.Fatalf("failures = %v, want 3", res.Failures)
	}
	for _, want := range []string{"create_epic", "list_projects must not", `"created"`} {
		if !strings.Contains(res.Error(), want) {
			t.Errorf("error %q does not mention %q", res.Error(), want)
		}
	}
}

func TestRunBatteryExpectError(t *testing.T) {
	failing := runnerFunc(func(context.Context, string) (*session.ExecutionResult, error) {
		err := errors.New("conversation limit exceeded")
		return &session.ExecutionResult{State: session.StateFailed, Error: err}, err
	})

	b := &Battery{Tasks: []Task{
		{ID: "expected", Message: "loop", ExpectError: true},
		{ID: "unexpected", Message: "loop"},
	}}
	results := RunBattery(context.Background(), b, failing)
	if len(results) != 2 {
		t.Fatalf("results len = %d, want 2", len(results))
	}
	if !results[0].Success {
		t.Fatalf("expected task 1 to pass: %s", results[0].Error())
	}
	if results[1].Success {
		t.Fatal("expected task 2 to fail")
	}
	if !strings.HasPrefix(results[1].Output, "Error: ") {
		t.Fatalf("output = %q", results[1].Output)
	}
}

func TestRunBatteryFailFast(t *testing.T) {
	calls := 0
	runner := runnerFunc(func(ctx context.Context, input string) (*session.ExecutionResult, error) {
		calls++
		return scripted("nope")(ctx, input)
	})
	b := &Battery{FailFast: true, Tasks: []Task{
		{ID: "a", Message: "x", ExpectContains: []string{"yes"}},
		{ID: "b", Message: "y"},
	}}

	results := RunBattery(context.Background(), b, runner)
	if len(results) != 1 || calls != 1 {
		t.Fatalf("results=%d calls=%d, want 1 and 1", len(results), calls)
	}
}
