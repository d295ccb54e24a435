// Package regression runs YAML-defined chat scenarios through the
// conversation loop and checks which operations were called and what the
// answer says. Batteries are run manually with `taigent battery` against a
// disposable Taiga instance.
package regression

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"taigent/internal/session"
	"taigent/internal/types"
)

// Battery is a collection of regression tasks.
type Battery struct {
	Version  int    `yaml:"version"`
	FailFast bool   `yaml:"fail_fast,omitempty"`
	Tasks    []Task `yaml:"tasks"`
}

// Task is one chat message and the expectations on its run.
type Task struct {
	ID      string `yaml:"id"`
	Message string `yaml:"message"`

	// ExpectTools must all be called at least once.
	ExpectTools []string `yaml:"expect_tools,omitempty"`
	// ForbidTools must not be called.
	ForbidTools []string `yaml:"forbid_tools,omitempty"`
	// ExpectContains must all appear in the answer, case-insensitively.
	ExpectContains []string `yaml:"expect_contains,omitempty"`
	// ExpectError expects the run to fail.
	ExpectError bool `yaml:"expect_error,omitempty"`

	TimeoutSec int `yaml:"timeout_sec,omitempty"`
}

// Result captures execution outcome for a task.
type Result struct {
	TaskID     string
	Success    bool
	Output     string
	Tools      []string
	Failures   []string
	DurationMs int64
}

// Error joins the failed expectations.
func (r Result) Error() string {
	return strings.Join(r.Failures, "; ")
}

// Runner runs one conversation. *session.Executor implements it.
type Runner interface {
	Process(ctx context.Context, input string) (*session.ExecutionResult, error)
}

// LoadBattery reads a YAML battery file from disk.
func LoadBattery(path string) (*Battery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Battery
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse battery YAML: %w", err)
	}
	for i, task := range b.Tasks {
		if strings.TrimSpace(task.Message) == "" {
			return nil, fmt.Errorf("task %d (%s): message is required", i, task.ID)
		}
		if task.ID == "" {
			b.Tasks[i].ID = fmt.Sprintf("task-%d", i+1)
		}
	}
	return &b, nil
}

// RunBattery runs every task in order. With FailFast it stops after the
// first failed task.
func RunBattery(ctx context.Context, b *Battery, runner Runner) []Result {
	if b == nil || len(b.Tasks) == 0 {
		return nil
	}

	results := make([]Result, 0, len(b.Tasks))
	for _, task := range b.Tasks {
		if ctx.Err() != nil {
			break
		}
		res := runTask(ctx, task, runner)
		results = append(results, res)
		if b.FailFast && !res.Success {
			break
		}
	}
	return results
}

func runTask(ctx context.Context, task Task, runner Runner) Result {
	timeout := time.Duration(task.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	run, err := runner.Process(tctx, task.Message)
	res := Result{TaskID: task.ID, DurationMs: time.Since(start).Milliseconds()}
	if run != nil {
		res.Output = run.Text()
		res.Tools = calledTools(run.Messages)
	}
	res.Failures = check(task, res, err)
	res.Success = len(res.Failures) == 0
	return res
}

func calledTools(messages []types.Message) []string {
	var names []string
	for _, msg := range messages {
		for _, call := range msg.ToolCalls {
			names = append(names, call.Name)
		}
	}
	return names
}

func check(task Task, res Result, runErr error) []string {
	var failures []string
	switch {
	case task.ExpectError && runErr == nil:
		failures = append(failures, "expected the run to fail")
	case !task.ExpectError && runErr != nil:
		failures = append(failures, fmt.Sprintf("run failed: %v", runErr))
	}

	called := make(map[string]bool, len(res.Tools))
	for _, name := range res.Tools {
		called[name] = true
	}
	for _, name := range task.ExpectTools {
		if !called[name] {
			failures = append(failures, fmt.Sprintf("expected %s to be called", name))
		}
	}
	for _, name := range task.ForbidTools {
		if called[name] {
			failures = append(failures, fmt.Sprintf("%s must not be called", name))
		}
	}

	answer := strings.ToLower(res.Output)
	for _, want := range task.ExpectContains {
		if !strings.Contains(answer, strings.ToLower(want)) {
			failures = append(failures, fmt.Sprintf("answer does not mention %q", want))
		}
	}
	return failures
}

// DefaultBatteryPath returns the canonical battery path next to the config.
func DefaultBatteryPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "battery.yaml")
}
