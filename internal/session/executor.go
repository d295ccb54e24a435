// Package session implements the conversation loop.
//
// One Process call drives a model through tool calls until it answers in
// plain text:
//
//	user message → model → tool calls → registry → tool results → model → ... → answer
//
// Each run owns its conversation. Tool calls are dispatched one at a time in
// the order the model issued them, since later calls may depend on earlier
// ones (create a story, then link it).
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"taigent/internal/logging"
	"taigent/internal/tools"
	"taigent/internal/types"
)

var (
	// ErrConversationLimitExceeded is returned when the model is still
	// calling tools after the round trip cap.
	ErrConversationLimitExceeded = errors.New("conversation limit exceeded")

	// ErrModelTransport wraps failures of the model call itself.
	ErrModelTransport = errors.New("model request failed")
)

// State is the position of a run in the loop.
type State string

const (
	StateAwaitingModel    State = "awaiting_model"
	StateDispatchingTools State = "dispatching_tools"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// DefaultSystemPrompt is used when the config sets none.
const DefaultSystemPrompt = `You are a project management assistant for a Taiga instance. You manage projects, epics and user stories using the provided tools.

Rules:
- Every tool that works inside a project needs an explicit numeric project_id. If you do not know it, call list_projects first, or ask the user.
- Refer to epics and user stories by their numeric ids. Look ids up with the list tools rather than guessing.
- To split an epic into user stories, use breakdown_epic.
- Only delete things when the user explicitly asks for it.
- When a tool returns "status": "error", tell the user what went wrong in plain words.
- Finish with a short plain-text summary of what you did, including ids and links.`

// Dispatcher runs tool calls. *tools.Registry implements it.
type Dispatcher interface {
	Definitions() []types.ToolDefinition
	DispatchRaw(ctx context.Context, name, rawArgs string) tools.Result
}

// Recorder persists finished runs.
type Recorder interface {
	SaveRun(ctx context.Context, t *types.Transcript) error
}

// ExecutorConfig holds configuration for the executor.
type ExecutorConfig struct {
	// MaxRoundTrips caps model calls per run.
	MaxRoundTrips int

	// ModelTimeout bounds each model call.
	ModelTimeout time.Duration

	// SystemPrompt is sent with every model call.
	SystemPrompt string
}

// DefaultExecutorConfig returns sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxRoundTrips: 10,
		ModelTimeout:  120 * time.Second,
		SystemPrompt:  DefaultSystemPrompt,
	}
}

// Executor runs conversations. It is safe for concurrent use; runs share
// nothing but the model client and the dispatcher.
type Executor struct {
	mu sync.RWMutex

	llmClient types.LLMClient
	tools     Dispatcher
	recorder  Recorder

	config ExecutorConfig
}

// NewExecutor creates a new executor with the given dependencies.
func NewExecutor(llmClient types.LLMClient, dispatcher Dispatcher, cfg ExecutorConfig) *Executor {
	logging.Session("Creating new Executor (max round trips %d)", cfg.MaxRoundTrips)
	return &Executor{
		llmClient: llmClient,
		tools:     dispatcher,
		config:    normalizeConfig(cfg),
	}
}

func normalizeConfig(cfg ExecutorConfig) ExecutorConfig {
	def := DefaultExecutorConfig()
	if cfg.MaxRoundTrips < 1 {
		cfg.MaxRoundTrips = def.MaxRoundTrips
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = def.SystemPrompt
	}
	return cfg
}

// SetConfig updates the executor configuration.
func (e *Executor) SetConfig(cfg ExecutorConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = normalizeConfig(cfg)
}

// SetRecorder enables transcript persistence.
func (e *Executor) SetRecorder(r Recorder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recorder = r
}

// ExecutionResult holds the result of one run.
type ExecutionResult struct {
	RunID string

	// Response is the model's final answer; empty when the run failed.
	Response string

	State             State
	RoundTrips        int
	ToolCallsExecuted int

	// Messages is the conversation of the run, starting with the user message.
	Messages []types.Message

	Duration time.Duration

	// Error is set if execution failed.
	Error error
}

// Text is what the user sees: the answer, or "Error: ..." on failure.
func (r *ExecutionResult) Text() string {
	if r.Error != nil {
		return "Error: " + r.Error.Error()
	}
	return r.Response
}

// Run processes one user message and always returns text for the user.
func (e *Executor) Run(ctx context.Context, input string) string {
	res, _ := e.Process(ctx, input)
	return res.Text()
}

// Process drives the loop for one user message. The returned error is also
// stored in ExecutionResult.Error; the result is never nil.
func (e *Executor) Process(ctx context.Context, input string) (*ExecutionResult, error) {
	e.mu.RLock()
	cfg := e.config
	recorder := e.recorder
	e.mu.RUnlock()

	start := time.Now()
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	audit := logging.AuditWithRun(runID)
	log := logging.WithRequestID(logging.CategorySession, runID)

	log.Info("Processing input: %d chars", len(input))
	audit.RunStart(input)

	result := &ExecutionResult{
		RunID:    runID,
		State:    StateAwaitingModel,
		Messages: []types.Message{types.UserMessage(input)},
	}
	result.Error = e.loop(ctx, cfg, result, log)
	result.Duration = time.Since(start)

	if result.Error != nil {
		result.State = StateFailed
		log.Warn("Run failed after %d round trips: %v", result.RoundTrips, result.Error)
	} else {
		log.Info("Run complete: %d round trips, %d tool calls, %v", result.RoundTrips, result.ToolCallsExecuted, result.Duration)
	}
	audit.RunEnd(string(result.State), result.RoundTrips, result.Duration, result.Error)

	if recorder != nil {
		e.record(ctx, recorder, input, start, result)
	}
	return result, result.Error
}

// loop is the AWAITING_MODEL / DISPATCHING_TOOLS state machine.
func (e *Executor) loop(ctx context.Context, cfg ExecutorConfig, result *ExecutionResult, log *logging.RequestLogger) error {
	defs := e.tools.Definitions()

	for {
		result.State = StateAwaitingModel
		resp, err := e.callModel(ctx, cfg, result.Messages, defs)
		result.RoundTrips++
		if err != nil {
			return err
		}
		result.Messages = append(result.Messages, types.AssistantMessage(resp))

		if !resp.HasToolCalls() {
			result.State = StateDone
			result.Response = resp.Text
			return nil
		}
		if result.RoundTrips >= cfg.MaxRoundTrips {
			return fmt.Errorf("%w: the model was still calling tools after %d round trips", ErrConversationLimitExceeded, cfg.MaxRoundTrips)
		}

		result.State = StateDispatchingTools
		log.Debug("Round %d: dispatching %d tool calls", result.RoundTrips, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			content := e.dispatch(ctx, call, log)
			result.Messages = append(result.Messages, types.ToolResultMessage(call, content))
			result.ToolCallsExecuted++
		}
	}
}

func (e *Executor) callModel(ctx context.Context, cfg ExecutorConfig, messages []types.Message, defs []types.ToolDefinition) (*types.LLMToolResponse, error) {
	if cfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ModelTimeout)
		defer cancel()
	}

	resp, err := e.llmClient.CompleteWithTools(ctx, cfg.SystemPrompt, messages, defs)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %v", ErrModelTransport, cfg.ModelTimeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrModelTransport, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrModelTransport)
	}
	return resp, nil
}

// dispatch runs one tool call and returns the serialized envelope. Every
// failure becomes an error envelope the model can read.
func (e *Executor) dispatch(ctx context.Context, call types.ToolCall, log *logging.RequestLogger) string {
	start := time.Now()
	res := e.tools.DispatchRaw(ctx, call.Name, call.Arguments)
	elapsed := time.Since(start)

	logging.AuditFrom(ctx).ToolExec(call.Name, call.ID, string(res.Status), elapsed)
	if res.IsSuccess() {
		log.Debug("Tool %s (%s) succeeded in %v", call.Name, call.ID, elapsed)
	} else {
		log.Warn("Tool %s (%s) failed [%s]: %s", call.Name, call.ID, res.Code, res.Message)
	}
	return res.String()
}

func (e *Executor) record(ctx context.Context, recorder Recorder, input string, start time.Time, result *ExecutionResult) {
	t := &types.Transcript{
		RunID:      result.RunID,
		Input:      input,
		Response:   result.Response,
		State:      string(result.State),
		RoundTrips: result.RoundTrips,
		ToolCalls:  result.ToolCallsExecuted,
		Messages:   result.Messages,
		StartedAt:  start,
		FinishedAt: start.Add(result.Duration),
	}
	if result.Error != nil {
		t.Error = result.Error.Error()
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := recorder.SaveRun(saveCtx, t); err != nil {
		logging.SessionWarn("Failed to save transcript %s: %v", result.RunID, err)
	}
}
