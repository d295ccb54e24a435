package logging

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AuditEventType represents the type of audit event
type AuditEventType string

const (
	// Conversation runs
	AuditRunStart AuditEventType = "run_start"
	AuditRunEnd   AuditEventType = "run_end"

	// Model round trips
	AuditLLMRequest  AuditEventType = "llm_request"
	AuditLLMResponse AuditEventType = "llm_response"
	AuditLLMError    AuditEventType = "llm_error"

	// Operation dispatch
	AuditToolInvoke   AuditEventType = "tool_invoke"
	AuditToolComplete AuditEventType = "tool_complete"
	AuditToolError    AuditEventType = "tool_error"

	// Tracker auth
	AuditAuthLogin   AuditEventType = "auth_login"
	AuditAuthRefresh AuditEventType = "auth_refresh"
)

// AuditEvent is one structured audit entry.
type AuditEvent struct {
	EventType  AuditEventType
	RunID      string
	Target     string // operation name, model name, tracker user
	Success    bool
	DurationMs int64
	Error      string
	Message    string
	Fields     map[string]interface{}
}

// AuditLogger writes audit events to the audit category.
type AuditLogger struct {
	runID string
}

// Audit returns an unscoped audit logger
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithRun creates an audit logger scoped to a conversation run
func AuditWithRun(runID string) *AuditLogger {
	return &AuditLogger{runID: runID}
}

type runIDKey struct{}

// WithRunID returns a context carrying the conversation run id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFrom returns the run id stored by WithRunID, or "".
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// AuditFrom returns an audit logger scoped to the run id in ctx.
func AuditFrom(ctx context.Context) *AuditLogger {
	return AuditWithRun(RunIDFrom(ctx))
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	if event.RunID == "" {
		event.RunID = a.runID
	}
	if event.Message == "" {
		event.Message = string(event.EventType)
	}

	fields := []zap.Field{
		zap.String("event", string(event.EventType)),
		zap.Bool("success", event.Success),
	}
	if event.RunID != "" {
		fields = append(fields, zap.String("run", event.RunID))
	}
	if event.Target != "" {
		fields = append(fields, zap.String("target", event.Target))
	}
	if event.DurationMs > 0 {
		fields = append(fields, zap.Int64("dur_ms", event.DurationMs))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	for k, v := range event.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	logger := Get(CategoryAudit).Zap()
	if event.Success {
		logger.Info(event.Message, fields...)
	} else {
		logger.Warn(event.Message, fields...)
	}
}

// RunStart logs the start of a conversation run
func (a *AuditLogger) RunStart(userMessage string) {
	a.Log(AuditEvent{
		EventType: AuditRunStart,
		Success:   true,
		Fields:    map[string]interface{}{"input_len": len(userMessage)},
	})
}

// RunEnd logs the end of a conversation run
func (a *AuditLogger) RunEnd(state string, roundTrips int, duration time.Duration, err error) {
	e := AuditEvent{
		EventType:  AuditRunEnd,
		Success:    err == nil,
		DurationMs: duration.Milliseconds(),
		Fields:     map[string]interface{}{"state": state, "round_trips": roundTrips},
	}
	if err != nil {
		e.Error = err.Error()
	}
	a.Log(e)
}

// LLMCall logs one model round trip
func (a *AuditLogger) LLMCall(model string, toolCalls int, duration time.Duration, err error) {
	e := AuditEvent{
		EventType:  AuditLLMResponse,
		Target:     model,
		Success:    err == nil,
		DurationMs: duration.Milliseconds(),
		Fields:     map[string]interface{}{"tool_calls": toolCalls},
	}
	if err != nil {
		e.EventType = AuditLLMError
		e.Error = err.Error()
	}
	a.Log(e)
}

// ToolExec logs one operation dispatch
func (a *AuditLogger) ToolExec(name, callID, status string, duration time.Duration) {
	e := AuditEvent{
		EventType:  AuditToolComplete,
		Target:     name,
		Success:    status == "success",
		DurationMs: duration.Milliseconds(),
		Fields:     map[string]interface{}{"call_id": callID, "status": status},
	}
	if !e.Success {
		e.EventType = AuditToolError
	}
	a.Log(e)
}

// Auth logs a tracker login or token refresh
func (a *AuditLogger) Auth(refresh bool, username string, err error) {
	e := AuditEvent{EventType: AuditAuthLogin, Target: username, Success: err == nil}
	if refresh {
		e.EventType = AuditAuthRefresh
	}
	if err != nil {
		e.Error = err.Error()
	}
	a.Log(e)
}
