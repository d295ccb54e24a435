package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"taigent/internal/logging"
	"taigent/internal/types"
)

// DefaultDispatchTimeout bounds a single dispatch when neither the registry
// nor the tool sets a deadline.
const DefaultDispatchTimeout = 60 * time.Second

// Registry holds all available tools and dispatches calls to them.
// It is thread-safe; registration normally happens once at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool

	// byCategory provides fast lookup by category.
	byCategory map[ToolCategory][]*Tool

	timeout time.Duration
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:      make(map[string]*Tool),
		byCategory: make(map[ToolCategory][]*Tool),
		timeout:    DefaultDispatchTimeout,
	}
}

// SetTimeout sets the default dispatch deadline. Zero disables it.
func (r *Registry) SetTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeout = d
}

// Register adds a tool to the registry.
// Returns ErrDuplicateOperation if a tool with the same name already exists.
func (r *Registry) Register(tool *Tool) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOperation, tool.Name)
	}

	if tool.Priority == 0 {
		tool.Priority = 50
	}

	r.tools[tool.Name] = tool
	r.byCategory[tool.Category] = append(r.byCategory[tool.Category], tool)

	logging.ToolsDebug("Registered tool: %s (category=%s, priority=%d)", tool.Name, tool.Category, tool.Priority)
	return nil
}

// MustRegister registers a tool and panics on error.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", tool.Name, err))
	}
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has returns true if a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// GetByCategory returns all tools in a category, sorted by priority (descending).
func (r *Registry) GetByCategory(category ToolCategory) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, len(r.byCategory[category]))
	copy(tools, r.byCategory[category])

	sort.SliceStable(tools, func(i, j int) bool {
		return tools[i].Priority > tools[j].Priority
	})

	return tools
}

// All returns all registered tools sorted by name.
func (r *Registry) All() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Names returns all registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns the tool definitions sent to the model, sorted by name.
func (r *Registry) Definitions() []types.ToolDefinition {
	tools := r.All()
	defs := make([]types.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, types.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Schema.JSONSchema(),
		})
	}
	return defs
}

// DispatchRaw parses the argument text of a model tool call and dispatches
// it. Malformed text yields a malformed_arguments envelope.
func (r *Registry) DispatchRaw(ctx context.Context, name, rawArgs string) Result {
	args, err := ParseArguments(rawArgs)
	if err != nil {
		logging.ToolsWarn("Tool %s: %v", name, err)
		return Failure(err)
	}
	return r.Dispatch(ctx, name, args)
}

// Dispatch runs the named tool. It never returns an error: unknown names,
// invalid arguments, handler errors, panics and deadline expiry all become
// error envelopes.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) Result {
	tool := r.Get(name)
	if tool == nil {
		logging.ToolsWarn("Unknown tool requested: %s", name)
		return Failure(fmt.Errorf("%w: %s", ErrUnknownOperation, name))
	}

	normalized, err := tool.Schema.Normalize(args)
	if err != nil {
		logging.ToolsDebug("Tool %s rejected arguments: %v", name, err)
		return Failure(err)
	}

	timeout := tool.Timeout
	if timeout == 0 {
		r.mu.RLock()
		timeout = r.timeout
		r.mu.RUnlock()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logging.ToolsDebug("Executing tool: %s", name)
	timer := logging.StartTimer(logging.CategoryTools, "tool "+name)
	payload, err := r.invoke(ctx, tool, normalized)
	timer.Stop()

	switch {
	case err == nil:
		return Success(payload)
	case errors.Is(err, context.DeadlineExceeded):
		logging.ToolsWarn("Tool %s timed out after %v", name, timeout)
		return Failure(fmt.Errorf("%w: %s exceeded %v", ErrTimeout, name, timeout))
	default:
		logging.ToolsDebug("Tool %s failed: %v", name, err)
		return Failure(err)
	}
}

type outcome struct {
	payload map[string]any
	err     error
}

// invoke runs the handler, converting panics into errors and returning as
// soon as ctx is done even if the handler ignores it.
func (r *Registry) invoke(ctx context.Context, tool *Tool, args Args) (map[string]any, error) {
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				logging.ToolsError("Tool %s panicked: %v", tool.Name, p)
				done <- outcome{err: fmt.Errorf("%w: %s panicked: %v", ErrOperationFailed, tool.Name, p)}
			}
		}()
		payload, err := tool.Execute(ctx, args)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case out := <-done:
		return out.payload, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
