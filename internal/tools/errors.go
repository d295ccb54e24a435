package tools

import (
	"context"
	"errors"
)

// Tool registry errors.
var (
	// ErrToolNameEmpty is returned when a tool has no name.
	ErrToolNameEmpty = errors.New("tool name cannot be empty")

	// ErrToolExecuteNil is returned when a tool has no execute function.
	ErrToolExecuteNil = errors.New("tool execute function cannot be nil")

	// ErrInvalidSchema is returned when a tool's schema is inconsistent.
	ErrInvalidSchema = errors.New("invalid tool schema")

	// ErrDuplicateOperation is returned when registering a duplicate name.
	ErrDuplicateOperation = errors.New("duplicate operation")

	// ErrUnknownOperation is returned when dispatching an unregistered name.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrInvalidArguments is returned when arguments do not match the schema.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrMalformedArguments is returned when argument text is not a JSON object.
	ErrMalformedArguments = errors.New("malformed arguments")

	// ErrOperationFailed wraps failures raised by a handler.
	ErrOperationFailed = errors.New("operation failed")

	// ErrTimeout is returned when a dispatch exceeds its deadline.
	ErrTimeout = errors.New("operation timed out")
)

// Code is the machine-readable error code carried by error envelopes.
type Code string

const (
	CodeDuplicateOperation Code = "duplicate_operation"
	CodeUnknownOperation   Code = "unknown_operation"
	CodeInvalidArguments   Code = "invalid_arguments"
	CodeMalformedArguments Code = "malformed_arguments"
	CodeOperationFailed    Code = "operation_failed"
	CodeTimeout            Code = "timeout"
	CodeTransport          Code = "transport"
)

// CodeOf maps an error to its envelope code. Errors outside the taxonomy
// are operation failures.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicateOperation):
		return CodeDuplicateOperation
	case errors.Is(err, ErrUnknownOperation):
		return CodeUnknownOperation
	case errors.Is(err, ErrInvalidArguments):
		return CodeInvalidArguments
	case errors.Is(err, ErrMalformedArguments):
		return CodeMalformedArguments
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	}
	return CodeOperationFailed
}
