package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the outcome tag of a Result.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Envelope keys owned by the Result wire format. Payload keys with these
// names are dropped on serialization.
const (
	keyStatus  = "status"
	keyMessage = "message"
	keyCode    = "code"
)

// Result is the uniform envelope every dispatch returns.
//
// On the wire a success is a flat JSON object: the payload keys next to
// "status":"success". An error is {"status":"error","message":...,"code":...}.
type Result struct {
	Status  Status
	Payload map[string]any
	Message string
	Code    Code
}

// Success builds a success envelope. A nil payload becomes an empty one.
func Success(payload map[string]any) Result {
	if payload == nil {
		payload = map[string]any{}
	}
	return Result{Status: StatusSuccess, Payload: payload}
}

// Failure builds an error envelope from err, taking the code from the
// error taxonomy.
func Failure(err error) Result {
	if err == nil {
		err = ErrOperationFailed
	}
	return Result{Status: StatusError, Message: err.Error(), Code: CodeOf(err)}
}

// Failuref builds an error envelope with an explicit code.
func Failuref(code Code, format string, args ...any) Result {
	msg := fmt.Sprintf(format, args...)
	if msg == "" {
		msg = string(code)
	}
	return Result{Status: StatusError, Message: msg, Code: code}
}

// IsSuccess returns true for success envelopes.
func (r Result) IsSuccess() bool {
	return r.Status == StatusSuccess
}

// MarshalJSON flattens the envelope into one JSON object.
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Payload)+3)
	if r.IsSuccess() {
		for k, v := range r.Payload {
			if isReserved(k) {
				continue
			}
			out[k] = v
		}
		out[keyStatus] = StatusSuccess
		return json.Marshal(out)
	}

	msg := r.Message
	if msg == "" {
		msg = "unknown error"
	}
	out[keyStatus] = StatusError
	out[keyMessage] = msg
	if r.Code != "" {
		out[keyCode] = r.Code
	}
	return json.Marshal(out)
}

// String returns the wire text sent back to the model as the tool output.
func (r Result) String() string {
	data, err := json.Marshal(r)
	if err != nil {
		fallback, _ := json.Marshal(map[string]any{
			keyStatus:  StatusError,
			keyMessage: fmt.Sprintf("result could not be serialized: %v", err),
			keyCode:    CodeOperationFailed,
		})
		return string(fallback)
	}
	return string(data)
}

// ParseResult parses wire text produced by Result.String. Numbers are kept
// as json.Number.
func ParseResult(text string) (Result, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return Result{}, fmt.Errorf("parse result: %w", err)
	}
	if raw == nil {
		return Result{}, fmt.Errorf("parse result: not an object")
	}

	status, _ := raw[keyStatus].(string)
	switch Status(status) {
	case StatusSuccess:
		delete(raw, keyStatus)
		return Result{Status: StatusSuccess, Payload: raw}, nil
	case StatusError:
		msg, _ := raw[keyMessage].(string)
		code, _ := raw[keyCode].(string)
		if msg == "" {
			return Result{}, fmt.Errorf("parse result: error envelope without message")
		}
		return Result{Status: StatusError, Message: msg, Code: Code(code)}, nil
	}
	return Result{}, fmt.Errorf("parse result: unknown status %q", status)
}

// UnmarshalJSON implements json.Unmarshaler via ParseResult.
func (r *Result) UnmarshalJSON(data []byte) error {
	parsed, err := ParseResult(string(bytes.TrimSpace(data)))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func isReserved(key string) bool {
	return key == keyStatus || key == keyMessage || key == keyCode
}
