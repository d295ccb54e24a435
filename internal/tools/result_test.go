package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_WireFormat(t *testing.T) {
	ok := Success(map[string]any{
		"epic": map[string]any{"id": 7, "subject": "Login flow", "url": ""},
	})
	assert.JSONEq(t, `{"status":"success","epic":{"id":7,"subject":"Login flow","url":""}}`, ok.String())

	fail := Failure(fmt.Errorf("%w: get_epic", ErrUnknownOperation))
	assert.JSONEq(t, `{"status":"error","message":"unknown operation: get_epic","code":"unknown_operation"}`, fail.String())
}

func TestResult_RoundTrip(t *testing.T) {
	cases := []Result{
		Success(map[string]any{"epic": map[string]any{"id": 7, "subject": "Login flow", "url": ""}}),
		Success(map[string]any{"user_stories": []any{map[string]any{"id": 1}, map[string]any{"id": 2}}, "count": 2}),
		Success(nil),
		Failuref(CodeOperationFailed, "epic %d not found", 99),
		Failure(errors.New("connection refused")),
	}

	for _, want := range cases {
		wire := want.String()
		got, err := ParseResult(wire)
		require.NoError(t, err, wire)

		assert.Equal(t, want.Status, got.Status)
		assert.Equal(t, want.Message, got.Message)
		assert.Equal(t, want.Code, got.Code)
		if want.IsSuccess() {
			// Numbers come back as json.Number, so compare re-encoded payloads.
			wantJSON, _ := json.Marshal(want.Payload)
			gotJSON, _ := json.Marshal(got.Payload)
			assert.JSONEq(t, string(wantJSON), string(gotJSON))
		}
		assert.JSONEq(t, wire, got.String())
	}
}

func TestResult_ReservedPayloadKeysDropped(t *testing.T) {
	r := Success(map[string]any{"status": "bogus", "message": "hi", "count": 1})
	assert.JSONEq(t, `{"status":"success","count":1}`, r.String())
}

func TestResult_ErrorAlwaysHasMessage(t *testing.T) {
	r := Result{Status: StatusError}
	parsed, err := ParseResult(r.String())
	require.NoError(t, err)
	assert.NotEmpty(t, parsed.Message)

	assert.Equal(t, string(CodeTimeout), Failuref(CodeTimeout, "").Message)
}

func TestParseResult_Rejects(t *testing.T) {
	for _, text := range []string{
		``,
		`[]`,
		`null`,
		`{"status":"maybe"}`,
		`{"status":"error"}`,
	} {
		_, err := ParseResult(text)
		assert.Error(t, err, text)
	}
}

func TestResult_UnmarshalJSON(t *testing.T) {
	var r Result
	require.NoError(t, json.Unmarshal([]byte(`{"status":"error","message":"nope","code":"timeout"}`), &r))
	assert.Equal(t, StatusError, r.Status)
	assert.Equal(t, CodeTimeout, r.Code)
}
