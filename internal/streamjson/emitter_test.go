package streamjson

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/opendelta/opendelta/internal/stream"
	"github.com/opendelta/opendelta/internal/testutil"
)

// TestEmitterWritesOneLinePerEvent verifies the NDJSON envelope shapes.
func TestEmitterWritesOneLinePerEvent(testingHandle *testing.T) {
	var output bytes.Buffer
	emitter := NewEmitter(&output, "session-1")

	events := []stream.Event{
		stream.TextDelta{Text: "Hello"},
		stream.ReasoningDelta{Text: "thinking"},
		stream.ToolCallDelta{Index: 0, ID: "call-a", Name: "read_file", Arguments: `{"p`},
		stream.Completion{
			FinishReason: "tool_calls",
			Usage:        stream.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3},
			HasUsage:     true,
			ToolCalls: []stream.ToolCall{
				{ID: "call-a", Name: "read_file", Arguments: json.RawMessage(`{"path":"x"}`), Raw: `{"path":"x"}`},
				{ID: "call-b", Name: "broken", Raw: `{"x":`, Err: "tool call broken: arguments are not valid JSON"},
			},
		},
		stream.StreamError{Message: "boom"},
	}
	for _, event := range events {
		testutil.RequireNoError(testingHandle, emitter.Emit(event), "emit event")
	}

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	testutil.RequireLen(testingHandle, lines, len(events), "one line per event")

	var envelopes []Envelope
	for _, line := range lines {
		var envelope Envelope
		testutil.RequireNoError(testingHandle, json.Unmarshal([]byte(line), &envelope), "parse envelope line")
		testutil.RequireEqual(testingHandle, envelope.SessionID, "session-1", "session id mismatch")
		testutil.RequireTrue(testingHandle, envelope.UUID != "", "uuid must be set")
		envelopes = append(envelopes, envelope)
	}

	testutil.RequireEqual(testingHandle, envelopes[0].Type, "delta", "type mismatch")
	testutil.RequireEqual(testingHandle, envelopes[0].Text, "Hello", "text mismatch")
	testutil.RequireEqual(testingHandle, envelopes[1].Type, "reasoning", "type mismatch")
	testutil.RequireEqual(testingHandle, envelopes[2].Type, "tool_call", "type mismatch")
	testutil.RequireEqual(testingHandle, envelopes[2].Name, "read_file", "tool name mismatch")
	testutil.RequireEqual(testingHandle, envelopes[3].Type, "completion", "type mismatch")
	testutil.RequireTrue(testingHandle, envelopes[3].Usage != nil, "usage expected on completion")
	testutil.RequireLen(testingHandle, envelopes[3].ToolCalls, 2, "tool call count mismatch")
	testutil.RequireEqual(testingHandle, envelopes[3].ToolCalls[1].Error,
		"tool call broken: arguments are not valid JSON", "per-call error mismatch")
	testutil.RequireEqual(testingHandle, envelopes[4].Type, "error", "type mismatch")
	testutil.RequireEqual(testingHandle, envelopes[4].Message, "boom", "message mismatch")
}

// TestEmitterOmitsUsageWhenAbsent verifies completions without usage leave
// the field out entirely.
func TestEmitterOmitsUsageWhenAbsent(testingHandle *testing.T) {
	var output bytes.Buffer
	emitter := NewEmitter(&output, "session-2")

	testutil.RequireNoError(testingHandle, emitter.Emit(stream.Completion{FinishReason: "stop"}), "emit completion")
	testutil.RequireTrue(testingHandle, !strings.Contains(output.String(), `"usage"`), "usage must be omitted")
}
