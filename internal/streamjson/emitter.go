// Package streamjson renders decoded stream events as NDJSON lines for
// machine consumers and session transcripts.
package streamjson

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/opendelta/opendelta/internal/stream"
)

// Envelope is one NDJSON line wrapping a decoded stream event.
type Envelope struct {
	// Type is delta, reasoning, tool_call, completion, or error.
	Type string `json:"type"`
	// Text carries delta text for delta and reasoning envelopes.
	Text string `json:"text,omitempty"`
	// Index is the tool call index for tool_call envelopes.
	Index int `json:"index,omitempty"`
	// ID is the tool call id on introducing tool_call envelopes.
	ID string `json:"id,omitempty"`
	// Name is the tool name on introducing tool_call envelopes.
	Name string `json:"name,omitempty"`
	// ArgumentsFragment carries partial argument text for tool_call envelopes.
	ArgumentsFragment string `json:"arguments_fragment,omitempty"`
	// FinishReason is set on completion envelopes.
	FinishReason string `json:"finish_reason,omitempty"`
	// Usage is set on completion envelopes when the provider supplied it.
	Usage *stream.Usage `json:"usage,omitempty"`
	// ToolCalls lists assembled calls on completion envelopes.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// Message describes the failure on error envelopes.
	Message string `json:"message,omitempty"`
	// SessionID scopes the envelope to a session.
	SessionID string `json:"session_id"`
	// UUID uniquely identifies the envelope.
	UUID string `json:"uuid"`
}

// ToolCall is the serialized form of an assembled tool call.
type ToolCall struct {
	// ID is the provider-assigned call id.
	ID string `json:"id"`
	// Name identifies the tool.
	Name string `json:"name"`
	// Arguments is the parsed argument object, absent on parse failure.
	Arguments json.RawMessage `json:"arguments,omitempty"`
	// Raw is the argument text as streamed; set only on parse failure.
	Raw string `json:"raw,omitempty"`
	// Error describes an argument parse failure.
	Error string `json:"error,omitempty"`
}

// Emitter writes one envelope line per decoded event.
type Emitter struct {
	// writer receives NDJSON lines.
	writer io.Writer
	// sessionID scopes emitted envelopes.
	sessionID string
}

// NewEmitter constructs an emitter for one session.
func NewEmitter(writer io.Writer, sessionID string) *Emitter {
	return &Emitter{writer: writer, sessionID: sessionID}
}

// Emit writes the envelope line for one decoded event.
func (e *Emitter) Emit(event stream.Event) error {
	envelope := e.envelope(event)
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal stream envelope: %w", err)
	}
	if _, err := e.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write stream envelope: %w", err)
	}
	return nil
}

// envelope maps a decoded event onto its wire form.
func (e *Emitter) envelope(event stream.Event) Envelope {
	envelope := Envelope{
		SessionID: e.sessionID,
		UUID:      uuid.NewString(),
	}
	switch ev := event.(type) {
	case stream.TextDelta:
		envelope.Type = "delta"
		envelope.Text = ev.Text
	case stream.ReasoningDelta:
		envelope.Type = "reasoning"
		envelope.Text = ev.Text
	case stream.ToolCallDelta:
		envelope.Type = "tool_call"
		envelope.Index = ev.Index
		envelope.ID = ev.ID
		envelope.Name = ev.Name
		envelope.ArgumentsFragment = ev.Arguments
	case stream.Completion:
		envelope.Type = "completion"
		envelope.FinishReason = ev.FinishReason
		if ev.HasUsage {
			usage := ev.Usage
			envelope.Usage = &usage
		}
		for _, call := range ev.ToolCalls {
			serialized := ToolCall{ID: call.ID, Name: call.Name, Error: call.Err}
			if call.Err == "" {
				serialized.Arguments = call.Arguments
			} else {
				serialized.Raw = call.Raw
			}
			envelope.ToolCalls = append(envelope.ToolCalls, serialized)
		}
	case stream.StreamError:
		envelope.Type = "error"
		envelope.Message = ev.Message
	}
	return envelope
}
