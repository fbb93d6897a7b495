// Package stream decodes chunked SSE byte streams from text-generation
// services into an ordered sequence of provider-agnostic events.
package stream

import "encoding/json"

// Event is a single decoded stream event. Exactly one concrete variant is
// produced per actionable frame: TextDelta, ReasoningDelta, ToolCallDelta,
// Completion, or StreamError.
type Event interface {
	isEvent()
}

// TextDelta carries an incremental fragment of user-visible answer text.
type TextDelta struct {
	// Text is the visible text fragment.
	Text string
}

// ReasoningDelta carries an incremental fragment of model reasoning text.
type ReasoningDelta struct {
	// Text is the reasoning text fragment.
	Text string
}

// ToolCallDelta carries one incremental tool-call fragment. It is
// informational; assembled calls are delivered on the Completion event.
type ToolCallDelta struct {
	// Index identifies which in-flight tool call this fragment belongs to.
	Index int
	// ID is set only on the fragment that introduces a new index.
	ID string
	// Name is set only on the fragment that introduces a new index.
	Name string
	// Arguments is a fragment of the call's JSON argument text.
	Arguments string
}

// Completion terminates a successful stream.
type Completion struct {
	// FinishReason is the provider's stop reason (e.g. stop, tool_calls).
	FinishReason string
	// Usage reports token usage when the provider supplied it.
	Usage Usage
	// HasUsage reports whether Usage was populated.
	HasUsage bool
	// ToolCalls holds the fully assembled tool calls in ascending index order.
	ToolCalls []ToolCall
}

// StreamError terminates a stream after a transport or provider failure.
// No further events follow it.
type StreamError struct {
	// Message describes the failure.
	Message string
}

func (TextDelta) isEvent()      {}
func (ReasoningDelta) isEvent() {}
func (ToolCallDelta) isEvent()  {}
func (Completion) isEvent()     {}
func (StreamError) isEvent()    {}

// ToolCall is a fully assembled tool invocation.
type ToolCall struct {
	// ID is the provider-assigned tool call id.
	ID string
	// Name identifies which tool the model wants invoked.
	Name string
	// Arguments is the parsed JSON argument object. Nil when Err is set.
	Arguments json.RawMessage
	// Raw is the accumulated argument text exactly as streamed.
	Raw string
	// Err describes an argument parse failure, if any. Other calls and the
	// surrounding text response remain valid.
	Err string
}

// Usage reports token usage for one completed stream.
type Usage struct {
	// PromptTokens counts input tokens.
	PromptTokens int `json:"prompt_tokens"`
	// CompletionTokens counts output tokens.
	CompletionTokens int `json:"completion_tokens"`
	// TotalTokens is the sum of prompt and completion tokens.
	TotalTokens int `json:"total_tokens"`
}
