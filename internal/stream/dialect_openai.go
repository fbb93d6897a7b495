package stream

import "encoding/json"

// openaiChunk is the chat/completions SSE chunk payload.
type openaiChunk struct {
	// Choices carries incremental delta updates.
	Choices []openaiChoice `json:"choices"`
	// Usage arrives on the final chunk when stream_options requests it.
	Usage *Usage `json:"usage"`
	// Error is set by gateways that report failures in-band.
	Error *openaiError `json:"error"`
}

// openaiChoice is a single streaming choice delta.
type openaiChoice struct {
	// Index is the choice index; only choice zero is decoded.
	Index int `json:"index"`
	// Delta holds the incremental message update.
	Delta openaiDelta `json:"delta"`
	// FinishReason signals why generation stopped.
	FinishReason *string `json:"finish_reason"`
}

// openaiDelta is the incremental message content.
type openaiDelta struct {
	// Content holds streamed visible text.
	Content string `json:"content"`
	// ReasoningContent holds reasoning text on gateways that separate it.
	ReasoningContent string `json:"reasoning_content"`
	// ToolCalls streams tool call metadata and argument fragments.
	ToolCalls []openaiToolCallDelta `json:"tool_calls"`
}

// openaiToolCallDelta is one incremental tool call fragment.
type openaiToolCallDelta struct {
	// Index identifies the tool call position.
	Index int `json:"index"`
	// ID is set on the fragment that introduces the call.
	ID string `json:"id"`
	// Function carries name and partial argument text.
	Function openaiToolCallFunction `json:"function"`
}

// openaiToolCallFunction holds incremental tool function fields.
type openaiToolCallFunction struct {
	// Name identifies the tool on the introducing fragment.
	Name string `json:"name"`
	// Arguments is a fragment of the JSON argument text.
	Arguments string `json:"arguments"`
}

// openaiError is an in-band provider error payload.
type openaiError struct {
	// Message describes the failure.
	Message string `json:"message"`
}

// openaiParser normalizes chat/completions chunks. Providers split the
// terminal information across frames: finish_reason arrives on one chunk
// and usage on a trailing usage-only chunk, so both are held until the pair
// is complete or the stream ends.
type openaiParser struct {
	// finishReason is the recorded stop reason.
	finishReason string
	// sawFinish reports that a finish_reason was seen.
	sawFinish bool
	// usage is the recorded usage payload.
	usage Usage
	// hasUsage reports that a usage payload was seen.
	hasUsage bool
	// completed guards against emitting Completion twice.
	completed bool
}

// Parse normalizes one chunk payload.
func (p *openaiParser) Parse(payload string) ([]Event, error) {
	var chunk openaiChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return nil, err
	}

	if chunk.Error != nil {
		return []Event{StreamError{Message: chunk.Error.Message}}, nil
	}
	if chunk.Usage != nil {
		p.usage = *chunk.Usage
		p.hasUsage = true
	}

	var events []Event
	for _, choice := range chunk.Choices {
		if choice.Index != 0 {
			continue
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			p.finishReason = *choice.FinishReason
			p.sawFinish = true
		}

		delta := choice.Delta
		switch {
		case delta.ReasoningContent != "":
			events = append(events, ReasoningDelta{Text: delta.ReasoningContent})
		case delta.Content != "":
			events = append(events, TextDelta{Text: delta.Content})
		default:
			for _, call := range delta.ToolCalls {
				events = append(events, ToolCallDelta{
					Index:     call.Index,
					ID:        call.ID,
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				})
			}
		}
	}

	// The terminal frame is the one that completes the finish/usage pair: a
	// finish chunk when usage is already known, or the usage-only trailer.
	if len(events) == 0 && !p.completed && p.sawFinish &&
		(chunk.Usage != nil || (p.hasUsage && choiceHasFinish(chunk.Choices))) {
		events = append(events, p.completion())
	}
	return events, nil
}

// Flush emits the Completion when the stream ended after a finish_reason
// without a trailing usage frame.
func (p *openaiParser) Flush() []Event {
	if p.completed || !p.sawFinish {
		return nil
	}
	return []Event{p.completion()}
}

// completion builds the terminal event from recorded state.
func (p *openaiParser) completion() Completion {
	p.completed = true
	return Completion{
		FinishReason: p.finishReason,
		Usage:        p.usage,
		HasUsage:     p.hasUsage,
	}
}

// choiceHasFinish reports whether any choice carries a finish reason.
func choiceHasFinish(choices []openaiChoice) bool {
	for _, choice := range choices {
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			return true
		}
	}
	return false
}
