package stream

import "encoding/json"

// Messages stream event types.
const (
	anthropicMessageStart      = "message_start"
	anthropicContentBlockStart = "content_block_start"
	anthropicContentBlockDelta = "content_block_delta"
	anthropicMessageDelta      = "message_delta"
	anthropicError             = "error"
)

// anthropicFrame is one messages stream event payload.
type anthropicFrame struct {
	// Type identifies the stream event type.
	Type string `json:"type"`
	// Index is the content block index for block events.
	Index int `json:"index"`
	// Message carries message metadata on message_start.
	Message *anthropicMessage `json:"message"`
	// ContentBlock describes the opening block on content_block_start.
	ContentBlock *anthropicContentBlock `json:"content_block"`
	// Delta carries the incremental update payload.
	Delta *anthropicDelta `json:"delta"`
	// Usage carries output token counts on message_delta.
	Usage *anthropicUsage `json:"usage"`
	// Error carries in-band failures.
	Error *anthropicErrorBody `json:"error"`
}

// anthropicMessage is the message envelope on message_start.
type anthropicMessage struct {
	// Usage reports input tokens at stream start.
	Usage anthropicUsage `json:"usage"`
}

// anthropicContentBlock describes a block opened by content_block_start.
type anthropicContentBlock struct {
	// Type is text, thinking, or tool_use.
	Type string `json:"type"`
	// ID is the tool call id for tool_use blocks.
	ID string `json:"id"`
	// Name is the tool name for tool_use blocks.
	Name string `json:"name"`
}

// anthropicDelta is the incremental payload of block and message deltas.
type anthropicDelta struct {
	// Type is text_delta, thinking_delta, or input_json_delta.
	Type string `json:"type"`
	// Text carries visible text for text_delta.
	Text string `json:"text"`
	// Thinking carries reasoning text for thinking_delta.
	Thinking string `json:"thinking"`
	// PartialJSON carries an argument fragment for input_json_delta.
	PartialJSON string `json:"partial_json"`
	// StopReason signals termination on message_delta.
	StopReason string `json:"stop_reason"`
}

// anthropicUsage is the provider usage shape.
type anthropicUsage struct {
	// InputTokens counts prompt tokens.
	InputTokens int `json:"input_tokens"`
	// OutputTokens counts generated tokens.
	OutputTokens int `json:"output_tokens"`
}

// anthropicErrorBody is an in-band error payload.
type anthropicErrorBody struct {
	// Message describes the failure.
	Message string `json:"message"`
}

// anthropicParser normalizes messages stream events. Input tokens arrive on
// message_start and output tokens on the terminal message_delta, so usage is
// assembled across frames. The content block index keys the tool-call
// accumulator.
type anthropicParser struct {
	// inputTokens is recorded from message_start.
	inputTokens int
}

// Parse normalizes one stream event payload.
func (p *anthropicParser) Parse(payload string) ([]Event, error) {
	var frame anthropicFrame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		return nil, err
	}

	switch frame.Type {
	case anthropicMessageStart:
		if frame.Message != nil {
			p.inputTokens = frame.Message.Usage.InputTokens
		}

	case anthropicContentBlockStart:
		if frame.ContentBlock != nil && frame.ContentBlock.Type == "tool_use" {
			// Introduces a new indexed call; arguments follow as fragments.
			return []Event{ToolCallDelta{
				Index: frame.Index,
				ID:    frame.ContentBlock.ID,
				Name:  frame.ContentBlock.Name,
			}}, nil
		}

	case anthropicContentBlockDelta:
		if frame.Delta == nil {
			break
		}
		switch frame.Delta.Type {
		case "text_delta":
			if frame.Delta.Text != "" {
				return []Event{TextDelta{Text: frame.Delta.Text}}, nil
			}
		case "thinking_delta":
			if frame.Delta.Thinking != "" {
				return []Event{ReasoningDelta{Text: frame.Delta.Thinking}}, nil
			}
		case "input_json_delta":
			if frame.Delta.PartialJSON != "" {
				return []Event{ToolCallDelta{
					Index:     frame.Index,
					Arguments: frame.Delta.PartialJSON,
				}}, nil
			}
		}

	case anthropicMessageDelta:
		completion := Completion{}
		if frame.Delta != nil {
			completion.FinishReason = frame.Delta.StopReason
		}
		if frame.Usage != nil {
			completion.Usage = Usage{
				PromptTokens:     p.inputTokens,
				CompletionTokens: frame.Usage.OutputTokens,
				TotalTokens:      p.inputTokens + frame.Usage.OutputTokens,
			}
			completion.HasUsage = true
		}
		return []Event{completion}, nil

	case anthropicError:
		message := "provider error"
		if frame.Error != nil && frame.Error.Message != "" {
			message = frame.Error.Message
		}
		return []Event{StreamError{Message: message}}, nil
	}

	// message_stop, ping, and block stop events carry nothing actionable.
	return nil, nil
}

// Flush implements dialectParser; nothing is held across frames beyond the
// input token count, which is only meaningful attached to a Completion.
func (p *anthropicParser) Flush() []Event {
	return nil
}
