package llm

import (
	"encoding/json"
	"fmt"

	"github.com/opendelta/opendelta/internal/stream"
)

// Message is one turn of a conversation.
type Message struct {
	// Role is one of system, user, or assistant.
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
}

// ChatRequest is a dialect-independent completion request.
type ChatRequest struct {
	// Model is the provider model identifier.
	Model string
	// Messages is the ordered conversation history.
	Messages []Message
	// MaxTokens limits output length; zero selects a dialect default.
	MaxTokens int
	// Temperature controls randomness when non-nil.
	Temperature *float64
}

// defaultMaxTokens applies when the anthropic dialect requires a limit.
const defaultMaxTokens = 4096

// openaiRequest is the chat/completions request body.
type openaiRequest struct {
	// Model is the provider model identifier.
	Model string `json:"model"`
	// Messages is the ordered conversation history.
	Messages []Message `json:"messages"`
	// MaxTokens limits the model output, if set.
	MaxTokens int `json:"max_tokens,omitempty"`
	// Temperature controls randomness, if set.
	Temperature *float64 `json:"temperature,omitempty"`
	// Stream toggles server-sent events.
	Stream bool `json:"stream,omitempty"`
	// StreamOptions requests the final usage chunk while streaming.
	StreamOptions *openaiStreamOptions `json:"stream_options,omitempty"`
}

// openaiStreamOptions configures streaming behavior.
type openaiStreamOptions struct {
	// IncludeUsage requests token usage in the final stream payload.
	IncludeUsage bool `json:"include_usage"`
}

// anthropicRequest is the messages request body.
type anthropicRequest struct {
	// Model is the provider model identifier.
	Model string `json:"model"`
	// MaxTokens limits the model output; required by the API.
	MaxTokens int `json:"max_tokens"`
	// System carries the system prompt outside the message list.
	System string `json:"system,omitempty"`
	// Messages is the ordered conversation history.
	Messages []Message `json:"messages"`
	// Temperature controls randomness, if set.
	Temperature *float64 `json:"temperature,omitempty"`
	// Stream toggles server-sent events.
	Stream bool `json:"stream,omitempty"`
}

// marshalRequest encodes the request body for the dialect.
func (c *Client) marshalRequest(req *ChatRequest, streaming bool) ([]byte, error) {
	switch c.dialect {
	case stream.DialectAnthropic:
		body := anthropicRequest{
			Model:       req.Model,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
			Stream:      streaming,
		}
		if body.MaxTokens <= 0 {
			body.MaxTokens = defaultMaxTokens
		}
		// The messages API carries the system prompt as a dedicated field.
		for _, message := range req.Messages {
			if message.Role == "system" {
				body.System = message.Content
				continue
			}
			body.Messages = append(body.Messages, message)
		}
		return json.Marshal(body)

	case stream.DialectOpenAI:
		body := openaiRequest{
			Model:       req.Model,
			Messages:    req.Messages,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
			Stream:      streaming,
		}
		if streaming {
			body.StreamOptions = &openaiStreamOptions{IncludeUsage: true}
		}
		return json.Marshal(body)
	}
	return nil, fmt.Errorf("unknown dialect %q", c.dialect)
}
