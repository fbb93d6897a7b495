package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/opendelta/opendelta/internal/stream"
)

// ChatResult is a dialect-independent non-streaming completion.
type ChatResult struct {
	// Text is the assistant response text.
	Text string
	// FinishReason indicates why generation stopped.
	FinishReason string
	// Usage reports token counts.
	Usage stream.Usage
}

// openaiResponse is the chat/completions response body.
type openaiResponse struct {
	// Choices contains the assistant messages.
	Choices []struct {
		// Message is the assistant response.
		Message struct {
			// Content carries the response text.
			Content string `json:"content"`
		} `json:"message"`
		// FinishReason indicates why generation stopped.
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	// Usage reports token counts.
	Usage stream.Usage `json:"usage"`
}

// anthropicResponse is the messages response body.
type anthropicResponse struct {
	// Content lists response blocks; text blocks are concatenated.
	Content []struct {
		// Type discriminates block kinds.
		Type string `json:"type"`
		// Text carries text block content.
		Text string `json:"text"`
	} `json:"content"`
	// StopReason indicates why generation stopped.
	StopReason string `json:"stop_reason"`
	// Usage reports token counts.
	Usage struct {
		// InputTokens counts prompt tokens.
		InputTokens int `json:"input_tokens"`
		// OutputTokens counts generated tokens.
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete executes a non-streaming completion request.
func (c *Client) Complete(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if req == nil {
		return nil, errors.New("chat request is required")
	}
	payload, err := c.marshalRequest(req, false)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return c.parseResult(body)
}

// parseResult decodes the response body for the dialect.
func (c *Client) parseResult(body []byte) (*ChatResult, error) {
	switch c.dialect {
	case stream.DialectAnthropic:
		var parsed anthropicResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("parse chat response: %w", err)
		}
		var text strings.Builder
		for _, block := range parsed.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		return &ChatResult{
			Text:         text.String(),
			FinishReason: parsed.StopReason,
			Usage: stream.Usage{
				PromptTokens:     parsed.Usage.InputTokens,
				CompletionTokens: parsed.Usage.OutputTokens,
				TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
			},
		}, nil

	default:
		var parsed openaiResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("parse chat response: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return nil, errors.New("empty response choices")
		}
		return &ChatResult{
			Text:         parsed.Choices[0].Message.Content,
			FinishReason: parsed.Choices[0].FinishReason,
			Usage:        parsed.Usage,
		}, nil
	}
}
