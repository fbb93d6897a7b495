package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/opendelta/opendelta/internal/stream"
)

// EventHandler consumes decoded stream events in order.
type EventHandler func(event stream.Event) error

// ChatStream executes a streaming completion request and delivers decoded
// events to the handler as chunks arrive. Transport failures after the
// stream has started surface as a single terminal StreamError event before
// the error return; the handler sees no further events.
func (c *Client) ChatStream(ctx context.Context, req *ChatRequest, handler EventHandler) error {
	if handler == nil {
		return errors.New("stream handler is required")
	}
	if req == nil {
		return errors.New("chat request is required")
	}

	payload, err := c.marshalRequest(req, true)
	if err != nil {
		return fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create chat request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("read stream error body: %w", readErr)
		}
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	decoder, err := c.newDecoder()
	if err != nil {
		return err
	}

	buffer := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, readErr := resp.Body.Read(buffer)
		if n > 0 {
			if err := deliver(handler, decoder.Feed(buffer[:n])); err != nil {
				return err
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return deliver(handler, decoder.Finish())
			}
			// The stream broke mid-response; emit the terminal error event
			// so the consumer sees a closed sequence.
			if err := handler(decoder.Fail(readErr)); err != nil {
				return err
			}
			return fmt.Errorf("read stream: %w", readErr)
		}
	}
}

// deliver forwards events to the handler, stopping on the first error.
func deliver(handler EventHandler, events []stream.Event) error {
	for _, event := range events {
		if err := handler(event); err != nil {
			return err
		}
	}
	return nil
}
