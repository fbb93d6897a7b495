package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/opendelta/opendelta/internal/llm"
	"github.com/opendelta/opendelta/internal/session"
	"github.com/opendelta/opendelta/internal/stream"
	"github.com/opendelta/opendelta/internal/streamjson"
)

// reasoningStyle dims reasoning text on terminals that support it.
var reasoningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)

// transcriptMessage is a conversation line in a saved transcript.
type transcriptMessage struct {
	// Type is always "message".
	Type string `json:"type"`
	// Role is the speaker role.
	Role string `json:"role"`
	// Text is the message text.
	Text string `json:"text"`
	// Reasoning holds the reasoning text emitted alongside an assistant turn.
	Reasoning string `json:"reasoning,omitempty"`
}

// transcriptCompletion is the closing record of a saved assistant turn.
type transcriptCompletion struct {
	// Type is always "completion".
	Type string `json:"type"`
	// FinishReason is the provider's stop reason.
	FinishReason string `json:"finish_reason"`
	// Usage reports token usage when the provider supplied it.
	Usage *stream.Usage `json:"usage,omitempty"`
	// ToolCalls holds the assembled tool calls, if any.
	ToolCalls []stream.ToolCall `json:"tool_calls,omitempty"`
}

// runChat dispatches between one-shot streaming and the interactive UI.
func runChat(opts *options, args []string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := buildLogger(cfg, opts)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := buildClient(cfg, logger)
	if err != nil {
		return err
	}

	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		if isTerminal() && opts.OutputFormat == "text" {
			return runInteractiveTUI(opts, cfg, client)
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read prompt from stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
		if prompt == "" {
			return errors.New("no prompt provided")
		}
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	req := &llm.ChatRequest{
		Model:     cfg.ResolveModel(opts.Model),
		Messages:  buildMessages(opts.SystemPrompt, prompt),
		MaxTokens: opts.MaxTokens,
	}

	var result *turnResult
	switch opts.OutputFormat {
	case "stream-json":
		result, err = streamJSONTurn(client, req, sessionID)
	case "text":
		result, err = textTurn(client, req, opts)
	default:
		return fmt.Errorf("unknown output format %q", opts.OutputFormat)
	}
	if err != nil {
		return formatRequestError(err)
	}
	if result.errMessage != "" {
		return fmt.Errorf("stream error: %s", result.errMessage)
	}

	if opts.Save {
		if err := saveTurn(sessionID, prompt, result); err != nil {
			return fmt.Errorf("save transcript: %w", err)
		}
		fmt.Fprintf(os.Stderr, "session saved: %s\n", sessionID)
	}
	return nil
}

// buildMessages assembles the request history for a one-shot prompt.
func buildMessages(systemPrompt string, prompt string) []llm.Message {
	var messages []llm.Message
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	}
	return append(messages, llm.Message{Role: "user", Content: prompt})
}

// turnResult collects one assistant turn as it streams.
type turnResult struct {
	// answer accumulates visible answer text.
	answer strings.Builder
	// reasoning accumulates reasoning text.
	reasoning strings.Builder
	// completion is the terminal completion event, when the stream succeeded.
	completion *stream.Completion
	// errMessage is set when the stream ended with an in-band error.
	errMessage string
}

// collect folds a decoded event into the turn result.
func (r *turnResult) collect(event stream.Event) {
	switch typed := event.(type) {
	case stream.TextDelta:
		r.answer.WriteString(typed.Text)
	case stream.ReasoningDelta:
		r.reasoning.WriteString(typed.Text)
	case stream.Completion:
		completion := typed
		r.completion = &completion
	case stream.StreamError:
		r.errMessage = typed.Message
	}
}

// textTurn streams a turn to stdout as plain text, reasoning dimmed on a TTY.
func textTurn(client *llm.Client, req *llm.ChatRequest, opts *options) (*turnResult, error) {
	result := &turnResult{}
	tty := isTerminal()
	buffered := opts.Render && tty

	err := client.ChatStream(context.Background(), req, func(event stream.Event) error {
		result.collect(event)
		switch typed := event.(type) {
		case stream.TextDelta:
			if !buffered {
				fmt.Fprint(os.Stdout, typed.Text)
			}
		case stream.ReasoningDelta:
			if tty {
				fmt.Fprint(os.Stderr, reasoningStyle.Render(typed.Text))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.reasoning.Len() > 0 && tty {
		fmt.Fprintln(os.Stderr)
	}
	if buffered {
		fmt.Fprint(os.Stdout, renderMarkdown(result.answer.String()))
	}
	if result.answer.Len() > 0 && !strings.HasSuffix(result.answer.String(), "\n") {
		fmt.Fprintln(os.Stdout)
	}
	printToolCalls(result)
	return result, nil
}

// streamJSONTurn streams a turn to stdout as NDJSON envelopes.
func streamJSONTurn(client *llm.Client, req *llm.ChatRequest, sessionID string) (*turnResult, error) {
	result := &turnResult{}
	emitter := streamjson.NewEmitter(os.Stdout, sessionID)
	err := client.ChatStream(context.Background(), req, func(event stream.Event) error {
		result.collect(event)
		return emitter.Emit(event)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// printToolCalls summarizes assembled tool calls on stderr.
func printToolCalls(result *turnResult) {
	if result.completion == nil {
		return
	}
	for _, call := range result.completion.ToolCalls {
		if call.Err != "" {
			fmt.Fprintf(os.Stderr, "tool call %s: %s\n", call.Name, call.Err)
			continue
		}
		fmt.Fprintf(os.Stderr, "tool call %s(%s)\n", call.Name, string(call.Arguments))
	}
}

// saveTurn appends the prompt and the assistant turn to the session transcript.
func saveTurn(sessionID string, prompt string, result *turnResult) error {
	store, err := session.NewStore()
	if err != nil {
		return err
	}
	records := []any{
		transcriptMessage{Type: "message", Role: "user", Text: prompt},
		transcriptMessage{
			Type:      "message",
			Role:      "assistant",
			Text:      result.answer.String(),
			Reasoning: result.reasoning.String(),
		},
	}
	if result.completion != nil {
		record := transcriptCompletion{
			Type:         "completion",
			FinishReason: result.completion.FinishReason,
			ToolCalls:    result.completion.ToolCalls,
		}
		if result.completion.HasUsage {
			usage := result.completion.Usage
			record.Usage = &usage
		}
		records = append(records, record)
	}
	for _, record := range records {
		if err := store.Append(sessionID, record); err != nil {
			return err
		}
	}
	return nil
}

// renderMarkdown converts markdown to terminal output, falling back to raw text.
func renderMarkdown(content string) string {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// formatRequestError makes gateway failures readable.
func formatRequestError(err error) error {
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		body := strings.TrimSpace(apiErr.Body)
		if len(body) > 300 {
			body = body[:300] + "..."
		}
		return fmt.Errorf("gateway returned status %d: %s", apiErr.StatusCode, body)
	}
	return err
}

// isTerminal reports whether stdin and stdout are both terminals.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
