package stream

import (
	"fmt"
	"strings"
	"testing"

	"github.com/opendelta/opendelta/internal/testutil"
)

// feedAll runs raw bytes through a decoder in fixed-size chunks.
func feedAll(decoder *Decoder, raw string, size int) []Event {
	var events []Event
	for start := 0; start < len(raw); start += size {
		end := start + size
		if end > len(raw) {
			end = len(raw)
		}
		events = append(events, decoder.Feed([]byte(raw[start:end]))...)
	}
	return append(events, decoder.Finish()...)
}

// newTestDecoder builds an OpenAI-dialect decoder with default markers.
func newTestDecoder(testingHandle *testing.T) *Decoder {
	testingHandle.Helper()
	decoder, err := NewDecoder(Config{Dialect: DialectOpenAI})
	testutil.RequireNoError(testingHandle, err, "construct decoder")
	return decoder
}

// TestDecoderEndToEndOneByteChunks verifies a full stream with reasoning
// markers and multi-byte text decodes identically at every chunk size.
func TestDecoderEndToEndOneByteChunks(testingHandle *testing.T) {
	raw := strings.Join([]string{
		`data: {"choices":[{"index":0,"delta":{"content":"<think>wägen"}}]}`,
		``,
		`data: {"choices":[{"index":0,"delta":{"content":"</think>Grüße"}}]}`,
		``,
		`data: {"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		``,
		`data: {"choices":[],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`,
		``,
		`data: [DONE]`,
		``,
	}, "\n")

	for _, size := range []int{1, 2, 3, 7, len(raw)} {
		testingHandle.Run(fmt.Sprintf("chunk_size_%d", size), func(subTest *testing.T) {
			decoder := newTestDecoder(subTest)
			events := feedAll(decoder, raw, size)

			var visible, reasoning string
			var completions int
			for _, event := range events {
				switch ev := event.(type) {
				case TextDelta:
					visible += ev.Text
				case ReasoningDelta:
					reasoning += ev.Text
				case Completion:
					completions++
					testutil.RequireTrue(subTest, ev.HasUsage, "usage should be present")
					testutil.RequireEqual(subTest, ev.Usage.TotalTokens, 3, "usage mismatch")
				}
			}
			testutil.RequireEqual(subTest, visible, "Grüße", "visible mismatch")
			testutil.RequireEqual(subTest, reasoning, "wägen", "reasoning mismatch")
			testutil.RequireEqual(subTest, completions, 1, "expected exactly one completion")
		})
	}
}

// TestDecoderSkipsMalformedFrame verifies one corrupted line among valid
// lines yields events for the valid lines only, in order.
func TestDecoderSkipsMalformedFrame(testingHandle *testing.T) {
	raw := "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"one \"}}]}\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\"\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"two\"}}]}\n"

	decoder := newTestDecoder(testingHandle)
	events := feedAll(decoder, raw, 11)

	var visible string
	for _, event := range events {
		if delta, ok := event.(TextDelta); ok {
			visible += delta.Text
		}
	}
	testutil.RequireLen(testingHandle, events, 2, "corrupted frame must yield no event")
	testutil.RequireEqual(testingHandle, visible, "one two", "valid frames must survive in order")
}

// TestDecoderFinalizesToolCallsOnCompletion verifies fragment merging and
// finalization on the completion preceding [DONE].
func TestDecoderFinalizesToolCallsOnCompletion(testingHandle *testing.T) {
	raw := strings.Join([]string{
		`data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call-a","function":{"name":"read_file","arguments":"{\"pa"}}]}}]}`,
		`data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"th\":\"a.txt\"}"}}]}}]}`,
		`data: {"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		`data: {"choices":[],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`,
		`data: [DONE]`,
		``,
	}, "\n")

	decoder := newTestDecoder(testingHandle)
	events := feedAll(decoder, raw, 13)

	var fragmentCount int
	var completion *Completion
	for _, event := range events {
		switch ev := event.(type) {
		case ToolCallDelta:
			fragmentCount++
		case Completion:
			captured := ev
			completion = &captured
		}
	}
	testutil.RequireEqual(testingHandle, fragmentCount, 2, "fragment events should pass through")
	testutil.RequireTrue(testingHandle, completion != nil, "expected a completion")
	testutil.RequireLen(testingHandle, completion.ToolCalls, 1, "expected one assembled call")
	call := completion.ToolCalls[0]
	testutil.RequireEqual(testingHandle, call.Name, "read_file", "tool name mismatch")
	testutil.RequireEqual(testingHandle, string(call.Arguments), `{"path":"a.txt"}`, "arguments mismatch")
}

// TestDecoderIgnoresInputAfterSentinel verifies nothing is processed after
// the [DONE] line.
func TestDecoderIgnoresInputAfterSentinel(testingHandle *testing.T) {
	decoder := newTestDecoder(testingHandle)

	events := decoder.Feed([]byte("data: [DONE]\ndata: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"late\"}}]}\n"))
	events = append(events, decoder.Finish()...)
	testutil.RequireLen(testingHandle, events, 0, "no events may follow the sentinel")
}

// TestDecoderStopsAfterInBandError verifies an error frame is terminal.
func TestDecoderStopsAfterInBandError(testingHandle *testing.T) {
	decoder := newTestDecoder(testingHandle)

	raw := "data: {\"error\":{\"message\":\"boom\"}}\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"late\"}}]}\n"
	events := decoder.Feed([]byte(raw))
	testutil.RequireEqual(testingHandle, events, []Event{StreamError{Message: "boom"}}, "error must be the last event")
	testutil.RequireLen(testingHandle, decoder.Finish(), 0, "stream is over after the error")
}

// TestDecoderFailProducesTerminalError verifies transport failures surface
// as one terminal error event.
func TestDecoderFailProducesTerminalError(testingHandle *testing.T) {
	decoder := newTestDecoder(testingHandle)

	event := decoder.Fail(fmt.Errorf("connection reset"))
	testutil.RequireEqual(testingHandle, event, Event(StreamError{Message: "connection reset"}), "error event mismatch")
	testutil.RequireLen(testingHandle, decoder.Feed([]byte("data: {}\n")), 0, "decoder must be inert after failure")
}

// TestDecoderAnthropicDialect verifies the anthropic dialect wires through
// the same pipeline, keyed by block index.
func TestDecoderAnthropicDialect(testingHandle *testing.T) {
	raw := strings.Join([]string{
		`event: message_start`,
		`data: {"type":"message_start","message":{"usage":{"input_tokens":4}}}`,
		``,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"plan"}}`,
		``,
		`data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_time"}}`,
		``,
		`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{}"}}`,
		``,
		`data: {"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":6}}`,
		``,
		`data: {"type":"message_stop"}`,
		``,
	}, "\n")

	decoder, err := NewDecoder(Config{Dialect: DialectAnthropic})
	testutil.RequireNoError(testingHandle, err, "construct decoder")
	events := feedAll(decoder, raw, 5)

	var reasoning string
	var completion *Completion
	for _, event := range events {
		switch ev := event.(type) {
		case ReasoningDelta:
			reasoning += ev.Text
		case Completion:
			captured := ev
			completion = &captured
		}
	}
	testutil.RequireEqual(testingHandle, reasoning, "plan", "reasoning mismatch")
	testutil.RequireTrue(testingHandle, completion != nil, "expected a completion")
	testutil.RequireEqual(testingHandle, completion.Usage.TotalTokens, 10, "usage mismatch")
	testutil.RequireLen(testingHandle, completion.ToolCalls, 1, "expected one assembled call")
	testutil.RequireEqual(testingHandle, completion.ToolCalls[0].Name, "get_time", "tool name mismatch")
}

// TestDecoderRejectsUnknownDialect verifies construction fails closed.
func TestDecoderRejectsUnknownDialect(testingHandle *testing.T) {
	_, err := NewDecoder(Config{Dialect: Dialect("mystery")})
	testutil.RequireError(testingHandle, err, "unknown dialect must be rejected")
}
