package stream

import (
	"fmt"
	"strings"
	"testing"

	"github.com/opendelta/opendelta/internal/testutil"
)

// collectSegments concatenates visible and reasoning output separately.
func collectSegments(events []Event) (visible string, reasoning string) {
	for _, event := range events {
		switch ev := event.(type) {
		case TextDelta:
			visible += ev.Text
		case ReasoningDelta:
			reasoning += ev.Text
		}
	}
	return visible, reasoning
}

// feedByRunes feeds the segmenter one byte-sized chunk at a time.
func feedByRunes(segmenter *Segmenter, input string, size int) []Event {
	var events []Event
	for start := 0; start < len(input); start += size {
		end := start + size
		if end > len(input) {
			end = len(input)
		}
		events = append(events, segmenter.Add(input[start:end])...)
	}
	return append(events, segmenter.Flush()...)
}

// TestSegmenterOneByteChunks verifies the reference scenario: a reasoning
// block followed by visible text, delivered one character at a time, with no
// visible character emitted before the close marker is fully recognized.
func TestSegmenterOneByteChunks(testingHandle *testing.T) {
	segmenter := NewSegmenter("", "")
	input := "<think>step one</think>Hello"

	var visible, reasoning string
	sawVisibleBeforeClose := false
	closed := false
	for _, chunk := range strings.Split(input, "") {
		for _, event := range segmenter.Add(chunk) {
			switch ev := event.(type) {
			case TextDelta:
				if !closed {
					sawVisibleBeforeClose = true
				}
				visible += ev.Text
			case ReasoningDelta:
				reasoning += ev.Text
			}
		}
		if strings.HasSuffix(reasoning, "step one") {
			closed = true
		}
	}
	remaining, tail := collectSegments(segmenter.Flush())
	visible += remaining
	reasoning += tail

	testutil.RequireEqual(testingHandle, reasoning, "step one", "reasoning mismatch")
	testutil.RequireEqual(testingHandle, visible, "Hello", "visible mismatch")
	testutil.RequireTrue(testingHandle, !sawVisibleBeforeClose, "visible text leaked before close marker")
}

// TestSegmenterChunkingInvariance verifies output is identical for every
// chunk size, including splits inside the markers.
func TestSegmenterChunkingInvariance(testingHandle *testing.T) {
	input := "intro <think>first block</think> middle <think>second</think> outro"

	reference := NewSegmenter("", "")
	wantVisible, wantReasoning := collectSegments(feedByRunes(reference, input, len(input)))

	for size := 1; size <= len(input); size++ {
		testingHandle.Run(fmt.Sprintf("chunk_size_%d", size), func(subTest *testing.T) {
			segmenter := NewSegmenter("", "")
			visible, reasoning := collectSegments(feedByRunes(segmenter, input, size))
			testutil.RequireEqual(subTest, visible, wantVisible, "visible output varies with chunking")
			testutil.RequireEqual(subTest, reasoning, wantReasoning, "reasoning output varies with chunking")
		})
	}
}

// TestSegmenterIgnoresTagLikeText verifies only the exact marker strings
// toggle mode; other tag-like substrings are ordinary content.
func TestSegmenterIgnoresTagLikeText(testingHandle *testing.T) {
	segmenter := NewSegmenter("", "")
	input := "a <thinker> b <think>uses </thin king</think> c"

	visible, reasoning := collectSegments(feedByRunes(segmenter, input, 3))
	testutil.RequireEqual(testingHandle, visible, "a <thinker> b  c", "visible mismatch")
	testutil.RequireEqual(testingHandle, reasoning, "uses </thin king", "reasoning mismatch")
}

// TestSegmenterFlushesDanglingPartialMarker verifies held-back text that
// never became a marker is emitted literally at end of stream.
func TestSegmenterFlushesDanglingPartialMarker(testingHandle *testing.T) {
	segmenter := NewSegmenter("", "")

	events := segmenter.Add("answer <thi")
	visible, _ := collectSegments(events)
	testutil.RequireEqual(testingHandle, visible, "answer ", "ambiguous suffix must be held")

	visible, _ = collectSegments(segmenter.Flush())
	testutil.RequireEqual(testingHandle, visible, "<thi", "dangling partial marker must flush literally")
}

// TestSegmenterUnterminatedReasoning verifies an open marker without a close
// flushes the collected text as reasoning, not as an error.
func TestSegmenterUnterminatedReasoning(testingHandle *testing.T) {
	segmenter := NewSegmenter("", "")

	events := append(segmenter.Add("<think>half a thought"), segmenter.Flush()...)
	visible, reasoning := collectSegments(events)
	testutil.RequireEqual(testingHandle, visible, "", "no visible text expected")
	testutil.RequireEqual(testingHandle, reasoning, "half a thought", "unterminated block should flush as reasoning")
}

// TestSegmenterCustomMarkers verifies configured marker strings replace the
// defaults.
func TestSegmenterCustomMarkers(testingHandle *testing.T) {
	segmenter := NewSegmenter("[[r]]", "[[/r]]")

	events := feedByRunes(segmenter, "x[[r]]hidden[[/r]]y<think>z</think>", 2)
	visible, reasoning := collectSegments(events)
	testutil.RequireEqual(testingHandle, visible, "xy<think>z</think>", "default markers must be inert")
	testutil.RequireEqual(testingHandle, reasoning, "hidden", "custom markers should toggle")
}
