package stream

import "strings"

const (
	// DefaultReasoningOpen is the conventional reasoning block opener.
	DefaultReasoningOpen = "<think>"
	// DefaultReasoningClose is the conventional reasoning block closer.
	DefaultReasoningClose = "</think>"
)

// Segmenter splits a text-delta stream into visible and reasoning
// sub-streams. Some services interleave reasoning inside the same content
// stream as the answer, delimited by two literal markers; the markers may be
// split across chunk boundaries down to one byte per chunk. Output is
// identical regardless of chunking: concatenating all visible plus all
// reasoning text (markers stripped) reproduces the input verbatim.
type Segmenter struct {
	// open toggles from visible to reasoning mode.
	open string
	// close toggles from reasoning back to visible mode.
	close string
	// reasoning reports the current mode.
	reasoning bool
	// pending holds text that is still an ambiguous prefix of a marker.
	pending string
}

// NewSegmenter creates a segmenter for one stream. Empty marker strings
// select the defaults. Only the exact configured strings toggle mode; no
// nesting is supported.
func NewSegmenter(open, close string) *Segmenter {
	if open == "" {
		open = DefaultReasoningOpen
	}
	if close == "" {
		close = DefaultReasoningClose
	}
	return &Segmenter{open: open, close: close}
}

// Add consumes the next text increment and returns the deltas that became
// unambiguous. Text that could still turn into a marker is held back.
func (s *Segmenter) Add(text string) []Event {
	if text == "" {
		return nil
	}
	s.pending += text

	var events []Event
	for s.pending != "" {
		marker := s.open
		if s.reasoning {
			marker = s.close
		}

		if idx := strings.Index(s.pending, marker); idx >= 0 {
			// Complete marker: flush what precedes it and toggle mode.
			events = s.emit(events, s.pending[:idx])
			s.pending = s.pending[idx+len(marker):]
			s.reasoning = !s.reasoning
			continue
		}

		if n := markerOverlap(s.pending, marker); n > 0 {
			// The tail is a proper prefix of the marker; hold it back and
			// flush only the unambiguous head.
			events = s.emit(events, s.pending[:len(s.pending)-n])
			s.pending = s.pending[len(s.pending)-n:]
			return events
		}

		events = s.emit(events, s.pending)
		s.pending = ""
	}
	return events
}

// Flush emits any held-back partial-marker text literally in the current
// mode. A dangling partial marker or an unterminated reasoning block is
// surfaced, never dropped.
func (s *Segmenter) Flush() []Event {
	if s.pending == "" {
		return nil
	}
	events := s.emit(nil, s.pending)
	s.pending = ""
	return events
}

// emit appends a delta for text in the current mode, skipping empty text.
func (s *Segmenter) emit(events []Event, text string) []Event {
	if text == "" {
		return events
	}
	if s.reasoning {
		return append(events, ReasoningDelta{Text: text})
	}
	return append(events, TextDelta{Text: text})
}

// markerOverlap returns the length of the longest proper prefix of marker
// that is a suffix of s, or zero when the tail cannot begin a marker.
func markerOverlap(s, marker string) int {
	limit := len(marker) - 1
	if limit > len(s) {
		limit = len(s)
	}
	for i := limit; i > 0; i-- {
		if strings.HasSuffix(s, marker[:i]) {
			return i
		}
	}
	return 0
}
