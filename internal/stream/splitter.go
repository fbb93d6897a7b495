package stream

import "strings"

const (
	// dataPrefix marks SSE lines that carry a payload.
	dataPrefix = "data:"
	// doneSentinel is the literal end-of-stream payload.
	doneSentinel = "[DONE]"
)

// frameSplitter extracts complete protocol frames from decoded text.
// Incoming text may end mid-line; the partial line is buffered until the
// terminating newline arrives. Once the end-of-stream sentinel is seen, no
// further input is processed.
type frameSplitter struct {
	// partial holds the trailing incomplete line.
	partial strings.Builder
	// done reports that the sentinel line has been consumed.
	done bool
}

// Split consumes newly decoded text and returns the payloads of all
// complete data lines it contains. Blank lines, comment lines, and lines
// with other SSE field prefixes are discarded.
func (f *frameSplitter) Split(text string) []string {
	if f.done || text == "" {
		return nil
	}
	var frames []string
	for {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			f.partial.WriteString(text)
			return frames
		}
		f.partial.WriteString(text[:idx])
		line := f.partial.String()
		f.partial.Reset()
		text = text[idx+1:]

		payload, terminal := f.framePayload(line)
		if terminal {
			f.done = true
			return frames
		}
		if payload != "" {
			frames = append(frames, payload)
		}
	}
}

// Flush treats any buffered partial line as complete. Streams routinely end
// without a trailing newline after the sentinel.
func (f *frameSplitter) Flush() []string {
	if f.done || f.partial.Len() == 0 {
		return nil
	}
	line := f.partial.String()
	f.partial.Reset()
	payload, terminal := f.framePayload(line)
	if terminal {
		f.done = true
		return nil
	}
	if payload == "" {
		return nil
	}
	return []string{payload}
}

// Done reports whether the end-of-stream sentinel has been consumed.
func (f *frameSplitter) Done() bool {
	return f.done
}

// framePayload extracts the payload from one complete line and reports
// whether the line is the end-of-stream sentinel.
func (f *frameSplitter) framePayload(line string) (payload string, terminal bool) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}
	payload = strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == doneSentinel {
		return "", true
	}
	return payload, false
}
