package stream

import (
	"go.uber.org/zap"
)

// Config configures a Decoder for one stream.
type Config struct {
	// Dialect selects the payload schema; required.
	Dialect Dialect
	// ReasoningOpen overrides the reasoning open marker; empty uses <think>.
	ReasoningOpen string
	// ReasoningClose overrides the reasoning close marker; empty uses </think>.
	ReasoningClose string
	// Logger receives warnings for skipped frames and bad tool arguments.
	// A nil logger disables logging.
	Logger *zap.Logger
}

// Decoder turns arbitrarily chunked response bytes into an ordered event
// sequence. Each active stream owns exactly one Decoder; no state is shared
// across streams and no locking is performed. All work is synchronous and
// CPU-only; the caller supplies chunks at whatever rate the transport
// delivers them.
type Decoder struct {
	// bytes reassembles UTF-8 across chunk boundaries.
	bytes byteBuffer
	// frames extracts complete data lines.
	frames frameSplitter
	// parser normalizes frame payloads for the selected dialect.
	parser dialectParser
	// segmenter splits text deltas into visible and reasoning streams.
	segmenter *Segmenter
	// tools merges tool-call fragments into complete calls.
	tools *toolAccumulator
	// log records skipped-frame and tool-argument warnings.
	log *zap.Logger
	// finished blocks further event production after a terminal event or
	// after Finish.
	finished bool
}

// NewDecoder creates a decoder for one stream. The dialect is fixed for the
// decoder's lifetime.
func NewDecoder(cfg Config) (*Decoder, error) {
	parser, err := newDialectParser(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{
		parser:    parser,
		segmenter: NewSegmenter(cfg.ReasoningOpen, cfg.ReasoningClose),
		tools:     newToolAccumulator(),
		log:       logger,
	}, nil
}

// Feed consumes the next chunk of raw response bytes and returns the events
// it completes, in order. Chunks need not align with UTF-8 code points,
// lines, or JSON boundaries.
func (d *Decoder) Feed(chunk []byte) []Event {
	if d.finished {
		return nil
	}
	text := d.bytes.Decode(chunk)
	return d.route(d.parseFrames(d.frames.Split(text)))
}

// Finish flushes all buffered state at end of stream and returns the final
// events: text decoded from an incomplete trailing line, held-back
// partial-marker text, and a pending Completion when the provider never
// sent a terminal usage frame.
func (d *Decoder) Finish() []Event {
	if d.finished {
		return nil
	}
	frames := d.parseFrames(d.frames.Split(d.bytes.Flush()))
	frames = append(frames, d.parserFlushEvents()...)
	events := d.route(frames)
	events = append(events, d.segmenter.Flush()...)
	d.finished = true
	return events
}

// Fail marks the stream as terminated by a transport failure and returns
// the single terminal error event. No further events are produced.
func (d *Decoder) Fail(err error) Event {
	d.finished = true
	return StreamError{Message: err.Error()}
}

// parseFrames normalizes complete frames, skipping malformed payloads.
// A corrupted frame must not abort the stream.
func (d *Decoder) parseFrames(frames []string) []Event {
	var events []Event
	for _, frame := range frames {
		parsed, err := d.parser.Parse(frame)
		if err != nil {
			d.log.Warn("skipping malformed stream frame", zap.Error(err))
			continue
		}
		events = append(events, parsed...)
	}
	return events
}

// parserFlushEvents collects events the dialect parser held back, including
// any frames completed by the splitter's own flush.
func (d *Decoder) parserFlushEvents() []Event {
	events := d.parseFrames(d.frames.Flush())
	return append(events, d.parser.Flush()...)
}

// route dispatches normalized events: text deltas pass through the
// segmenter, tool fragments feed the accumulator, and a Completion first
// flushes held segmenter text and then carries the finalized tool calls.
func (d *Decoder) route(normalized []Event) []Event {
	var events []Event
	for _, event := range normalized {
		if d.finished {
			break
		}
		switch ev := event.(type) {
		case TextDelta:
			events = append(events, d.segmenter.Add(ev.Text)...)
		case ReasoningDelta:
			events = append(events, ev)
		case ToolCallDelta:
			d.tools.Apply(ev)
			events = append(events, ev)
		case Completion:
			events = append(events, d.segmenter.Flush()...)
			ev.ToolCalls = d.tools.Finalize()
			for _, call := range ev.ToolCalls {
				if call.Err != "" {
					d.log.Warn("tool call arguments failed to parse",
						zap.String("tool", call.Name), zap.String("id", call.ID))
				}
			}
			events = append(events, ev)
		case StreamError:
			events = append(events, d.segmenter.Flush()...)
			events = append(events, ev)
			d.finished = true
		}
	}
	return events
}
