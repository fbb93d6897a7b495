package stream

import "fmt"

// Dialect selects the JSON payload schema used by the upstream service.
// The dialect set is closed and the choice is made once per stream at
// decoder construction; it is never re-evaluated per frame.
type Dialect string

const (
	// DialectOpenAI decodes chat/completions chunk payloads.
	DialectOpenAI Dialect = "openai"
	// DialectAnthropic decodes messages stream event payloads.
	DialectAnthropic Dialect = "anthropic"
)

// Valid reports whether the dialect is a member of the closed set.
func (d Dialect) Valid() bool {
	switch d {
	case DialectOpenAI, DialectAnthropic:
		return true
	}
	return false
}

// dialectParser normalizes one frame's JSON payload into events. Parsers
// may carry per-stream state (e.g. a finish reason waiting for a trailing
// usage frame); Flush surfaces anything still held at end of stream.
type dialectParser interface {
	// Parse normalizes one frame payload. A JSON error skips the frame only.
	Parse(payload string) ([]Event, error)
	// Flush emits events still pending at end of stream.
	Flush() []Event
}

// newDialectParser constructs the parser for a dialect.
func newDialectParser(dialect Dialect) (dialectParser, error) {
	switch dialect {
	case DialectOpenAI:
		return &openaiParser{}, nil
	case DialectAnthropic:
		return &anthropicParser{}, nil
	}
	return nil, fmt.Errorf("unknown stream dialect %q", dialect)
}
