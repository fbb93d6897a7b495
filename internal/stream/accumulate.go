package stream

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// toolCallRecord accumulates one tool call's streamed fragments.
type toolCallRecord struct {
	// id is the tool call id from the introducing fragment.
	id string
	// name is the tool function name from the introducing fragment.
	name string
	// arguments accumulates the raw JSON argument text.
	arguments strings.Builder
}

// toolAccumulator merges multi-fragment tool-call deltas, keyed by call
// index, into complete calls. Records are finalized exactly once, at stream
// completion.
type toolAccumulator struct {
	// records stores in-flight tool call state keyed by streaming index.
	records map[int]*toolCallRecord
	// finalized guards against finalizing twice.
	finalized bool
}

func newToolAccumulator() *toolAccumulator {
	return &toolAccumulator{records: map[int]*toolCallRecord{}}
}

// Apply ingests one tool-call fragment. The first fragment for an index
// creates the record and supplies id and name; every fragment's argument
// text is appended.
func (a *toolAccumulator) Apply(delta ToolCallDelta) {
	if a.finalized {
		return
	}
	record := a.records[delta.Index]
	if record == nil {
		record = &toolCallRecord{}
		a.records[delta.Index] = record
	}
	if delta.ID != "" {
		record.id = delta.ID
	}
	if delta.Name != "" {
		record.name = delta.Name
	}
	if delta.Arguments != "" {
		record.arguments.WriteString(delta.Arguments)
	}
}

// Finalize parses every record's argument buffer and returns the assembled
// calls in ascending index order. An argument parse failure is attached to
// that call only; sibling calls are unaffected. Subsequent calls return nil.
func (a *toolAccumulator) Finalize() []ToolCall {
	if a.finalized {
		return nil
	}
	a.finalized = true
	if len(a.records) == 0 {
		return nil
	}

	indexes := make([]int, 0, len(a.records))
	for index := range a.records {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	calls := make([]ToolCall, 0, len(indexes))
	for _, index := range indexes {
		record := a.records[index]
		call := ToolCall{
			ID:   record.id,
			Name: record.name,
			Raw:  record.arguments.String(),
		}
		raw := call.Raw
		if raw == "" {
			// Tools without parameters stream no argument text at all.
			raw = "{}"
		}
		if json.Valid([]byte(raw)) {
			call.Arguments = json.RawMessage(raw)
		} else {
			call.Err = fmt.Sprintf("tool call %s: arguments are not valid JSON", record.name)
		}
		calls = append(calls, call)
	}
	return calls
}
