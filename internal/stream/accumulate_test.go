package stream

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/opendelta/opendelta/internal/testutil"
)

// TestToolAccumulatorReconstructsAnySplit verifies the argument string
// delivered in K pieces reconstructs identical JSON for every K.
func TestToolAccumulatorReconstructsAnySplit(testingHandle *testing.T) {
	arguments := `{"path":"/tmp/file.txt","offset":42,"query":"héllo"}`

	for pieces := 1; pieces <= len(arguments); pieces++ {
		testingHandle.Run(fmt.Sprintf("pieces_%d", pieces), func(subTest *testing.T) {
			accumulator := newToolAccumulator()
			accumulator.Apply(ToolCallDelta{Index: 0, ID: "call-1", Name: "read_file"})

			size := (len(arguments) + pieces - 1) / pieces
			for start := 0; start < len(arguments); start += size {
				end := start + size
				if end > len(arguments) {
					end = len(arguments)
				}
				accumulator.Apply(ToolCallDelta{Index: 0, Arguments: arguments[start:end]})
			}

			calls := accumulator.Finalize()
			testutil.RequireLen(subTest, calls, 1, "expected one call")
			testutil.RequireEqual(subTest, calls[0].Err, "", "arguments should parse")

			var got, want map[string]any
			testutil.RequireNoError(subTest, json.Unmarshal(calls[0].Arguments, &got), "parse assembled arguments")
			testutil.RequireNoError(subTest, json.Unmarshal([]byte(arguments), &want), "parse reference arguments")
			testutil.RequireEqual(subTest, got, want, "assembled arguments mismatch")
		})
	}
}

// TestToolAccumulatorOrdersByIndex verifies finalized calls come back in
// ascending index order regardless of arrival order.
func TestToolAccumulatorOrdersByIndex(testingHandle *testing.T) {
	accumulator := newToolAccumulator()
	accumulator.Apply(ToolCallDelta{Index: 2, ID: "call-c", Name: "third", Arguments: "{}"})
	accumulator.Apply(ToolCallDelta{Index: 0, ID: "call-a", Name: "first", Arguments: "{}"})
	accumulator.Apply(ToolCallDelta{Index: 1, ID: "call-b", Name: "second", Arguments: "{}"})

	calls := accumulator.Finalize()
	testutil.RequireLen(testingHandle, calls, 3, "expected three calls")
	testutil.RequireEqual(testingHandle, calls[0].Name, "first", "index order violated")
	testutil.RequireEqual(testingHandle, calls[1].Name, "second", "index order violated")
	testutil.RequireEqual(testingHandle, calls[2].Name, "third", "index order violated")
}

// TestToolAccumulatorIsolatesParseFailure verifies a bad argument buffer is
// reported on that call only while siblings stay valid.
func TestToolAccumulatorIsolatesParseFailure(testingHandle *testing.T) {
	accumulator := newToolAccumulator()
	accumulator.Apply(ToolCallDelta{Index: 0, ID: "call-a", Name: "good", Arguments: `{"x":1}`})
	accumulator.Apply(ToolCallDelta{Index: 1, ID: "call-b", Name: "bad", Arguments: `{"x":`})

	calls := accumulator.Finalize()
	testutil.RequireLen(testingHandle, calls, 2, "expected two calls")
	testutil.RequireEqual(testingHandle, calls[0].Err, "", "valid call should not carry an error")
	testutil.RequireTrue(testingHandle, calls[1].Err != "", "truncated arguments should carry an error")
	testutil.RequireEqual(testingHandle, calls[1].Raw, `{"x":`, "raw argument text should be preserved")
}

// TestToolAccumulatorEmptyArgumentsParseAsObject verifies calls that stream
// no argument text finalize as an empty object.
func TestToolAccumulatorEmptyArgumentsParseAsObject(testingHandle *testing.T) {
	accumulator := newToolAccumulator()
	accumulator.Apply(ToolCallDelta{Index: 0, ID: "call-a", Name: "no_args"})

	calls := accumulator.Finalize()
	testutil.RequireLen(testingHandle, calls, 1, "expected one call")
	testutil.RequireEqual(testingHandle, string(calls[0].Arguments), "{}", "missing arguments should default")
}

// TestToolAccumulatorFinalizesOnce verifies a second finalization yields
// nothing.
func TestToolAccumulatorFinalizesOnce(testingHandle *testing.T) {
	accumulator := newToolAccumulator()
	accumulator.Apply(ToolCallDelta{Index: 0, ID: "call-a", Name: "only", Arguments: "{}"})

	first := accumulator.Finalize()
	testutil.RequireLen(testingHandle, first, 1, "expected one call")
	second := accumulator.Finalize()
	testutil.RequireLen(testingHandle, second, 0, "second finalization must be empty")
}
