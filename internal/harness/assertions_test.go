package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Type: EventInvocation, Seq: 1, Op: OpInitialLoad},
		{Type: EventCommit, Seq: 2, Revision: 1, Items: []int64{1, 2, 3}},
		{Type: EventCompletion, Seq: 3, Op: OpInitialLoad, Outcome: "ok"},
		{Type: EventInvocation, Seq: 4, Op: OpLoadTop},
		{Type: EventCommit, Seq: 5, Revision: 2, Items: []int64{0, 1, 2, 3}},
		{Type: EventCompletion, Seq: 6, Op: OpLoadTop, Outcome: "ok"},
		{Type: EventInvocation, Seq: 7, Op: OpLoadTop},
		{Type: EventCompletion, Seq: 8, Op: OpLoadTop, Outcome: "ok"},
	}
}

func TestEvaluateAssertions(t *testing.T) {
	result := &Result{
		Trace:  sampleTrace(),
		Window: []int64{0, 1, 2, 3},
		Page:   []int64{3, 2},
	}

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{name: "contains", assertion: Assertion{Type: AssertTraceContains, Op: OpLoadTop}},
		{name: "contains missing", assertion: Assertion{Type: AssertTraceContains, Op: OpReload}, wantErr: "not found in trace"},
		{name: "order", assertion: Assertion{Type: AssertTraceOrder, Ops: []string{OpInitialLoad, OpLoadTop}}},
		{name: "order reversed", assertion: Assertion{Type: AssertTraceOrder, Ops: []string{OpLoadTop, OpInitialLoad}}, wantErr: "should be before"},
		{name: "order missing", assertion: Assertion{Type: AssertTraceOrder, Ops: []string{OpReset}}, wantErr: "missing operation: reset"},
		{name: "count", assertion: Assertion{Type: AssertTraceCount, Op: OpLoadTop, Count: 2}},
		{name: "count wrong", assertion: Assertion{Type: AssertTraceCount, Op: OpLoadTop, Count: 1}, wantErr: "2 occurrences"},
		{name: "count zero", assertion: Assertion{Type: AssertTraceCount, Op: OpReset, Count: 0}},
		{name: "window", assertion: Assertion{Type: AssertWindow, Window: []int64{0, 1, 2, 3}}},
		{name: "window wrong", assertion: Assertion{Type: AssertWindow, Window: []int64{1, 2, 3}}, wantErr: "Expected: [1 2 3]"},
		{name: "page", assertion: Assertion{Type: AssertPage, Items: []int64{3, 2}}},
		{name: "window max", assertion: Assertion{Type: AssertWindowMax, Max: 4}},
		{name: "window max exceeded", assertion: Assertion{Type: AssertWindowMax, Max: 3}, wantErr: "commit r2 holds 4 items"},
		{name: "no duplicates", assertion: Assertion{Type: AssertNoDuplicates}},
		{name: "unknown", assertion: Assertion{Type: "vibes"}, wantErr: "unknown assertion type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(result, []Assertion{tt.assertion})
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantErr)
			assert.Contains(t, errs[0], "assertions[0]")
		})
	}
}

func TestAssertNoDuplicates_RepeatedID(t *testing.T) {
	trace := []TraceEvent{
		{Type: EventPage, Seq: 1, Revision: 3, Items: []int64{5, 4, 5}},
	}
	err := assertNoDuplicates(trace)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page r3 repeats id 5")
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertWindow,
		Expected: "[1]",
		Actual:   "[2]",
		Trace:    sampleTrace(),
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: window")
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, "[1] initial_load")
	assert.Contains(t, msg, "[5]   commit r2 [0 1 2 3]")
}
