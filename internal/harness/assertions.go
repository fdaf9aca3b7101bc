package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		switch event.Type {
		case EventInvocation:
			fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Seq, event.Op, map[string]any(event.Args))
		case EventCommit:
			fmt.Fprintf(&buf, "  [%d]   commit r%d %v\n", event.Seq, event.Revision, event.Items)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the result and
// returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertWindow:
		return assertIDs("window", result.Window, a.Window, result.Trace)
	case AssertPage:
		return assertIDs("page", result.Page, a.Items, result.Trace)
	case AssertWindowMax:
		return assertWindowMax(result.Trace, a)
	case AssertNoDuplicates:
		return assertNoDuplicates(result.Trace)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceContains checks that the operation was invoked.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Type == EventInvocation && event.Op == a.Op {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("operation %s", a.Op),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first invocations of the operations
// appear in the given order. Other operations may come in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventInvocation {
			continue
		}
		if _, seen := positions[event.Op]; !seen {
			positions[event.Op] = i + 1
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all operations present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing operation: %s", op),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("operations in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the operation was invoked exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventInvocation && event.Op == a.Op {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertIDs(kind string, got, want []int64, trace []TraceEvent) error {
	if slices.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    trace,
	}
}

// assertWindowMax checks that every committed window respected the bound.
func assertWindowMax(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Type == EventCommit && len(event.Items) > a.Max {
			return &AssertionError{
				Type:     AssertWindowMax,
				Expected: fmt.Sprintf("at most %d items per commit", a.Max),
				Actual:   fmt.Sprintf("commit r%d holds %d items", event.Revision, len(event.Items)),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertNoDuplicates checks that no committed window or page repeated an
// id.
func assertNoDuplicates(trace []TraceEvent) error {
	for _, event := range trace {
		if event.Type != EventCommit && event.Type != EventPage {
			continue
		}
		seen := make(map[int64]bool, len(event.Items))
		for _, id := range event.Items {
			if seen[id] {
				return &AssertionError{
					Type:     AssertNoDuplicates,
					Expected: "unique ids",
					Actual:   fmt.Sprintf("%s r%d repeats id %d", event.Type, event.Revision, id),
					Trace:    trace,
				}
			}
			seen[id] = true
		}
	}
	return nil
}
