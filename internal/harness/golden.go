package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/listsync/internal/item"
)

// TraceSnapshot captures the complete trace of a scenario run.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. Fields that do not apply to an event type are left
// out.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		m := map[string]any{
			"type": event.Type,
			"seq":  event.Seq,
		}
		switch event.Type {
		case EventInvocation:
			m["op"] = event.Op
			if len(event.Args) > 0 {
				m["args"] = map[string]any(event.Args)
			}
		case EventCompletion:
			m["op"] = event.Op
			m["outcome"] = event.Outcome
			if event.Error != "" {
				m["error"] = event.Error
			}
		case EventCommit:
			m["revision"] = event.Revision
			m["items"] = int64List(event.Items)
			m["direction"] = event.Direction
			m["reached_top"] = event.ReachedTop
			m["reached_bottom"] = event.ReachedBottom
			m["cycle"] = event.Cycle
		case EventScroll:
			m["id"] = event.ID
			m["edge"] = event.Edge
			m["found"] = event.Found
		case EventPage:
			m["revision"] = event.Revision
			m["items"] = int64List(event.Items)
			m["page"] = event.Page
			m["pages_count"] = event.PagesCount
			m["count"] = event.Count
			m["open"] = event.Open
		}
		traceList[i] = m
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

// MarshalTrace renders a trace as canonical JSON.
func MarshalTrace(name string, trace []TraceEvent) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: name, Trace: trace}
	return item.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result.Trace)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}

func int64List(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
