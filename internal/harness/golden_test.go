package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Scenarios(t *testing.T) {
	for _, name := range []string{
		"initial_load_then_create",
		"load_top_evicts",
	} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)
		})
	}
}

func TestMarshalTrace_Canonical(t *testing.T) {
	trace := []TraceEvent{
		{Type: EventInvocation, Seq: 1, Op: OpNavigate, Args: map[string]any{"id": int64(7)}},
		{Type: EventScroll, Seq: 2, ID: 7, Edge: "top", Found: true},
		{Type: EventPage, Seq: 3, Revision: 1, Items: []int64{3}, Page: 1, PagesCount: 1, Count: 1, Open: true},
		{Type: EventCompletion, Seq: 4, Op: OpNavigate, Outcome: "error", Error: "boom"},
	}

	got, err := MarshalTrace("demo", trace)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"demo","trace":[`+
			`{"args":{"id":7},"op":"navigate","seq":1,"type":"invocation"},`+
			`{"edge":"top","found":true,"id":7,"seq":2,"type":"scroll"},`+
			`{"count":1,"items":[3],"open":true,"page":1,"pages_count":1,"revision":1,"seq":3,"type":"page"},`+
			`{"error":"boom","op":"navigate","outcome":"error","seq":4,"type":"completion"}]}`,
		string(got))
}

func TestMarshalTrace_Deterministic(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "redelivery.yaml"))
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := MarshalTrace(s.Name, first.Trace)
	require.NoError(t, err)
	b, err := MarshalTrace(s.Name, second.Trace)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
