package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	writeFile(t, path, `
name: test_scenario
description: "Test scenario for validation"
list_id: archive
list:
  page_size: 5
  max_items: 20
  trigger_debounce: 100ms
seed:
  from: 1
  to: 10
  items:
    - id: 50
      fields:
        title: pinned
hash: 4
pager:
  page_size: 5
  newest_first: true
flow:
  - invoke: initial_load
    expect:
      window: [2, 3, 4, 5, 6]
      reached_top: false
  - invoke: show_pages
assertions:
  - type: trace_contains
    op: initial_load
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "test_scenario", s.Name)
	assert.Equal(t, "archive", s.ListID)
	assert.Equal(t, 5, s.List.PageSize)
	assert.Equal(t, "100ms", s.List.TriggerDebounce)
	assert.Equal(t, int64(10), s.Seed.To)
	require.Len(t, s.Seed.Items, 1)
	assert.Equal(t, "pinned", s.Seed.Items[0].Fields["title"])
	require.NotNil(t, s.Hash)
	assert.Equal(t, int64(4), *s.Hash)
	require.NotNil(t, s.Pager)
	assert.True(t, s.Pager.NewestFirst)
	require.Len(t, s.Flow, 2)
	require.NotNil(t, s.Flow[0].Expect)
	assert.Equal(t, []int64{2, 3, 4, 5, 6}, s.Flow[0].Expect.Window)
	require.NotNil(t, s.Flow[0].Expect.ReachedTop)
	assert.False(t, *s.Flow[0].Expect.ReachedTop)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nflow: [{invoke: initial_load}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nflow: [{invoke: initial_load}]\n",
			wantErr: "description is required",
		},
		{
			name:    "empty flow",
			yaml:    "name: n\ndescription: d\n",
			wantErr: "flow list is required",
		},
		{
			name:    "unknown field",
			yaml:    "name: n\ndescription: d\nflows: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "unknown operation",
			yaml:    "name: n\ndescription: d\nflow: [{invoke: explode}]\n",
			wantErr: `unknown operation "explode"`,
		},
		{
			name:    "missing invoke",
			yaml:    "name: n\ndescription: d\nflow: [{args: {id: 1}}]\n",
			wantErr: "invoke is required",
		},
		{
			name:    "pager op without pager",
			yaml:    "name: n\ndescription: d\nflow: [{invoke: show_pages}]\n",
			wantErr: "needs a pager section",
		},
		{
			name:    "bad pager size",
			yaml:    "name: n\ndescription: d\npager: {page_size: 0}\nflow: [{invoke: show_pages}]\n",
			wantErr: "page_size must be positive",
		},
		{
			name:    "seed reversed",
			yaml:    "name: n\ndescription: d\nseed: {from: 5, to: 2}\nflow: [{invoke: initial_load}]\n",
			wantErr: "seed: from (5) is after to (2)",
		},
		{
			name:    "seed from zero",
			yaml:    "name: n\ndescription: d\nseed: {to: 2}\nflow: [{invoke: initial_load}]\n",
			wantErr: "ids start at 1",
		},
		{
			name:    "bad direction",
			yaml:    "name: n\ndescription: d\nlist: {initial_direction: sideways}\nflow: [{invoke: initial_load}]\n",
			wantErr: "list:",
		},
		{
			name:    "assertion without type",
			yaml:    "name: n\ndescription: d\nflow: [{invoke: initial_load}]\nassertions: [{op: x}]\n",
			wantErr: "type is required",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nflow: [{invoke: initial_load}]\nassertions: [{type: vibes}]\n",
			wantErr: `unknown assertion type "vibes"`,
		},
		{
			name:    "trace_order without ops",
			yaml:    "name: n\ndescription: d\nflow: [{invoke: initial_load}]\nassertions: [{type: trace_order}]\n",
			wantErr: "ops list is required",
		},
		{
			name:    "window_max without max",
			yaml:    "name: n\ndescription: d\nflow: [{invoke: initial_load}]\nassertions: [{type: window_max}]\n",
			wantErr: "max must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestListSettings_EngineConfig(t *testing.T) {
	no := false
	retries := 3
	cfg, err := ListSettings{
		PageSize:           10,
		MaxItems:           40,
		ReduceTo:           30,
		InitialDirection:   "bottom",
		CapDelay:           "1s",
		EvictBeforeRestore: &no,
		AnchorRetries:      &retries,
	}.engineConfig()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, 40, cfg.MaxItems)
	assert.Equal(t, 30, cfg.ReduceTo)
	assert.Equal(t, "bottom", cfg.InitialDirection.String())
	assert.Equal(t, "1s", cfg.CapDelay.String())
	assert.False(t, cfg.EvictBeforeRestore)
	assert.Equal(t, 3, cfg.AnchorRetries)

	_, err = ListSettings{ObserverDelay: "later"}.engineConfig()
	assert.Error(t, err)
}
