package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")

func TestSimulate_AllPass(t *testing.T) {
	out, _, err := execute(t, "simulate", scenariosDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "PASS  initial_load_then_create  window=[16 17 18 19 20 21]")
	assert.Contains(t, out, "PASS  hash_anchor  window=[5 6 7 8 9]")
	assert.Contains(t, out, " passed, 0 failed, ")
	assert.NotContains(t, out, "FAIL")
}

func TestSimulate_Trace(t *testing.T) {
	out, _, err := execute(t, "simulate", "--trace", filepath.Join(scenariosDir, "load_top_evicts.yaml"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "[1] initial_load")
	assert.Contains(t, out, "[2]   commit r1 [16 17 18 19 20] top=false bottom=true")
	assert.Contains(t, out, "[3]   scroll 20 to bottom found=true")
	assert.Contains(t, out, "[4]   -> ok")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestSimulate_JSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "simulate", filepath.Join(scenariosDir, "hash_anchor.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   SimulateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "hash_anchor", resp.Data.Scenarios[0].Name)
	assert.Equal(t, []int64{5, 6, 7, 8, 9}, resp.Data.Scenarios[0].Window)
	assert.Empty(t, resp.Data.Scenarios[0].Trace)
}

func TestSimulate_Failure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(`
name: wrong_window
description: expects the wrong window
seed: { from: 1, to: 3 }
flow:
  - invoke: initial_load
    expect:
      window: [1]
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	out, _, err := execute(t, "simulate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 of 2 scenarios failed")
	assert.Contains(t, out, "FAIL  wrong_window  window=[1 2 3]")
	assert.Contains(t, out, "window = [1 2 3], want [1]")
	assert.Contains(t, out, "description is required")
}

func TestSimulate_EmptyDir(t *testing.T) {
	out, _, err := execute(t, "simulate", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestSimulate_MissingPath(t *testing.T) {
	_, _, err := execute(t, "simulate", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
