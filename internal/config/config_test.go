package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/listsync/internal/engine"
	"github.com/roach88/listsync/internal/item"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	ec, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultConfig(), ec)
	assert.Nil(t, cfg.PagerConfig())
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "listsync.yaml", `
list:
  page_size: 10
  max_items: 40
  initial_direction: bottom
  trigger_debounce: 350ms
  filter: tag=pinned
pager:
  enabled: true
  page_size: 25
subscribe:
  reconnect_delay: 1s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	ec, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, 10, ec.PageSize)
	assert.Equal(t, 40, ec.MaxItems)
	assert.Equal(t, item.Bottom, ec.InitialDirection)
	assert.Equal(t, 350*time.Millisecond, ec.TriggerDebounce)
	assert.Equal(t, item.Filter("tag=pinned"), ec.Filter)
	assert.Equal(t, engine.DefaultConfig().CapDelay, ec.CapDelay, "unset keys keep defaults")

	pc := cfg.PagerConfig()
	require.NotNil(t, pc)
	assert.Equal(t, 25, pc.PageSize)
	assert.True(t, pc.NewestFirst)

	assert.Equal(t, time.Second, cfg.SubscribeConfig().ReconnectDelay)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "listsync.toml", `
[list]
page_size = 5
max_items = 10
cap_delay = "20ms"

[server]
addr = "0.0.0.0:9000"
heartbeat = "5s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.List.PageSize)
	assert.Equal(t, 20*time.Millisecond, cfg.List.CapDelay.D())
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.Heartbeat.D())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown yaml key", "c.yaml", "list:\n  page_sise: 5\n"},
		{"unknown toml key", "c.toml", "[list]\npage_sise = 5\n"},
		{"bad duration", "c.yaml", "list:\n  cap_delay: soon\n"},
		{"unsupported format", "c.json", `{"list":{}}`},
		{"page size zero", "c.yaml", "list:\n  page_size: 0\n"},
		{"max below page size", "c.yaml", "list:\n  page_size: 50\n  max_items: 10\n"},
		{"bad direction", "c.yaml", "list:\n  initial_direction: left\n"},
		{"bad samples", "c.yaml", "list:\n  direction_samples: 5\n"},
		{"bad filter", "c.yaml", "list:\n  filter: nonsense\n"},
		{"reduce out of range", "c.yaml", "list:\n  reduce_to: 10\n"},
		{"backoff inverted", "c.yaml", "subscribe:\n  reconnect_delay: 10s\n  reconnect_max_delay: 1s\n"},
		{"empty addr", "c.toml", "[server]\naddr = \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_SchemaErrorListsProblems(t *testing.T) {
	cfg := Default()
	cfg.List.PageSize = -1
	cfg.Pager.PageSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.NotEmpty(t, schemaErr.Problems)
}

func TestWrite_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.List.PageSize = 7
	cfg.List.ObserverDelay = Duration(300 * time.Millisecond)
	cfg.Pager.Enabled = true

	for _, name := range []string{"out.yaml", "out.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, Write(path, cfg))
			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, got)
		})
	}

	assert.ErrorIs(t, Write(filepath.Join(t.TempDir(), "out.ini"), cfg), ErrUnknownFormat)
}
