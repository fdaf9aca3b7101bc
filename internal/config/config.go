// Package config loads listsync settings from a YAML or TOML file.
//
// A file only needs the keys it changes; everything else keeps the value
// from Default. The merged result is checked against an embedded CUE
// schema before it is converted to component configurations.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/roach88/listsync/internal/engine"
	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/pager"
	"github.com/roach88/listsync/internal/subscribe"
	"github.com/roach88/listsync/internal/transport"
)

// DefaultAddr is the address serve listens on and watch connects to.
const DefaultAddr = "127.0.0.1:7777"

// Config is the file layout.
type Config struct {
	List      ListConfig      `yaml:"list" toml:"list"`
	Pager     PagerConfig     `yaml:"pager" toml:"pager"`
	Subscribe SubscribeConfig `yaml:"subscribe" toml:"subscribe"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Anchors   AnchorsConfig   `yaml:"anchors" toml:"anchors"`
}

// ListConfig mirrors engine.Config.
type ListConfig struct {
	PageSize           int      `yaml:"page_size" toml:"page_size"`
	MaxItems           int      `yaml:"max_items" toml:"max_items"`
	ReduceTo           int      `yaml:"reduce_to" toml:"reduce_to"`
	InitialDirection   string   `yaml:"initial_direction" toml:"initial_direction"`
	DirectionSamples   int      `yaml:"direction_samples" toml:"direction_samples"`
	TriggerDebounce    Duration `yaml:"trigger_debounce" toml:"trigger_debounce"`
	ObserverDelay      Duration `yaml:"observer_delay" toml:"observer_delay"`
	CapDelay           Duration `yaml:"cap_delay" toml:"cap_delay"`
	EvictBeforeRestore bool     `yaml:"evict_before_restore" toml:"evict_before_restore"`
	AnchorRetries      int      `yaml:"anchor_retries" toml:"anchor_retries"`
	DedupeWindow       int      `yaml:"dedupe_window" toml:"dedupe_window"`
	Filter             string   `yaml:"filter" toml:"filter"`
}

// PagerConfig enables and sizes the numbered-page dialog.
type PagerConfig struct {
	Enabled     bool `yaml:"enabled" toml:"enabled"`
	PageSize    int  `yaml:"page_size" toml:"page_size"`
	NewestFirst bool `yaml:"newest_first" toml:"newest_first"`
}

// SubscribeConfig controls the live event stream.
type SubscribeConfig struct {
	Live              bool     `yaml:"live" toml:"live"`
	ReconnectDelay    Duration `yaml:"reconnect_delay" toml:"reconnect_delay"`
	ReconnectMaxDelay Duration `yaml:"reconnect_max_delay" toml:"reconnect_max_delay"`
}

// ServerConfig is used by serve, and Addr by watch.
type ServerConfig struct {
	Addr      string   `yaml:"addr" toml:"addr"`
	DB        string   `yaml:"db" toml:"db"`
	Heartbeat Duration `yaml:"heartbeat" toml:"heartbeat"`
}

// AnchorsConfig locates the persisted anchor store. An empty path keeps
// anchors in memory.
type AnchorsConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// Default returns the built-in settings.
func Default() Config {
	ec := engine.DefaultConfig()
	sc := subscribe.DefaultConfig()
	return Config{
		List: ListConfig{
			PageSize:           ec.PageSize,
			MaxItems:           ec.MaxItems,
			ReduceTo:           ec.ReduceTo,
			InitialDirection:   ec.InitialDirection.String(),
			DirectionSamples:   ec.DirectionSamples,
			TriggerDebounce:    Duration(ec.TriggerDebounce),
			ObserverDelay:      Duration(ec.ObserverDelay),
			CapDelay:           Duration(ec.CapDelay),
			EvictBeforeRestore: ec.EvictBeforeRestore,
			AnchorRetries:      ec.AnchorRetries,
			DedupeWindow:       ec.DedupeWindow,
		},
		Pager: PagerConfig{
			PageSize:    pager.DefaultPageSize,
			NewestFirst: true,
		},
		Subscribe: SubscribeConfig{
			Live:              true,
			ReconnectDelay:    Duration(sc.ReconnectDelay),
			ReconnectMaxDelay: Duration(sc.ReconnectMaxDelay),
		},
		Server: ServerConfig{
			Addr:      DefaultAddr,
			DB:        "listsync.db",
			Heartbeat: Duration(transport.DefaultHeartbeat),
		},
	}
}

// Load reads path over the defaults and validates the result. The format
// follows the extension: .yaml, .yml or .toml. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := decode(path, data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		return dec.Decode(cfg)
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
}

// Validate checks the settings against the schema and then against the
// component validators.
func (c Config) Validate() error {
	if err := validateSchema(c); err != nil {
		return err
	}
	ec, err := c.EngineConfig()
	if err != nil {
		return err
	}
	if err := ec.Validate(); err != nil {
		return fmt.Errorf("list: %w", err)
	}
	if err := c.SubscribeConfig().Validate(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// EngineConfig converts the list section.
func (c Config) EngineConfig() (engine.Config, error) {
	dir, err := item.ParseEnd(c.List.InitialDirection)
	if err != nil {
		return engine.Config{}, fmt.Errorf("list: %w", err)
	}
	return engine.Config{
		PageSize:           c.List.PageSize,
		MaxItems:           c.List.MaxItems,
		ReduceTo:           c.List.ReduceTo,
		InitialDirection:   dir,
		DirectionSamples:   c.List.DirectionSamples,
		TriggerDebounce:    c.List.TriggerDebounce.D(),
		ObserverDelay:      c.List.ObserverDelay.D(),
		CapDelay:           c.List.CapDelay.D(),
		EvictBeforeRestore: c.List.EvictBeforeRestore,
		AnchorRetries:      c.List.AnchorRetries,
		DedupeWindow:       c.List.DedupeWindow,
		Filter:             item.Filter(c.List.Filter),
	}, nil
}

// PagerConfig converts the pager section. It returns nil when the dialog
// is disabled.
func (c Config) PagerConfig() *pager.Config {
	if !c.Pager.Enabled {
		return nil
	}
	return &pager.Config{PageSize: c.Pager.PageSize, NewestFirst: c.Pager.NewestFirst}
}

// SubscribeConfig converts the subscribe section.
func (c Config) SubscribeConfig() subscribe.Config {
	return subscribe.Config{
		ReconnectDelay:    c.Subscribe.ReconnectDelay.D(),
		ReconnectMaxDelay: c.Subscribe.ReconnectMaxDelay.D(),
	}
}

// ErrUnknownFormat is returned by Write for unsupported extensions.
var ErrUnknownFormat = errors.New("unknown config format")

// Write saves c to path in the format its extension names.
func Write(path string, c Config) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".toml":
		data, err = toml.Marshal(c)
	default:
		return fmt.Errorf("write %s: %w", path, ErrUnknownFormat)
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
