package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile config schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Config"))
	})
	return schemaCtx, schemaDef, schemaErr
}

// validateSchema unifies the settings with #Config and requires every
// field to end up concrete.
func validateSchema(c Config) error {
	ctx, def, err := loadSchema()
	if err != nil {
		return err
	}
	v := def.Unify(ctx.Encode(c.schemaView()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &SchemaError{Problems: problems(err)}
	}
	return nil
}

// SchemaError lists every schema violation.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

func problems(err error) []string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}

// schemaView is the shape #Config constrains.
func (c Config) schemaView() map[string]any {
	return map[string]any{
		"list": map[string]any{
			"page_size":            c.List.PageSize,
			"max_items":            c.List.MaxItems,
			"reduce_to":            c.List.ReduceTo,
			"initial_direction":    c.List.InitialDirection,
			"direction_samples":    c.List.DirectionSamples,
			"trigger_debounce_ms":  c.List.TriggerDebounce.millis(),
			"observer_delay_ms":    c.List.ObserverDelay.millis(),
			"cap_delay_ms":         c.List.CapDelay.millis(),
			"evict_before_restore": c.List.EvictBeforeRestore,
			"anchor_retries":       c.List.AnchorRetries,
			"dedupe_window":        c.List.DedupeWindow,
			"filter":               c.List.Filter,
		},
		"pager": map[string]any{
			"enabled":      c.Pager.Enabled,
			"page_size":    c.Pager.PageSize,
			"newest_first": c.Pager.NewestFirst,
		},
		"subscribe": map[string]any{
			"live":                   c.Subscribe.Live,
			"reconnect_delay_ms":     c.Subscribe.ReconnectDelay.millis(),
			"reconnect_max_delay_ms": c.Subscribe.ReconnectMaxDelay.millis(),
		},
		"server": map[string]any{
			"addr":         c.Server.Addr,
			"db":           c.Server.DB,
			"heartbeat_ms": c.Server.Heartbeat.millis(),
		},
		"anchors": map[string]any{
			"path": c.Anchors.Path,
		},
	}
}
