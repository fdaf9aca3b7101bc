package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/listsync/internal/item"
)

// DefaultListID is the list a scenario runs against when it names none.
const DefaultListID = "inbox"

// Scenario is one scripted run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario demonstrates.
	Description string `yaml:"description"`

	// ListID is the list under test. Defaults to DefaultListID.
	ListID string `yaml:"list_id,omitempty"`

	// List overrides engine defaults.
	List ListSettings `yaml:"list,omitempty"`

	// Seed fills the backend before the flow without recording events.
	Seed Seed `yaml:"seed,omitempty"`

	// Hash is a deep-link anchor present when the list mounts.
	Hash *int64 `yaml:"hash,omitempty"`

	// Persisted is an anchor already saved for the list.
	Persisted *int64 `yaml:"persisted,omitempty"`

	// Pager enables the numbered-page cache.
	Pager *PagerSettings `yaml:"pager,omitempty"`

	// Flow is the ordered list of steps.
	Flow []FlowStep `yaml:"flow"`

	// Assertions are checked after the flow.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ListSettings are the engine options a scenario may change. Zero values
// keep the engine defaults.
type ListSettings struct {
	PageSize           int    `yaml:"page_size,omitempty"`
	MaxItems           int    `yaml:"max_items,omitempty"`
	ReduceTo           int    `yaml:"reduce_to,omitempty"`
	InitialDirection   string `yaml:"initial_direction,omitempty"`
	DirectionSamples   int    `yaml:"direction_samples,omitempty"`
	TriggerDebounce    string `yaml:"trigger_debounce,omitempty"`
	ObserverDelay      string `yaml:"observer_delay,omitempty"`
	CapDelay           string `yaml:"cap_delay,omitempty"`
	EvictBeforeRestore *bool  `yaml:"evict_before_restore,omitempty"`
	AnchorRetries      *int   `yaml:"anchor_retries,omitempty"`
	Filter             string `yaml:"filter,omitempty"`
}

// PagerSettings configure the numbered-page cache.
type PagerSettings struct {
	PageSize    int  `yaml:"page_size"`
	NewestFirst bool `yaml:"newest_first"`
}

// Seed describes the initial backend contents: ids From..To in the
// scenario's list, plus any explicit Items.
type Seed struct {
	From  int64      `yaml:"from,omitempty"`
	To    int64      `yaml:"to,omitempty"`
	Items []SeedItem `yaml:"items,omitempty"`
}

// SeedItem is one explicitly seeded item.
type SeedItem struct {
	ID     int64          `yaml:"id"`
	ListID string         `yaml:"list_id,omitempty"`
	Fields map[string]any `yaml:"fields,omitempty"`
}

// FlowStep is one operation.
type FlowStep struct {
	// Invoke names the operation (see the Op constants).
	Invoke string `yaml:"invoke"`

	// Args are the operation's arguments.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect is checked right after the step. Nil checks nothing.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is a subset check on the state after a step. Only the fields
// that are set are compared.
type Expect struct {
	Window        []int64 `yaml:"window,omitempty"`
	Direction     string  `yaml:"direction,omitempty"`
	ReachedTop    *bool   `yaml:"reached_top,omitempty"`
	ReachedBottom *bool   `yaml:"reached_bottom,omitempty"`
	Outcome       string  `yaml:"outcome,omitempty"`
	Error         *bool   `yaml:"error,omitempty"`
	Page          int     `yaml:"page,omitempty"`
	PageItems     []int64 `yaml:"page_items,omitempty"`
	Count         *int    `yaml:"count,omitempty"`
}

// Assertion validates the final state or the trace.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	// Op is the operation name (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Count is the expected occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Ops is the expected order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Window is the expected final window (window).
	Window []int64 `yaml:"window,omitempty"`

	// Items are the expected final page items (page).
	Items []int64 `yaml:"items,omitempty"`

	// Max bounds the final window length (window_max).
	Max int `yaml:"max,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertWindow        = "window"
	AssertWindowMax     = "window_max"
	AssertNoDuplicates  = "no_duplicates"
	AssertPage          = "page"
)

// Operations a flow step may invoke.
const (
	OpInitialLoad = "initial_load"
	OpLoadTop     = "load_top"
	OpLoadBottom  = "load_bottom"
	OpReload      = "reload"
	OpReset       = "reset"
	OpNavigate    = "navigate"
	OpScroll      = "scroll"
	OpSentinel    = "sentinel"
	OpBoundary    = "boundary"
	OpAdvance     = "advance"
	OpFailFetches = "fail_fetches"
	OpCreate      = "create"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpDeliver     = "deliver"
	OpRedeliver   = "redeliver"
	OpShowPages   = "show_pages"
	OpShowPagesAt = "show_pages_at"
	OpSetPage     = "set_page"
	OpHidePages   = "hide_pages"
)

var knownOps = map[string]bool{
	OpInitialLoad: true, OpLoadTop: true, OpLoadBottom: true, OpReload: true,
	OpReset: true, OpNavigate: true, OpScroll: true, OpSentinel: true,
	OpBoundary: true, OpAdvance: true, OpFailFetches: true, OpCreate: true,
	OpUpdate: true, OpDelete: true, OpDeliver: true, OpRedeliver: true,
	OpShowPages: true, OpShowPagesAt: true, OpSetPage: true, OpHidePages: true,
}

var pagerOps = map[string]bool{
	OpShowPages: true, OpShowPagesAt: true, OpSetPage: true, OpHidePages: true,
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if s.Seed.From > s.Seed.To {
		return fmt.Errorf("seed: from (%d) is after to (%d)", s.Seed.From, s.Seed.To)
	}
	if s.Seed.From < 0 || (s.Seed.To > 0 && s.Seed.From == 0) {
		return fmt.Errorf("seed: ids start at 1")
	}
	if s.List.InitialDirection != "" {
		if _, err := item.ParseEnd(s.List.InitialDirection); err != nil {
			return fmt.Errorf("list: %w", err)
		}
	}
	if s.Pager != nil && s.Pager.PageSize <= 0 {
		return fmt.Errorf("pager: page_size must be positive")
	}

	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		if !knownOps[step.Invoke] {
			return fmt.Errorf("flow[%d]: unknown operation %q", i, step.Invoke)
		}
		if pagerOps[step.Invoke] && s.Pager == nil {
			return fmt.Errorf("flow[%d]: %s needs a pager section", i, step.Invoke)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertWindowMax:
		if a.Max <= 0 {
			return fmt.Errorf("assertions[%d]: max must be positive for window_max", index)
		}
	case AssertWindow, AssertNoDuplicates, AssertPage:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
