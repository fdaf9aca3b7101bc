package harness

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
	EventCommit     = "commit"
	EventScroll     = "scroll"
	EventPage       = "page"
)

// TraceEvent is one entry of a scenario trace. Which fields are set
// depends on Type.
type TraceEvent struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq"`

	// Op and Args describe an invocation; Op and Outcome its completion.
	Op      string         `json:"op,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Outcome string         `json:"outcome,omitempty"`
	Error   string         `json:"error,omitempty"`

	// Commit and page snapshots.
	Revision      int64   `json:"revision,omitempty"`
	Items         []int64 `json:"items,omitempty"`
	Direction     string  `json:"direction,omitempty"`
	ReachedTop    bool    `json:"reached_top,omitempty"`
	ReachedBottom bool    `json:"reached_bottom,omitempty"`
	Cycle         string  `json:"cycle,omitempty"`
	Page          int     `json:"page,omitempty"`
	PagesCount    int     `json:"pages_count,omitempty"`
	Count         int     `json:"count,omitempty"`
	Open          bool    `json:"open,omitempty"`

	// Scroll restores.
	ID    int64  `json:"id,omitempty"`
	Edge  string `json:"edge,omitempty"`
	Found bool   `json:"found,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every invocation, completion, commit, restore and page
	// change in order.
	Trace []TraceEvent `json:"trace"`

	// Errors lists failed checks.
	Errors []string `json:"errors,omitempty"`

	// Window is the final list window.
	Window []int64 `json:"window"`

	// Page is the final numbered page, when the scenario has a pager.
	Page []int64 `json:"page,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed check and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
