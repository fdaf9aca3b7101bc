package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/listsync/internal/anchor"
	"github.com/roach88/listsync/internal/engine"
	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/pager"
	"github.com/roach88/listsync/internal/store"
	"github.com/roach88/listsync/internal/testutil"
)

// errInjected is returned by fetches a fail_fetches step broke.
var errInjected = errors.New("injected fetch failure")

// Harness executes one scenario.
//
// Everything runs on the caller's goroutine: the list engine, the page
// cache and the manual scheduler's timer callbacks. That matches the
// single-goroutine contract the session loop gives them in production.
type Harness struct {
	scenario *Scenario
	listID   string
	logger   *slog.Logger

	backend *store.Memory
	anchors *anchor.MemoryStore
	sched   *testutil.ManualScheduler
	seq     *testutil.Sequence
	list    *engine.List
	pages   *pager.Cache
	result  *Result

	failFetches int
	cursor      map[string]int64
	lastEvent   *item.Event
}

// Option configures Run.
type Option func(*Harness)

// WithLogger routes engine logs to l. Default: discarded.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// Run executes a scenario in a fresh in-memory backend and returns its
// trace. An error means the scenario could not be set up; failed checks
// are reported in the Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		scenario: scenario,
		listID:   scenario.ListID,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		backend:  store.NewMemory(),
		anchors:  anchor.NewMemoryStore(),
		sched:    testutil.NewManualScheduler(),
		seq:      testutil.NewSequence(),
		result:   NewResult(),
		cursor:   make(map[string]int64),
	}
	if h.listID == "" {
		h.listID = DefaultListID
	}
	for _, opt := range opts {
		opt(h)
	}

	ctx := context.Background()
	if err := h.setup(ctx); err != nil {
		return nil, fmt.Errorf("failed to set up scenario: %w", err)
	}
	h.executeFlow(ctx)

	st := h.list.State()
	h.result.Window = ids64(st.IDs())
	if h.pages != nil {
		h.result.Page = ids64(h.pages.State().IDs())
	}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) setup(ctx context.Context) error {
	s := h.scenario
	for id := s.Seed.From; id > 0 && id <= s.Seed.To; id++ {
		h.backend.Seed(item.Item{ID: item.ID(id), ListID: h.listID, Fields: item.Fields{"n": id}})
	}
	for i, si := range s.Seed.Items {
		fields, err := item.NormalizeFields(si.Fields)
		if err != nil {
			return fmt.Errorf("seed item %d: %w", i, err)
		}
		listID := si.ListID
		if listID == "" {
			listID = h.listID
		}
		h.backend.Seed(item.Item{ID: item.ID(si.ID), ListID: listID, Fields: fields})
	}
	if s.Persisted != nil {
		if err := h.anchors.Set(ctx, h.listID, item.ID(*s.Persisted)); err != nil {
			return err
		}
	}

	cfg, err := s.List.engineConfig()
	if err != nil {
		return err
	}
	hash := anchor.NoHash()
	if s.Hash != nil {
		hash = anchor.StaticHash{ID: item.ID(*s.Hash), Valid: true}
	}
	fetcher := engine.FetcherFunc(func(ctx context.Context, req item.PageRequest) (item.Page, error) {
		if h.failFetches > 0 {
			h.failFetches--
			return item.Page{}, errInjected
		}
		return h.backend.FetchPage(ctx, req)
	})
	view := &traceViewport{HeadlessViewport: engine.NewHeadlessViewport(h.recordCommit), h: h}

	h.list, err = engine.New(cfg, engine.Capabilities{
		ListID:   h.listID,
		Fetcher:  fetcher,
		Viewport: view,
		Anchors:  h.anchors,
		Hash:     hash,
	},
		engine.WithLogger(h.logger),
		engine.WithScheduler(h.sched),
		engine.WithCycleTokens(engine.NewSequenceGenerator("cycle")),
	)
	if err != nil {
		return err
	}

	if s.Pager != nil {
		h.pages, err = pager.New(pager.Config{PageSize: s.Pager.PageSize, NewestFirst: s.Pager.NewestFirst}, h.backend,
			pager.WithLogger(h.logger),
			pager.WithOnChange(h.recordPage),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// executeFlow runs the steps in order. A failing step is recorded and the
// flow continues, so one trace shows every consequence.
func (h *Harness) executeFlow(ctx context.Context) {
	for i, step := range h.scenario.Flow {
		args, err := item.NormalizeFields(step.Args)
		if err != nil {
			h.result.AddError(fmt.Sprintf("flow[%d] %s: %v", i, step.Invoke, err))
			continue
		}
		h.result.add(TraceEvent{Type: EventInvocation, Seq: h.seq.Next(), Op: step.Invoke, Args: args})

		outcome, stepErr := h.execute(ctx, step.Invoke, args)

		comp := TraceEvent{Type: EventCompletion, Seq: h.seq.Next(), Op: step.Invoke, Outcome: outcome}
		if stepErr != nil {
			comp.Outcome = "error"
			comp.Error = stepErr.Error()
		}
		h.result.add(comp)

		h.logger.Info("flow step completed",
			"step", i,
			"op", step.Invoke,
			"outcome", comp.Outcome,
		)
		h.checkExpect(i, step, comp.Outcome, stepErr)
	}
}

func (h *Harness) execute(ctx context.Context, op string, args item.Fields) (string, error) {
	switch op {
	case OpInitialLoad:
		return "ok", h.list.InitialLoad(ctx)
	case OpLoadTop:
		return "ok", h.list.LoadTop(ctx)
	case OpLoadBottom:
		return "ok", h.list.LoadBottom(ctx)
	case OpReload:
		return "ok", h.list.ReloadItems(ctx)
	case OpReset:
		h.list.Reset()
		return "ok", nil

	case OpNavigate:
		id, ok, err := argInt(args, "id")
		if err != nil {
			return "", err
		}
		h.list.Navigate(anchor.StaticHash{ID: item.ID(id), Valid: ok})
		return "ok", nil

	case OpScroll:
		offsets, err := argInts(args, "offsets")
		if err != nil {
			return "", err
		}
		flipped := false
		for _, off := range offsets {
			if h.list.OnScroll(float64(off)) {
				flipped = true
			}
		}
		if flipped {
			return "flipped", nil
		}
		return "ok", nil

	case OpSentinel:
		end, err := argEnd(args, "end")
		if err != nil {
			return "", err
		}
		visible, _ := args["visible"].(bool)
		h.list.OnSentinel(end, visible)
		return "ok", nil

	case OpBoundary:
		id, ok, err := argInt(args, "id")
		if err != nil || !ok {
			return "", errOr(err, "boundary needs an id")
		}
		return "ok", h.list.OnBoundaryItem(ctx, item.ID(id))

	case OpAdvance:
		d, err := argDuration(args, "duration")
		if err != nil {
			return "", err
		}
		h.sched.Advance(d)
		return "ok", nil

	case OpFailFetches:
		n, ok, err := argInt(args, "count")
		if err != nil || !ok {
			return "", errOr(err, "fail_fetches needs a count")
		}
		h.failFetches = int(n)
		return "ok", nil

	case OpCreate, OpUpdate, OpDelete:
		return h.write(ctx, op, args)

	case OpDeliver:
		ev, err := h.eventFromArgs(args)
		if err != nil {
			return "", err
		}
		return h.deliver(ctx, ev)

	case OpRedeliver:
		if h.lastEvent == nil {
			return "", fmt.Errorf("nothing delivered yet")
		}
		return h.deliver(ctx, *h.lastEvent)

	case OpShowPages:
		filter, _ := args["filter"].(string)
		return "ok", h.pages.Show(ctx, pager.Params{ListID: h.listID, Filter: item.Filter(filter)})

	case OpShowPagesAt:
		id, ok, err := argInt(args, "id")
		if err != nil || !ok {
			return "", errOr(err, "show_pages_at needs an id")
		}
		filter, _ := args["filter"].(string)
		return "ok", h.pages.ShowAt(ctx, pager.Params{ListID: h.listID, Filter: item.Filter(filter)}, item.ID(id))

	case OpSetPage:
		n, ok, err := argInt(args, "page")
		if err != nil || !ok {
			return "", errOr(err, "set_page needs a page")
		}
		return "ok", h.pages.SetPage(ctx, int(n))

	case OpHidePages:
		h.pages.Hide()
		return "ok", nil
	}
	return "", fmt.Errorf("unknown operation %q", op)
}

// write changes the backend and delivers the events it produced.
func (h *Harness) write(ctx context.Context, op string, args item.Fields) (string, error) {
	listID := h.listID
	if s, ok := args["list_id"].(string); ok && s != "" {
		listID = s
	}
	fields, _ := args["fields"].(map[string]any)

	switch op {
	case OpCreate:
		id, ok, err := argInt(args, "id")
		if err != nil {
			return "", err
		}
		if ok {
			err = h.backend.Put(ctx, item.Item{ID: item.ID(id), ListID: listID, Fields: fields})
		} else {
			_, err = h.backend.Create(ctx, listID, fields)
		}
		if err != nil {
			return "", err
		}
	case OpUpdate:
		id, ok, err := argInt(args, "id")
		if err != nil || !ok {
			return "", errOr(err, "update needs an id")
		}
		if err := h.backend.Update(ctx, item.Item{ID: item.ID(id), Fields: fields}); err != nil {
			return "", err
		}
	case OpDelete:
		id, ok, err := argInt(args, "id")
		if err != nil || !ok {
			return "", errOr(err, "delete needs an id")
		}
		if err := h.backend.Delete(ctx, item.ID(id)); err != nil {
			return "", err
		}
	}

	events, err := h.backend.EventsSince(ctx, listID, h.cursor[listID], 0)
	if err != nil {
		return "", err
	}
	outcome := "ok"
	for _, ev := range events {
		h.cursor[listID] = ev.Seq
		if outcome, err = h.deliver(ctx, ev); err != nil {
			return "", err
		}
	}
	return outcome, nil
}

// deliver hands ev to the list and, when the dialog is open, to the page
// cache. The list's outcome is reported.
func (h *Harness) deliver(ctx context.Context, ev item.Event) (string, error) {
	h.lastEvent = &ev
	out, err := h.list.Apply(ctx, ev)
	if err != nil {
		return "", err
	}
	if h.pages != nil && h.pages.State().Open {
		if _, err := h.pages.Apply(ctx, ev); err != nil {
			return "", fmt.Errorf("page cache: %w", err)
		}
	}
	return out.String(), nil
}

func (h *Harness) eventFromArgs(args item.Fields) (item.Event, error) {
	kindStr, _ := args["kind"].(string)
	kind, err := item.ParseEventKind(kindStr)
	if err != nil {
		return item.Event{}, err
	}
	id, ok, err := argInt(args, "id")
	if err != nil || !ok {
		return item.Event{}, errOr(err, "deliver needs an id")
	}
	seq, _, err := argInt(args, "seq")
	if err != nil {
		return item.Event{}, err
	}
	listID := h.listID
	if s, ok := args["list_id"].(string); ok && s != "" {
		listID = s
	}
	fields, _ := args["fields"].(map[string]any)
	return item.Event{
		Seq:    seq,
		Kind:   kind,
		ListID: listID,
		Item:   item.Item{ID: item.ID(id), ListID: listID, Fields: fields},
	}, nil
}

func (h *Harness) recordCommit(st engine.State) {
	h.result.add(TraceEvent{
		Type:          EventCommit,
		Seq:           h.seq.Next(),
		Revision:      st.Revision,
		Items:         ids64(st.IDs()),
		Direction:     st.Direction.String(),
		ReachedTop:    st.ReachedTop,
		ReachedBottom: st.ReachedBottom,
		Cycle:         st.Cycle,
	})
}

func (h *Harness) recordPage(st pager.State) {
	h.result.add(TraceEvent{
		Type:       EventPage,
		Seq:        h.seq.Next(),
		Revision:   st.Revision,
		Items:      ids64(st.IDs()),
		Page:       st.Page,
		PagesCount: st.PagesCount,
		Count:      st.Count,
		Open:       st.Open,
	})
}

// traceViewport records scroll restores in the trace as they happen.
type traceViewport struct {
	*engine.HeadlessViewport
	h *Harness
}

func (v *traceViewport) ScrollTo(id item.ID, edge item.End) bool {
	found := v.HeadlessViewport.ScrollTo(id, edge)
	v.h.result.add(TraceEvent{
		Type:  EventScroll,
		Seq:   v.h.seq.Next(),
		ID:    int64(id),
		Edge:  edge.String(),
		Found: found,
	})
	return found
}

func (h *Harness) checkExpect(i int, step FlowStep, outcome string, stepErr error) {
	e := step.Expect
	if e == nil {
		if stepErr != nil {
			h.result.AddError(fmt.Sprintf("flow[%d] %s: unexpected error: %v", i, step.Invoke, stepErr))
		}
		return
	}
	fail := func(format string, args ...any) {
		h.result.AddError(fmt.Sprintf("flow[%d] %s: ", i, step.Invoke) + fmt.Sprintf(format, args...))
	}

	wantErr := e.Error != nil && *e.Error
	if stepErr != nil && !wantErr {
		fail("unexpected error: %v", stepErr)
	}
	if stepErr == nil && wantErr {
		fail("expected an error")
	}

	st := h.list.State()
	if e.Window != nil {
		if got := ids64(st.IDs()); !slices.Equal(got, e.Window) {
			fail("window = %v, want %v", got, e.Window)
		}
	}
	if e.Direction != "" && st.Direction.String() != e.Direction {
		fail("direction = %s, want %s", st.Direction, e.Direction)
	}
	if e.ReachedTop != nil && st.ReachedTop != *e.ReachedTop {
		fail("reached_top = %v, want %v", st.ReachedTop, *e.ReachedTop)
	}
	if e.ReachedBottom != nil && st.ReachedBottom != *e.ReachedBottom {
		fail("reached_bottom = %v, want %v", st.ReachedBottom, *e.ReachedBottom)
	}
	if e.Outcome != "" && outcome != e.Outcome {
		fail("outcome = %s, want %s", outcome, e.Outcome)
	}

	if e.Page == 0 && e.PageItems == nil && e.Count == nil {
		return
	}
	if h.pages == nil {
		fail("page expectations need a pager section")
		return
	}
	ps := h.pages.State()
	if e.Page != 0 && ps.Page != e.Page {
		fail("page = %d, want %d", ps.Page, e.Page)
	}
	if e.PageItems != nil {
		if got := ids64(ps.IDs()); !slices.Equal(got, e.PageItems) {
			fail("page items = %v, want %v", got, e.PageItems)
		}
	}
	if e.Count != nil && ps.Count != *e.Count {
		fail("count = %d, want %d", ps.Count, *e.Count)
	}
}

func (ls ListSettings) engineConfig() (engine.Config, error) {
	cfg := engine.DefaultConfig()
	if ls.PageSize > 0 {
		cfg.PageSize = ls.PageSize
	}
	if ls.MaxItems > 0 {
		cfg.MaxItems = ls.MaxItems
	}
	cfg.ReduceTo = ls.ReduceTo
	if ls.InitialDirection != "" {
		dir, err := item.ParseEnd(ls.InitialDirection)
		if err != nil {
			return cfg, err
		}
		cfg.InitialDirection = dir
	}
	if ls.DirectionSamples > 0 {
		cfg.DirectionSamples = ls.DirectionSamples
	}
	for _, d := range []struct {
		src string
		dst *time.Duration
	}{
		{ls.TriggerDebounce, &cfg.TriggerDebounce},
		{ls.ObserverDelay, &cfg.ObserverDelay},
		{ls.CapDelay, &cfg.CapDelay},
	} {
		if d.src == "" {
			continue
		}
		v, err := time.ParseDuration(d.src)
		if err != nil {
			return cfg, fmt.Errorf("list: %w", err)
		}
		*d.dst = v
	}
	if ls.EvictBeforeRestore != nil {
		cfg.EvictBeforeRestore = *ls.EvictBeforeRestore
	}
	if ls.AnchorRetries != nil {
		cfg.AnchorRetries = *ls.AnchorRetries
	}
	cfg.Filter = item.Filter(ls.Filter)
	return cfg, nil
}

func argInt(args item.Fields, key string) (int64, bool, error) {
	v, ok := args[key]
	if !ok {
		return 0, false, nil
	}
	n, ok := v.(int64)
	if !ok {
		return 0, false, fmt.Errorf("arg %q: want an integer, got %T", key, v)
	}
	return n, true, nil
}

func argInts(args item.Fields, key string) ([]int64, error) {
	raw, ok := args[key].([]any)
	if !ok {
		return nil, fmt.Errorf("arg %q: want a list of integers", key)
	}
	out := make([]int64, 0, len(raw))
	for i, v := range raw {
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("arg %q[%d]: want an integer, got %T", key, i, v)
		}
		out = append(out, n)
	}
	return out, nil
}

func argEnd(args item.Fields, key string) (item.End, error) {
	s, _ := args[key].(string)
	return item.ParseEnd(s)
}

func argDuration(args item.Fields, key string) (time.Duration, error) {
	s, _ := args[key].(string)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("arg %q: %w", key, err)
	}
	return d, nil
}

func errOr(err error, msg string) error {
	if err != nil {
		return err
	}
	return errors.New(msg)
}

func ids64(ids []item.ID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
