// Package subscribe keeps a live event subscription for one list open,
// reconnecting with capped exponential backoff when the stream drops.
//
// The Manager is an explicit state machine:
//
//	Unsubscribed --Subscribe--> Subscribed --stream ends--> Reconnecting
//	Reconnecting --timer fires, connect ok--> Subscribed
//	any --Unsubscribe--> Unsubscribed
//
// There is at most one reconnect timer at a time.
package subscribe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/loop"
	"github.com/roach88/listsync/internal/metrics"
)

const (
	// DefaultReconnectDelay is the first backoff step.
	DefaultReconnectDelay = 500 * time.Millisecond

	// DefaultReconnectMaxDelay caps the backoff.
	DefaultReconnectMaxDelay = 30 * time.Second
)

// Source opens a live event stream for a list. The channel is closed
// when the stream ends for any reason.
type Source interface {
	Subscribe(ctx context.Context, listID string) (<-chan item.Event, error)
}

// ResumableSource can replay the events after a known sequence number
// before streaming live ones.
type ResumableSource interface {
	Source
	SubscribeFrom(ctx context.Context, listID string, afterSeq int64) (<-chan item.Event, error)
}

// Executor runs callbacks on the goroutine that owns the Manager.
type Executor interface {
	Post(fn func()) bool
}

// State is the subscription state.
type State int

const (
	Unsubscribed State = iota
	Subscribed
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Unsubscribed:
		return "unsubscribed"
	case Subscribed:
		return "subscribed"
	case Reconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the backoff tunables.
type Config struct {
	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration
}

// DefaultConfig returns the default backoff.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    DefaultReconnectDelay,
		ReconnectMaxDelay: DefaultReconnectMaxDelay,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive, got %s", c.ReconnectDelay)
	}
	if c.ReconnectMaxDelay < c.ReconnectDelay {
		return fmt.Errorf("reconnect max delay (%s) must be at least the reconnect delay (%s)",
			c.ReconnectMaxDelay, c.ReconnectDelay)
	}
	return nil
}

// Manager owns the subscription of one list.
//
// All methods, and the deliver callback, run on the executor's goroutine.
// Stream reads happen on a helper goroutine that only posts to the
// executor.
type Manager struct {
	cfg     Config
	src     Source
	exec    Executor
	sched   loop.Scheduler
	deliver func(item.Event)
	logger  *slog.Logger
	metrics *metrics.Metrics

	state      State
	listID     string
	lastSeq    int64
	attempt    int
	cancel     context.CancelFunc
	timer      loop.Timer
	generation uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics counts reconnect attempts.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// New creates an unsubscribed manager. sched must run its callbacks on
// exec's goroutine; a loop.Loop serves as both.
func New(cfg Config, src Source, exec Executor, sched loop.Scheduler, deliver func(item.Event), opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil || exec == nil || sched == nil || deliver == nil {
		return nil, fmt.Errorf("subscribe: source, executor, scheduler and deliver are required")
	}
	m := &Manager{
		cfg:     cfg,
		src:     src,
		exec:    exec,
		sched:   sched,
		deliver: deliver,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State returns the current state.
func (m *Manager) State() State { return m.state }

// ListID returns the subscribed list, or "".
func (m *Manager) ListID() string { return m.listID }

// LastSeq returns the sequence number of the last delivered event.
func (m *Manager) LastSeq() int64 { return m.lastSeq }

// Subscribe starts streaming listID, replacing any previous subscription.
func (m *Manager) Subscribe(listID string) {
	m.stop()
	m.listID = listID
	m.lastSeq = 0
	m.attempt = 0
	m.state = Subscribed
	m.logger.Info("subscribing", "list", listID)
	m.connect()
}

// Unsubscribe closes the stream and cancels any pending reconnect.
func (m *Manager) Unsubscribe() {
	if m.state == Unsubscribed {
		return
	}
	m.stop()
	m.state = Unsubscribed
	m.logger.Info("unsubscribed", "list", m.listID)
}

func (m *Manager) stop() {
	m.generation++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// connect opens the stream on a helper goroutine. Results come back
// through the executor tagged with the generation they belong to.
func (m *Manager) connect() {
	gen := m.generation
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	listID, after := m.listID, m.lastSeq

	go func() {
		var (
			ch  <-chan item.Event
			err error
		)
		if rs, ok := m.src.(ResumableSource); ok && after > 0 {
			ch, err = rs.SubscribeFrom(ctx, listID, after)
		} else {
			ch, err = m.src.Subscribe(ctx, listID)
		}
		if err != nil {
			m.exec.Post(func() { m.dropped(gen, err) })
			return
		}
		m.exec.Post(func() { m.connected(gen) })
		for ev := range ch {
			ev := ev
			m.exec.Post(func() { m.receive(gen, ev) })
		}
		m.exec.Post(func() { m.dropped(gen, nil) })
	}()
}

func (m *Manager) connected(gen uint64) {
	if gen != m.generation {
		return
	}
	if m.state == Reconnecting {
		m.logger.Info("subscription restored", "list", m.listID, "after_seq", m.lastSeq)
	}
	m.state = Subscribed
	m.attempt = 0
}

func (m *Manager) receive(gen uint64, ev item.Event) {
	if gen != m.generation {
		return
	}
	if ev.Seq > m.lastSeq {
		m.lastSeq = ev.Seq
	}
	m.deliver(ev)
}

// dropped moves to Reconnecting and arms the single backoff timer.
func (m *Manager) dropped(gen uint64, err error) {
	if gen != m.generation {
		return
	}
	m.generation++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state = Reconnecting
	m.attempt++
	delay := m.backoff()
	m.logger.Warn("subscription dropped",
		"list", m.listID,
		"attempt", m.attempt,
		"retry_in", delay,
		"error", err,
	)

	next := m.generation
	m.timer = m.sched.AfterFunc(delay, func() {
		if next != m.generation {
			return
		}
		m.timer = nil
		m.metrics.Reconnect()
		m.connect()
	})
}

// backoff doubles the delay per attempt up to the cap.
func (m *Manager) backoff() time.Duration {
	d := m.cfg.ReconnectDelay
	for i := 1; i < m.attempt; i++ {
		d *= 2
		if d >= m.cfg.ReconnectMaxDelay {
			return m.cfg.ReconnectMaxDelay
		}
	}
	return min(d, m.cfg.ReconnectMaxDelay)
}
