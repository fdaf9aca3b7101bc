package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/listsync/internal/anchor"
	"github.com/roach88/listsync/internal/engine"
	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/session"
	"github.com/roach88/listsync/internal/transport"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Server   string
	ListID   string
	Hash     string
	Duration time.Duration
	NoLive   bool
}

// Snapshot is one committed window as printed by watch.
type Snapshot struct {
	Revision      int64     `json:"revision"`
	Items         []item.ID `json:"items"`
	Direction     string    `json:"direction"`
	ReachedTop    bool      `json:"reached_top"`
	ReachedBottom bool      `json:"reached_bottom"`
	Error         string    `json:"error,omitempty"`
}

func snapshotOf(st engine.State) Snapshot {
	s := Snapshot{
		Revision:      st.Revision,
		Items:         st.IDs(),
		Direction:     st.Direction.String(),
		ReachedTop:    st.ReachedTop,
		ReachedBottom: st.ReachedBottom,
	}
	if st.Err != nil {
		s.Error = st.Err.Error()
	}
	return s
}

func (s Snapshot) String() string {
	line := fmt.Sprintf("r%d %s %v top=%t bottom=%t", s.Revision, s.Direction, s.Items, s.ReachedTop, s.ReachedBottom)
	if s.Error != "" {
		line += " error=" + s.Error
	}
	return line
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a list through a headless session",
		Long: `Open a session against a running server, load the list around its
anchor and print every committed window as live events arrive.

Example:
  listsync watch --server http://127.0.0.1:7777 --list inbox
  listsync watch --list inbox --hash '#item-42' --for 30s --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Server, "server", "", "server base URL (default http://<server.addr>)")
	cmd.Flags().StringVar(&opts.ListID, "list", "inbox", "list to watch")
	cmd.Flags().StringVar(&opts.Hash, "hash", "", "deep-link fragment to load around, e.g. #item-42")
	cmd.Flags().DurationVar(&opts.Duration, "for", 0, "stop after this long (default: until interrupted)")
	cmd.Flags().BoolVar(&opts.NoLive, "no-live", false, "load once without subscribing to events")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	out := opts.printer(cmd)
	cfg, err := opts.loadConfig()
	if err != nil {
		return out.Failure(err)
	}
	listCfg, err := cfg.EngineConfig()
	if err != nil {
		return out.Failure(WrapExitError(ExitCommandError, "invalid list config", err))
	}
	logger := opts.logger(cmd.ErrOrStderr())

	baseURL := opts.Server
	if baseURL == "" {
		baseURL = "http://" + cfg.Server.Addr
	}
	baseURL = strings.TrimRight(baseURL, "/")

	var anchors anchor.Store
	if cfg.Anchors.Path != "" {
		bolt, err := anchor.OpenBolt(cfg.Anchors.Path)
		if err != nil {
			return out.Failure(WrapExitError(ExitCommandError, "failed to open anchor store", err))
		}
		defer bolt.Close()
		anchors = bolt
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	// Commits arrive on the session loop; printing there keeps them in order.
	// The reset commit made while closing is not a window worth printing.
	var closing atomic.Bool
	view := engine.NewHeadlessViewport(func(st engine.State) {
		if closing.Load() {
			return
		}
		snap := snapshotOf(st)
		if err := out.Event(snap, snap.String()); err != nil {
			logger.Warn("write snapshot failed", "error", err)
		}
	})

	sess, err := session.Start(ctx, session.Options{
		ListID:    opts.ListID,
		Backend:   transport.NewClient(baseURL, transport.WithClientLogger(logger)),
		Viewport:  view,
		Anchors:   anchors,
		Hash:      anchor.FragmentHash(opts.Hash),
		List:      listCfg,
		Subscribe: cfg.SubscribeConfig(),
		Live:      cfg.Subscribe.Live && !opts.NoLive,
		Logger:    logger,
	})
	if sess == nil {
		return out.Failure(WrapExitError(ExitCommandError, "failed to start session", err))
	}
	if err == nil {
		out.VerboseLog("watching %s on %s", opts.ListID, baseURL)
		<-ctx.Done()
	}

	closing.Store(true)
	if closeErr := sess.Close(); closeErr != nil {
		return out.Failure(WrapExitError(ExitFailure, "failed to close session", closeErr))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return out.Failure(WrapExitError(ExitFailure, "initial load failed", err))
	}
	return nil
}
