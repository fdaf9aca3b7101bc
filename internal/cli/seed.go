package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/listsync/internal/item"
	"github.com/roach88/listsync/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Database string
	ListID   string
	Count    int
	Title    string
}

// SeedResult reports what seed created.
type SeedResult struct {
	ListID  string  `json:"list_id"`
	Created int     `json:"created"`
	FirstID item.ID `json:"first_id,omitempty"`
	LastID  item.ID `json:"last_id,omitempty"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create items in a SQLite list backend",
		Long: `Create numbered items in a list. Each write is recorded in the event log,
so a running server pushes them to subscribed sessions.

Example:
  listsync seed --db ./listsync.db --list inbox --count 500
  listsync seed --db ./listsync.db --list inbox --count 3 --title "ticket"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.ListID, "list", "inbox", "list to add items to")
	cmd.Flags().IntVar(&opts.Count, "count", 100, "number of items to create")
	cmd.Flags().StringVar(&opts.Title, "title", "item", "title prefix for created items")

	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
	out := opts.printer(cmd)
	if opts.Count <= 0 {
		return out.Failure(NewExitError(ExitCommandError, fmt.Sprintf("count must be positive, got %d", opts.Count)))
	}
	if opts.ListID == "" {
		return out.Failure(NewExitError(ExitCommandError, "list is required"))
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return out.Failure(err)
	}
	dbPath := firstNonEmpty(opts.Database, cfg.Server.DB)

	st, err := store.Open(dbPath)
	if err != nil {
		return out.Failure(WrapExitError(ExitCommandError, "failed to open database", err))
	}
	defer st.Close()

	ctx := commandContext(cmd)
	result := SeedResult{ListID: opts.ListID}
	for i := 0; i < opts.Count; i++ {
		it, err := st.Create(ctx, opts.ListID, item.Fields{
			"title": fmt.Sprintf("%s %d", opts.Title, i+1),
		})
		if err != nil {
			return out.Failure(WrapExitError(ExitFailure, fmt.Sprintf("create item %d of %d", i+1, opts.Count), err))
		}
		if result.FirstID == 0 {
			result.FirstID = it.ID
		}
		result.LastID = it.ID
		result.Created++
		out.VerboseLog("created %d", it.ID)
	}

	return out.Result(result, func(w io.Writer) {
		fmt.Fprintf(w, "Created %d items in %s (ids %d-%d)\n", result.Created, result.ListID, result.FirstID, result.LastID)
	})
}
