package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/listsync/internal/anchor"
	"github.com/roach88/listsync/internal/item"
)

// AnchorOptions holds flags shared by the anchor subcommands.
type AnchorOptions struct {
	*RootOptions
	StorePath string
	ListID    string
}

// AnchorEntry is one persisted anchor.
type AnchorEntry struct {
	ListID string  `json:"list_id"`
	ID     item.ID `json:"id,omitempty"`
	Found  bool    `json:"found"`
}

// NewAnchorCommand creates the anchor command and its subcommands.
func NewAnchorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnchorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "anchor",
		Short: "Inspect and edit persisted list anchors",
		Long: `Inspect and edit the bbolt file holding each list's remembered boundary
item. A session resumes near that item on its next load.

Examples:
  listsync anchor get --store ./anchors.db --list inbox
  listsync anchor set --store ./anchors.db --list inbox 42
  listsync anchor clear --store ./anchors.db --list inbox
  listsync anchor list --store ./anchors.db`,
	}

	cmd.PersistentFlags().StringVar(&opts.StorePath, "store", "", "path to the anchor store (default from config)")
	cmd.PersistentFlags().StringVar(&opts.ListID, "list", "inbox", "list id")

	cmd.AddCommand(&cobra.Command{
		Use:           "get",
		Short:         "Print the anchor of a list",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAnchorStore(opts, cmd, func(st *anchor.BoltStore) error {
				id, ok, err := st.Get(commandContext(cmd), opts.ListID)
				if err != nil {
					return err
				}
				entry := AnchorEntry{ListID: opts.ListID, ID: id, Found: ok}
				return opts.printer(cmd).Result(entry, func(w io.Writer) {
					if !ok {
						fmt.Fprintf(w, "%s: no anchor\n", opts.ListID)
						return
					}
					fmt.Fprintf(w, "%s: %d\n", opts.ListID, id)
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "set <id>",
		Short:         "Persist an anchor for a list",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := item.ParseID(args[0])
			if err != nil || id <= 0 {
				return opts.printer(cmd).Failure(NewExitError(ExitCommandError, fmt.Sprintf("invalid item id %q", args[0])))
			}
			return withAnchorStore(opts, cmd, func(st *anchor.BoltStore) error {
				if err := st.Set(commandContext(cmd), opts.ListID, id); err != nil {
					return err
				}
				entry := AnchorEntry{ListID: opts.ListID, ID: id, Found: true}
				return opts.printer(cmd).Result(entry, func(w io.Writer) {
					fmt.Fprintf(w, "%s: anchor set to %d\n", opts.ListID, id)
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "clear",
		Short:         "Forget the anchor of a list",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAnchorStore(opts, cmd, func(st *anchor.BoltStore) error {
				if err := st.Clear(commandContext(cmd), opts.ListID); err != nil {
					return err
				}
				return opts.printer(cmd).Result(AnchorEntry{ListID: opts.ListID}, func(w io.Writer) {
					fmt.Fprintf(w, "%s: anchor cleared\n", opts.ListID)
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "Print every persisted anchor",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAnchorStore(opts, cmd, func(st *anchor.BoltStore) error {
				all, err := st.List(commandContext(cmd))
				if err != nil {
					return err
				}
				entries := make([]AnchorEntry, 0, len(all))
				for listID, id := range all {
					entries = append(entries, AnchorEntry{ListID: listID, ID: id, Found: true})
				}
				sort.Slice(entries, func(i, j int) bool { return entries[i].ListID < entries[j].ListID })
				return opts.printer(cmd).Result(entries, func(w io.Writer) {
					if len(entries) == 0 {
						fmt.Fprintln(w, "No anchors.")
						return
					}
					for _, e := range entries {
						fmt.Fprintf(w, "%s: %d\n", e.ListID, e.ID)
					}
				})
			})
		},
	})

	return cmd
}

// withAnchorStore opens the store named by --store or the config, runs fn
// and closes it.
func withAnchorStore(opts *AnchorOptions, cmd *cobra.Command, fn func(*anchor.BoltStore) error) error {
	out := opts.printer(cmd)
	cfg, err := opts.loadConfig()
	if err != nil {
		return out.Failure(err)
	}
	path := firstNonEmpty(opts.StorePath, cfg.Anchors.Path)
	if path == "" {
		return out.Failure(NewExitError(ExitCommandError, "anchor store path required: pass --store or set anchors.path"))
	}

	st, err := anchor.OpenBolt(path)
	if err != nil {
		return out.Failure(WrapExitError(ExitCommandError, "failed to open anchor store", err))
	}
	defer st.Close()

	if err := fn(st); err != nil {
		return out.Failure(WrapExitError(ExitFailure, "anchor store", err))
	}
	return nil
}
