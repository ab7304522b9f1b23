package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/learnsync/internal/engine"
	"github.com/roach88/learnsync/internal/model"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Policy        string
	RetryAttempts int
	RetryDelay    string
	Force         bool
}

// resultView renders a sync result.
type resultView model.SyncResult

// WriteText renders the result for humans.
func (r resultView) WriteText(w io.Writer) error {
	status := "ok"
	if !r.Success {
		status = "incomplete"
	}
	fmt.Fprintf(w, "Sync %s: %d synced, %d conflicts, %d errors (%dms)\n",
		status, r.SyncedItems, len(r.Conflicts), len(r.Errors), r.DurationMS)
	for _, c := range r.Conflicts {
		state := "open"
		if c.Resolved {
			state = "resolved"
		}
		fmt.Fprintf(w, "  conflict %s item %s (%s, %s)\n", c.ID, c.ItemID, c.Resolution, state)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
	return nil
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation cycle",
		Long: `Push every queued item to the remote, resolving conflicts with the given
policy. Failed items are retried with exponential backoff and stay queued once
their retry budget is spent.

Exit code 1 means the cycle finished with item errors.

Example:
  learnsync sync --policy local
  learnsync sync --retry-attempts 5 --retry-delay 250ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Policy, "policy", "", "conflict policy (local|remote|merge|manual, default from config)")
	cmd.Flags().IntVar(&opts.RetryAttempts, "retry-attempts", 0, "retry budget per item (default from config)")
	cmd.Flags().StringVar(&opts.RetryDelay, "retry-delay", "", "first backoff delay, e.g. 1s or 1000 (ms)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "run even if another cycle is in progress")

	return cmd
}

func runSync(cmd *cobra.Command, opts *SyncOptions) error {
	sess, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer sess.Close()

	so := engine.SyncOptions{
		ForceSync:     opts.Force,
		RetryAttempts: opts.RetryAttempts,
	}
	if opts.Policy != "" {
		p, err := model.ParsePolicy(opts.Policy)
		if err != nil {
			return sess.out.Fail(ExitCommandError, "invalid policy", err)
		}
		so.ResolveConflicts = p
	}
	if opts.RetryDelay != "" {
		d, err := parseDuration(opts.RetryDelay)
		if err != nil {
			return sess.out.Fail(ExitCommandError, "invalid retry delay", err)
		}
		if d == 0 {
			d = -1
		}
		so.RetryDelay = d
	}

	res, err := sess.svc.SyncData(cmd.Context(), so)
	if err != nil {
		return sess.out.Fail(ExitFailure, "sync failed", err)
	}

	if err := sess.out.Success(resultView(res)); err != nil {
		return err
	}
	if !res.Success {
		return NewExitError(ExitFailure, fmt.Sprintf("sync finished with %d error(s)", len(res.Errors)))
	}
	return nil
}
