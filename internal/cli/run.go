package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Interval string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync loop in the foreground",
		Long: `Start the single-writer sync loop and request a cycle every interval
until interrupted.

Example:
  learnsync run --interval 30s
  learnsync run --db ./learn.db --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Interval, "interval", "", "time between scheduled cycles (default from config, 0 disables)")

	return cmd
}

func runLoop(cmd *cobra.Command, opts *RunOptions) error {
	sess, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer sess.Close()

	interval := sess.cfg.Sync.Interval
	if opts.Interval != "" {
		interval, err = parseDuration(opts.Interval)
		if err != nil {
			return sess.out.Fail(ExitCommandError, "invalid interval", err)
		}
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("sync loop starting", "db", sess.cfg.Store.Path, "interval", interval)
	fmt.Fprintln(cmd.OutOrStdout(), "Sync loop started. Press Ctrl-C to stop.")

	if err := sess.svc.Serve(ctx, interval); err != nil {
		return WrapExitError(ExitFailure, "sync loop error", err)
	}

	slog.Info("sync loop stopped gracefully")
	return nil
}
