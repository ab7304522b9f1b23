package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/learnsync/internal/model"
)

// EnqueueOptions holds flags for the enqueue command.
type EnqueueOptions struct {
	*RootOptions
	Policy string
}

// itemView renders a queued item.
type itemView model.SyncItem

// WriteText renders the item for humans.
func (v itemView) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s  %-15s v%d  %s\n", v.ID, v.Type, v.Version, v.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	return err
}

// NewEnqueueCommand creates the enqueue command.
func NewEnqueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnqueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "enqueue <type> [payload-json]",
		Short: "Queue a local mutation for sync",
		Long: `Queue a local mutation for the next sync.

Types: progress, quiz_result, bookmark, note, course_progress.

Example:
  learnsync enqueue note '{"id":"n1","text":"review closures"}'
  learnsync enqueue bookmark '{"lessonId":"l7"}' --policy local`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnqueue(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Policy, "policy", "", "conflict policy for this item (local|remote|merge|manual)")

	return cmd
}

func runEnqueue(cmd *cobra.Command, opts *EnqueueOptions, args []string) error {
	sess, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer sess.Close()

	t, err := model.ParseItemType(args[0])
	if err != nil {
		return sess.out.Fail(ExitCommandError, "invalid item type", err)
	}

	item := model.SyncItem{Type: t, Payload: model.Payload{}}
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &item.Payload); err != nil {
			return sess.out.Fail(ExitCommandError, "invalid payload JSON", err)
		}
	}
	if opts.Policy != "" {
		p, err := model.ParsePolicy(opts.Policy)
		if err != nil {
			return sess.out.Fail(ExitCommandError, "invalid policy", err)
		}
		item.ConflictResolution = p
	}

	queued, err := sess.svc.AddToSyncQueue(cmd.Context(), item)
	if err != nil {
		return sess.out.Fail(ExitFailure, "failed to enqueue", err)
	}
	return sess.out.Success(itemView(queued))
}
