package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/learnsync/internal/model"
)

// QueueList is the output of queue list.
type QueueList struct {
	Items []model.SyncItem `json:"items"`
}

// WriteText renders the queue for humans.
func (l QueueList) WriteText(w io.Writer) error {
	if len(l.Items) == 0 {
		_, err := fmt.Fprintln(w, "Sync queue is empty")
		return err
	}
	for _, it := range l.Items {
		if err := itemView(it).WriteText(w); err != nil {
			return err
		}
	}
	return nil
}

// NewQueueCommand creates the queue command group.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or clear the sync queue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List queued items in enqueue order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer sess.Close()

			items, err := sess.svc.SyncQueue(cmd.Context())
			if err != nil {
				return sess.out.Fail(ExitCommandError, "failed to read queue", err)
			}
			if items == nil {
				items = []model.SyncItem{}
			}
			return sess.out.Success(QueueList{Items: items})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every queued item without syncing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.svc.ClearSyncQueue(cmd.Context()); err != nil {
				return sess.out.Fail(ExitCommandError, "failed to clear queue", err)
			}
			return sess.out.Success("Sync queue cleared")
		},
	})

	return cmd
}
