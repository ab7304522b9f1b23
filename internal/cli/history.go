package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/learnsync/internal/model"
)

// HistoryList is the output of the history command.
type HistoryList struct {
	Results []model.SyncResult `json:"results"`
}

// WriteText renders the history for humans, most recent first.
func (h HistoryList) WriteText(w io.Writer) error {
	if len(h.Results) == 0 {
		_, err := fmt.Fprintln(w, "No sync history")
		return err
	}
	for _, r := range h.Results {
		mark := "ok"
		if !r.Success {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "%s  %-4s synced=%d conflicts=%d errors=%d  %s\n",
			r.LastSyncTime.Format("2006-01-02T15:04:05Z07:00"), mark,
			r.SyncedItems, len(r.Conflicts), len(r.Errors), r.ID)
	}
	return nil
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded sync results, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer sess.Close()

			results, err := sess.svc.SyncHistory(cmd.Context())
			if err != nil {
				return sess.out.Fail(ExitCommandError, "failed to read history", err)
			}
			if limit > 0 && len(results) > limit {
				results = results[:limit]
			}
			if results == nil {
				results = []model.SyncResult{}
			}
			return sess.out.Success(HistoryList{Results: results})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n results")

	return cmd
}
