package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/learnsync/internal/quota"
)

// storageView renders a storage snapshot.
type storageView quota.Info

// WriteText renders the snapshot for humans.
func (v storageView) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Used %s of %s (%.2f%%)\n", humanBytes(v.Used), humanBytes(v.Total), v.Percentage)
	return err
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// NewStorageCommand creates the storage command.
func NewStorageCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "storage",
		Short: "Report storage usage against the budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer sess.Close()

			info, err := sess.svc.GetStorageInfo(cmd.Context())
			if err != nil {
				return sess.out.Fail(ExitCommandError, "failed to read storage info", err)
			}
			return sess.out.Success(storageView(info))
		},
	}
}
