package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// InitResult is the output of the init command.
type InitResult struct {
	Path        string   `json:"path"`
	Collections []string `json:"collections"`
}

// WriteText renders the result for humans.
func (r InitResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Initialized %s (%d collections)\n", r.Path, len(r.Collections))
	return err
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or upgrade the local database",
		Long: `Create the local database and its collections. Safe to run repeatedly:
missing collections and indexes are added, existing data is never touched.

Example:
  learnsync init --db ./learnsync.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer sess.Close()

			names, err := sess.svc.Collections(cmd.Context())
			if err != nil {
				return sess.out.Fail(ExitCommandError, "failed to list collections", err)
			}
			return sess.out.Success(InitResult{
				Path:        sess.cfg.Store.Path,
				Collections: names,
			})
		},
	}
}
