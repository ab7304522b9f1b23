package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export queue, history and conflicts as JSON",
		Long: `Write the sync queue, history and conflict log as one canonical JSON
document, to stdout or to --output.

Example:
  learnsync export -o backup.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer sess.Close()

			doc, err := sess.svc.ExportSyncData(cmd.Context())
			if err != nil {
				return sess.out.Fail(ExitCommandError, "failed to export", err)
			}

			if output == "" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), string(doc))
				return err
			}
			if err := os.WriteFile(output, doc, 0o644); err != nil {
				return sess.out.Fail(ExitCommandError, "failed to write export", err)
			}
			return sess.out.Success(fmt.Sprintf("Exported to %s", output))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace queue, history and conflicts from an export",
		Long: `Validate an export document and replace the sync queue, history and
conflict log with its contents. This is destructive: existing entries are
dropped, not merged.

Example:
  learnsync import backup.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer sess.Close()

			var data []byte
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return sess.out.Fail(ExitCommandError, "failed to read import", err)
			}

			if err := sess.svc.ImportSyncData(cmd.Context(), data); err != nil {
				return sess.out.Fail(ExitFailure, "import rejected", err)
			}
			return sess.out.Success(fmt.Sprintf("Imported %s", args[0]))
		},
	}
}
