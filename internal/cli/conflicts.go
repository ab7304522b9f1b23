package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/learnsync/internal/model"
)

// ConflictList is the output of conflicts list.
type ConflictList struct {
	Conflicts []model.Conflict `json:"conflicts"`
}

// WriteText renders the conflicts for humans.
func (l ConflictList) WriteText(w io.Writer) error {
	if len(l.Conflicts) == 0 {
		_, err := fmt.Fprintln(w, "No conflicts")
		return err
	}
	for _, c := range l.Conflicts {
		state := "open"
		if c.Resolved {
			state = "resolved"
		}
		fmt.Fprintf(w, "%s  item %s  %-15s %-6s %s\n", c.ID, c.ItemID, c.Type, c.Resolution, state)
		if c.Error != "" {
			fmt.Fprintf(w, "    last error: %s\n", c.Error)
		}
	}
	return nil
}

// NewConflictsCommand creates the conflicts command group.
func NewConflictsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Inspect and resolve sync conflicts",
	}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List conflicts (unresolved only unless --all)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer sess.Close()

			conflicts, err := sess.svc.Conflicts(cmd.Context(), !all)
			if err != nil {
				return sess.out.Fail(ExitCommandError, "failed to read conflicts", err)
			}
			if conflicts == nil {
				conflicts = []model.Conflict{}
			}
			return sess.out.Success(ConflictList{Conflicts: conflicts})
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include resolved conflicts")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <conflict-id> <local|remote|merge>",
		Short: "Resolve a conflict and drop its queue item",
		Long: `Resolve a logged conflict:

  local   overwrite the remote record with the local payload
  remote  replace the local copy with the remote payload
  merge   shallow merge, local keys win

Example:
  learnsync conflicts resolve 3f2a9c1b0d4e local`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer sess.Close()

			p, err := model.ParsePolicy(args[1])
			if err != nil {
				return sess.out.Fail(ExitCommandError, "invalid resolution", err)
			}
			c, err := sess.svc.ResolveConflict(cmd.Context(), args[0], p)
			if err != nil {
				return sess.out.Fail(ExitFailure, "failed to resolve conflict", err)
			}
			return sess.out.Success(ConflictList{Conflicts: []model.Conflict{c}})
		},
	})

	return cmd
}
