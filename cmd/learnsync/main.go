// Command learnsync manages the offline learning store and syncs it with
// the remote system of record.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/learnsync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
