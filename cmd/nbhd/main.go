// Command nbhd resolves neighborhood community membership from a local
// SQLite catalog.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/nbhd/internal/cli"
)

func main() {
	err := cli.NewRootCommand().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
