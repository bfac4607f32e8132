// Command solforge operates a journaled protocol fee vault.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/solforge/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
