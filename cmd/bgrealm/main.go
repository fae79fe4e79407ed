// Command bgrealm reads, writes and watches a BackgroundRealm store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/AppleFlash/BackgroundRealm/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
