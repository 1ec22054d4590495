// Command brickbook serves and maintains a revision-tracked building catalogue.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/brickbook/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
