package main

import (
	"fmt"
	"os"

	"github.com/pipeforge/pipeforge/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands print their own error output; the message here covers
		// flag-parse failures that never reach a RunE.
		if _, silenced := err.(*cli.ExitError); !silenced {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
